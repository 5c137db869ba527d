// Package native models raw calls into the host process: named capabilities
// with fixed calling signatures resolved at configuration time, and direct
// reads of host memory. Nothing here talks to the scripting engine.
//
// Every invocation is confined to the frame goroutine, so the registry needs
// no per-call synchronization beyond registration itself. Faults are
// contained at this boundary and surface as errors, never as panics.
package native

import (
	"errors"
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
)

// Capability names. Addresses are wired to these names by configuration;
// callers look them up by name only.
const (
	CapCastSpell       = "cast_spell"
	CapFindObject      = "find_object"
	CapHemisphereCheck = "hemisphere_check"
)

// ErrUnavailable is returned when a capability or reader has not been
// resolved for this process.
var ErrUnavailable = errors.New("native capability unavailable")

// CastFunc casts an ability for the local player. Mirrors the host's
// CastLocalPlayerSpell(spellId, 0, targetGuid, 0) contract; the return code
// passes through to the controller untouched.
type CastFunc func(abilityID int, unused int, targetGUID uint64, flags int) int

// FindObjectFunc resolves an entity GUID to an object pointer, or zero when
// the entity is not in the host's object manager.
type FindObjectFunc func(guid uint64, flags int) uintptr

// HemisphereFunc reports whether the observed entity lies in the front
// hemisphere of the observer.
type HemisphereFunc func(observer, observed uintptr) bool

// Registry holds resolved capabilities by name. Registration happens during
// process attach; lookups happen on the frame goroutine.
type Registry struct {
	capabilities *xsync.MapOf[string, any]
}

// NewRegistry creates an empty capability registry.
func NewRegistry() *Registry {
	return &Registry{capabilities: xsync.NewMapOf[string, any]()}
}

// Register binds a resolved callable to a capability name.
func (r *Registry) Register(name string, fn any) {
	r.capabilities.Store(name, fn)
}

// Cast returns the resolved cast capability.
func (r *Registry) Cast() (CastFunc, bool) {
	return lookup[CastFunc](r, CapCastSpell)
}

// FindObject returns the resolved object-lookup capability.
func (r *Registry) FindObject() (FindObjectFunc, bool) {
	return lookup[FindObjectFunc](r, CapFindObject)
}

// HemisphereCheck returns the resolved hemisphere-check capability.
func (r *Registry) HemisphereCheck() (HemisphereFunc, bool) {
	return lookup[HemisphereFunc](r, CapHemisphereCheck)
}

func lookup[T any](r *Registry, name string) (T, bool) {
	var zero T
	raw, ok := r.capabilities.Load(name)
	if !ok {
		return zero, false
	}
	fn, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return fn, true
}

// InvokeCast calls the cast capability with fault containment. The two
// fixed zero arguments match the host signature.
func InvokeCast(fn CastFunc, abilityID int, targetGUID uint64) (code int, err error) {
	defer recoverFault("cast", &err)
	return fn(abilityID, 0, targetGUID, 0), nil
}

// InvokeFindObject calls the object-lookup capability with fault containment.
func InvokeFindObject(fn FindObjectFunc, guid uint64) (ptr uintptr, err error) {
	defer recoverFault("find object", &err)
	return fn(guid, 1), nil
}

// InvokeHemisphereCheck calls the hemisphere capability with fault
// containment.
func InvokeHemisphereCheck(fn HemisphereFunc, observer, observed uintptr) (inFront bool, err error) {
	defer recoverFault("hemisphere check", &err)
	return fn(observer, observed), nil
}

func recoverFault(op string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("fault during %s: %v", op, r)
	}
}
