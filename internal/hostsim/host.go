// Package hostsim simulates the host process the agent normally lives
// inside: a scripting engine with the game's query globals, a block of
// readable state memory, and the native capabilities the dispatcher calls.
// Standalone runs and integration tests wire the agent to a Host instead of
// a real process.
package hostsim

import (
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	lua "github.com/yuin/gopher-lua"

	"github.com/dorcha-inc/gamelink/internal/engine"
	"github.com/dorcha-inc/gamelink/internal/native"
)

// Simulated state addresses. Arbitrary but stable, so configured address
// maps can refer to them.
const (
	AddrPlayerGUID  = uintptr(0xD00000)
	AddrTargetGUID  = uintptr(0xD00008)
	AddrComboPoints = uintptr(0xD00010)
)

// Spell is one simulated ability definition.
type Spell struct {
	Name       string
	Rank       string
	Icon       string
	Cost       int
	PowerType  int
	CastTimeMS int
	MinRange   int
	MaxRange   int

	// Cooldown state as the engine reports it: start and duration in
	// seconds, plus the enabled flag.
	CooldownStart    float64
	CooldownDuration float64
	Enabled          bool

	// RangeByUnit maps unit tokens to the range-check result. Tokens not
	// present answer nil, the engine's "no such unit" result.
	RangeByUnit map[string]bool

	// CastCode is returned by the cast capability. Zero means accepted.
	CastCode int
}

// Entity is one simulated world object with a position and a facing angle
// in radians.
type Entity struct {
	GUID   uint64
	X, Y   float64
	Facing float64
}

// CastRecord is one invocation of the cast capability.
type CastRecord struct {
	AbilityID  int
	TargetGUID uint64
}

// Host owns the simulated engine state, memory, and capabilities.
type Host struct {
	clock clockwork.Clock
	epoch time.Time

	adapter *engine.LuaAdapter
	mem     *native.MappedMemory
	natives *native.Registry

	mu       sync.Mutex
	spells   map[int]Spell
	byName   map[string]int
	handles  map[uintptr]*Entity
	handleOf map[uint64]uintptr
	next     uintptr
	casts    []CastRecord
}

// New creates a Host on the given clock with empty state and the game
// globals installed.
func New(clock clockwork.Clock) *Host {
	h := &Host{
		clock:    clock,
		epoch:    clock.Now(),
		adapter:  engine.NewLuaAdapter(),
		mem:      native.NewMappedMemory(),
		natives:  native.NewRegistry(),
		spells:   make(map[int]Spell),
		byName:   make(map[string]int),
		handles:  make(map[uintptr]*Entity),
		handleOf: make(map[uint64]uintptr),
		next:     0x1000,
	}

	h.mem.PutUint64(AddrPlayerGUID, 0)
	h.mem.PutUint64(AddrTargetGUID, 0)
	h.mem.PutByte(AddrComboPoints, 0)

	h.installGlobals()
	h.installCapabilities()
	return h
}

// NewWithRealClock creates a Host on the wall clock.
func NewWithRealClock() *Host {
	return New(clockwork.NewRealClock())
}

// Adapter returns the engine adapter bound to the simulated globals.
func (h *Host) Adapter() *engine.LuaAdapter { return h.adapter }

// Memory returns the simulated state memory.
func (h *Host) Memory() native.MemoryReader { return h.mem }

// Natives returns the registry with the simulated capabilities resolved.
func (h *Host) Natives() *native.Registry { return h.natives }

// Addresses returns the simulated state address map.
func (h *Host) Addresses() native.StateAddresses {
	return native.StateAddresses{
		ComboPoints: AddrComboPoints,
		TargetGUID:  AddrTargetGUID,
		PlayerGUID:  AddrPlayerGUID,
	}
}

// Close releases the engine state.
func (h *Host) Close() { h.adapter.Close() }

// AddSpell registers or replaces one spell definition.
func (h *Host) AddSpell(id int, s Spell) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.spells[id] = s
	h.byName[s.Name] = id
}

// AddEntity places one world object and assigns it an object handle.
func (h *Host) AddEntity(e Entity) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ent := e
	h.next += 8
	h.handles[h.next] = &ent
	h.handleOf[e.GUID] = h.next
}

// SetPlayerGUID writes the player GUID into simulated memory.
func (h *Host) SetPlayerGUID(guid uint64) { h.mem.PutUint64(AddrPlayerGUID, guid) }

// SetTargetGUID writes the current target GUID into simulated memory.
func (h *Host) SetTargetGUID(guid uint64) { h.mem.PutUint64(AddrTargetGUID, guid) }

// SetComboPoints writes the combo point byte into simulated memory.
func (h *Host) SetComboPoints(n byte) { h.mem.PutByte(AddrComboPoints, n) }

// Casts returns every cast recorded so far, oldest first.
func (h *Host) Casts() []CastRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]CastRecord(nil), h.casts...)
}

func (h *Host) spell(id int) (Spell, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.spells[id]
	return s, ok
}

func (h *Host) spellByName(name string) (Spell, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.byName[name]
	if !ok {
		return Spell{}, false
	}
	return h.spells[id], true
}

func (h *Host) installGlobals() {
	L := h.adapter.State()

	L.SetGlobal("GetTime", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(h.clock.Now().Sub(h.epoch).Seconds()))
		return 1
	}))

	L.SetGlobal("GetSpellCooldown", L.NewFunction(func(L *lua.LState) int {
		s, ok := h.spell(L.CheckInt(1))
		if !ok {
			return 0
		}
		L.Push(lua.LNumber(s.CooldownStart))
		L.Push(lua.LNumber(s.CooldownDuration))
		enabled := 0.0
		if s.Enabled {
			enabled = 1.0
		}
		L.Push(lua.LNumber(enabled))
		return 3
	}))

	L.SetGlobal("GetSpellInfo", L.NewFunction(func(L *lua.LState) int {
		s, ok := h.spell(L.CheckInt(1))
		if !ok {
			return 0
		}
		L.Push(lua.LString(s.Name))
		L.Push(lua.LString(s.Rank))
		L.Push(lua.LString(s.Icon))
		L.Push(lua.LNumber(s.Cost))
		L.Push(lua.LFalse)
		L.Push(lua.LNumber(s.PowerType))
		L.Push(lua.LNumber(s.CastTimeMS))
		L.Push(lua.LNumber(s.MinRange))
		L.Push(lua.LNumber(s.MaxRange))
		return 9
	}))

	L.SetGlobal("IsSpellInRange", L.NewFunction(func(L *lua.LState) int {
		s, ok := h.spellByName(L.CheckString(1))
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		inRange, known := s.RangeByUnit[L.CheckString(2)]
		if !known {
			L.Push(lua.LNil)
			return 1
		}
		if inRange {
			L.Push(lua.LNumber(1))
		} else {
			L.Push(lua.LNumber(0))
		}
		return 1
	}))
}

func (h *Host) installCapabilities() {
	h.natives.Register(native.CapCastSpell, native.CastFunc(
		func(abilityID, _ int, targetGUID uint64, _ int) int {
			h.mu.Lock()
			h.casts = append(h.casts, CastRecord{AbilityID: abilityID, TargetGUID: targetGUID})
			s, ok := h.spells[abilityID]
			h.mu.Unlock()
			if !ok {
				return 1
			}
			return s.CastCode
		}))

	h.natives.Register(native.CapFindObject, native.FindObjectFunc(
		func(guid uint64, _ int) uintptr {
			h.mu.Lock()
			defer h.mu.Unlock()
			return h.handleOf[guid]
		}))

	h.natives.Register(native.CapHemisphereCheck, native.HemisphereFunc(
		func(observer, observed uintptr) bool {
			h.mu.Lock()
			defer h.mu.Unlock()
			obs, ok1 := h.handles[observer]
			tgt, ok2 := h.handles[observed]
			if !ok1 || !ok2 {
				panic("hemisphere check on dangling object pointer")
			}
			return inFrontOf(obs, tgt)
		}))
}

// inFrontOf reports whether observed lies in the half-plane the observer is
// facing.
func inFrontOf(observer, observed *Entity) bool {
	dx := observed.X - observer.X
	dy := observed.Y - observer.Y
	if dx == 0 && dy == 0 {
		return true
	}
	dot := math.Cos(observer.Facing)*dx + math.Sin(observer.Facing)*dy
	return dot > 0
}
