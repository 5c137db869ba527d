// Package engine defines the typed contract around the host's embedded
// scripting engine: load code, call named capabilities with N arguments
// expecting M results, read typed stack values, and unwind the stack to a
// snapshot depth.
//
// The adapter is a shared, long-lived, single-threaded resource. Callers
// must confine every use to the frame goroutine; the adapter itself carries
// no locking. The one discipline that keeps it healthy is symmetric
// acquire/restore: snapshot Top before touching the stack and SetTop back
// to it on every exit path.
package engine

import "strconv"

// MultRet requests all results from a call, however many the callee
// produces.
const MultRet = -1

// Type classifies a stack value.
type Type int

const (
	TypeNil Type = iota
	TypeBoolean
	TypeNumber
	TypeString
	TypeOther
)

func (t Type) String() string {
	switch t {
	case TypeNil:
		return "nil"
	case TypeBoolean:
		return "boolean"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	default:
		return "other"
	}
}

// Value is one typed result read off the engine stack.
type Value struct {
	Type Type
	Bool bool
	Num  float64
	Str  string
}

// String renders the value the way it goes on the wire: numbers without a
// trailing ".0" when integral, booleans as true/false, nil as "nil".
func (v Value) String() string {
	switch v.Type {
	case TypeNil:
		return "nil"
	case TypeBoolean:
		if v.Bool {
			return "true"
		}
		return "false"
	case TypeNumber:
		if v.Num == float64(int64(v.Num)) {
			return strconv.FormatInt(int64(v.Num), 10)
		}
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case TypeString:
		return v.Str
	default:
		return "nil"
	}
}

// IsNumber reports whether the value holds a number.
func (v Value) IsNumber() bool { return v.Type == TypeNumber }

// IsString reports whether the value holds a string.
func (v Value) IsString() bool { return v.Type == TypeString }

// Nil is the nil stack value.
func Nil() Value { return Value{Type: TypeNil} }

// Number wraps a float64 as a stack value.
func Number(n float64) Value { return Value{Type: TypeNumber, Num: n} }

// Str wraps a string as a stack value.
func Str(s string) Value { return Value{Type: TypeString, Str: s} }

// Boolean wraps a bool as a stack value.
func Boolean(b bool) Value { return Value{Type: TypeBoolean, Bool: b} }

// Adapter is the stack-engine contract the dispatcher consumes. Indices are
// 1-based absolute stack positions, matching the engine's own convention.
type Adapter interface {
	// Top reports the current result-stack depth.
	Top() int

	// SetTop unwinds (or nil-pads) the stack to the given depth.
	SetTop(depth int)

	// Load compiles a chunk and pushes it as a callable on success.
	Load(chunk, name string) error

	// Global pushes the named global onto the stack and reports whether
	// it was defined (a nil is pushed either way).
	Global(name string) bool

	// PushInteger pushes an integer argument.
	PushInteger(n int64)

	// PushString pushes a string argument.
	PushString(s string)

	// Call invokes the callable below the arguments in protected mode.
	// nresults may be MultRet. On failure the stack is left with the
	// error value; callers restore via SetTop.
	Call(nargs, nresults int) error

	// ValueAt reads the typed value at the given absolute index.
	ValueAt(idx int) Value
}
