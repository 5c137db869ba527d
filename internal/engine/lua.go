package engine

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// LuaAdapter backs the Adapter contract with an embedded gopher-lua state.
// In a real injection build the same contract is satisfied by the host's
// own engine entry points; this implementation serves standalone runs,
// simulation and tests.
type LuaAdapter struct {
	state *lua.LState
	owned bool
}

// NewLuaAdapter creates an adapter owning a fresh Lua state.
func NewLuaAdapter() *LuaAdapter {
	return &LuaAdapter{state: lua.NewState(), owned: true}
}

// WrapState adapts an existing Lua state without taking ownership of it.
func WrapState(state *lua.LState) *LuaAdapter {
	return &LuaAdapter{state: state}
}

// State exposes the underlying Lua state so an environment (simulated or
// otherwise) can install globals before the adapter is used.
func (a *LuaAdapter) State() *lua.LState {
	return a.state
}

// Close releases the Lua state if this adapter owns it.
func (a *LuaAdapter) Close() {
	if a.owned {
		a.state.Close()
	}
}

func (a *LuaAdapter) Top() int {
	return a.state.GetTop()
}

func (a *LuaAdapter) SetTop(depth int) {
	a.state.SetTop(depth)
}

func (a *LuaAdapter) Load(chunk, name string) error {
	fn, err := a.state.Load(strings.NewReader(chunk), name)
	if err != nil {
		return err
	}
	a.state.Push(fn)
	return nil
}

func (a *LuaAdapter) Global(name string) bool {
	value := a.state.GetGlobal(name)
	a.state.Push(value)
	return value != lua.LNil
}

func (a *LuaAdapter) PushInteger(n int64) {
	a.state.Push(lua.LNumber(n))
}

func (a *LuaAdapter) PushString(s string) {
	a.state.Push(lua.LString(s))
}

func (a *LuaAdapter) Call(nargs, nresults int) error {
	if nresults == MultRet {
		nresults = lua.MultRet
	}
	return a.state.PCall(nargs, nresults, nil)
}

func (a *LuaAdapter) ValueAt(idx int) Value {
	value := a.state.Get(idx)
	switch value.Type() {
	case lua.LTNil:
		return Nil()
	case lua.LTBool:
		return Boolean(bool(value.(lua.LBool)))
	case lua.LTNumber:
		return Number(float64(value.(lua.LNumber)))
	case lua.LTString:
		return Str(string(value.(lua.LString)))
	default:
		return Value{Type: TypeOther}
	}
}

// Interface guard
var _ Adapter = &LuaAdapter{}
