package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/dorcha-inc/gamelink/internal/engine"
	"github.com/dorcha-inc/gamelink/internal/native"
	"github.com/dorcha-inc/gamelink/internal/protocol"
)

const (
	testComboAddr  = uintptr(0xBD084D)
	testTargetAddr = uintptr(0xBD07A0)
	testPlayerAddr = uintptr(0xBD0790)
)

type testFixture struct {
	adapter  *engine.LuaAdapter
	natives  *native.Registry
	mem      *native.MappedMemory
	d        *Dispatcher
	lastCast struct {
		abilityID  int
		targetGUID uint64
	}
}

// newFixture builds a dispatcher over a Lua state that mimics the host
// engine's entry points.
func newFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		adapter: engine.NewLuaAdapter(),
		natives: native.NewRegistry(),
		mem:     native.NewMappedMemory(),
	}
	t.Cleanup(f.adapter.Close)

	L := f.adapter.State()
	L.SetGlobal("GetTime", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(12.345))
		return 1
	}))
	L.SetGlobal("GetSpellCooldown", L.NewFunction(func(L *lua.LState) int {
		if L.CheckInt(1) == 100 {
			L.Push(lua.LNumber(12.5))
			L.Push(lua.LNumber(8.0))
			L.Push(lua.LNumber(0))
			return 3
		}
		L.Push(lua.LNumber(0))
		L.Push(lua.LNumber(0))
		L.Push(lua.LNumber(1))
		return 3
	}))
	L.SetGlobal("GetSpellInfo", L.NewFunction(func(L *lua.LState) int {
		if L.CheckInt(1) != 133 {
			return 0 // unknown ability: no results
		}
		for _, v := range []lua.LValue{
			lua.LString("Fireball"),
			lua.LString("Rank 1"),
			lua.LString("INV_Fireball"),
			lua.LNumber(30),
			lua.LBool(false),
			lua.LNumber(0),
			lua.LNumber(3500),
			lua.LNumber(0),
			lua.LNumber(35),
		} {
			L.Push(v)
		}
		return 9
	}))
	L.SetGlobal("IsSpellInRange", L.NewFunction(func(L *lua.LState) int {
		unit := L.CheckString(2)
		switch unit {
		case "target":
			L.Push(lua.LNumber(1))
		case "focus":
			L.Push(lua.LNumber(0))
		default:
			L.Push(lua.LNil)
		}
		return 1
	}))

	f.mem.PutByte(testComboAddr, 3)
	f.mem.PutUint64(testTargetAddr, 0xF130005C4A)
	f.mem.PutUint64(testPlayerAddr, 0xF130000001)

	f.natives.Register(native.CapCastSpell, native.CastFunc(
		func(abilityID, _ int, targetGUID uint64, _ int) int {
			f.lastCast.abilityID = abilityID
			f.lastCast.targetGUID = targetGUID
			return 0
		}))
	f.natives.Register(native.CapFindObject, native.FindObjectFunc(
		func(guid uint64, _ int) uintptr {
			if guid == 0xF130000001 || guid == 0xF130005C4A {
				return uintptr(guid & 0xFFFF)
			}
			return 0
		}))
	f.natives.Register(native.CapHemisphereCheck, native.HemisphereFunc(
		func(observer, observed uintptr) bool {
			// Player faces the target; target faces away.
			return observer == uintptr(0x0001)
		}))

	f.d = New(f.adapter, f.natives, f.mem, native.StateAddresses{
		ComboPoints: testComboAddr,
		TargetGUID:  testTargetAddr,
		PlayerGUID:  testPlayerAddr,
	})
	return f
}

// dispatch runs one request and asserts the stack depth is unchanged
// afterwards, success or failure.
func (f *testFixture) dispatch(t *testing.T, req protocol.Request) string {
	t.Helper()
	before := f.adapter.Top()
	resp := f.d.Dispatch(req)
	require.Equal(t, before, f.adapter.Top(),
		"stack depth must be restored after dispatching %s", req.Kind)
	return resp
}

// TestDispatch_Ping tests the fixed acknowledgement
func TestDispatch_Ping(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "PONG", f.dispatch(t, protocol.Request{Kind: protocol.KindPing}))
}

// TestDispatch_ExecuteScript tests script evaluation and result rendering
func TestDispatch_ExecuteScript(t *testing.T) {
	f := newFixture(t)

	resp := f.dispatch(t, protocol.Request{
		Kind: protocol.KindExecuteScript, ScriptText: "return 1+1",
	})
	assert.Equal(t, "LUA_RESULT:2", resp)

	resp = f.dispatch(t, protocol.Request{
		Kind: protocol.KindExecuteScript, ScriptText: "return 'a', 2, true",
	})
	assert.Equal(t, "LUA_RESULT:a,2,true", resp)
}

// TestDispatch_ExecuteScript_NoResults tests that "ran, no output" is an
// empty payload, not an absent response
func TestDispatch_ExecuteScript_NoResults(t *testing.T) {
	f := newFixture(t)

	resp := f.dispatch(t, protocol.Request{
		Kind: protocol.KindExecuteScript, ScriptText: "local x = 1",
	})
	assert.Equal(t, "LUA_RESULT:", resp)
}

// TestDispatch_ExecuteScript_Errors tests stage-tagged load and call errors
func TestDispatch_ExecuteScript_Errors(t *testing.T) {
	f := newFixture(t)

	resp := f.dispatch(t, protocol.Request{
		Kind: protocol.KindExecuteScript, ScriptText: "return ((",
	})
	assert.Contains(t, resp, "LUA_RESULT:ERROR:load:")

	resp = f.dispatch(t, protocol.Request{
		Kind: protocol.KindExecuteScript, ScriptText: "error('boom')",
	})
	assert.Contains(t, resp, "LUA_RESULT:ERROR:call:")
	assert.Contains(t, resp, "boom")
}

// TestDispatch_ClockMillis tests seconds-to-milliseconds truncation
func TestDispatch_ClockMillis(t *testing.T) {
	f := newFixture(t)

	resp := f.dispatch(t, protocol.Request{Kind: protocol.KindGetClockMillis})
	assert.Equal(t, "TIME:12345", resp)
}

// TestDispatch_ClockMillis_NotNumeric tests the non-numeric clock error
func TestDispatch_ClockMillis_NotNumeric(t *testing.T) {
	f := newFixture(t)
	L := f.adapter.State()
	L.SetGlobal("GetTime", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString("soon"))
		return 1
	}))

	resp := f.dispatch(t, protocol.Request{Kind: protocol.KindGetClockMillis})
	assert.Contains(t, resp, "ERROR:")
}

// TestDispatch_AbilityCooldown tests the three-field cooldown record
func TestDispatch_AbilityCooldown(t *testing.T) {
	f := newFixture(t)

	resp := f.dispatch(t, protocol.Request{
		Kind: protocol.KindGetAbilityCooldown, AbilityID: 100,
	})
	assert.Equal(t, "CD:12500,8000,0", resp)

	resp = f.dispatch(t, protocol.Request{
		Kind: protocol.KindGetAbilityCooldown, AbilityID: 5,
	})
	assert.Equal(t, "CD:0,0,1", resp)
}

// TestDispatch_AbilityCooldown_BadResults tests type validation of the
// cooldown triple
func TestDispatch_AbilityCooldown_BadResults(t *testing.T) {
	f := newFixture(t)
	L := f.adapter.State()
	L.SetGlobal("GetSpellCooldown", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString("not a number"))
		return 1
	}))

	resp := f.dispatch(t, protocol.Request{
		Kind: protocol.KindGetAbilityCooldown, AbilityID: 100,
	})
	assert.Contains(t, resp, "ERROR:")
	assert.Contains(t, resp, "GetSpellCooldown")
}

// TestDispatch_AbilityCooldown_Undefined tests a missing engine entry point
func TestDispatch_AbilityCooldown_Undefined(t *testing.T) {
	f := newFixture(t)
	f.adapter.State().SetGlobal("GetSpellCooldown", lua.LNil)

	resp := f.dispatch(t, protocol.Request{
		Kind: protocol.KindGetAbilityCooldown, AbilityID: 100,
	})
	assert.Contains(t, resp, "ERROR:")
	assert.Contains(t, resp, "not defined")
}

// TestDispatch_AbilityUsableAt tests the usable / not usable / nil mapping
func TestDispatch_AbilityUsableAt(t *testing.T) {
	f := newFixture(t)

	resp := f.dispatch(t, protocol.Request{
		Kind: protocol.KindIsAbilityUsableAt, AbilityID: 133, UnitToken: "target",
	})
	assert.Equal(t, "IN_RANGE:1", resp)

	resp = f.dispatch(t, protocol.Request{
		Kind: protocol.KindIsAbilityUsableAt, AbilityID: 133, UnitToken: "focus",
	})
	assert.Equal(t, "IN_RANGE:0", resp)

	// nil maps to "not usable", never an error
	resp = f.dispatch(t, protocol.Request{
		Kind: protocol.KindIsAbilityUsableAt, AbilityID: 133, UnitToken: "mouseover",
	})
	assert.Equal(t, "IN_RANGE:0", resp)
}

// TestDispatch_AbilityUsableAt_ResolutionFails tests the name resolution
// failure path
func TestDispatch_AbilityUsableAt_ResolutionFails(t *testing.T) {
	f := newFixture(t)

	// Ability 999 resolves to no name
	resp := f.dispatch(t, protocol.Request{
		Kind: protocol.KindIsAbilityUsableAt, AbilityID: 999, UnitToken: "target",
	})
	assert.Equal(t, "RANGE_ERR:GetSpellInfo failed", resp)
}

// TestDispatch_AbilityUsableAt_Indeterminate tests the -1 mapping for a
// wrong result type
func TestDispatch_AbilityUsableAt_Indeterminate(t *testing.T) {
	f := newFixture(t)
	L := f.adapter.State()
	L.SetGlobal("IsSpellInRange", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString("maybe"))
		return 1
	}))

	resp := f.dispatch(t, protocol.Request{
		Kind: protocol.KindIsAbilityUsableAt, AbilityID: 133, UnitToken: "target",
	})
	assert.Equal(t, "IN_RANGE:-1", resp)
}

// TestDispatch_AbilityDetails tests the full positional record
func TestDispatch_AbilityDetails(t *testing.T) {
	f := newFixture(t)

	resp := f.dispatch(t, protocol.Request{
		Kind: protocol.KindGetAbilityDetails, AbilityID: 133,
	})
	assert.Equal(t, "SPELLINFO:Fireball,Rank 1,3500,0,35,INV_Fireball,30,0", resp)
}

// TestDispatch_AbilityDetails_TooFewResults tests the arity floor
func TestDispatch_AbilityDetails_TooFewResults(t *testing.T) {
	f := newFixture(t)

	resp := f.dispatch(t, protocol.Request{
		Kind: protocol.KindGetAbilityDetails, AbilityID: 999,
	})
	assert.Contains(t, resp, "ERROR:")
	assert.Contains(t, resp, "want at least 9")
}

// TestDispatch_AbilityDetails_MissingFieldsSentinel tests that individual
// missing numerics become -1 rather than aborting the record
func TestDispatch_AbilityDetails_MissingFieldsSentinel(t *testing.T) {
	f := newFixture(t)
	L := f.adapter.State()
	L.SetGlobal("GetSpellInfo", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString("Slam"))
		for i := 0; i < 8; i++ {
			L.Push(lua.LNil)
		}
		return 9
	}))

	resp := f.dispatch(t, protocol.Request{
		Kind: protocol.KindGetAbilityDetails, AbilityID: 133,
	})
	assert.Equal(t, "SPELLINFO:Slam,N/A,-1,-1,-1,N/A,-1,-1", resp)
}

// TestDispatch_InvokeAbility tests the native cast path
func TestDispatch_InvokeAbility(t *testing.T) {
	f := newFixture(t)

	resp := f.dispatch(t, protocol.Request{
		Kind: protocol.KindInvokeAbility, AbilityID: 1752, TargetGUID: 42,
	})
	assert.Equal(t, "CAST_RESULT:1752,0", resp)
	assert.Equal(t, 1752, f.lastCast.abilityID)
	assert.Equal(t, uint64(42), f.lastCast.targetGUID)
}

// TestDispatch_InvokeAbility_Unavailable tests the unresolved capability
// error
func TestDispatch_InvokeAbility_Unavailable(t *testing.T) {
	f := newFixture(t)
	f.d = New(f.adapter, native.NewRegistry(), f.mem, native.StateAddresses{})

	resp := f.dispatch(t, protocol.Request{
		Kind: protocol.KindInvokeAbility, AbilityID: 1752,
	})
	assert.Equal(t, "ERROR:cast capability unavailable", resp)
}

// TestDispatch_InvokeAbility_Fault tests cast fault containment
func TestDispatch_InvokeAbility_Fault(t *testing.T) {
	f := newFixture(t)
	f.natives.Register(native.CapCastSpell, native.CastFunc(
		func(int, int, uint64, int) int {
			panic("access violation at 0x0080DA40")
		}))

	resp := f.dispatch(t, protocol.Request{
		Kind: protocol.KindInvokeAbility, AbilityID: 1752,
	})
	assert.Contains(t, resp, "ERROR:")
	assert.Contains(t, resp, "access violation")
}

// TestDispatch_ComboResource tests the raw byte read and normalization
func TestDispatch_ComboResource(t *testing.T) {
	f := newFixture(t)

	resp := f.dispatch(t, protocol.Request{Kind: protocol.KindGetComboResource})
	assert.Equal(t, "CP:3", resp)

	// Out-of-range garbage normalizes to zero
	f.mem.PutByte(testComboAddr, 7)
	resp = f.dispatch(t, protocol.Request{Kind: protocol.KindGetComboResource})
	assert.Equal(t, "CP:0", resp)
}

// TestDispatch_ComboResource_Sentinels tests the two non-success sentinels
func TestDispatch_ComboResource_Sentinels(t *testing.T) {
	f := newFixture(t)

	// Not initialized: no memory reader wired in
	d := New(f.adapter, f.natives, nil, native.StateAddresses{})
	assert.Equal(t, "CP:-98", d.Dispatch(protocol.Request{Kind: protocol.KindGetComboResource}))

	// Fault: reader wired, address unmapped
	d = New(f.adapter, f.natives, native.NewMappedMemory(), native.StateAddresses{ComboPoints: 0x1})
	assert.Equal(t, "CP:-99", d.Dispatch(protocol.Request{Kind: protocol.KindGetComboResource}))
}

// TestDispatch_TargetGUID tests the raw 8-byte read
func TestDispatch_TargetGUID(t *testing.T) {
	f := newFixture(t)

	resp := f.dispatch(t, protocol.Request{Kind: protocol.KindGetTargetGUID})
	assert.Equal(t, "TARGET_GUID:0xF130005C4A", resp)
}

// TestDispatch_BehindTarget tests the dual hemisphere check
func TestDispatch_BehindTarget(t *testing.T) {
	f := newFixture(t)

	resp := f.dispatch(t, protocol.Request{
		Kind: protocol.KindIsBehindTarget, TargetGUID: 0xF130005C4A,
	})
	assert.Equal(t, "BEHIND:1", resp)
}

// TestDispatch_BehindTarget_Errors tests the distinct failure messages
func TestDispatch_BehindTarget_Errors(t *testing.T) {
	f := newFixture(t)

	resp := f.dispatch(t, protocol.Request{Kind: protocol.KindIsBehindTarget})
	assert.Equal(t, "ERROR:target guid is 0", resp)

	resp = f.dispatch(t, protocol.Request{
		Kind: protocol.KindIsBehindTarget, TargetGUID: 0xDEAD,
	})
	assert.Equal(t, "ERROR:target object not found", resp)
}

// TestDispatch_Unknown tests the generic unrecognized-command error
func TestDispatch_Unknown(t *testing.T) {
	f := newFixture(t)

	resp := f.dispatch(t, protocol.Request{
		Kind: protocol.KindUnknown, Raw: "garbage_command_xyz",
	})
	assert.Equal(t, `ERROR:unrecognized command "garbage_command_xyz"`, resp)
}

// panicEngine wraps an adapter and faults on Call, standing in for a
// corrupted engine state.
type panicEngine struct {
	engine.Adapter
}

func (p panicEngine) Call(nargs, nresults int) error {
	panic("engine state corrupted")
}

// TestDispatch_PanicContained tests that a fault inside the engine adapter
// becomes a tagged error response for that request only
func TestDispatch_PanicContained(t *testing.T) {
	f := newFixture(t)
	d := New(panicEngine{f.adapter}, f.natives, f.mem, native.StateAddresses{})

	resp := d.Dispatch(protocol.Request{Kind: protocol.KindGetClockMillis})
	assert.Contains(t, resp, "ERROR:")

	// The next request on the same dispatcher still works
	resp = d.Dispatch(protocol.Request{Kind: protocol.KindPing})
	assert.Equal(t, "PONG", resp)
}
