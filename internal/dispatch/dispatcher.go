// Package dispatch turns typed Requests into formatted responses by driving
// the engine adapter, the native capability registry, or raw memory reads.
//
// Every engine interaction follows the same three-phase pattern: snapshot
// the result-stack depth, load/call, validate arity and types before reading
// any value, and unconditionally restore the stack to the snapshot on every
// exit path. A leaked stack entry would corrupt every later command for the
// life of the process, so the restore is a defer taken before anything else
// touches the stack.
package dispatch

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dorcha-inc/gamelink/internal/core"
	"github.com/dorcha-inc/gamelink/internal/engine"
	"github.com/dorcha-inc/gamelink/internal/native"
	"github.com/dorcha-inc/gamelink/internal/protocol"
)

// Host engine entry points called by name.
const (
	fnGetSpellCooldown = "GetSpellCooldown"
	fnGetSpellInfo     = "GetSpellInfo"
	fnIsSpellInRange   = "IsSpellInRange"

	clockExpression = "return GetTime() * 1000"

	// GetSpellInfo's fixed positional contract:
	// name, rank, icon, cost, isFunnel, powerType, castTime, minRange, maxRange
	spellInfoMinResults = 9

	// Sentinel for numeric detail fields the engine did not supply.
	missingNumber = -1
)

// Dispatcher executes one Request at a time on the frame goroutine.
type Dispatcher struct {
	eng     engine.Adapter
	natives *native.Registry
	mem     native.MemoryReader
	addrs   native.StateAddresses
}

// New creates a Dispatcher. mem may be nil when no memory reader has been
// resolved; the affected commands then answer with their not-initialized
// sentinels instead of failing at construction.
func New(eng engine.Adapter, natives *native.Registry, mem native.MemoryReader, addrs native.StateAddresses) *Dispatcher {
	if natives == nil {
		natives = native.NewRegistry()
	}
	return &Dispatcher{eng: eng, natives: natives, mem: mem, addrs: addrs}
}

// Dispatch handles one Request and returns its formatted response, or the
// empty string when the request produces none. A fault in one request is
// contained here and converted into a tagged error response so it can never
// poison the rest of the drain batch.
func (d *Dispatcher) Dispatch(req protocol.Request) (response string) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			core.LogPanicRecovery("dispatch", r)
			response = protocol.Errorf("internal fault processing %s", req.Kind)
		}
		core.LogDispatch(req.Kind.String(), time.Since(start).Seconds(), response != "")
	}()

	switch req.Kind {
	case protocol.KindPing:
		return protocol.TagPong
	case protocol.KindExecuteScript:
		return d.executeScript(req.ScriptText)
	case protocol.KindGetClockMillis:
		return d.clockMillis()
	case protocol.KindGetAbilityCooldown:
		return d.abilityCooldown(req.AbilityID)
	case protocol.KindIsAbilityUsableAt:
		return d.abilityUsableAt(req.AbilityID, req.UnitToken)
	case protocol.KindGetAbilityDetails:
		return d.abilityDetails(req.AbilityID)
	case protocol.KindInvokeAbility:
		return d.invokeAbility(req.AbilityID, req.TargetGUID)
	case protocol.KindGetComboResource:
		return d.comboResource()
	case protocol.KindGetTargetGUID:
		return d.targetGUID()
	case protocol.KindIsBehindTarget:
		return d.behindTarget(req.TargetGUID)
	default:
		return protocol.Errorf("unrecognized command %q", req.Raw)
	}
}

// scriptError carries the stage a script execution failed at, load vs call.
type scriptError struct {
	stage   string
	message string
}

// eval runs a chunk in protected mode and returns every value it produced.
func (d *Dispatcher) eval(chunk string) ([]engine.Value, *scriptError) {
	top := d.eng.Top()
	defer d.eng.SetTop(top)

	if err := d.eng.Load(chunk, core.ChunkName); err != nil {
		return nil, &scriptError{stage: "load", message: err.Error()}
	}
	if err := d.eng.Call(0, engine.MultRet); err != nil {
		return nil, &scriptError{stage: "call", message: err.Error()}
	}

	count := d.eng.Top() - top
	values := make([]engine.Value, 0, count)
	for i := 1; i <= count; i++ {
		values = append(values, d.eng.ValueAt(top+i))
	}
	return values, nil
}

// callGlobal invokes a named engine global. nresults may be engine.MultRet,
// in which case every produced value is returned; with a fixed count the
// engine nil-pads short returns, so validation happens on types not arity.
func (d *Dispatcher) callGlobal(name string, push func(), nargs, nresults int) ([]engine.Value, error) {
	top := d.eng.Top()
	defer d.eng.SetTop(top)

	if !d.eng.Global(name) {
		return nil, fmt.Errorf("%s is not defined", name)
	}
	if push != nil {
		push()
	}
	if err := d.eng.Call(nargs, nresults); err != nil {
		return nil, fmt.Errorf("%s failed: %w", name, err)
	}

	count := d.eng.Top() - top
	values := make([]engine.Value, 0, count)
	for i := 1; i <= count; i++ {
		values = append(values, d.eng.ValueAt(top+i))
	}
	return values, nil
}

func (d *Dispatcher) executeScript(script string) string {
	values, serr := d.eval(script)
	if serr != nil {
		return protocol.ScriptErrorf(serr.stage, serr.message)
	}

	// Zero return values still answer with an empty payload: "ran, no
	// output" is distinguishable from "didn't run".
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.String()
	}
	return protocol.TagLuaResult + strings.Join(parts, ",")
}

func (d *Dispatcher) clockMillis() string {
	values, serr := d.eval(clockExpression)
	if serr != nil {
		return protocol.Errorf("clock query failed at %s: %s", serr.stage, serr.message)
	}
	if len(values) < 1 || !values[0].IsNumber() {
		return protocol.Errorf("clock result missing or not numeric")
	}
	return fmt.Sprintf("%s%d", protocol.TagTime, int64(values[0].Num))
}

func (d *Dispatcher) abilityCooldown(abilityID int) string {
	values, err := d.callGlobal(fnGetSpellCooldown, func() {
		d.eng.PushInteger(int64(abilityID))
	}, 1, 3)
	if err != nil {
		return protocol.Errorf("%v", err)
	}

	for i := 0; i < 3; i++ {
		if !values[i].IsNumber() {
			return protocol.Errorf("%s returned %s at position %d, want number",
				fnGetSpellCooldown, values[i].Type, i+1)
		}
	}

	startMS := int64(values[0].Num * 1000)
	durationMS := int64(values[1].Num * 1000)
	ready := 0
	if values[2].Num != 0 {
		ready = 1
	}
	return fmt.Sprintf("%s%d,%d,%d", protocol.TagCooldown, startMS, durationMS, ready)
}

func (d *Dispatcher) abilityUsableAt(abilityID int, unitToken string) string {
	// Resolve id -> display name first; the range check capability only
	// accepts names.
	values, err := d.callGlobal(fnGetSpellInfo, func() {
		d.eng.PushInteger(int64(abilityID))
	}, 1, 1)
	if err != nil || len(values) < 1 || !values[0].IsString() {
		return protocol.TagRangeErr + "GetSpellInfo failed"
	}
	name := values[0].Str

	values, err = d.callGlobal(fnIsSpellInRange, func() {
		d.eng.PushString(name)
		d.eng.PushString(unitToken)
	}, 2, 1)
	if err != nil {
		return protocol.TagRangeErr + "IsSpellInRange failed"
	}

	usable := usabilityFromResult(values)
	return fmt.Sprintf("%s%d", protocol.TagInRange, usable)
}

// usabilityFromResult maps the range-check result to the wire contract:
// 1 usable, 0 not usable (nil means conservatively not usable), -1
// indeterminate.
func usabilityFromResult(values []engine.Value) int {
	if len(values) < 1 {
		return -1
	}
	switch values[0].Type {
	case engine.TypeNil:
		return 0
	case engine.TypeNumber:
		if values[0].Num == 1 {
			return 1
		}
		return 0
	default:
		return -1
	}
}

func (d *Dispatcher) abilityDetails(abilityID int) string {
	values, err := d.callGlobal(fnGetSpellInfo, func() {
		d.eng.PushInteger(int64(abilityID))
	}, 1, engine.MultRet)
	if err != nil {
		return protocol.Errorf("%v", err)
	}
	if len(values) < spellInfoMinResults {
		return protocol.Errorf("%s returned %d results, want at least %d",
			fnGetSpellInfo, len(values), spellInfoMinResults)
	}

	name := stringOrNA(values[0])
	rank := stringOrNA(values[1])
	icon := stringOrNA(values[2])
	cost := numberOrMissing(values[3])
	// values[4] is the funnel flag; not part of the response record.
	powerType := numberOrMissing(values[5])
	castTimeMS := numberOrMissing(values[6])
	minRange := numberOrMissing(values[7])
	maxRange := numberOrMissing(values[8])

	return fmt.Sprintf("%s%s,%s,%d,%d,%d,%s,%d,%d",
		protocol.TagSpellInfo,
		name, rank, castTimeMS, minRange, maxRange, icon, cost, powerType)
}

func stringOrNA(v engine.Value) string {
	if !v.IsString() || v.Str == "" {
		return "N/A"
	}
	// Commas would corrupt the comma-joined record.
	return strings.ReplaceAll(v.Str, ",", " ")
}

func numberOrMissing(v engine.Value) int64 {
	if !v.IsNumber() {
		return missingNumber
	}
	return int64(v.Num)
}

func (d *Dispatcher) invokeAbility(abilityID int, targetGUID uint64) string {
	fn, ok := d.natives.Cast()
	if !ok {
		return protocol.Errorf("cast capability unavailable")
	}

	code, err := native.InvokeCast(fn, abilityID, targetGUID)
	if err != nil {
		return protocol.Errorf("%v", err)
	}

	zap.L().Debug("Cast dispatched",
		zap.Int("ability_id", abilityID),
		zap.Uint64("target_guid", targetGUID),
		zap.Int("return_code", code))
	return fmt.Sprintf("%s%d,%d", protocol.TagCastResult, abilityID, code)
}

func (d *Dispatcher) comboResource() string {
	if d.mem == nil {
		return fmt.Sprintf("%s%d", protocol.TagComboPoints, protocol.ComboNotInitialized)
	}

	b, err := d.mem.ReadByte(d.addrs.ComboPoints)
	if err != nil {
		zap.L().Warn("Combo point read faulted", zap.Error(err))
		return fmt.Sprintf("%s%d", protocol.TagComboPoints, protocol.ComboReadFault)
	}

	points := int(b)
	if points > protocol.MaxComboPoints {
		points = 0
	}
	return fmt.Sprintf("%s%d", protocol.TagComboPoints, points)
}

func (d *Dispatcher) targetGUID() string {
	if d.mem == nil {
		return protocol.Errorf("memory reader unavailable")
	}

	guid, err := d.mem.ReadUint64(d.addrs.TargetGUID)
	if err != nil {
		return protocol.Errorf("target guid read faulted: %v", err)
	}
	return fmt.Sprintf("%s0x%X", protocol.TagTargetGUID, guid)
}

func (d *Dispatcher) behindTarget(targetGUID uint64) string {
	find, ok := d.natives.FindObject()
	if !ok {
		return protocol.Errorf("object lookup capability unavailable")
	}
	hemisphere, ok := d.natives.HemisphereCheck()
	if !ok {
		return protocol.Errorf("hemisphere capability unavailable")
	}
	if d.mem == nil {
		return protocol.Errorf("memory reader unavailable")
	}
	if targetGUID == 0 {
		return protocol.Errorf("target guid is 0")
	}

	playerGUID, err := d.mem.ReadUint64(d.addrs.PlayerGUID)
	if err != nil {
		return protocol.Errorf("player guid read faulted: %v", err)
	}
	if playerGUID == 0 {
		return protocol.Errorf("player guid is 0")
	}

	player, err := native.InvokeFindObject(find, playerGUID)
	if err != nil {
		return protocol.Errorf("%v", err)
	}
	if player == 0 {
		return protocol.Errorf("player object not found")
	}

	target, err := native.InvokeFindObject(find, targetGUID)
	if err != nil {
		return protocol.Errorf("%v", err)
	}
	if target == 0 {
		return protocol.Errorf("target object not found")
	}

	// Behind means: the player is not in the target's front hemisphere
	// while the target is in the player's.
	playerInTargetFront, err := native.InvokeHemisphereCheck(hemisphere, target, player)
	if err != nil {
		return protocol.Errorf("%v", err)
	}
	targetInPlayerFront, err := native.InvokeHemisphereCheck(hemisphere, player, target)
	if err != nil {
		return protocol.Errorf("%v", err)
	}

	behind := 0
	if !playerInTargetFront && targetInPlayerFront {
		behind = 1
	}
	return fmt.Sprintf("%s%d", protocol.TagBehind, behind)
}
