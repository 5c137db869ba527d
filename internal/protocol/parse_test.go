package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParse_ExactCommands tests the exact-match trivial commands
func TestParse_ExactCommands(t *testing.T) {
	p := NewParser()

	tests := []struct {
		message string
		kind    Kind
	}{
		{"ping", KindPing},
		{"GET_TIME_MS", KindGetClockMillis},
		{"GET_COMBO_POINTS", KindGetComboResource},
		{"GET_TARGET_GUID", KindGetTargetGUID},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			req := p.Parse(tt.message)
			assert.Equal(t, tt.kind, req.Kind)
			// Unused payload fields must hold type defaults, never
			// residue from another parse.
			assert.Equal(t, Request{Kind: tt.kind}, req)
		})
	}
}

// TestParse_ExecuteScript tests EXEC_LUA decoding including an empty body
func TestParse_ExecuteScript(t *testing.T) {
	p := NewParser()

	req := p.Parse("EXEC_LUA:return 1+1")
	require.Equal(t, KindExecuteScript, req.Kind)
	assert.Equal(t, "return 1+1", req.ScriptText)

	req = p.Parse("EXEC_LUA:")
	require.Equal(t, KindExecuteScript, req.Kind)
	assert.Equal(t, "", req.ScriptText)
}

// TestParse_CaseSensitive tests that command words are case-sensitive
func TestParse_CaseSensitive(t *testing.T) {
	p := NewParser()

	assert.Equal(t, KindUnknown, p.Parse("PING").Kind)
	assert.Equal(t, KindUnknown, p.Parse("get_time_ms").Kind)
	assert.Equal(t, KindUnknown, p.Parse("exec_lua:return 1").Kind)
}

// TestParse_GetAbilityCooldown tests GET_CD with strict integer parsing
func TestParse_GetAbilityCooldown(t *testing.T) {
	p := NewParser()

	req := p.Parse("GET_CD:100")
	require.Equal(t, KindGetAbilityCooldown, req.Kind)
	assert.Equal(t, 100, req.AbilityID)

	// A malformed integer falls through to Unknown, not a partial parse
	req = p.Parse("GET_CD:abc")
	require.Equal(t, KindUnknown, req.Kind)
	assert.Equal(t, "GET_CD:abc", req.Raw)

	assert.Equal(t, KindUnknown, p.Parse("GET_CD:").Kind)
	assert.Equal(t, KindUnknown, p.Parse("GET_CD:-5").Kind)
	assert.Equal(t, KindUnknown, p.Parse("GET_CD:12x").Kind)
}

// TestParse_GetAbilityDetails tests GET_SPELL_INFO decoding
func TestParse_GetAbilityDetails(t *testing.T) {
	p := NewParser()

	req := p.Parse("GET_SPELL_INFO:133")
	require.Equal(t, KindGetAbilityDetails, req.Kind)
	assert.Equal(t, 133, req.AbilityID)

	assert.Equal(t, KindUnknown, p.Parse("GET_SPELL_INFO:133,extra").Kind)
}

// TestParse_InvokeAbility tests CAST_SPELL with and without a target GUID
func TestParse_InvokeAbility(t *testing.T) {
	p := NewParser()

	req := p.Parse("CAST_SPELL:1752")
	require.Equal(t, KindInvokeAbility, req.Kind)
	assert.Equal(t, 1752, req.AbilityID)
	assert.Equal(t, uint64(0), req.TargetGUID)

	req = p.Parse("CAST_SPELL:1752,123456789")
	require.Equal(t, KindInvokeAbility, req.Kind)
	assert.Equal(t, 1752, req.AbilityID)
	assert.Equal(t, uint64(123456789), req.TargetGUID)

	assert.Equal(t, KindUnknown, p.Parse("CAST_SPELL:1752,notaguid").Kind)
	assert.Equal(t, KindUnknown, p.Parse("CAST_SPELL:,5").Kind)
}

// TestParse_IsAbilityUsableAt tests IS_IN_RANGE decoding and the token cap
func TestParse_IsAbilityUsableAt(t *testing.T) {
	p := NewParser()

	req := p.Parse("IS_IN_RANGE:100,target")
	require.Equal(t, KindIsAbilityUsableAt, req.Kind)
	assert.Equal(t, 100, req.AbilityID)
	assert.Equal(t, "target", req.UnitToken)

	// Token longer than the cap is truncated, never overruns
	long := strings.Repeat("x", 100)
	req = p.Parse("IS_IN_RANGE:100," + long)
	require.Equal(t, KindIsAbilityUsableAt, req.Kind)
	assert.Equal(t, DefaultUnitTokenMaxLen, len(req.UnitToken))

	assert.Equal(t, KindUnknown, p.Parse("IS_IN_RANGE:100").Kind)
	assert.Equal(t, KindUnknown, p.Parse("IS_IN_RANGE:100,").Kind)
	assert.Equal(t, KindUnknown, p.Parse("IS_IN_RANGE:abc,target").Kind)
}

// TestParse_IsBehindTarget tests the hex GUID form
func TestParse_IsBehindTarget(t *testing.T) {
	p := NewParser()

	req := p.Parse("IS_BEHIND_TARGET:F130005C4A")
	require.Equal(t, KindIsBehindTarget, req.Kind)
	assert.Equal(t, uint64(0xF130005C4A), req.TargetGUID)

	req = p.Parse("IS_BEHIND_TARGET:0xF130005C4A")
	require.Equal(t, KindIsBehindTarget, req.Kind)
	assert.Equal(t, uint64(0xF130005C4A), req.TargetGUID)

	assert.Equal(t, KindUnknown, p.Parse("IS_BEHIND_TARGET:zz").Kind)
}

// TestParse_Unknown tests that garbage keeps the raw text for diagnostics
func TestParse_Unknown(t *testing.T) {
	p := NewParser()

	req := p.Parse("garbage_command_xyz")
	require.Equal(t, KindUnknown, req.Kind)
	assert.Equal(t, "garbage_command_xyz", req.Raw)

	req = p.Parse("")
	assert.Equal(t, KindUnknown, req.Kind)
}

// TestParse_TrimsLineNoise tests terminator and NUL stripping
func TestParse_TrimsLineNoise(t *testing.T) {
	p := NewParser()

	assert.Equal(t, KindPing, p.Parse("ping\r\n").Kind)
	assert.Equal(t, KindPing, p.Parse("ping\x00\x00").Kind)
}

// TestParse_Idempotent tests that decoding the same text twice yields
// structurally equal Requests
func TestParse_Idempotent(t *testing.T) {
	p := NewParser()

	messages := []string{
		"ping",
		"EXEC_LUA:return GetTime()",
		"GET_CD:100",
		"IS_IN_RANGE:100,target",
		"CAST_SPELL:1752,42",
		"garbage_command_xyz",
	}

	for _, msg := range messages {
		first := p.Parse(msg)
		second := p.Parse(msg)
		assert.Equal(t, first, second, "parse of %q must be idempotent", msg)
	}
}

// TestSuggestCommand tests the nearest-match hint for typos
func TestSuggestCommand(t *testing.T) {
	p := NewParser()

	assert.Equal(t, "GET_TIME_MS", p.suggestCommand("GET_TIME_M"))
	assert.Equal(t, "GET_CD", p.suggestCommand("GET_CDS:100"))
	assert.Equal(t, "", p.suggestCommand("completely_different"))
}
