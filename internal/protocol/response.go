package protocol

import "fmt"

// Response tags. Every response is a single line starting with one of these;
// fields follow comma-separated in a fixed order per tag.
const (
	TagPong        = "PONG"
	TagLuaResult   = "LUA_RESULT:"
	TagTime        = "TIME:"
	TagCooldown    = "CD:"
	TagInRange     = "IN_RANGE:"
	TagSpellInfo   = "SPELLINFO:"
	TagCastResult  = "CAST_RESULT:"
	TagComboPoints = "CP:"
	TagTargetGUID  = "TARGET_GUID:"
	TagBehind      = "BEHIND:"
	TagRangeErr    = "RANGE_ERR:"
	TagError       = "ERROR:"
)

// Combo-point sentinels. Values 0..5 are in-band; these distinguish the two
// non-success categories without overloading a valid reading.
const (
	// ComboNotInitialized is reported when no memory reader is wired in.
	ComboNotInitialized = -98
	// ComboReadFault is reported when the raw read itself faulted.
	ComboReadFault = -99
)

// MaxComboPoints is the highest valid combo-point reading; anything above it
// is treated as garbage and normalized to zero.
const MaxComboPoints = 5

// Errorf formats a generic ERROR: tagged response.
func Errorf(format string, a ...any) string {
	return TagError + fmt.Sprintf(format, a...)
}

// ScriptErrorf formats a stage-tagged script failure, e.g.
// LUA_RESULT:ERROR:load:unexpected symbol.
func ScriptErrorf(stage, message string) string {
	return fmt.Sprintf("%sERROR:%s:%s", TagLuaResult, stage, message)
}
