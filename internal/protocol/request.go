// Package protocol defines the wire command grammar spoken between an
// external controller and the in-process agent: the typed Request variants,
// the text decoder that produces them, and the tagged response format.
package protocol

// Kind identifies which operation a Request carries.
type Kind int

const (
	KindUnknown Kind = iota
	KindPing
	KindExecuteScript
	KindGetClockMillis
	KindGetAbilityCooldown
	KindIsAbilityUsableAt
	KindGetAbilityDetails
	KindInvokeAbility
	KindGetComboResource
	KindGetTargetGUID
	KindIsBehindTarget
)

var kindNames = map[Kind]string{
	KindUnknown:            "unknown",
	KindPing:               "ping",
	KindExecuteScript:      "execute_script",
	KindGetClockMillis:     "get_clock_millis",
	KindGetAbilityCooldown: "get_ability_cooldown",
	KindIsAbilityUsableAt:  "is_ability_usable_at",
	KindGetAbilityDetails:  "get_ability_details",
	KindInvokeAbility:      "invoke_ability",
	KindGetComboResource:   "get_combo_resource",
	KindGetTargetGUID:      "get_target_guid",
	KindIsBehindTarget:     "is_behind_target",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Request is one decoded controller command. Exactly one Kind is active per
// instance; payload fields not used by that Kind hold their zero values.
//
// A Request is built once by the decoder, pushed once into the pending queue,
// consumed exactly once on the frame boundary, and then discarded.
type Request struct {
	Kind Kind

	// ScriptText carries the script body for KindExecuteScript.
	ScriptText string

	// AbilityID is the numeric ability identifier for cooldown, range,
	// details and cast commands.
	AbilityID int

	// UnitToken is a short unit reference such as "target" or "player",
	// capped by the decoder.
	UnitToken string

	// TargetGUID is the 64-bit target identifier for cast and
	// behind-target commands. Zero when absent.
	TargetGUID uint64

	// Raw preserves the original message text for KindUnknown so the
	// error response can echo what was not understood.
	Raw string
}
