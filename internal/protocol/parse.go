package protocol

import (
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"
)

// DefaultUnitTokenMaxLen bounds the unit reference token in IS_IN_RANGE
// commands. Longer tokens are truncated, never overrun.
const DefaultUnitTokenMaxLen = 32

// Command words and prefixes of the wire grammar. Exact-match commands are
// checked before parameterized prefixes; first match wins.
const (
	cmdPing           = "ping"
	cmdGetTimeMS      = "GET_TIME_MS"
	cmdGetComboPoints = "GET_COMBO_POINTS"
	cmdGetTargetGUID  = "GET_TARGET_GUID"

	prefixExecLua        = "EXEC_LUA:"
	prefixGetCD          = "GET_CD:"
	prefixGetSpellInfo   = "GET_SPELL_INFO:"
	prefixCastSpell      = "CAST_SPELL:"
	prefixIsInRange      = "IS_IN_RANGE:"
	prefixIsBehindTarget = "IS_BEHIND_TARGET:"
)

var exactCommands = map[string]Kind{
	cmdPing:           KindPing,
	cmdGetTimeMS:      KindGetClockMillis,
	cmdGetComboPoints: KindGetComboResource,
	cmdGetTargetGUID:  KindGetTargetGUID,
}

// Parser decodes one raw message into exactly one Request. Parsing is pure:
// the same input always yields a structurally equal Request.
type Parser struct {
	unitTokenMaxLen int
	knownCommands   mapset.Set[string]
}

// NewParser creates a Parser with the default unit token cap.
func NewParser() *Parser {
	return NewParserWithUnitTokenCap(DefaultUnitTokenMaxLen)
}

// NewParserWithUnitTokenCap creates a Parser with a custom unit token cap.
func NewParserWithUnitTokenCap(maxLen int) *Parser {
	if maxLen <= 0 {
		maxLen = DefaultUnitTokenMaxLen
	}

	known := mapset.NewSet[string]()
	for cmd := range exactCommands {
		known.Add(cmd)
	}
	for _, prefix := range []string{
		prefixExecLua, prefixGetCD, prefixGetSpellInfo,
		prefixCastSpell, prefixIsInRange, prefixIsBehindTarget,
	} {
		known.Add(strings.TrimSuffix(prefix, ":"))
	}

	return &Parser{
		unitTokenMaxLen: maxLen,
		knownCommands:   known,
	}
}

// Parse decodes one message. It never fails: anything that does not match
// the grammar, including parameterized commands with malformed integer
// fields, becomes a KindUnknown Request carrying the raw text.
func (p *Parser) Parse(message string) Request {
	// Strip the line terminator and any trailing NULs a foreign
	// controller may append.
	message = strings.TrimRight(message, "\r\n\x00")

	if message == "" {
		return Request{Kind: KindUnknown, Raw: message}
	}

	if kind, ok := exactCommands[message]; ok {
		return Request{Kind: kind}
	}

	switch {
	case strings.HasPrefix(message, prefixExecLua):
		return Request{
			Kind:       KindExecuteScript,
			ScriptText: message[len(prefixExecLua):],
		}

	case strings.HasPrefix(message, prefixGetCD):
		if id, ok := parseAbilityID(message[len(prefixGetCD):]); ok {
			return Request{Kind: KindGetAbilityCooldown, AbilityID: id}
		}

	case strings.HasPrefix(message, prefixGetSpellInfo):
		if id, ok := parseAbilityID(message[len(prefixGetSpellInfo):]); ok {
			return Request{Kind: KindGetAbilityDetails, AbilityID: id}
		}

	case strings.HasPrefix(message, prefixCastSpell):
		if req, ok := p.parseCastSpell(message[len(prefixCastSpell):]); ok {
			return req
		}

	case strings.HasPrefix(message, prefixIsInRange):
		if req, ok := p.parseIsInRange(message[len(prefixIsInRange):]); ok {
			return req
		}

	case strings.HasPrefix(message, prefixIsBehindTarget):
		rest := strings.TrimPrefix(message[len(prefixIsBehindTarget):], "0x")
		if guid, err := strconv.ParseUint(rest, 16, 64); err == nil {
			return Request{Kind: KindIsBehindTarget, TargetGUID: guid}
		}
	}

	p.logUnknown(message)
	return Request{Kind: KindUnknown, Raw: message}
}

// parseCastSpell decodes "<abilityId>[,<targetGuid>]". The GUID defaults to
// zero when absent.
func (p *Parser) parseCastSpell(rest string) (Request, bool) {
	idPart, guidPart, hasGUID := strings.Cut(rest, ",")

	id, ok := parseAbilityID(idPart)
	if !ok {
		return Request{}, false
	}

	req := Request{Kind: KindInvokeAbility, AbilityID: id}
	if hasGUID {
		guid, err := strconv.ParseUint(guidPart, 10, 64)
		if err != nil {
			return Request{}, false
		}
		req.TargetGUID = guid
	}
	return req, true
}

// parseIsInRange decodes "<abilityId>,<unitToken>".
func (p *Parser) parseIsInRange(rest string) (Request, bool) {
	idPart, unit, hasUnit := strings.Cut(rest, ",")
	if !hasUnit || unit == "" {
		return Request{}, false
	}

	id, ok := parseAbilityID(idPart)
	if !ok {
		return Request{}, false
	}

	if len(unit) > p.unitTokenMaxLen {
		unit = unit[:p.unitTokenMaxLen]
	}
	return Request{Kind: KindIsAbilityUsableAt, AbilityID: id, UnitToken: unit}, true
}

func parseAbilityID(s string) (int, bool) {
	id, err := strconv.Atoi(s)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

// logUnknown records an unrecognized command, with a nearest-match hint when
// a known command word is within a small edit distance of what was sent.
func (p *Parser) logUnknown(message string) {
	fields := []zap.Field{zap.String("command", truncateForLog(message))}
	if suggestion := p.suggestCommand(message); suggestion != "" {
		fields = append(fields, zap.String("did_you_mean", suggestion))
	}
	zap.L().Warn("Unrecognized command", fields...)
}

// suggestCommand finds the most similar known command word for typo
// detection using Levenshtein distance.
func (p *Parser) suggestCommand(message string) string {
	word, _, _ := strings.Cut(message, ":")

	var best string
	bestDistance := 3 // Only consider distances <= 2

	for cmd := range p.knownCommands.Iter() {
		distance := levenshtein.ComputeDistance(strings.ToLower(word), strings.ToLower(cmd))
		if distance < bestDistance {
			bestDistance = distance
			best = cmd
		}
	}
	return best
}

func truncateForLog(s string) string {
	const max = 100
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
