package conversation

import "strings"

// EventKind separates structured selections from free text.
type EventKind int

const (
	EventCommand EventKind = iota
	EventFreeText
)

// Event is the normalized inbound event: either a stable command identifier
// (from a list/button payload or the free-text matcher) or raw text.
type Event struct {
	Kind    EventKind
	Command string
	Text    string
}

// Stable command identifiers carried in list/button payloads.
const (
	CmdBook        = "book"
	CmdViewAppts   = "view_appointments"
	CmdTalkToAgent = "talk_to_agent"
	CmdPlans       = "platform_plans"
	CmdMore        = "more"
	CmdBack        = "back"
	CmdConfirm     = "confirm"
	CmdAbort       = "abort"
	CmdSkip        = "skip"
	CmdRegistered  = "already_registered"
	CmdIDByPhone   = "identify_by_phone"
	CmdIDByNatID   = "identify_by_national_id"
)

// Prefixes for parameterized selections.
const (
	PrefixBranch   = "branch:"
	PrefixService  = "service:"
	PrefixResource = "resource:"
	PrefixDate     = "date:"
	PrefixSlot     = "slot:"
	PrefixAppt     = "appt:"
	PrefixPlan     = "plan:"
)

// greetings and resetWords are matched against the whole trimmed message,
// case-insensitively, and pre-empt normal state dispatch.
var greetings = map[string]bool{
	"hi": true, "hello": true, "hola": true, "buenas": true,
	"menu": true, "start": true, "inicio": true,
}

var resetWords = map[string]bool{
	"cancel": true, "cancelar": true, "exit": true, "salir": true,
	"stop": true, "end": true, "chau": true, "bye": true,
}

// matcherTable normalizes free-text phrases to command identifiers. Matching
// is best-effort substring containment over the lowercased text; entries are
// ordered so more specific phrases win.
var matcherTable = []struct {
	phrase  string
	command string
}{
	{"my appointments", CmdViewAppts},
	{"mis turnos", CmdViewAppts},
	{"my bookings", CmdViewAppts},
	{"book", CmdBook},
	{"appointment", CmdBook},
	{"reservar", CmdBook},
	{"turno", CmdBook},
	{"agendar", CmdBook},
	{"agent", CmdTalkToAgent},
	{"human", CmdTalkToAgent},
	{"asesor", CmdTalkToAgent},
	{"help", CmdTalkToAgent},
	{"ayuda", CmdTalkToAgent},
	{"plans", CmdPlans},
	{"planes", CmdPlans},
	{"upgrade", CmdPlans},
	{"more", CmdMore},
	{"ver más", CmdMore},
	{"back", CmdBack},
	{"volver", CmdBack},
	{"yes", CmdConfirm},
	{"si", CmdConfirm},
	{"sí", CmdConfirm},
	{"no", CmdAbort},
}

// IsGreeting reports whether the whole message is a greeting keyword.
func IsGreeting(text string) bool {
	return greetings[strings.ToLower(strings.TrimSpace(text))]
}

// IsReset reports whether the whole message is a cancel/end keyword.
func IsReset(text string) bool {
	return resetWords[strings.ToLower(strings.TrimSpace(text))]
}

// MatchCommand normalizes free text to a command identifier. Best-effort:
// callers in data-collection states ignore it and consume the raw text.
func MatchCommand(text string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return "", false
	}
	for _, entry := range matcherTable {
		if strings.Contains(lower, entry.phrase) {
			return entry.command, true
		}
	}
	return "", false
}
