package bookings

// Status is the booking lifecycle state. The alphabet is exactly four
// states; older rows may still carry legacy aliases that NormalizeStatus
// folds in on read.
type Status string

const (
	StatusHold      Status = "HOLD"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
)

// Legacy aliases from earlier schema revisions. They are normalized on
// read and written back on the next transition; new rows never use them.
var legacyAliases = map[Status]Status{
	"pending":         StatusHold,
	"payment_pending": StatusHold,
	"rejected":        StatusCancelled,
}

// NormalizeStatus folds legacy aliases into the canonical alphabet.
// Unknown values pass through unchanged.
func NormalizeStatus(s Status) Status {
	if canonical, ok := legacyAliases[s]; ok {
		return canonical
	}
	return s
}

// aliasesFor returns every stored representation of a canonical status,
// for guarded UPDATE ... WHERE status IN (...) clauses.
func aliasesFor(s Status) []string {
	out := []string{string(s)}
	for alias, canonical := range legacyAliases {
		if canonical == s {
			out = append(out, string(alias))
		}
	}
	return out
}

// allowedTransitions encodes the full transition relation. CANCELLED and
// EXPIRED are terminal sinks. HOLD -> HOLD is an explicit no-op so that
// duplicate hold-side events do not error.
var allowedTransitions = map[Status]map[Status]bool{
	StatusHold: {
		StatusHold:      true,
		StatusConfirmed: true,
		StatusCancelled: true,
		StatusExpired:   true,
	},
	StatusConfirmed: {
		StatusCancelled: true,
	},
	StatusCancelled: {},
	StatusExpired:   {},
}

// CanTransition reports whether from -> to is permitted. Both sides are
// normalized first.
func CanTransition(from, to Status) bool {
	targets, ok := allowedTransitions[NormalizeStatus(from)]
	if !ok {
		return false
	}
	return targets[NormalizeStatus(to)]
}

// IsTerminal reports whether the status admits no further transitions.
func IsTerminal(s Status) bool {
	return len(allowedTransitions[NormalizeStatus(s)]) == 0
}
