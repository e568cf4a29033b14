package converse

import "strings"

// Intent is the classified visualization for a query's results. Unknown is
// a valid terminal state: it produces an explicit user-visible failure, not
// a silent default.
type Intent int

const (
	IntentUnknown Intent = iota
	IntentTable
	IntentChart
)

// String returns the intent's name.
func (i Intent) String() string {
	switch i {
	case IntentTable:
		return "table"
	case IntentChart:
		return "chart"
	}
	return "unknown"
}

// ParseIntent derives the visualization intent from the classifier's answer.
// The match is case-insensitive on literal substrings, chart before table.
func ParseIntent(response string) Intent {
	lower := strings.ToLower(response)
	switch {
	case strings.Contains(lower, "chart"):
		return IntentChart
	case strings.Contains(lower, "table"):
		return IntentTable
	}
	return IntentUnknown
}
