package domain

import "strings"

// Verdict is the outcome of classifying an alert.
type Verdict int

const (
	// VerdictRejected drops the alert: it is irrelevant or unrecognized.
	VerdictRejected Verdict = iota
	// VerdictActive keeps the alert at the classified level.
	VerdictActive
	// VerdictExpired keeps the alert but marks it as already expired at its
	// own publish time (cancellations, downgrades).
	VerdictExpired
)

func (v Verdict) String() string {
	switch v {
	case VerdictActive:
		return "active"
	case VerdictExpired:
		return "expired"
	default:
		return "rejected"
	}
}

// Classification is what a source's classifier decided about one alert.
type Classification struct {
	Verdict Verdict
	Level   AlertLevel
}

// Active classifies an alert as in force at the given level.
func Active(level AlertLevel) Classification {
	return Classification{Verdict: VerdictActive, Level: level}
}

// Expired classifies an alert as cancelled or no longer in force.
func Expired() Classification {
	return Classification{Verdict: VerdictExpired, Level: LevelOther}
}

// Rejected classifies an alert as one to drop.
func Rejected() Classification {
	return Classification{Verdict: VerdictRejected, Level: LevelOther}
}

// ClassifyLevel turns a parsed level into a classification: actionable levels
// are Active, everything else is Rejected.
func ClassifyLevel(level AlertLevel) Classification {
	if level.Actionable() {
		return Active(level)
	}
	return Rejected()
}

// Apply returns the alert updated for the classification and whether it
// should be kept. Expired alerts are only kept when keepExpired is true.
func (c Classification) Apply(a Alert, keepExpired bool) (Alert, bool) {
	switch c.Verdict {
	case VerdictActive:
		a.Level = c.Level
		return a, true
	case VerdictExpired:
		if !keepExpired {
			return a, false
		}
		published := a.PublishedDate
		a.Level = LevelOther
		a.ExpirationDate = &published
		return a, true
	default:
		return a, false
	}
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
