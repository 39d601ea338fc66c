package domain

import (
	"fmt"
	"time"
)

// AlertType describes the hazard domain of an alert, not its severity.
type AlertType string

const (
	TypeVolcano      AlertType = "Volcano"
	TypeWater        AlertType = "Water"
	TypeSpaceWeather AlertType = "SpaceWeather"
	TypeEarthquake   AlertType = "Earthquake"
	TypeWeather      AlertType = "Weather"
	TypeOther        AlertType = "Other"
)

// AlertLevel is the normalized severity of an alert.
type AlertLevel string

const (
	// LevelUnclassified marks a draft alert that has not been through a
	// source's classification yet.
	LevelUnclassified AlertLevel = ""
	LevelAdvisory     AlertLevel = "Advisory"
	LevelWatch        AlertLevel = "Watch"
	LevelWarning      AlertLevel = "Warning"
	// LevelOther is not actionable. Alerts carrying it are either dropped or
	// kept as already expired.
	LevelOther AlertLevel = "Other"
)

// Rank orders levels for display: Advisory < Watch < Warning. Other and
// unclassified levels rank below everything.
func (l AlertLevel) Rank() int {
	switch l {
	case LevelAdvisory:
		return 1
	case LevelWatch:
		return 2
	case LevelWarning:
		return 3
	default:
		return 0
	}
}

// Actionable reports whether the level is one of Advisory, Watch, or Warning.
func (l AlertLevel) Actionable() bool {
	return l.Rank() > 0
}

// ParseLevel maps an agency's level word (any case) onto an AlertLevel.
// Unrecognized words map to LevelOther.
func ParseLevel(word string) AlertLevel {
	switch lower(word) {
	case "advisory":
		return LevelAdvisory
	case "watch":
		return LevelWatch
	case "warning":
		return LevelWarning
	default:
		return LevelOther
	}
}

// Alert is the normalized hazard notification every source produces.
type Alert struct {
	// ID is a surrogate key owned by whatever persists alerts downstream.
	// It is always zero when produced by a source.
	ID                int64      `json:"id"`
	Title             string     `json:"title"`
	Source            string     `json:"source"`
	Type              AlertType  `json:"type"`
	Level             AlertLevel `json:"level"`
	Link              string     `json:"link"`
	UniqueID          string     `json:"unique_id"`
	PublishedDate     time.Time  `json:"published_date"`
	Summary           string     `json:"summary"`
	ExpirationDate    *time.Time `json:"expiration_date,omitempty"`
	UseLinkForSummary bool       `json:"use_link_for_summary"`

	// AdditionalAttributes holds the named selector values captured while
	// building a draft alert from a feed item.
	AdditionalAttributes map[string]string `json:"additional_attributes,omitempty"`
}

// IsExpired reports whether the alert has an expiration at or before t.
func (a Alert) IsExpired(t time.Time) bool {
	return a.ExpirationDate != nil && !a.ExpirationDate.After(t)
}

// IsActive reports whether the alert is actionable and not expired at t.
func (a Alert) IsActive(t time.Time) bool {
	return a.Level.Actionable() && !a.IsExpired(t)
}

// Validate checks the invariants every emitted alert must satisfy.
func (a Alert) Validate() error {
	if a.UniqueID == "" {
		return fmt.Errorf("%w: unique id", ErrFieldMissing)
	}
	if a.PublishedDate.IsZero() {
		return fmt.Errorf("%w: published date", ErrFieldMissing)
	}
	if a.ExpirationDate != nil && a.ExpirationDate.Before(a.PublishedDate) {
		return fmt.Errorf("alert %s: expiration %s before published %s",
			a.UniqueID, a.ExpirationDate.Format(time.RFC3339), a.PublishedDate.Format(time.RFC3339))
	}
	return nil
}

// ActiveOnly returns the alerts that are active at t, preserving order.
func ActiveOnly(alerts []Alert, t time.Time) []Alert {
	out := make([]Alert, 0, len(alerts))
	for i := range alerts {
		if alerts[i].IsActive(t) {
			out = append(out, alerts[i])
		}
	}
	return out
}
