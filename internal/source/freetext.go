package source

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/couchcryptid/hazard-alert-feed/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Message is one record of a free-text product stream.
type Message struct {
	IssueDatetime string `json:"issue_datetime"`
	Message       string `json:"message"`
}

// FreeTextRules describe how one alert family is recognized in a noisy
// stream of free-text messages.
type FreeTextRules struct {
	// Trigger must appear in a message for it to be considered at all.
	Trigger string
	// Title's second capture group becomes the alert title. No match leaves
	// the title empty.
	Title *regexp.Regexp
	// Dates captures yearless "Jan 02" mentions in its first group.
	Dates *regexp.Regexp
	// Window bounds how far a disambiguated date may be from the publish time.
	Window time.Duration

	// UniqueID is shared by every alert of the family so only the newest
	// survives normalization.
	UniqueID string
	Link     string
	Type     domain.AlertType
	Level    domain.AlertLevel
}

// FreeTextFeedSource classifies a JSON array of timestamped messages with
// regular expressions.
type FreeTextFeedSource struct {
	name    string
	url     string
	fetcher Fetcher
	rules   FreeTextRules
	logger  *slog.Logger
}

// NewFreeTextFeedSource creates a free-text source reading url.
func NewFreeTextFeedSource(name, url string, fetcher Fetcher, rules FreeTextRules, logger *slog.Logger) *FreeTextFeedSource {
	return &FreeTextFeedSource{name: name, url: url, fetcher: fetcher, rules: rules, logger: logger}
}

func (s *FreeTextFeedSource) Alerts(ctx context.Context, since time.Time) ([]domain.Alert, error) {
	data, err := s.fetcher.Fetch(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}

	var messages []Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", s.name, domain.ErrParse, err)
	}

	alerts := make([]domain.Alert, 0, len(messages))
	for _, m := range messages {
		a, ok, err := s.classify(m)
		if err != nil {
			s.logger.Debug("dropping message", "source", s.name, "error", err)
			continue
		}
		if ok {
			alerts = append(alerts, a)
		}
	}
	return domain.Normalize(alerts, since), nil
}

// classify turns one message into an alert. ok is false for messages outside
// the alert family.
func (s *FreeTextFeedSource) classify(m Message) (domain.Alert, bool, error) {
	if !strings.Contains(m.Message, s.rules.Trigger) {
		return domain.Alert{}, false, nil
	}

	raw := strings.TrimSpace(m.IssueDatetime)
	if raw == "" {
		return domain.Alert{}, false, fmt.Errorf("%w: issue datetime", domain.ErrFieldMissing)
	}
	published, err := domain.ParseTimestamp(strings.Replace(raw, " ", "T", 1) + "Z")
	if err != nil {
		return domain.Alert{}, false, err
	}

	var title string
	if s.rules.Title != nil {
		if match := s.rules.Title.FindStringSubmatch(m.Message); len(match) > 2 {
			title = strings.TrimSpace(match[2])
		}
	}

	a := domain.Alert{
		Title:         title,
		Source:        s.name,
		Type:          s.rules.Type,
		Level:         s.rules.Level,
		Link:          s.rules.Link,
		UniqueID:      s.rules.UniqueID,
		PublishedDate: published,
		Summary:       m.Message,
	}
	if s.rules.Dates != nil {
		a.ExpirationDate = Disambiguate(mentions(s.rules.Dates, m.Message), published, s.rules.Window)
	}
	return a, true, nil
}

func mentions(re *regexp.Regexp, text string) []string {
	matches := re.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if len(m) > 1 {
			out = append(out, m[1])
		}
	}
	return out
}

// Disambiguate resolves yearless "Jan 02" mentions against published. Each
// mention yields an end-of-day candidate in the publish year and the year
// after; candidates strictly within window of published survive and the
// latest wins. A winner that precedes published is clamped to published, so
// the alert reads as already expired. It returns nil when nothing survives.
func Disambiguate(days []string, published time.Time, window time.Duration) *time.Time {
	published = published.UTC()
	var best *time.Time
	for _, mention := range days {
		mention = strings.Join(strings.Fields(mention), " ")
		for _, year := range []int{published.Year(), published.Year() + 1} {
			day, err := time.ParseInLocation("Jan 02 2006", mention+" "+strconv.Itoa(year), time.UTC)
			if err != nil {
				continue
			}
			candidate := domain.EndOfDay(day)
			if absDuration(candidate.Sub(published)) >= window {
				continue
			}
			if best == nil || candidate.After(*best) {
				c := candidate
				best = &c
			}
		}
	}
	if best != nil && best.Before(published) {
		return &published
	}
	return best
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func (s *FreeTextFeedSource) SystemName() string { return s.name }

// IsActiveOnly is false: messages outside the family are dropped, never
// kept as expired.
func (s *FreeTextFeedSource) IsActiveOnly() bool { return false }
