package source

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/hazard-alert-feed/internal/domain"
	"github.com/couchcryptid/hazard-alert-feed/internal/selector"
)

const (
	TsunamiName = "NOAA Tsunami"

	// NTWCEndpoint is the National Tsunami Warning Center (Palmer) feed.
	NTWCEndpoint = "https://www.tsunami.gov/events/xml/PAAQAtom.xml"
	// PTWCEndpoint is the Pacific Tsunami Warning Center (Honolulu) feed.
	PTWCEndpoint = "https://www.tsunami.gov/events/xml/PHEBAtom.xml"

	tsunamiHeader = "TSUNAMI WARNING CENTER"
)

// tsunamiKeywords are tested in order; the first present keyword decides the
// level regardless of where it appears in the bulletin.
var tsunamiKeywords = []struct {
	phrase string
	level  domain.AlertLevel
}{
	{"TSUNAMI THREAT MESSAGE", domain.LevelWarning},
	{"TSUNAMI WARNING", domain.LevelWarning},
	{"TSUNAMI WATCH", domain.LevelWatch},
	{"TSUNAMI ADVISORY", domain.LevelAdvisory},
}

var tsunamiCancellations = []string{
	"IS CANCELLED",
	"IS NOW CANCELLED",
	"TSUNAMI THREAT HAS NOW LARGELY PASSED",
	"NO LONGER A TSUNAMI THREAT",
	"FINAL TSUNAMI THREAT MESSAGE",
}

// Only the non-segmented products are supported.
var tsunamiRegions = []struct {
	code   string
	region string
}{
	{"WEAK51", "Alaska, British Colombia, U.S. West Coast"},
	{"WEHW40", "Hawaii"},
	{"WEZS40", "American Samoa"},
	{"WEGM40", "Guam, CNMI"},
	{"WEXX30", "U.S. Atlantic, Gulf of Mexico, Canada"},
	{"WECA40", "Puerto Rico, Virgin Islands"},
}

// TsunamiRegion returns the region of the product code embedded in link.
func TsunamiRegion(link string) (string, bool) {
	for _, r := range tsunamiRegions {
		if strings.Contains(link, r.code) {
			return r.region, true
		}
	}
	return "", false
}

// TsunamiSpecification describes a tsunami.gov Atom feed. Each entry carries a
// link titled "Bulletin" pointing at the text product.
func TsunamiSpecification(endpoint string) Specification {
	return Specification{
		SourceName:        TsunamiName,
		EndpointURL:       endpoint,
		Format:            selector.FormatXML,
		Items:             selector.Text("entry"),
		Title:             selector.Key("title").With(selector.CollapseSpace),
		Link:              selector.Attr("link[title=Bulletin][href]", "href"),
		UniqueID:          selector.Text("id").With(selector.NonEmpty),
		PublishedDate:     selector.Text("updated").With(selector.NonEmpty),
		Summary:           selector.Key("summary").With(selector.CollapseSpace),
		DefaultAlertType:  domain.TypeWater,
		UseLinkForSummary: true,
	}
}

// NewTsunamiSource creates a tsunami warning center source. documents fetches
// bulletins and may be nil to reuse fetcher.
func NewTsunamiSource(endpoint string, fetcher, documents Fetcher, concurrency int, logger *slog.Logger) *FollowUpFeedSource {
	return NewFollowUpFeedSource(TsunamiSpecification(endpoint), FollowUpConfig{
		Feed:        fetcher,
		Documents:   documents,
		Process:     ProcessTsunamiEntries,
		Classifier:  TsunamiClassifier{},
		ActiveOnly:  true,
		Concurrency: concurrency,
	}, logger)
}

// ProcessTsunamiEntries prefixes titles and drops entries whose bulletin is
// not one of the supported products.
func ProcessTsunamiEntries(drafts []domain.Alert) []domain.Alert {
	out := make([]domain.Alert, 0, len(drafts))
	for _, d := range drafts {
		if _, ok := TsunamiRegion(d.Link); !ok {
			continue
		}
		d.Title = "Tsunami " + d.Title
		d.Type = domain.TypeWater
		d.Level = domain.LevelUnclassified
		out = append(out, d)
	}
	return out
}

// TsunamiClassifier reads the level out of a tsunami bulletin.
type TsunamiClassifier struct{}

// Classify reads the bulletin body after the warning center header. Matching is
// case-insensitive. Cancellation language marks the alert expired; a bulletin
// carrying neither cancellation nor a level keyword is rejected.
func (TsunamiClassifier) Classify(a domain.Alert, fullText string) (domain.Alert, domain.Classification) {
	body := tsunamiBody(fullText)

	for _, phrase := range tsunamiCancellations {
		if strings.Contains(body, phrase) {
			return a, domain.Expired()
		}
	}

	for _, kw := range tsunamiKeywords {
		if !strings.Contains(body, kw.phrase) {
			continue
		}
		region, ok := TsunamiRegion(a.Link)
		if !ok {
			return a, domain.Rejected()
		}
		a.Title = fmt.Sprintf("Tsunami %s for %s", kw.level, region)
		return a, domain.Active(kw.level)
	}
	return a, domain.Rejected()
}

// tsunamiBody upper-cases the text and drops everything up to and including
// the first header. Later mentions of the center's name are blanked so they do
// not read as a warning keyword.
func tsunamiBody(fullText string) string {
	upper := strings.ToUpper(fullText)
	if i := strings.Index(upper, tsunamiHeader); i >= 0 {
		upper = upper[i+len(tsunamiHeader):]
	}
	return strings.TrimSpace(strings.ReplaceAll(upper, tsunamiHeader, " "))
}
