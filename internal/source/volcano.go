package source

import (
	"fmt"
	"log/slog"

	"github.com/couchcryptid/hazard-alert-feed/internal/domain"
	"github.com/couchcryptid/hazard-alert-feed/internal/selector"
)

const (
	USGSVolcanoName       = "USGS Volcanoes"
	USGSVolcanoEndpoint   = "https://volcanoes.usgs.gov/vsc/api/volcanoApi/elevated"
	volcanoLevelAttribute = "alertLevel"
	volcanoNameAttribute  = "vName"
)

// VolcanoSpecification describes the USGS elevated-volcano API: a JSON array
// of volcanoes currently above normal status.
func VolcanoSpecification(endpoint string) Specification {
	return Specification{
		SourceName:    USGSVolcanoName,
		EndpointURL:   endpoint,
		Format:        selector.FormatJSON,
		Items:         selector.Root(),
		Title:         selector.Key("vName"),
		Link:          selector.Key("noticeUrl"),
		UniqueID:      selector.Key("vnum"),
		PublishedDate: selector.Key("alertDate").With(selector.SpaceToISO8601),
		Summary:       selector.Key("noticeSynopsis"),
		AdditionalAttributes: map[string]selector.Selector{
			volcanoLevelAttribute: selector.Key("alertLevel"),
			volcanoNameAttribute:  selector.Key("vName"),
		},
		DefaultAlertType: domain.TypeVolcano,
	}
}

// NewVolcanoSource creates the USGS volcano source.
func NewVolcanoSource(endpoint string, fetcher Fetcher, logger *slog.Logger) *StructuredFeedSource {
	if endpoint == "" {
		endpoint = USGSVolcanoEndpoint
	}
	return NewStructuredFeedSource(VolcanoSpecification(endpoint), fetcher, ProcessVolcanoes, false, logger)
}

// ProcessVolcanoes maps the USGS aviation/ground alert word onto a level and
// drops volcanoes whose word is not advisory, watch, or warning.
func ProcessVolcanoes(drafts []domain.Alert) []domain.Alert {
	out := make([]domain.Alert, 0, len(drafts))
	for _, d := range drafts {
		level := domain.ParseLevel(d.AdditionalAttributes[volcanoLevelAttribute])
		a, keep := domain.ClassifyLevel(level).Apply(d, false)
		if !keep {
			continue
		}
		name := d.AdditionalAttributes[volcanoNameAttribute]
		if name == "" {
			name = d.Title
		}
		a.Title = fmt.Sprintf("Volcano %s for %s", a.Level, name)
		out = append(out, a)
	}
	return out
}
