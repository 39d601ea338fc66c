package source

import (
	"log/slog"
	"regexp"
	"time"

	"github.com/couchcryptid/hazard-alert-feed/internal/domain"
)

const (
	SWPCName     = "Space Weather Prediction Center"
	SWPCEndpoint = "https://services.swpc.noaa.gov/products/alerts.json"
	SWPCLink     = "https://www.swpc.noaa.gov/"

	// GeomagneticStormID is shared by every geomagnetic storm watch; only the
	// newest is ever shown.
	GeomagneticStormID = "geomagnetic-storm"

	// DisambiguationWindow bounds how far a yearless date mention may land
	// from the message's issue time.
	DisambiguationWindow = 14 * 24 * time.Hour
)

// GeomagneticStormRules narrow the SWPC product stream to geomagnetic storm
// watches.
func GeomagneticStormRules() FreeTextRules {
	return FreeTextRules{
		Trigger:  "WATCH: Geomagnetic Storm Category",
		Title:    regexp.MustCompile(`(WARNING|ALERT|SUMMARY|WATCH):\s(.*)`),
		Dates:    regexp.MustCompile(`([A-Z][a-z]{2}\s\d{2}):`),
		Window:   DisambiguationWindow,
		UniqueID: GeomagneticStormID,
		Link:     SWPCLink,
		Type:     domain.TypeSpaceWeather,
		Level:    domain.LevelWatch,
	}
}

// NewSWPCSource creates the geomagnetic storm watch source.
func NewSWPCSource(endpoint string, fetcher Fetcher, logger *slog.Logger) *FreeTextFeedSource {
	if endpoint == "" {
		endpoint = SWPCEndpoint
	}
	return NewFreeTextFeedSource(SWPCName, endpoint, fetcher, GeomagneticStormRules(), logger)
}
