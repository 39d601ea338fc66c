package source

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hazard-alert-feed/internal/domain"
)

func swpcMessage(serial int, issued, body string) string {
	msg := fmt.Sprintf("Space Weather Message Code: WATA20\r\nSerial Number: %d\r\nIssue Time: %s UTC\r\n\r\n%s", serial, issued, body)
	return fmt.Sprintf(`{"product_id": "A20F", "issue_datetime": %q, "message": %q}`, issued, msg)
}

func swpcFeed(records ...string) string {
	return "[" + strings.Join(records, ",") + "]"
}

func TestSWPCSource_DisambiguatesAcrossYearEnd(t *testing.T) {
	f := newFakeFetcher(map[string]string{SWPCEndpoint: swpcFeed(
		swpcMessage(1, "2024-12-28 12:00:00.000",
			"WATCH: Geomagnetic Storm Category G1 Predicted\r\n\r\nHighest Storm Level Predicted by Day:\r\nDec 29:  G1 (Minor)   Dec 30:  None (Below G1)   Jan 03:  None (Below G1)"),
	)})

	alerts, err := NewSWPCSource("", f, discardLogger()).Alerts(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	a := alerts[0]
	assert.Equal(t, "Geomagnetic Storm Category G1 Predicted", a.Title)
	assert.Equal(t, GeomagneticStormID, a.UniqueID)
	assert.Equal(t, domain.LevelWatch, a.Level)
	assert.Equal(t, domain.TypeSpaceWeather, a.Type)
	assert.Equal(t, SWPCLink, a.Link)
	assert.Equal(t, SWPCName, a.Source)
	assert.Equal(t, time.Date(2024, 12, 28, 12, 0, 0, 0, time.UTC), a.PublishedDate)
	assert.Contains(t, a.Summary, "Highest Storm Level")
	assert.False(t, a.UseLinkForSummary)
	require.NotNil(t, a.ExpirationDate)
	assert.Equal(t, time.Date(2025, 1, 3, 23, 59, 59, 0, time.UTC), *a.ExpirationDate)
}

func TestSWPCSource_KeepsNewestStormWatch(t *testing.T) {
	f := newFakeFetcher(map[string]string{SWPCEndpoint: swpcFeed(
		swpcMessage(1, "2024-05-10 00:00:00.000", "WATCH: Geomagnetic Storm Category G2 Predicted\r\nMay 11:  G2"),
		swpcMessage(2, "2024-05-10 06:00:00.000", "ALERT: Electron 2MeV Integral Flux exceeded 1000pfu"),
		swpcMessage(3, "2024-05-11 00:00:00.000", "WATCH: Geomagnetic Storm Category G4 Predicted\r\nMay 12:  G4"),
	)})

	alerts, err := NewSWPCSource("", f, discardLogger()).Alerts(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Geomagnetic Storm Category G4 Predicted", alerts[0].Title)
	assert.Equal(t, time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC), alerts[0].PublishedDate)
}

func TestSWPCSource_SinceAndMalformedRecords(t *testing.T) {
	f := newFakeFetcher(map[string]string{SWPCEndpoint: swpcFeed(
		swpcMessage(1, "2024-05-10 00:00:00.000", "WATCH: Geomagnetic Storm Category G2 Predicted"),
		`{"issue_datetime": "", "message": "WATCH: Geomagnetic Storm Category G1 Predicted"}`,
		`{"issue_datetime": "garbage", "message": "WATCH: Geomagnetic Storm Category G1 Predicted"}`,
	)})

	alerts, err := NewSWPCSource("", f, discardLogger()).Alerts(context.Background(), mustTime(t, "2024-05-10T00:00:00Z"))
	require.NoError(t, err)
	assert.Empty(t, alerts, "published == since is excluded and malformed records are dropped")
}

func TestFreeTextFeedSource_NoTitleMatchYieldsEmptyTitle(t *testing.T) {
	rules := GeomagneticStormRules()
	rules.Trigger = "Geomagnetic"
	f := newFakeFetcher(map[string]string{SWPCEndpoint: swpcFeed(
		`{"issue_datetime": "2024-05-10 00:00:00.000", "message": "Geomagnetic activity expected"}`,
	)})

	src := NewFreeTextFeedSource(SWPCName, SWPCEndpoint, f, rules, discardLogger())
	alerts, err := src.Alerts(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Empty(t, alerts[0].Title)
	assert.Nil(t, alerts[0].ExpirationDate)
	assert.False(t, src.IsActiveOnly())
}

func TestFreeTextFeedSource_Failures(t *testing.T) {
	f := newFakeFetcher(map[string]string{SWPCEndpoint: `{"oops": true}`})
	_, err := NewSWPCSource("", f, discardLogger()).Alerts(context.Background(), time.Time{})
	assert.ErrorIs(t, err, domain.ErrParse)

	down := newFakeFetcher(nil)
	_, err = NewSWPCSource("", down, discardLogger()).Alerts(context.Background(), time.Time{})
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestDisambiguate(t *testing.T) {
	published := time.Date(2024, 12, 28, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		published time.Time
		mentions  []string
		want      *time.Time
	}{
		{
			name:      "next year within window",
			published: published,
			mentions:  []string{"Jan 03"},
			want:      ptr(time.Date(2025, 1, 3, 23, 59, 59, 0, time.UTC)),
		},
		{
			name:      "latest of several",
			published: published,
			mentions:  []string{"Dec 29", "Dec 31", "Dec 30"},
			want:      ptr(time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)),
		},
		{
			name:      "nothing within window",
			published: published,
			mentions:  []string{"Jun 01"},
			want:      nil,
		},
		{
			name:      "exactly fourteen days is outside",
			published: time.Date(2024, 1, 1, 23, 59, 59, 0, time.UTC),
			mentions:  []string{"Jan 15"},
			want:      nil,
		},
		{
			name:      "winner before publish time is clamped to it",
			published: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
			mentions:  []string{"Mar 05"},
			want:      ptr(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)),
		},
		{
			name:      "previous day just after midnight",
			published: time.Date(2025, 1, 5, 0, 30, 0, 0, time.UTC),
			mentions:  []string{"Jan 04"},
			want:      ptr(time.Date(2025, 1, 5, 0, 30, 0, 0, time.UTC)),
		},
		{
			name:      "tab and newline inside a mention",
			published: published,
			mentions:  []string{"Dec\t30", "Dec\n31"},
			want:      ptr(time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)),
		},
		{
			name:      "unparseable mention ignored",
			published: published,
			mentions:  []string{"Foo 99", "Dec 29"},
			want:      ptr(time.Date(2024, 12, 29, 23, 59, 59, 0, time.UTC)),
		},
		{
			name:      "no mentions",
			published: published,
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Disambiguate(tt.mentions, tt.published, DisambiguationWindow)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func ptr(t time.Time) *time.Time { return &t }
