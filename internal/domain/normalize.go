package domain

import (
	"sort"
	"time"
)

// Normalize is the aggregation stage every source ends with. It drops alerts
// not published strictly after since, orders the rest newest first (stable on
// ties), then keeps only the first alert for each UniqueID.
//
// The order matters: deduplicating before sorting would keep an arbitrary
// instance instead of the newest one.
func Normalize(alerts []Alert, since time.Time) []Alert {
	filtered := SinceFilter(alerts, since)

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].PublishedDate.After(filtered[j].PublishedDate)
	})

	seen := make(map[string]struct{}, len(filtered))
	out := filtered[:0]
	for i := range filtered {
		if _, dup := seen[filtered[i].UniqueID]; dup {
			continue
		}
		seen[filtered[i].UniqueID] = struct{}{}
		out = append(out, filtered[i])
	}
	return out
}

// SinceFilter keeps alerts published strictly after since, preserving order.
func SinceFilter(alerts []Alert, since time.Time) []Alert {
	out := make([]Alert, 0, len(alerts))
	for i := range alerts {
		if alerts[i].PublishedDate.After(since) {
			out = append(out, alerts[i])
		}
	}
	return out
}
