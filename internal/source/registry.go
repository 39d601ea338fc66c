package source

import (
	"fmt"
	"log/slog"
	"sort"
)

// Registry keys of the built-in sources.
const (
	KeyUSGSVolcano     = "usgs-volcano"
	KeyNTWCTsunami     = "ntwc-tsunami"
	KeyPTWCTsunami     = "ptwc-tsunami"
	KeySWPCGeomagnetic = "swpc-geomagnetic"
)

var defaultEndpoints = map[string]string{
	KeyUSGSVolcano:     USGSVolcanoEndpoint,
	KeyNTWCTsunami:     NTWCEndpoint,
	KeyPTWCTsunami:     PTWCEndpoint,
	KeySWPCGeomagnetic: SWPCEndpoint,
}

// Keys returns the registry keys of all built-in sources in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(defaultEndpoints))
	for k := range defaultEndpoints {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultEndpoint returns the agency endpoint of a built-in source.
func DefaultEndpoint(key string) (string, bool) {
	e, ok := defaultEndpoints[key]
	return e, ok
}

// Deps are the collaborators shared by every source.
type Deps struct {
	Fetcher Fetcher
	// Documents fetches follow-up bulletins. Nil reuses Fetcher.
	Documents           Fetcher
	FollowUpConcurrency int
	Logger              *slog.Logger
}

// New builds the source registered under key. An empty endpoint selects the
// agency default.
func New(key, endpoint string, deps Deps) (AlertSource, error) {
	def, ok := defaultEndpoints[key]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", key)
	}
	if endpoint == "" {
		endpoint = def
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("source", key)

	switch key {
	case KeyUSGSVolcano:
		return NewVolcanoSource(endpoint, deps.Fetcher, logger), nil
	case KeyNTWCTsunami, KeyPTWCTsunami:
		return NewTsunamiSource(endpoint, deps.Fetcher, deps.Documents, deps.FollowUpConcurrency, logger), nil
	case KeySWPCGeomagnetic:
		return NewSWPCSource(endpoint, deps.Fetcher, logger), nil
	default:
		return nil, fmt.Errorf("unknown source %q", key)
	}
}
