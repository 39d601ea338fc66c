package selector

import "strings"

// Transform rewrites a raw extracted value. ok is false when the selector
// found nothing; a transform may supply a value or keep it absent.
type Transform func(value string, ok bool) (string, bool)

// SpaceToISO8601 coerces "2024-01-02 03:04:00" into "2024-01-02T03:04:00Z".
// Values already carrying a zone designator only get the T separator.
func SpaceToISO8601(value string, ok bool) (string, bool) {
	if !ok {
		return "", false
	}
	value = strings.Replace(strings.TrimSpace(value), " ", "T", 1)
	if value == "" {
		return "", false
	}
	if !hasZone(value) {
		value += "Z"
	}
	return value, true
}

// NonEmpty treats blank values as absent.
func NonEmpty(value string, ok bool) (string, bool) {
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}

// Upper upper-cases present values.
func Upper(value string, ok bool) (string, bool) {
	if !ok {
		return "", false
	}
	return strings.ToUpper(value), true
}

// CollapseSpace folds runs of whitespace (including newlines from XML text
// nodes) into single spaces.
func CollapseSpace(value string, ok bool) (string, bool) {
	if !ok {
		return "", false
	}
	return strings.Join(strings.Fields(value), " "), true
}

// Default returns a transform that substitutes fallback for absent values.
func Default(fallback string) Transform {
	return func(value string, ok bool) (string, bool) {
		if !ok {
			return fallback, true
		}
		return value, true
	}
}

func hasZone(value string) bool {
	if strings.HasSuffix(value, "Z") {
		return true
	}
	t := strings.IndexByte(value, 'T')
	if t < 0 {
		return false
	}
	clock := value[t+1:]
	return strings.ContainsAny(clock, "+-")
}
