package sizes

import "strings"

// Normalize brings a provider size label to canonical form: trimmed, upper
// unit prefix removed, decimal comma folded to a dot, and a trailing ".0"
// dropped ("US 10,5" → "10.5", "9.0" → "9").
func Normalize(size string) string {
	s := strings.TrimSpace(size)
	for _, pfx := range []string{"US ", "EU ", "UK ", "JP ", "W ", "M "} {
		if strings.HasPrefix(strings.ToUpper(s), pfx) {
			s = strings.TrimSpace(s[len(pfx):])
			break
		}
	}
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.TrimSuffix(s, ".0")
	return s
}

// Set builds a normalized lookup set from a size run.
func Set(run []string) map[string]struct{} {
	out := make(map[string]struct{}, len(run))
	for _, s := range run {
		if n := Normalize(s); n != "" {
			out[n] = struct{}{}
		}
	}
	return out
}

// Allowed reports whether the size is part of the declared run. An empty
// run allows everything (the run is learned from the provider lazily).
func Allowed(run map[string]struct{}, size string) bool {
	if len(run) == 0 {
		return true
	}
	_, ok := run[Normalize(size)]
	return ok
}
