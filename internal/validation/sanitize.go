package validation

import "regexp"

var scriptPattern = regexp.MustCompile(`(?is)<script\b.*?</script\s*>`)

// SanitizeString removes every <script>...</script> block from s.
func SanitizeString(s string) string {
	return scriptPattern.ReplaceAllString(s, "")
}

// Sanitize returns v with script blocks removed from every string it
// contains, recursing into maps and slices. Other values are returned
// unchanged.
func Sanitize(v any) any {
	switch t := v.(type) {
	case string:
		return SanitizeString(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = Sanitize(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Sanitize(item)
		}
		return out
	case map[string]string:
		return SanitizeStrings(t)
	case []string:
		out := make([]string, len(t))
		for i, item := range t {
			out[i] = SanitizeString(item)
		}
		return out
	default:
		return v
	}
}

// SanitizeStrings sanitizes every value of m into a new map.
func SanitizeStrings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = SanitizeString(v)
	}
	return out
}
