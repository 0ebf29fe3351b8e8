package configutil

import (
	"sort"
	"strings"
)

// Schema lists the keys a vendor settings block may carry.
type Schema struct {
	Required []string
	Optional []string
}

// Keys returns every key the schema accepts, required first.
func (s Schema) Keys() []string {
	out := make([]string, 0, len(s.Required)+len(s.Optional))
	out = append(out, s.Required...)
	return append(out, s.Optional...)
}

// SettingsError reports the keys that failed validation under Path.
type SettingsError struct {
	Path    string
	Missing []string
	Unknown []string
}

func (e *SettingsError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, "unknown: "+strings.Join(e.Unknown, ", "))
	}
	msg := strings.Join(parts, "; ")
	if e.Path == "" {
		return msg
	}
	return e.Path + ": " + msg
}

// ValidateSettings checks input against schema. Keys match regardless of
// case, underscores and hyphens. A blank string counts as missing.
func ValidateSettings(path string, input map[string]any, schema Schema) error {
	required := make(map[string]string, len(schema.Required))
	for _, k := range schema.Required {
		required[normalizeKey(k)] = k
	}
	allowed := make(map[string]struct{}, len(schema.Required)+len(schema.Optional))
	for _, k := range schema.Keys() {
		allowed[normalizeKey(k)] = struct{}{}
	}

	var missing, unknown []string
	present := make(map[string]bool, len(input))
	for k, v := range input {
		nk := normalizeKey(k)
		if _, ok := allowed[nk]; !ok {
			unknown = append(unknown, k)
			continue
		}
		if reqKey, ok := required[nk]; ok && isBlank(v) {
			missing = append(missing, reqKey)
			continue
		}
		present[nk] = true
	}
	for nk, reqKey := range required {
		if !present[nk] && !contains(missing, reqKey) {
			missing = append(missing, reqKey)
		}
	}

	if len(missing) == 0 && len(unknown) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(unknown)
	return &SettingsError{Path: path, Missing: missing, Unknown: unknown}
}

func isBlank(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	default:
		return false
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
