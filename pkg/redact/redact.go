package redact

import (
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
)

// Placeholder replaces credential values in scrubbed text.
const Placeholder = "[REDACTED]"

var enabled atomic.Bool

var (
	emailRe = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	phoneRe = regexp.MustCompile(`\b\+?\d[\d\s\-]{7,}\d\b`)
)

// SetEnabled toggles PII redaction.
func SetEnabled(v bool) {
	enabled.Store(v)
}

// Enabled returns true when redaction is active.
func Enabled() bool {
	return enabled.Load()
}

// Text redacts emails and phone numbers when enabled.
func Text(in string) string {
	if !enabled.Load() || strings.TrimSpace(in) == "" {
		return in
	}
	out := emailRe.ReplaceAllString(in, "[REDACTED_EMAIL]")
	out = phoneRe.ReplaceAllString(out, "[REDACTED_PHONE]")
	return out
}

// Secrets replaces every occurrence of the given secret values in text.
// It runs regardless of SetEnabled: credentials are never shown.
// Longer secrets are replaced first so a secret that contains another is
// not left half visible.
func Secrets(in string, secrets ...string) string {
	if in == "" || len(secrets) == 0 {
		return in
	}
	ordered := make([]string, 0, len(secrets))
	for _, s := range secrets {
		if strings.TrimSpace(s) != "" {
			ordered = append(ordered, s)
		}
	}
	sort.Slice(ordered, func(i, j int) bool { return len(ordered[i]) > len(ordered[j]) })
	out := in
	for _, s := range ordered {
		out = strings.ReplaceAll(out, s, Placeholder)
	}
	return out
}
