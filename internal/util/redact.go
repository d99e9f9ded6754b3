package util

import (
	"regexp"
	"strings"
)

var (
	// Matches "Bearer <token>". Keep it broad: the portal token shows up in
	// logs via downstream libraries and HTTP error messages.
	bearerTokenRe = regexp.MustCompile(`(?i)\bBearer\s+[^\s"']+`)

	// Common key=value formats that sometimes leak in error strings.
	tokenKVRe = regexp.MustCompile(`(?i)\b(api[_-]?key|access[_-]?token|sams[_-]?token)\b\s*[:=]\s*[^\s"']+`)

	// Bare 12-digit Aadhaar numbers. Student identifiers must never reach logs.
	aadhaarRe = regexp.MustCompile(`\b\d{12}\b`)
)

// RedactSecrets removes secret-bearing and personally identifying substrings
// from error/log strings.
//
// This is intentionally conservative: it should be safe to call on any message,
// including upstream error strings and raw portal responses.
func RedactSecrets(s string) string {
	if s == "" {
		return ""
	}
	out := s
	out = bearerTokenRe.ReplaceAllString(out, "Bearer <redacted>")
	out = tokenKVRe.ReplaceAllString(out, "<redacted_kv>")
	out = aadhaarRe.ReplaceAllString(out, "<redacted_id>")
	return strings.TrimSpace(out)
}
