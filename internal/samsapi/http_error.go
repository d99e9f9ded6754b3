package samsapi

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/odisha-policy-lab/sams-pipeline/internal/util"
)

const maxSnippetLen = 256

// HTTPError is a non-2xx portal response. The body snippet is redacted and
// truncated before it is stored so the error is safe to log.
type HTTPError struct {
	Endpoint   string
	StatusCode int
	Snippet    string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("sams api %s: status %d", e.Endpoint, e.StatusCode)
	if e.Snippet != "" {
		msg += ": " + e.Snippet
	}
	return msg
}

// Temporary reports whether a retry could plausibly succeed.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode/100 == 5
}

func newHTTPError(endpoint string, resp *http.Response, body []byte) *HTTPError {
	return &HTTPError{
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode,
		Snippet:    redactAndTruncate(body),
	}
}

func redactAndTruncate(body []byte) string {
	s := util.RedactSecrets(strings.TrimSpace(string(body)))
	if len(s) <= maxSnippetLen {
		return s
	}
	cut := maxSnippetLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
