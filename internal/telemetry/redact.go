package telemetry

import (
	"net/url"
	"regexp"
	"strings"
)

// RedactionMarker replaces every sensitive value so artifacts stay shareable.
const RedactionMarker = "REDACTED"

// defaultSensitiveKeys are always redacted, regardless of configuration.
var defaultSensitiveKeys = []string{
	"api_key",
	"apikey",
	"access_token",
	"token",
	"secret",
	"signature",
	"sig",
	"key",
	"client_secret",
	"password",
}

var (
	bearerRe = regexp.MustCompile(`(?i)\bBearer\s+\S+`)
	basicRe  = regexp.MustCompile(`(?i)\bBasic\s+\S+`)
)

// Redactor rewrites sensitive query-parameter values. The default key set is
// unioned with configured extras; matching is case-insensitive on the name.
type Redactor struct {
	sensitive map[string]struct{}
}

// NewRedactor builds a redactor from the default set plus extra parameter names.
func NewRedactor(extra ...string) *Redactor {
	sensitive := make(map[string]struct{}, len(defaultSensitiveKeys)+len(extra))
	for _, k := range defaultSensitiveKeys {
		sensitive[k] = struct{}{}
	}

	for _, k := range extra {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			sensitive[k] = struct{}{}
		}
	}

	return &Redactor{sensitive: sensitive}
}

func (r *Redactor) isSensitive(name string) bool {
	name = strings.ToLower(name)
	if _, ok := r.sensitive[name]; ok {
		return true
	}

	// Heuristics for names the fixed set does not enumerate.
	return strings.Contains(name, "token") ||
		strings.Contains(name, "secret") ||
		strings.HasSuffix(name, "key")
}

// RedactURL replaces the values of sensitive query parameters, leaving the
// parameter names intact. Redaction is idempotent: an already-redacted URL
// comes back unchanged.
func (r *Redactor) RedactURL(rawURL string) string {
	if rawURL == "" {
		return rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" {
		return rawURL
	}

	q := u.Query()
	for name := range q {
		if r.isSensitive(name) {
			q[name] = []string{RedactionMarker}
		}
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// RedactText scrubs bearer and basic credentials from free-form text, such as
// error strings that may echo request headers.
func RedactText(text string) string {
	if text == "" {
		return text
	}

	text = bearerRe.ReplaceAllString(text, "Bearer "+RedactionMarker)
	text = basicRe.ReplaceAllString(text, "Basic "+RedactionMarker)

	return text
}
