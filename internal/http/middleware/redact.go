package middleware

import (
	"net/http"
	"regexp"
	"strings"
)

var (
	uuidRE   = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-7][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`)
	emailRE  = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	bearerRE = regexp.MustCompile(`(?i)\bbearer\s+[a-z0-9._~+/=\-]+`)
	secretRE = regexp.MustCompile(`(?i)\b((?:api_?key|token|secret|signature)=)[^&\s]+`)
	// Brazilian numbers with optional +55, area code and 8/9 digit subscriber.
	phoneRE = regexp.MustCompile(`(?:\+?55[ .-]?)?\(?\d{2}\)?[ .-]?\d{4,5}[ .-]?\d{4}`)
)

// RedactOptions lists extra headers whose values are always replaced.
type RedactOptions struct {
	MaskHeaders []string
}

// Redactor scrubs personal data and credentials from strings and headers
// before they are logged.
type Redactor struct {
	masked map[string]struct{}
}

// NewRedactor builds a Redactor. Authorization, cookies, the Evolution
// apikey header and the webhook signature are always masked.
func NewRedactor(opts RedactOptions) *Redactor {
	m := map[string]struct{}{
		"authorization":       {},
		"cookie":              {},
		"set-cookie":          {},
		"apikey":              {},
		"x-webhook-signature": {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			m[h] = struct{}{}
		}
	}
	return &Redactor{masked: m}
}

// Scrub replaces ids, credentials, e-mail addresses and phone numbers in s.
// Ids go first so the phone pattern cannot bite into UUID digit runs.
func (r *Redactor) Scrub(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = bearerRE.ReplaceAllString(s, "Bearer [REDACTED]")
	s = secretRE.ReplaceAllString(s, "${1}[REDACTED]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// Headers returns a log-safe copy of h.
func (r *Redactor) Headers(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, ok := r.masked[strings.ToLower(k)]; ok {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = r.Scrub(strings.Join(vv, ", "))
	}
	return out
}
