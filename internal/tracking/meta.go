package tracking

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/franciscoquinteros/landing-anto/internal/model"
)

// DefaultGeoHeader is set by Cloudflare with the visitor's country.
const DefaultGeoHeader = "CF-IPCountry"

// RequestMeta is the request data a click event is built from.
type RequestMeta struct {
	Referrer  string
	UserAgent string
	Country   string
}

// MetaFromRequest extracts click metadata from r. The country is read from
// geoHeader, or DefaultGeoHeader when empty.
func MetaFromRequest(r *http.Request, geoHeader string) RequestMeta {
	if geoHeader == "" {
		geoHeader = DefaultGeoHeader
	}
	referrer := r.Header.Get("Referer")
	if referrer == "" {
		referrer = r.Header.Get("Referrer")
	}
	return RequestMeta{
		Referrer:  referrer,
		UserAgent: r.UserAgent(),
		Country:   r.Header.Get(geoHeader),
	}
}

// ReferrerHost returns the host name of a Referer value, or nil when the
// value is missing, unparseable or has no host.
func ReferrerHost(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	host := u.Hostname()
	if host == "" {
		return nil
	}
	return &host
}

// TruncateUserAgent keeps the first model.MaxUserAgentLength characters.
func TruncateUserAgent(ua string) string {
	if len(ua) <= model.MaxUserAgentLength {
		return ua
	}
	runes := []rune(ua)
	if len(runes) <= model.MaxUserAgentLength {
		return ua
	}
	return string(runes[:model.MaxUserAgentLength])
}

// CountryCode normalizes a two-letter country code, or returns nil.
func CountryCode(raw string) *string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != 2 {
		return nil
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return nil
		}
	}
	return &code
}
