package identity

import (
	"net/url"
	"strings"
)

// Query keys the listing sites append for tracking. They change between
// polls for the same offer, so they must not be part of the identity key.
var trackingParams = map[string]bool{
	"reason":        true,
	"search_reason": true,
	"utm_source":    true,
	"utm_medium":    true,
	"utm_campaign":  true,
	"utm_content":   true,
	"utm_term":      true,
	"fbclid":        true,
	"gclid":         true,
}

// CanonicalLink returns a stable identity key for a listing URL: lowercase
// scheme and host, no fragment, no tracking parameters. Relative links are
// resolved against base when base is non-empty.
func CanonicalLink(raw, base string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if !u.IsAbs() && base != "" {
		b, err := url.Parse(base)
		if err == nil {
			u = b.ResolveReference(u)
		}
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			if trackingParams[strings.ToLower(key)] {
				q.Del(key)
			}
		}
		u.RawQuery = q.Encode()
	}

	return u.String()
}

// SameHost reports whether link points at host or one of its subdomains.
func SameHost(link, host string) bool {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return strings.Contains(link, host)
	}
	h := strings.ToLower(u.Hostname())
	host = strings.ToLower(host)
	return h == host || strings.HasSuffix(h, "."+host)
}
