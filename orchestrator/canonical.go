package orchestrator

import (
	"net/url"
	"strings"
)

// canonicalURL reduces a URL to its content identity so near-duplicate pages
// collapse in the per-URL cap: tracking and pagination parameters dropped,
// remaining parameters sorted, scheme and host lowercased, trailing slashes
// stripped (bare path becomes "/"), fragment removed. Unparseable input is
// returned unchanged.
func canonicalURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	query := u.Query()
	for key := range query {
		if isTrackingParam(key) {
			query.Del(key)
		}
	}

	path := strings.TrimRight(u.Path, "/")
	if path == "" {
		path = "/"
	}

	canon := url.URL{
		Scheme:   strings.ToLower(u.Scheme),
		Host:     strings.ToLower(u.Host),
		Path:     path,
		RawQuery: query.Encode(), // Encode sorts keys
	}
	return canon.String()
}

func isTrackingParam(key string) bool {
	return strings.HasPrefix(key, "utm_") ||
		strings.HasPrefix(key, "ref") ||
		key == "fbclid" ||
		key == "gclid" ||
		key == "page"
}
