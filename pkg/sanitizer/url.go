package sanitizer

import (
	"net/url"
	"strings"
)

// NormalizeOrigin reduces a browser origin to scheme://host[:port] in lower
// case. "*" passes through unchanged. Anything without a scheme and host
// becomes "".
func NormalizeOrigin(origin string) string {
	origin = strings.TrimSpace(origin)
	if origin == "*" {
		return origin
	}
	if origin == "" {
		return ""
	}

	u, err := url.Parse(strings.ToLower(origin))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
