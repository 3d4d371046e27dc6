package ratelimit

import (
	"net/http"
	"strings"
)

// UnknownOrigin buckets every request that carries no forwarded-for header.
const UnknownOrigin = "unknown"

// OriginKey returns the X-Forwarded-For header value as sent, or
// UnknownOrigin when it is absent. The whole header is the key, so a proxy
// chain and its first hop are different buckets.
func OriginKey(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); v != "" {
		return v
	}
	return UnknownOrigin
}
