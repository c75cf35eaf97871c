package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit returns an HTTP middleware limiting general API traffic. The
// window is keyed by the presented API key so one caller cannot exhaust
// another's budget; unauthenticated requests fall back to the client IP.
func RateLimit(headerName string, requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if key := r.Header.Get(headerName); key != "" {
				return key, nil
			}
			return httprate.KeyByIP(r)
		}),
	)
}

// OwnerRateLimit returns a stricter per-IP limiter for the owner lifecycle
// endpoints, blunting brute-force attempts against the owner password and
// bulk credential creation.
func OwnerRateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.LimitByIP(requestsPerMinute, time.Minute)
}
