// Package ratelimit throttles API callers by client IP.
package ratelimit

import (
	"net/http"
	"time"

	"github.com/dalemusser/inventoryhub/internal/app/system/httpjson"
	"github.com/go-chi/httprate"
)

// Defaults for the public auth endpoints and for the API as a whole.
const (
	AuthLimit  = 10
	AuthWindow = time.Minute
	APILimit   = 300
	APIWindow  = time.Minute
)

// ByIP returns middleware allowing limit requests per window per client IP.
// Requests over the limit get 429 with message as the JSON error.
func ByIP(limit int, window time.Duration, message string) func(http.Handler) http.Handler {
	return httprate.Limit(limit, window,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpjson.Error(w, http.StatusTooManyRequests, message)
		}),
	)
}

// Auth limits login and register attempts.
func Auth() func(http.Handler) http.Handler {
	return ByIP(AuthLimit, AuthWindow, "Too many attempts. Please wait a minute before trying again.")
}

// API limits general API traffic.
func API() func(http.Handler) http.Handler {
	return ByIP(APILimit, APIWindow, "Too many requests.")
}
