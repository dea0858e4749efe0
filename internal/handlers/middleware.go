package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"echotype/internal/security"
)

// Logging wraps a handler with request logging.
func Logging(log *zap.SugaredLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Infow("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// RateLimit rejects clients that exceed the limiter's budget. Applied
// to the example-generation endpoint so one impatient client cannot
// burn the upstream quota.
func RateLimit(limiter *security.RateLimiter, log *zap.SugaredLogger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := security.GetClientIP(r)
		if !limiter.Allow(ip) {
			respondWithError(log, w, http.StatusTooManyRequests,
				"Too many requests. Wait a moment and try again.", "", nil)
			return
		}
		next(w, r)
	}
}
