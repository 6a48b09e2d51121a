package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitMiddleware answers 429 once the limiter's budget is spent.
// Retry-After carries the whole seconds until the next token frees up. A nil
// limiter disables it.
func RateLimitMiddleware(l *rate.Limiter) func(http.Handler) http.Handler {
	if l == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wait, ok := take(l, time.Now())
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			httpRequestsThrottled.WithLabelValues(r.Method).Inc()
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter(wait)))
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(struct {
				Error string `json:"error"`
			}{Error: "too_many_requests"})
		})
	}
}

// take consumes a token when one is free at now. Otherwise it hands the
// reservation back and reports how long until one would be.
func take(l *rate.Limiter, now time.Time) (time.Duration, bool) {
	res := l.ReserveN(now, 1)
	if !res.OK() {
		return time.Second, false
	}
	delay := res.DelayFrom(now)
	if delay == 0 {
		return 0, true
	}
	res.CancelAt(now)
	return delay, false
}

func retryAfter(d time.Duration) int {
	return int(math.Max(1, math.Ceil(d.Seconds())))
}

// NewLimiter returns nil when rps <= 0. Burst is at least one request.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), max(burst, 1))
}
