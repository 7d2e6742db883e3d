package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// CouponRateLimit caps coupon-change events per client IP and session.
// Sheets fire an event per keystroke, so the limit guards the pricing backend.
func CouponRateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP, keyBySession),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error": "too many coupon attempts",
				"code":  "rate_limit",
			})
		}),
	)
}

func keyBySession(r *http.Request) (string, error) {
	return chi.URLParam(r, "id"), nil
}
