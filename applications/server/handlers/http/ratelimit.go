package http

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

type Message struct {
	Status string `json:"status"`
	Body   string `json:"body"`
}

// RateLimitMiddleware allows maxRequests per minute across all callers.
func RateLimitMiddleware(maxRequests float64) mux.MiddlewareFunc {
	perSecond := maxRequests / 60.0
	burst := int(math.Max(1, math.Ceil(perSecond)))
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(Message{
					Status: "Request Failed",
					Body:   "The API is at capacity, try again later.",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
