package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/trafficlens/trafficlens/internal/api/models"
)

// RateLimitConfig is a request budget over a sliding window.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

var (
	// WriteRateLimit covers mutating endpoints: area creation, lifecycle
	// transitions and training control.
	WriteRateLimit = RateLimitConfig{RequestLimit: 30, WindowLength: time.Minute}

	// ReadRateLimit covers listing and snapshot reads.
	ReadRateLimit = RateLimitConfig{RequestLimit: 100, WindowLength: time.Minute}
)

// RateLimitByIP limits by client IP, as resolved by chi's RealIP
// middleware earlier in the chain.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return limitWith(cfg, httprate.KeyByRealIP)
}

// RateLimitByOperator limits per authenticated operator, falling back to
// the client IP for unauthenticated requests.
func RateLimitByOperator(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return limitWith(cfg, func(r *http.Request) (string, error) {
		if operator := GetOperator(r.Context()); operator != "" {
			return "operator:" + operator, nil
		}
		return httprate.KeyByRealIP(r)
	})
}

func limitWith(cfg RateLimitConfig, keyFn httprate.KeyFunc) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(keyFn),
		httprate.WithLimitHandler(writeRateLimited),
	)
}

// writeRateLimited writes the 429 problem document. httprate does not
// expose the exact window reset, so Retry-After carries the window length
// as an estimate.
func writeRateLimited(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", strconv.Itoa(int(time.Minute.Seconds())))

	models.NewTooManyRequests(GetRequestID(r.Context()), "Rate limit exceeded. Please try again later.").
		WithInstance(r.URL.Path).
		Write(w)
}
