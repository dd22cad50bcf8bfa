package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ufkhan97/gitcoin-grants-heroku/internal/metrics"
	"golang.org/x/time/rate"
)

// Limiter is a token bucket shared by all calls to one upstream source.
type Limiter struct {
	limiter *rate.Limiter
	source  string
}

// NewLimiter allows rps requests per second with the given burst. A
// non-positive rps disables limiting.
func NewLimiter(rps float64, burst int, source string) *Limiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(limit, burst),
		source:  source,
	}
}

// Wait blocks until one token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	r := l.limiter.Reserve()
	if !r.OK() {
		return fmt.Errorf("rate: cannot reserve token")
	}
	delay := r.Delay()
	if delay > 0 {
		metrics.RateLimitWaits.WithLabelValues(l.source).Inc()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			r.Cancel()
			return ctx.Err()
		}
	}
	return nil
}

// RecordCall records one upstream call with its outcome and duration.
func RecordCall(source, kind string, started time.Time, err error) {
	metrics.FetchRequestsTotal.WithLabelValues(source, kind, ClassifyError(err)).Inc()
	metrics.FetchLatency.WithLabelValues(source, kind).Observe(time.Since(started).Seconds())
}

// ClassifyError buckets an upstream error for metrics labels.
func ClassifyError(err error) string {
	if err == nil {
		return "ok"
	}
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "circuit breaker is open"):
		return "circuit_open"
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return "timeout"
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "429") || strings.Contains(lower, "too many requests"):
		return "rate_limited"
	case strings.Contains(lower, "status 5") || strings.Contains(lower, "internal server error"):
		return "server_error"
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "network is unreachable") || strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "broken pipe") || strings.Contains(lower, "eof"):
		return "network_error"
	case strings.Contains(lower, "decode") || strings.Contains(lower, "unmarshal") || strings.Contains(lower, "invalid character"):
		return "malformed"
	default:
		return "client_error"
	}
}
