package shared

import (
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// HTTPRequestRateLimiter throttles requests to an unauthenticated upstream.
type HTTPRequestRateLimiter struct {
	limiter      *rate.Limiter
	name         string
	requestCount atomic.Int64
}

// NewHTTPRequestRateLimiter allows requestsPerSecond with a burst of the same
// size (at least one).
func NewHTTPRequestRateLimiter(name string, requestsPerSecond float64) *HTTPRequestRateLimiter {
	burst := int(requestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}
	return &HTTPRequestRateLimiter{
		limiter: rate.NewLimiter(limit, burst),
		name:    name,
	}
}

// Wait blocks until a request may proceed or ctx is done.
func (l *HTTPRequestRateLimiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		logrus.WithFields(logrus.Fields{
			"component": "HTTPRequestRateLimiter",
			"backend":   l.name,
		}).WithError(err).Debug("Rate limiter wait aborted")
		return NewUpstreamUnavailableError(l.name, "rate_limit", err)
	}
	l.requestCount.Add(1)
	return nil
}

// GetRequestCount returns the total number of requests let through
func (l *HTTPRequestRateLimiter) GetRequestCount() int64 {
	return l.requestCount.Load()
}

// UpdateLimit changes the allowed request rate
func (l *HTTPRequestRateLimiter) UpdateLimit(requestsPerSecond float64) {
	oldLimit := l.limiter.Limit()
	l.limiter.SetLimit(rate.Limit(requestsPerSecond))

	logrus.WithFields(logrus.Fields{
		"component": "HTTPRequestRateLimiter",
		"backend":   l.name,
		"old_limit": float64(oldLimit),
		"new_limit": requestsPerSecond,
	}).Info("Updated rate limiter limit")
}
