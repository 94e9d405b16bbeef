package http

import "golang.org/x/time/rate"

// rateLimiter throttles inbound frames on one connection.
type rateLimiter struct {
	l *rate.Limiter
}

func newRateLimiter(perSecond float64, burst int) *rateLimiter {
	if perSecond <= 0 {
		return &rateLimiter{}
	}
	if burst <= 0 {
		burst = 1
	}
	return &rateLimiter{l: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (r *rateLimiter) allow() bool {
	if r == nil || r.l == nil {
		return true
	}
	return r.l.Allow()
}
