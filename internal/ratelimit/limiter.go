package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// API represents the different external APIs we interact with
type API string

const (
	// APIYahoo represents the Yahoo Finance chart and spark APIs
	APIYahoo API = "yahoo"
	// APIAlphaVantage represents the AlphaVantage API
	APIAlphaVantage API = "alphavantage"
	// APINSE represents the NSE institutional activity API
	APINSE API = "nse"
	// APINewsAPI represents the NewsAPI search endpoint
	APINewsAPI API = "newsapi"
)

// DefaultLimits are conservative request rates per second for each API.
var DefaultLimits = map[API]float64{
	APIYahoo: 5,
	// AlphaVantage: 5 requests per minute on the free tier
	APIAlphaVantage: 5.0 / 60.0,
	APINSE:          1,
	APINewsAPI:      1,
}

// Limiter manages rate limits for different APIs
type Limiter struct {
	limiters map[API]*rate.Limiter
	mu       sync.RWMutex
}

// New creates a limiter with one token bucket per API. A non-positive rate
// disables limiting for that API.
func New(limits map[API]float64) *Limiter {
	l := &Limiter{limiters: make(map[API]*rate.Limiter, len(limits))}
	for api, rps := range limits {
		l.Set(api, rps)
	}
	return l
}

// Unlimited returns a limiter that never blocks.
func Unlimited() *Limiter {
	return New(nil)
}

// Set replaces the rate of one API.
func (l *Limiter) Set(api API, rps float64) {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}

	l.mu.Lock()
	l.limiters[api] = rate.NewLimiter(limit, 1)
	l.mu.Unlock()
}

// Wait blocks until the rate limiter permits an event for the given API
// It returns an error if the context is canceled before the event can proceed
func (l *Limiter) Wait(ctx context.Context, api API) error {
	if l == nil {
		return nil
	}

	l.mu.RLock()
	limiter, exists := l.limiters[api]
	l.mu.RUnlock()

	if !exists {
		// If no limiter exists for this API, allow the request without limiting
		return nil
	}

	return limiter.Wait(ctx)
}

// Allow reports whether an event for the given API may happen now
func (l *Limiter) Allow(api API) bool {
	if l == nil {
		return true
	}

	l.mu.RLock()
	limiter, exists := l.limiters[api]
	l.mu.RUnlock()

	if !exists {
		// If no limiter exists for this API, allow the request
		return true
	}

	return limiter.Allow()
}
