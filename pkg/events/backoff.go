package events

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes retry delays. Implementations must be safe for concurrent
// use.
type Backoff interface {
	// NextInterval returns the delay before retry number attempt, starting
	// at 1 for the first retry.
	NextInterval(attempt int) time.Duration
}

// ExponentialBackoff grows delays geometrically with optional jitter.
type ExponentialBackoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	JitterFactor    float64
}

func (e ExponentialBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	initial := e.InitialInterval
	if initial == 0 {
		initial = time.Second
	}
	limit := e.MaxInterval
	if limit == 0 {
		limit = 30 * time.Second
	}
	multiplier := e.Multiplier
	if multiplier == 0 {
		multiplier = 2
	}

	interval := float64(initial) * math.Pow(multiplier, float64(attempt-1))
	if e.JitterFactor > 0 {
		interval *= 1 + (rand.Float64()*2-1)*e.JitterFactor
	}
	if interval > float64(limit) {
		interval = float64(limit)
	}
	return time.Duration(interval)
}
