// Package utils provides small scheduling helpers shared by callers that
// own polling loops.
package utils

import (
	"math"
	"math/rand"
	"time"
)

// Jitter returns d perturbed by up to ±fraction of itself, to avoid
// thundering-herd polling across many simultaneous jobs.
func Jitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return d
	}
	spread := float64(d) * fraction
	offset := (rand.Float64()*2 - 1) * spread
	return time.Duration(float64(d) + offset)
}

// Backoff calculates the delay for a given consecutive-failure attempt with
// exponential growth capped at maxDelay.
func Backoff(attempt int, initialDelay, maxDelay time.Duration, factor float64) time.Duration {
	delay := float64(initialDelay) * math.Pow(factor, float64(attempt))
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	return time.Duration(delay)
}
