// Package retry provides backoff delay computation
package retry

import (
	"math"
	"math/rand"
	"time"
)

// jitterFactor bounds the multiplicative jitter at ±10%
const jitterFactor = 0.1

// BackoffDelay computes the wait preceding the attempt after attemptIndex.
// attemptIndex 0 is the delay before the second attempt, computed after the
// first failure. The unperturbed delay is
// min(MaxDelay, BaseDelay * BackoffMultiplier^attemptIndex); the result
// carries up to ±10% jitter and is always strictly positive. The function
// has no state and no side effects beyond drawing randomness.
func BackoffDelay(attemptIndex int, cfg Config) time.Duration {
	cfg = cfg.normalized()
	if attemptIndex < 0 {
		attemptIndex = 0
	}

	// cap in float space; large exponents would overflow the
	// duration conversion
	raw := float64(cfg.BaseDelay) * math.Pow(cfg.BackoffMultiplier, float64(attemptIndex))
	delay := cfg.MaxDelay
	if raw < float64(cfg.MaxDelay) {
		delay = time.Duration(raw)
	}

	return applyJitter(delay)
}

// applyJitter perturbs delay by a uniform amount within ±jitterFactor
func applyJitter(delay time.Duration) time.Duration {
	jitterRange := float64(delay) * jitterFactor
	jitterAmount := (rand.Float64() - 0.5) * 2 * jitterRange

	result := delay + time.Duration(jitterAmount)
	if result < time.Nanosecond {
		result = time.Nanosecond
	}
	return result
}
