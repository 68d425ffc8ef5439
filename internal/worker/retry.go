package worker

import (
	"math"
	"time"
)

// RetryPolicy computes how long a failed record must cool down before the
// retry sweep may pick it up again. The cooldown grows exponentially with
// the attempt count, using the template's backoff multiplier, and is capped.
type RetryPolicy struct {
	baseDelay time.Duration
	maxDelay  time.Duration
}

func NewRetryPolicy(baseDelay, maxDelay time.Duration) *RetryPolicy {
	if baseDelay <= 0 {
		baseDelay = time.Minute
	}
	if maxDelay < baseDelay {
		maxDelay = baseDelay * 16
	}
	return &RetryPolicy{baseDelay: baseDelay, maxDelay: maxDelay}
}

// Cooldown returns the wait required after the given attempt number
// (1-based). The first retry waits the base delay.
func (p *RetryPolicy) Cooldown(multiplier float64, attempts int) time.Duration {
	if attempts <= 1 {
		return p.baseDelay
	}
	if multiplier < 1 {
		multiplier = 1
	}

	backoff := time.Duration(float64(p.baseDelay) * math.Pow(multiplier, float64(attempts-1)))
	if backoff > p.maxDelay || backoff <= 0 {
		return p.maxDelay
	}
	return backoff
}

// MinCooldown is the smallest possible cooldown, used as the conservative
// cutoff for the retry sweep's store query.
func (p *RetryPolicy) MinCooldown() time.Duration {
	return p.baseDelay
}
