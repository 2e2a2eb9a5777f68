package invoker

import (
	"math"
	"time"
)

// RetryPolicy governs backoff between attempts. Retries are bounded per
// model: a model gets MaxRetries+1 attempts before control moves to the
// next model in the list.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

// DefaultRetryPolicy returns the policy used unless callers override it.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
	}
}

// Delay returns the backoff before retrying after the given 0-based attempt
// index: min(base * multiplier^attempt, maxDelay). Monotonically
// non-decreasing in attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt))
	if d >= float64(p.MaxDelay) || d < 0 {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// RetryPolicyPatch is a partial override merged over the current policy.
// Nil fields keep their current value.
type RetryPolicyPatch struct {
	MaxRetries *int
	BaseDelay  *time.Duration
	MaxDelay   *time.Duration
	Multiplier *float64
}

// Merge returns a copy of p with the non-nil fields of patch applied.
func (p RetryPolicy) Merge(patch RetryPolicyPatch) RetryPolicy {
	if patch.MaxRetries != nil {
		p.MaxRetries = *patch.MaxRetries
	}
	if patch.BaseDelay != nil {
		p.BaseDelay = *patch.BaseDelay
	}
	if patch.MaxDelay != nil {
		p.MaxDelay = *patch.MaxDelay
	}
	if patch.Multiplier != nil {
		p.Multiplier = *patch.Multiplier
	}
	return p
}
