package invoker

import (
	"testing"
	"time"
)

func TestRetryPolicyDelay(t *testing.T) {
	policy := RetryPolicy{
		MaxRetries: 5,
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
	}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second}, // capped at MaxDelay
		{10, 10 * time.Second},
	}

	for _, tc := range cases {
		if got := policy.Delay(tc.attempt); got != tc.want {
			t.Errorf("Delay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestRetryPolicyDelayMonotonic(t *testing.T) {
	policy := DefaultRetryPolicy()

	prev := time.Duration(0)
	for attempt := 0; attempt < 20; attempt++ {
		d := policy.Delay(attempt)
		if d < prev {
			t.Fatalf("Delay(%d) = %v decreased from %v", attempt, d, prev)
		}
		prev = d
	}
}

func TestRetryPolicyDelayNegativeAttempt(t *testing.T) {
	policy := DefaultRetryPolicy()
	if got := policy.Delay(-1); got != policy.BaseDelay {
		t.Errorf("Delay(-1) = %v, want %v", got, policy.BaseDelay)
	}
}

func TestRetryPolicyMerge(t *testing.T) {
	base := DefaultRetryPolicy()

	retries := 7
	maxDelay := time.Minute
	merged := base.Merge(RetryPolicyPatch{
		MaxRetries: &retries,
		MaxDelay:   &maxDelay,
	})

	if merged.MaxRetries != 7 {
		t.Errorf("MaxRetries = %d, want 7", merged.MaxRetries)
	}
	if merged.MaxDelay != time.Minute {
		t.Errorf("MaxDelay = %v, want 1m", merged.MaxDelay)
	}
	if merged.BaseDelay != base.BaseDelay {
		t.Errorf("BaseDelay = %v, want unchanged %v", merged.BaseDelay, base.BaseDelay)
	}
	if merged.Multiplier != base.Multiplier {
		t.Errorf("Multiplier = %v, want unchanged %v", merged.Multiplier, base.Multiplier)
	}
}

func TestRetryPolicyMergeEmptyPatch(t *testing.T) {
	base := DefaultRetryPolicy()
	if merged := base.Merge(RetryPolicyPatch{}); merged != base {
		t.Errorf("Merge(empty) = %+v, want %+v", merged, base)
	}
}
