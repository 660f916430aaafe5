package coordination

import (
	"math/rand"
	"time"
)

// BackoffPolicy shapes the delays between stream recovery attempts. The
// exact constants are tunable; the doubling-with-ceiling shape is not.
type BackoffPolicy struct {
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps every computed delay.
	MaxDelay time.Duration
	// JitterFactor adds up to this fraction of the delay as random jitter,
	// so clients that failed together do not retry together. Must stay
	// below 1 to keep consecutive delays non-decreasing.
	JitterFactor float64
	// MaxRetries bounds recovery attempts before the failure is surfaced.
	MaxRetries int
}

func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		BaseDelay:    500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		JitterFactor: 0.2,
		MaxRetries:   5,
	}
}

// Delay computes the wait before retry number attempt (zero-based): base
// doubled per attempt, jittered, capped at MaxDelay.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 0; i < attempt && delay < p.MaxDelay; i++ {
		delay *= 2
	}

	if p.JitterFactor > 0 {
		delay += time.Duration(rand.Float64() * p.JitterFactor * float64(delay))
	}

	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}
