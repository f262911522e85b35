package fieldsync

import (
	"context"
	"time"
)

// Sleeper waits for a delay or until the context is done. Tests inject a
// no-op sleeper so retry paths run without real timers.
type Sleeper func(ctx context.Context, delay time.Duration) error

// SleepContext is the production Sleeper.
func SleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryPolicy bounds an attempt loop. MaxAttempts counts the first try.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// retry runs attempt up to policy.MaxAttempts times, sleeping policy.Delay
// between tries. permanent short-circuits the loop for errors that retrying
// cannot fix. Returns the attempt count alongside the final error.
func retry(ctx context.Context, policy RetryPolicy, sleep Sleeper, attempt func() error, permanent func(error) bool) (int, error) {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if sleep == nil {
		sleep = SleepContext
	}
	var err error
	for tries := 1; ; tries++ {
		err = attempt()
		if err == nil {
			return tries, nil
		}
		if permanent != nil && permanent(err) {
			return tries, err
		}
		if tries >= policy.MaxAttempts {
			return tries, err
		}
		if waitErr := sleep(ctx, policy.Delay); waitErr != nil {
			return tries, waitErr
		}
	}
}
