package core

import (
	"time"
)

// WithRetry runs fn up to attempts times, sleeping delay between tries.
// Only in-use-style failures are retried (see isRetryable); everything else
// will not heal by waiting.
func WithRetry(attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return err
}
