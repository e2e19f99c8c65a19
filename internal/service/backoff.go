package service

import (
	"context"
	"time"
)

// retryWithBackoff runs fn up to attempts times, doubling the wait between
// tries. It stops early when retryable reports the error as terminal or the
// context is done, and returns the last error.
func retryWithBackoff(ctx context.Context, attempts int, base time.Duration, retryable func(error) bool, fn func() error) error {
	var err error
	wait := base

	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if !retryable(err) || i == attempts-1 {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}

	return err
}
