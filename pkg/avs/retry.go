package avs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds a retried operation: Attempts tries in total, waiting
// InitialInterval before the second try and growing by Multiplier afterwards.
type RetryPolicy struct {
	Attempts        int
	InitialInterval time.Duration
	Multiplier      float64
}

var (
	// DefaultEventRetry applies to event POSTs and capability PUTs.
	DefaultEventRetry = RetryPolicy{Attempts: 5, InitialInterval: time.Second, Multiplier: 1.1}
	// DefaultDownchannelRetry applies to debugging directive retrieval.
	DefaultDownchannelRetry = RetryPolicy{Attempts: 10, InitialInterval: time.Second, Multiplier: 1.1}
)

func (p RetryPolicy) normalize(fallback RetryPolicy) RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = fallback.Attempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = fallback.InitialInterval
	}
	if p.Multiplier < 1 {
		p.Multiplier = fallback.Multiplier
	}
	return p
}

// Permanent marks err as terminal so Do stops retrying and returns it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a terminal error, or the attempt budget is
// spent. Non-retryable *Error values and ErrSessionClosed bail immediately. The
// error from the final attempt is returned wrapped as a KindTimeout *Error.
func (p RetryPolicy) Do(ctx context.Context, name string, op func() error, notify func(err error, wait time.Duration)) error {
	p = p.normalize(DefaultEventRetry)

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = p.InitialInterval
	expo.Multiplier = p.Multiplier
	expo.RandomizationFactor = 0
	expo.MaxInterval = p.InitialInterval * 60
	expo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(p.Attempts-1)), ctx)

	attempts := 0
	var terminal bool
	err := backoff.RetryNotify(func() error {
		attempts++
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrSessionClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			terminal = true
			return backoff.Permanent(err)
		}
		if e, ok := AsError(err); ok && !e.Retryable() {
			terminal = true
			return backoff.Permanent(err)
		}
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			terminal = true
		}
		return err
	}, policy, notify)
	if err == nil {
		return nil
	}
	if terminal || ctx.Err() != nil {
		return err
	}
	return &Error{Kind: KindTimeout, Op: name, Err: fmt.Errorf("retries exhausted after %d attempts: %w", attempts, err)}
}
