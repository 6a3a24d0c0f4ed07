package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/FranLegon/mailbox-usage-report/internal/logger"
)

// Policy controls how often and how long Do retries.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Retryable reports whether an error is worth another attempt. Nil means
	// every error is retried.
	Retryable func(error) bool
}

// Default suits Graph throttling responses.
var Default = Policy{MaxAttempts: 4, BaseDelay: 2 * time.Second}

// Do retries fn with exponential backoff and jitter until it succeeds, the
// error is not retryable, attempts run out or ctx is done.
func Do(ctx context.Context, p Policy, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		delay := p.BaseDelay * (1 << (attempt - 1))
		if half := int64(delay / 2); half > 0 {
			delay += time.Duration(rand.Int63n(half))
		}
		logger.Warning("Attempt %d failed: %v. Retrying in %v...", attempt, err, delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
