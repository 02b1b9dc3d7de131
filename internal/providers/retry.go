package providers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
)

// ErrInvalidRequest marks request validation failures, which are never retried.
var ErrInvalidRequest = errors.New("invalid request")

// Retrier is the retry policy a provider advertises.
type Retrier interface {
	Name() string
	MaxRetries() int
	RetryDelayBase() time.Duration
}

// Call runs fn with the provider's retry policy. Delays back off
// exponentially from RetryDelayBase; a 429 carrying Retry-After waits that
// long instead. Invalid requests and context cancellation end retries early.
func Call[T any](ctx context.Context, p Retrier, logger *slog.Logger, fn func(context.Context) (T, error)) (T, error) {
	if logger == nil {
		logger = slog.Default()
	}
	attempts := p.MaxRetries() + 1
	if attempts < 1 {
		attempts = 1
	}

	return retry.DoWithData(
		func() (T, error) {
			return fn(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(p.RetryDelayBase()),
		retry.DelayType(func(n uint, err error, cfg *retry.Config) time.Duration {
			if rle, ok := IsRateLimitError(err); ok && rle.RetryAfter > 0 {
				return rle.RetryAfter
			}
			return retry.BackOffDelay(n, err, cfg)
		}),
		retry.RetryIf(isRetryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("retrying provider call",
				"provider", p.Name(),
				"attempt", n+1,
				"error", err)
		}),
	)
}

func isRetryable(err error) bool {
	if !retry.IsRecoverable(err) {
		return false
	}
	if errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
