package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

type retryPolicy struct {
	retries int
	delay   time.Duration
}

func (p retryPolicy) Name() string                  { return "test" }
func (p retryPolicy) MaxRetries() int               { return p.retries }
func (p retryPolicy) RetryDelayBase() time.Duration { return p.delay }

func TestCall(t *testing.T) {
	t.Run("retries then succeeds", func(t *testing.T) {
		calls := 0
		got, err := Call(context.Background(), retryPolicy{retries: 3, delay: time.Millisecond}, nil,
			func(context.Context) (string, error) {
				calls++
				if calls < 3 {
					return "", errors.New("transient")
				}
				return "ok", nil
			})
		if err != nil {
			t.Fatalf("Call() error = %v", err)
		}
		if got != "ok" || calls != 3 {
			t.Errorf("got %q after %d calls", got, calls)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		_, err := Call(context.Background(), retryPolicy{retries: 2, delay: time.Millisecond}, nil,
			func(context.Context) (int, error) {
				calls++
				return 0, fmt.Errorf("attempt %d", calls)
			})
		if err == nil || err.Error() != "attempt 3" {
			t.Errorf("error = %v, want last error", err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("invalid request is not retried", func(t *testing.T) {
		calls := 0
		_, err := Call(context.Background(), retryPolicy{retries: 5, delay: time.Millisecond}, nil,
			func(context.Context) (int, error) {
				calls++
				return 0, fmt.Errorf("%w: empty", ErrInvalidRequest)
			})
		if !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("honors retry after", func(t *testing.T) {
		calls := 0
		start := time.Now()
		_, err := Call(context.Background(), retryPolicy{retries: 1, delay: time.Hour}, nil,
			func(context.Context) (int, error) {
				calls++
				if calls == 1 {
					return 0, &RateLimitError{Message: "slow down", RetryAfter: 10 * time.Millisecond}
				}
				return 1, nil
			})
		if err != nil {
			t.Fatalf("Call() error = %v", err)
		}
		if elapsed := time.Since(start); elapsed > 5*time.Second {
			t.Errorf("retry waited %v, expected Retry-After to apply", elapsed)
		}
	})

	t.Run("zero retries means one attempt", func(t *testing.T) {
		calls := 0
		_, _ = Call(context.Background(), retryPolicy{}, nil, func(context.Context) (int, error) {
			calls++
			return 0, errors.New("fail")
		})
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"5", 5 * time.Second},
		{"0.5", 500 * time.Millisecond},
		{"-1", 0},
		{"garbage", 0},
		{"Mon, 01 Jan 2001 00:00:00 GMT", 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.in); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	future := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	if got := parseRetryAfter(future); got <= 0 || got > time.Hour {
		t.Errorf("parseRetryAfter(future) = %v", got)
	}
}
