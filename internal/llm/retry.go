package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
)

// RetryPolicy configures rate-limit retries.
type RetryPolicy struct {
	// Retries is the number of additional attempts after the first.
	Retries int

	// BaseDelay is the wait before the first retry; it doubles each time.
	BaseDelay time.Duration

	// Timer replaces the wall clock, mainly for tests.
	Timer retry.Timer
}

// DefaultRetryPolicy retries a rate-limited call three times after 2s, 4s and 8s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Retries:   3,
		BaseDelay: 2 * time.Second,
	}
}

// Backoff returns the wait before retry number n (1-based).
func (p RetryPolicy) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	return p.BaseDelay << (n - 1)
}

type retrying struct {
	Provider
	policy RetryPolicy
	logger *slog.Logger
}

// WithRetry wraps p so rate-limited generations are retried with exponential
// backoff. Any other error is returned immediately.
func WithRetry(p Provider, policy RetryPolicy, logger *slog.Logger) Provider {
	if policy.Retries <= 0 {
		return p
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &retrying{Provider: p, policy: policy, logger: logger}
}

func (r *retrying) Generate(ctx context.Context, messages []Message, cfg Config) (*Result, error) {
	failures := 0
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(uint(r.policy.Retries + 1)),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsRateLimit),
		retry.DelayType(func(uint, error, *retry.Config) time.Duration {
			return r.policy.Backoff(failures)
		}),
		retry.OnRetry(func(n uint, err error) {
			if int(n)+1 >= r.policy.Retries+1 {
				return
			}
			r.logger.Warn("Rate limited, backing off",
				"provider", r.Name(),
				"attempt", n+1,
				"max_attempts", r.policy.Retries+1,
				"backoff", r.policy.Backoff(failures),
				"error", err)
		}),
	}
	if r.policy.Timer != nil {
		opts = append(opts, retry.WithTimer(r.policy.Timer))
	}

	return retry.DoWithData(func() (*Result, error) {
		res, err := r.Provider.Generate(ctx, messages, cfg)
		if err != nil {
			failures++
			return nil, err
		}
		return res, nil
	}, opts...)
}
