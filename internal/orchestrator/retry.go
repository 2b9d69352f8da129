package orchestrator

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryConfig bounds the two distinct retry mechanisms spec §4.4
// distinguishes: the in-task transport backoff (TransportMaxAttempts)
// and the job-level Retry Controller decision (the job's max_retries and
// RetryDelay).
type RetryConfig struct {
	// TransportMaxAttempts bounds connection-level retries within a
	// single dispatch task (MAX_RETRY_ATTEMPTS, spec §4.4 step 7).
	TransportMaxAttempts uint64
	TransportBaseDelay   time.Duration
	TransportMaxDelay    time.Duration

	// RetryDelay is the base delay for the job-level retry_pending
	// backoff (RETRY_DELAY, spec §4.4).
	RetryDelay time.Duration
}

// WithTransportRetry runs fn, retrying RetryableError results with
// exponential backoff and jitter up to cfg.TransportMaxAttempts (spec
// §4.4 step 7: "Retry transport errors ... with exponential backoff
// within the task"). fn must return a RetryableError (via Transient) for
// failures that should be retried; any other error stops retrying
// immediately.
func WithTransportRetry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	backoff, err := retry.NewExponential(cfg.TransportBaseDelay)
	if err != nil {
		return err
	}
	backoff = retry.WithJitter(cfg.TransportBaseDelay/2, backoff)
	if cfg.TransportMaxDelay > 0 {
		backoff = retry.WithCappedDuration(cfg.TransportMaxDelay, backoff)
	}
	backoff = retry.WithMaxRetries(cfg.TransportMaxAttempts, backoff)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// RetryDecision is the Retry Controller's single synchronous decision
// for a job that just failed transiently (spec §4.4 "Retry Controller
// logic").
type RetryDecision struct {
	Retry        bool
	NewStatus    string // "retry_pending" or "error"
	RetryCount   int    // new retry_count
	ScheduledFor time.Time
	Exhausted    bool
}

// DecideRetry implements the Retry Controller: let n = retry_count+1; if
// n < max_retries, retry_pending with scheduled_for = now + RetryDelay;
// else error, retries exhausted (spec §4.4).
func DecideRetry(retryCount, maxRetries int, cfg RetryConfig, now time.Time) RetryDecision {
	n := retryCount + 1
	if n < maxRetries {
		return RetryDecision{
			Retry:        true,
			NewStatus:    "retry_pending",
			RetryCount:   n,
			ScheduledFor: now.Add(cfg.RetryDelay),
		}
	}
	return RetryDecision{
		Retry:      false,
		NewStatus:  "error",
		RetryCount: n,
		Exhausted:  true,
	}
}
