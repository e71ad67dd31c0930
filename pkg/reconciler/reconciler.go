package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cuemby/nsx-orchestrator/pkg/log"
	"github.com/cuemby/nsx-orchestrator/pkg/metrics"
	"github.com/cuemby/nsx-orchestrator/pkg/types"
	"github.com/rs/zerolog"
)

// ErrExhausted is matched by every teardown that gave up with dependents
// still attached
var ErrExhausted = errors.New("dependents still attached")

// ExhaustedError names the resource whose teardown gave up and how many
// dependents were still attached. Err is set when the wait was interrupted.
type ExhaustedError struct {
	Resource  string
	Remaining int64
	Polls     int
	Err       error
}

func (e *ExhaustedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("teardown of %s interrupted after %d polls with %d dependents still attached: %v",
			e.Resource, e.Polls, e.Remaining, e.Err)
	}
	return fmt.Sprintf("teardown of %s gave up after %d polls: %d dependents still attached",
		e.Resource, e.Polls, e.Remaining)
}

func (e *ExhaustedError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrExhausted, e.Err}
	}
	return []error{ErrExhausted}
}

// CountFunc returns the number of dependents still attached to a resource
type CountFunc func(ctx context.Context) (int64, error)

// Policy bounds a teardown wait
type Policy struct {
	// Interval is slept before every re-poll
	Interval time.Duration

	// Retries is the number of re-polls before giving up
	Retries int
}

// PolicyFor builds the policy configured for a zone
func PolicyFor(settings types.ZoneSettings) Policy {
	return Policy{
		Interval: settings.Interval(),
		Retries:  settings.APIRetries,
	}
}

// Reconciler waits for dependents of a resource to detach before the
// resource is deleted
type Reconciler struct {
	policy Policy
	logger zerolog.Logger
}

// New creates a reconciler using policy
func New(policy Policy) *Reconciler {
	return &Reconciler{
		policy: policy,
		logger: log.WithComponent("reconciler"),
	}
}

// Policy returns the policy the reconciler polls with
func (r *Reconciler) Policy() Policy {
	return r.policy
}

// WaitForZero blocks until count reports zero dependents on resource.
// initial is the count observed before the wait; when it is already zero no
// poll is made. Each poll sleeps the policy interval first, then re-counts.
// It returns the number of polls issued and an *ExhaustedError when the
// retry budget runs out or ctx is cancelled with dependents still attached.
func (r *Reconciler) WaitForZero(ctx context.Context, resource string, initial int64, count CountFunc) (int, error) {
	if initial <= 0 {
		return 0, nil
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TeardownWait)

	retries := r.policy.Retries
	if retries < 0 {
		retries = 0
	}
	schedule := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.policy.Interval), uint64(retries)),
		ctx,
	)

	logger := r.logger.With().Str("resource", resource).Logger()
	logger.Info().
		Int64("remaining", initial).
		Int("retries", retries).
		Dur("interval", r.policy.Interval).
		Msg("Waiting for dependents to detach")

	remaining := initial
	polls := 0
	for remaining > 0 {
		next := schedule.NextBackOff()
		if next == backoff.Stop {
			break
		}

		wait := time.NewTimer(next)
		select {
		case <-ctx.Done():
			wait.Stop()
			return polls, r.interrupted(resource, remaining, polls, ctx.Err())
		case <-wait.C:
		}

		n, err := count(ctx)
		polls++
		metrics.TeardownPolls.Inc()
		if err != nil {
			return polls, fmt.Errorf("failed to count dependents of %s: %w", resource, err)
		}
		remaining = n

		logger.Debug().
			Int("poll", polls).
			Int64("remaining", remaining).
			Msg("Polled dependents")
	}

	if remaining == 0 {
		logger.Info().Int("polls", polls).Msg("Dependents detached")
		return polls, nil
	}

	if err := ctx.Err(); err != nil {
		return polls, r.interrupted(resource, remaining, polls, err)
	}

	metrics.TeardownExhausted.Inc()
	logger.Error().
		Int("polls", polls).
		Int64("remaining", remaining).
		Msg("Gave up waiting for dependents to detach")
	return polls, &ExhaustedError{
		Resource:  resource,
		Remaining: remaining,
		Polls:     polls,
	}
}

func (r *Reconciler) interrupted(resource string, remaining int64, polls int, cause error) error {
	metrics.TeardownExhausted.Inc()
	r.logger.Warn().
		Str("resource", resource).
		Int64("remaining", remaining).
		Err(cause).
		Msg("Teardown wait interrupted")
	return &ExhaustedError{
		Resource:  resource,
		Remaining: remaining,
		Polls:     polls,
		Err:       cause,
	}
}
