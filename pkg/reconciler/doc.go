/*
Package reconciler waits for the dependents of a controller object to detach
before the object itself is deleted.

The controller rejects deleting a parent while children still reference it,
and children (segment ports, for example) are released asynchronously by
other systems. Teardown therefore polls the dependent count on a fixed
interval with a bounded retry budget:

	           count > 0
	Checking ───────────▶ Waiting ──┐ sleep interval, re-count,
	    │                   ▲       │ spend one retry
	    │ count == 0        └───────┘
	    ▼                      │             │
	Terminal ◀── count == 0 ───┘             │ retries spent or
	(delete parent)                          │ context cancelled
	                                         ▼
	                                       Failed
	                                  (*ExhaustedError)

Interval and retry budget come from the zone's settings (see PolicyFor).
A zero retry budget never polls: a non-zero initial count fails at once.

# Usage

	r := reconciler.New(reconciler.PolicyFor(zone.Settings))
	polls, err := r.WaitForZero(ctx, segmentName, initial, func(ctx context.Context) (int64, error) {
		return client.SegmentPortCount(ctx, segmentName)
	})
	if errors.Is(err, reconciler.ErrExhausted) {
		// dependents still attached, the parent must not be deleted
	}

An exhausted wait is fatal to the caller's delete and is never reported as
success. Cancelling ctx during a sleep aborts the wait and returns an
*ExhaustedError whose cause is the context error.

The schedule is a constant backoff capped by the retry budget
(github.com/cenkalti/backoff/v4). Every poll increments
nsx_teardown_polls_total and each failed wait increments
nsx_teardown_exhausted_total.
*/
package reconciler
