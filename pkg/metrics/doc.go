/*
Package metrics exposes Prometheus metrics for controller calls and teardown
waits.

All collectors are registered on the default registry at init and served by
Handler:

	nsx_api_requests_total{method,status}        controller calls by outcome
	nsx_api_request_duration_seconds{method}     controller call latency
	nsx_resources_created_total{kind}            objects created
	nsx_resources_deleted_total{kind}            objects deleted
	nsx_teardown_polls_total                     dependent count re-polls
	nsx_teardown_exhausted_total                 waits that gave up
	nsx_teardown_wait_seconds                    time spent waiting

The transport records every call; the status label is the HTTP status code,
or "error" when no response arrived. Timer measures a span and observes it
into a histogram:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TeardownWait)

nsxctl serves the handler on --metrics-addr for the lifetime of a command.
*/
package metrics
