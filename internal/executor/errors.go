package executor

import "errors"

// Upstream failure kinds. The data agent records these per query and
// the pipeline uses them to decide whether to retry.
var (
	// ErrUpstreamTimeout marks a query that exceeded its deadline.
	ErrUpstreamTimeout = errors.New("upstream timeout")
	// ErrUpstreamUnavailable marks a transport failure or an open
	// circuit breaker.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrUpstreamError marks an error returned by the database itself.
	ErrUpstreamError = errors.New("upstream error")
)
