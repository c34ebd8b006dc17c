package protocol

import "errors"

// Error signals a unit implementation wraps (or returns directly) to tell
// the engine how to treat a failure. Anything not matching one of these and
// not a network timeout is treated as permanent.
var (
	// ErrThrottled indicates the provider rate-limited the call. Retryable
	// with backoff.
	ErrThrottled = errors.New("provider throttled the request")

	// ErrTransient indicates a temporary infrastructure failure such as a
	// connection reset. Retryable.
	ErrTransient = errors.New("transient failure")

	// ErrUnsupported indicates the operation is not available for this
	// resource type or region. Never retried.
	ErrUnsupported = errors.New("operation not supported")
)
