package refpool

import "github.com/giantswarm/refpool/internal/core"

// Sentinel errors for inspection with errors.Is.
//
// These are consts of the core PoolError string type rather than
// errors.New vars, so the set of terminal pool conditions is immutable at
// compile time while remaining errors.Is-comparable. Failures raised by
// user code (allocator and handlers) are never one of these; they are
// wrapped transparently so errors.Is and errors.As reach the cause.
const (
	// ErrPoolClosed is returned by Acquire once Close has been called, and
	// delivered to every borrower still waiting at that moment.
	ErrPoolClosed = core.ErrPoolClosed

	// ErrPendingQueueFull is returned synchronously when admitting another
	// waiting borrower would exceed Config.MaxPendingAcquire.
	ErrPendingQueueFull = core.ErrPendingQueueFull

	// ErrAcquireTimeout is returned by AcquireWithin when the request was
	// still queued after the timeout elapsed.
	ErrAcquireTimeout = core.ErrAcquireTimeout

	// ErrInvalidConfig is wrapped by every validation error New returns.
	ErrInvalidConfig = core.ErrInvalidConfig
)
