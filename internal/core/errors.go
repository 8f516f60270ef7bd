package core

// PoolError is the type behind the pool's sentinel errors: the terminal
// conditions of the acquire path (closed pool, full queue, expired wait)
// and of configuration validation. Declaring them as consts of a string
// type, rather than errors.New vars, makes the set immutable at compile
// time, and because PoolError is comparable, errors.Is matches a sentinel
// through wrapped chains with the default == comparison.
//
// User-originated failures (allocator, release handler, destroy handler)
// are never PoolError values; they are wrapped with %w so errors.Is and
// errors.As reach the user's own error types.
type PoolError string

// Error implements the error interface.
func (e PoolError) Error() string {
	return "refpool: " + string(e)
}

// ErrPoolClosed is returned by Acquire and AcquireWithin once the pool has
// been closed, and delivered to every borrower that was still waiting when
// Close was called.
const ErrPoolClosed = PoolError("pool is closed")

// ErrPendingQueueFull is returned synchronously by Acquire and AcquireWithin
// when admitting the request would push the number of waiting borrowers past
// Config.MaxPendingAcquire.
const ErrPendingQueueFull = PoolError("pending acquire queue is full")

// ErrAcquireTimeout is returned by AcquireWithin when the request was still
// queued after the supplied timeout elapsed. A request that owns an in-flight
// allocation is not queued and never times out.
const ErrAcquireTimeout = PoolError("acquire timed out waiting for a resource")

// ErrInvalidConfig is returned by NewPool when the configuration fails
// validation. The returned error wraps ErrInvalidConfig with a description
// of the offending field.
const ErrInvalidConfig = PoolError("invalid pool configuration")
