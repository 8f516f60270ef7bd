package refpool

import "github.com/giantswarm/refpool/internal/core"

// Default and sentinel configuration values. Exported so callers can build
// configurations relative to them.
const (
	// DefaultSizeMax is the allocation bound applied when Config.SizeMax
	// is left zero.
	DefaultSizeMax = core.DefaultSizeMax

	// PendingUnbounded removes the waiting-borrower bound when assigned to
	// Config.MaxPendingAcquire. A MaxPendingAcquire of zero (the zero
	// value) admits no waiters at all.
	PendingUnbounded = core.PendingUnbounded
)
