package refpool

import (
	"context"

	"github.com/giantswarm/refpool/internal/core"
)

// Pool is the pooling facade. Construct with New; all methods are safe for
// concurrent use.
//
// Pool is a type alias (not a named type) so the underlying core methods
// are part of the public API without a re-export layer per method. New
// methods added to core.Pool automatically become part of the public API
// through this alias.
type Pool[T any] = core.Pool[T]

// Ref is the handle to one pooled resource, returned by Acquire. It carries
// the per-acquisition metadata (acquire count, age, idle time) and the
// Release/Invalidate operations, both idempotent.
type Ref[T any] = core.Ref[T]

// Config carries the pool construction parameters. See the field
// documentation on the aliased type for defaults and constraints.
type Config[T any] = core.Config[T]

// Allocator produces a new resource for the pool.
type Allocator[T any] = core.Allocator[T]

// ReleaseHandler resets a resource between uses.
type ReleaseHandler[T any] = core.ReleaseHandler[T]

// DestroyHandler tears a resource down permanently.
type DestroyHandler[T any] = core.DestroyHandler[T]

// EvictionPredicate decides whether a resource is destroyed instead of
// reused. See the Evict* helpers for ready-made policies.
type EvictionPredicate[T any] = core.EvictionPredicate[T]

// Metadata is the read-only per-resource view passed to eviction
// predicates.
type Metadata = core.Metadata

// MetricsRecorder observes pool events. See promrecorder for a
// Prometheus-backed implementation.
type MetricsRecorder = core.MetricsRecorder

// Metrics is a point-in-time snapshot of the pool gauges.
type Metrics = core.Metrics

// Order selects FIFO or LIFO service for the idle store and the waiter
// queue.
type Order = core.Order

const (
	// OrderFIFO serves the oldest idle resource and longest waiter first.
	OrderFIFO = core.OrderFIFO

	// OrderLIFO serves the most recently returned resource and the newest
	// waiter first.
	OrderLIFO = core.OrderLIFO
)

// NopRecorder discards every metrics event. It is the default recorder.
var NopRecorder = core.NopRecorder

// New validates cfg, allocates Config.InitialSize resources, and returns
// the running pool. Validation failures are reported as ErrInvalidConfig;
// a warm-up allocation failure destroys the partially warmed set and
// returns the allocator's error, leaving no pool behind.
func New[T any](ctx context.Context, cfg Config[T]) (*Pool[T], error) {
	return core.NewPool(ctx, cfg)
}
