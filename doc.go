// Package refpool provides a generic, concurrent object pool for
// expensive-to-create resources such as connections, sockets or large
// buffers. Borrowers acquire a resource, use it, and release it; the pool
// amortizes allocation, bounds how many resources exist at once, resets
// resources between uses, and evicts unhealthy ones.
//
// # Basic Usage
//
//	import "github.com/giantswarm/refpool"
//
//	ctx := context.Background()
//
//	pool, err := refpool.New(ctx, refpool.Config[*Conn]{
//	    Allocator: func(ctx context.Context) (*Conn, error) {
//	        return dial(ctx, addr)
//	    },
//	    ReleaseHandler: func(ctx context.Context, c *Conn) error {
//	        return c.Reset(ctx)
//	    },
//	    SizeMax:           8,
//	    InitialSize:       2,
//	    MaxPendingAcquire: refpool.PendingUnbounded,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Close(context.Background())
//
//	ref, err := pool.Acquire(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ref.Release(ctx)
//
//	// Use ref.Value()...
//
// # Scoped Acquisition
//
// With and WithPoolable bracket acquire and release around a function, so
// the resource is returned on every termination path including panics:
//
//	err := pool.With(ctx, func(ctx context.Context, c *Conn) error {
//	    return c.Ping(ctx)
//	})
//
// # Sizing and Waiting
//
// At most Config.SizeMax resources exist at any time, counting allocations
// still in flight. When the pool is at capacity and no idle resource is
// available, Acquire waits in a queue bounded by Config.MaxPendingAcquire;
// AcquireWithin additionally bounds the time spent in that queue. Waiters
// are served in the configured Order as resources are released.
//
// # Eviction
//
// An EvictionPredicate, consulted before hand-out and after reset, retires
// resources by acquire count, age or idle time; the EvictAfterAcquires,
// EvictOlderThan, EvictIdleLongerThan and EvictAny helpers cover the common
// policies. Destroyed resources are torn down by the DestroyHandler, or by
// Close() when the resource implements io.Closer and no handler is set.
//
// # Instrumentation
//
// Pool.Metrics returns gauge snapshots; a MetricsRecorder observes the
// event stream (allocations, resets, destroys, recycles and the latency of
// each). The promrecorder subpackage provides a Prometheus-backed recorder.
// Diagnostics (destroy failures, redirected allocations) go to the
// log/slog logger supplied via Config.Logger, defaulting to slog.Default().
package refpool
