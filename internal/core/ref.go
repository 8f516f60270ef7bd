package core

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Ref states. The only legal transitions are idle→acquired (hand-out),
// acquired→releasing (release or invalidate entry), idle→releasing
// (idle teardown by Close), releasing→idle
// (recycle), releasing→acquired (direct handoff to a waiter), and
// {idle,releasing}→destroyed. The destroyed state is terminal and entered
// at most once.
const (
	refIdle uint32 = iota
	refAcquired
	refReleasing
	refDestroyed
)

// Ref is the handle wrapping one pooled resource together with its
// per-acquisition bookkeeping. The pool owns every Ref it creates; borrowers
// interact with the resource only through the handle and must not retain
// the resource past Release.
//
// Release and Invalidate are idempotent: calls on a handle that is not
// currently acquired are no-ops. Ref implements Metadata.
type Ref[T any] struct {
	id   string
	pool *Pool[T]
	res  T

	state    atomic.Uint32
	acquires atomic.Int64

	allocatedAt time.Time

	// lastIdleAt is the UnixNano timestamp of the last entry into the
	// idle store, 0 if the resource has never been released.
	lastIdleAt atomic.Int64

	// shard is the idle-store partition this ref lives in under affinity
	// mode. Guarded by the pool lock.
	shard int
}

// newRef wraps a freshly allocated resource. Refs born for a borrower start
// acquired with the hand-out already counted; refs born during warm-up
// start idle with a zero acquire count.
func newRef[T any](p *Pool[T], res T, born uint32) *Ref[T] {
	r := &Ref[T]{
		id:          uuid.NewString(),
		pool:        p,
		res:         res,
		allocatedAt: time.Now(),
		shard:       p.nextShard(),
	}
	r.state.Store(born)
	if born == refAcquired {
		r.acquires.Store(1)
	}
	return r
}

// Value returns the managed resource. Valid only while the ref is acquired.
func (r *Ref[T]) Value() T {
	return r.res
}

// ID returns a unique identifier for this ref, suitable for log correlation.
func (r *Ref[T]) ID() string {
	return r.id
}

// AcquireCount returns how many times the resource has been handed to a
// borrower.
func (r *Ref[T]) AcquireCount() int64 {
	return r.acquires.Load()
}

// Age returns the time elapsed since the resource was allocated.
func (r *Ref[T]) Age() time.Duration {
	return time.Since(r.allocatedAt)
}

// IdleTime returns the time elapsed since the resource last entered the
// idle store, or zero if it never has. A resource allocated for a borrower
// reports zero on its first release, so idle-based eviction cannot retire
// it for its age alone; a warm-up resource entered the idle store at
// construction and accrues idle time from then.
func (r *Ref[T]) IdleTime() time.Duration {
	at := r.lastIdleAt.Load()
	if at == 0 {
		return 0
	}
	return time.Since(time.Unix(0, at))
}

// Release returns the resource to the pool. The release handler runs first;
// if it fails, the resource is destroyed anyway and the handler's error is
// returned. Otherwise the resource is recycled (handed to a waiting
// borrower or stored idle) unless the eviction predicate or a closed pool
// dictates destruction. Calling Release on a ref that is not acquired is a
// no-op returning nil.
func (r *Ref[T]) Release(ctx context.Context) error {
	return r.pool.release(ctx, r)
}

// Invalidate destroys the resource unconditionally, without running the
// release handler. The destroy handler's error, if any, is returned; this
// is the only path that surfaces destroy failures. Idempotent like Release.
func (r *Ref[T]) Invalidate(ctx context.Context) error {
	return r.pool.invalidate(ctx, r)
}

// markAcquired transitions the ref to acquired and counts the hand-out.
// Called under the pool lock from the idle store or a direct handoff.
func (r *Ref[T]) markAcquired() {
	r.state.Store(refAcquired)
	r.acquires.Add(1)
}

// enterIdle records the idle timestamp and moves the ref to the idle state.
// Called under the pool lock just before insertion into the idle store.
func (r *Ref[T]) enterIdle() {
	r.lastIdleAt.Store(time.Now().UnixNano())
	r.state.Store(refIdle)
}

var _ Metadata = (*Ref[any])(nil)
