package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Pool is the orchestrator: it owns the idle store, the pending queue and
// the slot accounting, and drives resource lifecycle through the
// user-supplied allocator and handlers. It is safe for concurrent use by
// multiple goroutines.
//
// Synchronization strategy: one mutex guards every admission decision (idle
// poll, slot reservation, queue admission, handoff, close), so the decision
// sequence each operation performs is a single critical section and the
// counted invariants hold at every observable point. User code (allocator,
// handlers, predicates other than the eviction predicate) runs outside the
// lock; sends to waiters go into buffered channels and cannot block the
// critical section.
type Pool[T any] struct {
	cfg Config[T]
	rec MetricsRecorder
	log *slog.Logger

	mu      sync.Mutex
	idle    *idleStore[T]
	pending *pendingQueue[T]

	// allocated counts live resources plus in-flight allocations
	// (reserved slots). Never exceeds cfg.SizeMax.
	allocated    int
	maxAllocated int
	maxPending   int
	closed       bool

	// destroyWG tracks outstanding destroy handlers so Close can wait for
	// resources to be fully torn down.
	destroyWG sync.WaitGroup

	// shardRR assigns home shards to newly allocated refs round-robin.
	shardRR atomic.Uint32
}

// NewPool validates cfg, warms up Config.InitialSize resources and returns
// the running pool. Warm-up allocations run concurrently; the first failure
// cancels the rest, destroys whatever was already created, and leaves the
// pool uncreated with the allocator's error returned to the caller.
func NewPool[T any](ctx context.Context, cfg Config[T]) (*Pool[T], error) {
	if err := cfg.validateAndDefault(); err != nil {
		return nil, err
	}
	p := &Pool[T]{
		cfg:     cfg,
		rec:     cfg.MetricsRecorder,
		log:     cfg.Logger,
		idle:    newIdleStore[T](cfg.Order, cfg.Affinity),
		pending: newPendingQueue[T](cfg.Order),
	}
	if cfg.InitialSize > 0 {
		if err := p.warmUp(ctx, cfg.InitialSize); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// warmUp allocates n resources concurrently and parks them idle. On any
// failure the already-created resources are destroyed before returning.
func (p *Pool[T]) warmUp(ctx context.Context, n int) error {
	g, gctx := errgroup.WithContext(ctx)
	for range n {
		g.Go(func() error {
			p.mu.Lock()
			p.reserveSlotLocked()
			p.mu.Unlock()
			r, err := p.allocateBorn(gctx, refIdle)
			if err != nil {
				return err
			}
			p.mu.Lock()
			r.enterIdle()
			p.idle.put(r)
			p.mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.mu.Lock()
		created := p.idle.drain()
		p.allocated -= len(created)
		p.mu.Unlock()
		for _, r := range created {
			if derr := p.destroy(context.WithoutCancel(ctx), r); derr != nil {
				p.log.Warn("destroying resource after warm-up failure",
					"ref", r.ID(), "error", derr)
			}
		}
		return fmt.Errorf("warming up pool: %w", err)
	}
	return nil
}

// Acquire borrows a resource, blocking until one is available, the pool
// closes, or ctx is done. The fast path hands out an idle resource
// synchronously; when the pool may still grow, the caller owns a fresh
// allocation; otherwise the caller waits in the pending queue (subject to
// Config.MaxPendingAcquire).
//
// Cancelling ctx while waiting removes the request from the queue with no
// other side effect. Cancelling while owning an in-flight allocation does
// not abort the allocation: Acquire returns the context error immediately
// and the resource, once produced, is put back through the normal release
// path.
func (p *Pool[T]) Acquire(ctx context.Context) (*Ref[T], error) {
	return p.acquire(ctx, 0)
}

// AcquireWithin is Acquire with a pending-queue timeout: if the request is
// still queued after timeout has elapsed since admission, it fails with
// ErrAcquireTimeout. The timer is armed only on admission to the queue.
// Synchronous grants never start it, and a borrower promoted to own an
// allocation has it disarmed, so a slow allocator that ultimately serves
// this borrower does not trip the timeout. A timeout <= 0 behaves exactly
// like Acquire.
func (p *Pool[T]) AcquireWithin(ctx context.Context, timeout time.Duration) (*Ref[T], error) {
	return p.acquire(ctx, timeout)
}

func (p *Pool[T]) acquire(ctx context.Context, timeout time.Duration) (*Ref[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context done before acquire: %w", err)
	}

	p.mu.Lock()
	for {
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}
		r, ok := p.idle.pop()
		if !ok {
			break
		}
		if p.cfg.EvictionPredicate != nil && p.cfg.EvictionPredicate(r.res, r) {
			p.allocated--
			p.destroyAsync(r, "evicted on acquire")
			continue
		}
		idleFor := r.IdleTime()
		r.markAcquired()
		p.mu.Unlock()
		p.rec.IdleTimeRecorded(idleFor)
		return r, nil
	}

	if p.allocated < p.cfg.SizeMax {
		p.reserveSlotLocked()
		p.mu.Unlock()
		return p.allocateOwned(ctx)
	}

	if p.cfg.MaxPendingAcquire != PendingUnbounded && p.pending.len() >= p.cfg.MaxPendingAcquire {
		p.mu.Unlock()
		return nil, ErrPendingQueueFull
	}
	w := newWaiter[T](timeout)
	p.pending.push(w)
	if n := p.pending.len(); n > p.maxPending {
		p.maxPending = n
	}
	p.mu.Unlock()

	return p.await(ctx, w)
}

// reserveSlotLocked claims one allocation slot. Caller holds the lock and
// has verified allocated < SizeMax (or is warming up within InitialSize).
func (p *Pool[T]) reserveSlotLocked() {
	p.allocated++
	if p.allocated > p.maxAllocated {
		p.maxAllocated = p.allocated
	}
}

// allocateOwned runs an allocation the calling borrower owns. The allocator
// itself runs on a detached context: if the borrower gives up, the
// allocation still completes and the resource is released back into the
// pool instead of being wasted.
func (p *Pool[T]) allocateOwned(ctx context.Context) (*Ref[T], error) {
	done := make(chan acquireResult[T], 1)
	go func() {
		r, err := p.allocate(context.WithoutCancel(ctx))
		done <- acquireResult[T]{ref: r, err: err}
	}()

	select {
	case out := <-done:
		return out.ref, out.err
	case <-ctx.Done():
		go func() {
			out := <-done
			if out.err == nil {
				p.releaseBack(out.ref)
			}
		}()
		return nil, fmt.Errorf("context done while allocating: %w", ctx.Err())
	}
}

// allocate invokes the allocator for an already-reserved slot and wraps the
// result in an acquired ref. On failure the slot is returned and, since a
// freed slot can serve the queue, the next waiter (if any) is promoted to
// its own allocation attempt. On success the closed flag is rechecked: a
// pool closed mid-allocation destroys the fresh resource and reports
// ErrPoolClosed, mirroring the close semantics of a pending wait.
func (p *Pool[T]) allocate(ctx context.Context) (*Ref[T], error) {
	return p.allocateBorn(ctx, refAcquired)
}

// allocateBorn is allocate with the birth state chosen by the caller:
// refAcquired for borrower-driven growth, refIdle for warm-up.
func (p *Pool[T]) allocateBorn(ctx context.Context, born uint32) (*Ref[T], error) {
	start := time.Now()
	res, err := p.cfg.Allocator(ctx)
	if err != nil {
		p.rec.AllocationFailed(time.Since(start))
		p.mu.Lock()
		p.allocated--
		w := p.promoteWaiterLocked()
		p.mu.Unlock()
		if w != nil {
			go p.allocateFor(w)
		}
		return nil, fmt.Errorf("allocating resource: %w", err)
	}
	p.rec.AllocationSucceeded(time.Since(start))

	r := newRef(p, res, born)
	p.mu.Lock()
	if p.closed {
		p.allocated--
		p.mu.Unlock()
		r.state.Store(refReleasing)
		if derr := p.destroy(ctx, r); derr != nil {
			p.log.Warn("destroying resource allocated after close",
				"ref", r.ID(), "error", derr)
		}
		return nil, ErrPoolClosed
	}
	p.mu.Unlock()
	return r, nil
}

// allocateFor completes a promoted waiter: the allocation result, success
// or failure, terminates that waiter's acquire. If the waiter cancelled in
// the meantime, a successful allocation is redirected through the release
// path so the resource serves the next borrower instead.
func (p *Pool[T]) allocateFor(w *waiter[T]) {
	r, err := p.allocate(context.Background())

	p.mu.Lock()
	if w.state == waiterPromoted {
		w.deliver(acquireResult[T]{ref: r, err: err})
		p.mu.Unlock()
		return
	}
	// Cancelled after promotion.
	p.mu.Unlock()
	if err == nil {
		p.log.Debug("redirecting allocation for cancelled borrower", "ref", r.ID())
		p.releaseBack(r)
	}
}

// promoteWaiterLocked pops the next waiter and hands it a freshly reserved
// allocation slot, disarming its timeout. Returns nil when the pool is
// closed, no waiter is queued, or no slot is free. Caller holds the lock
// and starts allocateFor(w) in a new goroutine after unlocking.
func (p *Pool[T]) promoteWaiterLocked() *waiter[T] {
	if p.closed || p.allocated >= p.cfg.SizeMax {
		return nil
	}
	w := p.pending.pop()
	if w == nil {
		return nil
	}
	w.state = waiterPromoted
	w.stopTimer()
	p.reserveSlotLocked()
	return w
}

// await parks the borrower on its waiter until delivery, cancellation or
// timeout. Races between delivery and the other two outcomes are resolved
// under the pool lock: a delivered result always exists in the buffered
// channel by the time the delivered state is observable.
func (p *Pool[T]) await(ctx context.Context, w *waiter[T]) (*Ref[T], error) {
	var timerC <-chan time.Time
	if w.timer != nil {
		timerC = w.timer.C
	}
	for {
		select {
		case out := <-w.ch:
			w.stopTimer()
			if out.err != nil {
				return nil, out.err
			}
			return out.ref, nil

		case <-ctx.Done():
			p.mu.Lock()
			switch w.state {
			case waiterDelivered:
				p.mu.Unlock()
				w.stopTimer()
				out := <-w.ch
				if out.err != nil {
					return nil, out.err
				}
				// Delivery raced the cancellation; the borrower is
				// gone, so route the ref back through release.
				go p.releaseBack(out.ref)
				return nil, fmt.Errorf("waiting for resource: %w", ctx.Err())
			case waiterPending:
				p.pending.cancel(w)
			default: // waiterPromoted
				w.state = waiterCancelled
			}
			p.mu.Unlock()
			w.stopTimer()
			return nil, fmt.Errorf("waiting for resource: %w", ctx.Err())

		case <-timerC:
			p.mu.Lock()
			switch w.state {
			case waiterDelivered:
				// Delivery beat the timeout; the borrower takes the ref.
				p.mu.Unlock()
				out := <-w.ch
				if out.err != nil {
					return nil, out.err
				}
				return out.ref, nil
			case waiterPending:
				p.pending.cancel(w)
				p.mu.Unlock()
				return nil, ErrAcquireTimeout
			default: // waiterPromoted: owns an allocation, cannot time out
				p.mu.Unlock()
				timerC = nil
			}
		}
	}
}

// nextShard assigns a home shard to a new ref, spreading births round-robin
// across the idle store's partitions.
func (p *Pool[T]) nextShard() int {
	return int(p.shardRR.Add(1) - 1)
}

// Metrics returns a snapshot of the pool gauges.
func (p *Pool[T]) Metrics() Metrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	idle := p.idle.len()
	return Metrics{
		Allocated:    p.allocated,
		Idle:         idle,
		Acquired:     p.allocated - idle,
		Pending:      p.pending.len(),
		MaxAllocated: p.maxAllocated,
		MaxPending:   p.maxPending,
	}
}

// Closed reports whether Close has been called.
func (p *Pool[T]) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
