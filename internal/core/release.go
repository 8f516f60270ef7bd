package core

import (
	"context"
	"fmt"
	"io"
	"time"
)

// release is the Ref.Release implementation. The acquired→releasing CAS
// makes release idempotent and serializes it against a concurrent
// Invalidate: exactly one caller proceeds past this point per acquisition.
func (p *Pool[T]) release(ctx context.Context, r *Ref[T]) error {
	if !r.state.CompareAndSwap(refAcquired, refReleasing) {
		return nil
	}

	if p.cfg.ReleaseHandler != nil {
		start := time.Now()
		err := p.cfg.ReleaseHandler(ctx, r.res)
		p.rec.ResourceReset(time.Since(start))
		if err != nil {
			// A resource whose reset failed cannot be trusted:
			// destroy it and surface the handler's error to the
			// releaser. The destroy handler's own error, if any, is
			// logged, not surfaced.
			p.removeAndDestroy(context.WithoutCancel(ctx), r, "release handler failed")
			return fmt.Errorf("release handler: %w", err)
		}
	}

	evict := p.cfg.EvictionPredicate != nil && p.cfg.EvictionPredicate(r.res, r)

	p.mu.Lock()
	if p.closed || evict {
		p.allocated--
		var w *waiter[T]
		if !p.closed {
			// The freed slot can serve the queue.
			w = p.promoteWaiterLocked()
		}
		p.mu.Unlock()
		if w != nil {
			go p.allocateFor(w)
		}
		if err := p.destroy(context.WithoutCancel(ctx), r); err != nil {
			p.log.Warn("destroy handler failed on release", "ref", r.ID(), "error", err)
		}
		return nil
	}

	if w := p.pending.pop(); w != nil {
		// Direct handoff: the resource skips the idle store entirely.
		r.markAcquired()
		w.deliver(acquireResult[T]{ref: r})
		p.mu.Unlock()
		p.rec.ResourceRecycled()
		return nil
	}

	r.enterIdle()
	p.idle.put(r)
	p.mu.Unlock()
	p.rec.ResourceRecycled()
	return nil
}

// invalidate is the Ref.Invalidate implementation: unconditional
// destruction, no release handler, destroy errors surfaced.
func (p *Pool[T]) invalidate(ctx context.Context, r *Ref[T]) error {
	if !r.state.CompareAndSwap(refAcquired, refReleasing) {
		return nil
	}

	p.mu.Lock()
	p.allocated--
	w := p.promoteWaiterLocked()
	p.mu.Unlock()
	if w != nil {
		go p.allocateFor(w)
	}

	if err := p.destroy(ctx, r); err != nil {
		return fmt.Errorf("destroy handler: %w", err)
	}
	return nil
}

// releaseBack returns a ref nobody is waiting on anymore (cancelled owner
// or cancelled promoted waiter) to the pool through the normal release
// path, with a background context since the original caller is gone.
func (p *Pool[T]) releaseBack(r *Ref[T]) {
	if err := p.release(context.Background(), r); err != nil {
		p.log.Warn("releasing resource for cancelled borrower", "ref", r.ID(), "error", err)
	}
}

// removeAndDestroy drops r from the accounted set, offers the freed slot to
// the queue and destroys the resource, logging destroy failures.
func (p *Pool[T]) removeAndDestroy(ctx context.Context, r *Ref[T], reason string) {
	p.mu.Lock()
	p.allocated--
	w := p.promoteWaiterLocked()
	p.mu.Unlock()
	if w != nil {
		go p.allocateFor(w)
	}
	if err := p.destroy(ctx, r); err != nil {
		p.log.Warn("destroy handler failed", "ref", r.ID(), "reason", reason, "error", err)
	}
}

// destroyAsync tears r down in a new goroutine, tracked by destroyWG so
// Close can wait for it. The caller has already removed r from circulation
// and adjusted the allocated count.
func (p *Pool[T]) destroyAsync(r *Ref[T], reason string) {
	p.destroyWG.Add(1)
	go func() {
		defer p.destroyWG.Done()
		if err := p.destroy(context.Background(), r); err != nil {
			p.log.Warn("destroy handler failed", "ref", r.ID(), "reason", reason, "error", err)
		}
	}()
}

// destroy performs the terminal transition and runs the destroy handler (or
// the io.Closer fallback). Exactly one goroutine reaches this per ref: the
// caller either won the acquired→releasing CAS or holds the sole reference
// to a ref drained from the idle store.
func (p *Pool[T]) destroy(ctx context.Context, r *Ref[T]) error {
	r.state.Store(refDestroyed)
	start := time.Now()
	err := p.destroyResource(ctx, r.res)
	p.rec.ResourceDestroyed(time.Since(start))
	p.rec.LifetimeRecorded(time.Since(r.allocatedAt))
	return err
}

// destroyResource runs the configured destroy handler, falling back to the
// auto-close contract for io.Closer resources.
func (p *Pool[T]) destroyResource(ctx context.Context, res T) error {
	if p.cfg.DestroyHandler != nil {
		return p.cfg.DestroyHandler(ctx, res)
	}
	if c, ok := any(res).(io.Closer); ok {
		return c.Close()
	}
	return nil
}
