package core

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// closeConcurrency caps the number of destroy handlers Close runs at once.
const closeConcurrency = 10

// Close disposes the pool: every waiting borrower fails with ErrPoolClosed,
// every idle resource is destroyed, and subsequent acquires fail with
// ErrPoolClosed. Resources currently held by borrowers are not revoked;
// they remain usable and are destroyed instead of recycled on their next
// release.
//
// Close blocks until the idle resources' destroy handlers (and any destroy
// work already in flight) have completed, or until ctx is done, whichever
// comes first. Destroy failures are logged and do not stop disposal.
// Calling Close again is a no-op.
func (p *Pool[T]) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	for {
		w := p.pending.pop()
		if w == nil {
			break
		}
		w.deliver(acquireResult[T]{err: ErrPoolClosed})
	}
	idles := p.idle.drain()
	p.allocated -= len(idles)
	p.mu.Unlock()

	g := new(errgroup.Group)
	g.SetLimit(closeConcurrency)
	for _, r := range idles {
		g.Go(func() error {
			r.state.Store(refReleasing)
			if err := p.destroy(ctx, r); err != nil {
				p.log.Warn("destroying idle resource during close",
					"ref", r.ID(), "error", err)
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		p.destroyWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for idle resources to be destroyed: %w", ctx.Err())
	}
}
