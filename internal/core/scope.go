package core

import "context"

// With brackets fn between Acquire and Release so the resource is returned
// to the pool on every termination path: success, error and panic. The
// release runs on a context detached from ctx's cancellation, so a
// borrower cancelled mid-use still hands its resource back cleanly.
//
// fn's error is returned as-is. If fn succeeds and the release handler
// fails, the release error is returned instead.
func (p *Pool[T]) With(ctx context.Context, fn func(ctx context.Context, res T) error) (err error) {
	r, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		relErr := r.Release(context.WithoutCancel(ctx))
		if err == nil {
			err = relErr
		}
	}()
	return fn(ctx, r.Value())
}
