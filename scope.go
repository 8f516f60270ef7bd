package refpool

import "context"

// WithPoolable acquires a resource, applies fn to it, and releases it on
// every termination path including panics, returning fn's result. It is
// the value-producing form of Pool.With; methods cannot introduce a second
// type parameter, so this lives as a package function.
//
// fn's result and error are returned as-is. If fn succeeds and the
// release handler fails, the release error is returned together with
// fn's result.
func WithPoolable[T, U any](
	ctx context.Context,
	p *Pool[T],
	fn func(ctx context.Context, res T) (U, error),
) (out U, err error) {
	r, err := p.Acquire(ctx)
	if err != nil {
		return out, err
	}
	defer func() {
		relErr := r.Release(context.WithoutCancel(ctx))
		if err == nil {
			err = relErr
		}
	}()
	return fn(ctx, r.Value())
}
