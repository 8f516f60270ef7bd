package core

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// Package-level test sentinels, identifiable through wrapping.
var (
	sentinelAllocErr   = errors.New("allocator failure")
	sentinelDestroyErr = errors.New("destroy failure")
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not reached: %s", msg)
}

// TestWarmUpPopulatesIdle verifies InitialSize resources exist before the
// first acquire.
func TestWarmUpPopulatesIdle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var allocs atomic.Int64
	p, err := NewPool(ctx, Config[int]{
		Allocator: func(context.Context) (int, error) {
			return int(allocs.Add(1)), nil
		},
		SizeMax:     4,
		InitialSize: 3,
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	m := p.Metrics()
	if m.Idle != 3 || m.Allocated != 3 || m.Acquired != 0 {
		t.Errorf("metrics after warm-up = %+v, want 3 idle / 3 allocated", m)
	}
	if allocs.Load() != 3 {
		t.Errorf("allocator ran %d times, want 3", allocs.Load())
	}

	// Warmed resources hand out without new allocations.
	r, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if allocs.Load() != 3 {
		t.Errorf("acquire of a warm resource allocated, count = %d", allocs.Load())
	}
	if r.AcquireCount() != 1 {
		t.Errorf("warm resource AcquireCount = %d, want 1", r.AcquireCount())
	}
}

// TestWarmUpFailureDestroysCreated verifies a failed warm-up leaves no pool
// and no live resources behind.
func TestWarmUpFailureDestroysCreated(t *testing.T) {
	t.Parallel()

	var allocs, destroys atomic.Int64
	_, err := NewPool(context.Background(), Config[int]{
		Allocator: func(context.Context) (int, error) {
			if allocs.Add(1) == 3 {
				return 0, sentinelAllocErr
			}
			return 0, nil
		},
		DestroyHandler: func(context.Context, int) error {
			destroys.Add(1)
			return nil
		},
		SizeMax:     3,
		InitialSize: 3,
	})
	if !errors.Is(err, sentinelAllocErr) {
		t.Fatalf("NewPool error = %v, want the allocator's error", err)
	}
	if got := destroys.Load(); got != allocs.Load()-1 {
		t.Errorf("destroyed %d resources, want %d (every successful allocation)", got, allocs.Load()-1)
	}
}

// TestAllocationErrorDoesNotConsumeCapacity verifies a failed grow frees
// its slot: the next acquire allocates again.
func TestAllocationErrorDoesNotConsumeCapacity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var fail atomic.Bool
	fail.Store(true)
	p, err := NewPool(ctx, Config[int]{
		Allocator: func(context.Context) (int, error) {
			if fail.Load() {
				return 0, sentinelAllocErr
			}
			return 1, nil
		},
		SizeMax: 1,
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	if _, err := p.Acquire(ctx); !errors.Is(err, sentinelAllocErr) {
		t.Fatalf("Acquire error = %v, want the allocator's error", err)
	}
	if m := p.Metrics(); m.Allocated != 0 {
		t.Fatalf("Allocated after failed grow = %d, want 0", m.Allocated)
	}

	fail.Store(false)
	r, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire after recovery: %v", err)
	}
	if r.Value() != 1 {
		t.Errorf("Value = %d, want 1", r.Value())
	}
}

// TestAllocationFailurePromotesWaiter verifies that when an owned
// allocation fails, a queued borrower inherits the freed slot and gets its
// own allocation attempt instead of waiting forever.
func TestAllocationFailurePromotesWaiter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var calls atomic.Int64
	started := make(chan struct{})
	release := make(chan struct{})
	p, err := NewPool(ctx, Config[int]{
		Allocator: func(context.Context) (int, error) {
			n := calls.Add(1)
			if n == 1 {
				close(started)
				<-release
				return 0, sentinelAllocErr
			}
			return int(n), nil
		},
		SizeMax:           1,
		MaxPendingAcquire: PendingUnbounded,
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	ownerErr := make(chan error, 1)
	go func() {
		_, err := p.Acquire(ctx)
		ownerErr <- err
	}()
	<-started

	waiterRes := make(chan error, 1)
	go func() {
		r, err := p.Acquire(ctx)
		if err == nil {
			err = r.Release(ctx)
		}
		waiterRes <- err
	}()
	waitFor(t, func() bool { return p.Metrics().Pending == 1 }, "second acquire queued")

	close(release)

	if err := <-ownerErr; !errors.Is(err, sentinelAllocErr) {
		t.Errorf("owner error = %v, want the allocator's error", err)
	}
	if err := <-waiterRes; err != nil {
		t.Errorf("promoted waiter error = %v, want success", err)
	}
	if calls.Load() != 2 {
		t.Errorf("allocator ran %d times, want 2", calls.Load())
	}
}

// TestCloseDuringAllocation verifies the post-allocation closed recheck:
// the borrower sees ErrPoolClosed and the fresh resource is torn down.
func TestCloseDuringAllocation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	started := make(chan struct{})
	finish := make(chan struct{})
	var destroys atomic.Int64
	p, err := NewPool(ctx, Config[int]{
		Allocator: func(context.Context) (int, error) {
			close(started)
			<-finish
			return 1, nil
		},
		DestroyHandler: func(context.Context, int) error {
			destroys.Add(1)
			return nil
		},
		SizeMax: 1,
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	got := make(chan error, 1)
	go func() {
		_, err := p.Acquire(ctx)
		got <- err
	}()
	<-started

	if err := p.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	close(finish)

	if err := <-got; !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Acquire error = %v, want ErrPoolClosed", err)
	}
	waitFor(t, func() bool { return destroys.Load() == 1 }, "late resource destroyed")
	if m := p.Metrics(); m.Allocated != 0 {
		t.Errorf("Allocated = %d, want 0", m.Allocated)
	}
}

// TestStressNoLeak churns acquires and releases from many goroutines and
// then checks the conservation law: everything created is destroyed.
func TestStressNoLeak(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var created, destroyed atomic.Int64
	p, err := NewPool(ctx, Config[int]{
		Allocator: func(context.Context) (int, error) {
			return int(created.Add(1)), nil
		},
		DestroyHandler: func(context.Context, int) error {
			destroyed.Add(1)
			return nil
		},
		EvictionPredicate: func(_ int, m Metadata) bool {
			return m.AcquireCount()%7 == 0
		},
		SizeMax:           4,
		MaxPendingAcquire: PendingUnbounded,
		Affinity:          true,
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	var g errgroup.Group
	for range 16 {
		g.Go(func() error {
			for range 50 {
				r, err := p.Acquire(ctx)
				if err != nil {
					return err
				}
				if m := p.Metrics(); m.Allocated > 4 {
					t.Errorf("Allocated = %d exceeds SizeMax", m.Allocated)
				}
				if err := r.Release(ctx); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if err := p.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	waitFor(t, func() bool { return created.Load() == destroyed.Load() },
		"created == destroyed after close")
}

// TestCloseWaitsForDestroyHandlers verifies Close blocks until slow destroy
// handlers finish, and that its context bounds the wait.
func TestCloseWaitsForDestroyHandlers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var done atomic.Bool
	p, err := NewPool(ctx, Config[int]{
		Allocator: func(context.Context) (int, error) { return 1, nil },
		DestroyHandler: func(context.Context, int) error {
			time.Sleep(50 * time.Millisecond)
			done.Store(true)
			return nil
		},
		SizeMax:     1,
		InitialSize: 1,
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	if err := p.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !done.Load() {
		t.Error("Close returned before the destroy handler completed")
	}
	if !p.Closed() {
		t.Error("Closed() = false after Close")
	}
}

func TestCloseContextBoundsWait(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	p, err := NewPool(context.Background(), Config[int]{
		Allocator: func(context.Context) (int, error) { return 1, nil },
		DestroyHandler: func(context.Context, int) error {
			<-block
			return nil
		},
		SizeMax:     1,
		InitialSize: 1,
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	t.Cleanup(func() { close(block) })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := p.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Close error = %v, want deadline exceeded", err)
	}
}

// TestCloseIdempotent verifies the second Close is a no-op.
func TestCloseIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var destroys atomic.Int64
	p, err := NewPool(ctx, Config[int]{
		Allocator: func(context.Context) (int, error) { return 1, nil },
		DestroyHandler: func(context.Context, int) error {
			destroys.Add(1)
			return nil
		},
		SizeMax:     2,
		InitialSize: 2,
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	if err := p.Close(ctx); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := p.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if destroys.Load() != 2 {
		t.Errorf("destroy handler ran %d times, want 2", destroys.Load())
	}
}
