package promrecorder

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/giantswarm/refpool"
)

func TestRecorderRegistersAllCollectors(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	rec := New(reg, "testapp")

	rec.AllocationSucceeded(5 * time.Millisecond)
	rec.AllocationFailed(time.Millisecond)
	rec.ResourceReset(time.Millisecond)
	rec.ResourceDestroyed(time.Millisecond)
	rec.ResourceRecycled()
	rec.LifetimeRecorded(time.Second)
	rec.IdleTimeRecorded(10 * time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	want := map[string]bool{
		"testapp_pool_allocation_duration_seconds": false,
		"testapp_pool_reset_duration_seconds":      false,
		"testapp_pool_destroy_duration_seconds":    false,
		"testapp_pool_resource_lifetime_seconds":   false,
		"testapp_pool_resource_idle_seconds":       false,
		"testapp_pool_recycled_total":              false,
	}
	for _, fam := range families {
		if _, ok := want[fam.GetName()]; ok {
			want[fam.GetName()] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("metric family %s not gathered", name)
		}
	}
}

func TestRecycledCounter(t *testing.T) {
	t.Parallel()

	rec := New(prometheus.NewRegistry(), "")

	for range 3 {
		rec.ResourceRecycled()
	}

	if got := testutil.ToFloat64(rec.recycled); got != 3 {
		t.Errorf("recycled counter = %v, want 3", got)
	}
}

func TestAllocationOutcomesSeparated(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	rec := New(reg, "sep")

	rec.AllocationSucceeded(time.Millisecond)
	rec.AllocationSucceeded(time.Millisecond)
	rec.AllocationFailed(time.Millisecond)

	// Two label children must exist under the allocation family.
	if got := testutil.CollectAndCount(rec.allocation); got != 2 {
		t.Errorf("allocation histogram children = %d, want 2", got)
	}
}

// TestRecorderDrivenByPool wires the recorder into a real pool and checks
// the event stream lands in the collectors.
func TestRecorderDrivenByPool(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	reg := prometheus.NewRegistry()
	rec := New(reg, "driven")

	pool, err := refpool.New(ctx, refpool.Config[int]{
		Allocator:       func(context.Context) (int, error) { return 42, nil },
		MetricsRecorder: rec,
		SizeMax:         1,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ref, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := ref.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := pool.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if got := testutil.ToFloat64(rec.recycled); got != 1 {
		t.Errorf("recycled counter = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(rec.destroy); got != 1 {
		t.Errorf("destroy histogram children = %d, want 1", got)
	}
}
