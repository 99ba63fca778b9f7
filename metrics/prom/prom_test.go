package prom

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/IvanBrykalov/valuecache/cache"
	"github.com/IvanBrykalov/valuecache/state"
	"github.com/IvanBrykalov/valuecache/store/memstore"
)

func TestAdapter_Counters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewPedanticRegistry()
	a := New(reg, "valuecache", "test", prometheus.Labels{"instance": "a"})

	a.Hit()
	a.Hit()
	a.Miss()
	a.Evict(cache.EvictPersisted)
	a.Evict(cache.EvictClean)
	a.Evict(cache.EvictClean)
	a.Flush(3, 1)
	a.Size(7, 2)

	if got := testutil.ToFloat64(a.hits); got != 2 {
		t.Fatalf("hits=%v", got)
	}
	if got := testutil.ToFloat64(a.misses); got != 1 {
		t.Fatalf("misses=%v", got)
	}
	if got := testutil.ToFloat64(a.evicts.WithLabelValues("clean")); got != 2 {
		t.Fatalf("clean evictions=%v", got)
	}
	if got := testutil.ToFloat64(a.flushFails); got != 1 {
		t.Fatalf("flush failures=%v", got)
	}

	want := `
# HELP valuecache_test_dirty_entries Number of resident entries not yet persisted
# TYPE valuecache_test_dirty_entries gauge
valuecache_test_dirty_entries{instance="a"} 2
# HELP valuecache_test_flushed_total Dirty entries persisted by bulk flushes
# TYPE valuecache_test_flushed_total counter
valuecache_test_flushed_total{instance="a"} 3
# HELP valuecache_test_resident_entries Number of resident entries
# TYPE valuecache_test_resident_entries gauge
valuecache_test_resident_entries{instance="a"} 7
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want),
		"valuecache_test_dirty_entries", "valuecache_test_flushed_total", "valuecache_test_resident_entries"); err != nil {
		t.Fatal(err)
	}
}

// The adapter wired into a coordinator sees its traffic.
func TestAdapter_WithCoordinator(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	a := New(reg, "valuecache", "", nil)

	shape := state.Shape{Rows: 1, Cols: 2}
	ctx := context.Background()
	c := cache.New(memstore.New(), cache.Options{Capacity: 1, Shape: shape, Metrics: a})
	t.Cleanup(func() { _ = c.Close(ctx) })

	if err := c.Store(ctx, state.MustNew(shape, 1, 0), 1, 0); err != nil {
		t.Fatal(err)
	}
	if err := c.Store(ctx, state.MustNew(shape, 0, 1), 2, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := c.FlushDirty(ctx); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(a.evicts.WithLabelValues("persisted")); got != 1 {
		t.Fatalf("persisted evictions=%v", got)
	}
	if got := testutil.ToFloat64(a.flushed); got != 1 {
		t.Fatalf("flushed=%v", got)
	}
	if got := testutil.ToFloat64(a.resident); got != 1 {
		t.Fatalf("resident=%v", got)
	}
	if got := testutil.ToFloat64(a.dirty); got != 0 {
		t.Fatalf("dirty=%v", got)
	}
	if got := testutil.ToFloat64(a.misses); got != 2 {
		t.Fatalf("misses=%v", got)
	}
}
