package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/plantqc/historian-bridge/pkg/types"
)

func reading(tag string, v float64) types.Reading {
	return types.Reading{Tag: tag, Value: v, Quality: types.QualityGood, Unit: "pH", Timestamp: time.Now().UTC()}
}

// fixedClock returns a func() time.Time that always returns t.
func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestPut_Lists(t *testing.T) {
	st := New(time.Minute)
	st.Put(reading("R1_PH.PV", 7.02))

	entries := st.List()
	if len(entries) != 1 {
		t.Fatalf("List: got %d entries, want 1", len(entries))
	}
	if entries[0].Reading.Value != 7.02 {
		t.Errorf("Value: got %v, want 7.02", entries[0].Reading.Value)
	}
}

func TestList_Empty(t *testing.T) {
	if n := len(New(time.Minute).List()); n != 0 {
		t.Fatalf("List on empty store: got %d entries, want 0", n)
	}
}

func TestPut_Overwrites(t *testing.T) {
	st := New(time.Minute)
	st.Put(reading("R2_TCC.PV", 0.49))
	st.Put(reading("R2_TCC.PV", 0.51))

	entries := st.List()
	if len(entries) != 1 || entries[0].Reading.Value != 0.51 {
		t.Errorf("List after overwrite: got %+v, want one entry with 0.51", entries)
	}
}

func TestTTL(t *testing.T) {
	if got := New(30 * time.Second).TTL(); got != 30*time.Second {
		t.Errorf("TTL: got %v, want 30s", got)
	}
}

func TestList_ExcludesStaleAndSorts(t *testing.T) {
	base := time.Now()
	st := New(30 * time.Second)

	st.now = fixedClock(base.Add(-time.Minute))
	st.Put(reading("R1_PH.PV", 7))

	st.now = fixedClock(base)
	st.Put(reading("R3_TCC.PV", 0.5))
	st.Put(reading("R2_PH.PV", 7))

	entries := st.List()
	if len(entries) != 2 {
		t.Fatalf("List: got %d entries, want 2", len(entries))
	}
	if entries[0].Reading.Tag != "R2_PH.PV" || entries[1].Reading.Tag != "R3_TCC.PV" {
		t.Errorf("order: got %q, %q", entries[0].Reading.Tag, entries[1].Reading.Tag)
	}
	if st.Count() != 3 {
		t.Errorf("Count: got %d, want 3 (stale not yet evicted)", st.Count())
	}
}

func TestEvict_RemovesStale(t *testing.T) {
	base := time.Now()
	st := New(30 * time.Second)

	st.now = fixedClock(base.Add(-time.Minute))
	st.Put(reading("old-1", 7))
	st.Put(reading("old-2", 7))

	st.now = fixedClock(base)
	st.Put(reading("live", 7))

	if removed := st.Evict(base); removed != 2 {
		t.Errorf("Evict: removed %d, want 2", removed)
	}
	if st.Count() != 1 {
		t.Errorf("Count after evict: got %d, want 1", st.Count())
	}
}

func TestZeroTTL_NeverExpires(t *testing.T) {
	base := time.Now()
	st := New(0)

	st.now = fixedClock(base.Add(-24 * time.Hour))
	st.Put(reading("R5_PH.PV", 7))
	st.now = fixedClock(base)

	if n := len(st.List()); n != 1 {
		t.Errorf("List: got %d entries, want 1", n)
	}
	if removed := st.Evict(base); removed != 0 {
		t.Errorf("Evict: removed %d, want 0", removed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { st.Run(ctx); close(done) }()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	st := New(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		st.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestConcurrentMixedOps(t *testing.T) {
	st := New(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			st.Put(reading("R4_PH.PV", 7))
		}()
		go func() {
			defer wg.Done()
			st.List()
		}()
	}
	wg.Wait()
	if st.Count() != 1 {
		t.Errorf("Count: got %d, want 1", st.Count())
	}
}
