package herald

import (
	"math/rand"
	"sync"
	"testing"
)

func TestWatermark_LoadFailsSoft(t *testing.T) {
	// No persisted value
	w := NewWatermark(newMemKV())
	if got := w.Load(); got != 0 {
		t.Errorf("expected 0 with empty store, got %d", got)
	}

	// Store unavailable
	broken := newMemKV()
	broken.failGet = true
	w = NewWatermark(broken)
	if got := w.Load(); got != 0 {
		t.Errorf("expected 0 with unavailable store, got %d", got)
	}

	// Garbage value
	garbage := newMemKV()
	garbage.Set(watermarkKey, "not-a-number")
	w = NewWatermark(garbage)
	if got := w.Load(); got != 0 {
		t.Errorf("expected 0 with garbage value, got %d", got)
	}
}

func TestWatermark_LoadPersisted(t *testing.T) {
	kv := newMemKV()
	kv.Set(watermarkKey, "1700000000")

	w := NewWatermark(kv)
	if got := w.Load(); got != 1700000000 {
		t.Errorf("expected persisted watermark, got %d", got)
	}
}

func TestWatermark_AdvanceIfNewer(t *testing.T) {
	kv := newMemKV()
	w := NewWatermark(kv)

	advanced, previous := w.AdvanceIfNewer(100)
	if !advanced || previous != 0 {
		t.Fatalf("expected first advance from 0, got advanced=%v previous=%d", advanced, previous)
	}
	if kv.get(watermarkKey) != "100" {
		t.Errorf("expected persisted 100, got %q", kv.get(watermarkKey))
	}

	// Smaller candidate arriving later must not move it backward.
	advanced, previous = w.AdvanceIfNewer(50)
	if advanced {
		t.Error("expected no advance for smaller timestamp")
	}
	if previous != 100 {
		t.Errorf("expected previous 100, got %d", previous)
	}
	if kv.get(watermarkKey) != "100" {
		t.Errorf("watermark regressed on disk to %q", kv.get(watermarkKey))
	}

	// Equal candidate is stale too.
	if advanced, _ := w.AdvanceIfNewer(100); advanced {
		t.Error("expected no advance for equal timestamp")
	}
}

func TestWatermark_SurvivesPersistenceFailure(t *testing.T) {
	kv := newMemKV()
	kv.failSet = true
	w := NewWatermark(kv)

	advanced, _ := w.AdvanceIfNewer(100)
	if !advanced {
		t.Fatal("expected in-memory advance despite persistence failure")
	}
	// The session must not re-fire side effects for the same timestamp.
	if advanced, _ := w.AdvanceIfNewer(100); advanced {
		t.Error("expected equal timestamp to stay stale after failed persist")
	}
}

func TestWatermark_ConcurrentAdvanceKeepsMaximum(t *testing.T) {
	kv := newMemKV()
	w := NewWatermark(kv)

	const max = int64(10_000)
	timestamps := rand.Perm(int(max))

	var wg sync.WaitGroup
	for producer := 0; producer < 8; producer++ {
		wg.Add(1)
		go func(producer int) {
			defer wg.Done()
			for i := producer; i < len(timestamps); i += 8 {
				w.AdvanceIfNewer(int64(timestamps[i]) + 1)
			}
		}(producer)
	}
	wg.Wait()

	if got := w.Load(); got != max {
		t.Errorf("expected final watermark %d, got %d", max, got)
	}
	if kv.get(watermarkKey) != "10000" {
		t.Errorf("expected persisted 10000, got %q", kv.get(watermarkKey))
	}
}
