package herald

import (
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
)

// watermarkKey is the single KV key holding the last-shown timestamp.
const watermarkKey = "last_notification"

// Watermark tracks the largest creation timestamp of any event the user has
// been shown, persisted across restarts. It only ever moves forward:
// AdvanceIfNewer is a compare-and-set, so concurrent accept paths can race
// freely and a late, smaller timestamp can never drag it backward.
type Watermark struct {
	mu      sync.Mutex
	kv      KV
	current int64
	loaded  bool
}

// NewWatermark creates a tracker backed by the given KV store.
func NewWatermark(kv KV) *Watermark {
	return &Watermark{kv: kv}
}

// Load returns the persisted watermark, reading it on first call.
// It fails soft: a missing key, unreadable store or garbage value all come
// back as 0, which degrades to re-surfacing already-seen notifications
// instead of crashing.
func (w *Watermark) Load() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loadLocked()
	return w.current
}

func (w *Watermark) loadLocked() {
	if w.loaded {
		return
	}
	w.loaded = true

	raw, present, err := w.kv.Get(watermarkKey)
	if err != nil {
		logrus.Warnf("⚠️ watermark unavailable, starting at 0: %v", err)
		return
	}
	if !present || raw == "" {
		return
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		logrus.Warnf("⚠️ ignoring malformed watermark %q", raw)
		return
	}
	w.current = value
}

// AdvanceIfNewer persists candidate as the new watermark if it is strictly
// greater than the current one. Returns whether it advanced and the value
// seen before the call.
//
// A failed persistence write still advances the in-memory value; the cost
// is only a possible duplicate toast after the next restart, whereas
// rolling back would re-fire side effects within this session.
func (w *Watermark) AdvanceIfNewer(candidate int64) (advanced bool, previous int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loadLocked()

	previous = w.current
	if candidate <= previous {
		return false, previous
	}

	w.current = candidate
	if err := w.kv.Set(watermarkKey, strconv.FormatInt(candidate, 10)); err != nil {
		logrus.Warnf("⚠️ could not persist watermark %d: %v", candidate, err)
	}
	return true, previous
}
