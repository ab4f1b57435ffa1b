package herald

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Decision is the outcome of offering an event to the store.
type Decision string

const (
	DecisionAccepted  Decision = "accepted"
	DecisionDuplicate Decision = "duplicate"
	DecisionInvalid   Decision = "invalid"
)

// Store holds the working set of received notification events, keyed by
// unique id. It must tolerate concurrent writes from every live coordinator
// subscription; the mutex is the only coordination point between them.
//
// Origin trust is checked by the caller against the Directory - spoofed
// events must never reach Accept.
type Store struct {
	mu       sync.RWMutex
	events   []Event // insertion order, ties in OrderedView break on this
	eventIDs map[string]bool
	version  int64 // increments on prune, for debugging structural changes
}

// NewStore creates an empty event store.
func NewStore() *Store {
	return &Store{eventIDs: make(map[string]bool)}
}

// Accept inserts the event unless its id is already present.
// Malformed events are rejected outright; they would otherwise be
// unprunable (no target) or unsortable (no timestamp).
func (s *Store) Accept(e Event) Decision {
	if !e.IsValid() {
		return DecisionInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.eventIDs[e.ID] {
		return DecisionDuplicate
	}
	s.events = append(s.events, e)
	s.eventIDs[e.ID] = true
	return DecisionAccepted
}

// Has checks if an event id is already stored.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eventIDs[id]
}

// Len returns the number of stored events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Prune drops every event whose target identity is not in the given
// fingerprint set. It runs whenever the identity set changes, both to bound
// memory and to keep another identity's notifications from leaking into
// view. Returns how many events were removed.
func (s *Store) Prune(validFingerprints map[string]bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]Event, 0, len(s.events))
	for _, e := range s.events {
		if validFingerprints[e.Target()] {
			kept = append(kept, e)
		} else {
			delete(s.eventIDs, e.ID)
		}
	}

	removed := len(s.events) - len(kept)
	if removed > 0 {
		s.events = kept
		s.version++
		logrus.Debugf("🧹 pruned %d notification(s) for removed identities", removed)
	}
	return removed
}

// OrderedView returns a read-only snapshot sorted by descending creation
// timestamp, ties broken by insertion order. It never mutates store state;
// call it again for a fresh view.
func (s *Store) OrderedView() []Event {
	s.mu.RLock()
	snapshot := make([]Event, len(s.events))
	copy(snapshot, s.events)
	s.mu.RUnlock()

	sort.SliceStable(snapshot, func(i, j int) bool {
		return snapshot[i].CreatedAt > snapshot[j].CreatedAt
	})
	return snapshot
}
