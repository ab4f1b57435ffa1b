package herald

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Manager reconciles the set of live federation subscriptions against the
// current identity set. Reconcile with an unchanged token set is a no-op;
// a changed set tears everything down and resubscribes fresh.
//
// The manager also owns the "loading" signal: true from reconcile-start
// until every coordinator has replayed its backlog at least once. A
// coordinator that never catches up leaves it stuck on true; bounding that
// wait is the transport's job, not ours.
type Manager struct {
	pool      EventPool
	directory *Directory
	registry  *Registry
	store     *Store
	sink      func(Event) // where incoming events go (the engine inbox)

	mu               sync.Mutex
	subscribedTokens map[string]bool
	current          Subscription
	pending          map[string]bool // coordinator fingerprints not yet caught up
	loading          bool

	loadingListenersMu sync.RWMutex
	loadingListeners   []func(bool)
}

// NewManager creates a subscription manager. sink receives every event the
// pool delivers, possibly from several transport goroutines at once.
func NewManager(pool EventPool, directory *Directory, registry *Registry, store *Store, sink func(Event)) *Manager {
	return &Manager{
		pool:             pool,
		directory:        directory,
		registry:         registry,
		store:            store,
		sink:             sink,
		subscribedTokens: make(map[string]bool),
	}
}

// Reconcile compares the incoming token set against the previously
// subscribed one, membership only. Identical sets signal ready immediately
// and touch nothing, so callers can invoke it as often as they like.
func (m *Manager) Reconcile(tokens []string) error {
	m.mu.Lock()

	if sameTokenSet(m.subscribedTokens, tokens) {
		m.mu.Unlock()
		m.setLoading(false)
		return nil
	}

	// Tear down before resubscribing; events from a closed subscription
	// are dropped by the transport, and anything that slips through fails
	// the target-identity filter anyway.
	if m.current != nil {
		m.current.Close()
		m.current = nil
	}

	m.subscribedTokens = make(map[string]bool, len(tokens))
	for _, token := range tokens {
		m.subscribedTokens[token] = true
	}

	fingerprints := m.registry.Fingerprints()
	m.store.Prune(fingerprints)

	if len(fingerprints) == 0 {
		// Nothing to subscribe for; we're trivially caught up.
		m.pending = nil
		m.mu.Unlock()
		m.setLoading(false)
		return nil
	}

	fps := make([]string, 0, len(fingerprints))
	for fp := range fingerprints {
		fps = append(fps, fp)
	}

	m.pending = make(map[string]bool, m.directory.Size())
	for _, c := range m.directory.All() {
		m.pending[c.Fingerprint] = true
	}
	m.mu.Unlock()

	m.setLoading(true)

	sub, err := m.pool.Subscribe(fps, m.directory.All(), PoolCallbacks{
		OnEvent:    m.sink,
		OnCaughtUp: m.coordinatorCaughtUp,
	})
	if err != nil {
		// Leave loading stuck on true: a federation we couldn't reach is
		// still catching up as far as the UI is concerned. The next
		// identity change retries naturally.
		m.mu.Lock()
		m.subscribedTokens = make(map[string]bool)
		m.mu.Unlock()
		logrus.Warnf("⚠️ federation subscribe failed: %v", err)
		return err
	}

	m.mu.Lock()
	m.current = sub
	m.mu.Unlock()

	logrus.Debugf("📡 subscribed %d identities across %d coordinators", len(fps), m.directory.Size())
	return nil
}

// coordinatorCaughtUp marks one coordinator's backlog replay as complete.
// Once all of them have reported in, loading flips to false.
func (m *Manager) coordinatorCaughtUp(fingerprint string) {
	m.mu.Lock()
	if m.pending != nil {
		delete(m.pending, fingerprint)
	}
	done := len(m.pending) == 0
	m.mu.Unlock()

	if done {
		m.setLoading(false)
	}
}

// Loading reports whether any coordinator is still replaying backlog.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// OnLoadingChange registers a callback fired whenever the loading signal
// flips. Called outside the manager lock.
func (m *Manager) OnLoadingChange(listener func(bool)) {
	m.loadingListenersMu.Lock()
	defer m.loadingListenersMu.Unlock()
	m.loadingListeners = append(m.loadingListeners, listener)
}

func (m *Manager) setLoading(loading bool) {
	m.mu.Lock()
	changed := m.loading != loading
	m.loading = loading
	m.mu.Unlock()

	if !changed {
		return
	}
	m.loadingListenersMu.RLock()
	listeners := m.loadingListeners
	m.loadingListenersMu.RUnlock()
	for _, listener := range listeners {
		listener(loading)
	}
}

// Close tears down the live subscription, if any.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.Close()
		m.current = nil
	}
	m.subscribedTokens = make(map[string]bool)
}

// sameTokenSet compares token sets by membership; order is irrelevant.
func sameTokenSet(previous map[string]bool, tokens []string) bool {
	seen := make(map[string]bool, len(tokens))
	for _, token := range tokens {
		seen[token] = true
	}
	if len(seen) != len(previous) {
		return false
	}
	for token := range seen {
		if !previous[token] {
			return false
		}
	}
	return true
}
