package herald

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Identity is a locally-held credential slot. Token is the ownership key
// into the registry; Fingerprint is the derived public key used to match
// incoming events; HashID is an optional display hash.
type Identity struct {
	Token       string `json:"token"`
	Fingerprint string `json:"fingerprint"`
	HashID      string `json:"hash_id,omitempty"`
}

// Registry owns the current set of local identities. Identities come and go
// at runtime; listeners are told after every change so subscriptions can be
// reconciled and stale events pruned.
type Registry struct {
	mu         sync.RWMutex
	identities map[string]Identity // keyed by token

	listenersMu sync.RWMutex
	listeners   []func()
}

// NewRegistry creates an empty identity registry.
func NewRegistry() *Registry {
	return &Registry{identities: make(map[string]Identity)}
}

// Put adds or replaces an identity slot and notifies listeners.
func (r *Registry) Put(id Identity) error {
	if id.Token == "" || id.Fingerprint == "" {
		return fmt.Errorf("identity needs both token and fingerprint")
	}

	r.mu.Lock()
	r.identities[id.Token] = id
	r.mu.Unlock()

	logrus.Debugf("🤖 identity slot added (fingerprint %s)", shortFingerprint(id.Fingerprint))
	r.notifyListeners()
	return nil
}

// Remove deletes an identity slot by token. Removing an absent token is a
// no-op and does not notify.
func (r *Registry) Remove(token string) {
	r.mu.Lock()
	_, present := r.identities[token]
	delete(r.identities, token)
	r.mu.Unlock()

	if !present {
		return
	}
	logrus.Debug("🗑️ identity slot removed")
	r.notifyListeners()
}

// Tokens returns the current token set, sorted for stable logging.
// Only membership matters to callers; order carries no meaning.
func (r *Registry) Tokens() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tokens := make([]string, 0, len(r.identities))
	for token := range r.identities {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}

// Fingerprints returns the fingerprint set of all current identities.
func (r *Registry) Fingerprints() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fps := make(map[string]bool, len(r.identities))
	for _, id := range r.identities {
		fps[id.Fingerprint] = true
	}
	return fps
}

// ByFingerprint resolves an identity by its fingerprint. Used for
// click-through navigation; the slot may be gone by then, so the caller
// must handle ok == false as a no-op.
func (r *Registry) ByFingerprint(fingerprint string) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.identities {
		if id.Fingerprint == fingerprint {
			return id, true
		}
	}
	return Identity{}, false
}

// HasFingerprint reports whether any current identity matches the fingerprint.
func (r *Registry) HasFingerprint(fingerprint string) bool {
	_, ok := r.ByFingerprint(fingerprint)
	return ok
}

// OnChange registers a callback fired after every add/remove.
// Listeners are called synchronously, outside the registry lock.
func (r *Registry) OnChange(listener func()) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	r.listeners = append(r.listeners, listener)
}

func (r *Registry) notifyListeners() {
	r.listenersMu.RLock()
	listeners := r.listeners
	r.listenersMu.RUnlock()

	for _, listener := range listeners {
		listener()
	}
}

func shortFingerprint(fp string) string {
	if len(fp) <= 8 {
		return fp
	}
	return fp[:8]
}
