package herald

// PoolCallbacks are registered with every subscription request.
//
// OnEvent fires once per incoming event with no ordering guarantee, not
// across coordinators and not even within one coordinator's backlog replay.
// OnCaughtUp fires once per coordinator when its historical backlog replay
// completes. Both may be called from transport goroutines concurrently.
type PoolCallbacks struct {
	OnEvent    func(Event)
	OnCaughtUp func(coordinatorFingerprint string)
}

// Subscription is a live binding between the current identity set and the
// federation's event streams. Close tears it down; events still in flight
// after Close are dropped by the transport.
type Subscription interface {
	Close()
}

// EventPool is the federation event-pool collaborator. It owns the relay
// transport and whatever verification the wire format needs; the engine
// only sees decoded events.
type EventPool interface {
	// Subscribe opens one event stream per coordinator, scoped to the given
	// identity fingerprints.
	Subscribe(identityFingerprints []string, coordinators []Coordinator, callbacks PoolCallbacks) (Subscription, error)
}
