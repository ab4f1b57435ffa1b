package herald

import (
	"context"

	"github.com/sirupsen/logrus"
)

// eventInboxSize buffers transport deliveries so pool callbacks never block
// on the engine's single consumer.
const eventInboxSize = 128

// Engine glues the pieces together: identity changes drive subscription
// reconciliation, incoming events pass the origin trust check and the
// target-identity filter, survivors land in the store, and each fresh
// accept runs the dispatcher exactly once.
//
// All store/watermark mutation happens on one processing goroutine fed by
// channel inboxes, so the transport can deliver from as many goroutines as
// it likes.
type Engine struct {
	Registry   *Registry
	Directory  *Directory
	Store      *Store
	Watermark  *Watermark
	Dispatcher *Dispatcher

	manager *Manager

	eventInbox  chan Event
	reconcileCh chan struct{}
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewEngine assembles an engine around its collaborators. audio and toaster
// may be nil for headless use; install navigation with SetNavigator.
func NewEngine(directory *Directory, pool EventPool, kv KV, audio Audio, toaster Toaster, constrained bool) *Engine {
	registry := NewRegistry()
	store := NewStore()
	watermark := NewWatermark(kv)

	en := &Engine{
		Registry:    registry,
		Directory:   directory,
		Store:       store,
		Watermark:   watermark,
		Dispatcher:  NewDispatcher(watermark, registry, audio, toaster, constrained),
		eventInbox:  make(chan Event, eventInboxSize),
		reconcileCh: make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
	en.manager = NewManager(pool, directory, registry, store, en.enqueue)
	return en
}

// SetNavigator installs the click-through navigation collaborator.
func (en *Engine) SetNavigator(navigate func(NavigationTarget)) {
	en.Dispatcher.SetNavigator(navigate)
}

// Start warms the watermark, wires registry changes to reconciliation and
// launches the processing loop. The initial reconcile runs immediately.
func (en *Engine) Start() {
	en.ctx, en.cancel = context.WithCancel(context.Background())

	logrus.Debugf("🌊 watermark starts at %d", en.Watermark.Load())

	en.Registry.OnChange(en.requestReconcile)
	go en.process()
	en.requestReconcile()
}

// Stop cancels the processing loop and closes the live subscription.
func (en *Engine) Stop() {
	if en.cancel == nil {
		return
	}
	en.cancel()
	<-en.done
	en.manager.Close()
}

// OrderedView exposes the store's descending-timestamp projection to the
// surrounding UI layer.
func (en *Engine) OrderedView() []Event {
	return en.Store.OrderedView()
}

// Loading reports whether any coordinator is still replaying backlog.
func (en *Engine) Loading() bool {
	return en.manager.Loading()
}

// OnLoadingChange registers a callback on the loading signal.
func (en *Engine) OnLoadingChange(listener func(bool)) {
	en.manager.OnLoadingChange(listener)
}

// enqueue is the pool-facing sink. It never blocks the transport: when the
// inbox is full the event is dropped, which the next backlog replay heals.
func (en *Engine) enqueue(e Event) {
	select {
	case en.eventInbox <- e:
	default:
		logrus.Warnf("⚠️ event inbox full, dropping %s", e.ID)
	}
}

// requestReconcile coalesces registry-change bursts into one pending
// reconcile.
func (en *Engine) requestReconcile() {
	select {
	case en.reconcileCh <- struct{}{}:
	default:
	}
}

func (en *Engine) process() {
	defer close(en.done)
	for {
		select {
		case e := <-en.eventInbox:
			en.handleEvent(e)
		case <-en.reconcileCh:
			en.manager.Reconcile(en.Registry.Tokens())
		case <-en.ctx.Done():
			return
		}
	}
}

// handleEvent is the single ingestion path: validate shape, check origin
// trust, filter on target identity, dedupe into the store, dispatch.
func (en *Engine) handleEvent(e Event) {
	if !e.IsValid() {
		logrus.Debugf("🚮 dropping malformed event %q", e.ID)
		return
	}

	// Trust boundary: an origin the directory doesn't know is discarded
	// silently and never reaches the store.
	if _, known := en.Directory.Resolve(e.Origin); !known {
		logrus.Debugf("🚫 dropping event %s from untrusted origin %s", e.ID, shortFingerprint(e.Origin))
		return
	}

	// Prune filter, applied at ingestion: events for identities we no
	// longer (or never did) hold are a normal filtering outcome, not an
	// error. This also swallows stragglers from torn-down subscriptions.
	if !en.Registry.HasFingerprint(e.Target()) {
		logrus.Debugf("🤷 dropping event %s for unknown identity %s", e.ID, shortFingerprint(e.Target()))
		return
	}

	switch en.Store.Accept(e) {
	case DecisionAccepted:
		en.Dispatcher.HandleAccepted(e)
	case DecisionDuplicate:
		logrus.Debugf("♻️ duplicate event %s", e.ID)
	case DecisionInvalid:
		// Unreachable: IsValid ran above. Kept so the switch is total.
	}
}
