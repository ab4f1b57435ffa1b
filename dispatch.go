package herald

import "github.com/sirupsen/logrus"

// SoundCategory names one of the notification sounds the platform ships.
type SoundCategory string

const (
	SoundDing       SoundCategory = "ding"
	SoundTakerFound SoundCategory = "taker-found"
	SoundSuccessful SoundCategory = "successful"
	SoundChat       SoundCategory = "chat"
)

// soundByStatus maps order-status codes to sound categories. The table is
// closed: codes not listed here fall through to SoundDing.
var soundByStatus = map[int]SoundCategory{
	6:  SoundTakerFound,
	13: SoundSuccessful,
	14: SoundSuccessful,
	15: SoundSuccessful,
}

// SoundForStatus resolves the sound for an order-status code.
// Unknown codes never fail; they map to the default ding.
func SoundForStatus(status int, known bool) SoundCategory {
	if !known {
		return SoundDing
	}
	if category, listed := soundByStatus[status]; listed {
		return category
	}
	return SoundDing
}

// Audio is the fire-and-forget playback collaborator.
type Audio interface {
	Play(category SoundCategory)
}

// Toaster surfaces a transient toast. onClick runs when the user interacts
// with it; implementations may drop it (e.g. a headless client).
type Toaster interface {
	ShowToast(content string, onClick func())
}

// NavigationTarget is what a toast click resolves to: enough to switch to
// the originating identity and open the order.
type NavigationTarget struct {
	IdentityToken string
	OrderID       string
}

// Dispatcher decides sound/toast/navigation side effects, exactly once per
// freshly-accepted event. The watermark is its single gate: events that
// don't advance it are backlog and stay silent.
type Dispatcher struct {
	watermark   *Watermark
	registry    *Registry
	audio       Audio
	toaster     Toaster
	constrained bool // constrained display mode: sounds only, no toasts
	navigate    func(NavigationTarget)
}

// NewDispatcher wires the dispatcher to its collaborators. audio, toaster
// and navigate may each be nil; the corresponding side effect is skipped.
func NewDispatcher(watermark *Watermark, registry *Registry, audio Audio, toaster Toaster, constrained bool) *Dispatcher {
	return &Dispatcher{
		watermark:   watermark,
		registry:    registry,
		audio:       audio,
		toaster:     toaster,
		constrained: constrained,
	}
}

// SetNavigator installs the click-through navigation collaborator.
func (d *Dispatcher) SetNavigator(navigate func(NavigationTarget)) {
	d.navigate = navigate
}

// HandleAccepted runs the side-effect decision for one event the store just
// classified as accepted. Duplicates never get here; the store has already
// swallowed them.
func (d *Dispatcher) HandleAccepted(e Event) {
	advanced, previous := d.watermark.AdvanceIfNewer(e.CreatedAt)
	if !advanced {
		// Backlog: already seen in a prior session, or a newer event in
		// this batch covers it. Stored for display, no side effects.
		logrus.Debugf("💤 backlog notification %s (ts %d ≤ watermark %d)", e.ID, e.CreatedAt, previous)
		return
	}

	status, known := e.Status()
	category := SoundForStatus(status, known)
	if d.audio != nil {
		d.audio.Play(category)
	}

	if d.toaster != nil && !d.constrained {
		d.toaster.ShowToast(e.Content, func() { d.clickThrough(e) })
	}

	logrus.Infof("🔔 new notification from %s: %s", shortFingerprint(e.Origin), e.Content)
}

// clickThrough resolves the event back to (identity, order) when the user
// interacts with its toast. If the slot was removed in the meantime, or the
// event carries no order reference, navigation is a no-op.
func (d *Dispatcher) clickThrough(e Event) {
	if d.navigate == nil {
		return
	}
	orderID := e.OrderID()
	if orderID == "" {
		return
	}
	identity, ok := d.registry.ByFingerprint(e.Target())
	if !ok {
		logrus.Debugf("🤷 notification %s points at a removed identity, not navigating", e.ID)
		return
	}
	d.navigate(NavigationTarget{IdentityToken: identity.Token, OrderID: orderID})
}
