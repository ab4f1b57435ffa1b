package herald

import "strconv"

// Tag keys for the structured tag set carried by every notification event.
// The transport delivers tags as a list of key/value pairs; they are
// normalized into a map once at ingestion so lookups never scan.
const (
	TagTarget  = "p"        // fingerprint of the identity the event is addressed to
	TagStatus  = "status"   // order-status code, decimal string
	TagOrderID = "order_id" // order reference for click-through navigation
)

// Event is an immutable order-status notification received from a coordinator.
//
// CreatedAt is a coordinator-assigned logical clock. It is not guaranteed
// monotonic across coordinators, or even within one coordinator's backlog
// replay, so nothing here may assume delivery order.
type Event struct {
	ID        string            `json:"id"`
	Origin    string            `json:"origin"` // coordinator public-key fingerprint
	CreatedAt int64             `json:"created_at"`
	Tags      map[string]string `json:"tags"`
	Content   string            `json:"content"`
}

// Target returns the fingerprint of the identity this event is addressed to.
func (e Event) Target() string {
	return e.Tags[TagTarget]
}

// OrderID returns the order reference, or "" when the event carries none.
func (e Event) OrderID() string {
	return e.Tags[TagOrderID]
}

// Status returns the order-status code. ok is false when the tag is absent
// or not a decimal number; callers fall through to the default sound then.
func (e Event) Status() (int, bool) {
	raw, present := e.Tags[TagStatus]
	if !present {
		return 0, false
	}
	status, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return status, true
}

// IsValid checks if the event is well-formed: it has an id, an origin,
// a timestamp and a target identity. Everything else is optional.
func (e Event) IsValid() bool {
	return e.ID != "" && e.Origin != "" && e.CreatedAt > 0 && e.Target() != ""
}
