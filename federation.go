package herald

import "fmt"

// Coordinator is a known, trusted event origin. The set of coordinators is
// loaded from configuration and stays read-only for the process lifetime.
type Coordinator struct {
	Alias       string `json:"alias"`
	Fingerprint string `json:"fingerprint"` // public-key fingerprint, hex
	Description string `json:"description,omitempty"`
}

// Directory indexes the federation by origin fingerprint so that event
// origin checks are a single map lookup. It is immutable after construction
// and therefore safe for concurrent use without locking.
type Directory struct {
	byFingerprint map[string]Coordinator
	ordered       []Coordinator
}

// NewDirectory builds a directory from the configured federation.
// Coordinators must carry a fingerprint and fingerprints must be unique.
func NewDirectory(coordinators []Coordinator) (*Directory, error) {
	d := &Directory{
		byFingerprint: make(map[string]Coordinator, len(coordinators)),
		ordered:       make([]Coordinator, 0, len(coordinators)),
	}
	for _, c := range coordinators {
		if c.Fingerprint == "" {
			return nil, fmt.Errorf("coordinator %q has no fingerprint", c.Alias)
		}
		if _, taken := d.byFingerprint[c.Fingerprint]; taken {
			return nil, fmt.Errorf("duplicate coordinator fingerprint %s", c.Fingerprint)
		}
		d.byFingerprint[c.Fingerprint] = c
		d.ordered = append(d.ordered, c)
	}
	return d, nil
}

// Resolve looks up a coordinator by origin fingerprint. Events whose origin
// does not resolve must be discarded before they reach the store.
func (d *Directory) Resolve(fingerprint string) (Coordinator, bool) {
	c, known := d.byFingerprint[fingerprint]
	return c, known
}

// All returns the federation in configuration order.
func (d *Directory) All() []Coordinator {
	out := make([]Coordinator, len(d.ordered))
	copy(out, d.ordered)
	return out
}

// Size returns how many coordinators are in the federation.
func (d *Directory) Size() int {
	return len(d.ordered)
}
