package herald

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// Topic layout: herald/<coordinator-fingerprint>/p/<identity-fingerprint>.
// Coordinators publish notification events retained, so the broker replays
// each identity's backlog on subscribe; the replay is what the caught-up
// signal is derived from.
const topicPrefix = "herald"

// defaultDrainWindow is how long a coordinator's stream must stay quiet
// after the subscribe ack before we call its backlog replayed. Retained
// messages arrive in a burst right after the ack, so a short window is
// enough; live events after it don't matter, caught-up only fires once.
const defaultDrainWindow = 750 * time.Millisecond

// MQTTPool implements EventPool over a shared MQTT broker connection.
type MQTTPool struct {
	client mqtt.Client

	// DrainWindow overrides the backlog quiet period. Tests shrink it.
	DrainWindow time.Duration
}

// NewMQTTPool configures a broker connection. Call Connect before Subscribe.
func NewMQTTPool(host, clientID, user, pass string) *MQTTPool {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(host)
	opts.SetClientID(clientID)
	opts.SetUsername(user)
	opts.SetPassword(pass)
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(client mqtt.Client) {
		logrus.Println("Connected to MQTT")
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logrus.Printf("MQTT Connection lost: %v", err)
	}
	return &MQTTPool{client: mqtt.NewClient(opts), DrainWindow: defaultDrainWindow}
}

// Connect dials the broker and blocks until the connection is up.
func (p *MQTTPool) Connect() error {
	if token := p.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connecting to broker: %w", token.Error())
	}
	return nil
}

// Disconnect closes the broker connection.
func (p *MQTTPool) Disconnect() {
	p.client.Disconnect(250)
}

// Subscribe opens one topic filter per (coordinator, identity) pair. The
// whole request fails as a unit: a filter the broker rejects rolls back the
// ones already opened.
func (p *MQTTPool) Subscribe(identityFingerprints []string, coordinators []Coordinator, callbacks PoolCallbacks) (Subscription, error) {
	s := &mqttSubscription{
		pool:      p,
		callbacks: callbacks,
		timers:    make(map[string]*time.Timer, len(coordinators)),
		caughtUp:  make(map[string]bool, len(coordinators)),
	}

	for _, coordinator := range coordinators {
		handler := s.handlerFor(coordinator.Fingerprint)
		for _, fp := range identityFingerprints {
			topic := notificationTopic(coordinator.Fingerprint, fp)
			if token := p.client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
				s.Close()
				return nil, fmt.Errorf("subscribing %s: %w", topic, token.Error())
			}
			s.topics = append(s.topics, topic)
		}
		s.armDrainTimer(coordinator.Fingerprint)
	}

	return s, nil
}

// Publish sends one notification event on behalf of a coordinator,
// retained so late subscribers get it as backlog. Used by coordinator-side
// tooling and the integration tests; the engine itself never publishes.
func (p *MQTTPool) Publish(coordinatorFingerprint string, e Event) error {
	payload, err := json.Marshal(wireFromEvent(e))
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", e.ID, err)
	}
	topic := notificationTopic(coordinatorFingerprint, e.Target())
	if token := p.client.Publish(topic, 1, true, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

func notificationTopic(coordinatorFP, identityFP string) string {
	return fmt.Sprintf("%s/%s/p/%s", topicPrefix, coordinatorFP, identityFP)
}

type mqttSubscription struct {
	pool      *MQTTPool
	callbacks PoolCallbacks
	topics    []string

	mu       sync.Mutex
	closed   bool
	timers   map[string]*time.Timer // per-coordinator drain timers
	caughtUp map[string]bool
}

// handlerFor builds the message handler for one coordinator's topics.
func (s *mqttSubscription) handlerFor(coordinatorFP string) mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		// Retained deliveries are backlog replay; keep pushing the
		// caught-up signal out while they're still streaming in.
		if msg.Retained() {
			if timer, armed := s.timers[coordinatorFP]; armed {
				timer.Reset(s.pool.DrainWindow)
			}
		}
		s.mu.Unlock()

		var wire wireEvent
		if err := json.Unmarshal(msg.Payload(), &wire); err != nil {
			logrus.Warnf("⚠️ undecodable event on %s: %v", msg.Topic(), err)
			return
		}
		if s.callbacks.OnEvent != nil {
			s.callbacks.OnEvent(wire.toEvent())
		}
	}
}

// armDrainTimer starts the backlog quiet-period timer for one coordinator.
func (s *mqttSubscription) armDrainTimer(coordinatorFP string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.timers[coordinatorFP] = time.AfterFunc(s.pool.DrainWindow, func() {
		s.markCaughtUp(coordinatorFP)
	})
}

func (s *mqttSubscription) markCaughtUp(coordinatorFP string) {
	s.mu.Lock()
	if s.closed || s.caughtUp[coordinatorFP] {
		s.mu.Unlock()
		return
	}
	s.caughtUp[coordinatorFP] = true
	delete(s.timers, coordinatorFP)
	s.mu.Unlock()

	logrus.Debugf("✅ coordinator %s caught up", shortFingerprint(coordinatorFP))
	if s.callbacks.OnCaughtUp != nil {
		s.callbacks.OnCaughtUp(coordinatorFP)
	}
}

// Close stops delivery and releases the broker-side filters. Events racing
// with Close are dropped by the closed check in the handler.
func (s *mqttSubscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, timer := range s.timers {
		timer.Stop()
	}
	s.timers = nil
	topics := s.topics
	s.mu.Unlock()

	if len(topics) > 0 {
		if token := s.pool.client.Unsubscribe(topics...); token.Wait() && token.Error() != nil {
			logrus.Warnf("⚠️ unsubscribe failed: %v", token.Error())
		}
	}
}

// wireEvent is the JSON shape coordinators publish. Tags travel as ordered
// key/value pairs; they're folded into the Event's map once here, first
// value per key winning, so nothing downstream ever scans pair lists.
type wireEvent struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"` // origin fingerprint
	CreatedAt int64      `json:"created_at"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
}

func (w wireEvent) toEvent() Event {
	tags := make(map[string]string, len(w.Tags))
	for _, pair := range w.Tags {
		if len(pair) < 2 {
			continue
		}
		if _, taken := tags[pair[0]]; !taken {
			tags[pair[0]] = pair[1]
		}
	}
	return Event{
		ID:        w.ID,
		Origin:    w.PubKey,
		CreatedAt: w.CreatedAt,
		Tags:      tags,
		Content:   w.Content,
	}
}

func wireFromEvent(e Event) wireEvent {
	tags := make([][]string, 0, len(e.Tags))
	// Keep the canonical keys first so the wire form is stable.
	for _, key := range []string{TagTarget, TagStatus, TagOrderID} {
		if value, present := e.Tags[key]; present {
			tags = append(tags, []string{key, value})
		}
	}
	for key, value := range e.Tags {
		if key == TagTarget || key == TagStatus || key == TagOrderID {
			continue
		}
		tags = append(tags, []string{key, value})
	}
	return wireEvent{
		ID:        e.ID,
		PubKey:    e.Origin,
		CreatedAt: e.CreatedAt,
		Tags:      tags,
		Content:   e.Content,
	}
}
