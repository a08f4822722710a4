// Package events fans node events out to websocket subscribers. An event is
// a string of the form "viewer: <topic>: <payload>" and a subscriber may ask
// for a subset of the topics.
package events

import (
	"fmt"
	"strings"
	"sync"
)

// Prefix marks the event strings meant for subscribers.
const Prefix = "viewer:"

// messageBuffer is how many events a subscriber may fall behind before
// events are dropped for it.
const messageBuffer = 100

type subscriber struct {
	ch      chan string
	topics  map[string]bool
	dropped int
}

// wants reports whether the subscriber asked for the event's topic.
func (s *subscriber) wants(topic string) bool {
	return len(s.topics) == 0 || s.topics[topic]
}

// Events maintains the set of subscribers keyed by a unique id.
type Events struct {
	mu   sync.RWMutex
	subs map[string]*subscriber
}

// New constructs an Events for registering and receiving events.
func New() *Events {
	return &Events{
		subs: make(map[string]*subscriber),
	}
}

// Topic returns the topic of an event string, or false when the string is
// not an event.
func Topic(s string) (string, bool) {
	rest, ok := strings.CutPrefix(s, Prefix)
	if !ok {
		return "", false
	}

	topic, _, _ := strings.Cut(strings.TrimSpace(rest), ":")
	return strings.TrimSpace(topic), true
}

// Acquire registers the id and returns the channel its events arrive on.
// With no topics every event is delivered. Acquiring an id twice returns
// the existing channel.
func (evt *Events) Acquire(id string, topics ...string) chan string {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	if sub, exists := evt.subs[id]; exists {
		return sub.ch
	}

	sub := subscriber{
		ch:     make(chan string, messageBuffer),
		topics: make(map[string]bool, len(topics)),
	}
	for _, topic := range topics {
		if topic != "" {
			sub.topics[topic] = true
		}
	}

	evt.subs[id] = &sub
	return sub.ch
}

// Release closes and removes the channel registered for the id.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	sub, exists := evt.subs[id]
	if !exists {
		return fmt.Errorf("id %q does not exist", id)
	}

	delete(evt.subs, id)
	close(sub.ch)
	return nil
}

// Shutdown closes and removes every registered channel.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, sub := range evt.subs {
		delete(evt.subs, id)
		close(sub.ch)
	}
}

// Count returns the number of subscribers.
func (evt *Events) Count() int {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	return len(evt.subs)
}

// Dropped returns how many events were skipped for the id because its
// channel was full.
func (evt *Events) Dropped(id string) int {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	if sub, exists := evt.subs[id]; exists {
		return sub.dropped
	}
	return 0
}

// Send delivers the event to every subscriber of its topic. Strings without
// the event prefix are ignored. Send never blocks on a slow subscriber.
func (evt *Events) Send(s string) {
	topic, ok := Topic(s)
	if !ok {
		return
	}

	// The write lock covers the dropped counters.
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for _, sub := range evt.subs {
		if !sub.wants(topic) {
			continue
		}

		select {
		case sub.ch <- s:
		default:
			sub.dropped++
		}
	}
}
