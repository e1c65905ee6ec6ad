// Package broadcast fans a run's coverage updates and crawl events out to
// any number of subscribers (C9): an HTTP streaming handler, a CLI
// progress printer, a test harness. An event that does not fit in a slow
// subscriber's buffer is discarded for that subscriber rather than allowed
// to block the crawl; the subscriber itself stays registered.
package broadcast

import (
	"sync"
	"time"

	"github.com/demomirror/crawler/internal/model"
)

const subscriberBufferSize = 32

// Subscriber is a channel a consumer reads events from. Closed by the Hub
// when the consumer unsubscribes or the run ends.
type Subscriber struct {
	events chan model.Event
	hub    *Hub
	id     uint64
}

// Events returns the channel to range over.
func (s *Subscriber) Events() <-chan model.Event {
	return s.events
}

// Close unsubscribes, releasing the hub's reference to this subscriber.
func (s *Subscriber) Close() {
	s.hub.unsubscribe(s.id)
}

// Hub is the per-run subscriber registry and event fan-out point.
type Hub struct {
	mu          sync.Mutex
	runID       string
	subscribers map[uint64]*Subscriber
	nextID      uint64
	lastSnap    *model.CoverageSnapshot
}

// New creates a Hub for one run.
func New(runID string) *Hub {
	return &Hub{runID: runID, subscribers: make(map[uint64]*Subscriber)}
}

// Subscribe registers a new subscriber and immediately pushes the most
// recent coverage snapshot (if any) so a late joiner doesn't wait for the
// next tick to see where the run stands.
func (h *Hub) Subscribe() *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscriber{
		events: make(chan model.Event, subscriberBufferSize),
		hub:    h,
		id:     h.nextID,
	}
	h.subscribers[sub.id] = sub

	if h.lastSnap != nil {
		h.pushLocked(sub, model.Event{
			Kind:      model.EventCoverageUpdate,
			RunID:     h.runID,
			Timestamp: time.Now(),
			Coverage:  h.lastSnap,
		})
	}

	return sub
}

func (h *Hub) unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subscribers[id]; ok {
		close(sub.events)
		delete(h.subscribers, id)
	}
}

// pushLocked delivers ev to sub without blocking; a full buffer means the
// subscriber is silently dropped for that one event.
func (h *Hub) pushLocked(sub *Subscriber, ev model.Event) {
	select {
	case sub.events <- ev:
	default:
	}
}

func (h *Hub) broadcastLocked(ev model.Event) {
	for _, sub := range h.subscribers {
		h.pushLocked(sub, ev)
	}
}

// PublishCoverage pushes a coverage_update event and remembers the
// snapshot so future subscribers get it immediately on connect.
func (h *Hub) PublishCoverage(snap model.CoverageSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastSnap = &snap
	h.broadcastLocked(model.Event{
		Kind:      model.EventCoverageUpdate,
		RunID:     h.runID,
		Timestamp: time.Now(),
		Coverage:  &snap,
	})
}

// PublishCrawlEvent pushes a crawl_event of the given sub-kind.
func (h *Hub) PublishCrawlEvent(kind model.CrawlEventType, message string, detail map[string]any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastLocked(model.Event{
		Kind:           model.EventCrawlEvent,
		RunID:          h.runID,
		Timestamp:      time.Now(),
		CrawlEventType: kind,
		Message:        message,
		Detail:         detail,
	})
}

// PublishHeartbeat pushes a heartbeat event, used by the streaming
// transport to keep idle connections alive between coverage updates.
func (h *Hub) PublishHeartbeat() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastLocked(model.Event{
		Kind:      model.EventHeartbeat,
		RunID:     h.runID,
		Timestamp: time.Now(),
	})
}

// SubscriberCount reports how many subscribers are currently attached.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// CloseAll closes every subscriber's channel, used when a run finishes and
// no further events will be published.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subscribers {
		close(sub.events)
		delete(h.subscribers, id)
	}
}
