// Package stream implements the live-update fan-out: a concurrency-safe
// subscriber registry with best-effort broadcast, plus an optional Redis
// relay for multi-instance deployments.
package stream

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types published by the mutation paths.
const (
	EventIssueCreated  = "issue_created"
	EventStatusChanged = "status_changed"
	EventIssueUpvoted  = "issue_upvoted"
	EventCommentAdded  = "comment_added"
)

// Event is a live-update payload delivered to stream subscribers.
type Event struct {
	Type    string         `json:"type"`
	IssueID string         `json:"issueId,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	At      time.Time      `json:"at"`
}

// Subscriber is one live connection's view of the bus.
type Subscriber struct {
	id        string
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// ID returns the subscriber's handle.
func (s *Subscriber) ID() string { return s.id }

// Events is the subscriber's outbound channel. Events that arrive while the
// buffer is full are dropped; delivery is best effort.
func (s *Subscriber) Events() <-chan Event { return s.events }

// Done is closed when the subscriber has been removed from the registry.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

func (s *Subscriber) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

const subscriberBuffer = 16

// Bus is a registry of live subscribers. Broadcast walks a snapshot of the
// registry so subscribers may come and go mid-broadcast.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]*Subscriber
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]*Subscriber)}
}

// Subscribe registers a new subscriber. It only observes events broadcast
// while it remains registered; there is no backlog or replay.
func (b *Bus) Subscribe() *Subscriber {
	sub := &Subscriber{
		id:     uuid.NewString(),
		events: make(chan Event, subscriberBuffer),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscriber. Unknown handles are ignored. The
// subscriber's channel is never closed, so a broadcast racing with removal
// writes into an abandoned buffer instead of panicking.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()

	if ok {
		sub.close()
	}
}

// Broadcast delivers the event to every currently registered subscriber and
// returns how many accepted it. Subscribers with a full buffer are skipped.
func (b *Bus) Broadcast(event Event) int {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	b.mu.RLock()
	snapshot := make([]*Subscriber, 0, len(b.subs))
	for _, sub := range b.subs {
		snapshot = append(snapshot, sub)
	}
	b.mu.RUnlock()

	delivered := 0
	for _, sub := range snapshot {
		select {
		case sub.events <- event:
			delivered++
		default:
		}
	}
	return delivered
}

// Len returns the number of registered subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
