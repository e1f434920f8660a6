package events

import (
	"context"
	"sync"
	"time"
)

// Entities that emit change events.
const (
	EntityChild  = "child"
	EntityTask   = "task"
	EntityReward = "reward"
)

// Actions carried by change events.
const (
	ActionCreated   = "created"
	ActionUpdated   = "updated"
	ActionDeleted   = "deleted"
	ActionCompleted = "completed"
	ActionApproved  = "approved"
)

// Change describes a mutation in a family's data, scoped to the owning
// parent so subscribers only see their own family's activity.
type Change struct {
	OwnerID   string    `json:"owner_id"`
	Entity    string    `json:"entity"`
	Action    string    `json:"action"`
	EntityID  string    `json:"entity_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Bus fan-outs change events to all active subscribers (SSE clients).
type Bus struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

type subscriber struct {
	ownerID string
	ch      chan Change
}

// New initialises an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]subscriber)}
}

// Subscribe registers a subscriber for one family's changes and returns a
// channel which will receive events. The channel is closed when the provided
// context ends.
func (b *Bus) Subscribe(ctx context.Context, ownerID string) <-chan Change {
	ch := make(chan Change, 16)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = subscriber{ownerID: ownerID, ch: ch}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to the family's subscribers.
func (b *Bus) Publish(evt Change) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.ownerID != evt.OwnerID {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
