package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Bus fans engine events out to registered handlers. Delivery is synchronous
// and strictly sequential: Emit invokes each matching handler in
// subscription order on the calling goroutine and returns the first handler
// error unchanged. Handlers therefore never see concurrent invocations
// unless Emit itself is called concurrently; callers that parallelize
// evaluation batches must serialize Emit externally.
type Bus struct {
	mu   sync.Mutex
	subs []subscription
}

type subscription struct {
	id      string
	types   map[EventType]struct{}
	handler EventHandler
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for the event types it declares and returns
// a subscription id for later removal.
func (b *Bus) Subscribe(handler EventHandler) string {
	types := make(map[EventType]struct{})
	for _, t := range handler.EventTypes() {
		types[t] = struct{}{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	b.subs = append(b.subs, subscription{id: id, types: types, handler: handler})
	return id
}

// Unsubscribe removes a subscription. Unknown ids are ignored.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Emit delivers an event to every handler subscribed to its type, in
// subscription order. The first handler error aborts delivery and is
// returned unchanged.
func (b *Bus) Emit(ctx context.Context, event *Event) error {
	b.mu.Lock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, sub := range subs {
		if _, ok := sub.types[event.Type]; !ok {
			continue
		}
		if err := sub.handler.HandleEvent(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
