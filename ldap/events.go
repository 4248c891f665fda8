package ldap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// EventType identifies a kind of client event.
type EventType string

const (
	EventConnect      EventType = "connect"
	EventConnectError EventType = "connectError"
	EventRequest      EventType = "request"
	EventResult       EventType = "result"
	EventError        EventType = "error"
	EventClose        EventType = "close"
	EventDestroy      EventType = "destroy"
)

// Event describes something that happened on a Client.
type Event struct {
	Type      EventType
	Time      time.Time
	URL       string        // Server URL for connection events
	Operation string        // Operation name for request/result/error events
	ID        string        // Call ID shared by all events of one operation
	Duration  time.Duration // Set on result events
	Err       error         // Error returned by the wrapped connection, if any
}

// Handler receives client events. Handlers run synchronously on the goroutine
// that produced the event and must not block.
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
	once    bool
}

// emitter is a minimal, goroutine-safe event dispatcher.
type emitter struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[EventType][]subscription
	all    []subscription
}

func newEmitter() *emitter {
	return &emitter{subs: make(map[EventType][]subscription)}
}

func (e *emitter) subscribe(eventType EventType, h Handler, once bool) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.subs[eventType] = append(e.subs[eventType], subscription{id: id, handler: h, once: once})

	return func() { e.remove(eventType, id) }
}

func (e *emitter) subscribeAll(h Handler) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.all = append(e.all, subscription{id: id, handler: h})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.all = without(e.all, id)
	}
}

func (e *emitter) remove(eventType EventType, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs[eventType] = without(e.subs[eventType], id)
}

func without(subs []subscription, id uint64) []subscription {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

// emit delivers ev to its type subscribers, then to catch-all subscribers.
func (e *emitter) emit(ctx context.Context, ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	e.mu.Lock()
	typed := e.subs[ev.Type]
	handlers := make([]Handler, 0, len(typed)+len(e.all))
	kept := typed[:0:0]
	for _, s := range typed {
		handlers = append(handlers, s.handler)
		if !s.once {
			kept = append(kept, s)
		}
	}
	e.subs[ev.Type] = kept
	for _, s := range e.all {
		handlers = append(handlers, s.handler)
	}
	e.mu.Unlock()

	for _, h := range handlers {
		dispatch(ctx, h, ev)
	}
}

func dispatch(ctx context.Context, h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			tflog.SubsystemError(ctx, subsystemLDAP, "Event handler panicked", map[string]any{
				"event": string(ev.Type),
				"panic": fmt.Sprint(r),
			})
		}
	}()
	h(ev)
}

// Subscribe registers h for events of the given type and returns a function
// that removes the subscription.
func (c *Client) Subscribe(eventType EventType, h Handler) (unsubscribe func()) {
	return c.events.subscribe(eventType, h, false)
}

// Once registers h for the next event of the given type only.
func (c *Client) Once(eventType EventType, h Handler) (unsubscribe func()) {
	return c.events.subscribe(eventType, h, true)
}

// SubscribeAll registers h for every event emitted by the client.
func (c *Client) SubscribeAll(h Handler) (unsubscribe func()) {
	return c.events.subscribeAll(h)
}
