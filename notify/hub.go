// Package notify fans write notifications out to in-process listeners.
//
// Delivery is best effort: Publish never blocks, and a listener whose buffer
// is full misses the event. Listeners that must not miss changes also poll.
package notify

import (
	"sync"
)

type Op string

const (
	OpPut    Op = "put"
	OpDelete Op = "delete"
)

// Event describes one successful write.
type Event struct {
	Scope      string
	Collection string
	ID         string
	Op         Op
}

// Filter selects the events a subscriber receives. Nil accepts everything.
type Filter func(Event) bool

// Collection returns a filter matching writes to one collection in any scope.
func Collection(name string) Filter {
	return func(e Event) bool { return e.Collection == name }
}

const defaultBuffer = 16

type subscriber struct {
	ch     chan Event
	filter Filter
}

// Hub is safe for concurrent use. The zero value is ready to use.
type Hub struct {
	mu      sync.Mutex
	nextID  int
	subs    map[int]*subscriber
	dropped int
}

func NewHub() *Hub { return &Hub{} }

// Subscribe registers a listener. The returned cancel func unregisters it and
// closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(filter Filter) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = make(map[int]*subscriber)
	}
	id := h.nextID
	h.nextID++
	s := &subscriber{ch: make(chan Event, defaultBuffer), filter: filter}
	h.subs[id] = s

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(s.ch)
		})
	}
}

// Publish delivers e to every matching subscriber without blocking.
func (h *Hub) Publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		if s.filter != nil && !s.filter(e) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			h.dropped++
		}
	}
}

// Subscribers returns the number of active listeners.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped because a buffer was full.
func (h *Hub) Dropped() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}
