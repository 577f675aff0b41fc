// Package bus carries cross-cutting client notifications, such as session expiry, from the
// transport layer to whoever renders them. It stays entirely outside the streaming state
// machine.
package bus

import (
	"sync"
	"time"
)

// Notice is one broadcast notification.
type Notice struct {
	Reason string
	At     time.Time
}

// Bus is a single-writer broadcast channel. Publish fans a notice out to every subscriber
// without ever blocking the writer: a subscriber that is not keeping up misses notices.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Notice
	next int
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]chan Notice)}
}

// Subscribe registers a new subscriber and returns its channel along with a function that
// removes the subscription and closes the channel.
func (b *Bus) Subscribe() (<-chan Notice, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Notice, 4)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers a notice to all current subscribers, dropping it for any whose buffer
// is full.
func (b *Bus) Publish(n Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		select {
		case sub <- n:
		default:
		}
	}
}
