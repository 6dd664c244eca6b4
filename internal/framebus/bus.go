package framebus

import (
	"sync"

	"github.com/bft-labs/stdio-inspect/internal/domain"
)

// DefaultCapacity is the per-subscriber backlog used when New gets a
// non-positive capacity.
const DefaultCapacity = 32

// Bus is a multi-producer, multi-consumer broadcast of frames.
// It implements ports.FramePublisher.
type Bus struct {
	mu          sync.RWMutex
	capacity    int
	subscribers map[uint64]*Subscription
	nextID      uint64
	published   uint64
	closed      bool
}

// New creates a bus whose subscribers each buffer up to capacity frames.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		capacity:    capacity,
		subscribers: make(map[uint64]*Subscription),
	}
}

// Subscribe registers a new subscription. It receives every frame
// published after Subscribe returns. Subscribing to a closed bus returns
// a subscription that is already closed.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	s := newSubscription(b, b.nextID, b.capacity, b.published)
	if b.closed {
		s.close()
		return s
	}
	b.subscribers[s.id] = s
	return s
}

// Publish delivers frame to every current subscriber. It never blocks on
// a slow subscriber and is a no-op when there are none.
func (b *Bus) Publish(frame domain.Frame) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	seq := b.published
	b.published++
	// Enqueue under the bus lock so every subscriber sees frames in the
	// same sequence order even with several publishers.
	for _, s := range b.subscribers {
		s.enqueue(seq, frame)
	}
	b.mu.Unlock()
}

// Published returns the number of frames published so far.
func (b *Bus) Published() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.published
}

func (b *Bus) subscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close stops the bus. Subscribers drain what is already queued and then
// receive ErrClosed. Close is idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, s := range b.subscribers {
		s.close()
		delete(b.subscribers, id)
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	delete(b.subscribers, id)
	b.mu.Unlock()
}
