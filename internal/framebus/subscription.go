package framebus

import (
	"context"
	"sync"

	"github.com/bft-labs/stdio-inspect/internal/domain"
)

type slot struct {
	seq   uint64
	frame domain.Frame
}

// Stats tracks frame delivery for one subscription.
type Stats struct {
	Received uint64
	Missed   uint64
}

// Subscription is one consumer's view of the bus. Recv must be called
// from a single goroutine; Close may be called from any.
type Subscription struct {
	bus *Bus
	id  uint64

	mu     sync.Mutex
	ring   []slot
	head   int // index of the oldest queued slot
	count  int
	next   uint64 // sequence number the consumer expects next
	closed bool
	stats  Stats

	// notify has capacity 1 and is signalled whenever a frame is queued
	// or the subscription closes.
	notify chan struct{}
}

func newSubscription(bus *Bus, id uint64, capacity int, next uint64) *Subscription {
	return &Subscription{
		bus:    bus,
		id:     id,
		ring:   make([]slot, capacity),
		next:   next,
		notify: make(chan struct{}, 1),
	}
}

// enqueue is called with the bus lock held.
func (s *Subscription) enqueue(seq uint64, frame domain.Frame) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	tail := (s.head + s.count) % len(s.ring)
	s.ring[tail] = slot{seq: seq, frame: frame}
	if s.count == len(s.ring) {
		// Overwrote the oldest slot.
		s.head = (s.head + 1) % len(s.ring)
	} else {
		s.count++
	}
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Recv returns the next frame. It blocks until a frame is queued, the
// subscription is closed, or ctx is done.
//
// If frames were overwritten since the last call, Recv returns a
// *LaggedError carrying the exact number missed; the caller should keep
// calling Recv. After close, queued frames are still delivered before
// ErrClosed.
func (s *Subscription) Recv(ctx context.Context) (domain.Frame, error) {
	for {
		s.mu.Lock()
		if s.count > 0 {
			oldest := s.ring[s.head]
			if oldest.seq > s.next {
				missed := oldest.seq - s.next
				s.next = oldest.seq
				s.stats.Missed += missed
				s.mu.Unlock()
				return domain.Frame{}, &LaggedError{Missed: missed}
			}
			s.head = (s.head + 1) % len(s.ring)
			s.count--
			s.next = oldest.seq + 1
			s.stats.Received++
			s.mu.Unlock()
			return oldest.frame, nil
		}
		if s.closed {
			s.mu.Unlock()
			return domain.Frame{}, ErrClosed
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-ctx.Done():
			return domain.Frame{}, ctx.Err()
		}
	}
}

// Len returns the number of frames waiting to be received.
func (s *Subscription) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Stats returns a snapshot of the subscription's counters.
func (s *Subscription) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close detaches the subscription from the bus. Frames already queued
// can still be received.
func (s *Subscription) Close() {
	s.bus.remove(s.id)
	s.close()
}

func (s *Subscription) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.signal()
}
