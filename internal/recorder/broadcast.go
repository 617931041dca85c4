package recorder

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
)

// broadcastCapacity is the per-subscriber buffer. A subscriber that falls
// more than this many events behind loses the oldest pending events and is
// told how many it skipped; fast subscribers are unaffected.
const broadcastCapacity = 1000

// ErrStreamClosed ends a subscription after all buffered events are
// consumed and the sender side has shut down.
var ErrStreamClosed = errors.New("recorder: event stream closed")

// broadcast fans semantic events out to any number of subscribers with
// bounded buffering and per-subscriber lag accounting.
type broadcast struct {
	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
}

func newBroadcast() *broadcast {
	return &broadcast{subs: map[uint64]*Subscription{}}
}

// Subscription is one subscriber's view of the event stream. It is lazy:
// nothing is buffered before Subscribe, and each subscription drains
// independently.
type Subscription struct {
	b      *broadcast
	id     uint64
	ch     chan Event
	lagged atomic.Uint64
	total  atomic.Uint64
}

func (b *broadcast) subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := &Subscription{b: b, id: b.nextID, ch: make(chan Event, broadcastCapacity)}
	b.nextID++
	if b.closed {
		close(s.ch)
		return s
	}
	b.subs[s.id] = s
	return s
}

// publish delivers ev to every subscriber, dropping each lagging
// subscriber's oldest pending event to make room.
func (b *broadcast) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, s := range b.subs {
		select {
		case s.ch <- ev:
			continue
		default:
		}
		// Full: evict the oldest entry for this subscriber only.
		select {
		case <-s.ch:
			s.lagged.Add(1)
			s.total.Add(1)
		default:
		}
		select {
		case s.ch <- ev:
		default:
			s.lagged.Add(1)
			s.total.Add(1)
		}
	}
}

// close ends the stream. Subscribers drain their buffers, then receive
// ErrStreamClosed.
func (b *broadcast) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, s := range b.subs {
		close(s.ch)
		delete(b.subs, id)
	}
}

// Next returns the next event. When the subscriber lagged since the last
// call, the skip count is logged and the stream resumes; it never
// terminates on lag. After close and drain it returns ErrStreamClosed.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	if skipped := s.lagged.Swap(0); skipped > 0 {
		log.Printf("recorder: event stream lagged, skipped %d events", skipped)
	}
	select {
	case ev, ok := <-s.ch:
		if !ok {
			return nil, ErrStreamClosed
		}
		return ev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TotalLagged reports the cumulative number of events this subscriber
// skipped.
func (s *Subscription) TotalLagged() uint64 { return s.total.Load() }

// Close detaches the subscriber.
func (s *Subscription) Close() {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if _, ok := s.b.subs[s.id]; ok {
		delete(s.b.subs, s.id)
		close(s.ch)
	}
}
