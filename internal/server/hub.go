package server

import (
	"sync"
	"sync/atomic"

	"github.com/naomi-pc/Autonomous-Vehicle/internal/pipeline"
)

// Hub holds the latest annotated frame and fans every published frame out to
// subscribers. Each subscriber has a one-slot queue: a slow client skips
// frames instead of delaying the pipeline or other clients.
type Hub struct {
	mu     sync.RWMutex
	latest *pipeline.Annotated
	subs   map[*Subscription]struct{}
	closed bool

	published atomic.Uint64
}

// Subscription receives frames from a Hub until it is closed.
type Subscription struct {
	hub     *Hub
	ch      chan *pipeline.Annotated
	dropped atomic.Uint64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Publish stores frame as the latest one and offers it to every subscriber.
// It never blocks. Publishing to a closed hub is a no-op.
func (h *Hub) Publish(frame *pipeline.Annotated) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.latest = frame
	h.published.Add(1)

	for sub := range h.subs {
		// Only Publish sends, under the lock, so the slot is free after the
		// drain
		select {
		case <-sub.ch:
			sub.dropped.Add(1)
		default:
		}
		sub.ch <- frame
	}
}

// Latest returns the most recent frame, or nil before the first Publish.
func (h *Hub) Latest() *pipeline.Annotated {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

// Published returns how many frames have been published.
func (h *Hub) Published() uint64 {
	return h.published.Load()
}

// Subscribers returns the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Subscribe registers a new subscriber. On a closed hub the returned
// subscription's channel is already closed.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{hub: h, ch: make(chan *pipeline.Annotated, 1)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.ch)
		return sub
	}
	h.subs[sub] = struct{}{}
	return sub
}

// Close closes every subscription. Later subscriptions are closed
// immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.ch)
	}
}

// C returns the frame channel. It is closed when the subscription or the hub
// is closed.
func (s *Subscription) C() <-chan *pipeline.Annotated {
	return s.ch
}

// Dropped returns how many frames were replaced before this subscriber read
// them.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.ch)
	}
}
