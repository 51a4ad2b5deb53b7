package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// subscriberBuffer bounds how far a slow socket may lag before events for it
// are dropped.
const subscriberBuffer = 256

var (
	ErrHubClosed   = errors.New("realtime: hub closed")
	ErrInvalidRoom = errors.New("realtime: invalid room")
)

// Hub is an in-process room broker. Broadcast never blocks.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*Subscription]struct{}
	closed      atomic.Bool
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[*Subscription]struct{})}
}

// Subscription receives the events of the rooms it joined until ctx ends or
// the hub shuts down, at which point the channel is closed.
type Subscription struct {
	mu     sync.RWMutex
	rooms  map[Room]struct{}
	ch     chan Event
	closed atomic.Bool
}

func (s *Subscription) Events() <-chan Event { return s.ch }

func (s *Subscription) Join(room string) error {
	if !IsValidRoom(room) {
		return ErrInvalidRoom
	}
	s.mu.Lock()
	s.rooms[Room(room)] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *Subscription) Leave(room string) {
	s.mu.Lock()
	delete(s.rooms, Room(room))
	s.mu.Unlock()
}

func (s *Subscription) joined(room Room) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[room]
	return ok
}

func (h *Hub) Subscribe(ctx context.Context) (*Subscription, error) {
	sub := &Subscription{
		rooms: make(map[Room]struct{}),
		ch:    make(chan Event, subscriberBuffer),
	}

	h.mu.Lock()
	if h.closed.Load() {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.remove(sub)
	}()
	return sub, nil
}

// Broadcast delivers evt to every subscription that joined room.
func (h *Hub) Broadcast(room Room, evt Event) {
	if h.closed.Load() {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers {
		if sub.closed.Load() || !sub.joined(room) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

func (h *Hub) Shutdown() {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers {
		if sub.closed.CompareAndSwap(false, true) {
			close(sub.ch)
		}
	}
	h.subscribers = map[*Subscription]struct{}{}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[sub]; !ok {
		return
	}
	delete(h.subscribers, sub)
	if sub.closed.CompareAndSwap(false, true) {
		close(sub.ch)
	}
}
