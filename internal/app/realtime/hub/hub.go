// internal/app/realtime/hub/hub.go
// Package hub is the in-process broadcast fabric for collaboration
// groups. Connection handlers subscribe to their project's group and
// publish frames to everyone else in it.
package hub

import (
	"sync"

	"go.uber.org/zap"
)

// subscriberBuffer bounds how far a slow reader may fall behind before
// frames addressed to it are dropped.
const subscriberBuffer = 64

// Hub fans published payloads out to every subscription of a group.
// Publishing never blocks: a subscriber whose buffer is full misses the
// frame.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*Subscription]struct{}
}

func New() *Hub {
	return &Hub{groups: make(map[string]map[*Subscription]struct{})}
}

// Subscription is one member's receive side. Close it when the
// connection goes away; the channel is closed by Close and by nothing
// else.
type Subscription struct {
	hub   *Hub
	group string

	mu     sync.Mutex
	ch     chan []byte
	closed bool
}

// C is the stream of payloads published to the group by other members
// (and, for Publish, by this one too).
func (s *Subscription) C() <-chan []byte { return s.ch }

// Group returns the group name this subscription belongs to.
func (s *Subscription) Group() string { return s.group }

// Close detaches the subscription and closes its channel.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	h := s.hub
	h.mu.Lock()
	if subs := h.groups[s.group]; subs != nil {
		delete(subs, s)
		if len(subs) == 0 {
			delete(h.groups, s.group)
		}
	}
	h.mu.Unlock()
}

// send is non-blocking; it reports whether the payload was queued.
// Sending to a closed subscription is a silent no-op.
func (s *Subscription) send(payload []byte) (queued, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, false
	}
	select {
	case s.ch <- payload:
		return true, true
	default:
		return false, true
	}
}

// Subscribe registers a new member of the group.
func (h *Hub) Subscribe(group string) *Subscription {
	s := &Subscription{hub: h, group: group, ch: make(chan []byte, subscriberBuffer)}
	h.mu.Lock()
	subs := h.groups[group]
	if subs == nil {
		subs = make(map[*Subscription]struct{})
		h.groups[group] = subs
	}
	subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Publish delivers payload to every subscription of the group.
func (h *Hub) Publish(group string, payload []byte) {
	h.publish(group, nil, payload)
}

// PublishExcept delivers payload to every subscription of the group
// except one, typically the sender's own.
func (h *Hub) PublishExcept(group string, except *Subscription, payload []byte) {
	h.publish(group, except, payload)
}

func (h *Hub) publish(group string, except *Subscription, payload []byte) {
	h.mu.RLock()
	targets := make([]*Subscription, 0, len(h.groups[group]))
	for s := range h.groups[group] {
		if s != except {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if queued, open := s.send(payload); !queued && open {
			zap.L().Warn("dropping frame for slow subscriber",
				zap.String("group", group))
		}
	}
}

// Size returns the number of subscriptions in the group.
func (h *Hub) Size(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}
