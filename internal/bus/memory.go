package bus

import (
	"log"
	"sync"

	"studyhub/pkg/interfaces"
)

// memorySub is one subscriber queue within a group.
type memorySub struct {
	group string
	ch    chan []byte
}

func (s *memorySub) C() <-chan []byte { return s.ch }
func (s *memorySub) Group() string    { return s.group }

// MemoryBus is the in-process broadcast registry. Groups are created on
// first subscribe and released when the last subscriber leaves. Delivery to
// each subscriber is an independent non-blocking send: a full queue drops
// the payload for that subscriber instead of stalling the publisher.
type MemoryBus struct {
	mu         sync.RWMutex
	groups     map[string]map[*memorySub]struct{}
	bufferSize int
	closed     bool
}

// NewMemoryBus creates an in-memory bus. bufferSize is the per-subscriber
// queue depth.
func NewMemoryBus(bufferSize int) *MemoryBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &MemoryBus{
		groups:     make(map[string]map[*memorySub]struct{}),
		bufferSize: bufferSize,
	}
}

// Subscribe joins a group, creating it on first membership.
func (b *MemoryBus) Subscribe(group string) (interfaces.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, interfaces.ErrBusClosed
	}

	sub := &memorySub{
		group: group,
		ch:    make(chan []byte, b.bufferSize),
	}
	if b.groups[group] == nil {
		b.groups[group] = make(map[*memorySub]struct{})
	}
	b.groups[group][sub] = struct{}{}
	return sub, nil
}

// Unsubscribe removes the subscription and releases the group when it was
// the last member. Idempotent.
func (b *MemoryBus) Unsubscribe(sub interfaces.Subscription) {
	ms, ok := sub.(*memorySub)
	if !ok || ms == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	members, exists := b.groups[ms.group]
	if !exists {
		return
	}
	if _, member := members[ms]; !member {
		return
	}
	delete(members, ms)
	if len(members) == 0 {
		delete(b.groups, ms.group)
	}
	close(ms.ch)
}

// Publish fans out the payload to every current member of the group.
// Publishing to a group with no members is a no-op, not an error.
func (b *MemoryBus) Publish(group string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return interfaces.ErrBusClosed
	}

	for sub := range b.groups[group] {
		select {
		case sub.ch <- payload:
		default:
			// Slow subscriber: drop rather than block the group.
			log.Printf("bus: dropped message for slow subscriber in group %s", group)
		}
	}
	return nil
}

// Close shuts down all subscriber channels.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for group, members := range b.groups {
		for sub := range members {
			close(sub.ch)
		}
		delete(b.groups, group)
	}
	return nil
}

// Stats reports group and subscriber totals for the stats endpoint.
func (b *MemoryBus) Stats() map[string]int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subscribers := 0
	for _, members := range b.groups {
		subscribers += len(members)
	}
	return map[string]int{
		"groups":      len(b.groups),
		"subscribers": subscribers,
	}
}
