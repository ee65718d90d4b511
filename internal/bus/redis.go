package bus

import (
	"context"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"

	"studyhub/pkg/interfaces"
)

// redisSub adapts one go-redis PubSub subscription to interfaces.Subscription.
type redisSub struct {
	group  string
	ch     chan []byte
	pubsub *redis.PubSub
	cancel context.CancelFunc
}

func (s *redisSub) C() <-chan []byte { return s.ch }
func (s *redisSub) Group() string    { return s.group }

// RedisBus backs the broadcast layer with Redis Pub/Sub so multiple
// instances share the same logical groups. Channel names are the group
// names unchanged.
type RedisBus struct {
	client     *redis.Client
	bufferSize int

	mu     sync.Mutex
	subs   map[*redisSub]struct{}
	closed bool
}

// NewRedisBus wraps an existing client. The caller owns client lifetime
// beyond Close.
func NewRedisBus(client *redis.Client, bufferSize int) *RedisBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &RedisBus{
		client:     client,
		bufferSize: bufferSize,
		subs:       make(map[*redisSub]struct{}),
	}
}

// Subscribe opens a Redis subscription for the group and pumps incoming
// payloads onto the delivery channel with the same non-blocking drop
// semantics as the in-memory bus.
func (b *RedisBus) Subscribe(group string) (interfaces.Subscription, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, interfaces.ErrBusClosed
	}
	b.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	pubsub := b.client.Subscribe(ctx, group)

	// Wait for subscription confirmation so publishes after Subscribe
	// returns are not lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, err
	}

	sub := &redisSub{
		group:  group,
		ch:     make(chan []byte, b.bufferSize),
		pubsub: pubsub,
		cancel: cancel,
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		defer close(sub.ch)
		msgCh := pubsub.Channel()
		for {
			select {
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				select {
				case sub.ch <- []byte(msg.Payload):
				default:
					log.Printf("bus: dropped redis message for slow subscriber in group %s", group)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return sub, nil
}

// Unsubscribe closes the underlying Redis subscription. Idempotent.
func (b *RedisBus) Unsubscribe(sub interfaces.Subscription) {
	rs, ok := sub.(*redisSub)
	if !ok || rs == nil {
		return
	}

	b.mu.Lock()
	if _, member := b.subs[rs]; !member {
		b.mu.Unlock()
		return
	}
	delete(b.subs, rs)
	b.mu.Unlock()

	rs.cancel()
	if err := rs.pubsub.Close(); err != nil {
		log.Printf("bus: failed to close redis subscription for group %s: %v", rs.group, err)
	}
}

// Publish sends the payload through Redis; every instance subscribed to the
// group receives it.
func (b *RedisBus) Publish(group string, payload []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return interfaces.ErrBusClosed
	}
	b.mu.Unlock()

	return b.client.Publish(context.Background(), group, payload).Err()
}

// Close tears down all live subscriptions.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*redisSub, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.subs = make(map[*redisSub]struct{})
	b.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
		_ = sub.pubsub.Close()
	}
	return nil
}
