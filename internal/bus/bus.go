package bus

import (
	"sync"

	"codraft/pkg/logger"
)

// Default buffer depth for a subscription's delivery channel. Slow consumers
// are the transport's problem: the socket layer drops clients whose send
// buffers back up, so this only has to absorb short bursts.
const subscriptionBuffer = 64

// Event is an opaque payload routed by topic. The bus knows nothing about
// documents or presence.
type Event interface{}

// Subscription is a live attachment to one topic. Events arrive on C in the
// order they were published to the topic. Close detaches and closes C.
type Subscription struct {
	Topic string
	C     chan Event

	bus    *Bus
	closed bool
}

// Bus is an in-process topic-keyed publish/subscribe broker. Topics are
// created lazily on first subscribe and removed when their last subscriber
// detaches. Publishing to a topic nobody listens on is a no-op.
type Bus struct {
	mu     sync.Mutex
	topics map[string]map[*Subscription]struct{}
}

func New() *Bus {
	return &Bus{
		topics: make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe attaches to topic. The attachment is effective before Subscribe
// returns: an event published immediately afterwards is delivered.
func (b *Bus) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		Topic: topic,
		C:     make(chan Event, subscriptionBuffer),
		bus:   b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[topic]
	if subs == nil {
		subs = make(map[*Subscription]struct{})
		b.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	return sub
}

// Publish fans ev out to every subscription currently attached to topic.
// Each subscriber sees events from one topic in publish order. A subscriber
// whose channel is full loses the event rather than stalling the bus.
func (b *Bus) Publish(topic string, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.topics[topic] {
		select {
		case sub.C <- ev:
		default:
			logger.Sugar.Warnf("bus: dropping event on %q, subscriber buffer full", topic)
		}
	}
}

// Close detaches the subscription and closes its channel. Safe to call more
// than once. The topic is garbage-collected when its subscriber set empties.
func (s *Subscription) Close() {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	if subs, ok := b.topics[s.Topic]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(b.topics, s.Topic)
		}
	}
	close(s.C)
}

// SubscriberCount reports how many subscriptions are attached to topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}

// TopicCount reports how many topics currently have subscribers.
func (b *Bus) TopicCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics)
}
