// Package pubsub implements the in-process event broker behind the real-time
// subscription streams. Domain events (session created, session accepted,
// message created) are published to topics; subscribers attach a predicate
// that is evaluated at delivery time, so visibility decisions (role, block
// list, chat membership) always reflect current state rather than the state
// at subscribe time.
//
// The broker is an injected instance with an explicit lifecycle: constructed
// once at process start and passed to every component that publishes or
// subscribes. There is no package-level singleton.
//
// Delivery semantics:
//   - Events reach currently connected subscribers only; there is no replay
//     or durability.
//   - Per subscriber, events arrive in publish order. No ordering is
//     guaranteed across independent subscribers.
//   - A predicate error drops delivery for that subscriber only (logged, and
//     counted in metrics) so one bad subscriber cannot fail a publish.
//   - A subscriber that cannot keep up loses events rather than blocking the
//     publisher.
package pubsub

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Topic names an event stream.
type Topic string

// The three lifecycle streams exposed to clients.
const (
	// TopicChatCreated fires when a session is created or returns to the
	// unmatched pool after sign-off.
	TopicChatCreated Topic = "chat.created"
	// TopicChatAccepted fires when a volunteer claims a session.
	TopicChatAccepted Topic = "chat.accepted"
	// TopicMessageCreated fires for every persisted message.
	TopicMessageCreated Topic = "message.created"
)

var (
	// eventsPublished counts publish calls by topic.
	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pubsub_events_published_total",
			Help: "Total number of events published, by topic.",
		},
		[]string{"topic"},
	)

	// eventsDelivered counts successful deliveries to subscriber channels.
	eventsDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pubsub_events_delivered_total",
			Help: "Total number of events delivered to subscribers, by topic.",
		},
		[]string{"topic"},
	)

	// eventsDropped counts deliveries lost to full buffers or failed
	// predicate evaluations.
	eventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pubsub_events_dropped_total",
			Help: "Total number of deliveries dropped, by topic and reason.",
		},
		[]string{"topic", "reason"},
	)
)

func init() {
	prometheus.MustRegister(eventsPublished, eventsDelivered, eventsDropped)
}

// FilterFunc decides, at delivery time, whether a payload should reach a
// subscriber. It may perform blocking lookups (e.g., re-reading a block
// list); returning an error drops this delivery without failing the publish.
type FilterFunc func(ctx context.Context, payload any) (bool, error)

// Subscription is a single listener on a topic. Events arrive on the channel
// returned by Events until Close is called or the broker shuts down.
type Subscription struct {
	topic  Topic
	filter FilterFunc
	ch     chan any
	id     uint64
	broker *Broker

	// closed is guarded by broker.mu; channel sends happen under RLock and
	// closes under Lock, so a send can never race a close.
	closed bool
}

// Events returns the channel delivering matching payloads in publish order.
// The channel is closed when the subscription is closed.
func (s *Subscription) Events() <-chan any { return s.ch }

// Close detaches the subscription from its topic and closes the event
// channel. Safe to call multiple times and concurrently with Publish.
func (s *Subscription) Close() { s.broker.closeSub(s) }

// Broker fans published events out to topic subscribers.
type Broker struct {
	mu     sync.RWMutex
	subs   map[Topic]map[uint64]*Subscription
	nextID uint64
	buffer int
	closed bool
	log    zerolog.Logger
}

// NewBroker constructs a broker whose subscriber channels buffer up to
// `buffer` undelivered events each (minimum 1).
func NewBroker(buffer int, log zerolog.Logger) *Broker {
	if buffer < 1 {
		buffer = 1
	}
	return &Broker{
		subs:   make(map[Topic]map[uint64]*Subscription),
		buffer: buffer,
		log:    log,
	}
}

// Subscribe registers a new listener on topic. A nil filter matches every
// event. The caller owns the returned Subscription and must Close it when the
// consumer goes away; a dropped connection that never closes would otherwise
// keep losing events into a full buffer forever.
func (b *Broker) Subscribe(topic Topic, filter FilterFunc) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		topic:  topic,
		filter: filter,
		ch:     make(chan any, b.buffer),
		id:     b.nextID,
		broker: b,
	}
	if b.closed {
		// Late subscriber on a stopped broker gets an immediately-closed stream.
		sub.closed = true
		close(sub.ch)
		return sub
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]*Subscription)
	}
	b.subs[topic][sub.id] = sub
	return sub
}

// Publish delivers payload to every current subscriber of topic whose filter
// accepts it. Filters run synchronously under the caller's context; a filter
// error or a full subscriber buffer drops that one delivery.
//
// The read lock is held for the whole delivery pass. That keeps channel sends
// mutually exclusive with channel closes and preserves per-subscriber publish
// order; filters should stay cheap (a single indexed query at most).
func (b *Broker) Publish(ctx context.Context, topic Topic, payload any) {
	eventsPublished.WithLabelValues(string(topic)).Inc()

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs[topic] {
		if sub.filter != nil {
			match, err := sub.filter(ctx, payload)
			if err != nil {
				eventsDropped.WithLabelValues(string(topic), "filter_error").Inc()
				b.log.Warn().
					Str("topic", string(topic)).
					Uint64("subscription_id", sub.id).
					Err(err).
					Msg("subscription filter failed; dropping delivery")
				continue
			}
			if !match {
				continue
			}
		}
		select {
		case sub.ch <- payload:
			eventsDelivered.WithLabelValues(string(topic)).Inc()
		default:
			eventsDropped.WithLabelValues(string(topic), "slow_subscriber").Inc()
			b.log.Warn().
				Str("topic", string(topic)).
				Uint64("subscription_id", sub.id).
				Msg("subscriber buffer full; dropping delivery")
		}
	}
}

// Subscribers reports the number of active subscriptions on topic.
func (b *Broker) Subscribers(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Close shuts the broker down, detaching and closing every subscription.
// Publish calls after Close are no-ops.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, topicSubs := range b.subs {
		for _, sub := range topicSubs {
			if !sub.closed {
				sub.closed = true
				close(sub.ch)
			}
		}
	}
	b.subs = make(map[Topic]map[uint64]*Subscription)
}

// closeSub detaches and closes one subscription under the write lock.
func (b *Broker) closeSub(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
	if topicSubs, ok := b.subs[s.topic]; ok {
		delete(topicSubs, s.id)
		if len(topicSubs) == 0 {
			delete(b.subs, s.topic)
		}
	}
}
