package market

import (
	"sync"

	"github.com/tradai/core/internal/errs"
	"github.com/tradai/core/internal/metrics"
)

// Sink is a bounded subscriber channel. Subscribers own draining it; the
// Broker only ever sends, never drops.
type Sink chan Envelope

// Broker is a topic-keyed fan-out of envelopes to subscriber sinks.
// Lock-free-ish on the publish path: a read lock guards
// the subscriber slice snapshot, then sends happen outside the lock.
type Broker struct {
	mu   sync.RWMutex
	subs map[Topic][]Sink
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[Topic][]Sink)}
}

// Subscribe registers a bounded sink under topic and returns it. The
// caller ranges over the returned channel to receive envelopes.
func (b *Broker) Subscribe(topic Topic, bufSize int) Sink {
	sink := make(Sink, bufSize)
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sink)
	b.mu.Unlock()
	return sink
}

// Unsubscribe removes sink from topic's subscriber list and closes it.
func (b *Broker) Unsubscribe(topic Topic, sink Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[topic]
	for i, s := range subs {
		if s == sink {
			b.subs[topic] = append(subs[:i], subs[i+1:]...)
			close(s)
			return
		}
	}
}

// Publish fans e out to every sink subscribed to its topic, preserving
// publisher order per sink. Returns errs.ErrBackoffConnectionTimeout as
// the back-pressure signal if any sink is saturated and the non-blocking
// send would drop the event.
func (b *Broker) Publish(e Envelope) error {
	b.mu.RLock()
	subs := append([]Sink(nil), b.subs[e.Topic()]...)
	b.mu.RUnlock()

	for _, sink := range subs {
		select {
		case sink <- e:
		default:
			metrics.BrokerSinkSaturations.WithLabelValues(string(e.Type)).Inc()
			return errs.ErrBackoffConnectionTimeout
		}
	}
	return nil
}

// SubscriberCount reports how many sinks are registered for topic,
// mainly for the Backtest Runner wiring each driver's required channels.
func (b *Broker) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
