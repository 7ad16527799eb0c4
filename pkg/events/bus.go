package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBusClosed indicates a publish was attempted after Close.
var ErrBusClosed = errors.New("event bus closed")

// Handler processes one envelope. Errors are logged and absorbed by the
// bus; they never propagate to the publisher.
type Handler func(ctx context.Context, env Envelope) error

// subscription binds a handler to a topic. The id is returned by
// Subscribe and accepted by Unsubscribe.
type subscription struct {
	id      int
	handler Handler
}

// laneKey identifies one FIFO delivery lane.
type laneKey struct {
	topic  string
	sagaID string
}

// lane holds envelopes awaiting delivery for one (topic, saga) pair.
// Exactly one drain goroutine is active per lane while its queue is
// non-empty; the lane is removed once drained.
type lane struct {
	queue []Envelope
}

// Bus is the in-process publish/subscribe router. See the package doc
// for the delivery model.
type Bus struct {
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	subs   map[string][]subscription
	nextID int
	lanes  map[laneKey]*lane
	seqs   map[string]uint64
	closed bool

	wg sync.WaitGroup
}

// NewBus creates a ready-to-use bus. Close releases its goroutines.
func NewBus() *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		logger: slog.Default().With("component", "event-bus"),
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[string][]subscription),
		lanes:  make(map[laneKey]*lane),
		seqs:   make(map[string]uint64),
	}
}

// Subscribe registers a handler for a topic and returns a subscription id.
// For each envelope, a topic's handlers run in registration order.
func (b *Bus) Subscribe(topic string, h Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs[topic] = append(b.subs[topic], subscription{id: b.nextID, handler: h})
	return b.nextID
}

// Unsubscribe removes a subscription by id. Unknown ids are a no-op.
func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, subs := range b.subs {
		for i, sub := range subs {
			if sub.id == id {
				b.subs[topic] = append(subs[:i], subs[i+1:]...)
				if len(b.subs[topic]) == 0 {
					delete(b.subs, topic)
				}
				return
			}
		}
	}
}

// Publish stamps the envelope (topic, sequence, timestamp) and enqueues
// it on the (topic, saga) delivery lane. It returns once the envelope is
// handed off; handlers run asynchronously on the lane's drain goroutine.
func (b *Bus) Publish(topic string, env Envelope) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	b.stampLocked(topic, &env)

	key := laneKey{topic: topic, sagaID: env.SagaID}
	ln, active := b.lanes[key]
	if !active {
		ln = &lane{}
		b.lanes[key] = ln
	}
	ln.queue = append(ln.queue, env)
	if !active {
		b.wg.Add(1)
		go b.drain(key)
	}
	b.mu.Unlock()
	return nil
}

// PublishSync stamps the envelope and delivers it inline to all current
// subscribers before returning. Reserved for strong-consistency
// notifications; see the package doc for the ordering caveat.
func (b *Bus) PublishSync(topic string, env Envelope) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	b.stampLocked(topic, &env)
	handlers := b.handlersLocked(topic)
	b.mu.Unlock()

	b.deliver(handlers, env)
	return nil
}

// Forget releases the per-saga sequence counter. Called when a saga is
// reaped; later publishes for the same id restart at sequence 1.
func (b *Bus) Forget(sagaID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.seqs, sagaID)
}

// Close stops accepting publishes, cancels the handler context, and
// waits for every lane to drain. Idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
}

// stampLocked assigns topic, per-saga sequence, and timestamp. Caller
// holds b.mu.
func (b *Bus) stampLocked(topic string, env *Envelope) {
	env.Topic = topic
	b.seqs[env.SagaID]++
	env.Sequence = b.seqs[env.SagaID]
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now()
	}
}

// handlersLocked snapshots the topic's subscriptions. Caller holds b.mu.
func (b *Bus) handlersLocked(topic string) []subscription {
	subs := b.subs[topic]
	if len(subs) == 0 {
		return nil
	}
	out := make([]subscription, len(subs))
	copy(out, subs)
	return out
}

// drain delivers the lane's queued envelopes in order, then removes the
// lane and exits. Handler snapshots are taken per envelope so that
// subscriptions added mid-stream apply to later envelopes only.
func (b *Bus) drain(key laneKey) {
	defer b.wg.Done()
	for {
		b.mu.Lock()
		ln := b.lanes[key]
		if len(ln.queue) == 0 {
			delete(b.lanes, key)
			b.mu.Unlock()
			return
		}
		env := ln.queue[0]
		ln.queue = ln.queue[1:]
		handlers := b.handlersLocked(env.Topic)
		b.mu.Unlock()

		b.deliver(handlers, env)
	}
}

// deliver runs the handlers sequentially in registration order.
func (b *Bus) deliver(handlers []subscription, env Envelope) {
	for _, sub := range handlers {
		b.invoke(sub, env)
	}
}

// invoke runs one handler, absorbing its error or panic.
func (b *Bus) invoke(sub subscription, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event handler panicked",
				"topic", env.Topic,
				"saga_id", env.SagaID,
				"sequence", env.Sequence,
				"panic", r)
		}
	}()
	if err := sub.handler(b.ctx, env); err != nil {
		b.logger.Error("Event handler failed",
			"topic", env.Topic,
			"saga_id", env.SagaID,
			"sequence", env.Sequence,
			"error", err)
	}
}
