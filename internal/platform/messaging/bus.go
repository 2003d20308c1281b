package messaging

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	v1 "skyward/contracts/messages/v1"
)

// ErrRequestTimeout is returned by Request when no response with a
// matching correlation ID arrives within the deadline.
var ErrRequestTimeout = errors.New("request timed out waiting for response")

// ErrBusClosed is returned for operations on a closed bus.
var ErrBusClosed = errors.New("bus is closed")

// Handler consumes one envelope. Returned errors are logged by the bus
// and never propagated to the publisher. Alias so service ports can
// declare the same signature without importing this package.
type Handler = func(ctx context.Context, env v1.Envelope) error

// Bus is the in-process message bus every station component talks
// through. Delivery contract:
//
//   - Publish is fire-and-forget fan-out to all current subscribers of
//     the topic; a set Target narrows delivery to the subscriber
//     registered under that name.
//   - Each subscription owns an ordered queue drained by its own
//     goroutine, so envelopes published by one source toward one target
//     are delivered in publish order, and a slow or failing subscriber
//     never blocks the others.
//   - Responses are routed to the waiter registered under their
//     correlation ID; the first response wins, duplicates and responses
//     with unknown correlation IDs are logged and dropped.
type Bus struct {
	mu      sync.Mutex
	subs    map[string][]*subscription
	waiters map[string]chan v1.Envelope
	closed  bool
	logger  *slog.Logger
}

type subscription struct {
	name    string
	topic   string
	handler Handler

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []v1.Envelope
	closed bool
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:    make(map[string][]*subscription),
		waiters: make(map[string]chan v1.Envelope),
		logger:  logger,
	}
}

// Publish accepts the envelope for delivery and returns once it is
// enqueued for every matching subscriber.
func (b *Bus) Publish(_ context.Context, env v1.Envelope) error {
	if env.Type == v1.TypeResponse && env.CorrelationID != "" {
		b.deliverResponse(env)
		return nil
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	targets := make([]*subscription, 0, len(b.subs[env.Topic]))
	for _, sub := range b.subs[env.Topic] {
		if env.Target != "" && env.Target != sub.name {
			continue
		}
		targets = append(targets, sub)
	}
	b.mu.Unlock()

	for _, sub := range targets {
		sub.enqueue(env)
	}
	return nil
}

// Subscribe registers a named handler for every envelope on the topic.
// The returned function removes the subscription and stops its
// dispatcher.
func (b *Bus) Subscribe(topic, name string, handler Handler) func() {
	sub := &subscription{name: name, topic: topic, handler: handler}
	sub.cond = sync.NewCond(&sub.mu)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	go b.dispatch(sub)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.removeSubscription(topic, sub)
			sub.close()
		})
	}
}

// Request publishes the query and suspends the caller until a response
// correlated to its message ID arrives, the timeout elapses, or the
// context is cancelled. Exactly one response is surfaced; a cancelled
// or timed-out waiter is removed so any late response is discarded.
func (b *Bus) Request(ctx context.Context, env v1.Envelope, timeout time.Duration) (v1.Envelope, error) {
	waiter := make(chan v1.Envelope, 1)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return v1.Envelope{}, ErrBusClosed
	}
	b.waiters[env.MessageID] = waiter
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.waiters, env.MessageID)
		b.mu.Unlock()
	}()

	if err := b.Publish(ctx, env); err != nil {
		return v1.Envelope{}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case response := <-waiter:
		return response, nil
	case <-timer.C:
		return v1.Envelope{}, ErrRequestTimeout
	case <-ctx.Done():
		return v1.Envelope{}, ctx.Err()
	}
}

// Respond publishes the response envelope for a received query.
func (b *Bus) Respond(ctx context.Context, request v1.Envelope, source string, payload any) error {
	response, err := v1.NewResponse(request, source, payload)
	if err != nil {
		return err
	}
	return b.Publish(ctx, response)
}

// Close stops every subscription dispatcher. Pending waiters observe
// their timeout or context cancellation.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	var all []*subscription
	for _, subs := range b.subs {
		all = append(all, subs...)
	}
	b.subs = make(map[string][]*subscription)
	b.mu.Unlock()

	for _, sub := range all {
		sub.close()
	}
}

func (b *Bus) deliverResponse(env v1.Envelope) {
	b.mu.Lock()
	waiter, ok := b.waiters[env.CorrelationID]
	if ok {
		// One response per waiter: drop the registration before handing
		// the envelope over so duplicates fall through to the log below.
		delete(b.waiters, env.CorrelationID)
	}
	b.mu.Unlock()

	if !ok {
		b.logger.Warn("response without matching waiter discarded",
			"event", "bus_response_unmatched",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"topic", env.Topic,
			"action", env.Action,
			"correlation_id", env.CorrelationID,
		)
		return
	}
	waiter <- env
}

func (b *Bus) dispatch(sub *subscription) {
	for {
		env, ok := sub.next()
		if !ok {
			return
		}
		b.invoke(sub, env)
	}
}

func (b *Bus) invoke(sub *subscription, env v1.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("subscriber handler panicked",
				"event", "bus_handler_panic",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"topic", sub.topic,
				"subscriber", sub.name,
				"message_id", env.MessageID,
				"panic", r,
			)
		}
	}()
	if err := sub.handler(context.Background(), env); err != nil {
		b.logger.Error("subscriber handler failed",
			"event", "bus_handler_failed",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"topic", sub.topic,
			"subscriber", sub.name,
			"message_id", env.MessageID,
			"action", env.Action,
			"error", err.Error(),
		)
	}
}

func (b *Bus) removeSubscription(topic string, target *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	items := b.subs[topic]
	if len(items) == 0 {
		return
	}
	filtered := make([]*subscription, 0, len(items))
	for _, item := range items {
		if item != target {
			filtered = append(filtered, item)
		}
	}
	b.subs[topic] = filtered
}

func (s *subscription) enqueue(env v1.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, env)
	s.cond.Signal()
}

func (s *subscription) next() (v1.Envelope, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 && !s.closed {
		s.cond.Wait()
	}
	if len(s.queue) == 0 {
		return v1.Envelope{}, false
	}
	env := s.queue[0]
	s.queue = s.queue[1:]
	return env, true
}

func (s *subscription) close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
}
