package bus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const defaultBufferSize = 1000

// ChannelBus is the single-process EventBus. Each subscriber owns a
// bounded queue; when it is full the message is dropped for that
// subscriber only.
type ChannelBus struct {
	mu     sync.RWMutex
	topics map[string]map[*channelSub]struct{}
	closed bool

	size    int
	running sync.WaitGroup
	dropped atomic.Int64
}

type channelSub struct {
	bus     *ChannelBus
	topic   string
	handler domain.MessageHandler
	queue   chan delivery
	ctx     context.Context
	stop    context.CancelFunc
}

// delivery pairs a message with the span that published it.
type delivery struct {
	msg  *domain.Message
	span trace.SpanContext
}

// NewChannelBus returns a bus whose subscribers buffer up to bufferSize
// messages each.
func NewChannelBus(bufferSize int) *ChannelBus {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &ChannelBus{
		topics: make(map[string]map[*channelSub]struct{}),
		size:   bufferSize,
	}
}

// Publish fans the payload out to every current subscriber of topic
// without blocking.
func (b *ChannelBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if topic == "" {
		return ErrNoTopic
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	d := delivery{
		msg:  envelope(ctx, topic, payload),
		span: trace.SpanContextFromContext(ctx),
	}
	for sub := range b.topics[topic] {
		select {
		case sub.queue <- d:
		default:
			b.dropped.Add(1)
			slog.Warn("subscriber queue full, message dropped",
				"topic", topic,
				"message_id", d.msg.ID,
				"queue_size", b.size,
			)
		}
	}
	return nil
}

// Subscribe starts a goroutine that feeds topic's messages to handler.
func (b *ChannelBus) Subscribe(ctx context.Context, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	if topic == "" {
		return nil, ErrNoTopic
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	subCtx, stop := context.WithCancel(ctx)
	sub := &channelSub{
		bus:     b,
		topic:   topic,
		handler: handler,
		queue:   make(chan delivery, b.size),
		ctx:     subCtx,
		stop:    stop,
	}

	if b.topics[topic] == nil {
		b.topics[topic] = make(map[*channelSub]struct{})
	}
	b.topics[topic][sub] = struct{}{}

	b.running.Add(1)
	go sub.loop()

	return sub, nil
}

// loop drains the queue until the subscription context ends, then
// removes the subscriber so later publishes neither queue nor count
// as dropped for it.
func (s *channelSub) loop() {
	defer s.bus.running.Done()
	defer s.detach()
	for {
		select {
		case <-s.ctx.Done():
			return
		case d := <-s.queue:
			ctx := s.ctx
			if d.span.IsValid() {
				ctx = trace.ContextWithRemoteSpanContext(ctx, d.span)
			}
			if err := s.handler(ctx, d.msg); err != nil {
				slog.Error("event handler failed",
					"topic", s.topic,
					"message_id", d.msg.ID,
					"error", err,
				)
			}
		}
	}
}

// Ping reports ErrClosed once the bus is closed.
func (b *ChannelBus) Ping(context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Dropped returns how many deliveries were discarded on full queues.
func (b *ChannelBus) Dropped() int64 {
	return b.dropped.Load()
}

// Close stops every subscriber and waits for in-flight handlers. It is
// safe to call more than once.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, subs := range b.topics {
		for sub := range subs {
			sub.stop()
		}
	}
	b.topics = make(map[string]map[*channelSub]struct{})
	b.mu.Unlock()

	b.running.Wait()
	return nil
}

// Unsubscribe stops delivery. Messages still queued are discarded.
func (s *channelSub) Unsubscribe() error {
	s.stop()
	s.detach()
	return nil
}

func (s *channelSub) detach() {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.topics[s.topic]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(b.topics, s.topic)
		}
	}
}

func (s *channelSub) Topic() string { return s.topic }
