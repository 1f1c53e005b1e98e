package bus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func spanContext() trace.SpanContext {
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x0a, 0x0b, 0x0c, 0x0d, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		SpanID:     trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		TraceFlags: trace.FlagsSampled,
	})
}

// receive subscribes to topic and returns a channel of delivered messages.
func receive(t *testing.T, b *ChannelBus, topic string) (<-chan *domain.Message, domain.Subscription) {
	t.Helper()
	ch := make(chan *domain.Message, 16)
	sub, err := b.Subscribe(context.Background(), topic, func(ctx context.Context, msg *domain.Message) error {
		ch <- msg
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe %s failed: %v", topic, err)
	}
	return ch, sub
}

func next(t *testing.T, ch <-chan *domain.Message) *domain.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
		return nil
	}
}

func quiet(t *testing.T, ch <-chan *domain.Message) {
	t.Helper()
	select {
	case msg := <-ch:
		t.Errorf("unexpected message %s on %s", msg.ID, msg.Topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestChannelBus(t *testing.T) {
	b := NewChannelBus(100)
	defer b.Close()
	ctx := context.Background()

	t.Run("Envelope", func(t *testing.T) {
		ch, sub := receive(t, b, domain.TopicEvaluationCompleted)
		defer sub.Unsubscribe()

		before := time.Now().UTC()
		if err := b.Publish(ctx, domain.TopicEvaluationCompleted, []byte(`{"id":"eval-1"}`)); err != nil {
			t.Fatalf("publish failed: %v", err)
		}

		msg := next(t, ch)
		if string(msg.Payload) != `{"id":"eval-1"}` {
			t.Errorf("unexpected payload %s", msg.Payload)
		}
		if msg.Topic != domain.TopicEvaluationCompleted {
			t.Errorf("unexpected topic %s", msg.Topic)
		}
		if msg.ID == "" {
			t.Error("expected message id")
		}
		if msg.PublishedAt.Before(before) {
			t.Errorf("publish time %v precedes %v", msg.PublishedAt, before)
		}
		if msg.TraceID != "" {
			t.Errorf("expected no trace id without a span, got %s", msg.TraceID)
		}
	})

	t.Run("TraceContinuesInHandler", func(t *testing.T) {
		sc := spanContext()
		got := make(chan trace.SpanContext, 1)
		sub, _ := b.Subscribe(ctx, "trace.topic", func(ctx context.Context, msg *domain.Message) error {
			if msg.TraceID != sc.TraceID().String() {
				t.Errorf("unexpected trace id %q", msg.TraceID)
			}
			got <- trace.SpanContextFromContext(ctx)
			return nil
		})
		defer sub.Unsubscribe()

		b.Publish(trace.ContextWithSpanContext(ctx, sc), "trace.topic", nil)

		select {
		case hsc := <-got:
			if hsc.TraceID() != sc.TraceID() || !hsc.IsRemote() {
				t.Errorf("expected remote span context %s, got %+v", sc.TraceID(), hsc)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for message")
		}
	})

	t.Run("TopicIsolation", func(t *testing.T) {
		alerts, a := receive(t, b, domain.TopicAlert)
		reloads, r := receive(t, b, domain.TopicCatalogReloaded)
		defer a.Unsubscribe()
		defer r.Unsubscribe()

		b.Publish(ctx, domain.TopicAlert, []byte("a"))
		b.Publish(ctx, domain.TopicAlert, []byte("b"))

		next(t, alerts)
		next(t, alerts)
		quiet(t, reloads)
	})

	t.Run("FanOut", func(t *testing.T) {
		first, s1 := receive(t, b, "fanout.topic")
		second, s2 := receive(t, b, "fanout.topic")
		defer s1.Unsubscribe()
		defer s2.Unsubscribe()

		b.Publish(ctx, "fanout.topic", []byte("broadcast"))

		if m1, m2 := next(t, first), next(t, second); m1.ID != m2.ID {
			t.Errorf("expected the same message on both subscribers, got %s and %s", m1.ID, m2.ID)
		}
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		ch, sub := receive(t, b, "unsub.topic")

		b.Publish(ctx, "unsub.topic", []byte("first"))
		next(t, ch)

		if err := sub.Unsubscribe(); err != nil {
			t.Fatalf("unsubscribe failed: %v", err)
		}
		b.Publish(ctx, "unsub.topic", []byte("second"))
		quiet(t, ch)
	})

	t.Run("RequiresTopic", func(t *testing.T) {
		if err := b.Publish(ctx, "", nil); !errors.Is(err, ErrNoTopic) {
			t.Errorf("expected ErrNoTopic, got %v", err)
		}
		_, err := b.Subscribe(ctx, "", func(context.Context, *domain.Message) error { return nil })
		if !errors.Is(err, ErrNoTopic) {
			t.Errorf("expected ErrNoTopic, got %v", err)
		}
	})

	t.Run("SubscriptionTopic", func(t *testing.T) {
		_, sub := receive(t, b, "named.topic")
		defer sub.Unsubscribe()
		if sub.Topic() != "named.topic" {
			t.Errorf("unexpected topic %s", sub.Topic())
		}
	})

	t.Run("ContextEndsSubscription", func(t *testing.T) {
		subCtx, cancel := context.WithCancel(ctx)
		var count atomic.Int32
		b.Subscribe(subCtx, "ctx.topic", func(context.Context, *domain.Message) error {
			count.Add(1)
			return nil
		})
		cancel()
		time.Sleep(20 * time.Millisecond)

		b.Publish(ctx, "ctx.topic", nil)
		time.Sleep(50 * time.Millisecond)
		if count.Load() != 0 {
			t.Errorf("expected no delivery after cancel, got %d", count.Load())
		}
	})
}

func TestChannelBusDropsWhenFull(t *testing.T) {
	b := NewChannelBus(1)
	defer b.Close()

	release := make(chan struct{})
	defer close(release)

	b.Subscribe(context.Background(), "slow.topic", func(ctx context.Context, msg *domain.Message) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})

	for i := 0; i < 3; i++ {
		if err := b.Publish(context.Background(), "slow.topic", nil); err != nil {
			t.Fatalf("publish %d failed: %v", i, err)
		}
	}
	if b.Dropped() < 1 {
		t.Errorf("expected at least one dropped delivery, got %d", b.Dropped())
	}
}

func TestChannelBusForgetsCancelledSubscribers(t *testing.T) {
	b := NewChannelBus(1)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var count atomic.Int64
	if _, err := b.Subscribe(ctx, "gone.topic", func(context.Context, *domain.Message) error {
		count.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	cancel()

	deadline := time.Now().Add(time.Second)
	for {
		b.mu.RLock()
		n := len(b.topics["gone.topic"])
		b.mu.RUnlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("cancelled subscriber still registered (%d)", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	for i := 0; i < 10; i++ {
		if err := b.Publish(context.Background(), "gone.topic", nil); err != nil {
			t.Fatalf("publish %d failed: %v", i, err)
		}
	}
	if b.Dropped() != 0 {
		t.Errorf("expected no drops for a cancelled subscriber, got %d", b.Dropped())
	}
	if count.Load() != 0 {
		t.Errorf("expected no delivery after cancel, got %d", count.Load())
	}
}

func TestChannelBusClose(t *testing.T) {
	b := NewChannelBus(10)
	ctx := context.Background()

	b.Subscribe(ctx, "close.topic", func(context.Context, *domain.Message) error { return nil })

	if err := b.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := b.Publish(ctx, "close.topic", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from publish, got %v", err)
	}
	if _, err := b.Subscribe(ctx, "close.topic", func(context.Context, *domain.Message) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from subscribe, got %v", err)
	}
	if err := b.Ping(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from ping, got %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second close failed: %v", err)
	}
}

func TestChannelBusUnderLoad(t *testing.T) {
	b := NewChannelBus(1000)
	defer b.Close()

	const total = 200
	var received atomic.Int32
	done := make(chan struct{})
	b.Subscribe(context.Background(), domain.TopicSupplierSubmitted, func(context.Context, *domain.Message) error {
		if received.Add(1) == total {
			close(done)
		}
		return nil
	})

	for i := 0; i < total; i++ {
		b.Publish(context.Background(), domain.TopicSupplierSubmitted, []byte("{}"))
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout: received %d/%d messages", received.Load(), total)
	}
	if b.Dropped() != 0 {
		t.Errorf("expected no drops, got %d", b.Dropped())
	}
}

func TestDecodeNATS(t *testing.T) {
	t.Run("WithHeaders", func(t *testing.T) {
		sc := spanContext()
		published := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

		m := nats.NewMsg(domain.TopicAlert)
		m.Data = []byte(`{"tier":"CRITICAL"}`)
		m.Header.Set(nats.MsgIdHdr, "msg-1")
		m.Header.Set(headerPublishedAt, published.Format(time.RFC3339Nano))
		traceContext.Inject(trace.ContextWithSpanContext(context.Background(), sc), propagation.HeaderCarrier(m.Header))

		msg := decodeNATS(m)
		if msg.ID != "msg-1" || msg.Topic != domain.TopicAlert {
			t.Errorf("unexpected envelope %+v", msg)
		}
		if !msg.PublishedAt.Equal(published) {
			t.Errorf("expected publish time %v, got %v", published, msg.PublishedAt)
		}

		hctx := traceContext.Extract(context.Background(), propagation.HeaderCarrier(m.Header))
		if got := traceID(hctx); got != sc.TraceID().String() {
			t.Errorf("expected trace id %s, got %q", sc.TraceID(), got)
		}
	})

	t.Run("ForeignPublisher", func(t *testing.T) {
		msg := decodeNATS(&nats.Msg{Subject: domain.TopicSupplierSubmitted, Data: []byte("{}")})
		if msg.ID == "" {
			t.Error("expected generated id")
		}
		if msg.PublishedAt.IsZero() {
			t.Error("expected receive time")
		}
	})
}

func TestNew(t *testing.T) {
	b, err := New(domain.EventBusConfig{Type: "channel", ChannelBufferSize: 5})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer b.Close()
	if cb, ok := b.(*ChannelBus); !ok || cb.size != 5 {
		t.Errorf("expected channel bus with buffer 5, got %T", b)
	}

	if _, err := New(domain.EventBusConfig{Type: "kafka"}); err == nil {
		t.Error("expected error for unsupported type")
	}
}
