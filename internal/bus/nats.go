package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/propagation"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// headerPublishedAt carries the publish time in RFC 3339 form.
const headerPublishedAt = "Kestrel-Published-At"

// NATSBus maps topics one to one onto NATS subjects. Payloads travel as
// the raw message body; the envelope travels in headers so that other
// services can consume the subjects without knowing about Kestrel.
type NATSBus struct {
	conn *nats.Conn

	mu   sync.Mutex
	subs map[*natsSub]struct{}
}

type natsSub struct {
	bus   *NATSBus
	topic string
	sub   *nats.Subscription
	stop  func() bool
}

// NewNATSBus dials cfg.NATSUrl. An unreachable server is not an error:
// the client keeps retrying in the background and Ping reports the
// outage until it succeeds.
func NewNATSBus(cfg domain.EventBusConfig) (*NATSBus, error) {
	url := cfg.NATSUrl
	if url == "" {
		url = nats.DefaultURL
	}
	maxReconnects := cfg.NATSMaxReconnects
	if maxReconnects == 0 {
		maxReconnects = -1
	}
	wait := time.Duration(cfg.NATSReconnectWait) * time.Second
	if wait <= 0 {
		wait = 2 * time.Second
	}

	opts := []nats.Option{
		nats.Name("kestrel"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(maxReconnects),
		nats.ReconnectWait(wait),
		nats.ReconnectBufSize(8 << 20),
		nats.ConnectHandler(func(nc *nats.Conn) {
			slog.Info("nats connected", "url", nc.ConnectedUrl(), "server_id", nc.ConnectedServerId())
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			var subject string
			if sub != nil {
				subject = sub.Subject
			}
			slog.Error("nats async error", "subject", subject, "error", err)
		}),
	}
	if cfg.NATSToken != "" {
		opts = append(opts, nats.Token(cfg.NATSToken))
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	if !conn.IsConnected() {
		slog.Warn("nats unreachable, retrying in background", "url", url, "reconnect_wait", wait)
	}

	return &NATSBus{
		conn: conn,
		subs: make(map[*natsSub]struct{}),
	}, nil
}

// Publish sends payload on the subject named topic. The publishing span
// is propagated in W3C traceparent headers.
func (b *NATSBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if topic == "" {
		return ErrNoTopic
	}

	env := envelope(ctx, topic, payload)
	m := nats.NewMsg(topic)
	m.Data = payload
	m.Header.Set(nats.MsgIdHdr, env.ID)
	m.Header.Set(headerPublishedAt, env.PublishedAt.Format(time.RFC3339Nano))
	traceContext.Inject(ctx, propagation.HeaderCarrier(m.Header))

	if err := b.conn.PublishMsg(m); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers handler on the subject named topic. The
// subscription ends when ctx is done or Unsubscribe is called.
func (b *NATSBus) Subscribe(ctx context.Context, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	if topic == "" {
		return nil, ErrNoTopic
	}

	ns, err := b.conn.Subscribe(topic, func(m *nats.Msg) {
		msg := decodeNATS(m)
		hctx := traceContext.Extract(ctx, propagation.HeaderCarrier(m.Header))
		msg.TraceID = traceID(hctx)

		if err := handler(hctx, msg); err != nil {
			slog.Error("event handler failed",
				"subject", m.Subject,
				"message_id", msg.ID,
				"error", err,
			)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	sub := &natsSub{bus: b, topic: topic, sub: ns}
	sub.stop = context.AfterFunc(ctx, func() { _ = sub.Unsubscribe() })

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub, nil
}

// decodeNATS rebuilds the envelope. Messages from publishers that send no
// headers get a fresh ID and their receive time.
func decodeNATS(m *nats.Msg) *domain.Message {
	msg := &domain.Message{
		ID:      m.Header.Get(nats.MsgIdHdr),
		Topic:   m.Subject,
		Payload: m.Data,
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if ts, err := time.Parse(time.RFC3339Nano, m.Header.Get(headerPublishedAt)); err == nil {
		msg.PublishedAt = ts
	} else {
		msg.PublishedAt = time.Now().UTC()
	}
	return msg
}

// Ping flushes the connection, which round-trips to the server.
func (b *NATSBus) Ping(ctx context.Context) error {
	if !b.conn.IsConnected() {
		return errors.New("nats not connected")
	}
	return b.conn.FlushWithContext(ctx)
}

// Close unsubscribes everything and closes the connection without
// draining.
func (b *NATSBus) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[*natsSub]struct{})
	b.mu.Unlock()

	for sub := range subs {
		sub.stop()
		_ = sub.sub.Unsubscribe()
	}
	b.conn.Close()
	return nil
}

func (s *natsSub) Unsubscribe() error {
	s.bus.mu.Lock()
	delete(s.bus.subs, s)
	s.bus.mu.Unlock()

	if !s.sub.IsValid() {
		return nil
	}
	return s.sub.Unsubscribe()
}

func (s *natsSub) Topic() string { return s.topic }
