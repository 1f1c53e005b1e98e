// Package bus carries pipeline events between Kestrel components, either
// through in-process channels or through NATS subjects.
package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	ErrClosed  = errors.New("event bus closed")
	ErrNoTopic = errors.New("topic is required")
)

// traceContext propagates the publisher's span to subscribers.
var traceContext = propagation.TraceContext{}

// New returns the bus selected by cfg.Type.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel", "":
		return NewChannelBus(cfg.ChannelBufferSize), nil
	case "nats":
		return NewNATSBus(cfg)
	}
	return nil, fmt.Errorf("unsupported event bus type %q", cfg.Type)
}

func envelope(ctx context.Context, topic string, payload []byte) *domain.Message {
	return &domain.Message{
		ID:          uuid.NewString(),
		Topic:       topic,
		Payload:     payload,
		TraceID:     traceID(ctx),
		PublishedAt: time.Now().UTC(),
	}
}

func traceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.TraceID().IsValid() {
		return sc.TraceID().String()
	}
	return ""
}
