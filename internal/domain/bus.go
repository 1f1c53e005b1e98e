package domain

import (
	"context"
	"time"
)

// Topics published by the evaluation pipeline.
const (
	// TopicSupplierSubmitted carries a SupplierRequest awaiting evaluation.
	TopicSupplierSubmitted = "kestrel.supplier.submitted"

	// TopicEvaluationCompleted carries every audited EvaluationRecord.
	TopicEvaluationCompleted = "kestrel.evaluation.completed"

	// TopicAlert carries records whose final tier is HIGH or CRITICAL.
	TopicAlert = "kestrel.alert"

	// TopicCatalogReloaded announces a new catalog version.
	TopicCatalogReloaded = "kestrel.catalog.reloaded"
)

// EventBus moves JSON payloads between the API, the engine and the
// asynchronous workers, either in process or over NATS.
type EventBus interface {
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe delivers every message on topic to handler until the
	// subscription is cancelled or ctx is done.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	Ping(ctx context.Context) error
	Close() error
}

// MessageHandler consumes one delivered message. A returned error is
// logged by the bus; delivery is at most once either way.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message is a delivered payload plus the envelope the bus adds to it.
type Message struct {
	ID          string    `json:"id"`
	Topic       string    `json:"topic"`
	Payload     []byte    `json:"payload"`
	TraceID     string    `json:"traceId,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
}

// Subscription is an active registration on one topic.
type Subscription interface {
	Unsubscribe() error
	Topic() string
}

// EventBusConfig selects and tunes the bus.
type EventBusConfig struct {
	// Type is "channel" (in process) or "nats".
	Type string `json:"type" yaml:"type"`

	// ChannelBufferSize is the per-subscriber queue length.
	ChannelBufferSize int `json:"channelBufferSize" yaml:"channelBufferSize"`

	NATSUrl           string `json:"natsUrl" yaml:"natsUrl"`
	NATSToken         string `json:"-" yaml:"natsToken"`
	NATSMaxReconnects int    `json:"natsMaxReconnects" yaml:"natsMaxReconnects"`
	NATSReconnectWait int    `json:"natsReconnectWait" yaml:"natsReconnectWait"` // seconds
}
