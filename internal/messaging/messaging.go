package messaging

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/config"
)

// HeaderEventType names the header carrying the order event type.
const HeaderEventType = "event-type"

// Message is an order event read from the bus.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
	Offset  int64
	Time    time.Time
}

// Context returns ctx joined to the trace the publisher injected into the headers.
func (m Message) Context(ctx context.Context) context.Context {
	if len(m.Headers) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(m.Headers))
}

// Handler processes one message. A returned error asks for redelivery.
type Handler func(context.Context, Message) error

// Client publishes and consumes order events on a single topic.
type Client interface {
	// Publish writes value under key. The current trace context is added to headers.
	Publish(ctx context.Context, key []byte, value []byte, headers map[string]string) error
	// Consume feeds messages to handler until ctx ends or the bus fails.
	Consume(ctx context.Context, handler Handler) error
	Topic() string
}

// Module wires the messaging client.
var Module = fx.Provide(NewClient)

// NewClient returns the kafka client, or a noop one while messaging is disabled.
func NewClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	if cfg.Messaging.Driver != "kafka" {
		logger.Info("messaging disabled; order events are dropped")
		return NewNoop(cfg.Messaging.Kafka.Topic), nil
	}

	client := newKafkaClient(cfg.Messaging, logger)
	lc.Append(fx.Hook{OnStop: func(context.Context) error {
		logger.Info("closing kafka client", zap.String("topic", client.topic))
		return client.Close()
	}})
	return client, nil
}

// NewNoop returns a client that drops published messages and blocks on consume.
func NewNoop(topic string) Client {
	return noopClient{topic: topic}
}

type noopClient struct {
	topic string
}

func (n noopClient) Publish(context.Context, []byte, []byte, map[string]string) error {
	return nil
}

func (n noopClient) Consume(ctx context.Context, _ Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (n noopClient) Topic() string {
	return n.topic
}
