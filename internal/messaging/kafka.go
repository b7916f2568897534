package messaging

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/config"
)

const (
	handlerAttempts = 3
	handlerBackoff  = 200 * time.Millisecond
)

type kafkaClient struct {
	writer *kafka.Writer
	reader *kafka.Reader
	topic  string
	logger *zap.Logger
}

func newKafkaClient(cfg config.Messaging, logger *zap.Logger) *kafkaClient {
	kl := kafkaLogger{sugar: logger.Named("kafka").Sugar()}
	return &kafkaClient{
		topic:  cfg.Kafka.Topic,
		logger: logger,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Kafka.Brokers...),
			Topic:        cfg.Kafka.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Logger:       kafka.LoggerFunc(kl.debugf),
			ErrorLogger:  kafka.LoggerFunc(kl.errorf),
		},
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.Kafka.Brokers,
			GroupID:        cfg.ConsumerGroup,
			Topic:          cfg.Kafka.Topic,
			MinBytes:       cfg.Kafka.MinBytes,
			MaxBytes:       cfg.Kafka.MaxBytes,
			CommitInterval: cfg.Kafka.CommitInterval,
			Dialer: &kafka.Dialer{
				Timeout:  cfg.Kafka.ConnectTimeout,
				ClientID: cfg.Kafka.ClientID,
			},
			ErrorLogger: kafka.LoggerFunc(kl.errorf),
		}),
	}
}

// Publish hashes on key so every event of one order lands on the same partition.
func (k *kafkaClient) Publish(ctx context.Context, key []byte, value []byte, headers map[string]string) error {
	carrier := propagation.MapCarrier{}
	for hk, hv := range headers {
		carrier[hk] = hv
	}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	return k.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: value, Headers: toHeaders(carrier)})
}

// Consume commits every fetched message once its handler succeeds or has
// failed handlerAttempts times. Fetch errors end the loop and are returned.
func (k *kafkaClient) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := k.reader.FetchMessage(ctx)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", k.topic, err)
		}

		wrapped := fromKafka(msg)
		if err := handleWithRetry(ctx, handler, wrapped, handlerAttempts, handlerBackoff); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			k.logger.Error("dropping order event after failed attempts",
				zap.Int64("offset", msg.Offset),
				zap.Int("partition", msg.Partition),
				zap.Int("attempts", handlerAttempts),
				zap.Error(err),
			)
		}

		if err := k.reader.CommitMessages(ctx, msg); err != nil {
			k.logger.Warn("commit failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

func (k *kafkaClient) Topic() string { return k.topic }

func (k *kafkaClient) Close() error {
	return errors.Join(k.writer.Close(), k.reader.Close())
}

// handleWithRetry runs handler up to attempts times, waiting a growing delay
// between tries. It returns the last handler error.
func handleWithRetry(ctx context.Context, handler Handler, msg Message, attempts int, delay time.Duration) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = handler(ctx, msg); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(delay * time.Duration(attempt)):
		}
	}
	return err
}

func fromKafka(msg kafka.Message) Message {
	return Message{
		Topic:   msg.Topic,
		Key:     append([]byte(nil), msg.Key...),
		Value:   append([]byte(nil), msg.Value...),
		Headers: fromHeaders(msg.Headers),
		Offset:  msg.Offset,
		Time:    msg.Time,
	}
}

// toHeaders orders headers by key so published messages are reproducible.
func toHeaders(m map[string]string) []kafka.Header {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	headers := make([]kafka.Header, 0, len(keys))
	for _, key := range keys {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(m[key])})
	}
	return headers
}

// fromHeaders keeps the last value of a repeated header.
func fromHeaders(headers []kafka.Header) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	m := make(map[string]string, len(headers))
	for _, h := range headers {
		m[h.Key] = string(h.Value)
	}
	return m
}

type kafkaLogger struct {
	sugar *zap.SugaredLogger
}

func (k kafkaLogger) debugf(msg string, args ...any) { k.sugar.Debugf(msg, args...) }

func (k kafkaLogger) errorf(msg string, args ...any) { k.sugar.Errorf(msg, args...) }
