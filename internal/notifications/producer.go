package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"transitly/internal/shared/config"
	"transitly/pkg/logger"

	"github.com/IBM/sarama"
)

// Producer publishes booking lifecycle events. Publishing is best-effort:
// coordinators log failures and carry on, the booking row is already
// durable by the time an event is emitted.
type Producer interface {
	Publish(ctx context.Context, event *BookingEvent) error
	Close() error
}

type kafkaProducer struct {
	producer sarama.SyncProducer
	topic    string
	log      *logger.Logger
}

// NewProducer connects a synchronous producer to the configured brokers.
// When Kafka is disabled it returns a no-op producer so callers never
// branch on configuration.
func NewProducer(cfg *config.Config) (Producer, error) {
	if !cfg.Kafka.Enabled {
		return &noopProducer{log: logger.GetDefault()}, nil
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Retry.Backoff = 100 * time.Millisecond

	producer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &kafkaProducer{
		producer: producer,
		topic:    cfg.Kafka.Topic,
		log:      logger.GetDefault(),
	}, nil
}

func (p *kafkaProducer) Publish(ctx context.Context, event *BookingEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize booking event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		// Keyed by booking so per-booking ordering survives partitioning.
		Key:   sarama.StringEncoder(strconv.FormatUint(uint64(event.BookingID), 10)),
		Value: sarama.ByteEncoder(payload),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to publish booking event: %w", err)
	}

	p.log.InfoWithContext(ctx, "Booking event published", map[string]interface{}{
		"event_type": event.EventType,
		"booking_id": event.BookingID,
		"partition":  partition,
		"offset":     offset,
	})
	return nil
}

func (p *kafkaProducer) Close() error {
	return p.producer.Close()
}

type noopProducer struct {
	log *logger.Logger
}

func (p *noopProducer) Publish(ctx context.Context, event *BookingEvent) error {
	p.log.InfoWithContext(ctx, "Booking event (kafka disabled)", map[string]interface{}{
		"event_type": event.EventType,
		"booking_id": event.BookingID,
	})
	return nil
}

func (p *noopProducer) Close() error { return nil }
