package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/clover/internal/tracing"
)

// Producer handles Kafka event emission
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// OperationEvent records the outcome of one maintenance operation for
// downstream audit consumers.
type OperationEvent struct {
	EventType  string          `json:"event_type"` // identifiers.backfilled, links.reconciled, agent.propagated
	TenantID   string          `json:"tenant_id"`
	EntityType string          `json:"entity_type,omitempty"`
	Summary    json.RawMessage `json:"summary,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// PublishOperationEvent publishes a maintenance operation event to Kafka
func (p *Producer) PublishOperationEvent(ctx context.Context, event *OperationEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishOperationEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.TenantID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "tenant_id", Value: []byte(event.TenantID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish operation event")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": event.EventType,
		"tenant_id":  event.TenantID,
	}).Debug("Published operation event")

	return nil
}
