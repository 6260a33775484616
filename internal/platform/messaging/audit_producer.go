// Package messaging provides the Kafka producer for the payment audit trail.
// Every terminal reconciliation transition and forwarding outcome is
// published so that downstream systems have a durable record of what the
// engine decided, independent of the billing forward itself.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/starlynx/utility-ledger/internal/config"
)

// AuditEvent is the wire format of one audit record
type AuditEvent struct {
	CorrelationID string `json:"correlation_id"`
	Subject       string `json:"subject,omitempty"`
	Status        string `json:"status"`
	ReceiptNumber string `json:"receipt_number,omitempty"`
	Amount        int64  `json:"amount,omitempty"`
	Detail        string `json:"detail,omitempty"`
	Timestamp     string `json:"timestamp"`
}

// AuditPublisher records reconciliation outcomes
type AuditPublisher interface {
	Publish(ctx context.Context, event AuditEvent) error
	Close() error
}

// KafkaWriter wraps kafka.Writer methods for testing
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AuditProducer implements AuditPublisher on Kafka
type AuditProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

// NewAuditProducer creates the audit producer and ensures the topic exists.
// Returns nil producer if cfg.AuditTopic is empty (audit trail disabled).
func NewAuditProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*AuditProducer, error) {
	if cfg.AuditTopic == "" {
		logger.Info("Audit topic is not configured. AuditProducer will not be initialized.")
		return nil, nil
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for audit producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.AuditTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure audit topic %s exists: %w", cfg.AuditTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.AuditTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		WriteTimeout: cfg.WriteTimeout,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write audit messages", "topic", cfg.AuditTopic, "error", err, "count", len(messages))
			} else {
				logger.Debug("Successfully wrote audit messages", "topic", cfg.AuditTopic, "count", len(messages))
			}
		},
	}

	return &AuditProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.AuditTopic,
	}, nil
}

// Publish writes one audit event keyed by correlation id, so all events for
// one payment land on the same partition in order.
func (p *AuditProducer) Publish(ctx context.Context, event AuditEvent) error {
	if p == nil || p.writer == nil {
		return nil // Audit trail disabled
	}

	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}

	jsonValue, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.CorrelationID),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish audit event",
			"topic", p.topic,
			"correlation_id", event.CorrelationID,
			"error", err,
		)
		return fmt.Errorf("failed to publish audit event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published audit event",
		"topic", p.topic,
		"correlation_id", event.CorrelationID,
		"status", event.Status,
	)
	return nil
}

func (p *AuditProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	p.logger.Info("Closing audit Kafka producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close audit kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
