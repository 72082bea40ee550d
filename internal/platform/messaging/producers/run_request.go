package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kulina-reconciliation/internal/config"
	"github.com/segmentio/kafka-go"
)

type RunRequestMessageProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// Creates a new run request producer and ensures the topic exists
func NewRunRequestMessageProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*RunRequestMessageProducer, error) {
	if cfg.RunRequestTopic == "" {
		return nil, fmt.Errorf("kafka run request topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for run request producer: %w", err)
	}
	defer conn.Close()

	err = ensureTopicExists(conn, cfg.RunRequestTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure run request topic %s exists: %w", cfg.RunRequestTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.RunRequestTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		// Synchronous so a broker failure surfaces to the caller
		Async:        false,
		WriteTimeout: cfg.MaxWait,
	}

	return &RunRequestMessageProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.RunRequestTopic,
	}, nil
}

func (p *RunRequestMessageProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal run request message: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish run request",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish run request to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published run request",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *RunRequestMessageProducer) Close() error {
	p.logger.Info("Closing run request Kafka producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close run request kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
