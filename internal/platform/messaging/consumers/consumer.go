package consumers

import (
	"context"
	"log/slog"
	"time"

	"github.com/kulina-reconciliation/internal/config"
	"github.com/segmentio/kafka-go"
)

// MessageHandler processes one run request. A non-nil error leaves the offset
// uncommitted so the request is redelivered.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// KafkaConsumer reads run requests from the run request topic. Offsets are
// committed only after the handler returns nil; an in-flight run that dies
// with the process is therefore picked up again by the next consumer in the
// group.
type KafkaConsumer struct {
	reader *kafka.Reader
	logger *slog.Logger
	topic  string
	group  string
}

func NewKafkaConsumer(_ context.Context, logger *slog.Logger, cfg *config.KafkaConfig) *KafkaConsumer {
	return &KafkaConsumer{
		logger: logger,
		topic:  cfg.RunRequestTopic,
		group:  cfg.ConsumerGroup,
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     []string{cfg.Brokers},
			Topic:       cfg.RunRequestTopic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    cfg.MinBytes,
			MaxBytes:    cfg.MaxBytes,
			MaxWait:     cfg.MaxWait,
			StartOffset: kafka.FirstOffset,
		}),
	}
}

// Run consumes run requests until ctx is cancelled. It blocks; the caller
// owns the goroutine. Fetch errors are retried after a short pause rather
// than tearing the processor down.
func (c *KafkaConsumer) Run(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("Consuming run requests",
		"topic", c.topic,
		"group_id", c.group,
	)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Run request consumer stopping",
					"topic", c.topic,
					"group_id", c.group,
				)
				return nil
			}
			c.logger.Error("Failed to fetch run request",
				"topic", c.topic,
				"group_id", c.group,
				"error", err,
			)
			time.Sleep(time.Second)
			continue
		}

		c.logger.Debug("Run request received",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"run_id", string(msg.Key),
		)

		if err := handler(ctx, msg.Key, msg.Value); err != nil {
			// Uncommitted on purpose: the request stays available for redelivery
			c.logger.Error("Run request processing failed, offset not committed",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"run_id", string(msg.Key),
				"error", err,
			)
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("Failed to commit run request offset",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"run_id", string(msg.Key),
				"error", err,
			)
		}
	}
}

func (c *KafkaConsumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}
