package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/kulina-reconciliation/internal/domain/shared"
	"github.com/kulina-reconciliation/internal/platform/messaging/producers"
)

// RunExecutor executes a reconciliation run end to end. A run whose row is
// already terminal must be a no-op so redelivered messages stay safe.
type RunExecutor interface {
	ExecuteRun(ctx context.Context, runID uuid.UUID) error
}

// RunEventHandler handles incoming run request messages from Kafka
type RunEventHandler struct {
	executor RunExecutor
	producer producers.DeadLetterPublisher
	logger   *slog.Logger
}

// NewRunEventHandler creates a new handler
func NewRunEventHandler(
	logger *slog.Logger,
	executor RunExecutor,
	producer producers.DeadLetterPublisher,
) *RunEventHandler {
	return &RunEventHandler{
		executor: executor,
		producer: producer,
		logger:   logger,
	}
}

// HandleMessage processes Kafka messages
func (h *RunEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var request shared.RunRequest
	if err := json.Unmarshal(value, &request); err != nil {
		unmarshalErrorMsg := "Failed to unmarshal run request from Kafka message"
		h.logger.Error(unmarshalErrorMsg,
			"error", err,
			"message_key", string(key),
		)

		// Send to DLQ if available
		if h.producer != nil {
			dlqReason := fmt.Sprintf("%s: %s", unmarshalErrorMsg, err.Error())
			if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
				h.logger.Error("Failed to publish message to DLQ after unmarshal error",
					"dlq_error", dlqErr,
					"original_error", err,
					"message_key", string(key),
				)
			} else {
				h.logger.Info("Published unprocessable message to DLQ", "message_key", string(key), "reason", dlqReason)
				// Message handled, commit offset
				return nil
			}
		}
		// Allow Kafka retries
		return fmt.Errorf("failed to unmarshal message value: %w", err)
	}

	logger := h.logger
	if request.CorrelationID != "" {
		logger = h.logger.With("correlation_id", request.CorrelationID)
	}

	logger.Info("Received run request for execution",
		"run_id", request.RunID.String(),
		"company_id", request.CompanyID.String(),
		"run_type", request.RunType,
		"run_date", request.RunDate.Format("2006-01-02"),
	)

	if err := h.executor.ExecuteRun(ctx, request.RunID); err != nil {
		// The run row is marked FAILED before this returns; the uncommitted
		// redelivery hits the terminal-status skip and commits.
		logger.Error("Failed to execute reconciliation run",
			"run_id", request.RunID.String(),
			"error", err,
		)
		return fmt.Errorf("executing run %s failed: %w", request.RunID.String(), err)
	}

	logger.Info("Reconciliation run executed", "run_id", request.RunID.String())
	return nil
}
