package shared

import (
	"time"

	"github.com/google/uuid"
)

// RunRequest defines the Kafka message asking the processor to execute a
// reconciliation run. The run row already exists INITIALIZED when this is
// published; the scope fields travel along for logging and DLQ triage.
type RunRequest struct {
	RunID         uuid.UUID   `json:"run_id"`
	CompanyID     uuid.UUID   `json:"company_id"`
	RunType       RunType     `json:"run_type"`
	RunDate       time.Time   `json:"run_date"`
	PlatformCodes []string    `json:"platform_codes,omitempty"`
	BranchIDs     []uuid.UUID `json:"branch_ids,omitempty"`
	RequestedBy   string      `json:"requested_by"`
	CorrelationID string      `json:"correlation_id"`
	Timestamp     time.Time   `json:"timestamp"`
}
