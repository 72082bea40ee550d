package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kulina-reconciliation/internal/domain/fee"
	"github.com/kulina-reconciliation/internal/domain/review"
	"github.com/kulina-reconciliation/internal/domain/run"
	"github.com/kulina-reconciliation/internal/domain/settlement"
	"github.com/kulina-reconciliation/internal/domain/shared"
	"github.com/kulina-reconciliation/internal/domain/statement"
	reviewengine "github.com/kulina-reconciliation/internal/engine/review"
)

// ImportService defines the interface for file ingestion behind the
// duplicate guard.
type ImportService interface {
	// ImportSettlementFile parses one platform settlement CSV into a PENDING
	// report. Returns a DUPLICATE_IMPORT error when the content hash was
	// already ingested for the company and platform.
	ImportSettlementFile(ctx context.Context, companyID uuid.UUID, platformCode string, branchID *uuid.UUID, filename string, content []byte, importedBy string) (*settlement.Report, error)

	// ImportStatementFile parses one bank statement CSV into PENDING
	// statement lines, deduplicated per company and bank account.
	ImportStatementFile(ctx context.Context, companyID, bankAccountID uuid.UUID, filename string, content []byte, source shared.StatementSource) ([]*statement.Statement, error)
}

// RunService defines the interface for reconciliation run operations
type RunService interface {
	// StartRun creates the run and hands it to the processor. Returns a
	// RUN_ALREADY_ACTIVE error while another run covers the same scope.
	StartRun(ctx context.Context, runType shared.RunType, scope run.Scope, initiatedBy, correlationID string) (*run.Run, error)

	// GetRun returns the run with its live progress counters
	GetRun(ctx context.Context, runID uuid.UUID) (*run.Run, error)

	// CancelRun requests cooperative cancellation of a RUNNING run
	CancelRun(ctx context.Context, runID uuid.UUID) (*run.Run, error)
}

// ReviewService defines the interface for manual review decisions
type ReviewService interface {
	ApproveMatch(ctx context.Context, settlementID, statementID uuid.UUID, actorID string) (*settlement.Report, error)
	RejectMatch(ctx context.Context, settlementID uuid.UUID, actorID, reason string) (*settlement.Report, error)
	ApproveFee(ctx context.Context, appliedID uuid.UUID, actorID string) (*fee.Applied, error)
	RejectFee(ctx context.Context, appliedID uuid.UUID, actorID, reason string) (*fee.Applied, error)
	ManualMatch(ctx context.Context, settlementID, statementID uuid.UUID, actorID string) (*settlement.Report, error)
	UnmatchStatement(ctx context.Context, statementID uuid.UUID, actorID, reason string) (*statement.Statement, error)
	GetPending(ctx context.Context, companyID uuid.UUID, date time.Time) (*reviewengine.Queue, error)
	GetHistory(ctx context.Context, companyID uuid.UUID, date time.Time) ([]*review.AuditEntry, error)
}

// FeeAdjustmentService defines the interface for reviewer fee corrections
type FeeAdjustmentService interface {
	AdjustApplied(ctx context.Context, appliedID uuid.UUID, amount int64, reason, actorID string) (*fee.Applied, error)
}

// ReconciliationSummary aggregates a company's settlements for one date
type ReconciliationSummary struct {
	CompanyID   uuid.UUID                `json:"company_id"`
	Date        time.Time                `json:"date"`
	ByStatus    []settlement.StatusCount `json:"by_status"`
	TotalCount  int64                    `json:"total_count"`
	TotalAmount int64                    `json:"total_amount"`
}

// FeeReport aggregates a company's applied fees for one date
type FeeReport struct {
	CompanyID         uuid.UUID       `json:"company_id"`
	Date              time.Time       `json:"date"`
	Expected          fee.Calculation `json:"expected"`
	Actual            fee.Calculation `json:"actual"`
	Differences       fee.Differences `json:"differences"`
	AppliedCount      int             `json:"applied_count"`
	AutoApprovedCount int             `json:"auto_approved_count"`
	NeedsReviewCount  int             `json:"needs_review_count"`
	AdjustedCount     int             `json:"adjusted_count"`
}

// ReportService defines the interface for reporting projections
type ReportService interface {
	// GetSummary aggregates settlement counts and nett amounts per overall
	// status for the company and date.
	GetSummary(ctx context.Context, companyID uuid.UUID, date time.Time) (*ReconciliationSummary, error)

	// GetFeeReport aggregates expected versus actual fees per category for
	// the company and date.
	GetFeeReport(ctx context.Context, companyID uuid.UUID, date time.Time) (*FeeReport, error)

	// GetDiscrepancies returns settlements whose reconciliation needs
	// attention: review required, discrepancy or rejected.
	GetDiscrepancies(ctx context.Context, companyID uuid.UUID, date time.Time) ([]*settlement.Report, error)

	// GetUnreconciledStatements returns unclaimed statement lines in the
	// date range.
	GetUnreconciledStatements(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]*statement.Statement, error)

	// ExportUnreconciledCSV renders the unreconciled statements as CSV
	ExportUnreconciledCSV(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]byte, error)
}
