package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kulina-reconciliation/internal/domain/shared"
)

// StatusCount is one row of the summary projection
type StatusCount struct {
	Status shared.ReconciliationStatus `json:"status"`
	Count  int64                       `json:"count"`
	Amount int64                       `json:"amount"` // Sum of nett amounts, minor units
}

// Repository defines settlement report persistence operations
type Repository interface {
	Create(ctx context.Context, report *Report) error
	FindByID(ctx context.Context, id uuid.UUID) (*Report, error)

	// FindByFileHash looks up a prior import by content hash, scoped to
	// company+platform. Returns nil, nil when no prior import exists.
	FindByFileHash(ctx context.Context, companyID uuid.UUID, platformCode, fileHash string) (*Report, error)

	// GetUnfinishedSettlements returns the scope batch for a run: settlements
	// on the date (optionally filtered by platforms/branches) whose overall
	// status is not yet COMPLETED.
	GetUnfinishedSettlements(ctx context.Context, date time.Time, companyID uuid.UUID, platformCodes []string, branchIDs []uuid.UUID) ([]*Report, error)

	// UpdateReconciliationStatus persists the three status axes and the
	// completion timestamps of a report.
	UpdateReconciliationStatus(ctx context.Context, report *Report) error

	// CountByStatus aggregates unreconciled settlements per overall status
	CountByStatus(ctx context.Context, companyID uuid.UUID, date time.Time) ([]StatusCount, error)
}

// ErrReportNotFound indicates missing settlement report
type ErrReportNotFound struct {
	ReportID uuid.UUID
}

func (e ErrReportNotFound) Error() string {
	return "settlement report not found: " + e.ReportID.String()
}

// Is matches any ErrReportNotFound when the target carries a nil id
func (e ErrReportNotFound) Is(target error) bool {
	t, ok := target.(ErrReportNotFound)
	if !ok {
		return false
	}
	return t.ReportID == uuid.Nil || e.ReportID == t.ReportID
}
