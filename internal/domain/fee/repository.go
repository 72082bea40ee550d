package fee

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines fee master and applied fee persistence operations.
// Fee masters are read-only to the engine; admin flows own their lifecycle.
type Repository interface {
	// GetActiveFeeMasters returns fee rules effective on the given date for
	// the platform, optionally narrowed to one branch. Branch-specific rules
	// and company-wide (nil branch) rules are both returned.
	GetActiveFeeMasters(ctx context.Context, companyID uuid.UUID, platformCode string, branchID *uuid.UUID, date time.Time) ([]*Master, error)

	CreateApplied(ctx context.Context, applied *Applied) error
	UpdateApplied(ctx context.Context, applied *Applied) error
	GetAppliedByID(ctx context.Context, id uuid.UUID) (*Applied, error)
	GetAppliedBySettlement(ctx context.Context, settlementID uuid.UUID) ([]*Applied, error)

	// GetAppliedByCompanyAndDate returns every applied fee whose settlement
	// falls on the given transaction date, for fee reporting.
	GetAppliedByCompanyAndDate(ctx context.Context, companyID uuid.UUID, date time.Time) ([]*Applied, error)

	// GetPendingReview returns applied fees flagged for manual review for
	// the company, oldest first.
	GetPendingReview(ctx context.Context, companyID uuid.UUID) ([]*Applied, error)
}

// ErrAppliedNotFound indicates missing applied fee
type ErrAppliedNotFound struct {
	AppliedID uuid.UUID
}

func (e ErrAppliedNotFound) Error() string {
	return "applied fee not found: " + e.AppliedID.String()
}

// Is matches any ErrAppliedNotFound when the target carries a nil id
func (e ErrAppliedNotFound) Is(target error) bool {
	t, ok := target.(ErrAppliedNotFound)
	if !ok {
		return false
	}
	return t.AppliedID == uuid.Nil || e.AppliedID == t.AppliedID
}
