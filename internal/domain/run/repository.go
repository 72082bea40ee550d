package run

import (
	"context"

	"github.com/google/uuid"
	"github.com/kulina-reconciliation/internal/domain/shared"
)

// Repository defines reconciliation run persistence operations
type Repository interface {
	Create(ctx context.Context, r *Run) error
	FindByID(ctx context.Context, id uuid.UUID) (*Run, error)

	// FindActiveByScopeKey returns the INITIALIZED/RUNNING run for the scope
	// key, or nil, nil when no run is active.
	FindActiveByScopeKey(ctx context.Context, scopeKey string) (*Run, error)

	// IncrementProgress atomically adds to the progress counters so they
	// stay correct under concurrent workers, appending any item errors.
	IncrementProgress(ctx context.Context, id uuid.UUID, processedDelta, failedDelta int, itemErrors []string) error

	// UpdateCurrentStep records which pipeline step the run is executing
	UpdateCurrentStep(ctx context.Context, id uuid.UUID, step shared.RunStep) error

	// UpdateStatus transitions the run, persisting summary, error log and
	// completion timestamp from the entity.
	UpdateStatus(ctx context.Context, r *Run) error
}

// ErrRunNotFound indicates missing reconciliation run
type ErrRunNotFound struct {
	RunID uuid.UUID
}

func (e ErrRunNotFound) Error() string {
	return "reconciliation run not found: " + e.RunID.String()
}

// Is matches any ErrRunNotFound when the target carries a nil id
func (e ErrRunNotFound) Is(target error) bool {
	t, ok := target.(ErrRunNotFound)
	if !ok {
		return false
	}
	return t.RunID == uuid.Nil || e.RunID == t.RunID
}
