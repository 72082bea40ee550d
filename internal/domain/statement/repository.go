package statement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kulina-reconciliation/internal/domain/shared"
)

// Repository defines bank statement persistence operations
type Repository interface {
	Create(ctx context.Context, stmt *Statement) error
	FindByID(ctx context.Context, id uuid.UUID) (*Statement, error)

	// FindByFileHash looks up a prior statement import by content hash,
	// scoped to company+bank account. Returns nil, nil when none exists.
	FindByFileHash(ctx context.Context, companyID, bankAccountID uuid.UUID, fileHash string) (*Statement, error)

	// GetUnreconciledStatements returns unclaimed PENDING statements for the
	// company whose transaction date falls within [from, to].
	GetUnreconciledStatements(ctx context.Context, from, to time.Time, companyID uuid.UUID) ([]*Statement, error)

	// Claim atomically binds the statement to a settlement. The write
	// succeeds only while settlement_id is still NULL; a lost race returns
	// ErrAlreadyClaimed so the caller can move on to another candidate.
	Claim(ctx context.Context, id, settlementID uuid.UUID, matchedBy string) error

	// Release unbinds a statement after a rejected manual review, returning
	// it to the candidate pool.
	Release(ctx context.Context, id uuid.UUID) error

	// UpdateReconciliationStatus sets the statement's status without
	// touching the claim.
	UpdateReconciliationStatus(ctx context.Context, id uuid.UUID, status shared.ReconciliationStatus) error
}

// ErrStatementNotFound indicates missing bank statement
type ErrStatementNotFound struct {
	StatementID uuid.UUID
}

func (e ErrStatementNotFound) Error() string {
	return "bank statement not found: " + e.StatementID.String()
}

// Is matches any ErrStatementNotFound when the target carries a nil id
func (e ErrStatementNotFound) Is(target error) bool {
	t, ok := target.(ErrStatementNotFound)
	if !ok {
		return false
	}
	return t.StatementID == uuid.Nil || e.StatementID == t.StatementID
}

// ErrAlreadyClaimed indicates the conditional claim write found the statement
// already bound to another settlement.
type ErrAlreadyClaimed struct {
	StatementID uuid.UUID
}

func (e ErrAlreadyClaimed) Error() string {
	return "bank statement already claimed: " + e.StatementID.String()
}

// Is matches any ErrAlreadyClaimed when the target carries a nil id
func (e ErrAlreadyClaimed) Is(target error) bool {
	t, ok := target.(ErrAlreadyClaimed)
	if !ok {
		return false
	}
	return t.StatementID == uuid.Nil || e.StatementID == t.StatementID
}
