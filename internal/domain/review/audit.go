package review

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kulina-reconciliation/internal/domain/shared"
)

// AuditEntry records one manual-review transition. Entries are append-only;
// every Approve/Reject writes exactly one.
type AuditEntry struct {
	ID         uuid.UUID                   `json:"id" bson:"id"`
	CompanyID  uuid.UUID                   `json:"company_id" bson:"company_id"`
	ItemType   shared.ReviewItemType       `json:"item_type" bson:"item_type"`
	ItemID     uuid.UUID                   `json:"item_id" bson:"item_id"`
	FromStatus shared.ReconciliationStatus `json:"from_status" bson:"from_status"`
	ToStatus   shared.ReconciliationStatus `json:"to_status" bson:"to_status"`
	ActorID    string                      `json:"actor_id" bson:"actor_id"`
	Reason     string                      `json:"reason,omitempty" bson:"reason,omitempty"`
	CreatedAt  time.Time                   `json:"created_at" bson:"created_at"`
}

// NewAuditEntry builds an audit record for one transition
func NewAuditEntry(companyID uuid.UUID, itemType shared.ReviewItemType, itemID uuid.UUID, from, to shared.ReconciliationStatus, actorID, reason string) *AuditEntry {
	return &AuditEntry{
		ID:         uuid.New(),
		CompanyID:  companyID,
		ItemType:   itemType,
		ItemID:     itemID,
		FromStatus: from,
		ToStatus:   to,
		ActorID:    actorID,
		Reason:     reason,
		CreatedAt:  time.Now(),
	}
}

// AuditRepository stores the manual-review trail
type AuditRepository interface {
	Append(ctx context.Context, entry *AuditEntry) error

	// GetHistory returns entries for the company created on the given day,
	// newest first.
	GetHistory(ctx context.Context, companyID uuid.UUID, date time.Time) ([]*AuditEntry, error)
}
