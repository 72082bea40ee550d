package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kulina-reconciliation/internal/domain/review"
)

const (
	// AuditCollectionName is the name of the review audit collection in MongoDB
	AuditCollectionName = "review_audit_entries"
)

// AuditRepository implements the review.AuditRepository interface for MongoDB
type AuditRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewAuditRepository creates a new MongoDB review audit repository
func NewAuditRepository(logger *slog.Logger, db *mongo.Database) review.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Append stores one review transition. The trail is append-only; entries are
// never updated or removed.
func (r *AuditRepository) Append(ctx context.Context, entry *review.AuditEntry) error {
	collection := r.db.Collection(AuditCollectionName)

	_, err := collection.InsertOne(ctx, entry)
	if err != nil {
		r.logger.Error("Failed to append review audit entry",
			"item_id", entry.ItemID.String(),
			"error", err)
		return fmt.Errorf("failed to append review audit entry: %w", err)
	}

	return nil
}

// GetHistory retrieves the company's review transitions for the given day.
// Results are sorted by creation time in descending order (newest first).
func (r *AuditRepository) GetHistory(ctx context.Context, companyID uuid.UUID, date time.Time) ([]*review.AuditEntry, error) {
	collection := r.db.Collection(AuditCollectionName)

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	filter := bson.M{
		"company_id": companyID,
		"created_at": bson.M{
			"$gte": dayStart,
			"$lt":  dayEnd,
		},
	}
	opts := options.Find().SetSort(bson.M{"created_at": -1})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get review audit history",
			"company_id", companyID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get review audit history: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*review.AuditEntry
	if err := cursor.All(ctx, &entries); err != nil {
		r.logger.Error("Failed to decode review audit entries",
			"company_id", companyID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode review audit entries: %w", err)
	}

	return entries, nil
}
