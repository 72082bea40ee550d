package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kulina-reconciliation/internal/domain/fee"
	"github.com/kulina-reconciliation/internal/platform/persistence"
)

const appliedColumns = `id, settlement_id, fee_master_id, fee_type, expected_amount, actual_amount, difference_amount,
		reconciliation_status, auto_approved, needs_review,
		adjusted_amount, adjustment_reason, adjusted_by, adjusted_at,
		created_at, updated_at`

// FeeRepository implements the fee.Repository interface for PostgreSQL.
// Fee masters are read-only here; admin flows own their lifecycle.
type FeeRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewFeeRepository creates a new PostgreSQL fee repository
func NewFeeRepository(logger *slog.Logger, db *persistence.PostgresDB) fee.Repository {
	return &FeeRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// GetActiveFeeMasters returns fee rules effective on the given date for the
// platform. Branch-specific rules and company-wide (NULL branch) rules are
// both returned; tiers are stored as a JSONB column.
func (r *FeeRepository) GetActiveFeeMasters(ctx context.Context, companyID uuid.UUID, platformCode string, branchID *uuid.UUID, date time.Time) ([]*fee.Master, error) {
	query := `
		SELECT id, company_id, platform_code, branch_id, fee_type, fee_name,
		       calculation_method, calculation_value, tiers, apply_to,
		       min_amount, max_amount, expense_account_id, is_auto_apply,
		       effective_date, expiry_date, is_active
		FROM fee_masters
		WHERE company_id = $1 AND platform_code = $2 AND is_active
		  AND (branch_id IS NULL OR branch_id = $3)
		  AND effective_date <= $4 AND (expiry_date IS NULL OR expiry_date > $4)
		ORDER BY fee_type, id
	`

	rows, err := r.querier.Query(ctx, query, companyID, platformCode, branchID, date)
	if err != nil {
		r.logger.Error("Failed to query fee masters", "platform_code", platformCode, "error", err)
		return nil, fmt.Errorf("failed to query fee masters: %w", err)
	}
	defer rows.Close()

	var masters []*fee.Master
	for rows.Next() {
		var m fee.Master
		var tiersJSON []byte
		err := rows.Scan(
			&m.ID,
			&m.CompanyID,
			&m.PlatformCode,
			&m.BranchID,
			&m.FeeType,
			&m.FeeName,
			&m.CalculationMethod,
			&m.CalculationValue,
			&tiersJSON,
			&m.ApplyTo,
			&m.MinAmount,
			&m.MaxAmount,
			&m.ExpenseAccountID,
			&m.IsAutoApply,
			&m.EffectiveDate,
			&m.ExpiryDate,
			&m.IsActive,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fee master: %w", err)
		}
		if len(tiersJSON) > 0 {
			if err := json.Unmarshal(tiersJSON, &m.Tiers); err != nil {
				return nil, fmt.Errorf("failed to decode fee master tiers: %w", err)
			}
		}
		masters = append(masters, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fee masters: %w", err)
	}

	return masters, nil
}

// CreateApplied stores the outcome of one fee master evaluation
func (r *FeeRepository) CreateApplied(ctx context.Context, applied *fee.Applied) error {
	query := `
		INSERT INTO applied_fees (` + appliedColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.querier.Exec(ctx, query,
		applied.ID,
		applied.SettlementID,
		applied.FeeMasterID,
		applied.FeeType,
		applied.ExpectedAmount,
		applied.ActualAmount,
		applied.DifferenceAmount,
		applied.ReconciliationStatus,
		applied.AutoApproved,
		applied.NeedsReview,
		applied.AdjustedAmount,
		applied.AdjustmentReason,
		applied.AdjustedBy,
		applied.AdjustedAt,
		applied.CreatedAt,
		applied.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create applied fee", "settlement_id", applied.SettlementID.String(), "error", err)
		return fmt.Errorf("failed to create applied fee: %w", err)
	}

	return nil
}

// UpdateApplied persists review/adjustment mutations on an applied fee
func (r *FeeRepository) UpdateApplied(ctx context.Context, applied *fee.Applied) error {
	query := `
		UPDATE applied_fees
		SET reconciliation_status = $1, auto_approved = $2, needs_review = $3,
		    adjusted_amount = $4, adjustment_reason = $5, adjusted_by = $6, adjusted_at = $7,
		    updated_at = $8
		WHERE id = $9
	`

	result, err := r.querier.Exec(ctx, query,
		applied.ReconciliationStatus,
		applied.AutoApproved,
		applied.NeedsReview,
		applied.AdjustedAmount,
		applied.AdjustmentReason,
		applied.AdjustedBy,
		applied.AdjustedAt,
		applied.UpdatedAt,
		applied.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update applied fee", "id", applied.ID.String(), "error", err)
		return fmt.Errorf("failed to update applied fee: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fee.ErrAppliedNotFound{AppliedID: applied.ID}
	}

	return nil
}

// GetAppliedByID retrieves one applied fee
func (r *FeeRepository) GetAppliedByID(ctx context.Context, id uuid.UUID) (*fee.Applied, error) {
	query := `
		SELECT ` + appliedColumns + `
		FROM applied_fees
		WHERE id = $1
	`

	applied, err := scanApplied(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fee.ErrAppliedNotFound{AppliedID: id}
		}
		r.logger.Error("Failed to get applied fee", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get applied fee: %w", err)
	}

	return applied, nil
}

// GetAppliedBySettlement returns all applied fees for one settlement
func (r *FeeRepository) GetAppliedBySettlement(ctx context.Context, settlementID uuid.UUID) ([]*fee.Applied, error) {
	query := `
		SELECT ` + appliedColumns + `
		FROM applied_fees
		WHERE settlement_id = $1
		ORDER BY fee_type, id
	`

	return r.queryApplied(ctx, query, settlementID)
}

// GetAppliedByCompanyAndDate returns every applied fee whose settlement falls
// on the given transaction date
func (r *FeeRepository) GetAppliedByCompanyAndDate(ctx context.Context, companyID uuid.UUID, date time.Time) ([]*fee.Applied, error) {
	query := `
		SELECT ` + qualifiedAppliedColumns + `
		FROM applied_fees af
		JOIN settlement_reports sr ON sr.id = af.settlement_id
		WHERE sr.company_id = $1 AND sr.transaction_date = $2
		ORDER BY af.fee_type, af.id
	`

	return r.queryApplied(ctx, query, companyID, date)
}

// GetPendingReview returns applied fees flagged for manual review, oldest first
func (r *FeeRepository) GetPendingReview(ctx context.Context, companyID uuid.UUID) ([]*fee.Applied, error) {
	query := `
		SELECT ` + qualifiedAppliedColumns + `
		FROM applied_fees af
		JOIN settlement_reports sr ON sr.id = af.settlement_id
		WHERE sr.company_id = $1 AND af.needs_review AND af.reconciliation_status = 'REVIEW_REQUIRED'
		ORDER BY af.created_at
	`

	return r.queryApplied(ctx, query, companyID)
}

func (r *FeeRepository) queryApplied(ctx context.Context, query string, args ...interface{}) ([]*fee.Applied, error) {
	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query applied fees", "error", err)
		return nil, fmt.Errorf("failed to query applied fees: %w", err)
	}
	defer rows.Close()

	var fees []*fee.Applied
	for rows.Next() {
		applied, err := scanApplied(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan applied fee: %w", err)
		}
		fees = append(fees, applied)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate applied fees: %w", err)
	}

	return fees, nil
}

const qualifiedAppliedColumns = `af.id, af.settlement_id, af.fee_master_id, af.fee_type, af.expected_amount, af.actual_amount, af.difference_amount,
		af.reconciliation_status, af.auto_approved, af.needs_review,
		af.adjusted_amount, af.adjustment_reason, af.adjusted_by, af.adjusted_at,
		af.created_at, af.updated_at`

func scanApplied(row pgx.Row) (*fee.Applied, error) {
	var a fee.Applied
	err := row.Scan(
		&a.ID,
		&a.SettlementID,
		&a.FeeMasterID,
		&a.FeeType,
		&a.ExpectedAmount,
		&a.ActualAmount,
		&a.DifferenceAmount,
		&a.ReconciliationStatus,
		&a.AutoApproved,
		&a.NeedsReview,
		&a.AdjustedAmount,
		&a.AdjustmentReason,
		&a.AdjustedBy,
		&a.AdjustedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
