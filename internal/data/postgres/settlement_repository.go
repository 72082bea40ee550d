// Package postgres provides PostgreSQL implementations of the reconciliation
// domain repositories. It handles all database operations while maintaining
// proper error handling for the reconciliation engine.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kulina-reconciliation/internal/domain/settlement"
	"github.com/kulina-reconciliation/internal/platform/persistence"
)

const settlementColumns = `id, company_id, platform_code, branch_id, transaction_date, report_date, release_date,
		gross_amount, commission_amount, ads_amount, other_fees_amount, nett_amount,
		original_filename, file_hash, imported_at, imported_by,
		bank_recon_status, fee_recon_status, overall_status,
		bank_matched_at, fee_reconciled_at, completed_at`

// SettlementRepository implements the settlement.Repository interface for PostgreSQL
type SettlementRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewSettlementRepository creates a new PostgreSQL settlement repository
func NewSettlementRepository(logger *slog.Logger, db *persistence.PostgresDB) settlement.Repository {
	return &SettlementRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Create stores a new settlement report. The unique index on
// (company_id, platform_code, file_hash) backs the import guard.
func (r *SettlementRepository) Create(ctx context.Context, report *settlement.Report) error {
	query := `
		INSERT INTO settlement_reports (` + settlementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`

	_, err := r.querier.Exec(ctx, query,
		report.ID,
		report.CompanyID,
		report.PlatformCode,
		report.BranchID,
		report.TransactionDate,
		report.ReportDate,
		report.ReleaseDate,
		report.GrossAmount,
		report.CommissionAmount,
		report.AdsAmount,
		report.OtherFeesAmount,
		report.NettAmount,
		report.OriginalFilename,
		report.FileHash,
		report.ImportedAt,
		report.ImportedBy,
		report.BankReconStatus,
		report.FeeReconStatus,
		report.OverallStatus,
		report.BankMatchedAt,
		report.FeeReconciledAt,
		report.CompletedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create settlement report", "error", err)
		return fmt.Errorf("failed to create settlement report: %w", err)
	}

	return nil
}

// FindByID retrieves a settlement report by its ID
func (r *SettlementRepository) FindByID(ctx context.Context, id uuid.UUID) (*settlement.Report, error) {
	query := `
		SELECT ` + settlementColumns + `
		FROM settlement_reports
		WHERE id = $1
	`

	report, err := scanSettlement(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, settlement.ErrReportNotFound{ReportID: id}
		}
		r.logger.Error("Failed to get settlement report", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get settlement report: %w", err)
	}

	return report, nil
}

// FindByFileHash looks up a prior import by content hash scoped to
// company+platform. Returns nil, nil when no prior import exists.
func (r *SettlementRepository) FindByFileHash(ctx context.Context, companyID uuid.UUID, platformCode, fileHash string) (*settlement.Report, error) {
	query := `
		SELECT ` + settlementColumns + `
		FROM settlement_reports
		WHERE company_id = $1 AND platform_code = $2 AND file_hash = $3
	`

	report, err := scanSettlement(r.querier.QueryRow(ctx, query, companyID, platformCode, fileHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get settlement report by file hash", "file_hash", fileHash, "error", err)
		return nil, fmt.Errorf("failed to get settlement report by file hash: %w", err)
	}

	return report, nil
}

// GetUnfinishedSettlements returns the scope batch for a run. Platform and
// branch filters apply only when non-empty.
func (r *SettlementRepository) GetUnfinishedSettlements(ctx context.Context, date time.Time, companyID uuid.UUID, platformCodes []string, branchIDs []uuid.UUID) ([]*settlement.Report, error) {
	query := `
		SELECT ` + settlementColumns + `
		FROM settlement_reports
		WHERE company_id = $1 AND transaction_date = $2 AND overall_status <> 'COMPLETED'
		  AND (cardinality($3::text[]) = 0 OR platform_code = ANY($3))
		  AND (cardinality($4::uuid[]) = 0 OR branch_id = ANY($4))
		ORDER BY id
	`

	if platformCodes == nil {
		platformCodes = []string{}
	}
	if branchIDs == nil {
		branchIDs = []uuid.UUID{}
	}

	return r.querySettlements(ctx, query, companyID, date, platformCodes, branchIDs)
}

// UpdateReconciliationStatus persists the three status axes and completion
// timestamps of a report.
func (r *SettlementRepository) UpdateReconciliationStatus(ctx context.Context, report *settlement.Report) error {
	query := `
		UPDATE settlement_reports
		SET bank_recon_status = $1, fee_recon_status = $2, overall_status = $3,
		    bank_matched_at = $4, fee_reconciled_at = $5, completed_at = $6
		WHERE id = $7
	`

	result, err := r.querier.Exec(ctx, query,
		report.BankReconStatus,
		report.FeeReconStatus,
		report.OverallStatus,
		report.BankMatchedAt,
		report.FeeReconciledAt,
		report.CompletedAt,
		report.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update settlement status", "id", report.ID.String(), "error", err)
		return fmt.Errorf("failed to update settlement status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return settlement.ErrReportNotFound{ReportID: report.ID}
	}

	return nil
}

// CountByStatus aggregates unreconciled settlements per overall status
func (r *SettlementRepository) CountByStatus(ctx context.Context, companyID uuid.UUID, date time.Time) ([]settlement.StatusCount, error) {
	query := `
		SELECT overall_status, COUNT(*), COALESCE(SUM(nett_amount), 0)
		FROM settlement_reports
		WHERE company_id = $1 AND transaction_date = $2
		GROUP BY overall_status
		ORDER BY overall_status
	`

	rows, err := r.querier.Query(ctx, query, companyID, date)
	if err != nil {
		r.logger.Error("Failed to count settlements by status", "company_id", companyID.String(), "error", err)
		return nil, fmt.Errorf("failed to count settlements by status: %w", err)
	}
	defer rows.Close()

	var counts []settlement.StatusCount
	for rows.Next() {
		var c settlement.StatusCount
		if err := rows.Scan(&c.Status, &c.Count, &c.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate status counts: %w", err)
	}

	return counts, nil
}

func (r *SettlementRepository) querySettlements(ctx context.Context, query string, args ...interface{}) ([]*settlement.Report, error) {
	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query settlement reports", "error", err)
		return nil, fmt.Errorf("failed to query settlement reports: %w", err)
	}
	defer rows.Close()

	var reports []*settlement.Report
	for rows.Next() {
		report, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement report: %w", err)
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlement reports: %w", err)
	}

	return reports, nil
}

func scanSettlement(row pgx.Row) (*settlement.Report, error) {
	var rep settlement.Report
	err := row.Scan(
		&rep.ID,
		&rep.CompanyID,
		&rep.PlatformCode,
		&rep.BranchID,
		&rep.TransactionDate,
		&rep.ReportDate,
		&rep.ReleaseDate,
		&rep.GrossAmount,
		&rep.CommissionAmount,
		&rep.AdsAmount,
		&rep.OtherFeesAmount,
		&rep.NettAmount,
		&rep.OriginalFilename,
		&rep.FileHash,
		&rep.ImportedAt,
		&rep.ImportedBy,
		&rep.BankReconStatus,
		&rep.FeeReconStatus,
		&rep.OverallStatus,
		&rep.BankMatchedAt,
		&rep.FeeReconciledAt,
		&rep.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rep, nil
}
