package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kulina-reconciliation/internal/domain/shared"
	"github.com/kulina-reconciliation/internal/domain/statement"
	"github.com/kulina-reconciliation/internal/platform/persistence"
)

const statementColumns = `id, company_id, bank_account_id, statement_date, transaction_date, description, reference_number,
		debit_amount, credit_amount, balance, settlement_id,
		reconciliation_status, matched_at, matched_by,
		source_type, source_reference, file_hash, imported_at`

// StatementRepository implements the statement.Repository interface for PostgreSQL
type StatementRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewStatementRepository creates a new PostgreSQL bank statement repository
func NewStatementRepository(logger *slog.Logger, db *persistence.PostgresDB) statement.Repository {
	return &StatementRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Create stores a new bank statement line
func (r *StatementRepository) Create(ctx context.Context, stmt *statement.Statement) error {
	query := `
		INSERT INTO bank_statements (` + statementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := r.querier.Exec(ctx, query,
		stmt.ID,
		stmt.CompanyID,
		stmt.BankAccountID,
		stmt.StatementDate,
		stmt.TransactionDate,
		stmt.Description,
		stmt.ReferenceNumber,
		stmt.DebitAmount,
		stmt.CreditAmount,
		stmt.Balance,
		stmt.SettlementID,
		stmt.ReconciliationStatus,
		stmt.MatchedAt,
		stmt.MatchedBy,
		stmt.SourceType,
		stmt.SourceReference,
		stmt.FileHash,
		stmt.ImportedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create bank statement", "error", err)
		return fmt.Errorf("failed to create bank statement: %w", err)
	}

	return nil
}

// FindByID retrieves a bank statement by its ID
func (r *StatementRepository) FindByID(ctx context.Context, id uuid.UUID) (*statement.Statement, error) {
	query := `
		SELECT ` + statementColumns + `
		FROM bank_statements
		WHERE id = $1
	`

	stmt, err := scanStatement(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, statement.ErrStatementNotFound{StatementID: id}
		}
		r.logger.Error("Failed to get bank statement", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get bank statement: %w", err)
	}

	return stmt, nil
}

// FindByFileHash looks up a prior statement import by content hash scoped to
// company+bank account. Returns nil, nil when none exists.
func (r *StatementRepository) FindByFileHash(ctx context.Context, companyID, bankAccountID uuid.UUID, fileHash string) (*statement.Statement, error) {
	query := `
		SELECT ` + statementColumns + `
		FROM bank_statements
		WHERE company_id = $1 AND bank_account_id = $2 AND file_hash = $3
		LIMIT 1
	`

	stmt, err := scanStatement(r.querier.QueryRow(ctx, query, companyID, bankAccountID, fileHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get bank statement by file hash", "file_hash", fileHash, "error", err)
		return nil, fmt.Errorf("failed to get bank statement by file hash: %w", err)
	}

	return stmt, nil
}

// GetUnreconciledStatements returns unclaimed PENDING statements for the
// company whose transaction date falls within [from, to].
func (r *StatementRepository) GetUnreconciledStatements(ctx context.Context, from, to time.Time, companyID uuid.UUID) ([]*statement.Statement, error) {
	query := `
		SELECT ` + statementColumns + `
		FROM bank_statements
		WHERE company_id = $1 AND settlement_id IS NULL AND reconciliation_status = 'PENDING'
		  AND transaction_date BETWEEN $2 AND $3
		ORDER BY id
	`

	rows, err := r.querier.Query(ctx, query, companyID, from, to)
	if err != nil {
		r.logger.Error("Failed to query unreconciled statements", "company_id", companyID.String(), "error", err)
		return nil, fmt.Errorf("failed to query unreconciled statements: %w", err)
	}
	defer rows.Close()

	var stmts []*statement.Statement
	for rows.Next() {
		stmt, err := scanStatement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bank statement: %w", err)
		}
		stmts = append(stmts, stmt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bank statements: %w", err)
	}

	return stmts, nil
}

// Claim atomically binds the statement to a settlement. The conditional
// WHERE settlement_id IS NULL is what prevents two concurrently-processed
// settlements from claiming the same statement; a lost race surfaces as
// ErrAlreadyClaimed so the matching engine can try its next candidate.
func (r *StatementRepository) Claim(ctx context.Context, id, settlementID uuid.UUID, matchedBy string) error {
	query := `
		UPDATE bank_statements
		SET settlement_id = $1, reconciliation_status = 'MATCHED', matched_at = NOW(), matched_by = $2
		WHERE id = $3 AND settlement_id IS NULL
	`

	result, err := r.querier.Exec(ctx, query, settlementID, matchedBy, id)
	if err != nil {
		r.logger.Error("Failed to claim bank statement", "id", id.String(), "error", err)
		return fmt.Errorf("failed to claim bank statement: %w", err)
	}

	if result.RowsAffected() == 0 {
		return statement.ErrAlreadyClaimed{StatementID: id}
	}

	return nil
}

// Release unbinds a statement after a rejected manual review, returning it
// to the candidate pool.
func (r *StatementRepository) Release(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE bank_statements
		SET settlement_id = NULL, reconciliation_status = 'PENDING', matched_at = NULL, matched_by = ''
		WHERE id = $1
	`

	result, err := r.querier.Exec(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to release bank statement", "id", id.String(), "error", err)
		return fmt.Errorf("failed to release bank statement: %w", err)
	}

	if result.RowsAffected() == 0 {
		return statement.ErrStatementNotFound{StatementID: id}
	}

	return nil
}

// UpdateReconciliationStatus sets the statement's status without touching the claim
func (r *StatementRepository) UpdateReconciliationStatus(ctx context.Context, id uuid.UUID, status shared.ReconciliationStatus) error {
	query := `
		UPDATE bank_statements
		SET reconciliation_status = $1
		WHERE id = $2
	`

	result, err := r.querier.Exec(ctx, query, status, id)
	if err != nil {
		r.logger.Error("Failed to update bank statement status", "id", id.String(), "error", err)
		return fmt.Errorf("failed to update bank statement status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return statement.ErrStatementNotFound{StatementID: id}
	}

	return nil
}

func scanStatement(row pgx.Row) (*statement.Statement, error) {
	var st statement.Statement
	err := row.Scan(
		&st.ID,
		&st.CompanyID,
		&st.BankAccountID,
		&st.StatementDate,
		&st.TransactionDate,
		&st.Description,
		&st.ReferenceNumber,
		&st.DebitAmount,
		&st.CreditAmount,
		&st.Balance,
		&st.SettlementID,
		&st.ReconciliationStatus,
		&st.MatchedAt,
		&st.MatchedBy,
		&st.SourceType,
		&st.SourceReference,
		&st.FileHash,
		&st.ImportedAt,
	)
	if err != nil {
		return nil, err
	}
	return &st, nil
}
