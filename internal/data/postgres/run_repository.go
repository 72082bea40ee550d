package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kulina-reconciliation/internal/domain/run"
	"github.com/kulina-reconciliation/internal/domain/shared"
	"github.com/kulina-reconciliation/internal/platform/persistence"
)

const runColumns = `id, company_id, run_type, scope_key, scope, initiated_by,
		total_items, processed_items, failed_items, current_step,
		status, result_summary, error_log, started_at, completed_at`

// RunRepository implements the run.Repository interface for PostgreSQL
type RunRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewRunRepository creates a new PostgreSQL reconciliation run repository
func NewRunRepository(logger *slog.Logger, db *persistence.PostgresDB) run.Repository {
	return &RunRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Create stores a new reconciliation run. The partial unique index on
// scope_key for active statuses backs the one-active-run-per-scope guard.
func (r *RunRepository) Create(ctx context.Context, rn *run.Run) error {
	scopeJSON, err := json.Marshal(rn.Scope)
	if err != nil {
		return fmt.Errorf("failed to encode run scope: %w", err)
	}
	summaryJSON, errLogJSON, err := encodeRunExtras(rn)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO reconciliation_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err = r.querier.Exec(ctx, query,
		rn.ID,
		rn.CompanyID,
		rn.RunType,
		rn.Scope.Key(),
		scopeJSON,
		rn.InitiatedBy,
		rn.TotalItems,
		rn.ProcessedItems,
		rn.FailedItems,
		rn.CurrentStep,
		rn.Status,
		summaryJSON,
		errLogJSON,
		rn.StartedAt,
		rn.CompletedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create reconciliation run", "error", err)
		return fmt.Errorf("failed to create reconciliation run: %w", err)
	}

	return nil
}

// FindByID retrieves a run by its ID
func (r *RunRepository) FindByID(ctx context.Context, id uuid.UUID) (*run.Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM reconciliation_runs
		WHERE id = $1
	`

	rn, err := scanRun(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, run.ErrRunNotFound{RunID: id}
		}
		r.logger.Error("Failed to get reconciliation run", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get reconciliation run: %w", err)
	}

	return rn, nil
}

// FindActiveByScopeKey returns the INITIALIZED/RUNNING run for the scope key,
// or nil, nil when no run is active.
func (r *RunRepository) FindActiveByScopeKey(ctx context.Context, scopeKey string) (*run.Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM reconciliation_runs
		WHERE scope_key = $1 AND status IN ('INITIALIZED', 'RUNNING')
		LIMIT 1
	`

	rn, err := scanRun(r.querier.QueryRow(ctx, query, scopeKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get active run by scope", "scope_key", scopeKey, "error", err)
		return nil, fmt.Errorf("failed to get active run by scope: %w", err)
	}

	return rn, nil
}

// IncrementProgress atomically adds to the progress counters. The in-database
// increment (not read-modify-write) keeps the counters correct under
// concurrent workers.
func (r *RunRepository) IncrementProgress(ctx context.Context, id uuid.UUID, processedDelta, failedDelta int, itemErrors []string) error {
	query := `
		UPDATE reconciliation_runs
		SET processed_items = processed_items + $1,
		    failed_items = failed_items + $2,
		    error_log = error_log || $3::jsonb
		WHERE id = $4
	`

	if itemErrors == nil {
		itemErrors = []string{}
	}
	errLogJSON, err := json.Marshal(itemErrors)
	if err != nil {
		return fmt.Errorf("failed to encode item errors: %w", err)
	}

	result, err := r.querier.Exec(ctx, query, processedDelta, failedDelta, errLogJSON, id)
	if err != nil {
		r.logger.Error("Failed to increment run progress", "id", id.String(), "error", err)
		return fmt.Errorf("failed to increment run progress: %w", err)
	}

	if result.RowsAffected() == 0 {
		return run.ErrRunNotFound{RunID: id}
	}

	return nil
}

// UpdateCurrentStep records which pipeline step the run is executing
func (r *RunRepository) UpdateCurrentStep(ctx context.Context, id uuid.UUID, step shared.RunStep) error {
	query := `
		UPDATE reconciliation_runs
		SET current_step = $1
		WHERE id = $2
	`

	result, err := r.querier.Exec(ctx, query, step, id)
	if err != nil {
		r.logger.Error("Failed to update run step", "id", id.String(), "error", err)
		return fmt.Errorf("failed to update run step: %w", err)
	}

	if result.RowsAffected() == 0 {
		return run.ErrRunNotFound{RunID: id}
	}

	return nil
}

// UpdateStatus transitions the run, persisting summary, error log and
// completion timestamp from the entity.
func (r *RunRepository) UpdateStatus(ctx context.Context, rn *run.Run) error {
	summaryJSON, errLogJSON, err := encodeRunExtras(rn)
	if err != nil {
		return err
	}

	query := `
		UPDATE reconciliation_runs
		SET status = $1, result_summary = $2, error_log = $3, completed_at = $4
		WHERE id = $5
	`

	result, err := r.querier.Exec(ctx, query, rn.Status, summaryJSON, errLogJSON, rn.CompletedAt, rn.ID)
	if err != nil {
		r.logger.Error("Failed to update run status", "id", rn.ID.String(), "error", err)
		return fmt.Errorf("failed to update run status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return run.ErrRunNotFound{RunID: rn.ID}
	}

	return nil
}

func encodeRunExtras(rn *run.Run) ([]byte, []byte, error) {
	var summaryJSON []byte
	if rn.ResultSummary != nil {
		var err error
		summaryJSON, err = json.Marshal(rn.ResultSummary)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode run summary: %w", err)
		}
	}

	errLog := rn.ErrorLog
	if errLog == nil {
		errLog = []string{}
	}
	errLogJSON, err := json.Marshal(errLog)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode run error log: %w", err)
	}

	return summaryJSON, errLogJSON, nil
}

func scanRun(row pgx.Row) (*run.Run, error) {
	var rn run.Run
	var scopeKey string
	var scopeJSON, summaryJSON, errLogJSON []byte

	err := row.Scan(
		&rn.ID,
		&rn.CompanyID,
		&rn.RunType,
		&scopeKey,
		&scopeJSON,
		&rn.InitiatedBy,
		&rn.TotalItems,
		&rn.ProcessedItems,
		&rn.FailedItems,
		&rn.CurrentStep,
		&rn.Status,
		&summaryJSON,
		&errLogJSON,
		&rn.StartedAt,
		&rn.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(scopeJSON, &rn.Scope); err != nil {
		return nil, fmt.Errorf("failed to decode run scope: %w", err)
	}
	if len(summaryJSON) > 0 {
		rn.ResultSummary = &run.ResultSummary{}
		if err := json.Unmarshal(summaryJSON, rn.ResultSummary); err != nil {
			return nil, fmt.Errorf("failed to decode run summary: %w", err)
		}
	}
	if len(errLogJSON) > 0 {
		if err := json.Unmarshal(errLogJSON, &rn.ErrorLog); err != nil {
			return nil, fmt.Errorf("failed to decode run error log: %w", err)
		}
	}

	return &rn, nil
}
