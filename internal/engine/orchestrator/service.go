// Package orchestrator drives full reconciliation runs: one run walks the
// settlements of a scope through the match, fee-reconcile and review-route
// steps on a bounded worker pool, keeping progress counters in the database
// so the run is observable while it executes.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kulina-reconciliation/internal/domain/run"
	"github.com/kulina-reconciliation/internal/domain/settlement"
	"github.com/kulina-reconciliation/internal/domain/shared"
	"github.com/kulina-reconciliation/internal/engine/fees"
	"github.com/kulina-reconciliation/internal/engine/matching"
	"github.com/panjf2000/ants/v2"
)

// BankMatcher runs the bank-matching step for one settlement
type BankMatcher interface {
	ReconcileSettlement(ctx context.Context, report *settlement.Report) (*matching.MatchResult, error)
}

// FeeReconciler runs the fee-reconciliation step for one settlement
type FeeReconciler interface {
	ReconcileSettlement(ctx context.Context, report *settlement.Report) (*fees.Result, error)
}

// Config carries the orchestrator's operational limits
type Config struct {
	PoolSize    int
	ItemTimeout time.Duration
}

// Service creates, executes and cancels reconciliation runs
type Service struct {
	logger      *slog.Logger
	runs        run.Repository
	settlements settlement.Repository
	matcher     BankMatcher
	feeEngine   FeeReconciler
	poolSize    int
	itemTimeout time.Duration

	mu     sync.Mutex
	active map[uuid.UUID]context.CancelFunc
}

// NewService creates the run orchestrator
func NewService(
	logger *slog.Logger,
	cfg Config,
	runs run.Repository,
	settlements settlement.Repository,
	matcher BankMatcher,
	feeEngine FeeReconciler,
) *Service {
	return &Service{
		logger:      logger,
		runs:        runs,
		settlements: settlements,
		matcher:     matcher,
		feeEngine:   feeEngine,
		poolSize:    cfg.PoolSize,
		itemTimeout: cfg.ItemTimeout,
		active:      make(map[uuid.UUID]context.CancelFunc),
	}
}

// StartRun registers a new run for the scope. At most one run may be active
// per scope key; a second request is rejected while the first is INITIALIZED
// or RUNNING. The run is created INITIALIZED and executed separately.
func (s *Service) StartRun(ctx context.Context, runType shared.RunType, scope run.Scope, initiatedBy string) (*run.Run, error) {
	scopeKey := scope.Key()

	activeRun, err := s.runs.FindActiveByScopeKey(ctx, scopeKey)
	if err != nil {
		return nil, shared.NewDatabaseError("active run lookup", err)
	}
	if activeRun != nil {
		return nil, shared.NewRunAlreadyActiveError(scopeKey, activeRun.ID.String())
	}

	items, err := s.settlements.GetUnfinishedSettlements(ctx, scope.RunDate, scope.CompanyID, scope.PlatformCodes, scope.BranchIDs)
	if err != nil {
		return nil, shared.NewDatabaseError("load run scope settlements", err)
	}

	rn := run.NewRun(runType, scope, initiatedBy, len(items))
	if err := s.runs.Create(ctx, rn); err != nil {
		return nil, shared.NewDatabaseError("create run", err)
	}

	s.logger.Info("Reconciliation run created",
		"run_id", rn.ID.String(),
		"scope_key", scopeKey,
		"run_type", string(runType),
		"total_items", rn.TotalItems,
		"initiated_by", initiatedBy)

	return rn, nil
}

// ExecuteRun processes an INITIALIZED run through the pipeline steps. A run
// already in a terminal status is skipped without error so redelivered run
// requests stay harmless. Item failures are accounted and do not stop the
// run; only run-level failures mark it FAILED.
func (s *Service) ExecuteRun(ctx context.Context, runID uuid.UUID) error {
	rn, err := s.runs.FindByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}

	if rn.Status.IsTerminal() {
		s.logger.Warn("Skipping run already in terminal status",
			"run_id", runID.String(),
			"status", string(rn.Status))
		return nil
	}
	if err := rn.Start(); err != nil {
		return fmt.Errorf("run %s cannot start from %s: %w", runID, rn.Status, err)
	}
	if err := s.runs.UpdateStatus(ctx, rn); err != nil {
		return fmt.Errorf("failed to persist running status: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.register(rn.ID, cancel)
	defer s.unregister(rn.ID)

	items, err := s.settlements.GetUnfinishedSettlements(runCtx, rn.Scope.RunDate, rn.Scope.CompanyID, rn.Scope.PlatformCodes, rn.Scope.BranchIDs)
	if err != nil {
		return s.failRun(ctx, rn, fmt.Sprintf("failed to load scope settlements: %v", err))
	}

	pool, err := ants.NewPool(s.poolSize)
	if err != nil {
		return s.failRun(ctx, rn, fmt.Sprintf("failed to create worker pool: %v", err))
	}
	defer pool.Release()

	progress := newProgressTracker()

	for _, step := range shared.DefaultRunSteps {
		if cancelled, err := s.checkCancelled(ctx, rn, runCtx); cancelled || err != nil {
			return err
		}

		if err := s.runs.UpdateCurrentStep(ctx, rn.ID, step); err != nil {
			return s.failRun(ctx, rn, fmt.Sprintf("failed to record step %s: %v", step, err))
		}
		rn.CurrentStep = step

		s.logger.Info("Run step started",
			"run_id", rn.ID.String(),
			"step", string(step),
			"items", len(items))

		switch step {
		case shared.StepMatch:
			s.runStep(runCtx, pool, rn, items, progress, step, 1, s.matchOne)
		case shared.StepFeeReconcile:
			s.runStep(runCtx, pool, rn, bankMatchedOnly(items), progress, step, 0, s.feeOne)
		case shared.StepReviewRoute:
			s.routeReviews(items, progress)
		}
	}

	if cancelled, err := s.checkCancelled(ctx, rn, runCtx); cancelled || err != nil {
		return err
	}

	summary, errLog := progress.snapshot()
	rn.ErrorLog = append(rn.ErrorLog, errLog...)
	if err := rn.Complete(summary); err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if err := s.runs.UpdateStatus(ctx, rn); err != nil {
		return fmt.Errorf("failed to persist completed run: %w", err)
	}

	s.logger.Info("Reconciliation run completed",
		"run_id", rn.ID.String(),
		"matched", summary.MatchedCount,
		"unmatched", summary.UnmatchedCount,
		"fee_matched", summary.FeeMatchedCount,
		"fee_review", summary.FeeReviewCount,
		"review_routed", summary.ReviewRoutedCount,
		"failed_items", summary.DiscrepancyCount)

	return nil
}

// CancelRun requests cooperative cancellation of a RUNNING run. The terminal
// status is written immediately; an executor in this process stops between
// items, one in another process stops at its next step boundary.
func (s *Service) CancelRun(ctx context.Context, runID uuid.UUID) (*run.Run, error) {
	rn, err := s.runs.FindByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	if rn.Status != shared.RunStatusRunning {
		return nil, shared.NewRunNotCancellableError(runID.String(), rn.Status)
	}
	if err := rn.Cancel(); err != nil {
		return nil, shared.NewRunNotCancellableError(runID.String(), rn.Status)
	}
	if err := s.runs.UpdateStatus(ctx, rn); err != nil {
		return nil, fmt.Errorf("failed to persist cancelled run: %w", err)
	}

	s.mu.Lock()
	if cancel, ok := s.active[runID]; ok {
		cancel()
	}
	s.mu.Unlock()

	s.logger.Info("Reconciliation run cancelled", "run_id", runID.String())
	return rn, nil
}

// AbortRun marks a run FAILED before execution, releasing its scope. Used
// when the run request cannot be handed to the processor.
func (s *Service) AbortRun(ctx context.Context, runID uuid.UUID, cause string) error {
	rn, err := s.runs.FindByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}
	if err := rn.Fail(cause); err != nil {
		return fmt.Errorf("run %s cannot be aborted: %w", runID, err)
	}
	if err := s.runs.UpdateStatus(ctx, rn); err != nil {
		return fmt.Errorf("failed to persist aborted run: %w", err)
	}
	s.logger.Warn("Reconciliation run aborted",
		"run_id", runID.String(),
		"cause", cause)
	return nil
}

// GetRun returns the run with its live progress counters
func (s *Service) GetRun(ctx context.Context, runID uuid.UUID) (*run.Run, error) {
	return s.runs.FindByID(ctx, runID)
}

// runStep fans the items out over the worker pool and waits for the step to
// drain. Cancellation is honored between submissions; items already running
// finish their timeout budget. processedDelta is the step's contribution to
// processed_items per item, 0 for steps that revisit already counted
// settlements.
func (s *Service) runStep(
	runCtx context.Context,
	pool *ants.Pool,
	rn *run.Run,
	items []*settlement.Report,
	progress *progressTracker,
	step shared.RunStep,
	processedDelta int,
	work func(ctx context.Context, rn *run.Run, report *settlement.Report, progress *progressTracker),
) {
	var wg sync.WaitGroup
	for _, report := range items {
		if runCtx.Err() != nil {
			break
		}
		report := report
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			itemCtx, cancel := context.WithTimeout(runCtx, s.itemTimeout)
			defer cancel()
			work(itemCtx, rn, report, progress)
		}); err != nil {
			wg.Done()
			s.recordFailure(runCtx, rn, progress, processedDelta,
				shared.NewRunStepDispatchError(step, report.ID.String(), err).Error())
		}
	}
	wg.Wait()
}

// matchOne runs the bank-matching step for a single settlement
func (s *Service) matchOne(ctx context.Context, rn *run.Run, report *settlement.Report, progress *progressTracker) {
	result, err := s.matcher.ReconcileSettlement(ctx, report)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = shared.NewJobTimeoutError(shared.StepMatch, report.ID.String())
		}
		s.recordFailure(ctx, rn, progress, 1, err.Error())
		return
	}

	progress.recordMatch(result)
	if err := s.runs.IncrementProgress(context.WithoutCancel(ctx), rn.ID, 1, 0, nil); err != nil {
		s.logger.Error("Failed to persist run progress",
			"run_id", rn.ID.String(),
			"error", err)
	}
}

// feeOne runs the fee-reconciliation step for a single settlement. The step
// does not advance processed_items; the settlement was already counted in the
// match step.
func (s *Service) feeOne(ctx context.Context, rn *run.Run, report *settlement.Report, progress *progressTracker) {
	result, err := s.feeEngine.ReconcileSettlement(ctx, report)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = shared.NewJobTimeoutError(shared.StepFeeReconcile, report.ID.String())
		}
		s.recordFailure(ctx, rn, progress, 0, err.Error())
		return
	}
	progress.recordFee(result)
}

// routeReviews counts the settlements the run left awaiting manual review.
// Both engines already persisted the REVIEW_REQUIRED statuses; this step only
// sizes the queue for the run summary.
func (s *Service) routeReviews(items []*settlement.Report, progress *progressTracker) {
	for _, report := range items {
		if report.OverallStatus == shared.StatusReviewRequired {
			progress.recordReviewRouted()
		}
	}
}

// recordFailure accounts one failed item attempt in memory and in the
// database. processedDelta is 0 for steps that re-process an already counted
// settlement.
func (s *Service) recordFailure(ctx context.Context, rn *run.Run, progress *progressTracker, processedDelta int, itemError string) {
	progress.recordFailure(itemError)
	if err := s.runs.IncrementProgress(context.WithoutCancel(ctx), rn.ID, processedDelta, 1, []string{itemError}); err != nil {
		s.logger.Error("Failed to persist run progress",
			"run_id", rn.ID.String(),
			"error", err)
	}
}

// checkCancelled stops execution when the run was cancelled, locally or by
// another process writing the terminal status. A dead context without a
// CANCELLED row means the process is shutting down, not that CancelRun ran;
// the run is marked FAILED and the error keeps the request uncommitted so a
// redelivery hits the terminal-status skip instead of stranding it RUNNING.
func (s *Service) checkCancelled(ctx context.Context, rn *run.Run, runCtx context.Context) (bool, error) {
	current, err := s.runs.FindByID(context.WithoutCancel(ctx), rn.ID)
	if err != nil {
		return false, fmt.Errorf("failed to refresh run status: %w", err)
	}
	if current.Status == shared.RunStatusCancelled {
		s.logger.Info("Run execution stopped by cancellation", "run_id", rn.ID.String())
		return true, nil
	}
	if runCtx.Err() != nil {
		return true, s.failRun(ctx, rn, "run execution interrupted by shutdown")
	}
	return false, nil
}

// failRun marks the run FAILED after a run-level error and reports it
func (s *Service) failRun(ctx context.Context, rn *run.Run, cause string) error {
	s.logger.Error("Reconciliation run failed",
		"run_id", rn.ID.String(),
		"cause", cause)
	if err := rn.Fail(cause); err != nil {
		return fmt.Errorf("run failure not recordable: %w", err)
	}
	if err := s.runs.UpdateStatus(context.WithoutCancel(ctx), rn); err != nil {
		return fmt.Errorf("failed to persist failed run: %w", err)
	}
	return fmt.Errorf("run %s failed: %s", rn.ID, cause)
}

func (s *Service) register(id uuid.UUID, cancel context.CancelFunc) {
	s.mu.Lock()
	s.active[id] = cancel
	s.mu.Unlock()
}

func (s *Service) unregister(id uuid.UUID) {
	s.mu.Lock()
	if cancel, ok := s.active[id]; ok {
		cancel()
		delete(s.active, id)
	}
	s.mu.Unlock()
}

func bankMatchedOnly(items []*settlement.Report) []*settlement.Report {
	var out []*settlement.Report
	for _, r := range items {
		if r.BankReconStatus.IsTerminalSuccess() && r.FeeReconStatus == shared.StatusPending {
			out = append(out, r)
		}
	}
	return out
}

// progressTracker accumulates the run summary across pool workers
type progressTracker struct {
	mu      sync.Mutex
	summary run.ResultSummary
	errLog  []string
}

func newProgressTracker() *progressTracker {
	return &progressTracker{}
}

func (p *progressTracker) recordMatch(result *matching.MatchResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case result == nil:
		p.summary.UnmatchedCount++
	case result.AutoApproved:
		p.summary.MatchedCount++
	}
}

func (p *progressTracker) recordFee(result *fees.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if result.Status == shared.StatusMatched {
		p.summary.FeeMatchedCount++
	} else {
		p.summary.FeeReviewCount++
	}
}

func (p *progressTracker) recordReviewRouted() {
	p.mu.Lock()
	p.summary.ReviewRoutedCount++
	p.mu.Unlock()
}

func (p *progressTracker) recordFailure(itemError string) {
	p.mu.Lock()
	p.summary.DiscrepancyCount++
	p.errLog = append(p.errLog, itemError)
	p.mu.Unlock()
}

func (p *progressTracker) snapshot() (run.ResultSummary, []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.summary, append([]string(nil), p.errLog...)
}
