package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kulina-reconciliation/internal/domain/run"
	"github.com/kulina-reconciliation/internal/domain/settlement"
	"github.com/kulina-reconciliation/internal/domain/shared"
	"github.com/kulina-reconciliation/internal/engine/fees"
	"github.com/kulina-reconciliation/internal/engine/matching"
	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type orchestratorMocks struct {
	runs        *MockRunRepository
	settlements *MockSettlementRepository
	matcher     *MockBankMatcher
	feeEngine   *MockFeeReconciler
}

func newTestService(t *testing.T) (*Service, *orchestratorMocks) {
	t.Helper()
	m := &orchestratorMocks{
		runs:        new(MockRunRepository),
		settlements: new(MockSettlementRepository),
		matcher:     new(MockBankMatcher),
		feeEngine:   new(MockFeeReconciler),
	}
	svc := NewService(newTestLogger(), Config{PoolSize: 4, ItemTimeout: time.Second},
		m.runs, m.settlements, m.matcher, m.feeEngine)
	return svc, m
}

func testScope() run.Scope {
	return run.Scope{
		CompanyID: uuid.New(),
		RunDate:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func testReport(companyID uuid.UUID) *settlement.Report {
	report, err := settlement.NewReport(
		companyID, "GOFOOD", nil,
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		1000000, 200000, 50000, 10000, 740000,
		"gofood.csv", "hash-"+uuid.NewString(), "importer-1",
	)
	if err != nil {
		panic(err)
	}
	return report
}

func TestStartRun(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an initialized run sized to the scope", func(t *testing.T) {
		svc, m := newTestService(t)
		scope := testScope()
		items := []*settlement.Report{testReport(scope.CompanyID), testReport(scope.CompanyID)}

		m.runs.On("FindActiveByScopeKey", ctx, scope.Key()).Return(nil, nil)
		m.settlements.On("GetUnfinishedSettlements", ctx, scope.RunDate, scope.CompanyID, []string(nil), []uuid.UUID(nil)).
			Return(items, nil)
		m.runs.On("Create", ctx, mock.AnythingOfType("*run.Run")).Return(nil)

		rn, err := svc.StartRun(ctx, shared.RunTypeDaily, scope, "scheduler")
		require.NoError(t, err)

		assert.Equal(t, shared.RunStatusInitialized, rn.Status)
		assert.Equal(t, 2, rn.TotalItems)
		assert.Equal(t, scope.CompanyID, rn.CompanyID)
		assert.Equal(t, "scheduler", rn.InitiatedBy)
		m.runs.AssertExpectations(t)
	})

	t.Run("rejects a second run for an active scope", func(t *testing.T) {
		svc, m := newTestService(t)
		scope := testScope()
		active := run.NewRun(shared.RunTypeDaily, scope, "scheduler", 3)

		m.runs.On("FindActiveByScopeKey", ctx, scope.Key()).Return(active, nil)

		_, err := svc.StartRun(ctx, shared.RunTypeAdhoc, scope, "user-1")
		require.Error(t, err)

		var recErr *shared.Error
		require.ErrorAs(t, err, &recErr)
		assert.Equal(t, shared.CodeRunAlreadyActive, recErr.Code)
		assert.Equal(t, active.ID.String(), recErr.Details["active_run_id"])
		m.runs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("an equivalent scope with reordered filters hits the same guard", func(t *testing.T) {
		companyID := uuid.New()
		date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		a := run.Scope{CompanyID: companyID, RunDate: date, PlatformCodes: []string{"GOFOOD", "GRABFOOD"}}
		b := run.Scope{CompanyID: companyID, RunDate: date, PlatformCodes: []string{"GRABFOOD", "GOFOOD"}}
		assert.Equal(t, a.Key(), b.Key())
	})

	t.Run("propagates a guard lookup failure", func(t *testing.T) {
		svc, m := newTestService(t)
		scope := testScope()

		m.runs.On("FindActiveByScopeKey", ctx, scope.Key()).Return(nil, errors.New("connection refused"))

		_, err := svc.StartRun(ctx, shared.RunTypeDaily, scope, "scheduler")
		require.Error(t, err)

		var recErr *shared.Error
		require.ErrorAs(t, err, &recErr)
		assert.Equal(t, shared.KindDatabase, recErr.Kind)
	})
}

func TestExecuteRun(t *testing.T) {
	ctx := context.Background()

	t.Run("drives a run through all steps to completion", func(t *testing.T) {
		svc, m := newTestService(t)
		scope := testScope()
		matched := testReport(scope.CompanyID)
		unmatched := testReport(scope.CompanyID)
		items := []*settlement.Report{matched, unmatched}
		rn := run.NewRun(shared.RunTypeDaily, scope, "scheduler", len(items))

		m.runs.On("FindByID", mock.Anything, rn.ID).Return(rn, nil)
		m.runs.On("UpdateStatus", mock.Anything, rn).Return(nil)
		m.runs.On("UpdateCurrentStep", mock.Anything, rn.ID, mock.AnythingOfType("shared.RunStep")).Return(nil)
		m.runs.On("IncrementProgress", mock.Anything, rn.ID, 1, 0, []string(nil)).Return(nil)
		m.settlements.On("GetUnfinishedSettlements", mock.Anything, scope.RunDate, scope.CompanyID, []string(nil), []uuid.UUID(nil)).
			Return(items, nil)

		m.matcher.On("ReconcileSettlement", mock.Anything, matched).
			Run(func(args mock.Arguments) { matched.MarkBankMatched() }).
			Return(&matching.MatchResult{
				SettlementID: matched.ID,
				StatementID:  uuid.New(),
				RuleName:     "exact-nett-same-day",
				Confidence:   1.0,
				AutoApproved: true,
			}, nil)
		m.matcher.On("ReconcileSettlement", mock.Anything, unmatched).Return(nil, nil)

		m.feeEngine.On("ReconcileSettlement", mock.Anything, matched).
			Run(func(args mock.Arguments) { _ = matched.MarkFeeReconciled(shared.StatusMatched) }).
			Return(&fees.Result{SettlementID: matched.ID, Status: shared.StatusMatched}, nil)

		err := svc.ExecuteRun(ctx, rn.ID)
		require.NoError(t, err)

		assert.Equal(t, shared.RunStatusCompleted, rn.Status)
		require.NotNil(t, rn.ResultSummary)
		assert.Equal(t, 1, rn.ResultSummary.MatchedCount)
		assert.Equal(t, 1, rn.ResultSummary.UnmatchedCount)
		assert.Equal(t, 1, rn.ResultSummary.FeeMatchedCount)
		assert.Equal(t, 0, rn.ResultSummary.DiscrepancyCount)
		assert.NotNil(t, rn.CompletedAt)

		m.runs.AssertNumberOfCalls(t, "UpdateCurrentStep", 3)
		m.runs.AssertNumberOfCalls(t, "IncrementProgress", 2)
		m.feeEngine.AssertNumberOfCalls(t, "ReconcileSettlement", 1)
	})

	t.Run("skips a run already in a terminal status", func(t *testing.T) {
		svc, m := newTestService(t)
		rn := run.NewRun(shared.RunTypeDaily, testScope(), "scheduler", 0)
		require.NoError(t, rn.Start())
		require.NoError(t, rn.Complete(run.ResultSummary{}))

		m.runs.On("FindByID", mock.Anything, rn.ID).Return(rn, nil)

		err := svc.ExecuteRun(ctx, rn.ID)
		require.NoError(t, err)
		m.runs.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
	})

	t.Run("marks the run failed when the scope cannot be loaded", func(t *testing.T) {
		svc, m := newTestService(t)
		scope := testScope()
		rn := run.NewRun(shared.RunTypeDaily, scope, "scheduler", 2)

		m.runs.On("FindByID", mock.Anything, rn.ID).Return(rn, nil)
		m.runs.On("UpdateStatus", mock.Anything, rn).Return(nil)
		m.settlements.On("GetUnfinishedSettlements", mock.Anything, scope.RunDate, scope.CompanyID, []string(nil), []uuid.UUID(nil)).
			Return(nil, errors.New("connection refused"))

		err := svc.ExecuteRun(ctx, rn.ID)
		require.Error(t, err)

		assert.Equal(t, shared.RunStatusFailed, rn.Status)
		assert.NotEmpty(t, rn.ErrorLog)
	})

	t.Run("an item failure is accounted without stopping the run", func(t *testing.T) {
		svc, m := newTestService(t)
		scope := testScope()
		healthy := testReport(scope.CompanyID)
		broken := testReport(scope.CompanyID)
		items := []*settlement.Report{healthy, broken}
		rn := run.NewRun(shared.RunTypeDaily, scope, "scheduler", len(items))

		m.runs.On("FindByID", mock.Anything, rn.ID).Return(rn, nil)
		m.runs.On("UpdateStatus", mock.Anything, rn).Return(nil)
		m.runs.On("UpdateCurrentStep", mock.Anything, rn.ID, mock.AnythingOfType("shared.RunStep")).Return(nil)
		m.runs.On("IncrementProgress", mock.Anything, rn.ID, 1, 0, []string(nil)).Return(nil)
		m.runs.On("IncrementProgress", mock.Anything, rn.ID, 1, 1, mock.AnythingOfType("[]string")).Return(nil)
		m.settlements.On("GetUnfinishedSettlements", mock.Anything, scope.RunDate, scope.CompanyID, []string(nil), []uuid.UUID(nil)).
			Return(items, nil)

		m.matcher.On("ReconcileSettlement", mock.Anything, healthy).Return(nil, nil)
		m.matcher.On("ReconcileSettlement", mock.Anything, broken).
			Return(nil, shared.NewMatchingEngineError("candidate load failed", broken.ID.String()))

		err := svc.ExecuteRun(ctx, rn.ID)
		require.NoError(t, err)

		assert.Equal(t, shared.RunStatusCompleted, rn.Status)
		assert.Equal(t, 1, rn.ResultSummary.DiscrepancyCount)
		assert.Equal(t, 1, rn.ResultSummary.UnmatchedCount)
		require.Len(t, rn.ErrorLog, 1)
		assert.Contains(t, rn.ErrorLog[0], shared.CodeMatchingEngine)
	})

	t.Run("a stuck item surfaces as a job timeout", func(t *testing.T) {
		m := &orchestratorMocks{
			runs:        new(MockRunRepository),
			settlements: new(MockSettlementRepository),
			matcher:     new(MockBankMatcher),
			feeEngine:   new(MockFeeReconciler),
		}
		svc := NewService(newTestLogger(), Config{PoolSize: 2, ItemTimeout: 10 * time.Millisecond},
			m.runs, m.settlements, m.matcher, m.feeEngine)

		scope := testScope()
		stuck := testReport(scope.CompanyID)
		rn := run.NewRun(shared.RunTypeDaily, scope, "scheduler", 1)

		m.runs.On("FindByID", mock.Anything, rn.ID).Return(rn, nil)
		m.runs.On("UpdateStatus", mock.Anything, rn).Return(nil)
		m.runs.On("UpdateCurrentStep", mock.Anything, rn.ID, mock.AnythingOfType("shared.RunStep")).Return(nil)
		m.runs.On("IncrementProgress", mock.Anything, rn.ID, 1, 1, mock.AnythingOfType("[]string")).Return(nil)
		m.settlements.On("GetUnfinishedSettlements", mock.Anything, scope.RunDate, scope.CompanyID, []string(nil), []uuid.UUID(nil)).
			Return([]*settlement.Report{stuck}, nil)

		m.matcher.On("ReconcileSettlement", mock.Anything, stuck).
			Run(func(args mock.Arguments) { time.Sleep(30 * time.Millisecond) }).
			Return(nil, context.DeadlineExceeded)

		err := svc.ExecuteRun(context.Background(), rn.ID)
		require.NoError(t, err)

		assert.Equal(t, shared.RunStatusCompleted, rn.Status)
		require.Len(t, rn.ErrorLog, 1)
		assert.Contains(t, rn.ErrorLog[0], shared.CodeJobTimeout)
	})

	t.Run("a shutdown mid-run fails the run instead of stranding it RUNNING", func(t *testing.T) {
		svc, m := newTestService(t)
		scope := testScope()
		rn := run.NewRun(shared.RunTypeDaily, scope, "scheduler", 1)

		m.runs.On("FindByID", mock.Anything, rn.ID).Return(rn, nil)
		m.runs.On("UpdateStatus", mock.Anything, rn).Return(nil)
		m.settlements.On("GetUnfinishedSettlements", mock.Anything, scope.RunDate, scope.CompanyID, []string(nil), []uuid.UUID(nil)).
			Return([]*settlement.Report{testReport(scope.CompanyID)}, nil)

		deadCtx, cancel := context.WithCancel(context.Background())
		cancel()

		err := svc.ExecuteRun(deadCtx, rn.ID)
		require.Error(t, err)

		assert.Equal(t, shared.RunStatusFailed, rn.Status)
		assert.NotNil(t, rn.CompletedAt)
		require.NotEmpty(t, rn.ErrorLog)
		assert.Contains(t, rn.ErrorLog[0], "interrupted")
		m.matcher.AssertNotCalled(t, "ReconcileSettlement", mock.Anything, mock.Anything)
		m.runs.AssertCalled(t, "UpdateStatus", mock.Anything, rn)
	})

	t.Run("a dispatch failure on the fee step does not advance processed items", func(t *testing.T) {
		svc, m := newTestService(t)
		scope := testScope()
		report := testReport(scope.CompanyID)
		rn := run.NewRun(shared.RunTypeDaily, scope, "scheduler", 1)
		require.NoError(t, rn.Start())

		m.runs.On("IncrementProgress", mock.Anything, rn.ID, 0, 1, mock.MatchedBy(func(errs []string) bool {
			return len(errs) == 1 && strings.Contains(errs[0], shared.CodeRunStepDispatch)
		})).Return(nil)

		pool, err := ants.NewPool(1)
		require.NoError(t, err)
		pool.Release()

		progress := newProgressTracker()
		svc.runStep(context.Background(), pool, rn, []*settlement.Report{report}, progress, shared.StepFeeReconcile, 0, svc.feeOne)

		summary, errLog := progress.snapshot()
		assert.Equal(t, 1, summary.DiscrepancyCount)
		require.Len(t, errLog, 1)
		assert.Contains(t, errLog[0], shared.CodeRunStepDispatch)
		m.runs.AssertExpectations(t)
		m.feeEngine.AssertNotCalled(t, "ReconcileSettlement", mock.Anything, mock.Anything)
	})

	t.Run("stops at the step boundary when the run was cancelled elsewhere", func(t *testing.T) {
		svc, m := newTestService(t)
		scope := testScope()
		report := testReport(scope.CompanyID)
		rn := run.NewRun(shared.RunTypeDaily, scope, "scheduler", 1)

		m.runs.On("FindByID", mock.Anything, rn.ID).Return(rn, nil)
		m.runs.On("UpdateStatus", mock.Anything, rn).Return(nil)
		m.runs.On("UpdateCurrentStep", mock.Anything, rn.ID, mock.AnythingOfType("shared.RunStep")).Return(nil)
		m.runs.On("IncrementProgress", mock.Anything, rn.ID, 1, 0, []string(nil)).Return(nil)
		m.settlements.On("GetUnfinishedSettlements", mock.Anything, scope.RunDate, scope.CompanyID, []string(nil), []uuid.UUID(nil)).
			Return([]*settlement.Report{report}, nil)

		// Another process writes CANCELLED while the match step runs
		m.matcher.On("ReconcileSettlement", mock.Anything, report).
			Run(func(args mock.Arguments) { rn.Status = shared.RunStatusCancelled }).
			Return(nil, nil)

		err := svc.ExecuteRun(ctx, rn.ID)
		require.NoError(t, err)

		assert.Equal(t, shared.RunStatusCancelled, rn.Status)
		assert.Nil(t, rn.ResultSummary)
		m.runs.AssertNumberOfCalls(t, "UpdateCurrentStep", 1)
		m.feeEngine.AssertNotCalled(t, "ReconcileSettlement", mock.Anything, mock.Anything)
	})
}

func TestCancelRun(t *testing.T) {
	ctx := context.Background()

	t.Run("cancels a running run", func(t *testing.T) {
		svc, m := newTestService(t)
		rn := run.NewRun(shared.RunTypeDaily, testScope(), "scheduler", 5)
		require.NoError(t, rn.Start())

		m.runs.On("FindByID", ctx, rn.ID).Return(rn, nil)
		m.runs.On("UpdateStatus", ctx, rn).Return(nil)

		cancelled, err := svc.CancelRun(ctx, rn.ID)
		require.NoError(t, err)

		assert.Equal(t, shared.RunStatusCancelled, cancelled.Status)
		assert.NotNil(t, cancelled.CompletedAt)
		m.runs.AssertExpectations(t)
	})

	t.Run("rejects cancelling a completed run", func(t *testing.T) {
		svc, m := newTestService(t)
		rn := run.NewRun(shared.RunTypeDaily, testScope(), "scheduler", 0)
		require.NoError(t, rn.Start())
		require.NoError(t, rn.Complete(run.ResultSummary{}))

		m.runs.On("FindByID", ctx, rn.ID).Return(rn, nil)

		_, err := svc.CancelRun(ctx, rn.ID)
		require.Error(t, err)

		var recErr *shared.Error
		require.ErrorAs(t, err, &recErr)
		assert.Equal(t, shared.CodeRunNotCancellable, recErr.Code)
		m.runs.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
	})

	t.Run("rejects cancelling an initialized run", func(t *testing.T) {
		svc, m := newTestService(t)
		rn := run.NewRun(shared.RunTypeDaily, testScope(), "scheduler", 0)

		m.runs.On("FindByID", ctx, rn.ID).Return(rn, nil)

		_, err := svc.CancelRun(ctx, rn.ID)
		require.Error(t, err)

		var recErr *shared.Error
		require.ErrorAs(t, err, &recErr)
		assert.Equal(t, shared.CodeRunNotCancellable, recErr.Code)
	})
}

func TestAbortRun(t *testing.T) {
	ctx := context.Background()

	t.Run("fails an initialized run and releases the scope", func(t *testing.T) {
		svc, m := newTestService(t)
		rn := run.NewRun(shared.RunTypeDaily, testScope(), "scheduler", 3)

		m.runs.On("FindByID", ctx, rn.ID).Return(rn, nil)
		m.runs.On("UpdateStatus", ctx, rn).Return(nil)

		err := svc.AbortRun(ctx, rn.ID, "run request publish failed")
		require.NoError(t, err)

		assert.Equal(t, shared.RunStatusFailed, rn.Status)
		assert.Contains(t, rn.ErrorLog, "run request publish failed")
	})

	t.Run("rejects aborting a terminal run", func(t *testing.T) {
		svc, m := newTestService(t)
		rn := run.NewRun(shared.RunTypeDaily, testScope(), "scheduler", 0)
		require.NoError(t, rn.Start())
		require.NoError(t, rn.Complete(run.ResultSummary{}))

		m.runs.On("FindByID", ctx, rn.ID).Return(rn, nil)

		err := svc.AbortRun(ctx, rn.ID, "too late")
		require.Error(t, err)
		m.runs.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
	})
}

func TestGetRun(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the run", func(t *testing.T) {
		svc, m := newTestService(t)
		rn := run.NewRun(shared.RunTypeDaily, testScope(), "scheduler", 3)

		m.runs.On("FindByID", ctx, rn.ID).Return(rn, nil)

		got, err := svc.GetRun(ctx, rn.ID)
		require.NoError(t, err)
		assert.Equal(t, rn.ID, got.ID)
	})

	t.Run("propagates a missing run", func(t *testing.T) {
		svc, m := newTestService(t)
		id := uuid.New()

		m.runs.On("FindByID", ctx, id).Return(nil, run.ErrRunNotFound{RunID: id})

		_, err := svc.GetRun(ctx, id)
		require.Error(t, err)
		assert.ErrorIs(t, err, run.ErrRunNotFound{})
	})
}
