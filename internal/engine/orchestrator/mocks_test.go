package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kulina-reconciliation/internal/domain/run"
	"github.com/kulina-reconciliation/internal/domain/settlement"
	"github.com/kulina-reconciliation/internal/domain/shared"
	"github.com/kulina-reconciliation/internal/engine/fees"
	"github.com/kulina-reconciliation/internal/engine/matching"
	"github.com/stretchr/testify/mock"
)

type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) Create(ctx context.Context, r *run.Run) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*run.Run, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*run.Run), args.Error(1)
}

func (m *MockRunRepository) FindActiveByScopeKey(ctx context.Context, scopeKey string) (*run.Run, error) {
	args := m.Called(ctx, scopeKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*run.Run), args.Error(1)
}

func (m *MockRunRepository) IncrementProgress(ctx context.Context, id uuid.UUID, processedDelta, failedDelta int, itemErrors []string) error {
	args := m.Called(ctx, id, processedDelta, failedDelta, itemErrors)
	return args.Error(0)
}

func (m *MockRunRepository) UpdateCurrentStep(ctx context.Context, id uuid.UUID, step shared.RunStep) error {
	args := m.Called(ctx, id, step)
	return args.Error(0)
}

func (m *MockRunRepository) UpdateStatus(ctx context.Context, r *run.Run) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

type MockSettlementRepository struct {
	mock.Mock
}

func (m *MockSettlementRepository) Create(ctx context.Context, report *settlement.Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockSettlementRepository) FindByID(ctx context.Context, id uuid.UUID) (*settlement.Report, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.Report), args.Error(1)
}

func (m *MockSettlementRepository) FindByFileHash(ctx context.Context, companyID uuid.UUID, platformCode, fileHash string) (*settlement.Report, error) {
	args := m.Called(ctx, companyID, platformCode, fileHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.Report), args.Error(1)
}

func (m *MockSettlementRepository) GetUnfinishedSettlements(ctx context.Context, date time.Time, companyID uuid.UUID, platformCodes []string, branchIDs []uuid.UUID) ([]*settlement.Report, error) {
	args := m.Called(ctx, date, companyID, platformCodes, branchIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*settlement.Report), args.Error(1)
}

func (m *MockSettlementRepository) UpdateReconciliationStatus(ctx context.Context, report *settlement.Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockSettlementRepository) CountByStatus(ctx context.Context, companyID uuid.UUID, date time.Time) ([]settlement.StatusCount, error) {
	args := m.Called(ctx, companyID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]settlement.StatusCount), args.Error(1)
}

type MockBankMatcher struct {
	mock.Mock
}

func (m *MockBankMatcher) ReconcileSettlement(ctx context.Context, report *settlement.Report) (*matching.MatchResult, error) {
	args := m.Called(ctx, report)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*matching.MatchResult), args.Error(1)
}

type MockFeeReconciler struct {
	mock.Mock
}

func (m *MockFeeReconciler) ReconcileSettlement(ctx context.Context, report *settlement.Report) (*fees.Result, error) {
	args := m.Called(ctx, report)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fees.Result), args.Error(1)
}

// Verify interface implementations
var (
	_ run.Repository        = (*MockRunRepository)(nil)
	_ settlement.Repository = (*MockSettlementRepository)(nil)
	_ BankMatcher           = (*MockBankMatcher)(nil)
	_ FeeReconciler         = (*MockFeeReconciler)(nil)
)
