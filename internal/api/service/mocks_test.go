package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kulina-reconciliation/internal/domain/fee"
	"github.com/kulina-reconciliation/internal/domain/run"
	"github.com/kulina-reconciliation/internal/domain/settlement"
	"github.com/kulina-reconciliation/internal/domain/shared"
	"github.com/kulina-reconciliation/internal/domain/statement"
	"github.com/kulina-reconciliation/internal/platform/messaging/producers"
	"github.com/stretchr/testify/mock"
)

type MockRunOrchestrator struct {
	mock.Mock
}

func (m *MockRunOrchestrator) StartRun(ctx context.Context, runType shared.RunType, scope run.Scope, initiatedBy string) (*run.Run, error) {
	args := m.Called(ctx, runType, scope, initiatedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*run.Run), args.Error(1)
}

func (m *MockRunOrchestrator) AbortRun(ctx context.Context, runID uuid.UUID, cause string) error {
	args := m.Called(ctx, runID, cause)
	return args.Error(0)
}

func (m *MockRunOrchestrator) CancelRun(ctx context.Context, runID uuid.UUID) (*run.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*run.Run), args.Error(1)
}

func (m *MockRunOrchestrator) GetRun(ctx context.Context, runID uuid.UUID) (*run.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*run.Run), args.Error(1)
}

type MockMessagePublisher struct {
	mock.Mock
}

func (m *MockMessagePublisher) Publish(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockMessagePublisher) Close() error {
	args := m.Called()
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

type MockStatementRepository struct {
	mock.Mock
}

func (m *MockStatementRepository) Create(ctx context.Context, stmt *statement.Statement) error {
	args := m.Called(ctx, stmt)
	return args.Error(0)
}

func (m *MockStatementRepository) FindByID(ctx context.Context, id uuid.UUID) (*statement.Statement, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*statement.Statement), args.Error(1)
}

func (m *MockStatementRepository) FindByFileHash(ctx context.Context, companyID, bankAccountID uuid.UUID, fileHash string) (*statement.Statement, error) {
	args := m.Called(ctx, companyID, bankAccountID, fileHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*statement.Statement), args.Error(1)
}

func (m *MockStatementRepository) GetUnreconciledStatements(ctx context.Context, from, to time.Time, companyID uuid.UUID) ([]*statement.Statement, error) {
	args := m.Called(ctx, from, to, companyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*statement.Statement), args.Error(1)
}

func (m *MockStatementRepository) Claim(ctx context.Context, id, settlementID uuid.UUID, matchedBy string) error {
	args := m.Called(ctx, id, settlementID, matchedBy)
	return args.Error(0)
}

func (m *MockStatementRepository) Release(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStatementRepository) UpdateReconciliationStatus(ctx context.Context, id uuid.UUID, status shared.ReconciliationStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

type MockFeeRepository struct {
	mock.Mock
}

func (m *MockFeeRepository) GetActiveFeeMasters(ctx context.Context, companyID uuid.UUID, platformCode string, branchID *uuid.UUID, date time.Time) ([]*fee.Master, error) {
	args := m.Called(ctx, companyID, platformCode, branchID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*fee.Master), args.Error(1)
}

func (m *MockFeeRepository) CreateApplied(ctx context.Context, applied *fee.Applied) error {
	args := m.Called(ctx, applied)
	return args.Error(0)
}

func (m *MockFeeRepository) UpdateApplied(ctx context.Context, applied *fee.Applied) error {
	args := m.Called(ctx, applied)
	return args.Error(0)
}

func (m *MockFeeRepository) GetAppliedByID(ctx context.Context, id uuid.UUID) (*fee.Applied, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fee.Applied), args.Error(1)
}

func (m *MockFeeRepository) GetAppliedBySettlement(ctx context.Context, settlementID uuid.UUID) ([]*fee.Applied, error) {
	args := m.Called(ctx, settlementID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*fee.Applied), args.Error(1)
}

func (m *MockFeeRepository) GetAppliedByCompanyAndDate(ctx context.Context, companyID uuid.UUID, date time.Time) ([]*fee.Applied, error) {
	args := m.Called(ctx, companyID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*fee.Applied), args.Error(1)
}

func (m *MockFeeRepository) GetPendingReview(ctx context.Context, companyID uuid.UUID) ([]*fee.Applied, error) {
	args := m.Called(ctx, companyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*fee.Applied), args.Error(1)
}

// Verify interface implementations
var (
	_ RunOrchestrator            = (*MockRunOrchestrator)(nil)
	_ producers.MessagePublisher = (*MockMessagePublisher)(nil)
	_ settlement.Repository      = (*MockSettlementRepository)(nil)
	_ statement.Repository       = (*MockStatementRepository)(nil)
	_ fee.Repository             = (*MockFeeRepository)(nil)
)
