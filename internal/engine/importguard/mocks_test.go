package importguard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kulina-reconciliation/internal/domain/settlement"
	"github.com/kulina-reconciliation/internal/domain/shared"
	"github.com/kulina-reconciliation/internal/domain/statement"
	"github.com/stretchr/testify/mock"
)

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

// Verify interface implementations
var (
	_ settlement.Repository = (*MockSettlementRepository)(nil)
	_ statement.Repository  = (*MockStatementRepository)(nil)
)
