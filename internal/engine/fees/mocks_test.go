package fees

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kulina-reconciliation/internal/domain/fee"
	"github.com/kulina-reconciliation/internal/domain/settlement"
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
	_ settlement.Repository = (*MockSettlementRepository)(nil)
	_ fee.Repository        = (*MockFeeRepository)(nil)
)
