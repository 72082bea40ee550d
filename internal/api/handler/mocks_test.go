package handler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kulina-reconciliation/internal/api/service"
	"github.com/kulina-reconciliation/internal/domain/fee"
	"github.com/kulina-reconciliation/internal/domain/review"
	"github.com/kulina-reconciliation/internal/domain/run"
	"github.com/kulina-reconciliation/internal/domain/settlement"
	"github.com/kulina-reconciliation/internal/domain/shared"
	"github.com/kulina-reconciliation/internal/domain/statement"
	reviewengine "github.com/kulina-reconciliation/internal/engine/review"
	"github.com/stretchr/testify/mock"
)

type MockImportService struct {
	mock.Mock
}

func (m *MockImportService) ImportSettlementFile(ctx context.Context, companyID uuid.UUID, platformCode string, branchID *uuid.UUID, filename string, content []byte, importedBy string) (*settlement.Report, error) {
	args := m.Called(ctx, companyID, platformCode, branchID, filename, content, importedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.Report), args.Error(1)
}

func (m *MockImportService) ImportStatementFile(ctx context.Context, companyID, bankAccountID uuid.UUID, filename string, content []byte, source shared.StatementSource) ([]*statement.Statement, error) {
	args := m.Called(ctx, companyID, bankAccountID, filename, content, source)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*statement.Statement), args.Error(1)
}

type MockRunService struct {
	mock.Mock
}

func (m *MockRunService) StartRun(ctx context.Context, runType shared.RunType, scope run.Scope, initiatedBy, correlationID string) (*run.Run, error) {
	args := m.Called(ctx, runType, scope, initiatedBy, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*run.Run), args.Error(1)
}

func (m *MockRunService) GetRun(ctx context.Context, runID uuid.UUID) (*run.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*run.Run), args.Error(1)
}

func (m *MockRunService) CancelRun(ctx context.Context, runID uuid.UUID) (*run.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*run.Run), args.Error(1)
}

type MockReviewService struct {
	mock.Mock
}

func (m *MockReviewService) ApproveMatch(ctx context.Context, settlementID, statementID uuid.UUID, actorID string) (*settlement.Report, error) {
	args := m.Called(ctx, settlementID, statementID, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.Report), args.Error(1)
}

func (m *MockReviewService) RejectMatch(ctx context.Context, settlementID uuid.UUID, actorID, reason string) (*settlement.Report, error) {
	args := m.Called(ctx, settlementID, actorID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.Report), args.Error(1)
}

func (m *MockReviewService) ApproveFee(ctx context.Context, appliedID uuid.UUID, actorID string) (*fee.Applied, error) {
	args := m.Called(ctx, appliedID, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fee.Applied), args.Error(1)
}

func (m *MockReviewService) RejectFee(ctx context.Context, appliedID uuid.UUID, actorID, reason string) (*fee.Applied, error) {
	args := m.Called(ctx, appliedID, actorID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fee.Applied), args.Error(1)
}

func (m *MockReviewService) ManualMatch(ctx context.Context, settlementID, statementID uuid.UUID, actorID string) (*settlement.Report, error) {
	args := m.Called(ctx, settlementID, statementID, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.Report), args.Error(1)
}

func (m *MockReviewService) UnmatchStatement(ctx context.Context, statementID uuid.UUID, actorID, reason string) (*statement.Statement, error) {
	args := m.Called(ctx, statementID, actorID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*statement.Statement), args.Error(1)
}

func (m *MockReviewService) GetPending(ctx context.Context, companyID uuid.UUID, date time.Time) (*reviewengine.Queue, error) {
	args := m.Called(ctx, companyID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reviewengine.Queue), args.Error(1)
}

func (m *MockReviewService) GetHistory(ctx context.Context, companyID uuid.UUID, date time.Time) ([]*review.AuditEntry, error) {
	args := m.Called(ctx, companyID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*review.AuditEntry), args.Error(1)
}

type MockFeeAdjustmentService struct {
	mock.Mock
}

func (m *MockFeeAdjustmentService) AdjustApplied(ctx context.Context, appliedID uuid.UUID, amount int64, reason, actorID string) (*fee.Applied, error) {
	args := m.Called(ctx, appliedID, amount, reason, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fee.Applied), args.Error(1)
}

type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) GetSummary(ctx context.Context, companyID uuid.UUID, date time.Time) (*service.ReconciliationSummary, error) {
	args := m.Called(ctx, companyID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ReconciliationSummary), args.Error(1)
}

func (m *MockReportService) GetFeeReport(ctx context.Context, companyID uuid.UUID, date time.Time) (*service.FeeReport, error) {
	args := m.Called(ctx, companyID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.FeeReport), args.Error(1)
}

func (m *MockReportService) GetDiscrepancies(ctx context.Context, companyID uuid.UUID, date time.Time) ([]*settlement.Report, error) {
	args := m.Called(ctx, companyID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*settlement.Report), args.Error(1)
}

func (m *MockReportService) GetUnreconciledStatements(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]*statement.Statement, error) {
	args := m.Called(ctx, companyID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*statement.Statement), args.Error(1)
}

func (m *MockReportService) ExportUnreconciledCSV(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]byte, error) {
	args := m.Called(ctx, companyID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// Verify interface implementations
var (
	_ service.ImportService        = (*MockImportService)(nil)
	_ service.RunService           = (*MockRunService)(nil)
	_ service.ReviewService        = (*MockReviewService)(nil)
	_ service.FeeAdjustmentService = (*MockFeeAdjustmentService)(nil)
	_ service.ReportService        = (*MockReportService)(nil)
)
