package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/kulina-reconciliation/internal/domain/fee"
	"github.com/kulina-reconciliation/internal/domain/settlement"
	"github.com/kulina-reconciliation/internal/domain/shared"
	"github.com/kulina-reconciliation/internal/domain/statement"
)

// ReportServiceImpl implements the ReportService interface
type ReportServiceImpl struct {
	settlements settlement.Repository
	statements  statement.Repository
	fees        fee.Repository
	logger      *slog.Logger
}

// NewReportService creates a new report service
func NewReportService(logger *slog.Logger, settlements settlement.Repository, statements statement.Repository, fees fee.Repository) ReportService {
	return &ReportServiceImpl{
		settlements: settlements,
		statements:  statements,
		fees:        fees,
		logger:      logger,
	}
}

// GetSummary aggregates settlement counts and nett amounts per overall status
func (s *ReportServiceImpl) GetSummary(ctx context.Context, companyID uuid.UUID, date time.Time) (*ReconciliationSummary, error) {
	counts, err := s.settlements.CountByStatus(ctx, companyID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate settlement statuses: %w", err)
	}

	summary := &ReconciliationSummary{
		CompanyID: companyID,
		Date:      date,
		ByStatus:  counts,
	}
	for _, c := range counts {
		summary.TotalCount += c.Count
		summary.TotalAmount += c.Amount
	}
	return summary, nil
}

// GetFeeReport aggregates expected versus actual fees per category. An
// adjusted amount replaces the computed expectation in the totals.
func (s *ReportServiceImpl) GetFeeReport(ctx context.Context, companyID uuid.UUID, date time.Time) (*FeeReport, error) {
	applied, err := s.fees.GetAppliedByCompanyAndDate(ctx, companyID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load applied fees for report: %w", err)
	}

	report := &FeeReport{
		CompanyID:    companyID,
		Date:         date,
		AppliedCount: len(applied),
	}
	for _, a := range applied {
		expected := a.ExpectedAmount
		if a.AdjustedAmount != nil {
			expected = *a.AdjustedAmount
			report.AdjustedCount++
		}
		report.Expected.Add(a.FeeType, expected)
		report.Actual.Add(a.FeeType, a.ActualAmount)
		if a.AutoApproved {
			report.AutoApprovedCount++
		}
		if a.NeedsReview {
			report.NeedsReviewCount++
		}
	}
	report.Differences = fee.Diff(report.Expected, report.Actual)
	return report, nil
}

// GetDiscrepancies returns settlements needing attention for the date
func (s *ReportServiceImpl) GetDiscrepancies(ctx context.Context, companyID uuid.UUID, date time.Time) ([]*settlement.Report, error) {
	reports, err := s.settlements.GetUnfinishedSettlements(ctx, date, companyID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load settlements for discrepancy report: %w", err)
	}

	var out []*settlement.Report
	for _, r := range reports {
		switch r.OverallStatus {
		case shared.StatusReviewRequired, shared.StatusDiscrepancy, shared.StatusRejected:
			out = append(out, r)
		}
	}
	return out, nil
}

// GetUnreconciledStatements returns unclaimed statement lines in the range
func (s *ReportServiceImpl) GetUnreconciledStatements(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]*statement.Statement, error) {
	return s.statements.GetUnreconciledStatements(ctx, from, to, companyID)
}

// ExportUnreconciledCSV renders the unreconciled statements as CSV. Columns
// mirror the statement import format so an export can round-trip.
func (s *ReportServiceImpl) ExportUnreconciledCSV(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]byte, error) {
	stmts, err := s.statements.GetUnreconciledStatements(ctx, from, to, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load statements for export: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"statement_date", "transaction_date", "description", "reference_number", "debit_amount", "credit_amount", "balance"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write export header: %w", err)
	}
	for _, st := range stmts {
		record := []string{
			st.StatementDate.Format("2006-01-02"),
			st.TransactionDate.Format("2006-01-02"),
			st.Description,
			st.ReferenceNumber,
			strconv.FormatInt(st.DebitAmount, 10),
			strconv.FormatInt(st.CreditAmount, 10),
			strconv.FormatInt(st.Balance, 10),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write export row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush export: %w", err)
	}

	s.logger.Info("Unreconciled statements exported",
		"company_id", companyID.String(),
		"rows", len(stmts),
	)
	return buf.Bytes(), nil
}
