// Package fees reconciles the fees a platform actually charged on a
// settlement against the amounts its configured fee rules predict. One
// applied-fee row is written per evaluated rule; the tolerance decision on
// each row drives whether the settlement's fee axis auto-approves or routes
// to manual review.
package fees

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/kulina-reconciliation/internal/domain/fee"
	"github.com/kulina-reconciliation/internal/domain/settlement"
	"github.com/kulina-reconciliation/internal/domain/shared"
)

// Result aggregates one fee reconciliation pass over a settlement
type Result struct {
	SettlementID uuid.UUID                   `json:"settlement_id"`
	Expected     fee.Calculation             `json:"expected"`
	Actual       fee.Calculation             `json:"actual"`
	Differences  fee.Differences             `json:"differences"`
	Applied      []*fee.Applied              `json:"applied"`
	Status       shared.ReconciliationStatus `json:"status"`
}

// Engine evaluates fee masters against bank-matched settlements
type Engine struct {
	logger      *slog.Logger
	settlements settlement.Repository
	fees        fee.Repository
	tolerance   int64
}

// NewEngine creates a fee reconciliation engine. Tolerance is the maximum
// acceptable expected-vs-actual difference in minor units.
func NewEngine(logger *slog.Logger, settlements settlement.Repository, fees fee.Repository, tolerance int64) *Engine {
	return &Engine{
		logger:      logger,
		settlements: settlements,
		fees:        fees,
		tolerance:   tolerance,
	}
}

// ReconcileSettlement evaluates every auto-apply fee rule effective on the
// settlement's transaction date. It requires the bank axis to have succeeded
// first; fee numbers against an unmatched settlement would compare against an
// unverified payout.
func (e *Engine) ReconcileSettlement(ctx context.Context, report *settlement.Report) (*Result, error) {
	if !report.BankReconStatus.IsTerminalSuccess() {
		return nil, shared.NewValidationError("bank_recon_status",
			fmt.Sprintf("settlement %s must be bank-matched before fee reconciliation", report.ID))
	}

	masters, err := e.fees.GetActiveFeeMasters(ctx, report.CompanyID, report.PlatformCode, report.BranchID, report.TransactionDate)
	if err != nil {
		return nil, shared.NewDatabaseError("load fee masters", err)
	}

	result := &Result{SettlementID: report.ID}
	needsReview := false

	byType := make(map[shared.FeeType][]*fee.Master)
	var typeOrder []shared.FeeType
	for _, master := range masters {
		if !master.IsAutoApply {
			e.logger.Debug("Skipping manual-apply fee master",
				"fee_master_id", master.ID.String(),
				"fee_name", master.FeeName)
			continue
		}
		if !master.IsEffectiveOn(report.TransactionDate) {
			continue
		}
		if len(byType[master.FeeType]) == 0 {
			typeOrder = append(typeOrder, master.FeeType)
		}
		byType[master.FeeType] = append(byType[master.FeeType], master)
	}

	// The settlement carries one actual column per fee type. Rules sharing a
	// type split that column: every row but the last takes its own expected
	// amount as actual, the last row absorbs the remainder, so the rows always
	// sum to the column and any discrepancy lands on exactly one row.
	for _, feeType := range typeOrder {
		group := byType[feeType]
		actualTotal := report.ActualFeeFor(feeType)
		result.Actual.Add(feeType, actualTotal)

		expectedAmounts := make([]int64, len(group))
		var expectedSum int64
		for i, master := range group {
			base := report.BaseAmountFor(master.ApplyTo)
			expected, err := master.ExpectedAmount(base)
			if err != nil {
				return nil, shared.NewFeeCalculationError(err.Error(), report.ID.String(), master.FeeType).WithCause(err)
			}
			expectedAmounts[i] = expected
			expectedSum += expected
		}

		for i, master := range group {
			actual := expectedAmounts[i]
			if i == len(group)-1 {
				actual = actualTotal - (expectedSum - expectedAmounts[i])
			}

			applied := fee.NewApplied(report.ID, master, expectedAmounts[i], actual, e.tolerance)
			if err := e.fees.CreateApplied(ctx, applied); err != nil {
				return nil, fmt.Errorf("failed to store applied fee: %w", err)
			}

			result.Applied = append(result.Applied, applied)
			result.Expected.Add(master.FeeType, expectedAmounts[i])
			if applied.NeedsReview {
				needsReview = true
			}
		}
	}

	result.Differences = fee.Diff(result.Expected, result.Actual)

	result.Status = shared.StatusMatched
	if needsReview {
		result.Status = shared.StatusReviewRequired
	}

	if err := report.MarkFeeReconciled(result.Status); err != nil {
		return nil, shared.NewValidationError("fee_recon_status", err.Error())
	}
	if err := e.settlements.UpdateReconciliationStatus(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to persist fee-reconciled settlement: %w", err)
	}

	e.logger.Info("Settlement fee-reconciled",
		"settlement_id", report.ID.String(),
		"status", string(result.Status),
		"rules_applied", len(result.Applied),
		"total_diff", result.Differences.TotalDiff)

	return result, nil
}

// AdjustApplied records a reviewer's corrected amount on an applied fee.
// Adjustment is only meaningful while the row still awaits review.
func (e *Engine) AdjustApplied(ctx context.Context, appliedID uuid.UUID, amount int64, reason, actorID string) (*fee.Applied, error) {
	if reason == "" {
		return nil, shared.NewValidationError("reason", "adjustment reason is required")
	}

	applied, err := e.fees.GetAppliedByID(ctx, appliedID)
	if err != nil {
		return nil, err
	}
	if applied.ReconciliationStatus != shared.StatusReviewRequired {
		return nil, shared.NewInvalidStatusError(appliedID.String(), applied.ReconciliationStatus, shared.StatusReviewRequired)
	}

	applied.Adjust(amount, reason, actorID)
	if err := e.fees.UpdateApplied(ctx, applied); err != nil {
		return nil, fmt.Errorf("failed to store fee adjustment: %w", err)
	}

	e.logger.Info("Applied fee adjusted",
		"applied_id", appliedID.String(),
		"amount", amount,
		"actor_id", actorID)

	return applied, nil
}
