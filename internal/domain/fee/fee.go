package fee

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/kulina-reconciliation/internal/domain/shared"
)

var (
	ErrNoMatchingTier    = errors.New("no tier bracket matches the base amount")
	ErrUnknownCalcMethod = errors.New("unknown calculation method")
	ErrRuleNotEffective  = errors.New("fee master is not effective for the date")
)

// Tier is one volume bracket of a TIERED fee rule. A nil UpperBound means the
// bracket is open-ended. Value is a percentage applied to the base amount.
type Tier struct {
	LowerBound int64   `json:"lower_bound"`
	UpperBound *int64  `json:"upper_bound,omitempty"`
	Value      float64 `json:"value"`
}

// Master is a configured fee policy owned by admin flows; the engine only
// reads it. CalculationValue is a percentage for PERCENTAGE rules and a fixed
// amount in minor units for FIXED rules; TIERED rules carry their brackets.
type Master struct {
	ID                uuid.UUID                `json:"id"`
	CompanyID         uuid.UUID                `json:"company_id"`
	PlatformCode      string                   `json:"platform_code"`
	BranchID          *uuid.UUID               `json:"branch_id,omitempty"`
	FeeType           shared.FeeType           `json:"fee_type"`
	FeeName           string                   `json:"fee_name"`
	CalculationMethod shared.CalculationMethod `json:"calculation_method"`
	CalculationValue  float64                  `json:"calculation_value"`
	Tiers             []Tier                   `json:"tiers,omitempty"`
	ApplyTo           shared.ApplyTo           `json:"apply_to"`
	MinAmount         *int64                   `json:"min_amount,omitempty"`
	MaxAmount         *int64                   `json:"max_amount,omitempty"`
	ExpenseAccountID  *uuid.UUID               `json:"expense_account_id,omitempty"`
	IsAutoApply       bool                     `json:"is_auto_apply"`
	EffectiveDate     time.Time                `json:"effective_date"`
	ExpiryDate        *time.Time               `json:"expiry_date,omitempty"`
	IsActive          bool                     `json:"is_active"`
}

// IsEffectiveOn reports whether the rule applies on the given transaction
// date: effective_date <= date < expiry_date (or no expiry).
func (m *Master) IsEffectiveOn(date time.Time) bool {
	if !m.IsActive {
		return false
	}
	if date.Before(m.EffectiveDate) {
		return false
	}
	return m.ExpiryDate == nil || date.Before(*m.ExpiryDate)
}

// ExpectedAmount computes the expected fee for the given base amount in minor
// units, clamped to [min_amount, max_amount] when bounds are present.
func (m *Master) ExpectedAmount(base int64) (int64, error) {
	var expected int64
	switch m.CalculationMethod {
	case shared.CalcPercentage:
		expected = roundPercent(base, m.CalculationValue)
	case shared.CalcFixed:
		expected = int64(m.CalculationValue)
	case shared.CalcTiered:
		tier, err := m.tierFor(base)
		if err != nil {
			return 0, err
		}
		expected = roundPercent(base, tier.Value)
	default:
		return 0, ErrUnknownCalcMethod
	}

	if m.MinAmount != nil && expected < *m.MinAmount {
		expected = *m.MinAmount
	}
	if m.MaxAmount != nil && expected > *m.MaxAmount {
		expected = *m.MaxAmount
	}
	return expected, nil
}

// tierFor selects the bracket whose bounds contain the base amount
func (m *Master) tierFor(base int64) (*Tier, error) {
	for i := range m.Tiers {
		t := &m.Tiers[i]
		if base < t.LowerBound {
			continue
		}
		if t.UpperBound == nil || base < *t.UpperBound {
			return t, nil
		}
	}
	return nil, ErrNoMatchingTier
}

// roundPercent applies a percentage to a minor-unit amount, rounding half
// away from zero to keep results integral.
func roundPercent(base int64, percent float64) int64 {
	return int64(math.Round(float64(base) * percent / 100.0))
}

// Applied is the outcome of evaluating one fee master against one settlement.
// Created by the fee reconciliation engine; mutated by manual review.
type Applied struct {
	ID                   uuid.UUID                   `json:"id"`
	SettlementID         uuid.UUID                   `json:"settlement_id"`
	FeeMasterID          uuid.UUID                   `json:"fee_master_id"`
	FeeType              shared.FeeType              `json:"fee_type"`
	ExpectedAmount       int64                       `json:"expected_amount"`
	ActualAmount         int64                       `json:"actual_amount"`
	DifferenceAmount     int64                       `json:"difference_amount"`
	ReconciliationStatus shared.ReconciliationStatus `json:"reconciliation_status"`
	AutoApproved         bool                        `json:"auto_approved"`
	NeedsReview          bool                        `json:"needs_review"`

	AdjustedAmount   *int64     `json:"adjusted_amount,omitempty"`
	AdjustmentReason string     `json:"adjustment_reason,omitempty"`
	AdjustedBy       string     `json:"adjusted_by,omitempty"`
	AdjustedAt       *time.Time `json:"adjusted_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewApplied builds an applied fee from one rule evaluation. The tolerance
// decision is made here so needs_review and auto_approved can never drift
// apart from the difference.
func NewApplied(settlementID uuid.UUID, master *Master, expected, actual, tolerance int64) *Applied {
	diff := expected - actual
	needsReview := abs(diff) > tolerance

	status := shared.StatusMatched
	if needsReview {
		status = shared.StatusReviewRequired
	}

	now := time.Now()
	return &Applied{
		ID:                   uuid.New(),
		SettlementID:         settlementID,
		FeeMasterID:          master.ID,
		FeeType:              master.FeeType,
		ExpectedAmount:       expected,
		ActualAmount:         actual,
		DifferenceAmount:     diff,
		ReconciliationStatus: status,
		AutoApproved:         !needsReview,
		NeedsReview:          needsReview,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// Adjust records a reviewer's corrected amount prior to approval
func (a *Applied) Adjust(amount int64, reason, actorID string) {
	now := time.Now()
	a.AdjustedAmount = &amount
	a.AdjustmentReason = reason
	a.AdjustedBy = actorID
	a.AdjustedAt = &now
	a.UpdatedAt = now
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// Calculation sums expected or actual fees per category for one settlement
type Calculation struct {
	Commission int64 `json:"commission"`
	Ads        int64 `json:"ads"`
	Other      int64 `json:"other"`
	Total      int64 `json:"total"`
}

// Add accumulates an amount into the matching category
func (c *Calculation) Add(feeType shared.FeeType, amount int64) {
	switch feeType {
	case shared.FeeTypeCommission:
		c.Commission += amount
	case shared.FeeTypeAds:
		c.Ads += amount
	default:
		c.Other += amount
	}
	c.Total += amount
}

// Differences is expected minus actual per category
type Differences struct {
	CommissionDiff int64 `json:"commission_diff"`
	AdsDiff        int64 `json:"ads_diff"`
	OtherDiff      int64 `json:"other_diff"`
	TotalDiff      int64 `json:"total_diff"`
}

// Diff computes expected - actual across categories
func Diff(expected, actual Calculation) Differences {
	return Differences{
		CommissionDiff: expected.Commission - actual.Commission,
		AdsDiff:        expected.Ads - actual.Ads,
		OtherDiff:      expected.Other - actual.Other,
		TotalDiff:      expected.Total - actual.Total,
	}
}
