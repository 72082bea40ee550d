package settlement

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kulina-reconciliation/internal/domain/shared"
)

// Common errors
var (
	ErrEmptyCompanyID   = errors.New("company id cannot be empty")
	ErrEmptyPlatform    = errors.New("platform code cannot be empty")
	ErrNegativeAmount   = errors.New("amounts cannot be negative")
	ErrMissingFileHash  = errors.New("file hash cannot be empty")
	ErrNotBankMatched   = errors.New("settlement is not bank matched")
	ErrAlreadyCompleted = errors.New("settlement is already completed")
)

// Report represents one payment-platform settlement for a company/platform/
// branch/day. Amounts are stored in minor units. A report is created by import
// and afterwards only status-transitioned, never deleted.
type Report struct {
	ID               uuid.UUID  `json:"id"`
	CompanyID        uuid.UUID  `json:"company_id"`
	PlatformCode     string     `json:"platform_code"`
	BranchID         *uuid.UUID `json:"branch_id,omitempty"`
	TransactionDate  time.Time  `json:"transaction_date"`
	ReportDate       time.Time  `json:"report_date"`
	ReleaseDate      time.Time  `json:"release_date"`
	GrossAmount      int64      `json:"gross_amount"`
	CommissionAmount int64      `json:"commission_amount"`
	AdsAmount        int64      `json:"ads_amount"`
	OtherFeesAmount  int64      `json:"other_fees_amount"`
	NettAmount       int64      `json:"nett_amount"`

	OriginalFilename string    `json:"original_filename,omitempty"`
	FileHash         string    `json:"file_hash,omitempty"`
	ImportedAt       time.Time `json:"imported_at"`
	ImportedBy       string    `json:"imported_by"`

	BankReconStatus shared.ReconciliationStatus `json:"bank_recon_status"`
	FeeReconStatus  shared.ReconciliationStatus `json:"fee_recon_status"`
	OverallStatus   shared.ReconciliationStatus `json:"overall_status"`

	BankMatchedAt   *time.Time `json:"bank_matched_at,omitempty"`
	FeeReconciledAt *time.Time `json:"fee_reconciled_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// NewReport creates a pending settlement report from imported file data
func NewReport(companyID uuid.UUID, platformCode string, branchID *uuid.UUID, transactionDate, reportDate, releaseDate time.Time, gross, commission, ads, otherFees, nett int64, filename, fileHash, importedBy string) (*Report, error) {
	if companyID == uuid.Nil {
		return nil, ErrEmptyCompanyID
	}
	if platformCode == "" {
		return nil, ErrEmptyPlatform
	}
	if gross < 0 || commission < 0 || ads < 0 || otherFees < 0 {
		return nil, ErrNegativeAmount
	}
	if fileHash == "" {
		return nil, ErrMissingFileHash
	}

	return &Report{
		ID:               uuid.New(),
		CompanyID:        companyID,
		PlatformCode:     platformCode,
		BranchID:         branchID,
		TransactionDate:  transactionDate,
		ReportDate:       reportDate,
		ReleaseDate:      releaseDate,
		GrossAmount:      gross,
		CommissionAmount: commission,
		AdsAmount:        ads,
		OtherFeesAmount:  otherFees,
		NettAmount:       nett,
		OriginalFilename: filename,
		FileHash:         fileHash,
		ImportedAt:       time.Now(),
		ImportedBy:       importedBy,
		BankReconStatus:  shared.StatusPending,
		FeeReconStatus:   shared.StatusPending,
		OverallStatus:    shared.StatusPending,
	}, nil
}

// MarkBankMatched records a successful bank match and rolls up overall status
func (r *Report) MarkBankMatched() {
	now := time.Now()
	r.BankReconStatus = shared.StatusMatched
	r.BankMatchedAt = &now
	r.RefreshOverallStatus()
}

// MarkBankReviewRequired flags the bank match for manual review
func (r *Report) MarkBankReviewRequired() {
	r.BankReconStatus = shared.StatusReviewRequired
	r.RefreshOverallStatus()
}

// MarkBankApproved records a reviewer confirming the proposed bank match
func (r *Report) MarkBankApproved() {
	now := time.Now()
	r.BankReconStatus = shared.StatusApproved
	r.BankMatchedAt = &now
	r.RefreshOverallStatus()
}

// MarkBankRejected records a reviewer rejecting the proposed bank match
func (r *Report) MarkBankRejected() {
	r.BankReconStatus = shared.StatusRejected
	r.RefreshOverallStatus()
}

// MarkBankUnmatched reopens the bank axis after its statement was released
func (r *Report) MarkBankUnmatched() {
	r.BankReconStatus = shared.StatusPending
	r.BankMatchedAt = nil
	r.RefreshOverallStatus()
}

// MarkFeeReconciled records the fee reconciliation outcome and rolls up
// overall status. Requires bank matching to have succeeded first.
func (r *Report) MarkFeeReconciled(status shared.ReconciliationStatus) error {
	if !r.BankReconStatus.IsTerminalSuccess() {
		return ErrNotBankMatched
	}
	now := time.Now()
	r.FeeReconStatus = status
	r.FeeReconciledAt = &now
	r.RefreshOverallStatus()
	return nil
}

// RefreshOverallStatus recomputes overall_status from the two sub-process
// axes: COMPLETED only when both are terminal successes, otherwise the worst
// non-success status propagates up.
func (r *Report) RefreshOverallStatus() {
	switch {
	case r.BankReconStatus.IsTerminalSuccess() && r.FeeReconStatus.IsTerminalSuccess():
		r.OverallStatus = shared.StatusCompleted
		if r.CompletedAt == nil {
			now := time.Now()
			r.CompletedAt = &now
		}
	case r.BankReconStatus == shared.StatusDiscrepancy || r.FeeReconStatus == shared.StatusDiscrepancy:
		r.OverallStatus = shared.StatusDiscrepancy
	case r.BankReconStatus == shared.StatusReviewRequired || r.FeeReconStatus == shared.StatusReviewRequired:
		r.OverallStatus = shared.StatusReviewRequired
	case r.BankReconStatus == shared.StatusRejected || r.FeeReconStatus == shared.StatusRejected:
		r.OverallStatus = shared.StatusRejected
	default:
		r.OverallStatus = shared.StatusPending
	}
}

// ActualFeeFor returns the fee amount the platform actually charged for the
// given fee category, read from the settlement's own columns.
func (r *Report) ActualFeeFor(feeType shared.FeeType) int64 {
	switch feeType {
	case shared.FeeTypeCommission:
		return r.CommissionAmount
	case shared.FeeTypeAds:
		return r.AdsAmount
	default:
		return r.OtherFeesAmount
	}
}

// BaseAmountFor returns the settlement amount a fee rule applies against.
// AFTER_TAX falls back to nett until tax lines are modeled separately.
func (r *Report) BaseAmountFor(applyTo shared.ApplyTo) int64 {
	switch applyTo {
	case shared.ApplyToGross:
		return r.GrossAmount
	case shared.ApplyToNett, shared.ApplyToAfterTax:
		return r.NettAmount
	default:
		return r.GrossAmount
	}
}
