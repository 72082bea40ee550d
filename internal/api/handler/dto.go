package handler

import (
	"time"

	"github.com/kulina-reconciliation/internal/domain/fee"
	"github.com/kulina-reconciliation/internal/domain/review"
	"github.com/kulina-reconciliation/internal/domain/run"
	"github.com/kulina-reconciliation/internal/domain/settlement"
	"github.com/kulina-reconciliation/internal/domain/statement"
)

const dateLayout = "2006-01-02"

// StartRunRequest represents a request to start a reconciliation run
type StartRunRequest struct {
	CompanyID     string   `json:"company_id" binding:"required,uuid"`
	RunDate       string   `json:"run_date" binding:"required"`
	RunType       string   `json:"run_type" binding:"omitempty,oneof=DAILY ADHOC MONTHLY QUARTERLY"`
	PlatformCodes []string `json:"platform_codes,omitempty"`
	BranchIDs     []string `json:"branch_ids,omitempty" binding:"omitempty,dive,uuid"`
}

// ApproveMatchRequest names the statement a reviewer confirms for a settlement
type ApproveMatchRequest struct {
	StatementID string `json:"statement_id" binding:"required,uuid"`
}

// RejectRequest carries the mandatory reason for a rejection
type RejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// AdjustFeeRequest represents a reviewer's correction of an applied fee amount
type AdjustFeeRequest struct {
	Amount int64  `json:"amount" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

// ManualMatchRequest binds a settlement to a statement by reviewer decision
type ManualMatchRequest struct {
	SettlementID string `json:"settlement_id" binding:"required,uuid"`
	StatementID  string `json:"statement_id" binding:"required,uuid"`
}

// SettlementResponse represents a settlement report in API responses
type SettlementResponse struct {
	ID               string `json:"id"`
	CompanyID        string `json:"company_id"`
	PlatformCode     string `json:"platform_code"`
	BranchID         string `json:"branch_id,omitempty"`
	TransactionDate  string `json:"transaction_date"`
	ReleaseDate      string `json:"release_date"`
	GrossAmount      int64  `json:"gross_amount"`
	CommissionAmount int64  `json:"commission_amount"`
	AdsAmount        int64  `json:"ads_amount"`
	OtherFeesAmount  int64  `json:"other_fees_amount"`
	NettAmount       int64  `json:"nett_amount"`
	BankReconStatus  string `json:"bank_recon_status"`
	FeeReconStatus   string `json:"fee_recon_status"`
	OverallStatus    string `json:"overall_status"`
	ImportedAt       string `json:"imported_at"`
	CompletedAt      string `json:"completed_at,omitempty"`
}

// StatementResponse represents a bank statement line in API responses
type StatementResponse struct {
	ID                   string `json:"id"`
	CompanyID            string `json:"company_id"`
	BankAccountID        string `json:"bank_account_id"`
	StatementDate        string `json:"statement_date"`
	TransactionDate      string `json:"transaction_date"`
	Description          string `json:"description"`
	ReferenceNumber      string `json:"reference_number,omitempty"`
	DebitAmount          int64  `json:"debit_amount"`
	CreditAmount         int64  `json:"credit_amount"`
	Balance              int64  `json:"balance"`
	SettlementID         string `json:"settlement_id,omitempty"`
	ReconciliationStatus string `json:"reconciliation_status"`
	MatchedBy            string `json:"matched_by,omitempty"`
}

// AppliedFeeResponse represents an applied fee in API responses
type AppliedFeeResponse struct {
	ID                   string `json:"id"`
	SettlementID         string `json:"settlement_id"`
	FeeMasterID          string `json:"fee_master_id"`
	FeeType              string `json:"fee_type"`
	ExpectedAmount       int64  `json:"expected_amount"`
	ActualAmount         int64  `json:"actual_amount"`
	DifferenceAmount     int64  `json:"difference_amount"`
	ReconciliationStatus string `json:"reconciliation_status"`
	NeedsReview          bool   `json:"needs_review"`
	AdjustedAmount       *int64 `json:"adjusted_amount,omitempty"`
	AdjustmentReason     string `json:"adjustment_reason,omitempty"`
}

// RunResponse represents a reconciliation run in API responses
type RunResponse struct {
	ID             string             `json:"id"`
	CompanyID      string             `json:"company_id"`
	RunType        string             `json:"run_type"`
	Status         string             `json:"status"`
	CurrentStep    string             `json:"current_step,omitempty"`
	TotalItems     int                `json:"total_items"`
	ProcessedItems int                `json:"processed_items"`
	FailedItems    int                `json:"failed_items"`
	ResultSummary  *run.ResultSummary `json:"result_summary,omitempty"`
	ErrorLog       []string           `json:"error_log,omitempty"`
	StartedAt      string             `json:"started_at"`
	CompletedAt    string             `json:"completed_at,omitempty"`
}

// ReviewQueueResponse represents the pending review queue
type ReviewQueueResponse struct {
	MatchItems []SettlementResponse `json:"match_items"`
	FeeItems   []AppliedFeeResponse `json:"fee_items"`
}

// AuditEntryResponse represents one review audit entry in API responses
type AuditEntryResponse struct {
	ID         string `json:"id"`
	ItemType   string `json:"item_type"`
	ItemID     string `json:"item_id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	ActorID    string `json:"actor_id"`
	Reason     string `json:"reason,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func mapSettlementToResponse(r *settlement.Report) SettlementResponse {
	resp := SettlementResponse{
		ID:               r.ID.String(),
		CompanyID:        r.CompanyID.String(),
		PlatformCode:     r.PlatformCode,
		TransactionDate:  r.TransactionDate.Format(dateLayout),
		ReleaseDate:      r.ReleaseDate.Format(dateLayout),
		GrossAmount:      r.GrossAmount,
		CommissionAmount: r.CommissionAmount,
		AdsAmount:        r.AdsAmount,
		OtherFeesAmount:  r.OtherFeesAmount,
		NettAmount:       r.NettAmount,
		BankReconStatus:  string(r.BankReconStatus),
		FeeReconStatus:   string(r.FeeReconStatus),
		OverallStatus:    string(r.OverallStatus),
		ImportedAt:       r.ImportedAt.Format(time.RFC3339),
	}
	if r.BranchID != nil {
		resp.BranchID = r.BranchID.String()
	}
	if r.CompletedAt != nil {
		resp.CompletedAt = r.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

func mapStatementToResponse(s *statement.Statement) StatementResponse {
	resp := StatementResponse{
		ID:                   s.ID.String(),
		CompanyID:            s.CompanyID.String(),
		BankAccountID:        s.BankAccountID.String(),
		StatementDate:        s.StatementDate.Format(dateLayout),
		TransactionDate:      s.TransactionDate.Format(dateLayout),
		Description:          s.Description,
		ReferenceNumber:      s.ReferenceNumber,
		DebitAmount:          s.DebitAmount,
		CreditAmount:         s.CreditAmount,
		Balance:              s.Balance,
		ReconciliationStatus: string(s.ReconciliationStatus),
		MatchedBy:            s.MatchedBy,
	}
	if s.SettlementID != nil {
		resp.SettlementID = s.SettlementID.String()
	}
	return resp
}

func mapAppliedFeeToResponse(a *fee.Applied) AppliedFeeResponse {
	return AppliedFeeResponse{
		ID:                   a.ID.String(),
		SettlementID:         a.SettlementID.String(),
		FeeMasterID:          a.FeeMasterID.String(),
		FeeType:              string(a.FeeType),
		ExpectedAmount:       a.ExpectedAmount,
		ActualAmount:         a.ActualAmount,
		DifferenceAmount:     a.DifferenceAmount,
		ReconciliationStatus: string(a.ReconciliationStatus),
		NeedsReview:          a.NeedsReview,
		AdjustedAmount:       a.AdjustedAmount,
		AdjustmentReason:     a.AdjustmentReason,
	}
}

func mapRunToResponse(r *run.Run) RunResponse {
	resp := RunResponse{
		ID:             r.ID.String(),
		CompanyID:      r.CompanyID.String(),
		RunType:        string(r.RunType),
		Status:         string(r.Status),
		CurrentStep:    string(r.CurrentStep),
		TotalItems:     r.TotalItems,
		ProcessedItems: r.ProcessedItems,
		FailedItems:    r.FailedItems,
		ResultSummary:  r.ResultSummary,
		ErrorLog:       r.ErrorLog,
		StartedAt:      r.StartedAt.Format(time.RFC3339),
	}
	if r.CompletedAt != nil {
		resp.CompletedAt = r.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

func mapAuditEntryToResponse(e *review.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:         e.ID.String(),
		ItemType:   string(e.ItemType),
		ItemID:     e.ItemID.String(),
		FromStatus: string(e.FromStatus),
		ToStatus:   string(e.ToStatus),
		ActorID:    e.ActorID,
		Reason:     e.Reason,
		CreatedAt:  e.CreatedAt.Format(time.RFC3339),
	}
}
