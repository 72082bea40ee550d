// Package review implements the manual-review state machine for items the
// automated engines could not settle. Transitions are driven by a closed
// table validated at construction; every executed transition appends one
// audit entry.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kulina-reconciliation/internal/domain/fee"
	"github.com/kulina-reconciliation/internal/domain/review"
	"github.com/kulina-reconciliation/internal/domain/settlement"
	"github.com/kulina-reconciliation/internal/domain/shared"
	"github.com/kulina-reconciliation/internal/domain/statement"
)

// transitionTable is the closed review state machine: only items awaiting
// review move, and only to a reviewer decision.
var transitionTable = map[shared.ReconciliationStatus][]shared.ReconciliationStatus{
	shared.StatusReviewRequired: {shared.StatusApproved, shared.StatusRejected},
}

// validateTransitions rejects a malformed table before the service can serve
// a single request.
func validateTransitions() error {
	terminal := map[shared.ReconciliationStatus]bool{
		shared.StatusApproved: true,
		shared.StatusRejected: true,
	}
	for from, targets := range transitionTable {
		if terminal[from] {
			return fmt.Errorf("review transition table: terminal status %s must not have outgoing transitions", from)
		}
		if len(targets) == 0 {
			return fmt.Errorf("review transition table: status %s has no targets", from)
		}
		for _, to := range targets {
			if !terminal[to] {
				return fmt.Errorf("review transition table: %s -> %s targets a non-terminal status", from, to)
			}
		}
	}
	return nil
}

// canTransition reports whether from -> to is an allowed review transition
func canTransition(from, to shared.ReconciliationStatus) bool {
	for _, t := range transitionTable[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Queue is the pending-review projection for one company and date
type Queue struct {
	MatchItems []*settlement.Report `json:"match_items"`
	FeeItems   []*fee.Applied       `json:"fee_items"`
}

// Service executes reviewer decisions over match and fee items
type Service struct {
	logger      *slog.Logger
	settlements settlement.Repository
	statements  statement.Repository
	fees        fee.Repository
	audit       review.AuditRepository
}

// NewService creates the review service, failing fast on a broken transition
// table.
func NewService(
	logger *slog.Logger,
	settlements settlement.Repository,
	statements statement.Repository,
	fees fee.Repository,
	audit review.AuditRepository,
) (*Service, error) {
	if err := validateTransitions(); err != nil {
		return nil, err
	}
	return &Service{
		logger:      logger,
		settlements: settlements,
		statements:  statements,
		fees:        fees,
		audit:       audit,
	}, nil
}

// requireActor rejects decisions arriving without an actor identity
func requireActor(actorID, action string) error {
	if actorID == "" {
		return shared.NewPermissionError("anonymous", action)
	}
	return nil
}

// ApproveMatch confirms a proposed settlement-to-statement match. The
// reviewer names the statement explicitly; the claim is the same conditional
// write the engine uses, so a statement consumed in the meantime surfaces as
// an error rather than a double bind. Approving an already-approved
// settlement is a no-op.
func (s *Service) ApproveMatch(ctx context.Context, settlementID, statementID uuid.UUID, actorID string) (*settlement.Report, error) {
	if err := requireActor(actorID, "approve match"); err != nil {
		return nil, err
	}

	report, err := s.settlements.FindByID(ctx, settlementID)
	if err != nil {
		return nil, shared.NewReviewNotFoundError(shared.ReviewItemMatch, settlementID.String()).WithCause(err)
	}

	if report.BankReconStatus == shared.StatusApproved || report.BankReconStatus == shared.StatusMatched {
		return report, nil
	}
	if !canTransition(report.BankReconStatus, shared.StatusApproved) {
		return nil, shared.NewInvalidStatusError(settlementID.String(), report.BankReconStatus, shared.StatusApproved)
	}

	if err := s.statements.Claim(ctx, statementID, report.ID, "manual:"+actorID); err != nil {
		return nil, fmt.Errorf("failed to claim statement for approved match: %w", err)
	}

	from := report.BankReconStatus
	report.MarkBankApproved()
	if err := s.settlements.UpdateReconciliationStatus(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to persist approved match: %w", err)
	}

	s.appendAudit(ctx, report.CompanyID, shared.ReviewItemMatch, settlementID, from, shared.StatusApproved, actorID, "")
	return report, nil
}

// ManualMatch binds a settlement to a statement by reviewer decision, without
// a prior engine proposal. Allowed while the bank axis is still open (PENDING
// or REVIEW_REQUIRED); the claim keeps the single-binding guarantee.
func (s *Service) ManualMatch(ctx context.Context, settlementID, statementID uuid.UUID, actorID string) (*settlement.Report, error) {
	if err := requireActor(actorID, "manual match"); err != nil {
		return nil, err
	}

	report, err := s.settlements.FindByID(ctx, settlementID)
	if err != nil {
		return nil, shared.NewReviewNotFoundError(shared.ReviewItemMatch, settlementID.String()).WithCause(err)
	}

	if report.BankReconStatus != shared.StatusPending && report.BankReconStatus != shared.StatusReviewRequired {
		return nil, shared.NewInvalidStatusError(settlementID.String(), report.BankReconStatus, shared.StatusApproved)
	}

	if err := s.statements.Claim(ctx, statementID, report.ID, "manual:"+actorID); err != nil {
		return nil, fmt.Errorf("failed to claim statement for manual match: %w", err)
	}

	from := report.BankReconStatus
	report.MarkBankApproved()
	if err := s.settlements.UpdateReconciliationStatus(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to persist manual match: %w", err)
	}

	s.appendAudit(ctx, report.CompanyID, shared.ReviewItemMatch, settlementID, from, shared.StatusApproved, actorID, "manual match to statement "+statementID.String())
	return report, nil
}

// RejectMatch declines a proposed match. Reason is mandatory. A statement
// already bound to the settlement stays bound; releasing it back to the
// candidate pool is the reviewer's separate UnmatchStatement decision.
func (s *Service) RejectMatch(ctx context.Context, settlementID uuid.UUID, actorID, reason string) (*settlement.Report, error) {
	if err := requireActor(actorID, "reject match"); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, shared.NewValidationError("reason", "a rejection reason is required")
	}

	report, err := s.settlements.FindByID(ctx, settlementID)
	if err != nil {
		return nil, shared.NewReviewNotFoundError(shared.ReviewItemMatch, settlementID.String()).WithCause(err)
	}

	if report.BankReconStatus == shared.StatusRejected {
		return report, nil
	}
	if !canTransition(report.BankReconStatus, shared.StatusRejected) {
		return nil, shared.NewInvalidStatusError(settlementID.String(), report.BankReconStatus, shared.StatusRejected)
	}

	from := report.BankReconStatus
	report.MarkBankRejected()
	if err := s.settlements.UpdateReconciliationStatus(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to persist rejected match: %w", err)
	}

	s.appendAudit(ctx, report.CompanyID, shared.ReviewItemMatch, settlementID, from, shared.StatusRejected, actorID, reason)
	return report, nil
}

// ApproveFee settles one applied fee in the platform's favor. Approving an
// already-approved fee is a no-op; approving a rejected fee is illegal. When
// the last review-required fee of the settlement is decided, the settlement's
// fee axis resolves too.
func (s *Service) ApproveFee(ctx context.Context, appliedID uuid.UUID, actorID string) (*fee.Applied, error) {
	if err := requireActor(actorID, "approve fee"); err != nil {
		return nil, err
	}

	applied, err := s.fees.GetAppliedByID(ctx, appliedID)
	if err != nil {
		return nil, shared.NewReviewNotFoundError(shared.ReviewItemFee, appliedID.String()).WithCause(err)
	}

	if applied.ReconciliationStatus == shared.StatusApproved {
		return applied, nil
	}
	if !canTransition(applied.ReconciliationStatus, shared.StatusApproved) {
		return nil, shared.NewInvalidStatusError(appliedID.String(), applied.ReconciliationStatus, shared.StatusApproved)
	}

	from := applied.ReconciliationStatus
	applied.ReconciliationStatus = shared.StatusApproved
	applied.NeedsReview = false
	applied.UpdatedAt = time.Now()
	if err := s.fees.UpdateApplied(ctx, applied); err != nil {
		return nil, fmt.Errorf("failed to persist approved fee: %w", err)
	}

	report, err := s.settlements.FindByID(ctx, applied.SettlementID)
	if err != nil {
		return nil, fmt.Errorf("failed to load settlement for approved fee: %w", err)
	}
	if err := s.resolveFeeAxis(ctx, report); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, report.CompanyID, shared.ReviewItemFee, appliedID, from, shared.StatusApproved, actorID, "")
	return applied, nil
}

// RejectFee settles one applied fee against the platform. Reason is
// mandatory; the settlement's fee axis turns REJECTED immediately.
func (s *Service) RejectFee(ctx context.Context, appliedID uuid.UUID, actorID, reason string) (*fee.Applied, error) {
	if err := requireActor(actorID, "reject fee"); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, shared.NewValidationError("reason", "a rejection reason is required")
	}

	applied, err := s.fees.GetAppliedByID(ctx, appliedID)
	if err != nil {
		return nil, shared.NewReviewNotFoundError(shared.ReviewItemFee, appliedID.String()).WithCause(err)
	}

	if applied.ReconciliationStatus == shared.StatusRejected {
		return applied, nil
	}
	if !canTransition(applied.ReconciliationStatus, shared.StatusRejected) {
		return nil, shared.NewInvalidStatusError(appliedID.String(), applied.ReconciliationStatus, shared.StatusRejected)
	}

	from := applied.ReconciliationStatus
	applied.ReconciliationStatus = shared.StatusRejected
	applied.NeedsReview = false
	applied.UpdatedAt = time.Now()
	if err := s.fees.UpdateApplied(ctx, applied); err != nil {
		return nil, fmt.Errorf("failed to persist rejected fee: %w", err)
	}

	report, err := s.settlements.FindByID(ctx, applied.SettlementID)
	if err != nil {
		return nil, fmt.Errorf("failed to load settlement for rejected fee: %w", err)
	}
	if mErr := report.MarkFeeReconciled(shared.StatusRejected); mErr == nil {
		if err := s.settlements.UpdateReconciliationStatus(ctx, report); err != nil {
			return nil, fmt.Errorf("failed to persist settlement after fee rejection: %w", err)
		}
	}

	s.appendAudit(ctx, report.CompanyID, shared.ReviewItemFee, appliedID, from, shared.StatusRejected, actorID, reason)
	return applied, nil
}

// UnmatchStatement releases a claimed statement back to the candidate pool
// and reopens the bound settlement's bank axis. The reviewer names the
// statement explicitly; reason is mandatory.
func (s *Service) UnmatchStatement(ctx context.Context, statementID uuid.UUID, actorID, reason string) (*statement.Statement, error) {
	if err := requireActor(actorID, "unmatch statement"); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, shared.NewValidationError("reason", "an unmatch reason is required")
	}

	stmt, err := s.statements.FindByID(ctx, statementID)
	if err != nil {
		return nil, shared.NewReviewNotFoundError(shared.ReviewItemMatch, statementID.String()).WithCause(err)
	}
	if !stmt.IsClaimed() {
		return nil, shared.NewValidationError("statement_id",
			fmt.Sprintf("statement %s is not bound to a settlement", statementID))
	}

	report, err := s.settlements.FindByID(ctx, *stmt.SettlementID)
	if err != nil {
		return nil, fmt.Errorf("failed to load settlement for unmatch: %w", err)
	}

	if err := s.statements.Release(ctx, statementID); err != nil {
		return nil, fmt.Errorf("failed to release statement: %w", err)
	}

	from := report.BankReconStatus
	report.MarkBankUnmatched()
	if err := s.settlements.UpdateReconciliationStatus(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to persist unmatched settlement: %w", err)
	}

	s.appendAudit(ctx, report.CompanyID, shared.ReviewItemMatch, report.ID, from, shared.StatusPending, actorID,
		"released statement "+statementID.String()+": "+reason)

	stmt.SettlementID = nil
	stmt.ReconciliationStatus = shared.StatusPending
	stmt.MatchedAt = nil
	stmt.MatchedBy = ""
	return stmt, nil
}

// GetPending returns the review queue for the company and date
func (s *Service) GetPending(ctx context.Context, companyID uuid.UUID, date time.Time) (*Queue, error) {
	reports, err := s.settlements.GetUnfinishedSettlements(ctx, date, companyID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load settlements for review queue: %w", err)
	}

	queue := &Queue{}
	for _, r := range reports {
		if r.BankReconStatus == shared.StatusReviewRequired {
			queue.MatchItems = append(queue.MatchItems, r)
		}
	}

	queue.FeeItems, err = s.fees.GetPendingReview(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load fees for review queue: %w", err)
	}

	return queue, nil
}

// GetHistory returns the company's audit trail for the given day
func (s *Service) GetHistory(ctx context.Context, companyID uuid.UUID, date time.Time) ([]*review.AuditEntry, error) {
	return s.audit.GetHistory(ctx, companyID, date)
}

// resolveFeeAxis marks the settlement's fee axis APPROVED once none of its
// applied fees still await review.
func (s *Service) resolveFeeAxis(ctx context.Context, report *settlement.Report) error {
	applied, err := s.fees.GetAppliedBySettlement(ctx, report.ID)
	if err != nil {
		return fmt.Errorf("failed to load applied fees for settlement: %w", err)
	}
	for _, a := range applied {
		if a.ReconciliationStatus == shared.StatusReviewRequired {
			return nil
		}
	}

	if mErr := report.MarkFeeReconciled(shared.StatusApproved); mErr != nil {
		return nil
	}
	if err := s.settlements.UpdateReconciliationStatus(ctx, report); err != nil {
		return fmt.Errorf("failed to persist settlement after fee approval: %w", err)
	}
	return nil
}

// appendAudit writes the trail entry for an executed transition. Audit
// failures are logged, not propagated; the decision itself already happened.
func (s *Service) appendAudit(ctx context.Context, companyID uuid.UUID, itemType shared.ReviewItemType, itemID uuid.UUID, from, to shared.ReconciliationStatus, actorID, reason string) {
	entry := review.NewAuditEntry(companyID, itemType, itemID, from, to, actorID, reason)
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Error("Failed to append review audit entry",
			"item_type", string(itemType),
			"item_id", itemID.String(),
			"error", err)
		return
	}
	s.logger.Info("Review transition recorded",
		"item_type", string(itemType),
		"item_id", itemID.String(),
		"from", string(from),
		"to", string(to),
		"actor_id", actorID)
}
