package handler

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kulina-reconciliation/internal/api/middleware"
	"github.com/kulina-reconciliation/internal/api/service"
)

// ReviewHandler handles manual review decisions over match and fee items
type ReviewHandler struct {
	reviewService service.ReviewService
	feeService    service.FeeAdjustmentService
	logger        *slog.Logger
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(logger *slog.Logger, reviewService service.ReviewService, feeService service.FeeAdjustmentService) *ReviewHandler {
	return &ReviewHandler{
		reviewService: reviewService,
		feeService:    feeService,
		logger:        logger,
	}
}

// GetPending returns the review queue for a company and date
func (h *ReviewHandler) GetPending(c *gin.Context) {
	companyID, date, ok := companyDateQuery(c)
	if !ok {
		return
	}

	queue, err := h.reviewService.GetPending(c.Request.Context(), companyID, date)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	resp := ReviewQueueResponse{
		MatchItems: make([]SettlementResponse, 0, len(queue.MatchItems)),
		FeeItems:   make([]AppliedFeeResponse, 0, len(queue.FeeItems)),
	}
	for _, r := range queue.MatchItems {
		resp.MatchItems = append(resp.MatchItems, mapSettlementToResponse(r))
	}
	for _, a := range queue.FeeItems {
		resp.FeeItems = append(resp.FeeItems, mapAppliedFeeToResponse(a))
	}
	RespondOK(c, resp)
}

// ApproveMatch confirms the proposed statement for a settlement under review
func (h *ReviewHandler) ApproveMatch(c *gin.Context) {
	settlementID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid settlement ID format")
		return
	}

	var req ApproveMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	statementID, err := uuid.Parse(req.StatementID)
	if err != nil {
		RespondBadRequest(c, "Invalid statement_id")
		return
	}

	report, err := h.reviewService.ApproveMatch(
		c.Request.Context(), settlementID, statementID, middleware.GetActorID(c),
	)
	if err != nil {
		h.logger.Warn("Match approval rejected",
			"settlement_id", settlementID.String(), "error", err)
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, mapSettlementToResponse(report))
}

// RejectMatch rejects a settlement's proposed match with a mandatory reason
func (h *ReviewHandler) RejectMatch(c *gin.Context) {
	settlementID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid settlement ID format")
		return
	}

	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	report, err := h.reviewService.RejectMatch(
		c.Request.Context(), settlementID, middleware.GetActorID(c), req.Reason,
	)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, mapSettlementToResponse(report))
}

// ApproveFee accepts an applied fee that the engine flagged for review
func (h *ReviewHandler) ApproveFee(c *gin.Context) {
	appliedID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid applied fee ID format")
		return
	}

	applied, err := h.reviewService.ApproveFee(
		c.Request.Context(), appliedID, middleware.GetActorID(c),
	)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, mapAppliedFeeToResponse(applied))
}

// RejectFee rejects a flagged applied fee with a mandatory reason
func (h *ReviewHandler) RejectFee(c *gin.Context) {
	appliedID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid applied fee ID format")
		return
	}

	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	applied, err := h.reviewService.RejectFee(
		c.Request.Context(), appliedID, middleware.GetActorID(c), req.Reason,
	)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, mapAppliedFeeToResponse(applied))
}

// AdjustFee records a reviewer's correction of an applied fee amount
func (h *ReviewHandler) AdjustFee(c *gin.Context) {
	appliedID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid applied fee ID format")
		return
	}

	var req AdjustFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	applied, err := h.feeService.AdjustApplied(
		c.Request.Context(), appliedID, req.Amount, req.Reason, middleware.GetActorID(c),
	)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, mapAppliedFeeToResponse(applied))
}

// ManualMatch binds a settlement to a statement by reviewer decision
func (h *ReviewHandler) ManualMatch(c *gin.Context) {
	var req ManualMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	settlementID, err := uuid.Parse(req.SettlementID)
	if err != nil {
		RespondBadRequest(c, "Invalid settlement_id")
		return
	}
	statementID, err := uuid.Parse(req.StatementID)
	if err != nil {
		RespondBadRequest(c, "Invalid statement_id")
		return
	}

	report, err := h.reviewService.ManualMatch(
		c.Request.Context(), settlementID, statementID, middleware.GetActorID(c),
	)
	if err != nil {
		h.logger.Warn("Manual match rejected",
			"settlement_id", settlementID.String(), "error", err)
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, mapSettlementToResponse(report))
}

// UnmatchStatement releases a claimed statement back to the candidate pool
func (h *ReviewHandler) UnmatchStatement(c *gin.Context) {
	statementID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid statement ID format")
		return
	}

	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	stmt, err := h.reviewService.UnmatchStatement(
		c.Request.Context(), statementID, middleware.GetActorID(c), req.Reason,
	)
	if err != nil {
		h.logger.Warn("Statement unmatch rejected",
			"statement_id", statementID.String(), "error", err)
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, mapStatementToResponse(stmt))
}

// GetHistory returns the review audit trail for a company and date
func (h *ReviewHandler) GetHistory(c *gin.Context) {
	companyID, date, ok := companyDateQuery(c)
	if !ok {
		return
	}

	entries, err := h.reviewService.GetHistory(c.Request.Context(), companyID, date)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	responses := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		responses = append(responses, mapAuditEntryToResponse(e))
	}
	RespondOK(c, responses)
}

// companyDateQuery parses the company_id and date query parameters shared by
// the queue and reporting endpoints.
func companyDateQuery(c *gin.Context) (uuid.UUID, time.Time, bool) {
	companyID, err := uuid.Parse(c.Query("company_id"))
	if err != nil {
		RespondBadRequest(c, "A valid company_id query parameter is required")
		return uuid.Nil, time.Time{}, false
	}
	date, err := time.Parse(dateLayout, c.Query("date"))
	if err != nil {
		RespondBadRequest(c, "A valid date query parameter is required (YYYY-MM-DD)")
		return uuid.Nil, time.Time{}, false
	}
	return companyID, date, true
}
