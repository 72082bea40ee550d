package handler

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kulina-reconciliation/internal/api/middleware"
	"github.com/kulina-reconciliation/internal/api/service"
	"github.com/kulina-reconciliation/internal/domain/run"
	"github.com/kulina-reconciliation/internal/domain/shared"
)

// RunHandler handles reconciliation run endpoints
type RunHandler struct {
	runService service.RunService
	logger     *slog.Logger
}

// NewRunHandler creates a new run handler
func NewRunHandler(logger *slog.Logger, runService service.RunService) *RunHandler {
	return &RunHandler{
		runService: runService,
		logger:     logger,
	}
}

// Start creates a reconciliation run for a company scope and queues it for
// the processor. Responds 202 since the work is asynchronous.
func (h *RunHandler) Start(c *gin.Context) {
	var req StartRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	companyID, err := uuid.Parse(req.CompanyID)
	if err != nil {
		RespondBadRequest(c, "Invalid company_id")
		return
	}
	runDate, err := time.Parse(dateLayout, req.RunDate)
	if err != nil {
		RespondBadRequest(c, "Invalid run_date, expected YYYY-MM-DD")
		return
	}

	runType := shared.RunTypeAdhoc
	if req.RunType != "" {
		runType = shared.RunType(req.RunType)
	}

	scope := run.Scope{
		CompanyID:     companyID,
		RunDate:       runDate,
		PlatformCodes: req.PlatformCodes,
	}
	for _, raw := range req.BranchIDs {
		branchID, err := uuid.Parse(raw)
		if err != nil {
			RespondBadRequest(c, "Invalid branch id: "+raw)
			return
		}
		scope.BranchIDs = append(scope.BranchIDs, branchID)
	}

	rn, err := h.runService.StartRun(
		c.Request.Context(), runType, scope,
		middleware.GetActorID(c), middleware.GetCorrelationID(c),
	)
	if err != nil {
		h.logger.Error("Failed to start reconciliation run",
			"company_id", companyID.String(), "error", err)
		RespondDomainError(c, err)
		return
	}

	RespondAccepted(c, mapRunToResponse(rn))
}

// Get returns a run with its live progress counters
func (h *RunHandler) Get(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid run ID format")
		return
	}

	rn, err := h.runService.GetRun(c.Request.Context(), runID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, mapRunToResponse(rn))
}

// Cancel requests cooperative cancellation of a RUNNING run
func (h *RunHandler) Cancel(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid run ID format")
		return
	}

	rn, err := h.runService.CancelRun(c.Request.Context(), runID)
	if err != nil {
		h.logger.Warn("Run cancellation rejected", "run_id", runID.String(), "error", err)
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, mapRunToResponse(rn))
}
