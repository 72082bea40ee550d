package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kulina-reconciliation/internal/api/service"
)

// ReportHandler handles reconciliation reporting endpoints
type ReportHandler struct {
	reportService service.ReportService
	logger        *slog.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(logger *slog.Logger, reportService service.ReportService) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		logger:        logger,
	}
}

// GetSummary returns per-status settlement counts and amounts for a date
func (h *ReportHandler) GetSummary(c *gin.Context) {
	companyID, date, ok := companyDateQuery(c)
	if !ok {
		return
	}

	summary, err := h.reportService.GetSummary(c.Request.Context(), companyID, date)
	if err != nil {
		h.logger.Error("Failed to build reconciliation summary",
			"company_id", companyID.String(), "error", err)
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, summary)
}

// GetFeeReport returns expected versus actual fee totals for a date
func (h *ReportHandler) GetFeeReport(c *gin.Context) {
	companyID, date, ok := companyDateQuery(c)
	if !ok {
		return
	}

	report, err := h.reportService.GetFeeReport(c.Request.Context(), companyID, date)
	if err != nil {
		h.logger.Error("Failed to build fee report",
			"company_id", companyID.String(), "error", err)
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, report)
}

// GetDiscrepancies returns settlements needing attention for a date
func (h *ReportHandler) GetDiscrepancies(c *gin.Context) {
	companyID, date, ok := companyDateQuery(c)
	if !ok {
		return
	}

	reports, err := h.reportService.GetDiscrepancies(c.Request.Context(), companyID, date)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	responses := make([]SettlementResponse, 0, len(reports))
	for _, r := range reports {
		responses = append(responses, mapSettlementToResponse(r))
	}
	RespondOK(c, responses)
}

// GetUnreconciledStatements returns unclaimed statement lines in a date range
func (h *ReportHandler) GetUnreconciledStatements(c *gin.Context) {
	companyID, from, to, ok := companyRangeQuery(c)
	if !ok {
		return
	}

	stmts, err := h.reportService.GetUnreconciledStatements(c.Request.Context(), companyID, from, to)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	responses := make([]StatementResponse, 0, len(stmts))
	for _, st := range stmts {
		responses = append(responses, mapStatementToResponse(st))
	}
	RespondOK(c, responses)
}

// ExportUnreconciled streams the unreconciled statements as a CSV download
func (h *ReportHandler) ExportUnreconciled(c *gin.Context) {
	companyID, from, to, ok := companyRangeQuery(c)
	if !ok {
		return
	}

	data, err := h.reportService.ExportUnreconciledCSV(c.Request.Context(), companyID, from, to)
	if err != nil {
		h.logger.Error("Failed to export unreconciled statements",
			"company_id", companyID.String(), "error", err)
		RespondDomainError(c, err)
		return
	}

	filename := "unreconciled_" + from.Format(dateLayout) + "_" + to.Format(dateLayout) + ".csv"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv", data)
}

// companyRangeQuery parses the company_id, from and to query parameters used
// by the statement range endpoints.
func companyRangeQuery(c *gin.Context) (uuid.UUID, time.Time, time.Time, bool) {
	companyID, err := uuid.Parse(c.Query("company_id"))
	if err != nil {
		RespondBadRequest(c, "A valid company_id query parameter is required")
		return uuid.Nil, time.Time{}, time.Time{}, false
	}
	from, err := time.Parse(dateLayout, c.Query("from"))
	if err != nil {
		RespondBadRequest(c, "A valid from query parameter is required (YYYY-MM-DD)")
		return uuid.Nil, time.Time{}, time.Time{}, false
	}
	to, err := time.Parse(dateLayout, c.Query("to"))
	if err != nil {
		RespondBadRequest(c, "A valid to query parameter is required (YYYY-MM-DD)")
		return uuid.Nil, time.Time{}, time.Time{}, false
	}
	if to.Before(from) {
		RespondBadRequest(c, "to must not be before from")
		return uuid.Nil, time.Time{}, time.Time{}, false
	}
	return companyID, from, to, true
}
