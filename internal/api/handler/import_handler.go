package handler

import (
	"io"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kulina-reconciliation/internal/api/middleware"
	"github.com/kulina-reconciliation/internal/api/service"
	"github.com/kulina-reconciliation/internal/domain/shared"
)

// ImportHandler handles settlement and bank statement file uploads
type ImportHandler struct {
	importService  service.ImportService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(logger *slog.Logger, importService service.ImportService, maxUploadBytes int64) *ImportHandler {
	return &ImportHandler{
		importService:  importService,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// UploadSettlement ingests one platform settlement CSV from a multipart form
func (h *ImportHandler) UploadSettlement(c *gin.Context) {
	companyID, ok := h.formUUID(c, "company_id")
	if !ok {
		return
	}
	platformCode := c.PostForm("platform_code")
	if platformCode == "" {
		RespondBadRequest(c, "platform_code is required")
		return
	}

	var branchID *uuid.UUID
	if raw := c.PostForm("branch_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			RespondBadRequest(c, "Invalid branch_id")
			return
		}
		branchID = &parsed
	}

	filename, content, ok := h.readUpload(c)
	if !ok {
		return
	}

	report, err := h.importService.ImportSettlementFile(
		c.Request.Context(), companyID, platformCode, branchID,
		filename, content, middleware.GetActorID(c),
	)
	if err != nil {
		h.logger.Error("Settlement upload failed", "filename", filename, "error", err)
		RespondDomainError(c, err)
		return
	}

	RespondCreated(c, mapSettlementToResponse(report))
}

// UploadStatement ingests one bank statement CSV from a multipart form
func (h *ImportHandler) UploadStatement(c *gin.Context) {
	companyID, ok := h.formUUID(c, "company_id")
	if !ok {
		return
	}
	bankAccountID, ok := h.formUUID(c, "bank_account_id")
	if !ok {
		return
	}

	source := shared.SourceManual
	switch raw := c.PostForm("source"); raw {
	case "", string(shared.SourceManual):
	case string(shared.SourceAPI):
		source = shared.SourceAPI
	case string(shared.SourceEmail):
		source = shared.SourceEmail
	case string(shared.SourceAutoImport):
		source = shared.SourceAutoImport
	default:
		RespondBadRequest(c, "Invalid source")
		return
	}

	filename, content, ok := h.readUpload(c)
	if !ok {
		return
	}

	stmts, err := h.importService.ImportStatementFile(
		c.Request.Context(), companyID, bankAccountID,
		filename, content, source,
	)
	if err != nil {
		h.logger.Error("Statement upload failed", "filename", filename, "error", err)
		RespondDomainError(c, err)
		return
	}

	responses := make([]StatementResponse, 0, len(stmts))
	for _, st := range stmts {
		responses = append(responses, mapStatementToResponse(st))
	}
	RespondCreated(c, gin.H{"imported": len(responses), "statements": responses})
}

// readUpload pulls the "file" part out of the multipart form, enforcing the
// configured size cap before a byte is parsed.
func (h *ImportHandler) readUpload(c *gin.Context) (string, []byte, bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondBadRequest(c, "A file upload is required")
		return "", nil, false
	}
	if fileHeader.Size > h.maxUploadBytes {
		h.logger.Warn("Upload rejected for size",
			"filename", fileHeader.Filename,
			"size", fileHeader.Size,
			"limit", h.maxUploadBytes)
		RespondPayloadTooLarge(c, "Uploaded file exceeds the size limit")
		return "", nil, false
	}

	f, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open upload", "filename", fileHeader.Filename, "error", err)
		RespondInternalError(c)
		return "", nil, false
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		h.logger.Error("Failed to read upload", "filename", fileHeader.Filename, "error", err)
		RespondInternalError(c)
		return "", nil, false
	}
	if int64(len(content)) > h.maxUploadBytes {
		RespondPayloadTooLarge(c, "Uploaded file exceeds the size limit")
		return "", nil, false
	}

	return fileHeader.Filename, content, true
}

func (h *ImportHandler) formUUID(c *gin.Context, field string) (uuid.UUID, bool) {
	raw := c.PostForm(field)
	if raw == "" {
		RespondBadRequest(c, field+" is required")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		RespondBadRequest(c, "Invalid "+field)
		return uuid.Nil, false
	}
	return id, true
}
