package shared

import (
	"fmt"
	"net/http"
)

// ErrorKind is the closed set of reconciliation error categories. Every error
// surfaced by the engine carries exactly one kind; callers dispatch on it
// instead of on concrete types.
type ErrorKind string

const (
	KindImport          ErrorKind = "IMPORT"
	KindProcessing      ErrorKind = "PROCESSING"
	KindReview          ErrorKind = "REVIEW"
	KindPermission      ErrorKind = "PERMISSION"
	KindValidation      ErrorKind = "VALIDATION"
	KindDatabase        ErrorKind = "DATABASE"
	KindExternalService ErrorKind = "EXTERNAL_SERVICE"
	KindFileProcessing  ErrorKind = "FILE_PROCESSING"
	KindJob             ErrorKind = "JOB"
	KindNotification    ErrorKind = "NOTIFICATION"
)

// Error is the single structured error value used across the engine.
// Code is machine-stable; Message is for humans; Details carries structured
// context so consumers never have to parse the message string.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches another *Error on Kind, and on Code when the target specifies one.
// A target with an empty Code matches any error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Code == "" || e.Code == t.Code
}

// WithCause attaches an underlying error for wrapping chains
func (e *Error) WithCause(cause error) *Error {
	clone := *e
	clone.cause = cause
	return &clone
}

// HTTPStatus maps the error kind to the stable HTTP status contract:
// import/validation/review errors are client faults, permission is forbidden,
// external services are bad gateways, everything else is a server fault.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindImport, KindValidation, KindReview, KindFileProcessing:
		return http.StatusBadRequest
	case KindPermission:
		return http.StatusForbidden
	case KindExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Stable error codes
const (
	CodeDuplicateImport      = "DUPLICATE_IMPORT"
	CodeInvalidFormat        = "INVALID_FILE_FORMAT"
	CodeBankAccountNotFound  = "BANK_ACCOUNT_NOT_FOUND"
	CodeMatchingEngine       = "MATCHING_ENGINE_ERROR"
	CodeFeeCalculation       = "FEE_CALCULATION_ERROR"
	CodeReviewNotFound       = "REVIEW_NOT_FOUND"
	CodeUnauthorizedReview   = "UNAUTHORIZED_REVIEW_ACTION"
	CodePermissionDenied     = "PERMISSION_DENIED"
	CodeInvalidStatus        = "INVALID_RECONCILIATION_STATUS"
	CodeInvalidField         = "INVALID_FIELD"
	CodeDatabase             = "DATABASE_ERROR"
	CodeExternalService      = "EXTERNAL_SERVICE_ERROR"
	CodeFileTooLarge         = "FILE_TOO_LARGE"
	CodeUnsupportedFileType  = "UNSUPPORTED_FILE_TYPE"
	CodeJobTimeout           = "JOB_TIMEOUT"
	CodeRunStepDispatch      = "RUN_STEP_DISPATCH_ERROR"
	CodeNotificationDelivery = "NOTIFICATION_DELIVERY_ERROR"
	CodeRunAlreadyActive     = "RUN_ALREADY_ACTIVE"
	CodeRunNotCancellable    = "RUN_NOT_CANCELLABLE"
)

// NewDuplicateImportError signals a file whose content hash was already ingested
func NewDuplicateImportError(filename, hash string) *Error {
	return &Error{
		Kind:    KindImport,
		Code:    CodeDuplicateImport,
		Message: fmt.Sprintf("file %s has already been imported", filename),
		Details: map[string]any{"filename": filename, "hash": hash},
	}
}

// NewInvalidFormatError signals a file that could not be parsed into rows
func NewInvalidFormatError(filename, reason string) *Error {
	return &Error{
		Kind:    KindFileProcessing,
		Code:    CodeInvalidFormat,
		Message: fmt.Sprintf("file %s has an invalid format", filename),
		Details: map[string]any{"filename": filename, "reason": reason},
	}
}

// NewBankAccountNotFoundError signals a statement upload against an unknown account
func NewBankAccountNotFoundError(bankAccountID string) *Error {
	return &Error{
		Kind:    KindImport,
		Code:    CodeBankAccountNotFound,
		Message: fmt.Sprintf("bank account %s not found", bankAccountID),
		Details: map[string]any{"bank_account_id": bankAccountID},
	}
}

// NewMatchingEngineError wraps a failure while matching one settlement
func NewMatchingEngineError(message, settlementID string) *Error {
	return &Error{
		Kind:    KindProcessing,
		Code:    CodeMatchingEngine,
		Message: "matching engine error: " + message,
		Details: map[string]any{"settlement_id": settlementID},
	}
}

// NewFeeCalculationError wraps a failure while computing expected fees
func NewFeeCalculationError(message, settlementID string, feeType FeeType) *Error {
	return &Error{
		Kind:    KindProcessing,
		Code:    CodeFeeCalculation,
		Message: "fee calculation error: " + message,
		Details: map[string]any{"settlement_id": settlementID, "fee_type": string(feeType)},
	}
}

// NewReviewNotFoundError signals a review action on an unknown item
func NewReviewNotFoundError(itemType ReviewItemType, itemID string) *Error {
	return &Error{
		Kind:    KindReview,
		Code:    CodeReviewNotFound,
		Message: fmt.Sprintf("review item %s not found", itemID),
		Details: map[string]any{"item_type": string(itemType), "item_id": itemID},
	}
}

// NewInvalidStatusError signals an illegal state-machine transition
func NewInvalidStatusError(itemID string, from, to ReconciliationStatus) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeInvalidStatus,
		Message: fmt.Sprintf("cannot transition item %s from %s to %s", itemID, from, to),
		Details: map[string]any{"item_id": itemID, "from": string(from), "to": string(to)},
	}
}

// NewValidationError signals a bad input field
func NewValidationError(field, reason string) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeInvalidField,
		Message: fmt.Sprintf("invalid %s: %s", field, reason),
		Details: map[string]any{"field": field, "reason": reason},
	}
}

// NewPermissionError signals an actor lacking the required role
func NewPermissionError(actorID, action string) *Error {
	return &Error{
		Kind:    KindPermission,
		Code:    CodePermissionDenied,
		Message: fmt.Sprintf("actor %s may not perform %s", actorID, action),
		Details: map[string]any{"actor_id": actorID, "action": action},
	}
}

// NewDatabaseError wraps a persistence failure
func NewDatabaseError(operation string, cause error) *Error {
	return &Error{
		Kind:    KindDatabase,
		Code:    CodeDatabase,
		Message: "database operation failed: " + operation,
		Details: map[string]any{"operation": operation},
		cause:   cause,
	}
}

// NewExternalServiceError wraps a downstream collaborator failure
func NewExternalServiceError(service string, cause error) *Error {
	return &Error{
		Kind:    KindExternalService,
		Code:    CodeExternalService,
		Message: "external service failed: " + service,
		Details: map[string]any{"service": service},
		cause:   cause,
	}
}

// NewJobTimeoutError signals a per-item step timeout
func NewJobTimeoutError(step RunStep, itemID string) *Error {
	return &Error{
		Kind:    KindJob,
		Code:    CodeJobTimeout,
		Message: fmt.Sprintf("step %s timed out for item %s", step, itemID),
		Details: map[string]any{"step": string(step), "item_id": itemID},
	}
}

// NewRunStepDispatchError signals an item that could not be handed to a worker
func NewRunStepDispatchError(step RunStep, itemID string, cause error) *Error {
	return &Error{
		Kind:    KindProcessing,
		Code:    CodeRunStepDispatch,
		Message: fmt.Sprintf("step %s could not dispatch item %s", step, itemID),
		Details: map[string]any{"step": string(step), "item_id": itemID},
		cause:   cause,
	}
}

// NewRunAlreadyActiveError signals a second run requested for an active scope
func NewRunAlreadyActiveError(scopeKey string, activeRunID string) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeRunAlreadyActive,
		Message: "a reconciliation run is already active for this scope",
		Details: map[string]any{"scope_key": scopeKey, "active_run_id": activeRunID},
	}
}

// NewRunNotCancellableError signals a cancel request against a non-running run
func NewRunNotCancellableError(runID string, status RunStatus) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeRunNotCancellable,
		Message: fmt.Sprintf("run %s cannot be cancelled in status %s", runID, status),
		Details: map[string]any{"run_id": runID, "status": string(status)},
	}
}
