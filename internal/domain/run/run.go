package run

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kulina-reconciliation/internal/domain/shared"
)

var (
	ErrNotRunning       = errors.New("run is not in RUNNING status")
	ErrAlreadyTerminal  = errors.New("run is already in a terminal status")
	ErrInvalidRunStatus = errors.New("invalid run status transition")
)

// Scope defines the query batch a run processes: one company and date,
// optionally narrowed to platforms and branches. A run owns no settlements;
// it processes whatever the scope query returns.
type Scope struct {
	CompanyID     uuid.UUID   `json:"company_id"`
	RunDate       time.Time   `json:"run_date"`
	PlatformCodes []string    `json:"platform_codes,omitempty"`
	BranchIDs     []uuid.UUID `json:"branch_ids,omitempty"`
}

// Key produces a stable identifier for the scope so concurrent runs over the
// same batch can be rejected. Filters are sorted to keep the key order
// independent.
func (s Scope) Key() string {
	platforms := append([]string(nil), s.PlatformCodes...)
	sort.Strings(platforms)

	branches := make([]string, len(s.BranchIDs))
	for i, id := range s.BranchIDs {
		branches[i] = id.String()
	}
	sort.Strings(branches)

	return fmt.Sprintf("%s|%s|%s|%s",
		s.CompanyID.String(),
		s.RunDate.Format("2006-01-02"),
		strings.Join(platforms, ","),
		strings.Join(branches, ","),
	)
}

// ResultSummary carries the terminal counts of a completed run
type ResultSummary struct {
	MatchedCount      int `json:"matched_count"`
	UnmatchedCount    int `json:"unmatched_count"`
	FeeMatchedCount   int `json:"fee_matched_count"`
	FeeReviewCount    int `json:"fee_review_count"`
	ReviewRoutedCount int `json:"review_routed_count"`
	DiscrepancyCount  int `json:"discrepancy_count"`
}

// Run is one execution of the orchestrator over a scope. Failed attempts
// count as processed, so the counters uphold
// failed_items <= processed_items <= total_items at all times; a COMPLETED
// run has processed every item it set out to.
type Run struct {
	ID          uuid.UUID      `json:"id"`
	CompanyID   uuid.UUID      `json:"company_id"`
	RunType     shared.RunType `json:"run_type"`
	Scope       Scope          `json:"scope"`
	InitiatedBy string         `json:"initiated_by"`

	TotalItems     int            `json:"total_items"`
	ProcessedItems int            `json:"processed_items"`
	FailedItems    int            `json:"failed_items"`
	CurrentStep    shared.RunStep `json:"current_step"`

	Status        shared.RunStatus `json:"status"`
	ResultSummary *ResultSummary   `json:"result_summary,omitempty"`
	ErrorLog      []string         `json:"error_log,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewRun creates an INITIALIZED run for the scope
func NewRun(runType shared.RunType, scope Scope, initiatedBy string, totalItems int) *Run {
	return &Run{
		ID:          uuid.New(),
		CompanyID:   scope.CompanyID,
		RunType:     runType,
		Scope:       scope,
		InitiatedBy: initiatedBy,
		TotalItems:  totalItems,
		Status:      shared.RunStatusInitialized,
		StartedAt:   time.Now(),
	}
}

// Start transitions INITIALIZED -> RUNNING
func (r *Run) Start() error {
	if r.Status != shared.RunStatusInitialized {
		return ErrInvalidRunStatus
	}
	r.Status = shared.RunStatusRunning
	return nil
}

// Complete transitions RUNNING -> COMPLETED with the result summary
func (r *Run) Complete(summary ResultSummary) error {
	if r.Status != shared.RunStatusRunning {
		return ErrNotRunning
	}
	r.Status = shared.RunStatusCompleted
	r.ResultSummary = &summary
	now := time.Now()
	r.CompletedAt = &now
	return nil
}

// Fail marks the run FAILED after a run-level error
func (r *Run) Fail(cause string) error {
	if r.Status.IsTerminal() {
		return ErrAlreadyTerminal
	}
	r.Status = shared.RunStatusFailed
	r.ErrorLog = append(r.ErrorLog, cause)
	now := time.Now()
	r.CompletedAt = &now
	return nil
}

// Cancel transitions RUNNING -> CANCELLED
func (r *Run) Cancel() error {
	if r.Status != shared.RunStatusRunning {
		return ErrNotRunning
	}
	r.Status = shared.RunStatusCancelled
	now := time.Now()
	r.CompletedAt = &now
	return nil
}
