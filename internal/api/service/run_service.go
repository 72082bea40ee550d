package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kulina-reconciliation/internal/domain/run"
	"github.com/kulina-reconciliation/internal/domain/shared"
	"github.com/kulina-reconciliation/internal/platform/messaging/producers"
)

// RunOrchestrator is the orchestrator surface the API needs
type RunOrchestrator interface {
	StartRun(ctx context.Context, runType shared.RunType, scope run.Scope, initiatedBy string) (*run.Run, error)
	AbortRun(ctx context.Context, runID uuid.UUID, cause string) error
	CancelRun(ctx context.Context, runID uuid.UUID) (*run.Run, error)
	GetRun(ctx context.Context, runID uuid.UUID) (*run.Run, error)
}

// RunServiceImpl implements the RunService interface
type RunServiceImpl struct {
	orchestrator RunOrchestrator
	producer     producers.MessagePublisher
	logger       *slog.Logger
}

// NewRunService creates a new run service
func NewRunService(logger *slog.Logger, orchestrator RunOrchestrator, producer producers.MessagePublisher) RunService {
	return &RunServiceImpl{
		orchestrator: orchestrator,
		producer:     producer,
		logger:       logger,
	}
}

// StartRun creates the run row and publishes the run request for the
// processor. A publish failure aborts the fresh run so the scope does not
// stay blocked by a request nobody will ever execute.
func (s *RunServiceImpl) StartRun(ctx context.Context, runType shared.RunType, scope run.Scope, initiatedBy, correlationID string) (*run.Run, error) {
	rn, err := s.orchestrator.StartRun(ctx, runType, scope, initiatedBy)
	if err != nil {
		return nil, err
	}

	request := &shared.RunRequest{
		RunID:         rn.ID,
		CompanyID:     scope.CompanyID,
		RunType:       runType,
		RunDate:       scope.RunDate,
		PlatformCodes: scope.PlatformCodes,
		BranchIDs:     scope.BranchIDs,
		RequestedBy:   initiatedBy,
		CorrelationID: correlationID,
		Timestamp:     time.Now(),
	}

	if err := s.producer.Publish(ctx, rn.ID.String(), request); err != nil {
		s.logger.Error("Failed to publish run request",
			"run_id", rn.ID.String(),
			"error", err,
		)
		if abortErr := s.orchestrator.AbortRun(ctx, rn.ID, "run request publish failed: "+err.Error()); abortErr != nil {
			s.logger.Error("Failed to abort unpublishable run",
				"run_id", rn.ID.String(),
				"error", abortErr,
			)
		}
		return nil, shared.NewExternalServiceError("kafka", err)
	}

	s.logger.Info("Run request published",
		"run_id", rn.ID.String(),
		"company_id", scope.CompanyID.String(),
		"run_type", string(runType),
		"run_date", scope.RunDate.Format("2006-01-02"),
	)

	return rn, nil
}

// GetRun returns the run with its live progress counters
func (s *RunServiceImpl) GetRun(ctx context.Context, runID uuid.UUID) (*run.Run, error) {
	return s.orchestrator.GetRun(ctx, runID)
}

// CancelRun requests cooperative cancellation of a running run
func (s *RunServiceImpl) CancelRun(ctx context.Context, runID uuid.UUID) (*run.Run, error) {
	return s.orchestrator.CancelRun(ctx, runID)
}
