package takeover

import (
	"context"
	"time"

	"transitly/internal/idempotency"
	"transitly/internal/shared/apperrors"
	"transitly/pkg/logger"
)

// Service interface defines operator takeover management
type Service interface {
	// Start pauses automated handling of the session for the operator.
	Start(ctx context.Context, sessionID string, operatorID uint, reason string) (*OperatorTakeover, error)

	// Release resumes automated handling. Releasing a session without an
	// active takeover is an idempotent no-op.
	Release(ctx context.Context, sessionID string, operatorID uint) error

	// IsActive reports whether automated handling is currently paused.
	IsActive(ctx context.Context, sessionID string) (bool, error)
}

type service struct {
	repo   Repository
	ledger *idempotency.Ledger
	log    *logger.Logger
}

// NewService creates a new takeover service instance
func NewService(repo Repository, ledger *idempotency.Ledger) Service {
	return &service{
		repo:   repo,
		ledger: ledger,
		log:    logger.GetDefault(),
	}
}

func (s *service) Start(ctx context.Context, sessionID string, operatorID uint, reason string) (*OperatorTakeover, error) {
	existing, err := s.repo.FindActiveBySession(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Retryablef("failed to look up takeover: %w", err)
	}
	if existing != nil {
		return nil, apperrors.ErrTakeoverActive
	}

	takeover := &OperatorTakeover{
		SessionID:  sessionID,
		OperatorID: operatorID,
		Status:     StatusActive,
		Reason:     reason,
		StartedAt:  time.Now(),
	}
	if err := s.repo.Create(ctx, takeover); err != nil {
		return nil, apperrors.Retryablef("failed to start takeover: %w", err)
	}

	s.log.InfoWithContext(ctx, "Operator takeover started", map[string]interface{}{
		"session_id":  sessionID,
		"operator_id": operatorID,
	})
	return takeover, nil
}

func (s *service) Release(ctx context.Context, sessionID string, operatorID uint) error {
	released, err := s.repo.Release(ctx, sessionID, time.Now())
	if err != nil {
		return apperrors.Retryablef("failed to release takeover: %w", err)
	}
	if !released {
		return nil
	}

	s.log.InfoWithContext(ctx, "Operator takeover released", map[string]interface{}{
		"session_id":  sessionID,
		"operator_id": operatorID,
	})
	return nil
}

func (s *service) IsActive(ctx context.Context, sessionID string) (bool, error) {
	existing, err := s.repo.FindActiveBySession(ctx, sessionID)
	if err != nil {
		return false, apperrors.Retryablef("failed to look up takeover: %w", err)
	}
	return existing != nil, nil
}
