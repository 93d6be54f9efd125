package operators

import (
	"context"
	"fmt"

	"transitly/internal/shared/config"
	"transitly/pkg/logger"
)

// Service interface defines the contract for operator management
type Service interface {
	GetOperator(ctx context.Context, id uint) (*Operator, error)
	GetOperatorByPhone(ctx context.Context, phone string) (*Operator, error)
	SeedDefaultOperator(ctx context.Context, cfg *config.Config) (*Operator, error)
}

type service struct {
	repo Repository
	log  *logger.Logger
}

// NewService creates a new operator service instance
func NewService(repo Repository) Service {
	return &service{
		repo: repo,
		log:  logger.GetDefault(),
	}
}

func (s *service) GetOperator(ctx context.Context, id uint) (*Operator, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) GetOperatorByPhone(ctx context.Context, phone string) (*Operator, error) {
	return s.repo.GetByPhone(ctx, NormalizePhone(phone))
}

// SeedDefaultOperator creates the operator configured via OPERATOR_PHONE /
// OPERATOR_NAME when no operator with that phone exists yet.
func (s *service) SeedDefaultOperator(ctx context.Context, cfg *config.Config) (*Operator, error) {
	if cfg.Operator.Phone == "" {
		return nil, nil
	}

	phone := NormalizePhone(cfg.Operator.Phone)
	existing, err := s.repo.GetByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to look up default operator: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	operator := &Operator{
		Phone:    phone,
		Name:     cfg.Operator.Name,
		Approved: true,
	}
	if err := s.repo.Create(ctx, operator); err != nil {
		return nil, fmt.Errorf("failed to seed default operator: %w", err)
	}

	s.log.InfoWithContext(ctx, "Seeded default operator", map[string]interface{}{
		"operator_id": operator.ID,
		"phone":       operator.Phone,
	})
	return operator, nil
}
