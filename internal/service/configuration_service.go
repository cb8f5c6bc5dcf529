package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/segyhp/microcredit-engine/internal/domain"
	"github.com/segyhp/microcredit-engine/internal/repository"
	"github.com/segyhp/microcredit-engine/pkg/amortization"
	customError "github.com/segyhp/microcredit-engine/pkg/errors"
	"github.com/segyhp/microcredit-engine/pkg/logger"
)

type ConfigurationService struct {
	repo   repository.ConfigurationRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewConfigurationService(repo repository.ConfigurationRepository, log *zap.Logger) *ConfigurationService {
	return &ConfigurationService{
		repo:   repo,
		logger: logger.OrNop(log),
		now:    time.Now,
	}
}

// CreateConfiguration stores a new loan product.
func (s *ConfigurationService) CreateConfiguration(ctx context.Context, request *domain.ConfigurationRequest) (*domain.LoanConfiguration, error) {
	name, rate, method, err := parseConfiguration(request)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	cfg := &domain.LoanConfiguration{
		ID:                 uuid.New(),
		Name:               name,
		AnnualInterestRate: rate,
		Method:             method,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Create(ctx, cfg); err != nil {
		return nil, err
	}

	s.logger.Info("configuration created",
		zap.String("op", "service.CreateConfiguration"),
		zap.String("configuration_id", cfg.ID.String()),
		zap.String("method", method.String()),
		zap.String("rate", rate.String()),
	)
	return cfg, nil
}

func (s *ConfigurationService) GetConfiguration(ctx context.Context, id uuid.UUID) (*domain.LoanConfiguration, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ConfigurationService) ListConfigurations(ctx context.Context) ([]*domain.LoanConfiguration, error) {
	return s.repo.List(ctx)
}

// UpdateConfiguration edits a loan product. Existing loans keep the terms they copied.
func (s *ConfigurationService) UpdateConfiguration(ctx context.Context, id uuid.UUID, request *domain.ConfigurationRequest) (*domain.LoanConfiguration, error) {
	name, rate, method, err := parseConfiguration(request)
	if err != nil {
		return nil, err
	}

	cfg, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	cfg.Name = name
	cfg.AnnualInterestRate = rate
	cfg.Method = method
	cfg.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, cfg); err != nil {
		return nil, err
	}

	s.logger.Info("configuration updated",
		zap.String("op", "service.UpdateConfiguration"),
		zap.String("configuration_id", cfg.ID.String()),
	)
	return cfg, nil
}

func parseConfiguration(request *domain.ConfigurationRequest) (string, decimal.Decimal, amortization.Method, error) {
	name := strings.TrimSpace(request.Name)
	if name == "" {
		return "", decimal.Zero, "", customError.WrapInvalidConfiguration("name is required")
	}
	if !request.AnnualInterestRate.IsPositive() {
		return "", decimal.Zero, "", customError.WrapInvalidConfiguration(
			fmt.Sprintf("annual interest rate must be greater than 0, got %s", request.AnnualInterestRate))
	}
	method, err := amortization.ParseMethod(request.Method)
	if err != nil {
		return "", decimal.Zero, "", err
	}
	return name, request.AnnualInterestRate, method, nil
}
