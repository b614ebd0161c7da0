package service

import (
	"context"
	"fmt"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/currency"
	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// CompanyService reads and configures the company settings
type CompanyService interface {
	GetCompany(ctx context.Context) (*entity.Company, error)
	Configure(ctx context.Context, company entity.Company) (*entity.Company, error)
}

type companyServiceImpl struct {
	companyRepo port.CompanyRepository
	logger      Logger
}

// NewCompanyService creates a new CompanyService
func NewCompanyService(companyRepo port.CompanyRepository, logger Logger) CompanyService {
	return &companyServiceImpl{companyRepo: companyRepo, logger: logger}
}

// GetCompany returns the stored company
func (s *companyServiceImpl) GetCompany(ctx context.Context) (*entity.Company, error) {
	company, err := s.companyRepo.Get(ctx)
	if err != nil {
		s.logger.Error("Failed to get company", "error", err)
		return nil, err
	}
	if company == nil {
		return nil, fmt.Errorf("%w: company", ErrNotFound)
	}
	return company, nil
}

// Configure stores the company settings, keeping stored values for empty fields
func (s *companyServiceImpl) Configure(ctx context.Context, company entity.Company) (*entity.Company, error) {
	existing, err := s.companyRepo.Get(ctx)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if company.ID == "" {
			company.ID = existing.ID
		}
		if company.Name == "" {
			company.Name = existing.Name
		}
		if company.BaseCurrency == "" {
			company.BaseCurrency = existing.BaseCurrency
		}
	}
	if company.ID == "" {
		company.ID = "company-1"
	}

	company.BaseCurrency = currency.NormalizeCode(company.BaseCurrency)
	if !currency.ValidCode(company.BaseCurrency) {
		return nil, fmt.Errorf("%w: base currency %q", ErrValidation, company.BaseCurrency)
	}

	if err := s.companyRepo.Upsert(ctx, &company); err != nil {
		s.logger.Error("Failed to configure company", "error", err)
		return nil, err
	}
	s.logger.Info("Company configured", "id", company.ID, "base_currency", company.BaseCurrency)
	return &company, nil
}
