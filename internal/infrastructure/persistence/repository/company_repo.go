package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// CompanyRepository implements port.CompanyRepository
type CompanyRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db *sqlite.DB, logger *zap.Logger) port.CompanyRepository {
	return &CompanyRepository{
		db:     db,
		logger: logger,
	}
}

// Get returns the company, or nil if none is stored
func (r *CompanyRepository) Get(ctx context.Context) (*entity.Company, error) {
	query := `SELECT id, name, base_currency FROM company ORDER BY id LIMIT 1`

	var c entity.Company
	err := r.db.Executor(ctx).QueryRowContext(ctx, query).Scan(&c.ID, &c.Name, &c.BaseCurrency)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get company", zap.Error(err))
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return &c, nil
}

// Upsert creates or replaces the company row
func (r *CompanyRepository) Upsert(ctx context.Context, company *entity.Company) error {
	query := `
		INSERT INTO company (id, name, base_currency) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, base_currency = excluded.base_currency
	`
	if _, err := r.db.Executor(ctx).ExecContext(ctx, query, company.ID, company.Name, company.BaseCurrency); err != nil {
		r.logger.Error("Failed to upsert company", zap.String("id", company.ID), zap.Error(err))
		return fmt.Errorf("failed to upsert company: %w", err)
	}
	return nil
}
