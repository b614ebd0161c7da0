package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/currency"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/reporting"
)

// ReportRequest selects what a report covers
type ReportRequest struct {
	ActorID  string
	Scope    Scope
	Currency string // empty means the company base currency
}

// ReportExporter renders a report as a document
type ReportExporter interface {
	Write(report *reporting.Report, w io.Writer) error
	WriteFile(report *reporting.Report, dir string) (string, error)
}

// ReportService builds spend reports over the expenses an actor may see
type ReportService interface {
	Generate(ctx context.Context, req ReportRequest) (*reporting.Report, error)
	Export(ctx context.Context, req ReportRequest, w io.Writer) (*reporting.Report, error)
	ExportFile(ctx context.Context, req ReportRequest, dir string) (string, error)
}

type reportServiceImpl struct {
	expenseRepo port.ExpenseRepository
	userRepo    port.UserRepository
	companyRepo port.CompanyRepository
	aggregator  *reporting.Aggregator
	exporter    ReportExporter
	now         func() time.Time
	logger      Logger
}

// NewReportService creates a new ReportService
func NewReportService(
	expenseRepo port.ExpenseRepository,
	userRepo port.UserRepository,
	companyRepo port.CompanyRepository,
	aggregator *reporting.Aggregator,
	exporter ReportExporter,
	logger Logger,
) ReportService {
	return &reportServiceImpl{
		expenseRepo: expenseRepo,
		userRepo:    userRepo,
		companyRepo: companyRepo,
		aggregator:  aggregator,
		exporter:    exporter,
		now:         time.Now,
		logger:      logger,
	}
}

// Generate builds the report for the request
func (s *reportServiceImpl) Generate(ctx context.Context, req ReportRequest) (*reporting.Report, error) {
	actor, err := requireUser(ctx, s.userRepo, req.ActorID)
	if err != nil {
		return nil, err
	}
	ids, err := scopeUserIDs(ctx, s.userRepo, actor, req.Scope)
	if err != nil {
		s.logger.Info("Report scope refused", "actor_id", actor.ID, "scope", string(req.Scope))
		return nil, err
	}

	target, err := s.targetCurrency(ctx, req.Currency)
	if err != nil {
		return nil, err
	}

	expenses, err := s.expenseRepo.List(ctx, entity.ExpenseFilter{UserIDs: ids})
	if err != nil {
		s.logger.Error("Failed to load expenses for report", "error", err)
		return nil, err
	}

	users, err := s.userRepo.List(ctx, entity.UserFilter{})
	if err != nil {
		return nil, fmt.Errorf("load user directory: %w", err)
	}
	directory := make(map[string]*entity.User, len(users))
	for _, u := range users {
		directory[u.ID] = u
	}

	report := s.aggregator.Aggregate(ctx, reporting.Input{
		Expenses: expenses,
		Currency: target,
		Now:      s.now(),
		Users:    directory,
	})

	s.logger.Info("Report generated",
		"actor_id", actor.ID,
		"scope", string(req.Scope),
		"currency", target,
		"submissions", report.TotalSubmissions,
		"unconvertible", report.UnconvertibleCount)
	return report, nil
}

// Export generates the report and writes it as a workbook to w
func (s *reportServiceImpl) Export(ctx context.Context, req ReportRequest, w io.Writer) (*reporting.Report, error) {
	report, err := s.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.exporter.Write(report, w); err != nil {
		s.logger.Error("Failed to export report", "error", err)
		return nil, err
	}
	return report, nil
}

// ExportFile generates the report and saves it as a workbook in dir
func (s *reportServiceImpl) ExportFile(ctx context.Context, req ReportRequest, dir string) (string, error) {
	report, err := s.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	path, err := s.exporter.WriteFile(report, dir)
	if err != nil {
		s.logger.Error("Failed to export report", "error", err, "dir", dir)
		return "", err
	}
	return path, nil
}

func (s *reportServiceImpl) targetCurrency(ctx context.Context, requested string) (string, error) {
	if requested != "" {
		code := currency.NormalizeCode(requested)
		if !currency.ValidCode(code) {
			return "", fmt.Errorf("%w: currency %q", ErrValidation, requested)
		}
		return code, nil
	}

	company, err := s.companyRepo.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("get company: %w", err)
	}
	if company == nil || company.BaseCurrency == "" {
		return "USD", nil
	}
	return company.BaseCurrency, nil
}
