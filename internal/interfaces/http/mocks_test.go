package http

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-approval/internal/application/service"
	"github.com/garyjia/expense-approval/internal/currency"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/reporting"
)

type mockLogger struct{}

func (mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockUserService struct {
	users      map[string]*entity.User
	CreateFunc func(ctx context.Context, input service.UserInput) (*entity.User, error)
	UpdateFunc func(ctx context.Context, id string, input service.UserInput) (*entity.User, error)
	lastFilter entity.UserFilter
}

func (m *mockUserService) CreateUser(ctx context.Context, input service.UserInput) (*entity.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, input)
	}
	return &entity.User{ID: "new-user", Name: input.Name, Email: input.Email, Role: input.Role}, nil
}

func (m *mockUserService) UpdateUser(ctx context.Context, id string, input service.UserInput) (*entity.User, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, input)
	}
	return &entity.User{ID: id, Name: input.Name}, nil
}

func (m *mockUserService) GetUser(ctx context.Context, id string) (*entity.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("%w: user %s", service.ErrNotFound, id)
}

func (m *mockUserService) ListUsers(ctx context.Context, filter entity.UserFilter) ([]*entity.User, error) {
	m.lastFilter = filter
	var out []*entity.User
	for _, u := range m.users {
		if filter.Matches(u) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockUserService) SeedDemoUsers(ctx context.Context) (int, error) {
	return 0, nil
}

type mockExpenseService struct {
	CreateFunc   func(ctx context.Context, submitterID string, draft entity.ExpenseDraft) (*entity.Expense, error)
	ViewFunc     func(ctx context.Context, id, actorID string) (*service.ExpenseView, error)
	ListFunc     func(ctx context.Context, actorID string, scope service.Scope, filter entity.ExpenseFilter) ([]*entity.Expense, error)
	DecisionFunc func(ctx context.Context, expenseID string, decision entity.Decision, comment, actorID string) (*entity.Expense, error)
	NextFunc     func(ctx context.Context, expenseID string) (*service.NextApprover, bool, error)
}

func (m *mockExpenseService) CreateExpense(ctx context.Context, submitterID string, draft entity.ExpenseDraft) (*entity.Expense, error) {
	return m.CreateFunc(ctx, submitterID, draft)
}

func (m *mockExpenseService) GetExpense(ctx context.Context, id string) (*entity.Expense, error) {
	return nil, fmt.Errorf("%w: expense %s", service.ErrNotFound, id)
}

func (m *mockExpenseService) ViewExpense(ctx context.Context, id, actorID string) (*service.ExpenseView, error) {
	return m.ViewFunc(ctx, id, actorID)
}

func (m *mockExpenseService) ListExpenses(ctx context.Context, filter entity.ExpenseFilter) ([]*entity.Expense, error) {
	return nil, nil
}

func (m *mockExpenseService) ListForActor(ctx context.Context, actorID string, scope service.Scope, filter entity.ExpenseFilter) ([]*entity.Expense, error) {
	return m.ListFunc(ctx, actorID, scope, filter)
}

func (m *mockExpenseService) ApplyDecision(ctx context.Context, expenseID string, decision entity.Decision, comment, actorID string) (*entity.Expense, error) {
	return m.DecisionFunc(ctx, expenseID, decision, comment, actorID)
}

func (m *mockExpenseService) CanAct(ctx context.Context, expenseID, actorID string) (bool, error) {
	return false, nil
}

func (m *mockExpenseService) NextApprover(ctx context.Context, expenseID string) (*service.NextApprover, bool, error) {
	return m.NextFunc(ctx, expenseID)
}

type mockCompanyService struct {
	company *entity.Company
}

func (m *mockCompanyService) GetCompany(ctx context.Context) (*entity.Company, error) {
	return m.company, nil
}

func (m *mockCompanyService) Configure(ctx context.Context, company entity.Company) (*entity.Company, error) {
	if company.BaseCurrency != "" {
		m.company.BaseCurrency = company.BaseCurrency
	}
	return m.company, nil
}

type mockReportService struct {
	GenerateFunc func(ctx context.Context, req service.ReportRequest) (*reporting.Report, error)
}

func (m *mockReportService) Generate(ctx context.Context, req service.ReportRequest) (*reporting.Report, error) {
	return m.GenerateFunc(ctx, req)
}

func (m *mockReportService) Export(ctx context.Context, req service.ReportRequest, w io.Writer) (*reporting.Report, error) {
	report, err := m.GenerateFunc(ctx, req)
	if err != nil {
		return nil, err
	}
	_, err = w.Write([]byte("PK-xlsx"))
	return report, err
}

func (m *mockReportService) ExportFile(ctx context.Context, req service.ReportRequest, dir string) (string, error) {
	return "", nil
}

type mockReceiptService struct {
	gotData     []byte
	gotMimeType string
	extracted   *entity.ReceiptDraft
}

func (m *mockReceiptService) SeedDraft(ctx context.Context, data []byte, mimeType string, fallback entity.ExpenseDraft) (entity.ExpenseDraft, *entity.ReceiptDraft, bool) {
	m.gotData, m.gotMimeType = data, mimeType
	if m.extracted == nil {
		return fallback, nil, true
	}
	return m.extracted.Seed(fallback), m.extracted, false
}

type mockRates struct {
	rates map[string]decimal.Decimal

	mu          sync.Mutex
	cleared     bool
	invalidated []string
}

func (m *mockRates) GetRate(ctx context.Context, source, target string) (decimal.Decimal, bool) {
	r, ok := m.rates[source+target]
	return r, ok
}

func (m *mockRates) Invalidate(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, source)
}

func (m *mockRates) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = true
}

type mockCurrencies struct {
	list      []currency.Currency
	available bool
}

func (m *mockCurrencies) List(ctx context.Context) ([]currency.Currency, bool) {
	return m.list, m.available
}
