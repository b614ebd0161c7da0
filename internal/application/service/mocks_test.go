package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// mockUserRepo keeps users in memory; func fields override individual methods
type mockUserRepo struct {
	mu          sync.Mutex
	users       map[string]*entity.User
	getByIDFunc func(ctx context.Context, id string) (*entity.User, error)
	listFunc    func(ctx context.Context, filter entity.UserFilter) ([]*entity.User, error)
}

func newMockUserRepo(users ...*entity.User) *mockUserRepo {
	m := &mockUserRepo{users: make(map[string]*entity.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserRepo) Create(ctx context.Context, user *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; ok {
		return fmt.Errorf("duplicate user %s", user.ID)
	}
	c := *user
	m.users[user.ID] = &c
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return fmt.Errorf("user not found: %s", user.ID)
	}
	c := *user
	m.users[user.ID] = &c
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) List(ctx context.Context, filter entity.UserFilter) ([]*entity.User, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.User, 0)
	for _, u := range m.users {
		if filter.Matches(u) {
			c := *u
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockUserRepo) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

// mockExpenseRepo keeps expenses in memory in insertion order
type mockExpenseRepo struct {
	mu                 sync.Mutex
	expenses           map[string]*entity.Expense
	order              []string
	createFunc         func(ctx context.Context, expense *entity.Expense) error
	appendDecisionFunc func(ctx context.Context, expenseID string, entry entity.ApprovalEntry, status entity.ExpenseStatus) error
}

func newMockExpenseRepo(expenses ...*entity.Expense) *mockExpenseRepo {
	m := &mockExpenseRepo{expenses: make(map[string]*entity.Expense)}
	for _, e := range expenses {
		m.expenses[e.ID] = e.Clone()
		m.order = append(m.order, e.ID)
	}
	return m
}

func (m *mockExpenseRepo) Create(ctx context.Context, expense *entity.Expense) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, expense)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expenses[expense.ID] = expense.Clone()
	m.order = append(m.order, expense.ID)
	return nil
}

func (m *mockExpenseRepo) GetByID(ctx context.Context, id string) (*entity.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.expenses[id]
	if !ok {
		return nil, nil
	}
	return e.Clone(), nil
}

func (m *mockExpenseRepo) List(ctx context.Context, filter entity.ExpenseFilter) ([]*entity.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.Expense, 0)
	for _, id := range m.order {
		e := m.expenses[id]
		if filter.Matches(e) {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (m *mockExpenseRepo) AppendDecision(ctx context.Context, expenseID string, entry entity.ApprovalEntry, status entity.ExpenseStatus) error {
	if m.appendDecisionFunc != nil {
		return m.appendDecisionFunc(ctx, expenseID, entry, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.expenses[expenseID]
	if !ok {
		return fmt.Errorf("expense not found: %s", expenseID)
	}
	e.ApprovalHistory = append(e.ApprovalHistory, entry)
	e.Status = status
	return nil
}

type mockCompanyRepo struct {
	company *entity.Company
	getErr  error
}

func (m *mockCompanyRepo) Get(ctx context.Context) (*entity.Company, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.company == nil {
		return nil, nil
	}
	c := *m.company
	return &c, nil
}

func (m *mockCompanyRepo) Upsert(ctx context.Context, company *entity.Company) error {
	c := *company
	m.company = &c
	return nil
}

// mockTxManager runs fn directly
type mockTxManager struct {
	calls int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

type mockNotifier struct {
	mu         sync.Mutex
	notices    []port.ApproverNotice
	notifyFunc func(ctx context.Context, notice port.ApproverNotice) error
}

func (m *mockNotifier) NotifyApprover(ctx context.Context, notice port.ApproverNotice) error {
	m.mu.Lock()
	m.notices = append(m.notices, notice)
	m.mu.Unlock()
	if m.notifyFunc != nil {
		return m.notifyFunc(ctx, notice)
	}
	return nil
}

func (m *mockNotifier) approverIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(m.notices))
	for i, n := range m.notices {
		ids[i] = n.Approver.ID
	}
	return ids
}

// mockConverter converts into any target with a static per-source table
type mockConverter struct {
	rates map[string]string
	calls int
}

func (m *mockConverter) Convert(ctx context.Context, amount decimal.Decimal, source, target string) (decimal.Decimal, bool) {
	m.calls++
	if source == target {
		return amount, true
	}
	rate, ok := m.rates[source]
	if !ok {
		return decimal.Zero, false
	}
	return amount.Mul(decimal.RequireFromString(rate)), true
}

// mockCurrencies accepts everything unless supportedFunc says otherwise
type mockCurrencies struct {
	supportedFunc func(ctx context.Context, code string) (bool, bool)
}

func (m *mockCurrencies) Supported(ctx context.Context, code string) (bool, bool) {
	if m.supportedFunc != nil {
		return m.supportedFunc(ctx, code)
	}
	return true, true
}

type mockExtractor struct {
	extractFunc func(ctx context.Context, data []byte, mimeType string) (*entity.ReceiptDraft, error)
}

func (m *mockExtractor) ExtractReceipt(ctx context.Context, data []byte, mimeType string) (*entity.ReceiptDraft, error) {
	return m.extractFunc(ctx, data, mimeType)
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

// directory returns the demo hierarchy plus a second manager outside it
func directory() []*entity.User {
	return []*entity.User{
		{ID: "user-1", Name: "Alice Admin", Email: "alice@company.com", Role: entity.RoleAdmin},
		{ID: "user-2", Name: "Bob Manager", Email: "bob@company.com", Role: entity.RoleManager, ManagerID: "user-1"},
		{ID: "user-3", Name: "Charlie Employee", Email: "charlie@company.com", Role: entity.RoleEmployee, ManagerID: "user-2"},
		{ID: "user-4", Name: "Diana Employee", Email: "diana@company.com", Role: entity.RoleEmployee, ManagerID: "user-2"},
		{ID: "user-5", Name: "Erin Manager", Email: "erin@company.com", Role: entity.RoleManager, ManagerID: "user-1"},
	}
}
