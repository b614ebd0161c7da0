package container

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/application/service"
	"github.com/garyjia/expense-approval/internal/config"
	"github.com/garyjia/expense-approval/internal/currency"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubRates struct{}

func (stubRates) FetchRates(ctx context.Context, base string) (*currency.RateTable, error) {
	return &currency.RateTable{
		Base:  base,
		Rates: map[string]decimal.Decimal{"USD": decimal.RequireFromString("1.10")},
	}, nil
}

type stubCurrencies []string

func (s stubCurrencies) FetchCurrencies(ctx context.Context) ([]currency.Currency, error) {
	out := make([]currency.Currency, len(s))
	for i, code := range s {
		out[i] = currency.Currency{Code: code}
	}
	return out, nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	approvers []string
}

func (n *recordingNotifier) NotifyApprover(ctx context.Context, notice port.ApproverNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.approvers = append(n.approvers, notice.Approver.ID)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Database.Path = filepath.Join(t.TempDir(), "db", "expenses.db")
	cfg.Database.SeedDemo = true
	cfg.OpenAI.APIKey = ""
	cfg.Lark.AppID, cfg.Lark.AppSecret = "", ""
	cfg.Currency.CurrenciesAPIURL = ""
	return cfg
}

func TestNewContainer_RequiresConfig(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop(), Options{})
	assert.Error(t, err)
}

func TestContainer_Lifecycle(t *testing.T) {
	notifier := &recordingNotifier{}
	c, err := NewContainer(testConfig(t), zap.NewNop(), Options{
		RateSource:     stubRates{},
		CurrencySource: stubCurrencies{"EUR", "USD"},
		Notifier:       notifier,
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(ctx))

	health := c.Health(ctx)
	assert.True(t, health.Overall)
	assert.Equal(t, "disabled", health.Components["receipt_extraction"].Message)

	svc := c.Services()
	company, err := svc.Company.GetCompany(ctx)
	require.NoError(t, err)
	assert.Equal(t, "USD", company.BaseCurrency)

	users, err := svc.User.ListUsers(ctx, entity.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, users, 4)

	// Employee -> Manager -> Admin, end to end through SQLite
	exp, err := svc.Expense.CreateExpense(ctx, "user-3", entity.ExpenseDraft{
		Amount:      decimal.RequireFromString("100"),
		Currency:    "EUR",
		Category:    entity.CategoryTravel,
		Description: "Train to Lyon",
		Date:        time.Now().AddDate(0, 0, -1),
	})
	require.NoError(t, err)

	_, err = svc.Expense.CreateExpense(ctx, "user-3", entity.ExpenseDraft{
		Amount:      decimal.RequireFromString("5"),
		Currency:    "XTS",
		Description: "Test currency",
		Date:        time.Now().AddDate(0, 0, -1),
	})
	assert.ErrorIs(t, err, service.ErrValidation, "codes outside the currency list are refused")

	view, err := svc.Expense.ViewExpense(ctx, exp.ID, "user-3")
	require.NoError(t, err)
	require.NotNil(t, view.ConvertedAmount)
	assert.Equal(t, "110", view.ConvertedAmount.String())
	assert.Equal(t, "USD", view.BaseCurrency)

	_, err = svc.Expense.ApplyDecision(ctx, exp.ID, entity.DecisionApproved, "", "user-1")
	assert.Error(t, err, "admin cannot act at the manager stage")

	_, err = svc.Expense.ApplyDecision(ctx, exp.ID, entity.DecisionApproved, "ok", "user-2")
	require.NoError(t, err)
	done, err := svc.Expense.ApplyDecision(ctx, exp.ID, entity.DecisionApproved, "ok", "user-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, done.Status)
	assert.Len(t, done.ApprovalHistory, 2)

	assert.Equal(t, []string{"user-2", "user-1"}, notifier.approvers)

	report, err := svc.Report.Generate(ctx, service.ReportRequest{ActorID: "user-1", Scope: service.ScopeCompany})
	require.NoError(t, err)
	assert.Equal(t, "USD", report.Currency)
	assert.Equal(t, "110", report.Total.String())
	assert.Equal(t, 1, c.Currency().Cache.Size())

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close())
}

func TestContainer_RestartKeepsData(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	first, err := NewContainer(cfg, zap.NewNop(), Options{RateSource: stubRates{}})
	require.NoError(t, err)
	require.NoError(t, first.Start(ctx))
	require.NoError(t, first.Close())

	second, err := NewContainer(cfg, zap.NewNop(), Options{RateSource: stubRates{}})
	require.NoError(t, err)
	require.NoError(t, second.Start(ctx))
	defer second.Close()

	users, err := second.Services().User.ListUsers(ctx, entity.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, users, 4, "demo users are only seeded into an empty directory")
}
