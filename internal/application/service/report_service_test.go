package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/garyjia/expense-approval/internal/currency"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/reporting"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type staticRates map[string]decimal.Decimal

func (r staticRates) GetRate(ctx context.Context, source, target string) (decimal.Decimal, bool) {
	rate, ok := r[source+target]
	return rate, ok
}

type mockExporter struct {
	written *reporting.Report
}

func (m *mockExporter) Write(report *reporting.Report, w io.Writer) error {
	m.written = report
	_, err := w.Write([]byte("xlsx"))
	return err
}

func (m *mockExporter) WriteFile(report *reporting.Report, dir string) (string, error) {
	m.written = report
	return dir + "/report.xlsx", nil
}

func approvedExpense(id, userID, amount, cur string) *entity.Expense {
	e := pendingExpense(id, userID)
	e.Amount = decimal.RequireFromString(amount)
	e.Currency = cur
	e.Status = entity.StatusApproved
	return e
}

func newReportFixture(exporter *mockExporter) ReportService {
	rates := staticRates{
		"EURUSD": decimal.RequireFromString("1.5"),
		"USDEUR": decimal.RequireFromString("0.5"),
	}
	aggregator := reporting.NewAggregator(currency.NewNormalizer(rates), zap.NewNop())
	svc := NewReportService(
		newMockExpenseRepo(
			approvedExpense("a", "user-3", "100", "USD"),
			approvedExpense("b", "user-4", "100", "EUR"),
			approvedExpense("c", "user-2", "40", "USD"),
			approvedExpense("d", "user-3", "10", "JPY"),
		),
		newMockUserRepo(directory()...),
		&mockCompanyRepo{company: &entity.Company{ID: "company-1", Name: "Acme", BaseCurrency: "USD"}},
		aggregator,
		exporter,
		&mockLogger{},
	)
	svc.(*reportServiceImpl).now = func() time.Time { return fixedNow }
	return svc
}

func TestReportService_Generate(t *testing.T) {
	svc := newReportFixture(&mockExporter{})
	ctx := context.Background()

	t.Run("team report in base currency", func(t *testing.T) {
		report, err := svc.Generate(ctx, ReportRequest{ActorID: "user-2", Scope: ScopeTeam})
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if report.Currency != "USD" {
			t.Errorf("Currency = %s, want company base USD", report.Currency)
		}
		if report.TotalSubmissions != 3 || report.ConvertedCount != 2 || report.UnconvertibleCount != 1 {
			t.Errorf("counts = %d/%d/%d", report.TotalSubmissions, report.ConvertedCount, report.UnconvertibleCount)
		}
		if report.Total.String() != "250" {
			t.Errorf("Total = %s, want 250", report.Total)
		}
		if report.Average.String() != "125" {
			t.Errorf("Average = %s, want 125", report.Average)
		}
		if report.TopSpenders[0].UserID != "user-4" || report.TopSpenders[0].Name != "Diana Employee" {
			t.Errorf("top spender = %+v", report.TopSpenders[0])
		}
	})

	t.Run("explicit currency", func(t *testing.T) {
		report, err := svc.Generate(ctx, ReportRequest{ActorID: "user-1", Scope: ScopeCompany, Currency: "eur"})
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if report.Currency != "EUR" || report.Total.String() != "170" {
			t.Errorf("report = %s %s, want EUR 170", report.Currency, report.Total)
		}
	})

	t.Run("forbidden scope", func(t *testing.T) {
		_, err := svc.Generate(ctx, ReportRequest{ActorID: "user-3", Scope: ScopeCompany})
		if !errors.Is(err, ErrForbiddenScope) {
			t.Errorf("error = %v, want ErrForbiddenScope", err)
		}
	})

	t.Run("invalid currency", func(t *testing.T) {
		_, err := svc.Generate(ctx, ReportRequest{ActorID: "user-3", Scope: ScopeOwn, Currency: "DOLLARS"})
		if !errors.Is(err, ErrValidation) {
			t.Errorf("error = %v, want ErrValidation", err)
		}
	})
}

func TestReportService_Export(t *testing.T) {
	exporter := &mockExporter{}
	svc := newReportFixture(exporter)

	var buf bytes.Buffer
	report, err := svc.Export(context.Background(), ReportRequest{ActorID: "user-3", Scope: ScopeOwn}, &buf)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if exporter.written != report || buf.String() != "xlsx" {
		t.Error("exporter did not receive the generated report")
	}

	path, err := svc.ExportFile(context.Background(), ReportRequest{ActorID: "user-3"}, "out")
	if err != nil || path != "out/report.xlsx" {
		t.Errorf("ExportFile() = %s, %v", path, err)
	}
}
