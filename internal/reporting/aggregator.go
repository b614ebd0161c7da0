package reporting

import (
	"context"
	"sort"
	"time"

	"github.com/garyjia/expense-approval/internal/currency"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BatchConverter normalizes amounts into one currency
type BatchConverter interface {
	ConvertBatch(ctx context.Context, items []currency.Item, target string) []currency.Result
}

// Input is one aggregation request. Expenses must already be restricted to
// what the caller may see.
type Input struct {
	Expenses []*entity.Expense
	Currency string
	Now      time.Time
	// Users resolves submitter names for the top spender ranking; optional
	Users map[string]*entity.User
}

// Aggregator builds spend reports. It never mutates the expenses it reads.
type Aggregator struct {
	converter BatchConverter
	logger    *zap.Logger
}

// NewAggregator creates an aggregator over the given converter
func NewAggregator(converter BatchConverter, logger *zap.Logger) *Aggregator {
	return &Aggregator{converter: converter, logger: logger}
}

// Aggregate computes the report for in. Approved expenses whose currency
// cannot be converted are counted but excluded from every monetary figure.
func (a *Aggregator) Aggregate(ctx context.Context, in Input) *Report {
	target := currency.NormalizeCode(in.Currency)
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	report := &Report{
		Currency:                target,
		GeneratedAt:             now,
		TotalSubmissions:        len(in.Expenses),
		Total:                   decimal.Zero,
		Average:                 decimal.Zero,
		ByCategory:              []CategoryTotal{},
		TopSpenders:             []SpenderTotal{},
		UnconvertibleCurrencies: []string{},
	}

	approved := make([]*entity.Expense, 0, len(in.Expenses))
	for _, e := range in.Expenses {
		switch e.Status {
		case entity.StatusApproved:
			approved = append(approved, e)
		case entity.StatusPending:
			report.PendingCount++
		case entity.StatusRejected:
			report.RejectedCount++
		}
	}
	report.ApprovedCount = len(approved)

	items := make([]currency.Item, len(approved))
	for i, e := range approved {
		items[i] = currency.Item{Amount: e.Amount, Currency: e.Currency}
	}
	var results []currency.Result
	if len(items) > 0 {
		results = a.converter.ConvertBatch(ctx, items, target)
	}

	months := monthWindow(now)
	monthIndex := make(map[string]int, len(months))
	for i, m := range months {
		monthIndex[m.Month] = i
	}

	categoryIndex := make(map[string]int)
	spenderIndex := make(map[string]int)
	spenders := make([]SpenderTotal, 0)
	unconvertible := make(map[string]bool)

	for i, e := range approved {
		res := results[i]
		if !res.OK {
			report.UnconvertibleCount++
			code := currency.NormalizeCode(e.Currency)
			if !unconvertible[code] {
				unconvertible[code] = true
				report.UnconvertibleCurrencies = append(report.UnconvertibleCurrencies, code)
			}
			continue
		}

		report.ConvertedCount++
		report.Total = report.Total.Add(res.Amount)

		idx, ok := categoryIndex[e.Category]
		if !ok {
			idx = len(report.ByCategory)
			categoryIndex[e.Category] = idx
			report.ByCategory = append(report.ByCategory, CategoryTotal{Category: e.Category, Total: decimal.Zero})
		}
		report.ByCategory[idx].Total = report.ByCategory[idx].Total.Add(res.Amount)
		report.ByCategory[idx].Count++

		if mi, ok := monthIndex[monthKey(e.Date)]; ok {
			months[mi].Total = months[mi].Total.Add(res.Amount)
			months[mi].Count++
		}

		si, ok := spenderIndex[e.UserID]
		if !ok {
			si = len(spenders)
			spenderIndex[e.UserID] = si
			spenders = append(spenders, SpenderTotal{UserID: e.UserID, Name: userName(in.Users, e.UserID), Total: decimal.Zero})
		}
		spenders[si].Total = spenders[si].Total.Add(res.Amount)
		spenders[si].Count++
	}

	if report.ConvertedCount > 0 {
		report.Average = report.Total.Div(decimal.NewFromInt(int64(report.ConvertedCount)))
	}

	sort.SliceStable(report.ByCategory, func(i, j int) bool {
		return report.ByCategory[i].Total.GreaterThan(report.ByCategory[j].Total)
	})
	sort.SliceStable(spenders, func(i, j int) bool {
		return spenders[i].Total.GreaterThan(spenders[j].Total)
	})
	if len(spenders) > TopSpenderLimit {
		spenders = spenders[:TopSpenderLimit]
	}
	report.TopSpenders = spenders
	report.ByMonth = months

	if report.UnconvertibleCount > 0 && a.logger != nil {
		a.logger.Warn("Expenses excluded from report totals",
			zap.Int("unconvertible", report.UnconvertibleCount),
			zap.Strings("currencies", report.UnconvertibleCurrencies),
			zap.String("target", target))
	}

	return report
}

// monthWindow returns the trailing months ending with now's month, oldest first
func monthWindow(now time.Time) []MonthTotal {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	months := make([]MonthTotal, TrailingMonths)
	for i := 0; i < TrailingMonths; i++ {
		m := first.AddDate(0, i-(TrailingMonths-1), 0)
		months[i] = MonthTotal{Month: monthKey(m), Total: decimal.Zero}
	}
	return months
}

// monthKey reads the calendar month in t's own location. Expense dates are
// calendar dates stored at UTC midnight and must not shift with the clock zone.
func monthKey(t time.Time) string {
	return t.Format("2006-01")
}

func userName(users map[string]*entity.User, id string) string {
	if u, ok := users[id]; ok && u != nil {
		return u.Name
	}
	return ""
}
