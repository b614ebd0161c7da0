package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrailingMonths is the number of calendar months in the monthly series,
// including the current one
const TrailingMonths = 6

// TopSpenderLimit caps the top spender ranking
const TopSpenderLimit = 5

// Report is the aggregated spend of a set of expenses in one currency
type Report struct {
	Currency    string    `json:"currency"`
	GeneratedAt time.Time `json:"generated_at"`

	TotalSubmissions   int `json:"total_submissions"`
	ApprovedCount      int `json:"approved_count"`
	ConvertedCount     int `json:"converted_count"`
	UnconvertibleCount int `json:"unconvertible_count"`
	PendingCount       int `json:"pending_count"`
	RejectedCount      int `json:"rejected_count"`

	Total   decimal.Decimal `json:"total"`
	Average decimal.Decimal `json:"average"` // Total / ConvertedCount

	ByCategory              []CategoryTotal `json:"by_category"`
	ByMonth                 []MonthTotal    `json:"by_month"`
	TopSpenders             []SpenderTotal  `json:"top_spenders"`
	UnconvertibleCurrencies []string        `json:"unconvertible_currencies"`
}

// CategoryTotal is the converted approved spend of one category
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

// MonthTotal is the converted approved spend of one calendar month
type MonthTotal struct {
	Month string          `json:"month"` // YYYY-MM
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// SpenderTotal is the converted approved spend of one submitter
type SpenderTotal struct {
	UserID string          `json:"user_id"`
	Name   string          `json:"name,omitempty"`
	Total  decimal.Decimal `json:"total"`
	Count  int             `json:"count"`
}
