package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ApprovalEntry is one recorded decision in an expense's approval history
type ApprovalEntry struct {
	ApproverID   string    `json:"approver_id"`
	ApproverRole Role      `json:"approver_role"` // role held when the decision was made
	Decision     Decision  `json:"decision"`
	Comment      string    `json:"comment"`
	Timestamp    time.Time `json:"timestamp"`
}

// Expense is a submitted expense and its workflow state.
// Submission fields never change after creation; Status and ApprovalHistory
// are only changed by applying a decision.
type Expense struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Category        string          `json:"category"`
	Description     string          `json:"description"`
	Vendor          string          `json:"vendor,omitempty"`
	Date            time.Time       `json:"date"`
	Status          ExpenseStatus   `json:"status"`
	ApprovalHistory []ApprovalEntry `json:"approval_history"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Clone returns a copy whose history can be appended without touching the original
func (e *Expense) Clone() *Expense {
	c := *e
	c.ApprovalHistory = make([]ApprovalEntry, len(e.ApprovalHistory))
	copy(c.ApprovalHistory, e.ApprovalHistory)
	return &c
}

// ApprovalCount returns the number of Approved entries in the history
func (e *Expense) ApprovalCount() int {
	n := 0
	for _, h := range e.ApprovalHistory {
		if h.Decision == DecisionApproved {
			n++
		}
	}
	return n
}

// ExpenseDraft carries the user-entered submission fields of a new expense
type ExpenseDraft struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Vendor      string          `json:"vendor,omitempty"`
	Date        time.Time       `json:"date"`
}

// ReceiptDraft is a best-effort extraction from a receipt image.
// Nil fields were not recognized.
type ReceiptDraft struct {
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Currency    *string          `json:"currency,omitempty"`
	Date        *time.Time       `json:"date,omitempty"`
	Vendor      *string          `json:"vendor,omitempty"`
	Description *string          `json:"description,omitempty"`
	Category    *string          `json:"category,omitempty"`
}

// Seed overlays the recognized receipt fields onto the fallback draft
func (r *ReceiptDraft) Seed(fallback ExpenseDraft) ExpenseDraft {
	if r == nil {
		return fallback
	}
	out := fallback
	if r.Amount != nil && r.Amount.IsPositive() {
		out.Amount = *r.Amount
	}
	if r.Currency != nil && *r.Currency != "" {
		out.Currency = *r.Currency
	}
	if r.Date != nil && !r.Date.IsZero() {
		out.Date = *r.Date
	}
	if r.Vendor != nil && *r.Vendor != "" {
		out.Vendor = *r.Vendor
	}
	if r.Description != nil && *r.Description != "" {
		out.Description = *r.Description
	}
	if r.Category != nil && *r.Category != "" {
		out.Category = NormalizeCategory(*r.Category)
	}
	return out
}

// ExpenseFilter narrows an expense listing. Zero values match everything;
// a non-nil empty UserIDs matches nothing.
type ExpenseFilter struct {
	UserIDs  []string
	Status   ExpenseStatus
	Category string
}

// Matches returns true if the expense satisfies the filter
func (f ExpenseFilter) Matches(e *Expense) bool {
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.UserIDs != nil {
		for _, id := range f.UserIDs {
			if id == e.UserID {
				return true
			}
		}
		return false
	}
	return true
}
