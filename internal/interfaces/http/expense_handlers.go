package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-approval/internal/application/service"
	"github.com/garyjia/expense-approval/internal/domain/entity"
)

const dateLayout = "2006-01-02"

// ExpenseRequest is the body of POST /api/expenses
type ExpenseRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Vendor      string          `json:"vendor"`
	Date        string          `json:"date"` // YYYY-MM-DD
}

// ListExpensesRequest represents query parameters for listing expenses
type ListExpensesRequest struct {
	Scope    string `form:"scope"`
	Status   string `form:"status"`
	Category string `form:"category"`
}

// DecisionRequest is the body of POST /api/expenses/:id/decision
type DecisionRequest struct {
	Decision string `json:"decision" binding:"required"`
	Comment  string `json:"comment"`
}

// CreateExpense handles POST /api/expenses. The actor is the submitter.
func (h *Handlers) CreateExpense(c *gin.Context) {
	var req ExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	draft, err := req.draft()
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	expense, err := h.services.Expenses.CreateExpense(c.Request.Context(), currentActor(c).ID, draft)
	if err != nil {
		h.respondError(c, err)
		return
	}
	created(c, expense)
}

// ListExpenses handles GET /api/expenses
func (h *Handlers) ListExpenses(c *gin.Context) {
	var req ListExpensesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid query parameters")
		return
	}

	scope, err := service.ParseScope(req.Scope)
	if err != nil {
		h.respondError(c, err)
		return
	}

	filter := entity.ExpenseFilter{
		Status:   entity.ExpenseStatus(req.Status),
		Category: req.Category,
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		fail(c, http.StatusBadRequest, "unknown status "+req.Status)
		return
	}

	expenses, err := h.services.Expenses.ListForActor(c.Request.Context(), currentActor(c).ID, scope, filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, expenses)
}

// GetExpense handles GET /api/expenses/:id
func (h *Handlers) GetExpense(c *gin.Context) {
	view, err := h.services.Expenses.ViewExpense(c.Request.Context(), c.Param("id"), currentActor(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, view)
}

// GetNextApprover handles GET /api/expenses/:id/next-approver
func (h *Handlers) GetNextApprover(c *gin.Context) {
	next, pending, err := h.services.Expenses.NextApprover(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !pending {
		ok(c, gin.H{"pending": false})
		return
	}
	ok(c, gin.H{"pending": true, "role": next.Role, "users": next.Users})
}

// ApplyDecision handles POST /api/expenses/:id/decision
func (h *Handlers) ApplyDecision(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	decision, valid := parseDecision(req.Decision)
	if !valid {
		fail(c, http.StatusBadRequest, fmt.Sprintf("unknown decision %q", req.Decision))
		return
	}

	expense, err := h.services.Expenses.ApplyDecision(c.Request.Context(), c.Param("id"), decision, req.Comment, currentActor(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, expense)
}

func (r ExpenseRequest) draft() (entity.ExpenseDraft, error) {
	draft := entity.ExpenseDraft{
		Amount:      r.Amount,
		Currency:    r.Currency,
		Category:    r.Category,
		Description: r.Description,
		Vendor:      r.Vendor,
	}
	if r.Date != "" {
		date, err := time.Parse(dateLayout, r.Date)
		if err != nil {
			return draft, fmt.Errorf("date must be YYYY-MM-DD")
		}
		draft.Date = date
	}
	return draft, nil
}

func parseDecision(s string) (entity.Decision, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approve", "approved":
		return entity.DecisionApproved, true
	case "reject", "rejected":
		return entity.DecisionRejected, true
	}
	return "", false
}
