package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/currency"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/domain/workflow"
	"github.com/garyjia/expense-approval/pkg/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultMaxAmount is the largest amount accepted on a single expense
var DefaultMaxAmount = decimal.NewFromInt(1_000_000)

// notifyTimeout bounds the best-effort approver notification
const notifyTimeout = 10 * time.Second

// ExpenseView is an expense with its read-time workflow projection for one actor
type ExpenseView struct {
	Expense  *entity.Expense        `json:"expense"`
	Display  workflow.DisplayStatus `json:"display_status"`
	Stage    workflow.State         `json:"stage"`
	NextRole entity.Role            `json:"next_role,omitempty"`
	CanAct   bool                   `json:"can_act"`

	// ConvertedAmount is the amount in the company base currency. Both
	// fields stay empty when no rate is available.
	ConvertedAmount *decimal.Decimal `json:"converted_amount,omitempty"`
	BaseCurrency    string           `json:"base_currency,omitempty"`
}

// CurrencyChecker tells whether a currency code may be submitted. known is
// false when the supported list cannot be loaded.
type CurrencyChecker interface {
	Supported(ctx context.Context, code string) (supported, known bool)
}

// AmountConverter converts an amount into another currency; false means unavailable
type AmountConverter interface {
	Convert(ctx context.Context, amount decimal.Decimal, source, target string) (decimal.Decimal, bool)
}

// NextApprover names who must act next on a pending expense
type NextApprover struct {
	Role  entity.Role    `json:"role"`
	Users []*entity.User `json:"users"`
}

// ExpenseService manages expense submission and approval decisions
type ExpenseService interface {
	CreateExpense(ctx context.Context, submitterID string, draft entity.ExpenseDraft) (*entity.Expense, error)
	GetExpense(ctx context.Context, id string) (*entity.Expense, error)
	ViewExpense(ctx context.Context, id, actorID string) (*ExpenseView, error)
	ListExpenses(ctx context.Context, filter entity.ExpenseFilter) ([]*entity.Expense, error)
	ListForActor(ctx context.Context, actorID string, scope Scope, filter entity.ExpenseFilter) ([]*entity.Expense, error)
	ApplyDecision(ctx context.Context, expenseID string, decision entity.Decision, comment, actorID string) (*entity.Expense, error)
	CanAct(ctx context.Context, expenseID, actorID string) (bool, error)
	NextApprover(ctx context.Context, expenseID string) (*NextApprover, bool, error)
}

// ExpenseServiceConfig holds the tunables of the expense service
type ExpenseServiceConfig struct {
	MaxAmount decimal.Decimal
	Now       func() time.Time
}

type expenseServiceImpl struct {
	expenseRepo port.ExpenseRepository
	userRepo    port.UserRepository
	txManager   port.TransactionManager
	engine      *workflow.Engine
	notifier    port.Notifier
	companyRepo port.CompanyRepository
	converter   AmountConverter
	currencies  CurrencyChecker
	locks       *keyedMutex
	maxAmount   decimal.Decimal
	now         func() time.Time
	logger      Logger
}

// NewExpenseService creates a new ExpenseService. notifier, converter and
// currencies may be nil.
func NewExpenseService(
	expenseRepo port.ExpenseRepository,
	userRepo port.UserRepository,
	companyRepo port.CompanyRepository,
	txManager port.TransactionManager,
	engine *workflow.Engine,
	notifier port.Notifier,
	converter AmountConverter,
	currencies CurrencyChecker,
	cfg ExpenseServiceConfig,
	logger Logger,
) ExpenseService {
	if cfg.MaxAmount.IsZero() {
		cfg.MaxAmount = DefaultMaxAmount
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &expenseServiceImpl{
		expenseRepo: expenseRepo,
		userRepo:    userRepo,
		txManager:   txManager,
		engine:      engine,
		notifier:    notifier,
		companyRepo: companyRepo,
		converter:   converter,
		currencies:  currencies,
		locks:       newKeyedMutex(),
		maxAmount:   cfg.MaxAmount,
		now:         cfg.Now,
		logger:      logger,
	}
}

// CreateExpense validates the draft and stores a new Pending expense
func (s *expenseServiceImpl) CreateExpense(ctx context.Context, submitterID string, draft entity.ExpenseDraft) (*entity.Expense, error) {
	if _, err := requireUser(ctx, s.userRepo, submitterID); err != nil {
		return nil, err
	}

	now := s.now()
	draft.Currency = currency.NormalizeCode(draft.Currency)
	draft.Description = utils.SanitizeString(draft.Description)
	draft.Vendor = utils.SanitizeString(draft.Vendor)
	if err := s.validateDraft(draft, now); err != nil {
		return nil, err
	}
	if err := s.checkCurrency(ctx, draft.Currency); err != nil {
		return nil, err
	}

	expense := &entity.Expense{
		ID:              uuid.NewString(),
		UserID:          submitterID,
		Amount:          draft.Amount,
		Currency:        draft.Currency,
		Category:        entity.NormalizeCategory(draft.Category),
		Description:     draft.Description,
		Vendor:          draft.Vendor,
		Date:            draft.Date,
		Status:          entity.StatusPending,
		ApprovalHistory: []entity.ApprovalEntry{},
		CreatedAt:       now,
	}

	if err := s.expenseRepo.Create(ctx, expense); err != nil {
		s.logger.Error("Failed to create expense", "error", err, "user_id", submitterID)
		return nil, err
	}

	s.logger.Info("Expense created",
		"id", expense.ID,
		"user_id", submitterID,
		"amount", expense.Amount.String(),
		"currency", expense.Currency)

	s.notifyNext(ctx, expense)
	return expense, nil
}

func (s *expenseServiceImpl) validateDraft(draft entity.ExpenseDraft, now time.Time) error {
	if err := utils.ValidateAmount(draft.Amount, s.maxAmount); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := utils.ValidateCurrency(draft.Currency); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if draft.Description == "" {
		return fmt.Errorf("%w: description is required", ErrValidation)
	}
	if err := utils.ValidateExpenseDate(draft.Date, now); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// checkCurrency refuses codes missing from the supported list. An
// unavailable list never blocks submission.
func (s *expenseServiceImpl) checkCurrency(ctx context.Context, code string) error {
	if s.currencies == nil {
		return nil
	}
	supported, known := s.currencies.Supported(ctx, code)
	if !known {
		s.logger.Info("Currency list unavailable, accepting code", "currency", code)
		return nil
	}
	if !supported {
		return fmt.Errorf("%w: unsupported currency %s", ErrValidation, code)
	}
	return nil
}

// GetExpense retrieves an expense by ID
func (s *expenseServiceImpl) GetExpense(ctx context.Context, id string) (*entity.Expense, error) {
	expense, err := s.expenseRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get expense", "error", err, "id", id)
		return nil, err
	}
	if expense == nil {
		return nil, fmt.Errorf("%w: expense %s", ErrNotFound, id)
	}
	return expense, nil
}

// ViewExpense returns the expense with its display status and whether actorID may act on it
func (s *expenseServiceImpl) ViewExpense(ctx context.Context, id, actorID string) (*ExpenseView, error) {
	expense, err := s.GetExpense(ctx, id)
	if err != nil {
		return nil, err
	}
	actor, err := requireUser(ctx, s.userRepo, actorID)
	if err != nil {
		return nil, err
	}
	submitter, err := s.userRepo.GetByID(ctx, expense.UserID)
	if err != nil {
		return nil, fmt.Errorf("get submitter: %w", err)
	}

	view := &ExpenseView{
		Expense: expense,
		Display: s.engine.Workflow().Display(expense),
		Stage:   s.engine.Stage(expense),
		CanAct:  s.engine.CanAct(ctx, expense, actor, submitter),
	}
	if role, ok := s.engine.NextRole(expense); ok {
		view.NextRole = role
	}
	s.convertToBase(ctx, view)
	return view, nil
}

func (s *expenseServiceImpl) convertToBase(ctx context.Context, view *ExpenseView) {
	if s.converter == nil || s.companyRepo == nil {
		return
	}
	company, err := s.companyRepo.Get(ctx)
	if err != nil {
		s.logger.Error("Failed to get company", "error", err)
		return
	}
	if company == nil || company.BaseCurrency == "" {
		return
	}
	amount, ok := s.converter.Convert(ctx, view.Expense.Amount, view.Expense.Currency, company.BaseCurrency)
	if !ok {
		return
	}
	view.ConvertedAmount = &amount
	view.BaseCurrency = company.BaseCurrency
}

// ListExpenses lists expenses matching the filter, newest first
func (s *expenseServiceImpl) ListExpenses(ctx context.Context, filter entity.ExpenseFilter) ([]*entity.Expense, error) {
	expenses, err := s.expenseRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list expenses", "error", err)
		return nil, err
	}
	return expenses, nil
}

// ListForActor lists the expenses actorID may see under scope
func (s *expenseServiceImpl) ListForActor(ctx context.Context, actorID string, scope Scope, filter entity.ExpenseFilter) ([]*entity.Expense, error) {
	actor, err := requireUser(ctx, s.userRepo, actorID)
	if err != nil {
		return nil, err
	}
	ids, err := scopeUserIDs(ctx, s.userRepo, actor, scope)
	if err != nil {
		return nil, err
	}
	filter.UserIDs = ids
	return s.ListExpenses(ctx, filter)
}

// ApplyDecision records an approval or rejection. Decisions on the same
// expense are serialized, and the history row and status change commit together.
func (s *expenseServiceImpl) ApplyDecision(ctx context.Context, expenseID string, decision entity.Decision, comment, actorID string) (*entity.Expense, error) {
	unlock := s.locks.Lock(expenseID)
	defer unlock()

	var updated *entity.Expense
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		expense, err := s.expenseRepo.GetByID(txCtx, expenseID)
		if err != nil {
			return fmt.Errorf("get expense: %w", err)
		}
		if expense == nil {
			return fmt.Errorf("%w: expense %s", ErrNotFound, expenseID)
		}
		actor, err := requireUser(txCtx, s.userRepo, actorID)
		if err != nil {
			return err
		}
		submitter, err := s.userRepo.GetByID(txCtx, expense.UserID)
		if err != nil {
			return fmt.Errorf("get submitter: %w", err)
		}

		next, err := s.engine.ApplyDecision(txCtx, expense, decision, utils.SanitizeString(comment), actor, submitter)
		if err != nil {
			return err
		}

		entry := next.ApprovalHistory[len(next.ApprovalHistory)-1]
		if err := s.expenseRepo.AppendDecision(txCtx, expenseID, entry, next.Status); err != nil {
			return fmt.Errorf("append decision: %w", err)
		}
		updated = next
		return nil
	})

	if err != nil {
		if errors.Is(err, workflow.ErrBlocked) {
			s.logger.Error("Approval history inconsistent with workflow", "expense_id", expenseID, "error", err)
		} else {
			s.logger.Info("Decision refused", "expense_id", expenseID, "actor_id", actorID, "error", err)
		}
		return nil, err
	}

	s.logger.Info("Decision applied",
		"expense_id", expenseID,
		"actor_id", actorID,
		"decision", string(decision),
		"status", string(updated.Status))

	s.notifyNext(ctx, updated)
	return updated, nil
}

// CanAct reports whether actorID may decide on the expense now
func (s *expenseServiceImpl) CanAct(ctx context.Context, expenseID, actorID string) (bool, error) {
	expense, err := s.GetExpense(ctx, expenseID)
	if err != nil {
		return false, err
	}
	actor, err := requireUser(ctx, s.userRepo, actorID)
	if err != nil {
		return false, err
	}
	submitter, err := s.userRepo.GetByID(ctx, expense.UserID)
	if err != nil {
		return false, fmt.Errorf("get submitter: %w", err)
	}
	return s.engine.CanAct(ctx, expense, actor, submitter), nil
}

// NextApprover returns the role and users that can act next.
// The bool is false when the expense is terminal or blocked.
func (s *expenseServiceImpl) NextApprover(ctx context.Context, expenseID string) (*NextApprover, bool, error) {
	expense, err := s.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, false, err
	}
	next, _, ok, err := s.nextApprover(ctx, expense)
	return next, ok, err
}

// nextApprover also returns the submitter it loaded on the way.
func (s *expenseServiceImpl) nextApprover(ctx context.Context, expense *entity.Expense) (*NextApprover, *entity.User, bool, error) {
	role, ok := s.engine.NextRole(expense)
	if !ok {
		return nil, nil, false, nil
	}

	next := &NextApprover{Role: role, Users: []*entity.User{}}
	submitter, err := s.userRepo.GetByID(ctx, expense.UserID)
	if err != nil {
		return nil, nil, false, fmt.Errorf("get submitter: %w", err)
	}

	if role == entity.RoleManager {
		// only the submitter's own manager may act at the Manager stage
		if submitter != nil && submitter.HasManager() {
			manager, err := s.userRepo.GetByID(ctx, submitter.ManagerID)
			if err != nil {
				return nil, nil, false, fmt.Errorf("get manager: %w", err)
			}
			if manager != nil && manager.Role == entity.RoleManager {
				next.Users = append(next.Users, manager)
			}
		}
		return next, submitter, true, nil
	}

	users, err := s.userRepo.List(ctx, entity.UserFilter{Role: role})
	if err != nil {
		return nil, nil, false, fmt.Errorf("list %s users: %w", role, err)
	}
	next.Users = users
	return next, submitter, true, nil
}

// notifyNext tells the next approvers about the expense. Failures are logged only.
func (s *expenseServiceImpl) notifyNext(ctx context.Context, expense *entity.Expense) {
	if s.notifier == nil || expense.Status != entity.StatusPending {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	next, submitter, ok, err := s.nextApprover(ctx, expense)
	if err != nil {
		s.logger.Error("Failed to resolve next approver", "expense_id", expense.ID, "error", err)
		return
	}
	if !ok {
		return
	}
	for _, approver := range next.Users {
		notice := port.ApproverNotice{Expense: expense, Submitter: submitter, Approver: approver}
		if err := s.notifier.NotifyApprover(ctx, notice); err != nil {
			s.logger.Error("Failed to notify approver",
				"expense_id", expense.ID,
				"approver_id", approver.ID,
				"error", err)
			continue
		}
		s.logger.Info("Approver notified", "expense_id", expense.ID, "approver_id", approver.ID)
	}
}
