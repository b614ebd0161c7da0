package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// Engine evaluates and applies approval decisions. It owns no storage:
// callers load the expense and both users, and persist the returned value.
type Engine struct {
	workflow *Workflow
	now      func() time.Time
}

// NewEngine creates an engine for the given workflow
func NewEngine(w *Workflow) *Engine {
	return &Engine{workflow: w, now: time.Now}
}

// WithClock replaces the time source used for history timestamps
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Workflow returns the engine's workflow
func (e *Engine) Workflow() *Workflow {
	return e.workflow
}

// Stage returns the current stage of the expense
func (e *Engine) Stage(exp *entity.Expense) State {
	return e.workflow.Derive(exp)
}

// NextRole returns the role that must act next, or false when no one can
func (e *Engine) NextRole(exp *entity.Expense) (entity.Role, bool) {
	if exp.Status != entity.StatusPending {
		return "", false
	}
	return e.Stage(exp).Role()
}

// CanAct reports whether actor may approve or reject the expense now
func (e *Engine) CanAct(ctx context.Context, exp *entity.Expense, actor, submitter *entity.User) bool {
	return e.Authorize(ctx, exp, actor, submitter) == nil
}

// Authorize explains why actor may not act, or returns nil.
// Approve and reject share one guard, so checking approval is enough.
func (e *Engine) Authorize(ctx context.Context, exp *entity.Expense, actor, submitter *entity.User) error {
	if exp.Status != entity.StatusPending {
		return fmt.Errorf("%w: status is %s", ErrTerminal, exp.Status)
	}

	machine := e.workflow.Machine(exp)
	state := machine.State()
	switch {
	case state == StateBlocked:
		return ErrBlocked
	case state.IsTerminal():
		return fmt.Errorf("%w: stage is %s", ErrTerminal, state)
	}

	if !machine.CanFire(ctx, TriggerApprove, Request{Actor: actor, Submitter: submitter}) {
		return fmt.Errorf("%w: stage %s", ErrUnauthorized, state)
	}
	return nil
}

// ApplyDecision records the actor's decision and returns the updated expense.
// The input expense is left untouched. Every call that succeeds appends exactly
// one history entry, so callers must not replay the same human action.
func (e *Engine) ApplyDecision(ctx context.Context, exp *entity.Expense, decision entity.Decision, comment string, actor, submitter *entity.User) (*entity.Expense, error) {
	trigger, ok := TriggerFor(decision)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}
	if err := e.Authorize(ctx, exp, actor, submitter); err != nil {
		return nil, err
	}

	machine := e.workflow.Machine(exp)
	if err := machine.Fire(ctx, trigger, Request{Actor: actor, Submitter: submitter}); err != nil {
		if errors.Is(err, ErrGuardFailed) {
			return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return nil, err
	}

	next := exp.Clone()
	next.ApprovalHistory = append(next.ApprovalHistory, entity.ApprovalEntry{
		ApproverID:   actor.ID,
		ApproverRole: actor.Role,
		Decision:     decision,
		Comment:      comment,
		Timestamp:    e.now(),
	})

	switch machine.State() {
	case StateRejected:
		next.Status = entity.StatusRejected
	case StateApproved:
		next.Status = entity.StatusApproved
	default:
		next.Status = entity.StatusPending
	}
	return next, nil
}
