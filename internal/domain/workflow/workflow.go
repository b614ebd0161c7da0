package workflow

import (
	"context"
	"fmt"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// Workflow is the ordered sequence of roles an expense must pass through.
// It is process-wide configuration, not per expense.
type Workflow struct {
	stages  []entity.Role
	builder StateMachineBuilder
}

// DefaultStages is the escalation order used when none is configured
var DefaultStages = []entity.Role{entity.RoleManager, entity.RoleAdmin}

// New validates the stage sequence and prepares its state machine
func New(stages ...entity.Role) (*Workflow, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("%w: no stages", ErrInvalidWorkflow)
	}

	seen := make(map[entity.Role]bool, len(stages))
	for _, role := range stages {
		if !role.IsValid() {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidWorkflow, role)
		}
		if seen[role] {
			return nil, fmt.Errorf("%w: role %s appears more than once", ErrInvalidWorkflow, role)
		}
		seen[role] = true
	}

	w := &Workflow{stages: append([]entity.Role{}, stages...)}
	w.builder = w.configure()
	return w, nil
}

// MustNew is like New but panics on an invalid sequence
func MustNew(stages ...entity.Role) *Workflow {
	w, err := New(stages...)
	if err != nil {
		panic(err)
	}
	return w
}

// ParseStages converts configured role names into roles
func ParseStages(names []string) ([]entity.Role, error) {
	roles := make([]entity.Role, 0, len(names))
	for _, name := range names {
		role := entity.Role(name)
		if !role.IsValid() {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidWorkflow, name)
		}
		roles = append(roles, role)
	}
	return roles, nil
}

// Stages returns a copy of the configured role sequence
func (w *Workflow) Stages() []entity.Role {
	return append([]entity.Role{}, w.stages...)
}

// IndexOf returns the position of role in the sequence, or -1
func (w *Workflow) IndexOf(role entity.Role) int {
	for i, r := range w.stages {
		if r == role {
			return i
		}
	}
	return -1
}

// configure wires one awaiting stage per role. Approval advances to the next
// role's stage, or to APPROVED from the last one; rejection is terminal from
// any stage. Terminal and blocked states get no transitions.
func (w *Workflow) configure() StateMachineBuilder {
	b := NewBuilder()
	for i, role := range w.stages {
		next := StateApproved
		if i < len(w.stages)-1 {
			next = AwaitingState(w.stages[i+1])
		}
		guard := stageGuard(role)
		b.Configure(AwaitingState(role)).
			PermitIf(TriggerApprove, next, guard).
			PermitIf(TriggerReject, StateRejected, guard)
	}
	return b
}

// stageGuard admits actors holding role. The Manager stage only admits the
// submitter's direct manager.
func stageGuard(role entity.Role) GuardFunc {
	return func(ctx context.Context, req Request) bool {
		if req.Actor == nil || req.Actor.Role != role {
			return false
		}
		if role == entity.RoleManager {
			return req.Submitter != nil &&
				req.Submitter.ManagerID != "" &&
				req.Submitter.ManagerID == req.Actor.ID
		}
		return true
	}
}

// Derive computes the current stage from the stored status and history.
// Rejected entries never advance a stage; the most recent Approved entry
// decides where the expense stands.
func (w *Workflow) Derive(e *entity.Expense) State {
	if e.Status == entity.StatusRejected {
		return StateRejected
	}

	for i := len(e.ApprovalHistory) - 1; i >= 0; i-- {
		entry := e.ApprovalHistory[i]
		if entry.Decision != entity.DecisionApproved {
			continue
		}
		idx := w.IndexOf(entry.ApproverRole)
		switch {
		case idx < 0:
			return StateBlocked
		case idx == len(w.stages)-1:
			return StateApproved
		default:
			return AwaitingState(w.stages[idx+1])
		}
	}

	if e.Status == entity.StatusApproved {
		// approved without any approval on record
		return StateBlocked
	}
	return AwaitingState(w.stages[0])
}

// Machine builds a state machine positioned at the expense's current stage
func (w *Workflow) Machine(e *entity.Expense) StateMachine {
	return w.builder.Build(w.Derive(e))
}
