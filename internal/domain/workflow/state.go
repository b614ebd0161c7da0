package workflow

import (
	"strings"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// State is a named stage of the approval lifecycle
type State string

const (
	StateAwaitingEmployee State = "AWAITING_EMPLOYEE"
	StateAwaitingManager  State = "AWAITING_MANAGER"
	StateAwaitingAdmin    State = "AWAITING_ADMIN"
	StateApproved         State = "APPROVED"
	StateRejected         State = "REJECTED"
	// StateBlocked marks history that cannot be placed in the configured
	// workflow. Nothing may act on a blocked expense.
	StateBlocked State = "BLOCKED"
)

var awaitingStates = map[entity.Role]State{
	entity.RoleEmployee: StateAwaitingEmployee,
	entity.RoleManager:  StateAwaitingManager,
	entity.RoleAdmin:    StateAwaitingAdmin,
}

var validStates = map[State]bool{
	StateAwaitingEmployee: true,
	StateAwaitingManager:  true,
	StateAwaitingAdmin:    true,
	StateApproved:         true,
	StateRejected:         true,
	StateBlocked:          true,
}

var terminalStates = map[State]bool{
	StateApproved: true,
	StateRejected: true,
}

// AwaitingState returns the stage in which the given role must act
func AwaitingState(role entity.Role) State {
	if s, ok := awaitingStates[role]; ok {
		return s
	}
	return StateBlocked
}

// Role returns the role awaited in this state, if any
func (s State) Role() (entity.Role, bool) {
	for role, state := range awaitingStates {
		if state == s {
			return role, true
		}
	}
	return "", false
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsActionable returns true if some approver may still act in this state
func (s State) IsActionable() bool {
	_, ok := s.Role()
	return ok
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}

// ParseState parses a state name case-insensitively
func ParseState(name string) (State, bool) {
	s := State(strings.ToUpper(strings.TrimSpace(name)))
	return s, s.IsValid()
}
