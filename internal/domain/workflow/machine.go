package workflow

import (
	"context"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// Request carries the parties involved in a transition. Guards read it
// instead of looking anything up.
type Request struct {
	Actor     *entity.User
	Submitter *entity.User
}

// StateMachine represents a state machine that tracks current state and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is permitted in the current state and a guard passes for req
	CanFire(ctx context.Context, trigger Trigger, req Request) bool

	// Fire attempts to execute the trigger, transitioning to the new state if allowed
	Fire(ctx context.Context, trigger Trigger, req Request) error

	// PermittedTriggers returns all triggers configured for the current state
	PermittedTriggers() []Trigger
}
