package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrGuardFailed is returned when a guard condition fails
	ErrGuardFailed = errors.New("guard condition failed")

	// ErrInvalidWorkflow is returned for an unusable stage sequence
	ErrInvalidWorkflow = errors.New("invalid approval workflow")

	// ErrInvalidDecision is returned for a decision other than Approved or Rejected
	ErrInvalidDecision = errors.New("invalid decision")

	// ErrUnauthorized is returned when the actor may not act on the expense now
	ErrUnauthorized = errors.New("actor is not authorized to act on this expense")

	// ErrTerminal is returned when the expense is already Approved or Rejected
	ErrTerminal = errors.New("expense is in a terminal state")

	// ErrBlocked is returned when the approval history does not fit the workflow
	ErrBlocked = errors.New("approval history is inconsistent with the workflow")
)
