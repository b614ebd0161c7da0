package workflow

import "github.com/garyjia/expense-approval/internal/domain/entity"

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerApprove Trigger = "APPROVE"
	TriggerReject  Trigger = "REJECT"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// TriggerFor maps an approver decision to its trigger
func TriggerFor(decision entity.Decision) (Trigger, bool) {
	switch decision {
	case entity.DecisionApproved:
		return TriggerApprove, true
	case entity.DecisionRejected:
		return TriggerReject, true
	}
	return "", false
}
