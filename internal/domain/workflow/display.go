package workflow

import "github.com/garyjia/expense-approval/internal/domain/entity"

// DisplayStatus is a read-only projection of status and history for presentation
type DisplayStatus string

const (
	DisplayPending  DisplayStatus = "Pending"
	DisplayApproved DisplayStatus = "Approved"
	DisplayRejected DisplayStatus = "Rejected"
	DisplayBlocked  DisplayStatus = "Blocked"
)

// DisplayAwaiting is shown once at least one stage has approved
func DisplayAwaiting(role entity.Role) DisplayStatus {
	return DisplayStatus("Awaiting " + string(role))
}

// Display projects the expense onto its display status. It is computed on
// read and never stored.
func (w *Workflow) Display(e *entity.Expense) DisplayStatus {
	switch e.Status {
	case entity.StatusApproved:
		return DisplayApproved
	case entity.StatusRejected:
		return DisplayRejected
	}
	state := w.Derive(e)
	if state == StateBlocked {
		return DisplayBlocked
	}
	if role, ok := state.Role(); ok && e.ApprovalCount() > 0 {
		return DisplayAwaiting(role)
	}
	return DisplayPending
}
