package entity

import "time"

// User is an employee, manager or admin of the company
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	ManagerID string    `json:"manager_id,omitempty"` // direct manager, empty for top-level users
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasManager returns true if the user reports to someone
func (u *User) HasManager() bool {
	return u.ManagerID != ""
}

// UserFilter narrows a user listing. Zero values match everything.
type UserFilter struct {
	Role      Role
	ManagerID string
}

// Matches returns true if the user satisfies the filter
func (f UserFilter) Matches(u *User) bool {
	if f.Role != "" && u.Role != f.Role {
		return false
	}
	if f.ManagerID != "" && u.ManagerID != f.ManagerID {
		return false
	}
	return true
}
