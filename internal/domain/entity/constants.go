package entity

// Role identifies what a user may do in the approval workflow
type Role string

const (
	RoleEmployee Role = "Employee"
	RoleManager  Role = "Manager"
	RoleAdmin    Role = "Admin"
)

// IsValid returns true if the role is one of the known roles
func (r Role) IsValid() bool {
	switch r {
	case RoleEmployee, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// ExpenseStatus is the stored workflow status of an expense
type ExpenseStatus string

const (
	StatusPending  ExpenseStatus = "Pending"
	StatusApproved ExpenseStatus = "Approved"
	StatusRejected ExpenseStatus = "Rejected"
)

// IsValid returns true if the status is a known expense status
func (s ExpenseStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// IsTerminal returns true once no further decisions can change the status
func (s ExpenseStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Decision is the outcome an approver records on an expense
type Decision string

const (
	DecisionApproved Decision = "Approved"
	DecisionRejected Decision = "Rejected"
)

// IsValid returns true if the decision is Approved or Rejected
func (d Decision) IsValid() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// Expense categories
const (
	CategoryTravel         = "Travel"
	CategoryMeals          = "Meals & Entertainment"
	CategoryOfficeSupplies = "Office Supplies"
	CategorySoftware       = "Software"
	CategoryHardware       = "Hardware"
	CategoryUtilities      = "Utilities"
	CategoryOther          = "Other"
)

// Categories lists the accepted expense categories in display order
var Categories = []string{
	CategoryTravel,
	CategoryMeals,
	CategoryOfficeSupplies,
	CategorySoftware,
	CategoryHardware,
	CategoryUtilities,
	CategoryOther,
}

// NormalizeCategory maps unknown categories to CategoryOther
func NormalizeCategory(category string) string {
	for _, c := range Categories {
		if c == category {
			return c
		}
	}
	return CategoryOther
}
