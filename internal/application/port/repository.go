package port

import (
	"context"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// UserRepository defines persistence operations for User.
// Get methods return (nil, nil) when the user does not exist.
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	Update(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	List(ctx context.Context, filter entity.UserFilter) ([]*entity.User, error)
	Count(ctx context.Context) (int, error)
}

// ExpenseRepository defines persistence operations for Expense.
// GetByID returns (nil, nil) when the expense does not exist.
type ExpenseRepository interface {
	Create(ctx context.Context, expense *entity.Expense) error
	GetByID(ctx context.Context, id string) (*entity.Expense, error)
	List(ctx context.Context, filter entity.ExpenseFilter) ([]*entity.Expense, error)
	// AppendDecision stores entry as the next history row and sets the status
	AppendDecision(ctx context.Context, expenseID string, entry entity.ApprovalEntry, status entity.ExpenseStatus) error
}

// CompanyRepository defines persistence operations for the single Company row
type CompanyRepository interface {
	Get(ctx context.Context) (*entity.Company, error)
	Upsert(ctx context.Context, company *entity.Company) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
