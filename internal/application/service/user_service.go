package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/pkg/utils"
	"github.com/google/uuid"
)

// maxManagerDepth bounds the walk up the management chain when checking for cycles
const maxManagerDepth = 64

// UserInput carries the editable fields of a user
type UserInput struct {
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      entity.Role `json:"role"`
	ManagerID string      `json:"manager_id"`
}

// UserService manages the user directory
type UserService interface {
	CreateUser(ctx context.Context, input UserInput) (*entity.User, error)
	UpdateUser(ctx context.Context, id string, input UserInput) (*entity.User, error)
	GetUser(ctx context.Context, id string) (*entity.User, error)
	ListUsers(ctx context.Context, filter entity.UserFilter) ([]*entity.User, error)
	SeedDemoUsers(ctx context.Context) (int, error)
}

type userServiceImpl struct {
	userRepo  port.UserRepository
	txManager port.TransactionManager
	now       func() time.Time
	logger    Logger
}

// NewUserService creates a new UserService
func NewUserService(userRepo port.UserRepository, txManager port.TransactionManager, logger Logger) UserService {
	return &userServiceImpl{
		userRepo:  userRepo,
		txManager: txManager,
		now:       time.Now,
		logger:    logger,
	}
}

// CreateUser validates and stores a new user
func (s *userServiceImpl) CreateUser(ctx context.Context, input UserInput) (*entity.User, error) {
	now := s.now()
	user := &entity.User{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyInput(user, input)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.validate(txCtx, user); err != nil {
			return err
		}
		return s.userRepo.Create(txCtx, user)
	})
	if err != nil {
		s.logger.Error("Failed to create user", "error", err, "email", user.Email)
		return nil, err
	}

	s.logger.Info("User created", "id", user.ID, "role", string(user.Role))
	return user, nil
}

// UpdateUser replaces the editable fields of an existing user
func (s *userServiceImpl) UpdateUser(ctx context.Context, id string, input UserInput) (*entity.User, error) {
	var user *entity.User
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := requireUser(txCtx, s.userRepo, id)
		if err != nil {
			return err
		}
		applyInput(existing, input)
		existing.UpdatedAt = s.now()

		if err := s.validate(txCtx, existing); err != nil {
			return err
		}
		if err := s.userRepo.Update(txCtx, existing); err != nil {
			return err
		}
		user = existing
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to update user", "error", err, "id", id)
		return nil, err
	}

	s.logger.Info("User updated", "id", id, "role", string(user.Role))
	return user, nil
}

// GetUser retrieves a user by ID
func (s *userServiceImpl) GetUser(ctx context.Context, id string) (*entity.User, error) {
	return requireUser(ctx, s.userRepo, id)
}

// ListUsers lists users matching the filter
func (s *userServiceImpl) ListUsers(ctx context.Context, filter entity.UserFilter) ([]*entity.User, error) {
	users, err := s.userRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list users", "error", err)
		return nil, err
	}
	return users, nil
}

// SeedDemoUsers fills an empty directory with a small demo hierarchy
// and returns how many users were created
func (s *userServiceImpl) SeedDemoUsers(ctx context.Context) (int, error) {
	n, err := s.userRepo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	now := s.now()
	demo := []*entity.User{
		{ID: "user-1", Name: "Alice Admin", Email: "alice@company.com", Role: entity.RoleAdmin},
		{ID: "user-2", Name: "Bob Manager", Email: "bob@company.com", Role: entity.RoleManager, ManagerID: "user-1"},
		{ID: "user-3", Name: "Charlie Employee", Email: "charlie@company.com", Role: entity.RoleEmployee, ManagerID: "user-2"},
		{ID: "user-4", Name: "Diana Employee", Email: "diana@company.com", Role: entity.RoleEmployee, ManagerID: "user-2"},
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, u := range demo {
			u.CreatedAt, u.UpdatedAt = now, now
			if err := s.userRepo.Create(txCtx, u); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to seed demo users", "error", err)
		return 0, err
	}

	s.logger.Info("Demo users seeded", "count", len(demo))
	return len(demo), nil
}

func applyInput(user *entity.User, input UserInput) {
	user.Name = utils.SanitizeString(input.Name)
	user.Email = strings.TrimSpace(input.Email)
	user.Role = input.Role
	user.ManagerID = strings.TrimSpace(input.ManagerID)
}

func (s *userServiceImpl) validate(ctx context.Context, user *entity.User) error {
	if user.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if err := utils.ValidateEmail(user.Email); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !user.Role.IsValid() {
		return fmt.Errorf("%w: unknown role %q", ErrValidation, user.Role)
	}

	other, err := s.userRepo.GetByEmail(ctx, user.Email)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if other != nil && other.ID != user.ID {
		return fmt.Errorf("%w: email %s is already in use", ErrValidation, user.Email)
	}

	if !user.HasManager() {
		if user.Role == entity.RoleEmployee {
			return fmt.Errorf("%w: an employee must have a manager", ErrValidation)
		}
		return nil
	}
	if user.ManagerID == user.ID {
		return fmt.Errorf("%w: a user cannot manage themselves", ErrValidation)
	}

	manager, err := s.userRepo.GetByID(ctx, user.ManagerID)
	if err != nil {
		return fmt.Errorf("get manager: %w", err)
	}
	if manager == nil {
		return fmt.Errorf("%w: manager %s does not exist", ErrValidation, user.ManagerID)
	}
	if manager.Role != entity.RoleManager && manager.Role != entity.RoleAdmin {
		return fmt.Errorf("%w: manager %s is a %s", ErrValidation, manager.ID, manager.Role)
	}

	// walk up the chain so an update cannot close a loop
	current := manager
	for depth := 0; current != nil && current.HasManager(); depth++ {
		if current.ManagerID == user.ID || depth >= maxManagerDepth {
			return fmt.Errorf("%w: management chain would form a cycle", ErrValidation)
		}
		current, err = s.userRepo.GetByID(ctx, current.ManagerID)
		if err != nil {
			return fmt.Errorf("walk management chain: %w", err)
		}
	}
	return nil
}
