package service

import (
	"context"
	"fmt"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// Scope selects whose expenses a listing or report covers
type Scope string

const (
	ScopeOwn     Scope = "own"
	ScopeTeam    Scope = "team"
	ScopeCompany Scope = "company"
)

// ParseScope parses a scope name; empty means own
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "", ScopeOwn:
		return ScopeOwn, nil
	case ScopeTeam, ScopeCompany:
		return Scope(s), nil
	}
	return "", fmt.Errorf("%w: unknown scope %q", ErrValidation, s)
}

// scopeUserIDs returns the submitters visible to actor under scope.
// A nil slice means every submitter.
func scopeUserIDs(ctx context.Context, users port.UserRepository, actor *entity.User, scope Scope) ([]string, error) {
	switch scope {
	case ScopeOwn:
		return []string{actor.ID}, nil

	case ScopeTeam:
		if actor.Role != entity.RoleManager && actor.Role != entity.RoleAdmin {
			return nil, fmt.Errorf("%w: %s cannot view team expenses", ErrForbiddenScope, actor.Role)
		}
		reports, err := users.List(ctx, entity.UserFilter{ManagerID: actor.ID})
		if err != nil {
			return nil, fmt.Errorf("list direct reports: %w", err)
		}
		ids := make([]string, 0, len(reports))
		for _, u := range reports {
			ids = append(ids, u.ID)
		}
		return ids, nil

	case ScopeCompany:
		if actor.Role != entity.RoleAdmin {
			return nil, fmt.Errorf("%w: %s cannot view company expenses", ErrForbiddenScope, actor.Role)
		}
		return nil, nil
	}
	return nil, fmt.Errorf("%w: unknown scope %q", ErrValidation, scope)
}

// requireUser loads a user or returns ErrNotFound
func requireUser(ctx context.Context, users port.UserRepository, id string) (*entity.User, error) {
	user, err := users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	return user, nil
}
