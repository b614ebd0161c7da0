package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateAwaitingEmployee, false},
		{StateAwaitingManager, false},
		{StateAwaitingAdmin, false},
		{StateBlocked, false},
		{StateApproved, true},
		{StateRejected, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"valid state", StateAwaitingManager, true},
		{"valid state", StateBlocked, true},
		{"invalid state", State("INVALID"), false},
		{"empty state", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_Role(t *testing.T) {
	role, ok := StateAwaitingAdmin.Role()
	if !ok || role != entity.RoleAdmin {
		t.Errorf("StateAwaitingAdmin.Role() = %v, %v, want Admin, true", role, ok)
	}

	for _, s := range []State{StateApproved, StateRejected, StateBlocked} {
		if _, ok := s.Role(); ok {
			t.Errorf("%s.Role() should report no role", s)
		}
		if s.IsActionable() {
			t.Errorf("%s should not be actionable", s)
		}
	}
}

func TestParseState(t *testing.T) {
	s, ok := ParseState(" awaiting_manager ")
	if !ok || s != StateAwaitingManager {
		t.Errorf("ParseState() = %v, %v", s, ok)
	}
	if _, ok := ParseState("nope"); ok {
		t.Error("ParseState() should reject unknown names")
	}
}

func TestTriggerFor(t *testing.T) {
	if tr, ok := TriggerFor(entity.DecisionApproved); !ok || tr != TriggerApprove {
		t.Errorf("TriggerFor(Approved) = %v, %v", tr, ok)
	}
	if tr, ok := TriggerFor(entity.DecisionRejected); !ok || tr != TriggerReject {
		t.Errorf("TriggerFor(Rejected) = %v, %v", tr, ok)
	}
	if _, ok := TriggerFor(entity.Decision("Maybe")); ok {
		t.Error("TriggerFor() should reject unknown decisions")
	}
}

func TestBuilder_Configure(t *testing.T) {
	builder := NewBuilder()

	config := builder.Configure(StateAwaitingManager)
	if config == nil {
		t.Fatal("Configure() returned nil")
	}

	config2 := builder.Configure(StateAwaitingManager)
	if config != config2 {
		t.Error("Configure() should return same config for same state")
	}
}

func TestBuilder_ConfigurePanicsOnInvalidState(t *testing.T) {
	builder := NewBuilder()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Configure() should panic on invalid state")
		}
	}()

	builder.Configure(State("INVALID"))
}

func TestBuilder_BuildPanicsOnInvalidInitialState(t *testing.T) {
	builder := NewBuilder()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Build() should panic on invalid initial state")
		}
	}()

	builder.Build(State("INVALID"))
}

func TestStateConfiguration_Permit(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateAwaitingManager).
		Permit(TriggerApprove, StateAwaitingAdmin)

	machine := builder.Build(StateAwaitingManager)
	ctx := context.Background()

	if !machine.CanFire(ctx, TriggerApprove, Request{}) {
		t.Error("CanFire() should return true for permitted trigger")
	}

	if err := machine.Fire(ctx, TriggerApprove, Request{}); err != nil {
		t.Errorf("Fire() failed: %v", err)
	}

	if machine.State() != StateAwaitingAdmin {
		t.Errorf("State after Fire() = %v, want %v", machine.State(), StateAwaitingAdmin)
	}
}

func TestStateConfiguration_PermitIf_GuardFails(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateAwaitingManager).
		PermitIf(TriggerApprove, StateAwaitingAdmin, func(ctx context.Context, req Request) bool {
			return false
		})

	machine := builder.Build(StateAwaitingManager)

	if machine.CanFire(context.Background(), TriggerApprove, Request{}) {
		t.Error("CanFire() should evaluate the guard")
	}

	err := machine.Fire(context.Background(), TriggerApprove, Request{})
	if err == nil {
		t.Fatal("Fire() should fail when guard fails")
	}
	if !errors.Is(err, ErrGuardFailed) {
		t.Errorf("Fire() error = %v, want %v", err, ErrGuardFailed)
	}
	if machine.State() != StateAwaitingManager {
		t.Errorf("State should remain %v after failed Fire(), got %v", StateAwaitingManager, machine.State())
	}
}

func TestStateConfiguration_PermitIf_MultipleTransitions(t *testing.T) {
	isAdmin := func(ctx context.Context, req Request) bool {
		return req.Actor != nil && req.Actor.Role == entity.RoleAdmin
	}
	builder := NewBuilder()
	builder.Configure(StateAwaitingManager).
		PermitIf(TriggerApprove, StateApproved, isAdmin).
		PermitIf(TriggerApprove, StateAwaitingAdmin, func(ctx context.Context, req Request) bool {
			return !isAdmin(ctx, req)
		})

	machine1 := builder.Build(StateAwaitingManager)
	admin := Request{Actor: &entity.User{ID: "a", Role: entity.RoleAdmin}}
	if err := machine1.Fire(context.Background(), TriggerApprove, admin); err != nil {
		t.Errorf("Fire() failed: %v", err)
	}
	if machine1.State() != StateApproved {
		t.Errorf("State after Fire() = %v, want %v", machine1.State(), StateApproved)
	}

	machine2 := builder.Build(StateAwaitingManager)
	manager := Request{Actor: &entity.User{ID: "m", Role: entity.RoleManager}}
	if err := machine2.Fire(context.Background(), TriggerApprove, manager); err != nil {
		t.Errorf("Fire() failed: %v", err)
	}
	if machine2.State() != StateAwaitingAdmin {
		t.Errorf("State after Fire() = %v, want %v", machine2.State(), StateAwaitingAdmin)
	}
}

func TestStateConfiguration_PermitPanicsOnInvalidState(t *testing.T) {
	builder := NewBuilder()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Permit() should panic on invalid target state")
		}
	}()

	builder.Configure(StateAwaitingManager).Permit(TriggerApprove, State("INVALID"))
}

func TestStateMachine_Fire_InvalidTransition(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateAwaitingManager).
		Permit(TriggerApprove, StateAwaitingAdmin)

	machine := builder.Build(StateAwaitingManager)

	err := machine.Fire(context.Background(), TriggerReject, Request{})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire() error = %v, want %v", err, ErrInvalidTransition)
	}
	if machine.State() != StateAwaitingManager {
		t.Errorf("State should remain %v after failed Fire(), got %v", StateAwaitingManager, machine.State())
	}
}

func TestStateMachine_Fire_NoConfiguration(t *testing.T) {
	machine := NewBuilder().Build(StateApproved)

	err := machine.Fire(context.Background(), TriggerApprove, Request{})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire() error = %v, want %v", err, ErrInvalidTransition)
	}
	if len(machine.PermittedTriggers()) != 0 {
		t.Error("unconfigured state should have no permitted triggers")
	}
}

func TestStateMachine_PermittedTriggers(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateAwaitingAdmin).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerApprove, StateApproved)

	triggers := builder.Build(StateAwaitingAdmin).PermittedTriggers()
	if len(triggers) != 2 || triggers[0] != TriggerApprove || triggers[1] != TriggerReject {
		t.Errorf("PermittedTriggers() = %v, want [APPROVE REJECT]", triggers)
	}
}

func TestStateMachine_Immutability(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateAwaitingManager).
		Permit(TriggerApprove, StateAwaitingAdmin)

	machine1 := builder.Build(StateAwaitingManager)
	machine2 := builder.Build(StateAwaitingManager)

	if err := machine1.Fire(context.Background(), TriggerApprove, Request{}); err != nil {
		t.Errorf("Fire() failed: %v", err)
	}

	if machine2.State() != StateAwaitingManager {
		t.Errorf("machine2 state = %v, want %v (machines should be independent)", machine2.State(), StateAwaitingManager)
	}

	// configuring the builder afterwards must not leak into built machines
	builder.Configure(StateAwaitingManager).Permit(TriggerReject, StateRejected)
	if machine2.CanFire(context.Background(), TriggerReject, Request{}) {
		t.Error("machine2 should not see transitions added after Build()")
	}
}
