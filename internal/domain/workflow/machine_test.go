package workflow

import (
	"context"
	"errors"
	"testing"
)

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"pending level", StateL2Pending, true},
		{"completed", StateCompleted, true},
		{"invalid state", State("L4_PENDING"), false},
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

func TestState_PendingLevel(t *testing.T) {
	if got := StateL3Pending.PendingLevel(); got != 3 {
		t.Errorf("PendingLevel() = %d, want 3", got)
	}
	if got := StateCompleted.PendingLevel(); got != 0 {
		t.Errorf("PendingLevel() = %d, want 0", got)
	}
	if s, ok := PendingState(2); !ok || s != StateL2Pending {
		t.Errorf("PendingState(2) = %v, %v", s, ok)
	}
	if _, ok := PendingState(4); ok {
		t.Error("PendingState(4) should not resolve")
	}
}

func TestBuilder_BuildRejectsInvalidState(t *testing.T) {
	_, err := NewBuilder().Build(State("BOGUS"))
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("Build() error = %v, want %v", err, ErrInvalidState)
	}
}

func TestBuilder_ConfigurePanicsOnInvalidState(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Configure() should panic on invalid state")
		}
	}()

	NewBuilder().Configure(State("BOGUS"))
}

func TestStateConfiguration_PermitPanicsOnInvalidTarget(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Permit() should panic on invalid target state")
		}
	}()

	NewBuilder().Configure(StateL1Pending).Permit(TriggerApprove, State("BOGUS"))
}

func TestStateMachine_GuardOrder(t *testing.T) {
	type flagKey struct{}
	flag := func(ctx context.Context) bool {
		v, _ := ctx.Value(flagKey{}).(bool)
		return v
	}

	builder := NewBuilder()
	builder.Configure(StateL2Pending).
		PermitIf(TriggerApprove, StateL3Pending, flag).
		Permit(TriggerApprove, StateCompleted)

	m1, _ := builder.Build(StateL2Pending)
	if err := m1.Fire(context.WithValue(context.Background(), flagKey{}, true), TriggerApprove); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if m1.State() != StateL3Pending {
		t.Errorf("State after guarded Fire() = %v, want %v", m1.State(), StateL3Pending)
	}

	m2, _ := builder.Build(StateL2Pending)
	if err := m2.Fire(context.Background(), TriggerApprove); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if m2.State() != StateCompleted {
		t.Errorf("State after fallback Fire() = %v, want %v", m2.State(), StateCompleted)
	}
}

func TestStateMachine_GuardFailed(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateRejected).
		PermitIf(TriggerRevive, StateL2Pending, func(context.Context) bool { return false })

	m, _ := builder.Build(StateRejected)
	if m.CanFire(context.Background(), TriggerRevive) {
		t.Error("CanFire() should evaluate guards")
	}

	err := m.Fire(context.Background(), TriggerRevive)
	if !errors.Is(err, ErrGuardFailed) {
		t.Errorf("Fire() error = %v, want %v", err, ErrGuardFailed)
	}
	if m.State() != StateRejected {
		t.Errorf("State should remain %v after failed Fire(), got %v", StateRejected, m.State())
	}
}

func TestStateMachine_Fire_InvalidTransition(t *testing.T) {
	m, _ := NewBuilder().Build(StateCompleted)

	err := m.Fire(context.Background(), TriggerApprove)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire() error = %v, want %v", err, ErrInvalidTransition)
	}
}

func TestStateMachine_Immutability(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateL1Pending).Permit(TriggerApprove, StateL2Pending)

	m1, _ := builder.Build(StateL1Pending)
	m2, _ := builder.Build(StateL1Pending)

	builder.Configure(StateL1Pending).Permit(TriggerReject, StateRejected)

	if err := m1.Fire(context.Background(), TriggerApprove); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if m2.State() != StateL1Pending {
		t.Errorf("machines should not share state, got %v", m2.State())
	}
	if m2.CanFire(context.Background(), TriggerReject) {
		t.Error("machine should not see transitions added after Build()")
	}
}

func TestStateMachine_CanFireFollowsTable(t *testing.T) {
	m, err := NewChainMachine(3, StateRejected)
	if err != nil {
		t.Fatalf("NewChainMachine() failed: %v", err)
	}
	ctx := context.Background()

	if m.CanFire(ctx, TriggerApprove) || m.CanFire(ctx, TriggerReject) {
		t.Error("a rejected chain only accepts REVIVE")
	}
	if !m.CanFire(WithReviveLevel(ctx, 2), TriggerRevive) {
		t.Error("REVIVE at level 2 should be permitted")
	}

	m, _ = NewChainMachine(2, StateL1Pending)
	if !m.CanFire(ctx, TriggerApprove) || !m.CanFire(ctx, TriggerReject) {
		t.Error("a pending level accepts APPROVE and REJECT")
	}
	if m.CanFire(ctx, TriggerRevive) {
		t.Error("a pending level does not accept REVIVE")
	}
}
