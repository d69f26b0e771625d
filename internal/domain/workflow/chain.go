package workflow

import (
	"context"
	"fmt"

	"github.com/garyjia/ope-approval/internal/domain/entity"
)

type reviveLevelKey struct{}

// WithReviveLevel tags the context with the level whose approver is reviving a rejected chain
func WithReviveLevel(ctx context.Context, level int) context.Context {
	return context.WithValue(ctx, reviveLevelKey{}, level)
}

func reviveLevel(ctx context.Context) int {
	if n, ok := ctx.Value(reviveLevelKey{}).(int); ok {
		return n
	}
	return 0
}

func revivedAt(level int) GuardFunc {
	return func(ctx context.Context) bool {
		return reviveLevel(ctx) == level
	}
}

// chainBuilders holds one transition table per chain depth
var chainBuilders map[int]StateMachineBuilder

func init() {
	chainBuilders = map[int]StateMachineBuilder{
		2: newChainBuilder(2),
		3: newChainBuilder(3),
	}
}

// newChainBuilder wires the approval chain:
//
//	L1 -> L2 [-> L3] -> COMPLETED, REJECT from any pending level or from COMPLETED,
//	REVIVE from REJECTED to the level after the reviving approver.
func newChainBuilder(depth int) StateMachineBuilder {
	b := NewBuilder()

	b.Configure(StateL1Pending).
		Permit(TriggerApprove, StateL2Pending).
		Permit(TriggerReject, StateRejected)

	rejected := b.Configure(StateRejected).
		PermitIf(TriggerRevive, StateL2Pending, revivedAt(1))

	if depth == 3 {
		b.Configure(StateL2Pending).
			Permit(TriggerApprove, StateL3Pending).
			Permit(TriggerReject, StateRejected)
		b.Configure(StateL3Pending).
			Permit(TriggerApprove, StateCompleted).
			Permit(TriggerReject, StateRejected)
		rejected.
			PermitIf(TriggerRevive, StateL3Pending, revivedAt(2)).
			PermitIf(TriggerRevive, StateCompleted, revivedAt(3))
	} else {
		b.Configure(StateL2Pending).
			Permit(TriggerApprove, StateCompleted).
			Permit(TriggerReject, StateRejected)
		rejected.PermitIf(TriggerRevive, StateCompleted, revivedAt(2))
	}

	b.Configure(StateCompleted).
		Permit(TriggerReject, StateRejected)

	return b
}

// NewChainMachine returns a machine for a chain of the given depth positioned at state
func NewChainMachine(depth int, state State) (StateMachine, error) {
	b, ok := chainBuilders[depth]
	if !ok {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDepth, depth)
	}
	return b.Build(state)
}

// MachineFor returns a machine positioned at the batch's current state
func MachineFor(b *entity.ApprovalBatch) (StateMachine, error) {
	state, err := StateOf(b)
	if err != nil {
		return nil, err
	}
	return NewChainMachine(b.TotalLevels, state)
}

// StateOf derives the chain state from the batch's stored status and level pointer
func StateOf(b *entity.ApprovalBatch) (State, error) {
	switch b.OverallStatus {
	case entity.OverallStatusApproved:
		return StateCompleted, nil
	case entity.OverallStatusRejected:
		return StateRejected, nil
	case entity.OverallStatusPending:
		if s, ok := PendingState(entity.LevelNumber(b.CurrentLevel)); ok && entity.LevelNumber(b.CurrentLevel) <= b.TotalLevels {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: batch %s has status %q at level %q", ErrInvalidState, b.ID, b.OverallStatus, b.CurrentLevel)
}

// Apply writes a chain state back onto the batch.
// A rejected batch keeps its level pointer on the rejected level.
func Apply(b *entity.ApprovalBatch, s State) {
	switch s {
	case StateCompleted:
		b.OverallStatus = entity.OverallStatusApproved
		b.CurrentLevel = entity.LevelCompleted
	case StateRejected:
		b.OverallStatus = entity.OverallStatusRejected
		if b.RejectedLevel != "" {
			b.CurrentLevel = b.RejectedLevel
		} else if b.CurrentLevel == entity.LevelCompleted {
			b.CurrentLevel = entity.LevelName(b.TotalLevels)
		}
	default:
		b.OverallStatus = entity.OverallStatusPending
		b.CurrentLevel = entity.LevelName(s.PendingLevel())
	}
}
