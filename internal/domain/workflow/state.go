package workflow

// State represents a position of an approval batch in its level chain
type State string

const (
	StateL1Pending State = "L1_PENDING"
	StateL2Pending State = "L2_PENDING"
	StateL3Pending State = "L3_PENDING"
	StateCompleted State = "COMPLETED"
	StateRejected  State = "REJECTED"
)

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid chain state.
// Chain tables are built during package initialization, so this must not
// depend on package-level variables.
func (s State) IsValid() bool {
	switch s {
	case StateL1Pending, StateL2Pending, StateL3Pending, StateCompleted, StateRejected:
		return true
	}
	return false
}

// PendingLevel returns the level number awaiting action, or 0 when the chain
// is completed or rejected
func (s State) PendingLevel() int {
	switch s {
	case StateL1Pending:
		return 1
	case StateL2Pending:
		return 2
	case StateL3Pending:
		return 3
	}
	return 0
}

// PendingState returns the pending state for a 1-based level number
func PendingState(level int) (State, bool) {
	switch level {
	case 1:
		return StateL1Pending, true
	case 2:
		return StateL2Pending, true
	case 3:
		return StateL3Pending, true
	}
	return "", false
}
