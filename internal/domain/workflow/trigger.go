package workflow

// Trigger represents an approver action that can move a batch
type Trigger string

const (
	TriggerApprove Trigger = "APPROVE"
	TriggerReject  Trigger = "REJECT"
	TriggerRevive  Trigger = "REVIVE"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
