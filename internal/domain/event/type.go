package event

// Type identifies the type of domain event
type Type string

const (
	TypeBatchSubmitted   Type = "batch.submitted"
	TypeLevelApproved    Type = "level.approved"
	TypeBatchRejected    Type = "batch.rejected"
	TypeEntryReapproved  Type = "entry.reapproved"
	TypeEntryRerejected  Type = "entry.rerejected"
	TypeAmountEdited     Type = "amount.edited"
	TypeMonthTotalEdited Type = "month_total.edited"
)

// Payload keys shared by publishers and subscribers
const (
	KeyActorCode     = "actor_code"
	KeyActorRole     = "actor_role"
	KeyLevel         = "level"
	KeyNextApprover  = "next_approver_code"
	KeyNextRole      = "next_role"
	KeyEntryID       = "entry_id"
	KeyCount         = "count"
	KeyStillRejected = "still_rejected"
	KeyStillApproved = "still_approved"
	KeyOldAmount     = "old_amount"
	KeyNewAmount     = "new_amount"
	KeyDistribution  = "distribution_method"
)

// AllTypes lists every event type in publication order of a chain's life
var AllTypes = []Type{
	TypeBatchSubmitted,
	TypeLevelApproved,
	TypeBatchRejected,
	TypeEntryReapproved,
	TypeEntryRerejected,
	TypeAmountEdited,
	TypeMonthTotalEdited,
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}
