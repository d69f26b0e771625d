package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExpenseDateLayout is the wire and storage layout of an entry date
const ExpenseDateLayout = "2006-01-02"

// ExpenseEntry is one claimed out-of-pocket expense line
type ExpenseEntry struct {
	ID             string           `json:"id"`
	EmployeeCode   string           `json:"employee_code"`
	PayrollMonth   string           `json:"payroll_month"`
	BatchID        string           `json:"batch_id,omitempty"`
	Date           string           `json:"date"`
	Client         string           `json:"client"`
	ProjectID      string           `json:"project_id"`
	ProjectName    string           `json:"project_name"`
	ProjectType    string           `json:"project_type"`
	LocationFrom   string           `json:"location_from"`
	LocationTo     string           `json:"location_to"`
	TravelMode     string           `json:"travel_mode"`
	Amount         decimal.Decimal  `json:"amount"`
	OriginalAmount *decimal.Decimal `json:"original_amount,omitempty"`
	Remarks        string           `json:"remarks,omitempty"`
	AttachmentRef  string           `json:"attachment_ref,omitempty"`
	Status         string           `json:"status"`
	SubmittedAt    *time.Time       `json:"submitted_at,omitempty"`

	ApprovedBy   string     `json:"approved_by,omitempty"`
	ApproverName string     `json:"approver_name,omitempty"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`

	RejectedBy      string     `json:"rejected_by,omitempty"`
	RejectorName    string     `json:"rejector_name,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	RejectedLevel   string     `json:"rejected_level,omitempty"`

	HRApproved   bool       `json:"hr_approved"`
	HRApprovedBy string     `json:"hr_approved_by,omitempty"`
	HRApprovedAt *time.Time `json:"hr_approved_date,omitempty"`

	AmountEditedBy string     `json:"amount_edited_by,omitempty"`
	AmountEditedAt *time.Time `json:"amount_edited_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntryKey is the business key used for duplicate detection within a payroll month
type EntryKey struct {
	Date         string
	Client       string
	ProjectID    string
	ProjectName  string
	ProjectType  string
	LocationFrom string
	LocationTo   string
	TravelMode   string
	Amount       string
}

// BusinessKey returns the duplicate-detection key of the entry
func (e *ExpenseEntry) BusinessKey() EntryKey {
	return EntryKey{
		Date:         e.Date,
		Client:       e.Client,
		ProjectID:    e.ProjectID,
		ProjectName:  e.ProjectName,
		ProjectType:  e.ProjectType,
		LocationFrom: e.LocationFrom,
		LocationTo:   e.LocationTo,
		TravelMode:   e.TravelMode,
		Amount:       e.Amount.StringFixed(2),
	}
}

// IsDraft returns true while the entry has not been finally submitted
func (e *ExpenseEntry) IsDraft() bool {
	return e.Status == EntryStatusSaved
}

// MarkApproved sets the entry to approved and clears any rejection
func (e *ExpenseEntry) MarkApproved(code, name string, at time.Time) {
	e.Status = EntryStatusApproved
	e.ApprovedBy = code
	e.ApproverName = name
	e.ApprovedAt = &at
	e.ClearRejection()
}

// MarkRejected sets the entry to rejected with the rejector's identity
func (e *ExpenseEntry) MarkRejected(code, name, level, reason string, at time.Time) {
	e.Status = EntryStatusRejected
	e.RejectedBy = code
	e.RejectorName = name
	e.RejectedAt = &at
	e.RejectedLevel = level
	e.RejectionReason = reason
}

// ClearRejection removes all rejection fields
func (e *ExpenseEntry) ClearRejection() {
	e.RejectedBy = ""
	e.RejectorName = ""
	e.RejectedAt = nil
	e.RejectedLevel = ""
	e.RejectionReason = ""
}

// StampHRApproval records the HR sign-off
func (e *ExpenseEntry) StampHRApproval(code string, at time.Time) {
	e.HRApproved = true
	e.HRApprovedBy = code
	e.HRApprovedAt = &at
}

// ClearHRApproval removes the HR sign-off
func (e *ExpenseEntry) ClearHRApproval() {
	e.HRApproved = false
	e.HRApprovedBy = ""
	e.HRApprovedAt = nil
}

// Clone returns a deep copy of the entry
func (e *ExpenseEntry) Clone() *ExpenseEntry {
	c := *e
	c.OriginalAmount = cloneDecimal(e.OriginalAmount)
	c.SubmittedAt = cloneTime(e.SubmittedAt)
	c.ApprovedAt = cloneTime(e.ApprovedAt)
	c.RejectedAt = cloneTime(e.RejectedAt)
	c.HRApprovedAt = cloneTime(e.HRApprovedAt)
	c.AmountEditedAt = cloneTime(e.AmountEditedAt)
	return &c
}

// SumAmounts returns the total amount of the given entries
func SumAmounts(entries []*ExpenseEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
