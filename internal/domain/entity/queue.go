package entity

import "strings"

// QueueStatus names one of the three work-queue projections
type QueueStatus string

const (
	QueuePending  QueueStatus = "Pending"
	QueueApproved QueueStatus = "Approved"
	QueueRejected QueueStatus = "Rejected"
)

// ParseQueueStatus accepts a queue status case-insensitively
func ParseQueueStatus(s string) (QueueStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return QueuePending, true
	case "approved":
		return QueueApproved, true
	case "rejected":
		return QueueRejected, true
	default:
		return "", false
	}
}

// QueueScope identifies one approver acting in one role
type QueueScope struct {
	Role         string `json:"role"`
	ApproverCode string `json:"approver_code"`
}

// WorkQueueItem is one employee in an approver's worklist with the entries that match
type WorkQueueItem struct {
	EmployeeCode string          `json:"employee_code"`
	EmployeeName string          `json:"employee_name,omitempty"`
	Roles        []string        `json:"roles"`
	Entries      []*ExpenseEntry `json:"entries"`
}

// PendingApproval is a pending batch awaiting the caller at its current level
type PendingApproval struct {
	Batch        *ApprovalBatch `json:"batch"`
	EmployeeName string         `json:"employee_name,omitempty"`
}

// MonthEntries groups finalized entries of one payroll month
type MonthEntries struct {
	PayrollMonth string          `json:"payroll_month"`
	Entries      []*ExpenseEntry `json:"entries"`
}
