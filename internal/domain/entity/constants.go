package entity

import "fmt"

// Entry status constants
const (
	EntryStatusSaved    = "saved"
	EntryStatusPending  = "pending"
	EntryStatusApproved = "approved"
	EntryStatusRejected = "rejected"
)

// Overall status constants for approval batches and payroll months
const (
	OverallStatusPending  = "pending"
	OverallStatusApproved = "approved"
	OverallStatusRejected = "rejected"
)

// Submitter type constants
const (
	SubmitterEmployee         = "Employee"
	SubmitterReportingManager = "Reporting_Manager"
)

// OPE label constants describe which routing branch a batch took
const (
	OPELabelLess             = "Less"
	OPELabelGreater          = "Greater"
	OPELabelReportingManager = "Reporting_Manager"
)

// Level name constants
const (
	LevelL1        = "L1"
	LevelL2        = "L2"
	LevelL3        = "L3"
	LevelCompleted = "Completed"
)

// Approver role names stored on level descriptors and work-queue scopes
const (
	RoleNameReportingManager = "Reporting_Manager"
	RoleNamePartner          = "Partner"
	RoleNameHR               = "HR"
)

// DefaultOPELimit applies when an employee has no configured limit
const DefaultOPELimit int64 = 1500

// DefaultRejectionReason is recorded when a rejector gives no reason
const DefaultRejectionReason = "No reason provided"

// LevelName returns the level name for a 1-based level number
func LevelName(n int) string {
	return fmt.Sprintf("L%d", n)
}

// LevelNumber returns the 1-based number of a level name, or 0
func LevelNumber(name string) int {
	switch name {
	case LevelL1:
		return 1
	case LevelL2:
		return 2
	case LevelL3:
		return 3
	default:
		return 0
	}
}
