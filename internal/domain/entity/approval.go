package entity

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ApprovalLevel describes one stage of an approval chain
type ApprovalLevel struct {
	Level        int        `json:"level"`
	Name         string     `json:"name"`
	Role         string     `json:"role"`
	ApproverCode string     `json:"approver_code"`
	ApproverName string     `json:"approver_name"`
	Approved     bool       `json:"status"`
	ApprovedAt   *time.Time `json:"approved_date,omitempty"`
	RejectedBy   string     `json:"rejected_by,omitempty"`
	RejectedAt   *time.Time `json:"rejected_date,omitempty"`
}

// ApprovalBatch is one final submission for a payroll month with its own level chain
type ApprovalBatch struct {
	ID              string          `json:"batch_id"`
	EmployeeCode    string          `json:"employee_code"`
	PayrollMonth    string          `json:"payroll_month"`
	Sequence        int             `json:"sequence"`
	SubmitterType   string          `json:"submitter_type"`
	OPELabel        string          `json:"ope_label"`
	TotalLevels     int             `json:"total_levels"`
	LimitSnapshot   decimal.Decimal `json:"ope_limit"`
	CumulativeTotal decimal.Decimal `json:"cumulative_total"`
	BatchTotal      decimal.Decimal `json:"batch_total"`
	Levels          []ApprovalLevel `json:"levels"`
	CurrentLevel    string          `json:"current_level"`
	OverallStatus   string          `json:"overall_status"`
	RejectedLevel   string          `json:"rejected_level,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	SubmittedAt     time.Time       `json:"submitted_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Level returns the descriptor for a 1-based level number, or nil
func (b *ApprovalBatch) Level(n int) *ApprovalLevel {
	for i := range b.Levels {
		if b.Levels[i].Level == n {
			return &b.Levels[i]
		}
	}
	return nil
}

// LevelByName returns the descriptor for "L1".."L3", or nil
func (b *ApprovalBatch) LevelByName(name string) *ApprovalLevel {
	return b.Level(LevelNumber(name))
}

// Current returns the level awaiting action, or nil once completed
func (b *ApprovalBatch) Current() *ApprovalLevel {
	return b.LevelByName(b.CurrentLevel)
}

// CurrentApproverCode returns the approver of the current level while pending
func (b *ApprovalBatch) CurrentApproverCode() string {
	if b.OverallStatus != OverallStatusPending {
		return ""
	}
	if lvl := b.Current(); lvl != nil {
		return lvl.ApproverCode
	}
	return ""
}

// LastLevel returns the final level of the chain
func (b *ApprovalBatch) LastLevel() *ApprovalLevel {
	return b.Level(b.TotalLevels)
}

// IsPending returns true while the batch awaits an approver
func (b *ApprovalBatch) IsPending() bool {
	return b.OverallStatus == OverallStatusPending
}

// IsRejected returns true once the batch has been rejected
func (b *ApprovalBatch) IsRejected() bool {
	return b.OverallStatus == OverallStatusRejected
}

// IsFirstLevel reports whether the level is L1; entries awaiting L1 are pending,
// entries past it carry status approved
func IsFirstLevel(lvl *ApprovalLevel) bool {
	return lvl != nil && lvl.Level == 1
}

// LevelsOf returns every level of the chain assigned to the approver
func (b *ApprovalBatch) LevelsOf(approverCode string) []*ApprovalLevel {
	var levels []*ApprovalLevel
	for i := range b.Levels {
		if b.Levels[i].ApproverCode == approverCode {
			levels = append(levels, &b.Levels[i])
		}
	}
	return levels
}

// HasApprover reports whether the approver holds any level of the chain
func (b *ApprovalBatch) HasApprover(approverCode string) bool {
	return len(b.LevelsOf(approverCode)) > 0
}

// ApprovedBy reports whether the approver has signed off a level of the chain
func (b *ApprovalBatch) ApprovedBy(approverCode string) bool {
	for _, lvl := range b.LevelsOf(approverCode) {
		if lvl.Approved {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the batch
func (b *ApprovalBatch) Clone() *ApprovalBatch {
	c := *b
	c.Levels = make([]ApprovalLevel, len(b.Levels))
	for i, lvl := range b.Levels {
		lvl.ApprovedAt = cloneTime(lvl.ApprovedAt)
		lvl.RejectedAt = cloneTime(lvl.RejectedAt)
		c.Levels[i] = lvl
	}
	return &c
}

// PayrollMonth holds the stored cumulative total for an employee and month
type PayrollMonth struct {
	EmployeeCode  string          `json:"employee_code"`
	PayrollMonth  string          `json:"payroll_month"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TotalEditedBy string          `json:"total_edited_by,omitempty"`
	TotalEditedAt *time.Time      `json:"total_edited_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Clone returns a copy of the month record
func (m *PayrollMonth) Clone() *PayrollMonth {
	c := *m
	c.TotalEditedAt = cloneTime(m.TotalEditedAt)
	return &c
}

// PayrollMonthApprovalRecord is the month-level view over every batch of a payroll month
type PayrollMonthApprovalRecord struct {
	EmployeeCode  string           `json:"employee_code"`
	PayrollMonth  string           `json:"payroll_month"`
	SubmitterType string           `json:"submitter_type"`
	OPELabel      string           `json:"ope_label"`
	TotalLevels   int              `json:"total_levels"`
	Limit         decimal.Decimal  `json:"ope_limit"`
	TotalAmount   decimal.Decimal  `json:"total_amount"`
	Levels        []ApprovalLevel  `json:"approval_levels"`
	CurrentLevel  string           `json:"current_level"`
	OverallStatus string           `json:"overall_status"`
	SubmittedAt   time.Time        `json:"submitted_at"`
	TotalEditedBy string           `json:"total_edited_by,omitempty"`
	TotalEditedAt *time.Time       `json:"total_edited_at,omitempty"`
	Batches       []*ApprovalBatch `json:"batches"`
}

// AggregateMonth builds the month view.
// The month is rejected if any batch is rejected, pending if any batch is pending,
// and approved only when every batch is. Routing fields come from the latest batch;
// the current level comes from the earliest pending batch, else the rejected one.
func AggregateMonth(month *PayrollMonth, batches []*ApprovalBatch) *PayrollMonthApprovalRecord {
	sorted := append([]*ApprovalBatch(nil), batches...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Sequence < sorted[j].Sequence
	})

	rec := &PayrollMonthApprovalRecord{
		EmployeeCode:  month.EmployeeCode,
		PayrollMonth:  month.PayrollMonth,
		TotalAmount:   month.TotalAmount,
		TotalEditedBy: month.TotalEditedBy,
		TotalEditedAt: month.TotalEditedAt,
		Batches:       sorted,
	}
	if len(sorted) == 0 {
		rec.OverallStatus = OverallStatusPending
		return rec
	}

	latest := sorted[len(sorted)-1]
	rec.SubmitterType = latest.SubmitterType
	rec.OPELabel = latest.OPELabel
	rec.TotalLevels = latest.TotalLevels
	rec.Limit = latest.LimitSnapshot
	rec.Levels = latest.Levels
	rec.SubmittedAt = latest.SubmittedAt

	var pending, rejected *ApprovalBatch
	for _, b := range sorted {
		switch b.OverallStatus {
		case OverallStatusPending:
			if pending == nil {
				pending = b
			}
		case OverallStatusRejected:
			if rejected == nil {
				rejected = b
			}
		}
	}

	switch {
	case rejected != nil:
		rec.OverallStatus = OverallStatusRejected
		rec.CurrentLevel = rejected.CurrentLevel
		if pending != nil {
			rec.CurrentLevel = pending.CurrentLevel
		}
	case pending != nil:
		rec.OverallStatus = OverallStatusPending
		rec.CurrentLevel = pending.CurrentLevel
	default:
		rec.OverallStatus = OverallStatusApproved
		rec.CurrentLevel = LevelCompleted
	}

	return rec
}
