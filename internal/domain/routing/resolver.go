// Package routing decides how many approval levels a payroll-month submission
// needs and who approves at each level.
package routing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/garyjia/ope-approval/internal/domain/entity"
	"github.com/garyjia/ope-approval/internal/domain/errs"
)

// Approver is a resolved approver identity
type Approver struct {
	Code string
	Name string
}

// Input describes one final submission
type Input struct {
	Employee           *entity.Employee
	IsReportingManager bool
	CumulativeTotal    decimal.Decimal
}

// Plan is the routing decision for a submission
type Plan struct {
	SubmitterType string
	OPELabel      string
	TotalLevels   int
	Limit         decimal.Decimal
	Levels        []entity.ApprovalLevel
}

// FirstApprover returns the L1 descriptor
func (p *Plan) FirstApprover() entity.ApprovalLevel {
	return p.Levels[0]
}

// Resolver assigns approval levels. It is a pure function of its inputs.
type Resolver struct {
	hr           Approver
	defaultLimit decimal.Decimal
}

// NewResolver creates a resolver with the fixed HR identity and the fallback OPE limit
func NewResolver(hr Approver, defaultLimit decimal.Decimal) *Resolver {
	return &Resolver{hr: hr, defaultLimit: defaultLimit}
}

// DefaultLimit returns the limit applied to employees without one
func (r *Resolver) DefaultLimit() decimal.Decimal {
	return r.defaultLimit
}

// Resolve computes the level chain.
// A reporting-manager submitter always gets Partner -> HR. Anyone else gets
// RM -> Partner -> HR when the cumulative total exceeds their limit, else RM -> HR.
func (r *Resolver) Resolve(in Input) (*Plan, error) {
	emp := in.Employee
	hr := entity.ApprovalLevel{Role: entity.RoleNameHR, ApproverCode: r.hr.Code, ApproverName: r.hr.Name}

	if in.IsReportingManager {
		partner, err := r.partner(emp)
		if err != nil {
			return nil, err
		}
		return newPlan(entity.SubmitterReportingManager, entity.OPELabelReportingManager, decimal.Zero, partner, hr), nil
	}

	rm := entity.ApprovalLevel{
		Role:         entity.RoleNameReportingManager,
		ApproverCode: strings.TrimSpace(emp.ReportingManagerCode),
		ApproverName: emp.ReportingManagerName,
	}
	if rm.ApproverCode == "" {
		return nil, &errs.MissingApproverError{EmployeeCode: emp.Code, Role: "reporting manager"}
	}

	limit := emp.LimitOr(r.defaultLimit)
	if in.CumulativeTotal.GreaterThan(limit) {
		partner, err := r.partner(emp)
		if err != nil {
			return nil, err
		}
		return newPlan(entity.SubmitterEmployee, entity.OPELabelGreater, limit, rm, partner, hr), nil
	}

	return newPlan(entity.SubmitterEmployee, entity.OPELabelLess, limit, rm, hr), nil
}

func (r *Resolver) partner(emp *entity.Employee) (entity.ApprovalLevel, error) {
	code := strings.TrimSpace(emp.PartnerCode)
	if code == "" {
		return entity.ApprovalLevel{}, &errs.MissingApproverError{EmployeeCode: emp.Code, Role: "partner"}
	}
	return entity.ApprovalLevel{
		Role:         entity.RoleNamePartner,
		ApproverCode: code,
		ApproverName: emp.PartnerName,
	}, nil
}

func newPlan(submitterType, label string, limit decimal.Decimal, levels ...entity.ApprovalLevel) *Plan {
	for i := range levels {
		levels[i].Level = i + 1
		levels[i].Name = entity.LevelName(i + 1)
	}
	return &Plan{
		SubmitterType: submitterType,
		OPELabel:      label,
		TotalLevels:   len(levels),
		Limit:         limit,
		Levels:        levels,
	}
}
