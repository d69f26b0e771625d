package routing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/ope-approval/internal/domain/entity"
	"github.com/garyjia/ope-approval/internal/domain/errs"
)

func newTestResolver() *Resolver {
	return NewResolver(Approver{Code: "HR001", Name: "Hana HR"}, decimal.NewFromInt(1500))
}

func employee() *entity.Employee {
	return &entity.Employee{
		Code:                 "E100",
		Name:                 "Esha",
		ReportingManagerCode: "RM10",
		ReportingManagerName: "Ravi",
		PartnerCode:          "P20",
		PartnerName:          "Priya",
	}
}

func codes(levels []entity.ApprovalLevel) []string {
	out := make([]string, len(levels))
	for i, l := range levels {
		out[i] = l.Name + ":" + l.ApproverCode
	}
	return out
}

func TestResolve_Employee(t *testing.T) {
	tests := []struct {
		name       string
		total      int64
		limit      *decimal.Decimal
		wantLevels []string
		wantLabel  string
	}{
		{"under limit", 1200, nil, []string{"L1:RM10", "L2:HR001"}, entity.OPELabelLess},
		{"equal to limit", 1500, nil, []string{"L1:RM10", "L2:HR001"}, entity.OPELabelLess},
		{"over limit", 1800, nil, []string{"L1:RM10", "L2:P20", "L3:HR001"}, entity.OPELabelGreater},
		{"custom limit", 1800, decPtr(2000), []string{"L1:RM10", "L2:HR001"}, entity.OPELabelLess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emp := employee()
			emp.OPELimit = tt.limit

			plan, err := newTestResolver().Resolve(Input{Employee: emp, CumulativeTotal: decimal.NewFromInt(tt.total)})
			require.NoError(t, err)

			assert.Equal(t, entity.SubmitterEmployee, plan.SubmitterType)
			assert.Equal(t, tt.wantLabel, plan.OPELabel)
			assert.Equal(t, tt.wantLevels, codes(plan.Levels))
			assert.Equal(t, len(tt.wantLevels), plan.TotalLevels)
			assert.Equal(t, entity.RoleNameHR, plan.Levels[plan.TotalLevels-1].Role)
			assert.Equal(t, "RM10", plan.FirstApprover().ApproverCode)
		})
	}
}

func TestResolve_ReportingManagerAlwaysTwoLevels(t *testing.T) {
	for _, total := range []int64{10, 1500, 99999} {
		plan, err := newTestResolver().Resolve(Input{
			Employee:           employee(),
			IsReportingManager: true,
			CumulativeTotal:    decimal.NewFromInt(total),
		})
		require.NoError(t, err)

		assert.Equal(t, 2, plan.TotalLevels)
		assert.Equal(t, []string{"L1:P20", "L2:HR001"}, codes(plan.Levels))
		assert.Equal(t, entity.SubmitterReportingManager, plan.SubmitterType)
		assert.Equal(t, entity.OPELabelReportingManager, plan.OPELabel)
		assert.True(t, plan.Limit.IsZero())
	}
}

func TestResolve_MissingApprover(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*entity.Employee)
		total   int64
		manager bool
		role    string
	}{
		{"no reporting manager", func(e *entity.Employee) { e.ReportingManagerCode = "" }, 100, false, "reporting manager"},
		{"no partner over limit", func(e *entity.Employee) { e.PartnerCode = " " }, 1600, false, "partner"},
		{"no partner for manager", func(e *entity.Employee) { e.PartnerCode = "" }, 100, true, "partner"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emp := employee()
			tt.mutate(emp)

			_, err := newTestResolver().Resolve(Input{Employee: emp, IsReportingManager: tt.manager, CumulativeTotal: decimal.NewFromInt(tt.total)})

			var missing *errs.MissingApproverError
			require.True(t, errors.As(err, &missing))
			assert.Equal(t, tt.role, missing.Role)
			assert.Equal(t, "E100", missing.EmployeeCode)
		})
	}
}

func TestResolve_NoPartnerNeededUnderLimit(t *testing.T) {
	emp := employee()
	emp.PartnerCode = ""

	plan, err := newTestResolver().Resolve(Input{Employee: emp, CumulativeTotal: decimal.NewFromInt(100)})
	require.NoError(t, err)
	assert.Equal(t, 2, plan.TotalLevels)
}

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}
