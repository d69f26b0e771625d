package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Employee is a row of the employee directory
type Employee struct {
	Code                 string           `json:"employee_code"`
	Name                 string           `json:"employee_name"`
	Designation          string           `json:"designation,omitempty"`
	Gender               string           `json:"gender,omitempty"`
	ReportingManagerCode string           `json:"reporting_manager_code,omitempty"`
	ReportingManagerName string           `json:"reporting_manager_name,omitempty"`
	PartnerCode          string           `json:"partner_code,omitempty"`
	PartnerName          string           `json:"partner_name,omitempty"`
	OPELimit             *decimal.Decimal `json:"ope_limit,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// LimitOr returns the configured OPE limit or the given default
func (e *Employee) LimitOr(def decimal.Decimal) decimal.Decimal {
	if e.OPELimit == nil {
		return def
	}
	return *e.OPELimit
}

// DirectoryMember is an entry of the reporting-manager or partner directory
type DirectoryMember struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Role is the highest-priority role a principal holds
type Role int

const (
	RoleEmployee Role = iota
	RoleReportingManager
	RolePartner
	RoleHR
)

// String returns the role name
func (r Role) String() string {
	switch r {
	case RoleReportingManager:
		return RoleNameReportingManager
	case RolePartner:
		return RoleNamePartner
	case RoleHR:
		return RoleNameHR
	default:
		return SubmitterEmployee
	}
}

// MarshalText encodes the role by name
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Principal is the resolved identity of a caller.
// Role carries the highest-priority match (HR > Partner > Reporting Manager > Employee);
// the membership flags keep every directory the code was found in.
type Principal struct {
	Code               string `json:"employee_code"`
	Name               string `json:"name"`
	Role               Role   `json:"role"`
	IsReportingManager bool   `json:"is_reporting_manager"`
	IsPartner          bool   `json:"is_partner"`
	IsHR               bool   `json:"is_hr"`
}

// CanApprove reports whether the principal holds any approver role
func (p *Principal) CanApprove() bool {
	return p.Role > RoleEmployee
}
