package service

import (
	"context"
	"fmt"

	"github.com/garyjia/ope-approval/internal/application/port"
	"github.com/garyjia/ope-approval/internal/domain/entity"
	"github.com/garyjia/ope-approval/internal/domain/errs"
	"github.com/garyjia/ope-approval/internal/domain/routing"
	"github.com/garyjia/ope-approval/pkg/utils"
)

// RoleResolver turns an employee code into a Principal
type RoleResolver interface {
	Resolve(ctx context.Context, code string) (*entity.Principal, error)
}

type principalKey struct{}

// WithPrincipal caches a resolved principal for the lifetime of ctx
func WithPrincipal(ctx context.Context, p *entity.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal cached by WithPrincipal
func PrincipalFromContext(ctx context.Context) (*entity.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*entity.Principal)
	return p, ok && p != nil
}

type roleResolverImpl struct {
	directory port.DirectoryRepository
	hr        routing.Approver
	logger    Logger
}

// NewRoleResolver creates a RoleResolver over the directories and the configured HR identity
func NewRoleResolver(directory port.DirectoryRepository, hr routing.Approver, logger Logger) RoleResolver {
	return &roleResolverImpl{
		directory: directory,
		hr:        hr,
		logger:    logger,
	}
}

// Resolve looks the code up in every directory once and keeps the highest-priority role.
// A principal already cached in ctx for the same code is returned as is.
func (r *roleResolverImpl) Resolve(ctx context.Context, code string) (*entity.Principal, error) {
	code = utils.NormalizeCode(code)
	if code == "" {
		return nil, &errs.ValidationError{Field: "employee_code", Reason: "is required"}
	}
	if p, ok := PrincipalFromContext(ctx); ok && p.Code == code {
		return p, nil
	}

	p := &entity.Principal{Code: code, IsHR: code == r.hr.Code}

	emp, err := r.directory.GetEmployee(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("lookup employee: %w", err)
	}
	partner, err := r.directory.GetPartner(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("lookup partner: %w", err)
	}
	manager, err := r.directory.GetReportingManager(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("lookup reporting manager: %w", err)
	}

	p.IsPartner = partner != nil
	p.IsReportingManager = manager != nil
	if emp != nil {
		p.Name = emp.Name
	}

	switch {
	case p.IsHR:
		p.Role = entity.RoleHR
		p.Name = firstNonEmpty(r.hr.Name, p.Name)
	case p.IsPartner:
		p.Role = entity.RolePartner
		p.Name = firstNonEmpty(partner.Name, p.Name)
	case p.IsReportingManager:
		p.Role = entity.RoleReportingManager
		p.Name = firstNonEmpty(manager.Name, p.Name)
	case emp != nil:
		p.Role = entity.RoleEmployee
	default:
		return nil, &errs.NotFoundError{Resource: "employee", Key: code}
	}

	return p, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// requireApprover resolves the caller and fails unless it holds an approver role
func requireApprover(ctx context.Context, roles RoleResolver, code, action string) (*entity.Principal, error) {
	p, err := roles.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	if !p.CanApprove() {
		return nil, &errs.AuthorizationError{Actor: p.Code, Action: action, Reason: "caller holds no approver role"}
	}
	return p, nil
}
