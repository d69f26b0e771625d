package service

import (
	"context"
	"fmt"

	"github.com/garyjia/ope-approval/internal/application/port"
	"github.com/garyjia/ope-approval/internal/domain/entity"
	"github.com/garyjia/ope-approval/internal/domain/errs"
	"github.com/garyjia/ope-approval/pkg/utils"
)

// StatusService serves the read-side views of an employee's claims
type StatusService interface {
	// GetApprovalStatus returns one aggregated record per payroll month
	GetApprovalStatus(ctx context.Context, callerCode, employeeCode string) ([]*entity.PayrollMonthApprovalRecord, error)

	// GetEntryHistory returns finalized entries grouped by payroll month
	GetEntryHistory(ctx context.Context, callerCode, employeeCode string) ([]*entity.MonthEntries, error)
}

type statusServiceImpl struct {
	entryRepo     port.EntryRepository
	approvalRepo  port.ApprovalRepository
	directoryRepo port.DirectoryRepository
	roles         RoleResolver
	logger        Logger
}

// NewStatusService creates a new StatusService
func NewStatusService(
	entryRepo port.EntryRepository,
	approvalRepo port.ApprovalRepository,
	directoryRepo port.DirectoryRepository,
	roles RoleResolver,
	logger Logger,
) StatusService {
	return &statusServiceImpl{
		entryRepo:     entryRepo,
		approvalRepo:  approvalRepo,
		directoryRepo: directoryRepo,
		roles:         roles,
		logger:        logger,
	}
}

// GetApprovalStatus aggregates every batch of each payroll month
func (s *statusServiceImpl) GetApprovalStatus(ctx context.Context, callerCode, employeeCode string) ([]*entity.PayrollMonthApprovalRecord, error) {
	employeeCode, err := s.authorizeView(ctx, callerCode, employeeCode, "view approval status")
	if err != nil {
		return nil, err
	}

	months, err := s.approvalRepo.ListMonths(ctx, employeeCode)
	if err != nil {
		s.logger.Error("Failed to list months", "error", err, "employee_code", employeeCode)
		return nil, err
	}

	records := make([]*entity.PayrollMonthApprovalRecord, 0, len(months))
	for _, m := range months {
		batches, err := s.approvalRepo.ListBatchesByMonth(ctx, employeeCode, m.PayrollMonth)
		if err != nil {
			return nil, fmt.Errorf("list batches: %w", err)
		}
		records = append(records, entity.AggregateMonth(m, batches))
	}
	return records, nil
}

// GetEntryHistory groups finalized entries by payroll month in first-seen order
func (s *statusServiceImpl) GetEntryHistory(ctx context.Context, callerCode, employeeCode string) ([]*entity.MonthEntries, error) {
	employeeCode, err := s.authorizeView(ctx, callerCode, employeeCode, "view entry history")
	if err != nil {
		return nil, err
	}

	entries, err := s.entryRepo.ListByEmployee(ctx, employeeCode)
	if err != nil {
		s.logger.Error("Failed to list entries", "error", err, "employee_code", employeeCode)
		return nil, err
	}

	var groups []*entity.MonthEntries
	byMonth := make(map[string]*entity.MonthEntries)
	for _, e := range entries {
		g, ok := byMonth[e.PayrollMonth]
		if !ok {
			g = &entity.MonthEntries{PayrollMonth: e.PayrollMonth}
			byMonth[e.PayrollMonth] = g
			groups = append(groups, g)
		}
		g.Entries = append(g.Entries, e)
	}
	return groups, nil
}

// authorizeView lets employees read their own data and approvers read anyone's
func (s *statusServiceImpl) authorizeView(ctx context.Context, callerCode, employeeCode, action string) (string, error) {
	employeeCode = utils.NormalizeCode(employeeCode)
	p, err := s.roles.Resolve(ctx, callerCode)
	if err != nil {
		return "", err
	}
	if p.Code != employeeCode && !p.CanApprove() {
		return "", &errs.AuthorizationError{Actor: p.Code, Action: action, Reason: "employees may only view their own claims"}
	}

	emp, err := s.directoryRepo.GetEmployee(ctx, employeeCode)
	if err != nil {
		return "", fmt.Errorf("lookup employee: %w", err)
	}
	if emp == nil {
		return "", &errs.NotFoundError{Resource: "employee", Key: employeeCode}
	}
	return employeeCode, nil
}
