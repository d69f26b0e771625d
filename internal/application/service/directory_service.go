package service

import (
	"context"
	"fmt"
	"io"

	"github.com/garyjia/ope-approval/internal/application/port"
	"github.com/garyjia/ope-approval/internal/domain/entity"
	"github.com/garyjia/ope-approval/internal/domain/errs"
	"github.com/garyjia/ope-approval/pkg/utils"
)

// ImportResult counts the directory rows written by an import
type ImportResult struct {
	Employees         int `json:"employees"`
	ReportingManagers int `json:"reporting_managers"`
	Partners          int `json:"partners"`
}

// DirectoryService loads the employee, manager and partner directories
type DirectoryService interface {
	// ImportWorkbook parses an HRMS export and imports it on behalf of HR
	ImportWorkbook(ctx context.Context, callerCode string, r io.Reader) (*ImportResult, error)

	// Import upserts the employees and derives the manager and partner directories from them
	Import(ctx context.Context, employees []*entity.Employee) (*ImportResult, error)
}

type directoryServiceImpl struct {
	directoryRepo port.DirectoryRepository
	source        port.DirectorySource
	txManager     port.TransactionManager
	roles         RoleResolver
	logger        Logger
}

// NewDirectoryService creates a new DirectoryService
func NewDirectoryService(
	directoryRepo port.DirectoryRepository,
	source port.DirectorySource,
	txManager port.TransactionManager,
	roles RoleResolver,
	logger Logger,
) DirectoryService {
	return &directoryServiceImpl{
		directoryRepo: directoryRepo,
		source:        source,
		txManager:     txManager,
		roles:         roles,
		logger:        logger,
	}
}

func (s *directoryServiceImpl) ImportWorkbook(ctx context.Context, callerCode string, r io.Reader) (*ImportResult, error) {
	caller, err := s.roles.Resolve(ctx, callerCode)
	if err != nil {
		return nil, err
	}
	if !caller.IsHR {
		return nil, &errs.AuthorizationError{Actor: caller.Code, Action: "import the directory", Reason: "HR only"}
	}

	employees, err := s.source.ReadEmployees(r)
	if err != nil {
		return nil, &errs.ValidationError{Field: "workbook", Reason: err.Error()}
	}

	return s.Import(ctx, employees)
}

func (s *directoryServiceImpl) Import(ctx context.Context, employees []*entity.Employee) (*ImportResult, error) {
	if len(employees) == 0 {
		return nil, &errs.ValidationError{Field: "employees", Reason: "nothing to import"}
	}

	names := make(map[string]string, len(employees))
	for _, emp := range employees {
		emp.Code = utils.NormalizeCode(emp.Code)
		emp.ReportingManagerCode = utils.NormalizeCode(emp.ReportingManagerCode)
		emp.PartnerCode = utils.NormalizeCode(emp.PartnerCode)
		if emp.Code == "" {
			return nil, &errs.ValidationError{Field: "employee_code", Reason: "is required"}
		}
		names[emp.Code] = emp.Name
	}

	managers := make(map[string]*entity.DirectoryMember)
	partners := make(map[string]*entity.DirectoryMember)
	for _, emp := range employees {
		if code := emp.ReportingManagerCode; code != "" && managers[code] == nil {
			managers[code] = &entity.DirectoryMember{Code: code, Name: firstNonEmpty(emp.ReportingManagerName, names[code], code)}
		}
		if code := emp.PartnerCode; code != "" && partners[code] == nil {
			partners[code] = &entity.DirectoryMember{Code: code, Name: firstNonEmpty(emp.PartnerName, names[code], code)}
		}
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, emp := range employees {
			if err := s.directoryRepo.UpsertEmployee(txCtx, emp); err != nil {
				return fmt.Errorf("upsert employee %s: %w", emp.Code, err)
			}
		}
		for _, m := range managers {
			if err := s.directoryRepo.UpsertReportingManager(txCtx, m); err != nil {
				return fmt.Errorf("upsert reporting manager %s: %w", m.Code, err)
			}
		}
		for _, p := range partners {
			if err := s.directoryRepo.UpsertPartner(txCtx, p); err != nil {
				return fmt.Errorf("upsert partner %s: %w", p.Code, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Directory import failed", "error", err)
		return nil, err
	}

	result := &ImportResult{
		Employees:         len(employees),
		ReportingManagers: len(managers),
		Partners:          len(partners),
	}
	s.logger.Info("Directory imported",
		"employees", result.Employees,
		"reporting_managers", result.ReportingManagers,
		"partners", result.Partners)

	return result, nil
}
