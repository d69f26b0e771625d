package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/ope-approval/internal/application/port"
	"github.com/garyjia/ope-approval/internal/domain/entity"
	"github.com/garyjia/ope-approval/internal/infrastructure/persistence/sqlite"
)

// DirectoryRepository implements port.DirectoryRepository
type DirectoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDirectoryRepository creates a new directory repository
func NewDirectoryRepository(db *sql.DB, logger *zap.Logger) port.DirectoryRepository {
	return &DirectoryRepository{
		db:     db,
		logger: logger,
	}
}

// GetEmployee retrieves an employee by code
func (r *DirectoryRepository) GetEmployee(ctx context.Context, code string) (*entity.Employee, error) {
	query := `
		SELECT code, name, designation, gender,
			reporting_manager_code, reporting_manager_name, partner_code, partner_name,
			ope_limit, created_at, updated_at
		FROM employees
		WHERE code = ?
	`

	var emp entity.Employee
	var limit decimal.NullDecimal

	err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, code).Scan(
		&emp.Code, &emp.Name, &emp.Designation, &emp.Gender,
		&emp.ReportingManagerCode, &emp.ReportingManagerName, &emp.PartnerCode, &emp.PartnerName,
		&limit, &emp.CreatedAt, &emp.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get employee", zap.String("code", code), zap.Error(err))
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}

	emp.OPELimit = decimalPtr(limit)
	return &emp, nil
}

// UpsertEmployee creates or replaces a directory row
func (r *DirectoryRepository) UpsertEmployee(ctx context.Context, emp *entity.Employee) error {
	now := time.Now()
	if emp.CreatedAt.IsZero() {
		emp.CreatedAt = now
	}
	emp.UpdatedAt = now

	query := `
		INSERT INTO employees (
			code, name, designation, gender,
			reporting_manager_code, reporting_manager_name, partner_code, partner_name,
			ope_limit, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (code) DO UPDATE SET
			name = excluded.name,
			designation = excluded.designation,
			gender = excluded.gender,
			reporting_manager_code = excluded.reporting_manager_code,
			reporting_manager_name = excluded.reporting_manager_name,
			partner_code = excluded.partner_code,
			partner_name = excluded.partner_name,
			ope_limit = excluded.ope_limit,
			updated_at = excluded.updated_at
	`

	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		emp.Code, emp.Name, emp.Designation, emp.Gender,
		emp.ReportingManagerCode, emp.ReportingManagerName, emp.PartnerCode, emp.PartnerName,
		nullableDecimal(emp.OPELimit), emp.CreatedAt, emp.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert employee", zap.String("code", emp.Code), zap.Error(err))
		return fmt.Errorf("failed to upsert employee: %w", err)
	}

	return nil
}

// GetReportingManager looks a code up in the manager directory
func (r *DirectoryRepository) GetReportingManager(ctx context.Context, code string) (*entity.DirectoryMember, error) {
	return r.getMember(ctx, "reporting_managers", code)
}

// UpsertReportingManager adds or renames a manager
func (r *DirectoryRepository) UpsertReportingManager(ctx context.Context, m *entity.DirectoryMember) error {
	return r.upsertMember(ctx, "reporting_managers", m)
}

// GetPartner looks a code up in the partner directory
func (r *DirectoryRepository) GetPartner(ctx context.Context, code string) (*entity.DirectoryMember, error) {
	return r.getMember(ctx, "partners", code)
}

// UpsertPartner adds or renames a partner
func (r *DirectoryRepository) UpsertPartner(ctx context.Context, m *entity.DirectoryMember) error {
	return r.upsertMember(ctx, "partners", m)
}

// table is one of the two fixed directory table names, never user input
func (r *DirectoryRepository) getMember(ctx context.Context, table, code string) (*entity.DirectoryMember, error) {
	var m entity.DirectoryMember
	err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx, `SELECT code, name FROM `+table+` WHERE code = ?`, code).
		Scan(&m.Code, &m.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get directory member", zap.String("table", table), zap.String("code", code), zap.Error(err))
		return nil, fmt.Errorf("failed to get %s member: %w", table, err)
	}
	return &m, nil
}

func (r *DirectoryRepository) upsertMember(ctx context.Context, table string, m *entity.DirectoryMember) error {
	query := `INSERT INTO ` + table + ` (code, name) VALUES (?, ?)
		ON CONFLICT (code) DO UPDATE SET name = excluded.name`

	if _, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query, m.Code, m.Name); err != nil {
		r.logger.Error("Failed to upsert directory member", zap.String("table", table), zap.String("code", m.Code), zap.Error(err))
		return fmt.Errorf("failed to upsert %s member: %w", table, err)
	}
	return nil
}

// Verify interface compliance
var _ port.DirectoryRepository = (*DirectoryRepository)(nil)
