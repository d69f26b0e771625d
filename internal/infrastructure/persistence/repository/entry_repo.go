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

const entryColumns = `
	id, employee_code, payroll_month, batch_id, expense_date, client,
	project_id, project_name, project_type, location_from, location_to, travel_mode,
	amount, original_amount, remarks, attachment_ref, status, submitted_at,
	approved_by, approver_name, approved_at,
	rejected_by, rejector_name, rejected_at, rejection_reason, rejected_level,
	hr_approved, hr_approved_by, hr_approved_at,
	amount_edited_by, amount_edited_at, created_at, updated_at`

// EntryRepository implements port.EntryRepository
type EntryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEntryRepository creates a new entry repository
func NewEntryRepository(db *sql.DB, logger *zap.Logger) port.EntryRepository {
	return &EntryRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new entry
func (r *EntryRepository) Create(ctx context.Context, e *entity.ExpenseEntry) error {
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	query := `INSERT INTO expense_entries (` + entryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		e.ID, e.EmployeeCode, e.PayrollMonth, e.BatchID, e.Date, e.Client,
		e.ProjectID, e.ProjectName, e.ProjectType, e.LocationFrom, e.LocationTo, e.TravelMode,
		e.Amount.String(), nullableDecimal(e.OriginalAmount), e.Remarks, e.AttachmentRef, e.Status, nullableTime(e.SubmittedAt),
		e.ApprovedBy, e.ApproverName, nullableTime(e.ApprovedAt),
		e.RejectedBy, e.RejectorName, nullableTime(e.RejectedAt), e.RejectionReason, e.RejectedLevel,
		e.HRApproved, e.HRApprovedBy, nullableTime(e.HRApprovedAt),
		e.AmountEditedBy, nullableTime(e.AmountEditedAt), e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create entry", zap.String("employee_code", e.EmployeeCode), zap.Error(err))
		return fmt.Errorf("failed to create entry: %w", err)
	}

	return nil
}

// GetByID retrieves an entry by ID
func (r *EntryRepository) GetByID(ctx context.Context, id string) (*entity.ExpenseEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM expense_entries WHERE id = ?`

	e, err := scanEntry(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get entry", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}

	return e, nil
}

// Update rewrites every mutable column of an entry
func (r *EntryRepository) Update(ctx context.Context, e *entity.ExpenseEntry) error {
	e.UpdatedAt = time.Now()

	query := `
		UPDATE expense_entries SET
			payroll_month = ?, batch_id = ?, expense_date = ?, client = ?,
			project_id = ?, project_name = ?, project_type = ?,
			location_from = ?, location_to = ?, travel_mode = ?,
			amount = ?, original_amount = ?, remarks = ?, attachment_ref = ?,
			status = ?, submitted_at = ?,
			approved_by = ?, approver_name = ?, approved_at = ?,
			rejected_by = ?, rejector_name = ?, rejected_at = ?, rejection_reason = ?, rejected_level = ?,
			hr_approved = ?, hr_approved_by = ?, hr_approved_at = ?,
			amount_edited_by = ?, amount_edited_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		e.PayrollMonth, e.BatchID, e.Date, e.Client,
		e.ProjectID, e.ProjectName, e.ProjectType,
		e.LocationFrom, e.LocationTo, e.TravelMode,
		e.Amount.String(), nullableDecimal(e.OriginalAmount), e.Remarks, e.AttachmentRef,
		e.Status, nullableTime(e.SubmittedAt),
		e.ApprovedBy, e.ApproverName, nullableTime(e.ApprovedAt),
		e.RejectedBy, e.RejectorName, nullableTime(e.RejectedAt), e.RejectionReason, e.RejectedLevel,
		e.HRApproved, e.HRApprovedBy, nullableTime(e.HRApprovedAt),
		e.AmountEditedBy, nullableTime(e.AmountEditedAt), e.UpdatedAt,
		e.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update entry", zap.String("id", e.ID), zap.Error(err))
		return fmt.Errorf("failed to update entry: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to update entry: %s does not exist", e.ID)
	}

	return nil
}

// Delete removes an entry
func (r *EntryRepository) Delete(ctx context.Context, id string) error {
	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM expense_entries WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete entry", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

// ListDrafts returns saved entries, optionally limited to one month
func (r *EntryRepository) ListDrafts(ctx context.Context, employeeCode, payrollMonth string) ([]*entity.ExpenseEntry, error) {
	if payrollMonth == "" {
		return r.list(ctx, `WHERE employee_code = ? AND status = ?`, employeeCode, entity.EntryStatusSaved)
	}
	return r.list(ctx, `WHERE employee_code = ? AND payroll_month = ? AND status = ?`,
		employeeCode, payrollMonth, entity.EntryStatusSaved)
}

// ListByMonth returns finalized entries of one month
func (r *EntryRepository) ListByMonth(ctx context.Context, employeeCode, payrollMonth string) ([]*entity.ExpenseEntry, error) {
	return r.list(ctx, `WHERE employee_code = ? AND payroll_month = ? AND status <> ?`,
		employeeCode, payrollMonth, entity.EntryStatusSaved)
}

// ListByEmployee returns every finalized entry of an employee
func (r *EntryRepository) ListByEmployee(ctx context.Context, employeeCode string) ([]*entity.ExpenseEntry, error) {
	return r.list(ctx, `WHERE employee_code = ? AND status <> ?`, employeeCode, entity.EntryStatusSaved)
}

// ListByBatch returns the entries of one approval batch
func (r *EntryRepository) ListByBatch(ctx context.Context, batchID string) ([]*entity.ExpenseEntry, error) {
	return r.list(ctx, `WHERE batch_id = ?`, batchID)
}

func (r *EntryRepository) list(ctx context.Context, where string, args ...interface{}) ([]*entity.ExpenseEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM expense_entries ` + where + ` ORDER BY created_at, id`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list entries", zap.Error(err))
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []*entity.ExpenseEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func scanEntry(row rowScanner) (*entity.ExpenseEntry, error) {
	var e entity.ExpenseEntry
	var original decimal.NullDecimal
	var submittedAt, approvedAt, rejectedAt, hrApprovedAt, editedAt sql.NullTime

	err := row.Scan(
		&e.ID, &e.EmployeeCode, &e.PayrollMonth, &e.BatchID, &e.Date, &e.Client,
		&e.ProjectID, &e.ProjectName, &e.ProjectType, &e.LocationFrom, &e.LocationTo, &e.TravelMode,
		&e.Amount, &original, &e.Remarks, &e.AttachmentRef, &e.Status, &submittedAt,
		&e.ApprovedBy, &e.ApproverName, &approvedAt,
		&e.RejectedBy, &e.RejectorName, &rejectedAt, &e.RejectionReason, &e.RejectedLevel,
		&e.HRApproved, &e.HRApprovedBy, &hrApprovedAt,
		&e.AmountEditedBy, &editedAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.OriginalAmount = decimalPtr(original)
	e.SubmittedAt = timePtr(submittedAt)
	e.ApprovedAt = timePtr(approvedAt)
	e.RejectedAt = timePtr(rejectedAt)
	e.HRApprovedAt = timePtr(hrApprovedAt)
	e.AmountEditedAt = timePtr(editedAt)

	return &e, nil
}

// Verify interface compliance
var _ port.EntryRepository = (*EntryRepository)(nil)
