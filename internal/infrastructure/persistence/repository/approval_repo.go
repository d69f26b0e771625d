package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/ope-approval/internal/application/port"
	"github.com/garyjia/ope-approval/internal/domain/entity"
	"github.com/garyjia/ope-approval/internal/infrastructure/persistence/sqlite"
)

const batchColumns = `
	id, employee_code, payroll_month, sequence, submitter_type, ope_label,
	total_levels, limit_snapshot, cumulative_total, batch_total,
	current_level, overall_status, rejected_level, rejection_reason,
	submitted_at, updated_at`

// ApprovalRepository implements port.ApprovalRepository
type ApprovalRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApprovalRepository creates a new approval repository
func NewApprovalRepository(db *sql.DB, logger *zap.Logger) port.ApprovalRepository {
	return &ApprovalRepository{
		db:     db,
		logger: logger,
	}
}

// GetMonth retrieves the stored total of a payroll month
func (r *ApprovalRepository) GetMonth(ctx context.Context, employeeCode, payrollMonth string) (*entity.PayrollMonth, error) {
	query := `
		SELECT employee_code, payroll_month, total_amount, total_edited_by, total_edited_at, created_at, updated_at
		FROM payroll_months
		WHERE employee_code = ? AND payroll_month = ?
	`

	m, err := scanMonth(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, employeeCode, payrollMonth))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get payroll month",
			zap.String("employee_code", employeeCode),
			zap.String("payroll_month", payrollMonth),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get payroll month: %w", err)
	}

	return m, nil
}

// UpsertMonth creates or overwrites a payroll month total
func (r *ApprovalRepository) UpsertMonth(ctx context.Context, m *entity.PayrollMonth) error {
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	query := `
		INSERT INTO payroll_months (employee_code, payroll_month, total_amount, total_edited_by, total_edited_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (employee_code, payroll_month) DO UPDATE SET
			total_amount = excluded.total_amount,
			total_edited_by = excluded.total_edited_by,
			total_edited_at = excluded.total_edited_at,
			updated_at = excluded.updated_at
	`

	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		m.EmployeeCode, m.PayrollMonth, m.TotalAmount.String(),
		m.TotalEditedBy, nullableTime(m.TotalEditedAt), m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert payroll month", zap.String("employee_code", m.EmployeeCode), zap.Error(err))
		return fmt.Errorf("failed to upsert payroll month: %w", err)
	}

	return nil
}

// ListMonths returns every payroll month of an employee
func (r *ApprovalRepository) ListMonths(ctx context.Context, employeeCode string) ([]*entity.PayrollMonth, error) {
	query := `
		SELECT employee_code, payroll_month, total_amount, total_edited_by, total_edited_at, created_at, updated_at
		FROM payroll_months
		WHERE employee_code = ?
		ORDER BY created_at
	`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, employeeCode)
	if err != nil {
		r.logger.Error("Failed to list payroll months", zap.String("employee_code", employeeCode), zap.Error(err))
		return nil, fmt.Errorf("failed to list payroll months: %w", err)
	}
	defer rows.Close()

	var months []*entity.PayrollMonth
	for rows.Next() {
		m, err := scanMonth(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payroll month: %w", err)
		}
		months = append(months, m)
	}

	return months, rows.Err()
}

// CreateBatch inserts the batch and its level chain
func (r *ApprovalRepository) CreateBatch(ctx context.Context, b *entity.ApprovalBatch) error {
	b.UpdatedAt = time.Now()

	query := `INSERT INTO approval_batches (` + batchColumns + `, current_approver_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		b.ID, b.EmployeeCode, b.PayrollMonth, b.Sequence, b.SubmitterType, b.OPELabel,
		b.TotalLevels, b.LimitSnapshot.String(), b.CumulativeTotal.String(), b.BatchTotal.String(),
		b.CurrentLevel, b.OverallStatus, b.RejectedLevel, b.RejectionReason,
		b.SubmittedAt, b.UpdatedAt, b.CurrentApproverCode(),
	)
	if err != nil {
		r.logger.Error("Failed to create batch", zap.String("employee_code", b.EmployeeCode), zap.Error(err))
		return fmt.Errorf("failed to create batch: %w", err)
	}

	return r.writeLevels(ctx, b)
}

// GetBatch retrieves a batch with its levels
func (r *ApprovalRepository) GetBatch(ctx context.Context, id string) (*entity.ApprovalBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM approval_batches WHERE id = ?`

	b, err := scanBatch(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get batch", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}

	if err := r.loadLevels(ctx, []*entity.ApprovalBatch{b}); err != nil {
		return nil, err
	}
	return b, nil
}

// UpdateBatch rewrites the batch row and replaces its levels
func (r *ApprovalRepository) UpdateBatch(ctx context.Context, b *entity.ApprovalBatch) error {
	b.UpdatedAt = time.Now()

	query := `
		UPDATE approval_batches SET
			batch_total = ?, cumulative_total = ?, current_level = ?, current_approver_code = ?,
			overall_status = ?, rejected_level = ?, rejection_reason = ?, updated_at = ?
		WHERE id = ?
	`

	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		b.BatchTotal.String(), b.CumulativeTotal.String(), b.CurrentLevel, b.CurrentApproverCode(),
		b.OverallStatus, b.RejectedLevel, b.RejectionReason, b.UpdatedAt,
		b.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update batch", zap.String("id", b.ID), zap.Error(err))
		return fmt.Errorf("failed to update batch: %w", err)
	}

	return r.writeLevels(ctx, b)
}

// ListBatchesByEmployee returns every batch of an employee
func (r *ApprovalRepository) ListBatchesByEmployee(ctx context.Context, employeeCode string) ([]*entity.ApprovalBatch, error) {
	return r.listBatches(ctx, `WHERE employee_code = ?`, employeeCode)
}

// ListBatchesByMonth returns the batches of one payroll month in submission order
func (r *ApprovalRepository) ListBatchesByMonth(ctx context.Context, employeeCode, payrollMonth string) ([]*entity.ApprovalBatch, error) {
	return r.listBatches(ctx, `WHERE employee_code = ? AND payroll_month = ?`, employeeCode, payrollMonth)
}

// ListPendingByApprover uses idx_batches_current_approver
func (r *ApprovalRepository) ListPendingByApprover(ctx context.Context, approverCode string) ([]*entity.ApprovalBatch, error) {
	return r.listBatches(ctx, `WHERE current_approver_code = ? AND overall_status = ?`,
		approverCode, entity.OverallStatusPending)
}

func (r *ApprovalRepository) listBatches(ctx context.Context, where string, args ...interface{}) ([]*entity.ApprovalBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM approval_batches ` + where + ` ORDER BY submitted_at, sequence`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list batches", zap.Error(err))
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}

	var batches []*entity.ApprovalBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := r.loadLevels(ctx, batches); err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *ApprovalRepository) writeLevels(ctx context.Context, b *entity.ApprovalBatch) error {
	exec := sqlite.Conn(ctx, r.db)

	if _, err := exec.ExecContext(ctx, `DELETE FROM approval_levels WHERE batch_id = ?`, b.ID); err != nil {
		r.logger.Error("Failed to clear levels", zap.String("batch_id", b.ID), zap.Error(err))
		return fmt.Errorf("failed to clear levels: %w", err)
	}

	query := `
		INSERT INTO approval_levels (batch_id, level, name, role, approver_code, approver_name, approved, approved_at, rejected_by, rejected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, lvl := range b.Levels {
		_, err := exec.ExecContext(ctx, query,
			b.ID, lvl.Level, lvl.Name, lvl.Role, lvl.ApproverCode, lvl.ApproverName,
			lvl.Approved, nullableTime(lvl.ApprovedAt), lvl.RejectedBy, nullableTime(lvl.RejectedAt),
		)
		if err != nil {
			r.logger.Error("Failed to write level", zap.String("batch_id", b.ID), zap.Int("level", lvl.Level), zap.Error(err))
			return fmt.Errorf("failed to write level: %w", err)
		}
	}

	return nil
}

// loadLevels fills Levels for each batch; rows are closed before the next query
// so a single-connection transaction is never asked for two open cursors
func (r *ApprovalRepository) loadLevels(ctx context.Context, batches []*entity.ApprovalBatch) error {
	query := `
		SELECT level, name, role, approver_code, approver_name, approved, approved_at, rejected_by, rejected_at
		FROM approval_levels
		WHERE batch_id = ?
		ORDER BY level
	`

	for _, b := range batches {
		rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, b.ID)
		if err != nil {
			r.logger.Error("Failed to load levels", zap.String("batch_id", b.ID), zap.Error(err))
			return fmt.Errorf("failed to load levels: %w", err)
		}

		b.Levels = b.Levels[:0]
		for rows.Next() {
			var lvl entity.ApprovalLevel
			var approvedAt, rejectedAt sql.NullTime
			if err := rows.Scan(
				&lvl.Level, &lvl.Name, &lvl.Role, &lvl.ApproverCode, &lvl.ApproverName,
				&lvl.Approved, &approvedAt, &lvl.RejectedBy, &rejectedAt,
			); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan level: %w", err)
			}
			lvl.ApprovedAt = timePtr(approvedAt)
			lvl.RejectedAt = timePtr(rejectedAt)
			b.Levels = append(b.Levels, lvl)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}
	}

	return nil
}

func scanBatch(row rowScanner) (*entity.ApprovalBatch, error) {
	var b entity.ApprovalBatch
	err := row.Scan(
		&b.ID, &b.EmployeeCode, &b.PayrollMonth, &b.Sequence, &b.SubmitterType, &b.OPELabel,
		&b.TotalLevels, &b.LimitSnapshot, &b.CumulativeTotal, &b.BatchTotal,
		&b.CurrentLevel, &b.OverallStatus, &b.RejectedLevel, &b.RejectionReason,
		&b.SubmittedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func scanMonth(row rowScanner) (*entity.PayrollMonth, error) {
	var m entity.PayrollMonth
	var editedAt sql.NullTime
	err := row.Scan(
		&m.EmployeeCode, &m.PayrollMonth, &m.TotalAmount, &m.TotalEditedBy, &editedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.TotalEditedAt = timePtr(editedAt)
	return &m, nil
}

// Verify interface compliance
var _ port.ApprovalRepository = (*ApprovalRepository)(nil)
