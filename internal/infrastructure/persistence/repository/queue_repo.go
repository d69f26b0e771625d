package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/ope-approval/internal/application/port"
	"github.com/garyjia/ope-approval/internal/domain/entity"
	"github.com/garyjia/ope-approval/internal/infrastructure/persistence/sqlite"
)

// QueueRepository implements port.QueueRepository on the work_queue table
type QueueRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewQueueRepository creates a new work-queue repository
func NewQueueRepository(db *sql.DB, logger *zap.Logger) port.QueueRepository {
	return &QueueRepository{
		db:     db,
		logger: logger,
	}
}

// Add inserts the employee into a projection; repeated adds are no-ops
func (r *QueueRepository) Add(ctx context.Context, scope entity.QueueScope, status entity.QueueStatus, employeeCode string) error {
	query := `
		INSERT OR IGNORE INTO work_queue (scope_role, approver_code, status, employee_code)
		VALUES (?, ?, ?, ?)
	`

	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query, scope.Role, scope.ApproverCode, string(status), employeeCode)
	if err != nil {
		r.logger.Error("Failed to add to work queue",
			zap.String("approver_code", scope.ApproverCode),
			zap.String("status", string(status)),
			zap.Error(err))
		return fmt.Errorf("failed to add to work queue: %w", err)
	}

	return nil
}

// Remove pulls the employee from a projection
func (r *QueueRepository) Remove(ctx context.Context, scope entity.QueueScope, status entity.QueueStatus, employeeCode string) error {
	query := `
		DELETE FROM work_queue
		WHERE scope_role = ? AND approver_code = ? AND status = ? AND employee_code = ?
	`

	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query, scope.Role, scope.ApproverCode, string(status), employeeCode)
	if err != nil {
		r.logger.Error("Failed to remove from work queue",
			zap.String("approver_code", scope.ApproverCode),
			zap.String("status", string(status)),
			zap.Error(err))
		return fmt.Errorf("failed to remove from work queue: %w", err)
	}

	return nil
}

// Members lists the employee codes of one projection
func (r *QueueRepository) Members(ctx context.Context, scope entity.QueueScope, status entity.QueueStatus) ([]string, error) {
	query := `
		SELECT employee_code FROM work_queue
		WHERE scope_role = ? AND approver_code = ? AND status = ?
		ORDER BY added_at, employee_code
	`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, scope.Role, scope.ApproverCode, string(status))
	if err != nil {
		r.logger.Error("Failed to list work queue", zap.String("approver_code", scope.ApproverCode), zap.Error(err))
		return nil, fmt.Errorf("failed to list work queue: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan work queue row: %w", err)
		}
		codes = append(codes, code)
	}

	return codes, rows.Err()
}

// Scopes lists the roles the approver has projection rows under
func (r *QueueRepository) Scopes(ctx context.Context, approverCode string) ([]entity.QueueScope, error) {
	query := `SELECT DISTINCT scope_role FROM work_queue WHERE approver_code = ? ORDER BY scope_role`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, approverCode)
	if err != nil {
		r.logger.Error("Failed to list work queue scopes", zap.String("approver_code", approverCode), zap.Error(err))
		return nil, fmt.Errorf("failed to list work queue scopes: %w", err)
	}
	defer rows.Close()

	var scopes []entity.QueueScope
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("failed to scan work queue scope: %w", err)
		}
		scopes = append(scopes, entity.QueueScope{Role: role, ApproverCode: approverCode})
	}

	return scopes, rows.Err()
}

// Verify interface compliance
var _ port.QueueRepository = (*QueueRepository)(nil)
