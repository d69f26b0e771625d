package port

import (
	"context"

	"github.com/garyjia/ope-approval/internal/domain/entity"
)

// EntryRepository persists expense entries, drafts included.
// Lookups return nil, nil when nothing matches.
type EntryRepository interface {
	Create(ctx context.Context, entry *entity.ExpenseEntry) error
	GetByID(ctx context.Context, id string) (*entity.ExpenseEntry, error)
	Update(ctx context.Context, entry *entity.ExpenseEntry) error
	Delete(ctx context.Context, id string) error

	// ListDrafts returns saved entries; an empty month returns every month
	ListDrafts(ctx context.Context, employeeCode, payrollMonth string) ([]*entity.ExpenseEntry, error)

	// ListByMonth returns finalized entries of one payroll month
	ListByMonth(ctx context.Context, employeeCode, payrollMonth string) ([]*entity.ExpenseEntry, error)

	// ListByEmployee returns every finalized entry of an employee
	ListByEmployee(ctx context.Context, employeeCode string) ([]*entity.ExpenseEntry, error)

	ListByBatch(ctx context.Context, batchID string) ([]*entity.ExpenseEntry, error)
}

// ApprovalRepository persists payroll-month totals and batch level chains
type ApprovalRepository interface {
	GetMonth(ctx context.Context, employeeCode, payrollMonth string) (*entity.PayrollMonth, error)
	UpsertMonth(ctx context.Context, month *entity.PayrollMonth) error
	ListMonths(ctx context.Context, employeeCode string) ([]*entity.PayrollMonth, error)

	// CreateBatch stores the batch together with its level descriptors
	CreateBatch(ctx context.Context, batch *entity.ApprovalBatch) error
	GetBatch(ctx context.Context, id string) (*entity.ApprovalBatch, error)

	// UpdateBatch rewrites the batch row and its level descriptors
	UpdateBatch(ctx context.Context, batch *entity.ApprovalBatch) error

	ListBatchesByEmployee(ctx context.Context, employeeCode string) ([]*entity.ApprovalBatch, error)
	ListBatchesByMonth(ctx context.Context, employeeCode, payrollMonth string) ([]*entity.ApprovalBatch, error)

	// ListPendingByApprover is an indexed lookup on (current approver, overall status)
	ListPendingByApprover(ctx context.Context, approverCode string) ([]*entity.ApprovalBatch, error)
}

// QueueRepository persists work-queue projections with set semantics
type QueueRepository interface {
	Add(ctx context.Context, scope entity.QueueScope, status entity.QueueStatus, employeeCode string) error
	Remove(ctx context.Context, scope entity.QueueScope, status entity.QueueStatus, employeeCode string) error
	Members(ctx context.Context, scope entity.QueueScope, status entity.QueueStatus) ([]string, error)

	// Scopes returns every scope the approver has projection rows in
	Scopes(ctx context.Context, approverCode string) ([]entity.QueueScope, error)
}

// DirectoryRepository holds the employee, reporting-manager and partner directories
type DirectoryRepository interface {
	GetEmployee(ctx context.Context, code string) (*entity.Employee, error)
	UpsertEmployee(ctx context.Context, emp *entity.Employee) error
	GetReportingManager(ctx context.Context, code string) (*entity.DirectoryMember, error)
	UpsertReportingManager(ctx context.Context, member *entity.DirectoryMember) error
	GetPartner(ctx context.Context, code string) (*entity.DirectoryMember, error)
	UpsertPartner(ctx context.Context, member *entity.DirectoryMember) error
}

// TransactionManager runs a unit of work; repositories called with the
// context passed to fn take part in the same transaction
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
