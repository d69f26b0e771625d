package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/garyjia/ope-approval/internal/application/port"
	"github.com/garyjia/ope-approval/internal/domain/entity"
)

type entryRepo struct{ s *Store }

func (r *entryRepo) Create(ctx context.Context, e *entity.ExpenseEntry) error {
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	return r.s.write(ctx, func(d *state) error {
		if _, exists := d.entries[e.ID]; exists {
			return fmt.Errorf("failed to create entry: %s already exists", e.ID)
		}
		d.entries[e.ID] = e.Clone()
		d.entryOrd[e.ID] = d.next()
		return nil
	})
}

func (r *entryRepo) GetByID(_ context.Context, id string) (*entity.ExpenseEntry, error) {
	var out *entity.ExpenseEntry
	r.s.read(func(d *state) {
		if e, ok := d.entries[id]; ok {
			out = e.Clone()
		}
	})
	return out, nil
}

func (r *entryRepo) Update(ctx context.Context, e *entity.ExpenseEntry) error {
	e.UpdatedAt = time.Now()
	return r.s.write(ctx, func(d *state) error {
		if _, ok := d.entries[e.ID]; !ok {
			return fmt.Errorf("failed to update entry: %s does not exist", e.ID)
		}
		d.entries[e.ID] = e.Clone()
		return nil
	})
}

func (r *entryRepo) Delete(ctx context.Context, id string) error {
	return r.s.write(ctx, func(d *state) error {
		delete(d.entries, id)
		delete(d.entryOrd, id)
		return nil
	})
}

func (r *entryRepo) ListDrafts(_ context.Context, employeeCode, payrollMonth string) ([]*entity.ExpenseEntry, error) {
	return r.filter(func(e *entity.ExpenseEntry) bool {
		return e.EmployeeCode == employeeCode && e.IsDraft() &&
			(payrollMonth == "" || e.PayrollMonth == payrollMonth)
	}), nil
}

func (r *entryRepo) ListByMonth(_ context.Context, employeeCode, payrollMonth string) ([]*entity.ExpenseEntry, error) {
	return r.filter(func(e *entity.ExpenseEntry) bool {
		return e.EmployeeCode == employeeCode && e.PayrollMonth == payrollMonth && !e.IsDraft()
	}), nil
}

func (r *entryRepo) ListByEmployee(_ context.Context, employeeCode string) ([]*entity.ExpenseEntry, error) {
	return r.filter(func(e *entity.ExpenseEntry) bool {
		return e.EmployeeCode == employeeCode && !e.IsDraft()
	}), nil
}

func (r *entryRepo) ListByBatch(_ context.Context, batchID string) ([]*entity.ExpenseEntry, error) {
	return r.filter(func(e *entity.ExpenseEntry) bool {
		return e.BatchID == batchID
	}), nil
}

func (r *entryRepo) filter(match func(*entity.ExpenseEntry) bool) []*entity.ExpenseEntry {
	var out []*entity.ExpenseEntry
	r.s.read(func(d *state) {
		for _, e := range d.entries {
			if match(e) {
				out = append(out, e.Clone())
			}
		}
		sortEntries(d, out)
	})
	return out
}

type approvalRepo struct{ s *Store }

func (r *approvalRepo) GetMonth(_ context.Context, employeeCode, payrollMonth string) (*entity.PayrollMonth, error) {
	var out *entity.PayrollMonth
	r.s.read(func(d *state) {
		if m, ok := d.months[monthKey{employeeCode, payrollMonth}]; ok {
			out = m.Clone()
		}
	})
	return out, nil
}

func (r *approvalRepo) UpsertMonth(ctx context.Context, m *entity.PayrollMonth) error {
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	return r.s.write(ctx, func(d *state) error {
		d.months[monthKey{m.EmployeeCode, m.PayrollMonth}] = m.Clone()
		return nil
	})
}

func (r *approvalRepo) ListMonths(_ context.Context, employeeCode string) ([]*entity.PayrollMonth, error) {
	var out []*entity.PayrollMonth
	r.s.read(func(d *state) {
		for k, m := range d.months {
			if k.employee == employeeCode {
				out = append(out, m.Clone())
			}
		}
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].PayrollMonth < out[j].PayrollMonth
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *approvalRepo) CreateBatch(ctx context.Context, b *entity.ApprovalBatch) error {
	b.UpdatedAt = time.Now()
	return r.s.write(ctx, func(d *state) error {
		if _, exists := d.batches[b.ID]; exists {
			return fmt.Errorf("failed to create batch: %s already exists", b.ID)
		}
		d.batches[b.ID] = b.Clone()
		return nil
	})
}

func (r *approvalRepo) GetBatch(_ context.Context, id string) (*entity.ApprovalBatch, error) {
	var out *entity.ApprovalBatch
	r.s.read(func(d *state) {
		if b, ok := d.batches[id]; ok {
			out = b.Clone()
		}
	})
	return out, nil
}

func (r *approvalRepo) UpdateBatch(ctx context.Context, b *entity.ApprovalBatch) error {
	b.UpdatedAt = time.Now()
	return r.s.write(ctx, func(d *state) error {
		if _, ok := d.batches[b.ID]; !ok {
			return fmt.Errorf("failed to update batch: %s does not exist", b.ID)
		}
		d.batches[b.ID] = b.Clone()
		return nil
	})
}

func (r *approvalRepo) ListBatchesByEmployee(_ context.Context, employeeCode string) ([]*entity.ApprovalBatch, error) {
	return r.filter(func(b *entity.ApprovalBatch) bool {
		return b.EmployeeCode == employeeCode
	}), nil
}

func (r *approvalRepo) ListBatchesByMonth(_ context.Context, employeeCode, payrollMonth string) ([]*entity.ApprovalBatch, error) {
	return r.filter(func(b *entity.ApprovalBatch) bool {
		return b.EmployeeCode == employeeCode && b.PayrollMonth == payrollMonth
	}), nil
}

func (r *approvalRepo) ListPendingByApprover(_ context.Context, approverCode string) ([]*entity.ApprovalBatch, error) {
	return r.filter(func(b *entity.ApprovalBatch) bool {
		return b.CurrentApproverCode() == approverCode
	}), nil
}

func (r *approvalRepo) filter(match func(*entity.ApprovalBatch) bool) []*entity.ApprovalBatch {
	var out []*entity.ApprovalBatch
	r.s.read(func(d *state) {
		for _, b := range d.batches {
			if match(b) {
				out = append(out, b.Clone())
			}
		}
	})
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case !a.SubmittedAt.Equal(b.SubmittedAt):
			return a.SubmittedAt.Before(b.SubmittedAt)
		case a.Sequence != b.Sequence:
			return a.Sequence < b.Sequence
		default:
			return a.ID < b.ID
		}
	})
	return out
}

type queueRepo struct{ s *Store }

func (r *queueRepo) Add(ctx context.Context, scope entity.QueueScope, status entity.QueueStatus, employeeCode string) error {
	return r.s.write(ctx, func(d *state) error {
		k := queueKey{scope.Role, scope.ApproverCode, status}
		members, ok := d.queues[k]
		if !ok {
			members = make(map[string]int64)
			d.queues[k] = members
		}
		if _, exists := members[employeeCode]; !exists {
			members[employeeCode] = d.next()
		}
		return nil
	})
}

func (r *queueRepo) Remove(ctx context.Context, scope entity.QueueScope, status entity.QueueStatus, employeeCode string) error {
	return r.s.write(ctx, func(d *state) error {
		delete(d.queues[queueKey{scope.Role, scope.ApproverCode, status}], employeeCode)
		return nil
	})
}

func (r *queueRepo) Members(_ context.Context, scope entity.QueueScope, status entity.QueueStatus) ([]string, error) {
	var codes []string
	r.s.read(func(d *state) {
		members := d.queues[queueKey{scope.Role, scope.ApproverCode, status}]
		for code := range members {
			codes = append(codes, code)
		}
		sort.Slice(codes, func(i, j int) bool { return members[codes[i]] < members[codes[j]] })
	})
	return codes, nil
}

func (r *queueRepo) Scopes(_ context.Context, approverCode string) ([]entity.QueueScope, error) {
	roles := make(map[string]bool)
	r.s.read(func(d *state) {
		for k, members := range d.queues {
			if k.approver == approverCode && len(members) > 0 {
				roles[k.role] = true
			}
		}
	})

	scopes := make([]entity.QueueScope, 0, len(roles))
	for role := range roles {
		scopes = append(scopes, entity.QueueScope{Role: role, ApproverCode: approverCode})
	}
	sort.Slice(scopes, func(i, j int) bool { return scopes[i].Role < scopes[j].Role })
	return scopes, nil
}

type directoryRepo struct{ s *Store }

func (r *directoryRepo) GetEmployee(_ context.Context, code string) (*entity.Employee, error) {
	var out *entity.Employee
	r.s.read(func(d *state) {
		if e, ok := d.employees[code]; ok {
			c := *e
			out = &c
		}
	})
	return out, nil
}

func (r *directoryRepo) UpsertEmployee(ctx context.Context, emp *entity.Employee) error {
	now := time.Now()
	if emp.CreatedAt.IsZero() {
		emp.CreatedAt = now
	}
	emp.UpdatedAt = now

	return r.s.write(ctx, func(d *state) error {
		c := *emp
		d.employees[emp.Code] = &c
		return nil
	})
}

func (r *directoryRepo) GetReportingManager(_ context.Context, code string) (*entity.DirectoryMember, error) {
	return r.get(func(d *state) map[string]*entity.DirectoryMember { return d.managers }, code), nil
}

func (r *directoryRepo) UpsertReportingManager(ctx context.Context, m *entity.DirectoryMember) error {
	return r.s.write(ctx, func(d *state) error {
		c := *m
		d.managers[m.Code] = &c
		return nil
	})
}

func (r *directoryRepo) GetPartner(_ context.Context, code string) (*entity.DirectoryMember, error) {
	return r.get(func(d *state) map[string]*entity.DirectoryMember { return d.partners }, code), nil
}

func (r *directoryRepo) UpsertPartner(ctx context.Context, m *entity.DirectoryMember) error {
	return r.s.write(ctx, func(d *state) error {
		c := *m
		d.partners[m.Code] = &c
		return nil
	})
}

func (r *directoryRepo) get(table func(*state) map[string]*entity.DirectoryMember, code string) *entity.DirectoryMember {
	var out *entity.DirectoryMember
	r.s.read(func(d *state) {
		if m, ok := table(d)[code]; ok {
			c := *m
			out = &c
		}
	})
	return out
}

// Verify interface compliance
var (
	_ port.EntryRepository     = (*entryRepo)(nil)
	_ port.ApprovalRepository  = (*approvalRepo)(nil)
	_ port.QueueRepository     = (*queueRepo)(nil)
	_ port.DirectoryRepository = (*directoryRepo)(nil)
)
