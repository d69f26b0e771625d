package service

import (
	"context"
	"fmt"

	"github.com/garyjia/ope-approval/internal/application/dispatcher"
	"github.com/garyjia/ope-approval/internal/application/port"
	"github.com/garyjia/ope-approval/internal/domain/entity"
	"github.com/garyjia/ope-approval/internal/domain/errs"
	"github.com/garyjia/ope-approval/internal/domain/event"
)

// ProjectorName is the name the work-queue projector subscribes under
const ProjectorName = "work-queue-projector"

// QueueProjector keeps the Pending / Approved / Rejected sets of every
// approver scope in step with chain events. Within one scope an employee is in
// at most one set after each move.
type QueueProjector struct {
	queues port.QueueRepository
	logger Logger
}

// NewQueueProjector creates a projector over the queue repository
func NewQueueProjector(queues port.QueueRepository, logger Logger) *QueueProjector {
	return &QueueProjector{queues: queues, logger: logger}
}

// Register subscribes the projector to every chain event
func (p *QueueProjector) Register(d dispatcher.Dispatcher) {
	d.Subscribe(ProjectorName, p.Handle,
		event.TypeBatchSubmitted,
		event.TypeLevelApproved,
		event.TypeBatchRejected,
		event.TypeEntryReapproved,
		event.TypeEntryRerejected,
	)
}

// Handle applies one chain event to the projections
func (p *QueueProjector) Handle(ctx context.Context, evt *event.Event) error {
	actor := entity.QueueScope{
		Role:         evt.GetPayloadString(event.KeyActorRole),
		ApproverCode: evt.GetPayloadString(event.KeyActorCode),
	}
	next := entity.QueueScope{
		Role:         evt.GetPayloadString(event.KeyNextRole),
		ApproverCode: evt.GetPayloadString(event.KeyNextApprover),
	}
	emp := evt.EmployeeCode

	var err error
	switch evt.Type {
	case event.TypeBatchSubmitted:
		err = p.AddToPending(ctx, next, emp)
	case event.TypeLevelApproved:
		if err = p.MoveToApproved(ctx, actor, emp); err == nil && next.ApproverCode != "" {
			err = p.AddToPending(ctx, next, emp)
		}
	case event.TypeBatchRejected:
		err = p.MoveToRejected(ctx, actor, emp)
	case event.TypeEntryReapproved:
		if !evt.GetPayloadBool(event.KeyStillRejected) {
			err = p.MoveBackFromRejectedToApproved(ctx, actor, emp)
		}
		if err == nil && next.ApproverCode != "" {
			err = p.AddToPending(ctx, next, emp)
		}
	case event.TypeEntryRerejected:
		if !evt.GetPayloadBool(event.KeyStillApproved) {
			err = p.MoveToRejected(ctx, actor, emp)
		}
	}
	if err != nil {
		return fmt.Errorf("project %s for %s: %w", evt.Type, emp, err)
	}
	return nil
}

// AddToPending puts the employee in the scope's Pending set
func (p *QueueProjector) AddToPending(ctx context.Context, scope entity.QueueScope, employeeCode string) error {
	return p.move(ctx, scope, employeeCode, entity.QueuePending, entity.QueueApproved, entity.QueueRejected)
}

// MoveToApproved moves the employee from Pending or Rejected to Approved
func (p *QueueProjector) MoveToApproved(ctx context.Context, scope entity.QueueScope, employeeCode string) error {
	return p.move(ctx, scope, employeeCode, entity.QueueApproved, entity.QueuePending, entity.QueueRejected)
}

// MoveToRejected moves the employee from Pending or Approved to Rejected
func (p *QueueProjector) MoveToRejected(ctx context.Context, scope entity.QueueScope, employeeCode string) error {
	return p.move(ctx, scope, employeeCode, entity.QueueRejected, entity.QueuePending, entity.QueueApproved)
}

// MoveBackFromRejectedToApproved moves the employee from Rejected to Approved
func (p *QueueProjector) MoveBackFromRejectedToApproved(ctx context.Context, scope entity.QueueScope, employeeCode string) error {
	return p.move(ctx, scope, employeeCode, entity.QueueApproved, entity.QueueRejected)
}

func (p *QueueProjector) move(ctx context.Context, scope entity.QueueScope, employeeCode string, to entity.QueueStatus, from ...entity.QueueStatus) error {
	if scope.ApproverCode == "" || scope.Role == "" {
		return fmt.Errorf("incomplete queue scope %+v", scope)
	}
	for _, status := range from {
		if err := p.queues.Remove(ctx, scope, status, employeeCode); err != nil {
			return err
		}
	}
	if err := p.queues.Add(ctx, scope, to, employeeCode); err != nil {
		return err
	}
	p.logger.Info("Work queue updated", "role", scope.Role, "approver_code", scope.ApproverCode, "employee_code", employeeCode, "status", string(to))
	return nil
}

// QueueService reads approver worklists
type QueueService interface {
	// ListWorkQueue returns the employees in the caller's projections for the
	// status, each with the entries that currently match it
	ListWorkQueue(ctx context.Context, approverCode string, status entity.QueueStatus) ([]*entity.WorkQueueItem, error)

	// ListPendingApprovals returns pending batches whose current level awaits the caller
	ListPendingApprovals(ctx context.Context, approverCode string) ([]*entity.PendingApproval, error)
}

type queueServiceImpl struct {
	queueRepo     port.QueueRepository
	entryRepo     port.EntryRepository
	approvalRepo  port.ApprovalRepository
	directoryRepo port.DirectoryRepository
	roles         RoleResolver
	logger        Logger
}

// NewQueueService creates a new QueueService
func NewQueueService(
	queueRepo port.QueueRepository,
	entryRepo port.EntryRepository,
	approvalRepo port.ApprovalRepository,
	directoryRepo port.DirectoryRepository,
	roles RoleResolver,
	logger Logger,
) QueueService {
	return &queueServiceImpl{
		queueRepo:     queueRepo,
		entryRepo:     entryRepo,
		approvalRepo:  approvalRepo,
		directoryRepo: directoryRepo,
		roles:         roles,
		logger:        logger,
	}
}

// ListWorkQueue joins projection members against entries and drops stale members
func (s *queueServiceImpl) ListWorkQueue(ctx context.Context, approverCode string, status entity.QueueStatus) ([]*entity.WorkQueueItem, error) {
	parsed, ok := entity.ParseQueueStatus(string(status))
	if !ok {
		return nil, &errs.ValidationError{Field: "status", Value: string(status), Reason: "must be Pending, Approved or Rejected"}
	}
	status = parsed

	p, err := requireApprover(ctx, s.roles, approverCode, "list work queue")
	if err != nil {
		return nil, err
	}

	scopes, err := s.queueRepo.Scopes(ctx, p.Code)
	if err != nil {
		return nil, fmt.Errorf("list scopes: %w", err)
	}

	var order []string
	roles := make(map[string][]string)
	for _, scope := range scopes {
		members, err := s.queueRepo.Members(ctx, scope, status)
		if err != nil {
			return nil, fmt.Errorf("list members: %w", err)
		}
		for _, code := range members {
			if _, seen := roles[code]; !seen {
				order = append(order, code)
			}
			roles[code] = append(roles[code], scope.Role)
		}
	}

	items := make([]*entity.WorkQueueItem, 0, len(order))
	for _, code := range order {
		entries, err := s.matchingEntries(ctx, p.Code, code, status)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			continue
		}

		item := &entity.WorkQueueItem{EmployeeCode: code, Roles: roles[code], Entries: entries}
		if emp, err := s.directoryRepo.GetEmployee(ctx, code); err == nil && emp != nil {
			item.EmployeeName = emp.Name
		}
		items = append(items, item)
	}

	return items, nil
}

// matchingEntries applies the read-time filter of one projection status
func (s *queueServiceImpl) matchingEntries(ctx context.Context, approverCode, employeeCode string, status entity.QueueStatus) ([]*entity.ExpenseEntry, error) {
	entries, err := s.entryRepo.ListByEmployee(ctx, employeeCode)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	batches, err := s.approvalRepo.ListBatchesByEmployee(ctx, employeeCode)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	idx := batchIndex(batches)

	var out []*entity.ExpenseEntry
	for _, e := range entries {
		b := idx[e.BatchID]
		if b == nil {
			continue
		}
		var match bool
		switch status {
		case entity.QueuePending:
			match = b.CurrentApproverCode() == approverCode && e.Status == expectedEntryStatus(b.Current())
		case entity.QueueApproved:
			match = e.Status == entity.EntryStatusApproved && b.ApprovedBy(approverCode)
		case entity.QueueRejected:
			match = e.Status == entity.EntryStatusRejected && e.RejectedBy == approverCode
		}
		if match {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListPendingApprovals uses the indexed current-approver lookup
func (s *queueServiceImpl) ListPendingApprovals(ctx context.Context, approverCode string) ([]*entity.PendingApproval, error) {
	p, err := requireApprover(ctx, s.roles, approverCode, "list pending approvals")
	if err != nil {
		return nil, err
	}

	batches, err := s.approvalRepo.ListPendingByApprover(ctx, p.Code)
	if err != nil {
		s.logger.Error("Failed to list pending approvals", "error", err, "approver_code", p.Code)
		return nil, err
	}

	names := make(map[string]string)
	out := make([]*entity.PendingApproval, 0, len(batches))
	for _, b := range batches {
		name, ok := names[b.EmployeeCode]
		if !ok {
			if emp, err := s.directoryRepo.GetEmployee(ctx, b.EmployeeCode); err == nil && emp != nil {
				name = emp.Name
			}
			names[b.EmployeeCode] = name
		}
		out = append(out, &entity.PendingApproval{Batch: b, EmployeeName: name})
	}
	return out, nil
}
