package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/ope-approval/internal/application/dispatcher"
	"github.com/garyjia/ope-approval/internal/application/port"
	"github.com/garyjia/ope-approval/internal/domain/entity"
	"github.com/garyjia/ope-approval/internal/domain/errs"
	"github.com/garyjia/ope-approval/internal/domain/event"
	"github.com/garyjia/ope-approval/internal/domain/workflow"
	"github.com/garyjia/ope-approval/pkg/utils"
)

// ApproveResult reports a level approval
type ApproveResult struct {
	ApprovedCount int    `json:"approved_count"`
	NextLevel     string `json:"next_level"`
	NextApprover  string `json:"next_approver,omitempty"`
}

// RejectResult reports a level rejection
type RejectResult struct {
	RejectedCount int `json:"rejected_count"`
}

// ApprovalService drives batches through their level chains
type ApprovalService interface {
	// ApproveAtCurrentLevel approves every batch of the employee whose current level awaits the caller
	ApproveAtCurrentLevel(ctx context.Context, approverCode, employeeCode string) (*ApproveResult, error)

	// RejectAtCurrentLevel rejects every batch awaiting the caller, and completed
	// batches whose final level the caller signed off
	RejectAtCurrentLevel(ctx context.Context, approverCode, employeeCode, reason string) (*RejectResult, error)

	// ApproveSingleEntry flips one rejected entry back to approved; the batch is
	// revived once none of its entries remain rejected
	ApproveSingleEntry(ctx context.Context, approverCode, employeeCode, entryID string) error

	// RejectSingleEntry flips one approved entry to rejected
	RejectSingleEntry(ctx context.Context, approverCode, employeeCode, entryID, reason string) error
}

type approvalServiceImpl struct {
	entryRepo    port.EntryRepository
	approvalRepo port.ApprovalRepository
	txManager    port.TransactionManager
	roles        RoleResolver
	dispatcher   dispatcher.Dispatcher
	clock        Clock
	logger       Logger
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(
	entryRepo port.EntryRepository,
	approvalRepo port.ApprovalRepository,
	txManager port.TransactionManager,
	roles RoleResolver,
	d dispatcher.Dispatcher,
	clock Clock,
	logger Logger,
) ApprovalService {
	return &approvalServiceImpl{
		entryRepo:    entryRepo,
		approvalRepo: approvalRepo,
		txManager:    txManager,
		roles:        roles,
		dispatcher:   d,
		clock:        clock,
		logger:       logger,
	}
}

// ApproveAtCurrentLevel approves the caller's level on every eligible batch
func (s *approvalServiceImpl) ApproveAtCurrentLevel(ctx context.Context, approverCode, employeeCode string) (*ApproveResult, error) {
	employeeCode = utils.NormalizeCode(employeeCode)
	p, err := requireApprover(ctx, s.roles, approverCode, "approve")
	if err != nil {
		return nil, err
	}

	result := &ApproveResult{}
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		batches, err := s.approvalRepo.ListBatchesByEmployee(txCtx, employeeCode)
		if err != nil {
			return fmt.Errorf("list batches: %w", err)
		}

		now := s.clock.now()
		for _, b := range batches {
			if b.CurrentApproverCode() != p.Code {
				continue
			}
			n, err := s.approveBatch(txCtx, p, b, now)
			if err != nil {
				return err
			}
			if n == 0 {
				continue
			}
			result.ApprovedCount += n
			result.NextLevel = b.CurrentLevel
			result.NextApprover = b.CurrentApproverCode()
		}

		if result.ApprovedCount == 0 {
			return &errs.NoEligibleEntriesError{
				EmployeeCode: employeeCode,
				ApproverCode: p.Code,
				Action:       "approve",
				Expected:     "entries of a pending batch awaiting the caller",
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to approve", "error", err, "approver_code", p.Code, "employee_code", employeeCode)
		return nil, err
	}

	s.logger.Info("Level approved",
		"approver_code", p.Code,
		"employee_code", employeeCode,
		"approved_count", result.ApprovedCount,
		"next_level", result.NextLevel,
	)
	return result, nil
}

// approveBatch advances one batch past its current level and returns the number of entries acted on
func (s *approvalServiceImpl) approveBatch(ctx context.Context, p *entity.Principal, b *entity.ApprovalBatch, now time.Time) (int, error) {
	machine, err := workflow.MachineFor(b)
	if err != nil {
		return 0, err
	}
	if !machine.CanFire(ctx, workflow.TriggerApprove) {
		return 0, nil
	}

	lvl := b.Current()
	entries, err := s.entryRepo.ListByBatch(ctx, b.ID)
	if err != nil {
		return 0, fmt.Errorf("list entries: %w", err)
	}
	acted := entriesWithStatus(entries, expectedEntryStatus(lvl))
	if len(acted) == 0 {
		return 0, nil
	}
	if err := machine.Fire(ctx, workflow.TriggerApprove); err != nil {
		return 0, err
	}

	level, role := lvl.Name, lvl.Role
	signOff(lvl, now)
	for _, e := range acted {
		if role == entity.RoleNameHR {
			e.StampHRApproval(p.Code, now)
		} else {
			e.MarkApproved(p.Code, p.Name, now)
		}
		if err := s.entryRepo.Update(ctx, e); err != nil {
			return 0, fmt.Errorf("update entry %s: %w", e.ID, err)
		}
	}

	workflow.Apply(b, machine.State())
	if err := s.approvalRepo.UpdateBatch(ctx, b); err != nil {
		return 0, fmt.Errorf("update batch: %w", err)
	}

	payload := map[string]interface{}{
		event.KeyActorCode: p.Code,
		event.KeyActorRole: role,
		event.KeyLevel:     level,
		event.KeyCount:     len(acted),
	}
	if next := b.Current(); next != nil && b.IsPending() {
		payload[event.KeyNextApprover] = next.ApproverCode
		payload[event.KeyNextRole] = next.Role
	}
	evt := event.NewEvent(event.TypeLevelApproved, b.EmployeeCode, b.ID, b.PayrollMonth, payload)
	if err := publish(ctx, s.dispatcher, evt); err != nil {
		return 0, fmt.Errorf("dispatch %s: %w", evt.Type, err)
	}

	return len(acted), nil
}

// RejectAtCurrentLevel rejects the caller's level on every eligible batch
func (s *approvalServiceImpl) RejectAtCurrentLevel(ctx context.Context, approverCode, employeeCode, reason string) (*RejectResult, error) {
	employeeCode = utils.NormalizeCode(employeeCode)
	reason = rejectionReason(reason)
	p, err := requireApprover(ctx, s.roles, approverCode, "reject")
	if err != nil {
		return nil, err
	}

	result := &RejectResult{}
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		batches, err := s.approvalRepo.ListBatchesByEmployee(txCtx, employeeCode)
		if err != nil {
			return fmt.Errorf("list batches: %w", err)
		}

		now := s.clock.now()
		for _, b := range batches {
			lvl := rejectableLevel(b, p.Code)
			if lvl == nil {
				continue
			}
			n, err := s.rejectBatch(txCtx, p, b, lvl, reason, now)
			if err != nil {
				return err
			}
			result.RejectedCount += n
		}

		if result.RejectedCount == 0 {
			return &errs.NoEligibleEntriesError{
				EmployeeCode: employeeCode,
				ApproverCode: p.Code,
				Action:       "reject",
				Expected:     "entries of a batch awaiting the caller or signed off by the caller as final approver",
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to reject", "error", err, "approver_code", p.Code, "employee_code", employeeCode)
		return nil, err
	}

	s.logger.Info("Batch rejected",
		"approver_code", p.Code,
		"employee_code", employeeCode,
		"rejected_count", result.RejectedCount,
	)
	return result, nil
}

// rejectableLevel returns the level the caller may reject a batch at, or nil
func rejectableLevel(b *entity.ApprovalBatch, approverCode string) *entity.ApprovalLevel {
	switch b.OverallStatus {
	case entity.OverallStatusPending:
		if b.CurrentApproverCode() == approverCode {
			return b.Current()
		}
	case entity.OverallStatusApproved:
		if last := b.LastLevel(); last != nil && last.ApproverCode == approverCode {
			return last
		}
	}
	return nil
}

func (s *approvalServiceImpl) rejectBatch(ctx context.Context, p *entity.Principal, b *entity.ApprovalBatch, lvl *entity.ApprovalLevel, reason string, now time.Time) (int, error) {
	machine, err := workflow.MachineFor(b)
	if err != nil {
		return 0, err
	}
	if !machine.CanFire(ctx, workflow.TriggerReject) {
		return 0, nil
	}

	entries, err := s.entryRepo.ListByBatch(ctx, b.ID)
	if err != nil {
		return 0, fmt.Errorf("list entries: %w", err)
	}
	expected := expectedEntryStatus(lvl)
	if !b.IsPending() {
		expected = entity.EntryStatusApproved
	}
	acted := entriesWithStatus(entries, expected)
	if len(acted) == 0 {
		return 0, nil
	}
	if err := machine.Fire(ctx, workflow.TriggerReject); err != nil {
		return 0, err
	}

	level, role := lvl.Name, lvl.Role
	markLevelRejected(lvl, p.Code, now)
	for _, e := range acted {
		e.MarkRejected(p.Code, p.Name, level, reason, now)
		e.ClearHRApproval()
		if err := s.entryRepo.Update(ctx, e); err != nil {
			return 0, fmt.Errorf("update entry %s: %w", e.ID, err)
		}
	}

	b.RejectedLevel = level
	b.RejectionReason = reason
	workflow.Apply(b, machine.State())
	if err := s.approvalRepo.UpdateBatch(ctx, b); err != nil {
		return 0, fmt.Errorf("update batch: %w", err)
	}

	evt := event.NewEvent(event.TypeBatchRejected, b.EmployeeCode, b.ID, b.PayrollMonth, map[string]interface{}{
		event.KeyActorCode: p.Code,
		event.KeyActorRole: role,
		event.KeyLevel:     level,
		event.KeyCount:     len(acted),
	})
	if err := publish(ctx, s.dispatcher, evt); err != nil {
		return 0, fmt.Errorf("dispatch %s: %w", evt.Type, err)
	}

	return len(acted), nil
}

// ApproveSingleEntry re-approves one rejected entry
func (s *approvalServiceImpl) ApproveSingleEntry(ctx context.Context, approverCode, employeeCode, entryID string) error {
	p, err := requireApprover(ctx, s.roles, approverCode, "approve entry")
	if err != nil {
		return err
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		e, b, err := s.loadEntry(txCtx, employeeCode, entryID, entity.EntryStatusRejected)
		if err != nil {
			return err
		}

		lvl := b.LevelByName(e.RejectedLevel)
		if lvl == nil || lvl.ApproverCode != p.Code {
			return &errs.AuthorizationError{
				Actor:  p.Code,
				Action: "approve entry",
				Reason: fmt.Sprintf("entry %s was rejected at level %q by another approver", e.ID, e.RejectedLevel),
			}
		}
		role := lvl.Role

		now := s.clock.now()
		if role == entity.RoleNameHR {
			e.ClearRejection()
			e.Status = entity.EntryStatusApproved
			e.StampHRApproval(p.Code, now)
		} else {
			e.MarkApproved(p.Code, p.Name, now)
		}
		if err := s.entryRepo.Update(txCtx, e); err != nil {
			return fmt.Errorf("update entry: %w", err)
		}

		next, err := s.reviveIfClear(txCtx, b, now)
		if err != nil {
			return err
		}

		stillRejected, err := s.anyEntry(txCtx, b.EmployeeCode, func(x *entity.ExpenseEntry, _ *entity.ApprovalBatch) bool {
			return x.Status == entity.EntryStatusRejected && x.RejectedBy == p.Code
		})
		if err != nil {
			return err
		}

		payload := map[string]interface{}{
			event.KeyActorCode:     p.Code,
			event.KeyActorRole:     role,
			event.KeyEntryID:       e.ID,
			event.KeyStillRejected: stillRejected,
		}
		if next != nil {
			payload[event.KeyNextApprover] = next.ApproverCode
			payload[event.KeyNextRole] = next.Role
		}
		evt := event.NewEvent(event.TypeEntryReapproved, b.EmployeeCode, b.ID, b.PayrollMonth, payload)
		if err := publish(txCtx, s.dispatcher, evt); err != nil {
			return fmt.Errorf("dispatch %s: %w", evt.Type, err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to re-approve entry", "error", err, "approver_code", p.Code, "entry_id", entryID)
		return err
	}

	s.logger.Info("Entry re-approved", "approver_code", p.Code, "entry_id", entryID)
	return nil
}

// reviveIfClear moves a rejected batch forward once none of its entries are
// rejected. The chain restarts after the batch's rejected level, which is the
// lowest level any rejection reached while the batch stayed rejected.
// It returns the level now awaiting action, or nil.
func (s *approvalServiceImpl) reviveIfClear(ctx context.Context, b *entity.ApprovalBatch, now time.Time) (*entity.ApprovalLevel, error) {
	if !b.IsRejected() {
		return nil, nil
	}
	entries, err := s.entryRepo.ListByBatch(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	if len(entriesWithStatus(entries, entity.EntryStatusRejected)) > 0 {
		return nil, nil
	}

	reviving := b.LevelByName(b.RejectedLevel)
	if reviving == nil {
		return nil, &errs.ConflictError{Resource: "batch", Key: b.ID, Expected: "a rejected level", Actual: b.RejectedLevel}
	}

	machine, err := workflow.MachineFor(b)
	if err != nil {
		return nil, err
	}
	if err := machine.Fire(workflow.WithReviveLevel(ctx, reviving.Level), workflow.TriggerRevive); err != nil {
		return nil, err
	}

	signOff(reviving, now)
	for i := range b.Levels {
		if b.Levels[i].Level > reviving.Level {
			b.Levels[i].Approved = false
			b.Levels[i].ApprovedAt = nil
		}
	}
	b.RejectedLevel = ""
	b.RejectionReason = ""
	workflow.Apply(b, machine.State())
	if err := s.approvalRepo.UpdateBatch(ctx, b); err != nil {
		return nil, fmt.Errorf("update batch: %w", err)
	}

	if !b.IsPending() {
		return nil, nil
	}
	return b.Current(), nil
}

// RejectSingleEntry re-rejects one approved entry.
// The caller's level keeps its sign-off and records the rejector. A batch that
// was not yet rejected stops at that level; a rejected batch whose rejection
// sits at a higher level is moved down to it.
func (s *approvalServiceImpl) RejectSingleEntry(ctx context.Context, approverCode, employeeCode, entryID, reason string) error {
	reason = rejectionReason(reason)
	p, err := requireApprover(ctx, s.roles, approverCode, "reject entry")
	if err != nil {
		return err
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		e, b, err := s.loadEntry(txCtx, employeeCode, entryID, entity.EntryStatusApproved)
		if err != nil {
			return err
		}

		lvl := highestApprovedLevel(b, p.Code)
		if lvl == nil {
			if !b.HasApprover(p.Code) {
				return &errs.AuthorizationError{
					Actor:  p.Code,
					Action: "reject entry",
					Reason: fmt.Sprintf("caller is not on the approval chain of batch %s", b.ID),
				}
			}
			return &errs.ConflictError{
				Resource: "approval level",
				Key:      b.ID,
				Expected: "approved by " + p.Code,
				Actual:   "not yet approved",
			}
		}
		level, role := lvl.Name, lvl.Role

		now := s.clock.now()
		e.MarkRejected(p.Code, p.Name, level, reason, now)
		e.ClearHRApproval()
		if err := s.entryRepo.Update(txCtx, e); err != nil {
			return fmt.Errorf("update entry: %w", err)
		}

		machine, err := workflow.MachineFor(b)
		if err != nil {
			return err
		}
		// An already rejected batch moves its rejection down to this level
		// when it is lower, so the revive restarts the chain below every
		// approval this re-rejection voided.
		lowers := b.IsRejected() && lvl.Level < entity.LevelNumber(b.RejectedLevel)
		if machine.CanFire(txCtx, workflow.TriggerReject) || lowers {
			if !lowers {
				if err := machine.Fire(txCtx, workflow.TriggerReject); err != nil {
					return err
				}
			}
			at := now
			lvl.RejectedBy = p.Code
			lvl.RejectedAt = &at
			b.RejectedLevel = level
			b.RejectionReason = reason
			workflow.Apply(b, machine.State())
			if err := s.approvalRepo.UpdateBatch(txCtx, b); err != nil {
				return fmt.Errorf("update batch: %w", err)
			}
		}

		stillApproved, err := s.anyEntry(txCtx, b.EmployeeCode, func(x *entity.ExpenseEntry, xb *entity.ApprovalBatch) bool {
			return x.Status == entity.EntryStatusApproved && xb != nil && xb.ApprovedBy(p.Code)
		})
		if err != nil {
			return err
		}

		evt := event.NewEvent(event.TypeEntryRerejected, b.EmployeeCode, b.ID, b.PayrollMonth, map[string]interface{}{
			event.KeyActorCode:     p.Code,
			event.KeyActorRole:     role,
			event.KeyLevel:         level,
			event.KeyEntryID:       e.ID,
			event.KeyStillApproved: stillApproved,
		})
		if err := publish(txCtx, s.dispatcher, evt); err != nil {
			return fmt.Errorf("dispatch %s: %w", evt.Type, err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to re-reject entry", "error", err, "approver_code", p.Code, "entry_id", entryID)
		return err
	}

	s.logger.Info("Entry re-rejected", "approver_code", p.Code, "entry_id", entryID)
	return nil
}

// loadEntry fetches a finalized entry with its batch and checks its status
func (s *approvalServiceImpl) loadEntry(ctx context.Context, employeeCode, entryID, status string) (*entity.ExpenseEntry, *entity.ApprovalBatch, error) {
	e, err := s.entryRepo.GetByID(ctx, entryID)
	if err != nil {
		return nil, nil, fmt.Errorf("get entry: %w", err)
	}
	employeeCode = utils.NormalizeCode(employeeCode)
	if e == nil || e.BatchID == "" || (employeeCode != "" && e.EmployeeCode != employeeCode) {
		return nil, nil, &errs.NotFoundError{Resource: "entry", Key: entryID}
	}
	if e.Status != status {
		return nil, nil, &errs.ConflictError{Resource: "entry", Key: entryID, Expected: status, Actual: e.Status}
	}

	b, err := s.approvalRepo.GetBatch(ctx, e.BatchID)
	if err != nil {
		return nil, nil, fmt.Errorf("get batch: %w", err)
	}
	if b == nil {
		return nil, nil, &errs.NotFoundError{Resource: "approval batch", Key: e.BatchID}
	}
	return e, b, nil
}

// anyEntry reports whether a finalized entry of the employee matches
func (s *approvalServiceImpl) anyEntry(ctx context.Context, employeeCode string, match func(*entity.ExpenseEntry, *entity.ApprovalBatch) bool) (bool, error) {
	entries, err := s.entryRepo.ListByEmployee(ctx, employeeCode)
	if err != nil {
		return false, fmt.Errorf("list entries: %w", err)
	}
	batches, err := s.approvalRepo.ListBatchesByEmployee(ctx, employeeCode)
	if err != nil {
		return false, fmt.Errorf("list batches: %w", err)
	}
	idx := batchIndex(batches)
	for _, e := range entries {
		if match(e, idx[e.BatchID]) {
			return true, nil
		}
	}
	return false, nil
}

func highestApprovedLevel(b *entity.ApprovalBatch, approverCode string) *entity.ApprovalLevel {
	var found *entity.ApprovalLevel
	for _, lvl := range b.LevelsOf(approverCode) {
		if lvl.Approved && (found == nil || lvl.Level > found.Level) {
			found = lvl
		}
	}
	return found
}

func signOff(lvl *entity.ApprovalLevel, now time.Time) {
	at := now
	lvl.Approved = true
	lvl.ApprovedAt = &at
	lvl.RejectedBy = ""
	lvl.RejectedAt = nil
}

func markLevelRejected(lvl *entity.ApprovalLevel, approverCode string, now time.Time) {
	at := now
	lvl.Approved = false
	lvl.ApprovedAt = nil
	lvl.RejectedBy = approverCode
	lvl.RejectedAt = &at
}

func rejectionReason(reason string) string {
	if r := strings.TrimSpace(reason); r != "" {
		return r
	}
	return entity.DefaultRejectionReason
}
