package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garyjia/ope-approval/internal/application/dispatcher"
	"github.com/garyjia/ope-approval/internal/application/port"
	"github.com/garyjia/ope-approval/internal/domain/entity"
	"github.com/garyjia/ope-approval/internal/domain/errs"
	"github.com/garyjia/ope-approval/internal/domain/event"
	"github.com/garyjia/ope-approval/internal/domain/routing"
	"github.com/garyjia/ope-approval/pkg/utils"
)

// SubmitResult describes the batch created by a final submission
type SubmitResult struct {
	BatchID          string               `json:"batch_id"`
	PayrollMonth     string               `json:"payroll_month"`
	SubmitterType    string               `json:"submitter_type"`
	OPELabel         string               `json:"ope_label"`
	TotalLevels      int                  `json:"total_levels"`
	FirstApprover    entity.ApprovalLevel `json:"first_approver"`
	Limit            decimal.Decimal      `json:"ope_limit"`
	PreviousTotal    decimal.Decimal      `json:"previous_total"`
	NewEntriesAmount decimal.Decimal      `json:"new_entries_amount"`
	CumulativeTotal  decimal.Decimal      `json:"cumulative_total"`
	SubmittedCount   int                  `json:"submitted_count"`
}

// SubmissionService finalizes drafts into an approval batch
type SubmissionService interface {
	SubmitFinal(ctx context.Context, employeeCode, monthRaw string) (*SubmitResult, error)
}

type submissionServiceImpl struct {
	entryRepo     port.EntryRepository
	approvalRepo  port.ApprovalRepository
	directoryRepo port.DirectoryRepository
	txManager     port.TransactionManager
	roles         RoleResolver
	resolver      *routing.Resolver
	dispatcher    dispatcher.Dispatcher
	clock         Clock
	logger        Logger
}

// NewSubmissionService creates a new SubmissionService
func NewSubmissionService(
	entryRepo port.EntryRepository,
	approvalRepo port.ApprovalRepository,
	directoryRepo port.DirectoryRepository,
	txManager port.TransactionManager,
	roles RoleResolver,
	resolver *routing.Resolver,
	d dispatcher.Dispatcher,
	clock Clock,
	logger Logger,
) SubmissionService {
	return &submissionServiceImpl{
		entryRepo:     entryRepo,
		approvalRepo:  approvalRepo,
		directoryRepo: directoryRepo,
		txManager:     txManager,
		roles:         roles,
		resolver:      resolver,
		dispatcher:    d,
		clock:         clock,
		logger:        logger,
	}
}

// SubmitFinal turns the month's drafts into a new approval batch.
// Duplicates and routing failures abort before anything is written.
func (s *submissionServiceImpl) SubmitFinal(ctx context.Context, employeeCode, monthRaw string) (*SubmitResult, error) {
	employeeCode = utils.NormalizeCode(employeeCode)
	month := routing.CanonicalMonth(monthRaw)
	if month == "" {
		return nil, &errs.ValidationError{Field: "payroll_month", Value: monthRaw, Reason: "is required"}
	}

	principal, err := s.roles.Resolve(ctx, employeeCode)
	if err != nil {
		return nil, err
	}

	var result *SubmitResult
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		emp, err := s.directoryRepo.GetEmployee(txCtx, employeeCode)
		if err != nil {
			return fmt.Errorf("lookup employee: %w", err)
		}
		if emp == nil {
			return &errs.NotFoundError{Resource: "employee", Key: employeeCode}
		}

		drafts, err := s.entryRepo.ListDrafts(txCtx, employeeCode, month)
		if err != nil {
			return fmt.Errorf("list drafts: %w", err)
		}
		if len(drafts) == 0 {
			return &errs.NotFoundError{Resource: "draft entries", Key: employeeCode + "/" + month}
		}

		finalized, err := s.entryRepo.ListByMonth(txCtx, employeeCode, month)
		if err != nil {
			return fmt.Errorf("list entries: %w", err)
		}
		if err := checkSubmissionDuplicates(employeeCode, month, drafts, finalized); err != nil {
			return err
		}

		previous := entity.SumAmounts(finalized)
		added := entity.SumAmounts(drafts)
		cumulative := previous.Add(added)

		plan, err := s.resolver.Resolve(routing.Input{
			Employee:           emp,
			IsReportingManager: principal.IsReportingManager,
			CumulativeTotal:    cumulative,
		})
		if err != nil {
			return err
		}

		existing, err := s.approvalRepo.ListBatchesByMonth(txCtx, employeeCode, month)
		if err != nil {
			return fmt.Errorf("list batches: %w", err)
		}

		now := s.clock.now()
		batch := &entity.ApprovalBatch{
			ID:              uuid.NewString(),
			EmployeeCode:    employeeCode,
			PayrollMonth:    month,
			Sequence:        len(existing) + 1,
			SubmitterType:   plan.SubmitterType,
			OPELabel:        plan.OPELabel,
			TotalLevels:     plan.TotalLevels,
			LimitSnapshot:   plan.Limit,
			CumulativeTotal: cumulative,
			BatchTotal:      added,
			Levels:          plan.Levels,
			CurrentLevel:    entity.LevelL1,
			OverallStatus:   entity.OverallStatusPending,
			SubmittedAt:     now,
		}
		if err := s.approvalRepo.CreateBatch(txCtx, batch); err != nil {
			return fmt.Errorf("create batch: %w", err)
		}

		total, err := s.approvalRepo.GetMonth(txCtx, employeeCode, month)
		if err != nil {
			return fmt.Errorf("get month: %w", err)
		}
		if total == nil {
			total = &entity.PayrollMonth{EmployeeCode: employeeCode, PayrollMonth: month, CreatedAt: now}
		}
		total.TotalAmount = cumulative
		if err := s.approvalRepo.UpsertMonth(txCtx, total); err != nil {
			return fmt.Errorf("upsert month: %w", err)
		}

		for _, d := range drafts {
			d.Status = entity.EntryStatusPending
			d.BatchID = batch.ID
			d.SubmittedAt = &now
			if err := s.entryRepo.Update(txCtx, d); err != nil {
				return fmt.Errorf("finalize entry %s: %w", d.ID, err)
			}
		}

		first := plan.FirstApprover()
		evt := event.NewEvent(event.TypeBatchSubmitted, employeeCode, batch.ID, month, map[string]interface{}{
			event.KeyActorCode:    employeeCode,
			event.KeyNextApprover: first.ApproverCode,
			event.KeyNextRole:     first.Role,
			event.KeyCount:        len(drafts),
		})
		if err := publish(txCtx, s.dispatcher, evt); err != nil {
			return fmt.Errorf("dispatch %s: %w", evt.Type, err)
		}

		result = &SubmitResult{
			BatchID:          batch.ID,
			PayrollMonth:     month,
			SubmitterType:    plan.SubmitterType,
			OPELabel:         plan.OPELabel,
			TotalLevels:      plan.TotalLevels,
			FirstApprover:    first,
			Limit:            plan.Limit,
			PreviousTotal:    previous,
			NewEntriesAmount: added,
			CumulativeTotal:  cumulative,
			SubmittedCount:   len(drafts),
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to submit", "error", err, "employee_code", employeeCode, "payroll_month", month)
		return nil, err
	}

	s.logger.Info("Batch submitted",
		"batch_id", result.BatchID,
		"employee_code", employeeCode,
		"payroll_month", month,
		"total_levels", result.TotalLevels,
		"cumulative_total", result.CumulativeTotal.String(),
	)
	return result, nil
}

// checkSubmissionDuplicates rejects drafts repeating a finalized entry or each other
func checkSubmissionDuplicates(employeeCode, month string, drafts, finalized []*entity.ExpenseEntry) error {
	seen := make(map[entity.EntryKey]string, len(drafts)+len(finalized))
	for _, e := range finalized {
		seen[e.BusinessKey()] = e.ID
	}
	for _, d := range drafts {
		key := d.BusinessKey()
		if id, ok := seen[key]; ok {
			return &errs.DuplicateEntryError{
				EmployeeCode: employeeCode,
				PayrollMonth: month,
				ExistingID:   id,
				Fields:       errs.DuplicateKeyFields,
			}
		}
		seen[key] = d.ID
	}
	return nil
}
