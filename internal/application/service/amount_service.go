package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/ope-approval/internal/application/dispatcher"
	"github.com/garyjia/ope-approval/internal/application/port"
	"github.com/garyjia/ope-approval/internal/domain/entity"
	"github.com/garyjia/ope-approval/internal/domain/errs"
	"github.com/garyjia/ope-approval/internal/domain/event"
	"github.com/garyjia/ope-approval/internal/domain/routing"
	"github.com/garyjia/ope-approval/pkg/utils"
)

// Distribution methods of a month-total edit
const (
	DistributionProportional = "proportional"
	DistributionEqual        = "equal"
)

// EntryAmountResult reports a single-entry edit
type EntryAmountResult struct {
	EntryID    string          `json:"entry_id"`
	OldAmount  decimal.Decimal `json:"old_amount"`
	NewAmount  decimal.Decimal `json:"new_amount"`
	MonthTotal decimal.Decimal `json:"month_total"`
}

// MonthTotalResult reports a whole-month edit
type MonthTotalResult struct {
	PayrollMonth       string                 `json:"payroll_month"`
	OldTotal           decimal.Decimal        `json:"old_total"`
	NewTotal           decimal.Decimal        `json:"new_total"`
	DistributionMethod string                 `json:"distribution_method"`
	Entries            []*entity.ExpenseEntry `json:"entries"`
}

// AmountService corrects claimed amounts after submission.
// Edits never re-run routing; chains already assigned stand.
type AmountService interface {
	EditEntryAmount(ctx context.Context, actorCode, employeeCode, entryID string, newAmount decimal.Decimal) (*EntryAmountResult, error)
	EditMonthTotal(ctx context.Context, actorCode, employeeCode, monthRaw string, newTotal decimal.Decimal) (*MonthTotalResult, error)
}

type amountServiceImpl struct {
	entryRepo    port.EntryRepository
	approvalRepo port.ApprovalRepository
	txManager    port.TransactionManager
	roles        RoleResolver
	dispatcher   dispatcher.Dispatcher
	clock        Clock
	logger       Logger
}

// NewAmountService creates a new AmountService
func NewAmountService(
	entryRepo port.EntryRepository,
	approvalRepo port.ApprovalRepository,
	txManager port.TransactionManager,
	roles RoleResolver,
	d dispatcher.Dispatcher,
	clock Clock,
	logger Logger,
) AmountService {
	return &amountServiceImpl{
		entryRepo:    entryRepo,
		approvalRepo: approvalRepo,
		txManager:    txManager,
		roles:        roles,
		dispatcher:   d,
		clock:        clock,
		logger:       logger,
	}
}

// EditEntryAmount replaces one entry's amount and overwrites the month total with the new entry sum
func (s *amountServiceImpl) EditEntryAmount(ctx context.Context, actorCode, employeeCode, entryID string, newAmount decimal.Decimal) (*EntryAmountResult, error) {
	employeeCode = utils.NormalizeCode(employeeCode)
	if err := utils.ValidateAmount(newAmount); err != nil {
		return nil, &errs.ValidationError{Field: "amount", Value: newAmount.String(), Reason: err.Error()}
	}
	newAmount = newAmount.Round(2)

	p, err := requireApprover(ctx, s.roles, actorCode, "edit amount")
	if err != nil {
		return nil, err
	}

	var result *EntryAmountResult
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		e, err := s.entryRepo.GetByID(txCtx, entryID)
		if err != nil {
			return fmt.Errorf("get entry: %w", err)
		}
		if e == nil || (employeeCode != "" && e.EmployeeCode != employeeCode) {
			return &errs.NotFoundError{Resource: "entry", Key: entryID}
		}
		if e.IsDraft() {
			return &errs.ConflictError{Resource: "entry", Key: entryID, Expected: "submitted", Actual: e.Status}
		}

		batches, err := s.approvalRepo.ListBatchesByMonth(txCtx, e.EmployeeCode, e.PayrollMonth)
		if err != nil {
			return fmt.Errorf("list batches: %w", err)
		}
		if err := authorizeEdit(p, batches); err != nil {
			return err
		}

		now := s.clock.now()
		old := e.Amount
		if e.OriginalAmount == nil {
			e.OriginalAmount = &old
		}
		e.Amount = newAmount
		stampEdit(e, p.Code, now)
		if err := s.entryRepo.Update(txCtx, e); err != nil {
			return fmt.Errorf("update entry: %w", err)
		}

		entries, err := s.entryRepo.ListByMonth(txCtx, e.EmployeeCode, e.PayrollMonth)
		if err != nil {
			return fmt.Errorf("list entries: %w", err)
		}
		total := entity.SumAmounts(entries)
		if err := s.saveMonthTotal(txCtx, e.EmployeeCode, e.PayrollMonth, total, "", now); err != nil {
			return err
		}
		if err := s.refreshBatchTotals(txCtx, batches, entries); err != nil {
			return err
		}

		evt := event.NewEvent(event.TypeAmountEdited, e.EmployeeCode, e.BatchID, e.PayrollMonth, map[string]interface{}{
			event.KeyActorCode: p.Code,
			event.KeyEntryID:   e.ID,
			event.KeyOldAmount: old.StringFixed(2),
			event.KeyNewAmount: newAmount.StringFixed(2),
		})
		if err := publish(txCtx, s.dispatcher, evt); err != nil {
			return fmt.Errorf("dispatch %s: %w", evt.Type, err)
		}

		result = &EntryAmountResult{EntryID: e.ID, OldAmount: old, NewAmount: newAmount, MonthTotal: total}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to edit amount", "error", err, "actor_code", p.Code, "entry_id", entryID)
		return nil, err
	}

	s.logger.Info("Entry amount edited",
		"actor_code", p.Code,
		"entry_id", entryID,
		"old_amount", result.OldAmount.StringFixed(2),
		"new_amount", result.NewAmount.StringFixed(2),
	)
	return result, nil
}

// EditMonthTotal redistributes a new month total across the month's entries.
// Amounts scale proportionally when the old total is positive, otherwise the
// new total is split evenly; each entry keeps its pre-edit amount as original.
func (s *amountServiceImpl) EditMonthTotal(ctx context.Context, actorCode, employeeCode, monthRaw string, newTotal decimal.Decimal) (*MonthTotalResult, error) {
	employeeCode = utils.NormalizeCode(employeeCode)
	month := routing.CanonicalMonth(monthRaw)
	if month == "" {
		return nil, &errs.ValidationError{Field: "payroll_month", Value: monthRaw, Reason: "is required"}
	}
	if !newTotal.IsPositive() {
		return nil, &errs.ValidationError{Field: "total", Value: newTotal.String(), Reason: "must be positive"}
	}
	newTotal = newTotal.Round(2)

	p, err := requireApprover(ctx, s.roles, actorCode, "edit month total")
	if err != nil {
		return nil, err
	}

	var result *MonthTotalResult
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		entries, err := s.entryRepo.ListByMonth(txCtx, employeeCode, month)
		if err != nil {
			return fmt.Errorf("list entries: %w", err)
		}
		if len(entries) == 0 {
			return &errs.NotFoundError{Resource: "entries", Key: employeeCode + "/" + month}
		}

		batches, err := s.approvalRepo.ListBatchesByMonth(txCtx, employeeCode, month)
		if err != nil {
			return fmt.Errorf("list batches: %w", err)
		}
		if err := authorizeEdit(p, batches); err != nil {
			return err
		}

		oldTotal := entity.SumAmounts(entries)
		amounts, method := redistribute(entries, oldTotal, newTotal)
		for i, amt := range amounts {
			if !amt.IsPositive() {
				return &errs.ValidationError{
					Field:  "total",
					Value:  newTotal.String(),
					Reason: fmt.Sprintf("entry %s would drop to %s", entries[i].ID, amt.StringFixed(2)),
				}
			}
		}

		now := s.clock.now()
		for i, e := range entries {
			old := e.Amount
			e.OriginalAmount = &old
			e.Amount = amounts[i]
			stampEdit(e, p.Code, now)
			if err := s.entryRepo.Update(txCtx, e); err != nil {
				return fmt.Errorf("update entry %s: %w", e.ID, err)
			}
		}

		if err := s.saveMonthTotal(txCtx, employeeCode, month, newTotal, p.Code, now); err != nil {
			return err
		}
		if err := s.refreshBatchTotals(txCtx, batches, entries); err != nil {
			return err
		}

		evt := event.NewEvent(event.TypeMonthTotalEdited, employeeCode, "", month, map[string]interface{}{
			event.KeyActorCode:    p.Code,
			event.KeyOldAmount:    oldTotal.StringFixed(2),
			event.KeyNewAmount:    newTotal.StringFixed(2),
			event.KeyDistribution: method,
			event.KeyCount:        len(entries),
		})
		if err := publish(txCtx, s.dispatcher, evt); err != nil {
			return fmt.Errorf("dispatch %s: %w", evt.Type, err)
		}

		result = &MonthTotalResult{
			PayrollMonth:       month,
			OldTotal:           oldTotal,
			NewTotal:           newTotal,
			DistributionMethod: method,
			Entries:            entries,
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to edit month total", "error", err, "actor_code", p.Code, "employee_code", employeeCode, "payroll_month", month)
		return nil, err
	}

	s.logger.Info("Month total edited",
		"actor_code", p.Code,
		"employee_code", employeeCode,
		"payroll_month", month,
		"old_total", result.OldTotal.StringFixed(2),
		"new_total", result.NewTotal.StringFixed(2),
		"distribution_method", result.DistributionMethod,
	)
	return result, nil
}

// redistribute computes the new amount of each entry
func redistribute(entries []*entity.ExpenseEntry, oldTotal, newTotal decimal.Decimal) ([]decimal.Decimal, string) {
	amounts := make([]decimal.Decimal, len(entries))
	if oldTotal.IsPositive() {
		for i, e := range entries {
			amounts[i] = e.Amount.Mul(newTotal).Div(oldTotal).Round(2)
		}
		return amounts, DistributionProportional
	}

	share := newTotal.Div(decimal.NewFromInt(int64(len(entries)))).Round(2)
	for i := range amounts {
		amounts[i] = share
	}
	return amounts, DistributionEqual
}

// authorizeEdit allows HR and any approver assigned on one of the month's batches
func authorizeEdit(p *entity.Principal, batches []*entity.ApprovalBatch) error {
	if p.IsHR {
		return nil
	}
	for _, b := range batches {
		if b.HasApprover(p.Code) {
			return nil
		}
	}
	return &errs.AuthorizationError{
		Actor:  p.Code,
		Action: "edit amount",
		Reason: "caller is not an approver of this payroll month",
	}
}

func stampEdit(e *entity.ExpenseEntry, actorCode string, now time.Time) {
	at := now
	e.AmountEditedBy = actorCode
	e.AmountEditedAt = &at
}

func (s *amountServiceImpl) saveMonthTotal(ctx context.Context, employeeCode, month string, total decimal.Decimal, editedBy string, now time.Time) error {
	m, err := s.approvalRepo.GetMonth(ctx, employeeCode, month)
	if err != nil {
		return fmt.Errorf("get month: %w", err)
	}
	if m == nil {
		m = &entity.PayrollMonth{EmployeeCode: employeeCode, PayrollMonth: month, CreatedAt: now}
	}
	m.TotalAmount = total
	if editedBy != "" {
		at := now
		m.TotalEditedBy = editedBy
		m.TotalEditedAt = &at
	}
	if err := s.approvalRepo.UpsertMonth(ctx, m); err != nil {
		return fmt.Errorf("upsert month: %w", err)
	}
	return nil
}

// refreshBatchTotals recomputes each batch's own entry sum
func (s *amountServiceImpl) refreshBatchTotals(ctx context.Context, batches []*entity.ApprovalBatch, entries []*entity.ExpenseEntry) error {
	sums := make(map[string]decimal.Decimal, len(batches))
	for _, e := range entries {
		sums[e.BatchID] = sums[e.BatchID].Add(e.Amount)
	}
	for _, b := range batches {
		total := sums[b.ID]
		if total.Equal(b.BatchTotal) {
			continue
		}
		b.BatchTotal = total
		if err := s.approvalRepo.UpdateBatch(ctx, b); err != nil {
			return fmt.Errorf("update batch %s: %w", b.ID, err)
		}
	}
	return nil
}
