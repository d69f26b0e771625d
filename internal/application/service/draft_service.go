package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garyjia/ope-approval/internal/application/port"
	"github.com/garyjia/ope-approval/internal/domain/entity"
	"github.com/garyjia/ope-approval/internal/domain/errs"
	"github.com/garyjia/ope-approval/internal/domain/routing"
	"github.com/garyjia/ope-approval/pkg/utils"
)

// DraftInput carries the editable fields of an expense entry
type DraftInput struct {
	PayrollMonth string          `json:"payroll_month"`
	Date         string          `json:"date"`
	Client       string          `json:"client"`
	ProjectID    string          `json:"project_id"`
	ProjectName  string          `json:"project_name"`
	ProjectType  string          `json:"project_type"`
	LocationFrom string          `json:"location_from"`
	LocationTo   string          `json:"location_to"`
	TravelMode   string          `json:"travel_mode"`
	Amount       decimal.Decimal `json:"amount"`
	Remarks      string          `json:"remarks"`
}

// Attachment is an uploaded receipt
type Attachment struct {
	FileName string
	Content  []byte
}

// DraftService manages temporarily saved entries
type DraftService interface {
	SaveDraft(ctx context.Context, employeeCode string, in DraftInput, att *Attachment) (*entity.ExpenseEntry, error)

	// SaveDrafts saves each input independently; failures are joined and
	// do not undo the drafts already saved
	SaveDrafts(ctx context.Context, employeeCode string, inputs []DraftInput) ([]*entity.ExpenseEntry, error)

	ListDrafts(ctx context.Context, employeeCode, monthRaw string) ([]*entity.ExpenseEntry, error)
	UpdateDraft(ctx context.Context, employeeCode, entryID string, in DraftInput) (*entity.ExpenseEntry, error)
	DeleteDraft(ctx context.Context, employeeCode, entryID string) error
}

type draftServiceImpl struct {
	entryRepo     port.EntryRepository
	directoryRepo port.DirectoryRepository
	attachments   port.AttachmentStore
	txManager     port.TransactionManager
	clock         Clock
	logger        Logger
}

// NewDraftService creates a new DraftService. attachments may be nil when uploads are disabled.
func NewDraftService(
	entryRepo port.EntryRepository,
	directoryRepo port.DirectoryRepository,
	attachments port.AttachmentStore,
	txManager port.TransactionManager,
	clock Clock,
	logger Logger,
) DraftService {
	return &draftServiceImpl{
		entryRepo:     entryRepo,
		directoryRepo: directoryRepo,
		attachments:   attachments,
		txManager:     txManager,
		clock:         clock,
		logger:        logger,
	}
}

// SaveDraft validates the input, stores the attachment and creates a saved entry
func (s *draftServiceImpl) SaveDraft(ctx context.Context, employeeCode string, in DraftInput, att *Attachment) (*entity.ExpenseEntry, error) {
	employeeCode = utils.NormalizeCode(employeeCode)
	if err := s.requireEmployee(ctx, employeeCode); err != nil {
		return nil, err
	}

	entry, err := newDraft(employeeCode, in)
	if err != nil {
		return nil, err
	}

	if att != nil && len(att.Content) > 0 {
		if s.attachments == nil {
			return nil, &errs.ValidationError{Field: "attachment", Reason: "uploads are disabled"}
		}
		ref, err := s.attachments.Put(ctx, employeeCode, att.FileName, att.Content)
		if err != nil {
			return nil, fmt.Errorf("store attachment: %w", err)
		}
		entry.AttachmentRef = ref
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.checkDuplicate(txCtx, entry); err != nil {
			return err
		}
		now := s.clock.now()
		entry.CreatedAt = now
		if err := s.entryRepo.Create(txCtx, entry); err != nil {
			return fmt.Errorf("create draft: %w", err)
		}
		return nil
	})
	if err != nil {
		if entry.AttachmentRef != "" {
			_ = s.attachments.Remove(ctx, entry.AttachmentRef)
		}
		s.logger.Error("Failed to save draft", "error", err, "employee_code", employeeCode)
		return nil, err
	}

	s.logger.Info("Draft saved", "entry_id", entry.ID, "employee_code", employeeCode, "payroll_month", entry.PayrollMonth)
	return entry, nil
}

// SaveDrafts saves several drafts
func (s *draftServiceImpl) SaveDrafts(ctx context.Context, employeeCode string, inputs []DraftInput) ([]*entity.ExpenseEntry, error) {
	if len(inputs) == 0 {
		return nil, &errs.ValidationError{Field: "entries", Reason: "at least one entry is required"}
	}

	saved := make([]*entity.ExpenseEntry, 0, len(inputs))
	var failures []error
	for i, in := range inputs {
		entry, err := s.SaveDraft(ctx, employeeCode, in, nil)
		if err != nil {
			failures = append(failures, fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		saved = append(saved, entry)
	}

	return saved, errors.Join(failures...)
}

// ListDrafts returns saved entries, optionally for one payroll month
func (s *draftServiceImpl) ListDrafts(ctx context.Context, employeeCode, monthRaw string) ([]*entity.ExpenseEntry, error) {
	employeeCode = utils.NormalizeCode(employeeCode)
	drafts, err := s.entryRepo.ListDrafts(ctx, employeeCode, routing.CanonicalMonth(monthRaw))
	if err != nil {
		s.logger.Error("Failed to list drafts", "error", err, "employee_code", employeeCode)
		return nil, err
	}
	return drafts, nil
}

// UpdateDraft replaces the editable fields of a saved entry
func (s *draftServiceImpl) UpdateDraft(ctx context.Context, employeeCode, entryID string, in DraftInput) (*entity.ExpenseEntry, error) {
	employeeCode = utils.NormalizeCode(employeeCode)
	updated, err := newDraft(employeeCode, in)
	if err != nil {
		return nil, err
	}

	var result *entity.ExpenseEntry
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.ownedDraft(txCtx, employeeCode, entryID)
		if err != nil {
			return err
		}

		updated.ID = existing.ID
		updated.AttachmentRef = existing.AttachmentRef
		updated.CreatedAt = existing.CreatedAt
		if err := s.checkDuplicate(txCtx, updated); err != nil {
			return err
		}
		if err := s.entryRepo.Update(txCtx, updated); err != nil {
			return fmt.Errorf("update draft: %w", err)
		}
		result = updated
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to update draft", "error", err, "entry_id", entryID)
		return nil, err
	}

	return result, nil
}

// DeleteDraft removes a saved entry; finalized entries cannot be deleted
func (s *draftServiceImpl) DeleteDraft(ctx context.Context, employeeCode, entryID string) error {
	employeeCode = utils.NormalizeCode(employeeCode)

	var attachmentRef string
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.ownedDraft(txCtx, employeeCode, entryID)
		if err != nil {
			return err
		}
		attachmentRef = existing.AttachmentRef
		return s.entryRepo.Delete(txCtx, existing.ID)
	})
	if err != nil {
		s.logger.Error("Failed to delete draft", "error", err, "entry_id", entryID)
		return err
	}

	if attachmentRef != "" && s.attachments != nil {
		if err := s.attachments.Remove(ctx, attachmentRef); err != nil {
			s.logger.Error("Failed to remove attachment", "error", err, "ref", attachmentRef)
		}
	}

	s.logger.Info("Draft deleted", "entry_id", entryID, "employee_code", employeeCode)
	return nil
}

func (s *draftServiceImpl) requireEmployee(ctx context.Context, code string) error {
	emp, err := s.directoryRepo.GetEmployee(ctx, code)
	if err != nil {
		return fmt.Errorf("lookup employee: %w", err)
	}
	if emp == nil {
		return &errs.NotFoundError{Resource: "employee", Key: code}
	}
	return nil
}

func (s *draftServiceImpl) ownedDraft(ctx context.Context, employeeCode, entryID string) (*entity.ExpenseEntry, error) {
	existing, err := s.entryRepo.GetByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	if existing == nil || existing.EmployeeCode != employeeCode {
		return nil, &errs.NotFoundError{Resource: "entry", Key: entryID}
	}
	if !existing.IsDraft() {
		return nil, &errs.ConflictError{
			Resource: "entry",
			Key:      entryID,
			Expected: entity.EntryStatusSaved,
			Actual:   existing.Status,
		}
	}
	return existing, nil
}

// checkDuplicate compares the entry against other drafts and finalized entries of its month
func (s *draftServiceImpl) checkDuplicate(ctx context.Context, entry *entity.ExpenseEntry) error {
	drafts, err := s.entryRepo.ListDrafts(ctx, entry.EmployeeCode, entry.PayrollMonth)
	if err != nil {
		return fmt.Errorf("list drafts: %w", err)
	}
	finalized, err := s.entryRepo.ListByMonth(ctx, entry.EmployeeCode, entry.PayrollMonth)
	if err != nil {
		return fmt.Errorf("list entries: %w", err)
	}

	key := entry.BusinessKey()
	for _, other := range append(drafts, finalized...) {
		if other.ID != entry.ID && other.BusinessKey() == key {
			return &errs.DuplicateEntryError{
				EmployeeCode: entry.EmployeeCode,
				PayrollMonth: entry.PayrollMonth,
				ExistingID:   other.ID,
				Fields:       errs.DuplicateKeyFields,
			}
		}
	}
	return nil
}

// newDraft validates an input and builds a saved entry with a fresh id
func newDraft(employeeCode string, in DraftInput) (*entity.ExpenseEntry, error) {
	month := routing.CanonicalMonth(in.PayrollMonth)
	if month == "" {
		return nil, &errs.ValidationError{Field: "payroll_month", Reason: "is required"}
	}
	date := utils.SanitizeString(in.Date)
	if err := utils.ValidateDate(date); err != nil {
		return nil, &errs.ValidationError{Field: "date", Value: date, Reason: err.Error()}
	}
	if err := utils.ValidateAmount(in.Amount); err != nil {
		return nil, &errs.ValidationError{Field: "amount", Value: in.Amount.String(), Reason: err.Error()}
	}

	entry := &entity.ExpenseEntry{
		ID:           uuid.NewString(),
		EmployeeCode: employeeCode,
		PayrollMonth: month,
		Date:         date,
		Client:       utils.SanitizeString(in.Client),
		ProjectID:    utils.SanitizeString(in.ProjectID),
		ProjectName:  utils.SanitizeString(in.ProjectName),
		ProjectType:  utils.SanitizeString(in.ProjectType),
		LocationFrom: utils.SanitizeString(in.LocationFrom),
		LocationTo:   utils.SanitizeString(in.LocationTo),
		TravelMode:   utils.SanitizeString(in.TravelMode),
		Amount:       in.Amount.Round(2),
		Remarks:      utils.SanitizeString(in.Remarks),
		Status:       entity.EntryStatusSaved,
	}

	required := []struct{ field, value string }{
		{"client", entry.Client},
		{"project_id", entry.ProjectID},
		{"travel_mode", entry.TravelMode},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, &errs.ValidationError{Field: r.field, Reason: "is required"}
		}
	}

	return entry, nil
}
