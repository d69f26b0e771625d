package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/ope-approval/internal/domain/entity"
)

func entry(id, month, status string) *entity.ExpenseEntry {
	return &entity.ExpenseEntry{
		ID:           id,
		EmployeeCode: "E001",
		PayrollMonth: month,
		Date:         "2025-01-02",
		Amount:       decimal.NewFromInt(100),
		Status:       status,
	}
}

func TestWithTransaction_RollsBack(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Entries().Create(ctx, entry("keep", "Jan 2025", entity.EntryStatusSaved)))

	boom := errors.New("boom")
	err := s.WithTransaction(ctx, func(txCtx context.Context) error {
		require.NoError(t, s.Entries().Create(txCtx, entry("drop", "Jan 2025", entity.EntryStatusSaved)))
		require.NoError(t, s.Queues().Add(txCtx, entity.QueueScope{Role: "HR", ApproverCode: "HR01"}, entity.QueuePending, "E001"))

		// nested units of work join the outer one
		return s.WithTransaction(txCtx, func(context.Context) error { return boom })
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Entries().GetByID(ctx, "drop")
	require.NoError(t, err)
	assert.Nil(t, got)

	kept, err := s.Entries().GetByID(ctx, "keep")
	require.NoError(t, err)
	assert.NotNil(t, kept)

	scopes, err := s.Queues().Scopes(ctx, "HR01")
	require.NoError(t, err)
	assert.Empty(t, scopes)
}

func TestWithTransaction_RollbackKeepsConcurrentWrite(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	inTx := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := s.Entries().Create(txCtx, entry("drop", "Jan 2025", entity.EntryStatusSaved)); err != nil {
				return err
			}
			close(inTx)
			<-release
			return errors.New("boom")
		})
	}()

	<-inTx
	written := make(chan error, 1)
	go func() {
		written <- s.Entries().Create(ctx, entry("outside", "Jan 2025", entity.EntryStatusSaved))
	}()

	select {
	case <-written:
		t.Fatal("write outside the transaction should wait for it")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	require.Error(t, <-done)
	require.NoError(t, <-written)

	got, err := s.Entries().GetByID(ctx, "outside")
	require.NoError(t, err)
	assert.NotNil(t, got)

	dropped, err := s.Entries().GetByID(ctx, "drop")
	require.NoError(t, err)
	assert.Nil(t, dropped)
}

func TestWithTransaction_Commits(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	err := s.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.Entries().Create(txCtx, entry("e1", "Jan 2025", entity.EntryStatusSaved))
	})
	require.NoError(t, err)

	got, err := s.Entries().GetByID(ctx, "e1")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestEntries_AreCopied(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	e := entry("e1", "Jan 2025", entity.EntryStatusSaved)
	require.NoError(t, s.Entries().Create(ctx, e))

	e.Status = entity.EntryStatusApproved
	got, err := s.Entries().GetByID(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, entity.EntryStatusSaved, got.Status)

	got.Status = entity.EntryStatusRejected
	again, err := s.Entries().GetByID(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, entity.EntryStatusSaved, again.Status)

	assert.Error(t, s.Entries().Create(ctx, entry("e1", "Jan 2025", entity.EntryStatusSaved)))
	assert.Error(t, s.Entries().Update(ctx, entry("missing", "Jan 2025", entity.EntryStatusSaved)))
}

func TestEntries_Filters(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repo := s.Entries()

	require.NoError(t, repo.Create(ctx, entry("d1", "Jan 2025", entity.EntryStatusSaved)))
	require.NoError(t, repo.Create(ctx, entry("d2", "Feb 2025", entity.EntryStatusSaved)))
	p := entry("p1", "Jan 2025", entity.EntryStatusPending)
	p.BatchID = "b1"
	require.NoError(t, repo.Create(ctx, p))

	drafts, err := repo.ListDrafts(ctx, "E001", "")
	require.NoError(t, err)
	assert.Len(t, drafts, 2)
	assert.Equal(t, "d1", drafts[0].ID)

	drafts, err = repo.ListDrafts(ctx, "E001", "Feb 2025")
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "d2", drafts[0].ID)

	month, err := repo.ListByMonth(ctx, "E001", "Jan 2025")
	require.NoError(t, err)
	require.Len(t, month, 1)
	assert.Equal(t, "p1", month[0].ID)

	byBatch, err := repo.ListByBatch(ctx, "b1")
	require.NoError(t, err)
	assert.Len(t, byBatch, 1)

	require.NoError(t, repo.Delete(ctx, "d1"))
	all, err := repo.ListDrafts(ctx, "E001", "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestApprovals_PendingByApprover(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repo := s.Approvals()
	now := time.Now()

	levels := []entity.ApprovalLevel{
		{Level: 1, Name: "L1", Role: entity.RoleNameReportingManager, ApproverCode: "RM01"},
		{Level: 2, Name: "L2", Role: entity.RoleNameHR, ApproverCode: "HR01"},
	}
	pending := &entity.ApprovalBatch{ID: "b1", EmployeeCode: "E001", PayrollMonth: "Jan 2025", Sequence: 1, TotalLevels: 2,
		Levels: levels, CurrentLevel: "L2", OverallStatus: entity.OverallStatusPending, SubmittedAt: now}
	done := &entity.ApprovalBatch{ID: "b2", EmployeeCode: "E002", PayrollMonth: "Jan 2025", Sequence: 1, TotalLevels: 2,
		Levels: levels, CurrentLevel: entity.LevelCompleted, OverallStatus: entity.OverallStatusApproved, SubmittedAt: now}
	require.NoError(t, repo.CreateBatch(ctx, pending))
	require.NoError(t, repo.CreateBatch(ctx, done))

	got, err := repo.ListPendingByApprover(ctx, "HR01")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b1", got[0].ID)

	got[0].Levels[0].Approved = true
	stored, err := repo.GetBatch(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, stored.Levels[0].Approved)

	none, err := repo.ListPendingByApprover(ctx, "RM01")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestQueues_SetSemantics(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	q := s.Queues()
	scope := entity.QueueScope{Role: entity.RoleNameReportingManager, ApproverCode: "RM01"}

	require.NoError(t, q.Add(ctx, scope, entity.QueuePending, "E002"))
	require.NoError(t, q.Add(ctx, scope, entity.QueuePending, "E001"))
	require.NoError(t, q.Add(ctx, scope, entity.QueuePending, "E002"))

	members, err := q.Members(ctx, scope, entity.QueuePending)
	require.NoError(t, err)
	assert.Equal(t, []string{"E002", "E001"}, members)

	require.NoError(t, q.Remove(ctx, scope, entity.QueuePending, "E002"))
	require.NoError(t, q.Remove(ctx, scope, entity.QueueApproved, "E404"))
	members, err = q.Members(ctx, scope, entity.QueuePending)
	require.NoError(t, err)
	assert.Equal(t, []string{"E001"}, members)

	scopes, err := q.Scopes(ctx, "RM01")
	require.NoError(t, err)
	assert.Equal(t, []entity.QueueScope{scope}, scopes)
}
