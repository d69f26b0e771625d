package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/ope-approval/internal/domain/entity"
	"github.com/garyjia/ope-approval/internal/domain/errs"
)

func TestApproval_TwoLevelChainToCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.submitted(empCode, "Jan 2025", "400", "500", "300")

	got, err := f.approvals.ApproveAtCurrentLevel(ctx, rmCode, empCode)
	require.NoError(t, err)
	assert.Equal(t, &ApproveResult{ApprovedCount: 3, NextLevel: entity.LevelL2, NextApprover: hrCode}, got)

	for _, e := range f.batchEntries(res.BatchID) {
		assert.Equal(t, entity.EntryStatusApproved, e.Status)
		assert.Equal(t, rmCode, e.ApprovedBy)
		assert.False(t, e.HRApproved)
	}
	assert.Equal(t, []string{empCode}, f.members(entity.RoleNameReportingManager, rmCode, entity.QueueApproved))
	assert.Empty(t, f.members(entity.RoleNameReportingManager, rmCode, entity.QueuePending))
	assert.Equal(t, []string{empCode}, f.members(entity.RoleNameHR, hrCode, entity.QueuePending))

	got, err = f.approvals.ApproveAtCurrentLevel(ctx, hrCode, empCode)
	require.NoError(t, err)
	assert.Equal(t, 3, got.ApprovedCount)
	assert.Equal(t, entity.LevelCompleted, got.NextLevel)
	assert.Empty(t, got.NextApprover)

	b := f.batch(res.BatchID)
	assert.Equal(t, entity.OverallStatusApproved, b.OverallStatus)
	assert.Equal(t, entity.LevelCompleted, b.CurrentLevel)
	assert.True(t, b.Levels[1].Approved)
	assert.NotNil(t, b.Levels[1].ApprovedAt)

	for _, e := range f.batchEntries(res.BatchID) {
		assert.Equal(t, entity.EntryStatusApproved, e.Status)
		assert.True(t, e.HRApproved)
		assert.Equal(t, hrCode, e.HRApprovedBy)
		assert.Equal(t, rmCode, e.ApprovedBy)
	}

	records, err := f.status.GetApprovalStatus(ctx, empCode, empCode)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, entity.OverallStatusApproved, records[0].OverallStatus)
	assert.Equal(t, entity.LevelCompleted, records[0].CurrentLevel)

	f.assertDisjoint(entity.RoleNameReportingManager, rmCode)
	f.assertDisjoint(entity.RoleNameHR, hrCode)
}

func TestApproval_ThreeLevelChain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.submitted(empCode, "Jan 2025", "1000", "900")
	require.Equal(t, 3, res.TotalLevels)

	got, err := f.approvals.ApproveAtCurrentLevel(ctx, rmCode, empCode)
	require.NoError(t, err)
	assert.Equal(t, partnerCode, got.NextApprover)

	// HR is not current yet
	_, err = f.approvals.ApproveAtCurrentLevel(ctx, hrCode, empCode)
	assert.ErrorIs(t, err, errs.ErrNoEligibleEntries)

	got, err = f.approvals.ApproveAtCurrentLevel(ctx, partnerCode, empCode)
	require.NoError(t, err)
	assert.Equal(t, entity.LevelL3, got.NextLevel)
	assert.Equal(t, hrCode, got.NextApprover)

	for _, e := range f.batchEntries(res.BatchID) {
		assert.Equal(t, partnerCode, e.ApprovedBy)
	}

	got, err = f.approvals.ApproveAtCurrentLevel(ctx, hrCode, empCode)
	require.NoError(t, err)
	assert.Equal(t, entity.LevelCompleted, got.NextLevel)
	assert.Equal(t, entity.OverallStatusApproved, f.batch(res.BatchID).OverallStatus)
}

func TestApproval_NoEligibleEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.approvals.ApproveAtCurrentLevel(ctx, rmCode, empCode)
	var none *errs.NoEligibleEntriesError
	require.ErrorAs(t, err, &none)
	assert.Equal(t, "approve", none.Action)
	assert.ErrorIs(t, err, errs.ErrConflict)

	f.submitted(empCode, "Jan 2025", "100")
	_, err = f.approvals.RejectAtCurrentLevel(ctx, hrCode, empCode, "too early")
	assert.ErrorIs(t, err, errs.ErrNoEligibleEntries)

	_, err = f.approvals.ApproveAtCurrentLevel(ctx, noRMCode, empCode)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestApproval_RejectAtFirstLevelAndReapproveEachEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.submitted(empCode, "Jan 2025", "400", "500", "300")

	got, err := f.approvals.RejectAtCurrentLevel(ctx, rmCode, empCode, "  ")
	require.NoError(t, err)
	assert.Equal(t, 3, got.RejectedCount)

	b := f.batch(res.BatchID)
	assert.Equal(t, entity.OverallStatusRejected, b.OverallStatus)
	assert.Equal(t, entity.LevelL1, b.CurrentLevel)
	assert.Equal(t, entity.LevelL1, b.RejectedLevel)
	assert.Equal(t, rmCode, b.Levels[0].RejectedBy)
	assert.False(t, b.Levels[0].Approved)

	entries := f.batchEntries(res.BatchID)
	for _, e := range entries {
		assert.Equal(t, entity.EntryStatusRejected, e.Status)
		assert.Equal(t, entity.DefaultRejectionReason, e.RejectionReason)
		assert.Equal(t, entity.LevelL1, e.RejectedLevel)
	}
	assert.Equal(t, []string{empCode}, f.members(entity.RoleNameReportingManager, rmCode, entity.QueueRejected))
	f.assertDisjoint(entity.RoleNameReportingManager, rmCode)

	queue, err := f.queues.ListWorkQueue(ctx, rmCode, entity.QueueRejected)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Len(t, queue[0].Entries, 3)

	// another approver cannot lift the rejection
	err = f.approvals.ApproveSingleEntry(ctx, hrCode, empCode, entries[0].ID)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	require.NoError(t, f.approvals.ApproveSingleEntry(ctx, rmCode, empCode, entries[0].ID))
	require.NoError(t, f.approvals.ApproveSingleEntry(ctx, rmCode, empCode, entries[1].ID))
	assert.Equal(t, []string{empCode}, f.members(entity.RoleNameReportingManager, rmCode, entity.QueueRejected))
	assert.Equal(t, entity.OverallStatusRejected, f.batch(res.BatchID).OverallStatus)

	require.NoError(t, f.approvals.ApproveSingleEntry(ctx, rmCode, empCode, entries[2].ID))

	b = f.batch(res.BatchID)
	assert.Equal(t, entity.OverallStatusPending, b.OverallStatus)
	assert.Equal(t, entity.LevelL2, b.CurrentLevel)
	assert.Empty(t, b.RejectedLevel)
	assert.True(t, b.Levels[0].Approved)
	assert.Empty(t, b.Levels[0].RejectedBy)

	assert.Empty(t, f.members(entity.RoleNameReportingManager, rmCode, entity.QueueRejected))
	assert.Equal(t, []string{empCode}, f.members(entity.RoleNameReportingManager, rmCode, entity.QueueApproved))
	assert.Equal(t, []string{empCode}, f.members(entity.RoleNameHR, hrCode, entity.QueuePending))

	got2, err := f.approvals.ApproveAtCurrentLevel(ctx, hrCode, empCode)
	require.NoError(t, err)
	assert.Equal(t, entity.LevelCompleted, got2.NextLevel)
}

func TestApproval_SingleEntryRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.submitted(empCode, "Jan 2025", "400", "500", "300")
	_, err := f.approvals.ApproveAtCurrentLevel(ctx, rmCode, empCode)
	require.NoError(t, err)

	target := f.batchEntries(res.BatchID)[0]
	require.NoError(t, f.approvals.RejectSingleEntry(ctx, rmCode, empCode, target.ID, "wrong client"))

	rejected, err := f.store.Entries().GetByID(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.EntryStatusRejected, rejected.Status)
	assert.Equal(t, "wrong client", rejected.RejectionReason)
	assert.Equal(t, rmCode, rejected.RejectedBy)

	b := f.batch(res.BatchID)
	assert.Equal(t, entity.OverallStatusRejected, b.OverallStatus)
	assert.Equal(t, entity.LevelL1, b.CurrentLevel)
	assert.Equal(t, rmCode, b.Levels[0].RejectedBy)

	// two entries are still approved by the manager
	assert.Equal(t, []string{empCode}, f.members(entity.RoleNameReportingManager, rmCode, entity.QueueApproved))

	// the HR projection is stale; reads filter it
	hrQueue, err := f.queues.ListWorkQueue(ctx, hrCode, entity.QueuePending)
	require.NoError(t, err)
	assert.Empty(t, hrQueue)

	require.NoError(t, f.approvals.ApproveSingleEntry(ctx, rmCode, empCode, target.ID))

	back, err := f.store.Entries().GetByID(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.EntryStatusApproved, back.Status)
	assert.Empty(t, back.RejectedBy)
	assert.Empty(t, back.RejectorName)
	assert.Nil(t, back.RejectedAt)
	assert.Empty(t, back.RejectionReason)
	assert.Empty(t, back.RejectedLevel)

	b = f.batch(res.BatchID)
	assert.Equal(t, entity.OverallStatusPending, b.OverallStatus)
	assert.Equal(t, entity.LevelL2, b.CurrentLevel)

	hrQueue, err = f.queues.ListWorkQueue(ctx, hrCode, entity.QueuePending)
	require.NoError(t, err)
	require.Len(t, hrQueue, 1)
	assert.Len(t, hrQueue[0].Entries, 3)

	f.assertDisjoint(entity.RoleNameReportingManager, rmCode)
	f.assertDisjoint(entity.RoleNameHR, hrCode)
}

func TestApproval_RejectSingleEntryEmptiesApprovedSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.submitted(empCode, "Jan 2025", "100")
	_, err := f.approvals.ApproveAtCurrentLevel(ctx, rmCode, empCode)
	require.NoError(t, err)

	entry := f.batchEntries(res.BatchID)[0]
	require.NoError(t, f.approvals.RejectSingleEntry(ctx, rmCode, empCode, entry.ID, ""))

	assert.Empty(t, f.members(entity.RoleNameReportingManager, rmCode, entity.QueueApproved))
	assert.Equal(t, []string{empCode}, f.members(entity.RoleNameReportingManager, rmCode, entity.QueueRejected))
	f.assertDisjoint(entity.RoleNameReportingManager, rmCode)
}

func TestApproval_RejectSingleEntryPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.submitted(empCode, "Jan 2025", "1000", "900")
	entries := f.batchEntries(res.BatchID)

	// still pending at L1
	err := f.approvals.RejectSingleEntry(ctx, rmCode, empCode, entries[0].ID, "")
	var conflict *errs.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, entity.EntryStatusApproved, conflict.Expected)
	assert.Equal(t, entity.EntryStatusPending, conflict.Actual)

	_, err = f.approvals.ApproveAtCurrentLevel(ctx, rmCode, empCode)
	require.NoError(t, err)

	// partner is on the chain but has not signed off yet
	err = f.approvals.RejectSingleEntry(ctx, partnerCode, empCode, entries[0].ID, "")
	assert.ErrorIs(t, err, errs.ErrConflict)

	// another partner is not on the chain at all
	err = f.approvals.RejectSingleEntry(ctx, otherCode, empCode, entries[0].ID, "")
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	err = f.approvals.RejectSingleEntry(ctx, rmCode, noRMCode, entries[0].ID, "")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	err = f.approvals.ApproveSingleEntry(ctx, rmCode, empCode, entries[0].ID)
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, entity.EntryStatusRejected, conflict.Expected)
}

func TestApproval_HRRejectsCompletedBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.submitted(empCode, "Jan 2025", "400", "600")
	_, err := f.approvals.ApproveAtCurrentLevel(ctx, rmCode, empCode)
	require.NoError(t, err)
	_, err = f.approvals.ApproveAtCurrentLevel(ctx, hrCode, empCode)
	require.NoError(t, err)

	got, err := f.approvals.RejectAtCurrentLevel(ctx, hrCode, empCode, "missing receipts")
	require.NoError(t, err)
	assert.Equal(t, 2, got.RejectedCount)

	b := f.batch(res.BatchID)
	assert.Equal(t, entity.OverallStatusRejected, b.OverallStatus)
	assert.Equal(t, entity.LevelL2, b.CurrentLevel)
	assert.False(t, b.Levels[1].Approved)
	assert.Equal(t, hrCode, b.Levels[1].RejectedBy)

	entries := f.batchEntries(res.BatchID)
	for _, e := range entries {
		assert.Equal(t, entity.EntryStatusRejected, e.Status)
		assert.False(t, e.HRApproved)
		assert.Empty(t, e.HRApprovedBy)
		assert.Nil(t, e.HRApprovedAt)
	}

	records, err := f.status.GetApprovalStatus(ctx, hrCode, empCode)
	require.NoError(t, err)
	assert.Equal(t, entity.OverallStatusRejected, records[0].OverallStatus)
	assert.Equal(t, []string{empCode}, f.members(entity.RoleNameHR, hrCode, entity.QueueRejected))

	for _, e := range entries {
		require.NoError(t, f.approvals.ApproveSingleEntry(ctx, hrCode, empCode, e.ID))
	}

	b = f.batch(res.BatchID)
	assert.Equal(t, entity.OverallStatusApproved, b.OverallStatus)
	assert.Equal(t, entity.LevelCompleted, b.CurrentLevel)
	for _, e := range f.batchEntries(res.BatchID) {
		assert.Equal(t, entity.EntryStatusApproved, e.Status)
		assert.True(t, e.HRApproved)
	}
	assert.Equal(t, []string{empCode}, f.members(entity.RoleNameHR, hrCode, entity.QueueApproved))
	f.assertDisjoint(entity.RoleNameHR, hrCode)
}

func TestApproval_RejectionDoesNotCascadeAcrossMonths(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	jan := f.submitted(empCode, "Jan 2025", "100")
	feb := f.submitted(empCode, "Feb 2025", "200")

	// one reject acts on every batch awaiting the caller
	got, err := f.approvals.RejectAtCurrentLevel(ctx, rmCode, empCode, "")
	require.NoError(t, err)
	assert.Equal(t, 2, got.RejectedCount)

	require.NoError(t, f.approvals.ApproveSingleEntry(ctx, rmCode, empCode, f.batchEntries(jan.BatchID)[0].ID))
	assert.Equal(t, entity.OverallStatusPending, f.batch(jan.BatchID).OverallStatus)
	assert.Equal(t, entity.OverallStatusRejected, f.batch(feb.BatchID).OverallStatus)

	// Feb is still rejected by the manager, so the employee stays in Rejected
	assert.Equal(t, []string{empCode}, f.members(entity.RoleNameReportingManager, rmCode, entity.QueueRejected))
}

func TestApproval_ManagerRereviewAfterHRRejectionRestartsAtHR(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.submitted(empCode, "Jan 2025", "400", "600")
	_, err := f.approvals.ApproveAtCurrentLevel(ctx, rmCode, empCode)
	require.NoError(t, err)
	_, err = f.approvals.RejectAtCurrentLevel(ctx, hrCode, empCode, "missing receipts")
	require.NoError(t, err)

	entries := f.batchEntries(res.BatchID)
	a, b := entries[0], entries[1]

	require.NoError(t, f.approvals.ApproveSingleEntry(ctx, hrCode, empCode, a.ID))
	require.NoError(t, f.approvals.RejectSingleEntry(ctx, rmCode, empCode, a.ID, "wrong project"))

	batch := f.batch(res.BatchID)
	assert.Equal(t, entity.OverallStatusRejected, batch.OverallStatus)
	assert.Equal(t, entity.LevelL1, batch.RejectedLevel)
	assert.Equal(t, entity.LevelL1, batch.CurrentLevel)
	assert.Equal(t, "wrong project", batch.RejectionReason)

	require.NoError(t, f.approvals.ApproveSingleEntry(ctx, hrCode, empCode, b.ID))
	assert.Equal(t, entity.OverallStatusRejected, f.batch(res.BatchID).OverallStatus)

	require.NoError(t, f.approvals.ApproveSingleEntry(ctx, rmCode, empCode, a.ID))

	// the manager's re-review voided HR's approval of a, so HR signs again
	batch = f.batch(res.BatchID)
	assert.Equal(t, entity.OverallStatusPending, batch.OverallStatus)
	assert.Equal(t, entity.LevelL2, batch.CurrentLevel)
	assert.Empty(t, batch.RejectedLevel)
	assert.True(t, batch.Levels[0].Approved)
	assert.False(t, batch.Levels[1].Approved)
	assert.Equal(t, []string{empCode}, f.members(entity.RoleNameHR, hrCode, entity.QueuePending))

	got, err := f.approvals.ApproveAtCurrentLevel(ctx, hrCode, empCode)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ApprovedCount)
	assert.Equal(t, entity.LevelCompleted, got.NextLevel)

	for _, e := range f.batchEntries(res.BatchID) {
		assert.Equal(t, entity.EntryStatusApproved, e.Status)
		assert.True(t, e.HRApproved, "entry %s completed without HR sign-off", e.ID)
	}
	f.assertDisjoint(entity.RoleNameReportingManager, rmCode)
	f.assertDisjoint(entity.RoleNameHR, hrCode)
}

func TestApproval_ManagerRerejectsWhilePartnerPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.submitted(empCode, "Jan 2025", "1000", "900")
	_, err := f.approvals.ApproveAtCurrentLevel(ctx, rmCode, empCode)
	require.NoError(t, err)
	require.Equal(t, entity.LevelL2, f.batch(res.BatchID).CurrentLevel)

	target := f.batchEntries(res.BatchID)[0]
	require.NoError(t, f.approvals.RejectSingleEntry(ctx, rmCode, empCode, target.ID, ""))

	b := f.batch(res.BatchID)
	assert.Equal(t, entity.OverallStatusRejected, b.OverallStatus)
	assert.Equal(t, entity.LevelL1, b.RejectedLevel)
	assert.Equal(t, entity.LevelL1, b.CurrentLevel)

	// the partner no longer has anything to act on
	_, err = f.approvals.ApproveAtCurrentLevel(ctx, partnerCode, empCode)
	assert.ErrorIs(t, err, errs.ErrNoEligibleEntries)
	_, err = f.approvals.RejectAtCurrentLevel(ctx, partnerCode, empCode, "")
	assert.ErrorIs(t, err, errs.ErrNoEligibleEntries)

	require.NoError(t, f.approvals.ApproveSingleEntry(ctx, rmCode, empCode, target.ID))

	b = f.batch(res.BatchID)
	assert.Equal(t, entity.OverallStatusPending, b.OverallStatus)
	assert.Equal(t, entity.LevelL2, b.CurrentLevel)
	assert.Equal(t, []string{empCode}, f.members(entity.RoleNamePartner, partnerCode, entity.QueuePending))

	got, err := f.approvals.ApproveAtCurrentLevel(ctx, partnerCode, empCode)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ApprovedCount)
	assert.Equal(t, entity.LevelL3, got.NextLevel)
}

func TestApproval_LowerRerejectionMovesReviveDown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.submitted(empCode, "Jan 2025", "1000", "900")
	_, err := f.approvals.ApproveAtCurrentLevel(ctx, rmCode, empCode)
	require.NoError(t, err)
	_, err = f.approvals.ApproveAtCurrentLevel(ctx, partnerCode, empCode)
	require.NoError(t, err)

	entries := f.batchEntries(res.BatchID)
	x, y := entries[0], entries[1]

	// the partner stops the batch at L2, then the manager reaches lower
	require.NoError(t, f.approvals.RejectSingleEntry(ctx, partnerCode, empCode, x.ID, "client mismatch"))
	assert.Equal(t, entity.LevelL2, f.batch(res.BatchID).RejectedLevel)

	require.NoError(t, f.approvals.RejectSingleEntry(ctx, rmCode, empCode, y.ID, "duplicate"))
	b := f.batch(res.BatchID)
	assert.Equal(t, entity.LevelL1, b.RejectedLevel)
	assert.Equal(t, entity.LevelL1, b.CurrentLevel)

	// a higher re-rejection leaves the lower one in place
	require.NoError(t, f.approvals.ApproveSingleEntry(ctx, partnerCode, empCode, x.ID))
	require.NoError(t, f.approvals.RejectSingleEntry(ctx, partnerCode, empCode, x.ID, "client mismatch"))
	assert.Equal(t, entity.LevelL1, f.batch(res.BatchID).RejectedLevel)

	require.NoError(t, f.approvals.ApproveSingleEntry(ctx, partnerCode, empCode, x.ID))
	require.NoError(t, f.approvals.ApproveSingleEntry(ctx, rmCode, empCode, y.ID))

	b = f.batch(res.BatchID)
	assert.Equal(t, entity.OverallStatusPending, b.OverallStatus)
	assert.Equal(t, entity.LevelL2, b.CurrentLevel)
	assert.False(t, b.Levels[1].Approved)

	got, err := f.approvals.ApproveAtCurrentLevel(ctx, partnerCode, empCode)
	require.NoError(t, err)
	assert.Equal(t, entity.LevelL3, got.NextLevel)
	got, err = f.approvals.ApproveAtCurrentLevel(ctx, hrCode, empCode)
	require.NoError(t, err)
	assert.Equal(t, entity.LevelCompleted, got.NextLevel)

	for _, e := range f.batchEntries(res.BatchID) {
		assert.Equal(t, partnerCode, e.ApprovedBy)
		assert.True(t, e.HRApproved)
	}
	f.assertDisjoint(entity.RoleNamePartner, partnerCode)
}
