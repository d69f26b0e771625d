package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/ope-approval/internal/domain/entity"
	"github.com/garyjia/ope-approval/internal/domain/errs"
)

func TestEditMonthTotal_Proportional(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.submitted(empCode, "Jan 2025", "400", "600")

	got, err := f.amounts.EditMonthTotal(ctx, hrCode, empCode, "jan-2025", decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.Equal(t, "Jan 2025", got.PayrollMonth)
	assert.Equal(t, "1000.00", got.OldTotal.StringFixed(2))
	assert.Equal(t, "500.00", got.NewTotal.StringFixed(2))
	assert.Equal(t, DistributionProportional, got.DistributionMethod)

	entries := f.batchEntries(res.BatchID)
	require.Len(t, entries, 2)
	assert.Equal(t, "200.00", entries[0].Amount.StringFixed(2))
	assert.Equal(t, "300.00", entries[1].Amount.StringFixed(2))
	require.NotNil(t, entries[0].OriginalAmount)
	assert.Equal(t, "400.00", entries[0].OriginalAmount.StringFixed(2))
	assert.Equal(t, "600.00", entries[1].OriginalAmount.StringFixed(2))
	assert.Equal(t, hrCode, entries[0].AmountEditedBy)
	assert.NotNil(t, entries[0].AmountEditedAt)

	month, err := f.store.Approvals().GetMonth(ctx, empCode, "Jan 2025")
	require.NoError(t, err)
	assert.Equal(t, "500.00", month.TotalAmount.StringFixed(2))
	assert.Equal(t, hrCode, month.TotalEditedBy)
	assert.Equal(t, "500.00", f.batch(res.BatchID).BatchTotal.StringFixed(2))

	// entry status is untouched
	assert.Equal(t, entity.EntryStatusPending, entries[0].Status)
}

func TestEditMonthTotal_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.submitted(empCode, "Jan 2025", "400", "600")

	_, err := f.amounts.EditMonthTotal(ctx, hrCode, empCode, "Jan 2025", decimal.Zero)
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = f.amounts.EditMonthTotal(ctx, hrCode, empCode, "Feb 2025", decimal.NewFromInt(10))
	assert.ErrorIs(t, err, errs.ErrNotFound)

	// the partner is not on a two-level chain
	_, err = f.amounts.EditMonthTotal(ctx, partnerCode, empCode, "Jan 2025", decimal.NewFromInt(10))
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = f.amounts.EditMonthTotal(ctx, noRMCode, empCode, "Jan 2025", decimal.NewFromInt(10))
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	// a total too small to give every entry a cent
	_, err = f.amounts.EditMonthTotal(ctx, rmCode, empCode, "Jan 2025", decimal.RequireFromString("0.01"))
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestRedistribute(t *testing.T) {
	mk := func(amounts ...string) []*entity.ExpenseEntry {
		out := make([]*entity.ExpenseEntry, len(amounts))
		for i, a := range amounts {
			out[i] = &entity.ExpenseEntry{Amount: decimal.RequireFromString(a)}
		}
		return out
	}

	tests := []struct {
		name    string
		entries []*entity.ExpenseEntry
		total   string
		want    []string
		method  string
	}{
		{name: "halve", entries: mk("400", "600"), total: "500", want: []string{"200.00", "300.00"}, method: DistributionProportional},
		{name: "rounds each share", entries: mk("100", "100", "100"), total: "100", want: []string{"33.33", "33.33", "33.33"}, method: DistributionProportional},
		{name: "zero old total splits evenly", entries: mk("0", "0", "0"), total: "100", want: []string{"33.33", "33.33", "33.33"}, method: DistributionEqual},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amounts, method := redistribute(tt.entries, entity.SumAmounts(tt.entries), decimal.RequireFromString(tt.total))
			assert.Equal(t, tt.method, method)
			got := make([]string, len(amounts))
			for i, a := range amounts {
				got[i] = a.StringFixed(2)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEditEntryAmount_DoesNotReroute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.submitted(empCode, "Jan 2025", "400", "600")
	entry := f.batchEntries(res.BatchID)[0]

	got, err := f.amounts.EditEntryAmount(ctx, rmCode, empCode, entry.ID, decimal.NewFromInt(1400))
	require.NoError(t, err)
	assert.Equal(t, "400.00", got.OldAmount.StringFixed(2))
	assert.Equal(t, "1400.00", got.NewAmount.StringFixed(2))
	assert.Equal(t, "2000.00", got.MonthTotal.StringFixed(2))

	edited, err := f.store.Entries().GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "400.00", edited.OriginalAmount.StringFixed(2))
	assert.Equal(t, rmCode, edited.AmountEditedBy)

	// the total now exceeds the limit but the chain keeps two levels
	b := f.batch(res.BatchID)
	assert.Equal(t, 2, b.TotalLevels)
	assert.Equal(t, "2000.00", b.BatchTotal.StringFixed(2))

	month, err := f.store.Approvals().GetMonth(ctx, empCode, "Jan 2025")
	require.NoError(t, err)
	assert.Equal(t, "2000.00", month.TotalAmount.StringFixed(2))
	assert.Empty(t, month.TotalEditedBy)
}

func TestEditEntryAmount_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.submitted(empCode, "Jan 2025", "400")
	entry := f.batchEntries(res.BatchID)[0]
	draft := f.saveDrafts(empCode, "Feb 2025", "50")[0]

	_, err := f.amounts.EditEntryAmount(ctx, rmCode, empCode, entry.ID, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = f.amounts.EditEntryAmount(ctx, rmCode, empCode, "missing", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = f.amounts.EditEntryAmount(ctx, rmCode, empCode, draft.ID, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, errs.ErrConflict)

	_, err = f.amounts.EditEntryAmount(ctx, otherCode, empCode, entry.ID, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
}
