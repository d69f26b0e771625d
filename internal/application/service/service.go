// Package service implements the OPE approval workflow: drafts, final
// submission, the approval chain, amount reconciliation, work queues and
// status reads. Every operation that touches more than one record runs in a
// single unit of work; chain events are dispatched inside it so projections
// commit or roll back together with the chain.
package service

import (
	"context"
	"time"

	"github.com/garyjia/ope-approval/internal/application/dispatcher"
	"github.com/garyjia/ope-approval/internal/domain/entity"
	"github.com/garyjia/ope-approval/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Clock returns the current time; tests pin it
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c()
}

func publish(ctx context.Context, d dispatcher.Dispatcher, evt *event.Event) error {
	if d == nil {
		return nil
	}
	return d.Dispatch(ctx, evt)
}

// entriesWithStatus filters entries by lifecycle status
func entriesWithStatus(entries []*entity.ExpenseEntry, status string) []*entity.ExpenseEntry {
	var out []*entity.ExpenseEntry
	for _, e := range entries {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out
}

// expectedEntryStatus is the status entries carry while a level awaits action
func expectedEntryStatus(lvl *entity.ApprovalLevel) string {
	if entity.IsFirstLevel(lvl) {
		return entity.EntryStatusPending
	}
	return entity.EntryStatusApproved
}

func batchIndex(batches []*entity.ApprovalBatch) map[string]*entity.ApprovalBatch {
	idx := make(map[string]*entity.ApprovalBatch, len(batches))
	for _, b := range batches {
		idx[b.ID] = b
	}
	return idx
}
