// Package memory provides in-process implementations of the persistence ports
// for development and tests. Transactions and writes outside them are
// serialized; a failed transaction rolls back by restoring a snapshot taken
// when the unit of work began.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/garyjia/ope-approval/internal/application/port"
	"github.com/garyjia/ope-approval/internal/domain/entity"
)

type monthKey struct {
	employee string
	month    string
}

type queueKey struct {
	role     string
	approver string
	status   entity.QueueStatus
}

type state struct {
	seq       int64
	entries   map[string]*entity.ExpenseEntry
	entryOrd  map[string]int64
	months    map[monthKey]*entity.PayrollMonth
	batches   map[string]*entity.ApprovalBatch
	queues    map[queueKey]map[string]int64
	employees map[string]*entity.Employee
	managers  map[string]*entity.DirectoryMember
	partners  map[string]*entity.DirectoryMember
}

func newState() *state {
	return &state{
		entries:   make(map[string]*entity.ExpenseEntry),
		entryOrd:  make(map[string]int64),
		months:    make(map[monthKey]*entity.PayrollMonth),
		batches:   make(map[string]*entity.ApprovalBatch),
		queues:    make(map[queueKey]map[string]int64),
		employees: make(map[string]*entity.Employee),
		managers:  make(map[string]*entity.DirectoryMember),
		partners:  make(map[string]*entity.DirectoryMember),
	}
}

func (s *state) clone() *state {
	c := newState()
	c.seq = s.seq
	for k, v := range s.entries {
		c.entries[k] = v.Clone()
	}
	for k, v := range s.entryOrd {
		c.entryOrd[k] = v
	}
	for k, v := range s.months {
		c.months[k] = v.Clone()
	}
	for k, v := range s.batches {
		c.batches[k] = v.Clone()
	}
	for k, members := range s.queues {
		m := make(map[string]int64, len(members))
		for code, ord := range members {
			m[code] = ord
		}
		c.queues[k] = m
	}
	for k, v := range s.employees {
		e := *v
		c.employees[k] = &e
	}
	for k, v := range s.managers {
		m := *v
		c.managers[k] = &m
	}
	for k, v := range s.partners {
		p := *v
		c.partners[k] = &p
	}
	return c
}

func (s *state) next() int64 {
	s.seq++
	return s.seq
}

// Store holds every collection and hands out repositories over it
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data *state
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{data: newState()}
}

type txKey struct{}

// WithTransaction serializes units of work and restores the prior state when fn fails
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	committed := false
	defer func() {
		if !committed {
			s.mu.Lock()
			s.data = snapshot
			s.mu.Unlock()
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		return err
	}

	committed = true
	return nil
}

// Entries returns the entry repository
func (s *Store) Entries() port.EntryRepository { return &entryRepo{s} }

// Approvals returns the approval repository
func (s *Store) Approvals() port.ApprovalRepository { return &approvalRepo{s} }

// Queues returns the work-queue repository
func (s *Store) Queues() port.QueueRepository { return &queueRepo{s} }

// Directory returns the directory repository
func (s *Store) Directory() port.DirectoryRepository { return &directoryRepo{s} }

func (s *Store) read(fn func(d *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

// write applies fn to the live state. Outside a unit of work it waits for any
// open one, so a rollback never discards a write that landed after its snapshot.
func (s *Store) write(ctx context.Context, fn func(d *state) error) error {
	if ctx.Value(txKey{}) == nil {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func sortEntries(d *state, entries []*entity.ExpenseEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return d.entryOrd[entries[i].ID] < d.entryOrd[entries[j].ID]
	})
}

// Verify interface compliance
var _ port.TransactionManager = (*Store)(nil)
