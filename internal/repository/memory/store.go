// Package memory keeps the catalog, ledger and outbox in process memory.
// It backs local runs and unit tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/sakashimaa/inventory-audit/internal/domain"
	outboxDomain "github.com/sakashimaa/inventory-audit/pkg/outbox/domain"
)

// Store holds all tables behind one RWMutex. WithinTx keeps the write lock
// for the whole unit of work and replays an undo journal when fn fails, so
// readers never see a half-applied unit.
type Store struct {
	mu sync.RWMutex

	products      map[int64]domain.Product
	history       map[int64][]domain.HistoryEntry
	events        []outboxDomain.OutboxEvent
	nextProductID int64
	nextHistoryID int64
	nextEventID   int64

	now func() time.Time
}

type txState struct {
	undo []func()
}

type txKey struct{}

func NewStore() *Store {
	return &Store{
		products: make(map[int64]domain.Product),
		history:  make(map[int64][]domain.HistoryEntry),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Products() *ProductRepository { return &ProductRepository{store: s} }
func (s *Store) History() *HistoryRepository  { return &HistoryRepository{store: s} }
func (s *Store) Outbox() *OutboxRepository    { return &OutboxRepository{store: s} }

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txState); ok {
		return fn(ctx)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := &txState{}
	committed := false
	defer func() {
		if committed {
			return
		}
		for i := len(st.undo) - 1; i >= 0; i-- {
			st.undo[i]()
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, st)); err != nil {
		return err
	}

	committed = true
	return nil
}

// read takes the shared lock unless ctx already runs inside WithinTx.
func (s *Store) read(ctx context.Context) func() {
	if _, ok := ctx.Value(txKey{}).(*txState); ok {
		return func() {}
	}

	s.mu.RLock()
	return s.mu.RUnlock
}

// write takes the exclusive lock unless ctx already runs inside WithinTx.
// The returned record function registers an undo step for the open unit.
func (s *Store) write(ctx context.Context) (unlock func(), record func(undo func())) {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		return func() {}, func(undo func()) { st.undo = append(st.undo, undo) }
	}

	s.mu.Lock()
	return s.mu.Unlock, func(func()) {}
}
