package memory

import (
	"context"

	"github.com/sakashimaa/inventory-audit/internal/domain"
	"github.com/sakashimaa/inventory-audit/internal/repository"
)

var _ repository.HistoryRepository = (*HistoryRepository)(nil)

type HistoryRepository struct {
	store *Store
}

func (r *HistoryRepository) Append(ctx context.Context, entry *domain.HistoryEntry) (*domain.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := r.store
	unlock, record := s.write(ctx)
	defer unlock()

	if _, ok := s.products[entry.ProductID]; !ok {
		return nil, repository.ErrProductNotFound
	}

	s.nextHistoryID++
	res := *entry
	res.ID = s.nextHistoryID

	productID := res.ProductID
	prevLen := len(s.history[productID])
	s.history[productID] = append(s.history[productID], res)
	record(func() {
		if prevLen == 0 {
			delete(s.history, productID)
			return
		}
		s.history[productID] = s.history[productID][:prevLen]
	})

	return &res, nil
}

func (r *HistoryRepository) ListByProduct(ctx context.Context, productID int64, order domain.SortOrder) ([]domain.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := r.store.read(ctx)
	defer unlock()

	entries := r.store.history[productID]
	res := make([]domain.HistoryEntry, len(entries))

	if order == domain.OldestFirst {
		copy(res, entries)
		return res, nil
	}

	for i, e := range entries {
		res[len(entries)-1-i] = e
	}

	return res, nil
}

func (r *HistoryRepository) CountByProduct(ctx context.Context, productID int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	unlock := r.store.read(ctx)
	defer unlock()

	return int64(len(r.store.history[productID])), nil
}
