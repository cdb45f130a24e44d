package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakashimaa/inventory-audit/internal/domain"
	outboxDomain "github.com/sakashimaa/inventory-audit/pkg/outbox/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, store *Store, products ...domain.Product) []*domain.Product {
	t.Helper()

	res := make([]*domain.Product, 0, len(products))
	for i := range products {
		p, err := store.Products().Create(context.Background(), &products[i])
		require.NoError(t, err)
		res = append(res, p)
	}
	return res
}

func TestProductRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.Products()

	created := seed(t, store, domain.Product{Name: "Widget", Unit: "pcs", Stock: 10})[0]
	assert.Equal(t, int64(1), created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Widget", got.Name)

	stock := int64(7)
	updated, err := repo.Update(ctx, created.ID, &domain.UpdateProductInput{Stock: &stock})
	require.NoError(t, err)
	assert.Equal(t, int64(7), updated.Stock)
	assert.Equal(t, "Widget", updated.Name)

	deleted, err := repo.DeleteByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), deleted.Stock)

	_, err = repo.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.DeleteByID(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// ids are never reused
	next := seed(t, store, domain.Product{Name: "Gadget"})[0]
	assert.Equal(t, int64(2), next.ID)
}

func TestProductRepository_List(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	seed(t, store,
		domain.Product{Name: "Diet Cola", Category: "Beverages"},
		domain.Product{Name: "Cola Zero", Category: "beverages"},
		domain.Product{Name: "Crisps", Category: "Snacks"},
		domain.Product{Name: "COLA nuts", Category: "Snacks"},
	)
	repo := store.Products()

	all, err := repo.List(ctx, domain.ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	byName, err := repo.List(ctx, domain.ProductFilter{Name: "cola"})
	require.NoError(t, err)
	assert.Len(t, byName, 3)

	byCategory, err := repo.List(ctx, domain.ProductFilter{Category: "Beverages"})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, "Diet Cola", byCategory[0].Name)

	page, err := repo.List(ctx, domain.ProductFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(2), page[0].ID)
	assert.Equal(t, int64(3), page[1].ID)

	beyond, err := repo.List(ctx, domain.ProductFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, beyond)

	categories, err := repo.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Beverages", "Snacks", "beverages"}, categories)
}

func TestProductRepository_FindByIdentity(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	seed(t, store,
		domain.Product{Name: "Diet Cola", Brand: "Fizz"},
		domain.Product{Name: "Diet Cola", Brand: "Pop"},
	)

	found, err := store.Products().FindByIdentity(ctx, " diet COLA", "fizz ")
	require.NoError(t, err)
	assert.Equal(t, int64(1), found.ID)

	_, err = store.Products().FindByIdentity(ctx, "Diet Cola", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHistoryRepository_AppendAndList(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	p := seed(t, store, domain.Product{Name: "Widget", Stock: 10})[0]
	history := store.History()

	for _, next := range []int64{7, 9, 4} {
		_, err := history.Append(ctx, &domain.HistoryEntry{ProductID: p.ID, ChangedBy: "AdminUser", NewStock: next, Timestamp: time.Now()})
		require.NoError(t, err)
	}

	newest, err := history.ListByProduct(ctx, p.ID, domain.NewestFirst)
	require.NoError(t, err)
	require.Len(t, newest, 3)
	assert.Equal(t, int64(4), newest[0].NewStock)

	oldest, err := history.ListByProduct(ctx, p.ID, domain.OldestFirst)
	require.NoError(t, err)
	assert.Equal(t, int64(7), oldest[0].NewStock)
	assert.Less(t, oldest[0].ID, oldest[1].ID)

	count, err := history.CountByProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	_, err = history.Append(ctx, &domain.HistoryEntry{ProductID: 99})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	empty, err := history.ListByProduct(ctx, 99, domain.NewestFirst)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestStore_DeleteCascadesHistory(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	p := seed(t, store, domain.Product{Name: "Widget", Stock: 10})[0]

	_, err := store.History().Append(ctx, &domain.HistoryEntry{ProductID: p.ID, OldStock: 10, NewStock: 5})
	require.NoError(t, err)

	_, err = store.Products().DeleteByID(ctx, p.ID)
	require.NoError(t, err)

	count, err := store.History().CountByProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStore_WithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	p := seed(t, store, domain.Product{Name: "Widget", Stock: 10})[0]

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(ctx context.Context) error {
		stock := int64(3)
		if _, err := store.Products().Update(ctx, p.ID, &domain.UpdateProductInput{Stock: &stock}); err != nil {
			return err
		}
		if _, err := store.History().Append(ctx, &domain.HistoryEntry{ProductID: p.ID, OldStock: 10, NewStock: 3}); err != nil {
			return err
		}
		event, err := outboxDomain.NewOutboxEvent("product_events", domain.AggregateProduct, "1", domain.EventStockChanged, map[string]int{"stock": 3})
		if err != nil {
			return err
		}
		if err := store.Outbox().SaveOutboxEvent(ctx, event); err != nil {
			return err
		}
		if _, err := store.Products().Create(ctx, &domain.Product{Name: "Ghost"}); err != nil {
			return err
		}
		if _, err := store.Products().DeleteByID(ctx, p.ID); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := store.Products().GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Stock)

	count, err := store.History().CountByProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	assert.Empty(t, store.Outbox().Events())

	all, err := store.Products().List(ctx, domain.ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_WithinTxCommits(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	p := seed(t, store, domain.Product{Name: "Widget", Stock: 10})[0]

	err := store.WithinTx(ctx, func(ctx context.Context) error {
		stock := int64(3)
		_, err := store.Products().Update(ctx, p.ID, &domain.UpdateProductInput{Stock: &stock})
		return err
	})
	require.NoError(t, err)

	got, err := store.Products().GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Stock)
}

func TestOutboxRepository_KeepsRecentEvents(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	for i := 0; i < eventRetention+5; i++ {
		event, err := outboxDomain.NewOutboxEvent("product_events", domain.AggregateProduct, "1", domain.EventStockChanged, map[string]int{"n": i})
		require.NoError(t, err)
		require.NoError(t, store.Outbox().SaveOutboxEvent(ctx, event))
	}

	events := store.Outbox().Events()
	require.Len(t, events, eventRetention)
	assert.Equal(t, int64(6), events[0].ID)
	assert.Equal(t, int64(eventRetention+5), events[len(events)-1].ID)
}
