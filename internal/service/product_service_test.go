package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/sakashimaa/inventory-audit/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductService_WidgetScenario(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.products.CreateProduct(bg, domain.ProductFields{Name: "Widget", Stock: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, domain.DefaultUnit, created.Unit)
	assert.Equal(t, domain.StatusInStock, created.Status())

	history, err := env.products.History(bg, created.ID, domain.NewestFirst)
	require.NoError(t, err)
	assert.Empty(t, history, "creation writes no history")

	updated, err := env.products.UpdateProduct(bg, created.ID, domain.UpdateProductInput{Stock: int64Ptr(7)}, "AdminUser")
	require.NoError(t, err)
	assert.Equal(t, int64(7), updated.Stock)

	history, err = env.products.History(bg, created.ID, domain.NewestFirst)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(10), history[0].OldStock)
	assert.Equal(t, int64(7), history[0].NewStock)
	assert.Equal(t, "AdminUser", history[0].ChangedBy)
	assert.Equal(t, created.ID, history[0].ProductID)
	assert.False(t, history[0].Timestamp.IsZero())

	_, err = env.products.UpdateProduct(bg, created.ID, domain.UpdateProductInput{Category: stringPtr("Tools")}, "AdminUser")
	require.NoError(t, err)

	history, err = env.products.History(bg, created.ID, domain.NewestFirst)
	require.NoError(t, err)
	assert.Len(t, history, 1, "category-only update writes no history")

	require.NoError(t, env.products.DeleteProduct(bg, created.ID))

	_, err = env.products.GetProduct(bg, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.products.History(bg, created.ID, domain.NewestFirst)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Equal(t, []string{
		domain.EventProductCreated,
		domain.EventStockChanged,
		domain.EventProductDeleted,
	}, env.eventTypes())
}

func TestProductService_UpdateSameStockWritesNoHistory(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.products.CreateProduct(bg, domain.ProductFields{Name: "Widget", Stock: 10})
	require.NoError(t, err)

	// The UI posts the whole row back, stock included, on every edit.
	_, err = env.products.UpdateProduct(bg, created.ID, domain.UpdateProductInput{
		Name:  stringPtr("Widget v2"),
		Stock: int64Ptr(10),
	}, "AdminUser")
	require.NoError(t, err)

	count, err := env.store.History().CountByProduct(bg, created.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestProductService_Validation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.products.CreateProduct(bg, domain.ProductFields{Name: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.products.CreateProduct(bg, domain.ProductFields{Name: "Widget", Stock: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	created, err := env.products.CreateProduct(bg, domain.ProductFields{Name: "Widget", Stock: 1})
	require.NoError(t, err)

	_, err = env.products.UpdateProduct(bg, created.ID, domain.UpdateProductInput{Stock: int64Ptr(-5)}, "AdminUser")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.products.UpdateProduct(bg, created.ID, domain.UpdateProductInput{Stock: int64Ptr(5)}, " ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.products.UpdateProduct(bg, created.ID, domain.UpdateProductInput{Name: stringPtr("")}, "AdminUser")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.products.UpdateProduct(bg, 404, domain.UpdateProductInput{Stock: int64Ptr(5)}, "AdminUser")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, env.products.DeleteProduct(bg, 404), domain.ErrNotFound)

	got, err := env.products.GetProduct(bg, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Stock)
}

func TestProductService_ConcurrentUpdatesFormChain(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.products.CreateProduct(bg, domain.ProductFields{Name: "Widget", Stock: 0})
	require.NoError(t, err)

	const workers = 32

	var wg sync.WaitGroup
	for i := 1; i <= workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.products.UpdateProduct(bg, created.ID, domain.UpdateProductInput{Stock: int64Ptr(int64(i))}, fmt.Sprintf("worker-%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries, err := env.products.History(bg, created.ID, domain.OldestFirst)
	require.NoError(t, err)
	require.Len(t, entries, workers)

	assert.Equal(t, int64(0), entries[0].OldStock)
	for i := 1; i < len(entries); i++ {
		assert.Equal(t, entries[i-1].NewStock, entries[i].OldStock, "entry %d breaks the chain", i)
	}

	final, err := env.products.GetProduct(bg, created.ID)
	require.NoError(t, err)
	assert.Equal(t, entries[len(entries)-1].NewStock, final.Stock)
}

func TestProductService_ConcurrentMergesAccumulate(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.products.CreateProduct(bg, domain.ProductFields{Name: "Widget", Stock: 5})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.products.MergeProduct(bg, created.ID, domain.ProductFields{Name: "Widget", Stock: 2}, "import")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := env.products.GetProduct(bg, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(25), got.Stock)
}

func TestProductService_MergeFillsEmptyFields(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.products.CreateProduct(bg, domain.ProductFields{Name: "Widget", Category: "", Image: "kept.png", Stock: 1})
	require.NoError(t, err)

	merged, err := env.products.MergeProduct(bg, created.ID, domain.ProductFields{
		Name:     "widget",
		Category: "Tools",
		Image:    "ignored.png",
	}, "import")
	require.NoError(t, err)

	assert.Equal(t, "Tools", merged.Category)
	assert.Equal(t, "kept.png", merged.Image)
	assert.Equal(t, int64(1), merged.Stock)

	count, err := env.store.History().CountByProduct(bg, created.ID)
	require.NoError(t, err)
	assert.Zero(t, count, "merging zero stock changes nothing in the ledger")
}

func TestProductService_DeleteEventCarriesProvenance(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.products.CreateProduct(bg, domain.ProductFields{Name: "Widget", Stock: 10})
	require.NoError(t, err)

	for _, stock := range []int64{8, 6} {
		_, err := env.products.UpdateProduct(bg, created.ID, domain.UpdateProductInput{Stock: int64Ptr(stock)}, "AdminUser")
		require.NoError(t, err)
	}

	require.NoError(t, env.products.DeleteProduct(bg, created.ID))

	events := env.store.Outbox().Events()
	last := events[len(events)-1]
	require.Equal(t, domain.EventProductDeleted, last.EventType)

	var envelope struct {
		Payload domain.ProductDeletedEvent `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(last.Payload, &envelope))
	assert.Equal(t, int64(6), envelope.Payload.FinalStock)
	assert.Equal(t, int64(2), envelope.Payload.PurgedHistory)
}

func TestProductService_CancelledContext(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.products.CreateProduct(bg, domain.ProductFields{Name: "Widget", Stock: 10})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(bg)
	cancel()

	_, err = env.products.UpdateProduct(ctx, created.ID, domain.UpdateProductInput{Stock: int64Ptr(1)}, "AdminUser")
	assert.ErrorIs(t, err, context.Canceled)

	got, err := env.products.GetProduct(bg, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Stock)
}
