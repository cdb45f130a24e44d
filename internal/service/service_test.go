package service

import (
	"context"
	"testing"
	"time"

	"github.com/sakashimaa/inventory-audit/internal/lock"
	"github.com/sakashimaa/inventory-audit/internal/repository/memory"
	"go.uber.org/zap"
)

type testEnv struct {
	store    *memory.Store
	products ProductService
	queries  QueryService
	imports  ImportService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	locker := lock.NewLocal()
	logger := zap.NewNop()
	clock := func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	products := NewProductService(Dependencies{
		Products:    store.Products(),
		History:     store.History(),
		Outbox:      store.Outbox(),
		Tx:          store,
		Locker:      locker,
		Logger:      logger,
		EventsTopic: "product_events",
		Now:         clock,
	})

	return &testEnv{
		store:    store,
		products: products,
		queries:  NewQueryService(store.Products(), logger),
		imports: NewImportService(ImportDependencies{
			Products:     products,
			Catalog:      store.Products(),
			Outbox:       store.Outbox(),
			Tx:           store,
			Locker:       locker,
			Logger:       logger,
			DefaultActor: "import",
			EventsTopic:  "product_events",
			Now:          clock,
		}),
	}
}

func int64Ptr(v int64) *int64 { return &v }

func stringPtr(v string) *string { return &v }

func (e *testEnv) eventTypes() []string {
	events := e.store.Outbox().Events()
	res := make([]string, 0, len(events))
	for _, ev := range events {
		res = append(res, ev.EventType)
	}
	return res
}

var bg = context.Background()
