package service

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"

	"github.com/sakashimaa/inventory-audit/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogCSV = `name,category,brand,unit,stock,image
Diet Cola,Beverages,Fizz,can,24,cola.png
Crisps,Snacks,Crunch,,10,
Lemonade,Beverages,,bottle,0,
`

func importString(t *testing.T, env *testEnv, body string, opts domain.ImportOptions) *domain.ImportSummary {
	t.Helper()

	summary, err := env.imports.Import(bg, strings.NewReader(body), opts)
	require.NoError(t, err)
	return summary
}

func TestImportService_AddsNewProducts(t *testing.T) {
	env := newTestEnv(t)

	summary := importString(t, env, catalogCSV, domain.ImportOptions{})
	assert.Equal(t, 3, summary.Added)
	assert.Zero(t, summary.Skipped)
	assert.Empty(t, summary.Duplicates)

	products, err := env.queries.Search(bg, domain.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, "Diet Cola", products[0].Name)
	assert.Equal(t, "can", products[0].Unit)
	assert.Equal(t, int64(24), products[0].Stock)
	assert.Equal(t, domain.DefaultUnit, products[1].Unit)
	assert.Equal(t, domain.StatusOutOfStock, products[2].Status())

	for _, p := range products {
		count, err := env.store.History().CountByProduct(bg, p.ID)
		require.NoError(t, err)
		assert.Zero(t, count, "imported products start without history")
	}

	types := env.eventTypes()
	assert.Equal(t, domain.EventCatalogImported, types[len(types)-1])
}

func TestImportService_ReimportAddsNothing(t *testing.T) {
	env := newTestEnv(t)

	importString(t, env, catalogCSV, domain.ImportOptions{})

	again := importString(t, env, catalogCSV, domain.ImportOptions{})
	assert.Zero(t, again.Added)
	require.Len(t, again.Duplicates, 3)
	for _, d := range again.Duplicates {
		assert.Equal(t, domain.DuplicateExists, d.Reason)
		assert.NotZero(t, d.ProductID)
	}

	products, err := env.queries.Search(bg, domain.ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, products, 3)
	assert.Equal(t, int64(24), products[0].Stock)
}

func TestImportService_DuplicateIdentityIsCaseInsensitive(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.products.CreateProduct(bg, domain.ProductFields{Name: "Diet Cola", Brand: "Fizz", Stock: 1})
	require.NoError(t, err)

	summary := importString(t, env, "name,brand,stock\n  diet cola ,FIZZ,5\nDiet Cola,Pop,5\n", domain.ImportOptions{})
	assert.Equal(t, 1, summary.Added, "different brand is a different product")
	require.Len(t, summary.Duplicates, 1)
	assert.Equal(t, 2, summary.Duplicates[0].Line)
}

func TestImportService_DuplicateWithinFile(t *testing.T) {
	env := newTestEnv(t)

	summary := importString(t, env, "name,brand,stock\nWidget,Acme,3\nwidget,acme,4\n", domain.ImportOptions{})
	assert.Equal(t, 1, summary.Added)
	require.Len(t, summary.Duplicates, 1)
	assert.Equal(t, domain.DuplicateRepeated, summary.Duplicates[0].Reason)
	assert.Equal(t, int64(4), summary.Duplicates[0].Stock)

	products, err := env.queries.Search(bg, domain.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, int64(3), products[0].Stock)
}

func TestImportService_SkipsInvalidRows(t *testing.T) {
	env := newTestEnv(t)

	body := "name,stock\n,5\n   ,1\nGood,2\nBad stock,abc\nNegative,-3\nNo stock,\n"
	summary := importString(t, env, body, domain.ImportOptions{})

	assert.Equal(t, 2, summary.Added)
	assert.Equal(t, 4, summary.Skipped)
	assert.Empty(t, summary.Duplicates)

	products, err := env.queries.Search(bg, domain.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Good", products[0].Name)
	assert.Equal(t, "No stock", products[1].Name)
	assert.Zero(t, products[1].Stock)
}

func TestImportService_MalformedFileAppliesNothing(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty", body: ""},
		{name: "no name column", body: "title,stock\nWidget,1\n"},
		{name: "broken quoting", body: "name,stock\nWidget,1\n\"Gadget,2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			summary, err := env.imports.Import(bg, strings.NewReader(tt.body), domain.ImportOptions{})
			assert.ErrorIs(t, err, domain.ErrMalformedInput)
			assert.Nil(t, summary)

			products, err := env.queries.Search(bg, domain.ProductFilter{})
			require.NoError(t, err)
			assert.Empty(t, products)
			assert.Empty(t, env.store.Outbox().Events())
		})
	}
}

func TestImportService_MergeMode(t *testing.T) {
	env := newTestEnv(t)

	existing, err := env.products.CreateProduct(bg, domain.ProductFields{Name: "Widget", Brand: "Acme", Stock: 10})
	require.NoError(t, err)

	body := "name,brand,category,stock\nWidget,Acme,Tools,5\nwidget,ACME,,2\nGadget,,,1\n"
	summary := importString(t, env, body, domain.ImportOptions{Mode: domain.ImportModeMerge, Actor: "Warehouse"})

	assert.Equal(t, 1, summary.Added)
	assert.Equal(t, 2, summary.Merged)
	require.Len(t, summary.Duplicates, 2)
	for _, d := range summary.Duplicates {
		assert.Equal(t, domain.DuplicateMerged, d.Reason)
		assert.Equal(t, existing.ID, d.ProductID)
	}

	got, err := env.products.GetProduct(bg, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(17), got.Stock)
	assert.Equal(t, "Tools", got.Category)

	history, err := env.products.History(bg, existing.ID, domain.OldestFirst)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(10), history[0].OldStock)
	assert.Equal(t, int64(15), history[0].NewStock)
	assert.Equal(t, int64(15), history[1].OldStock)
	assert.Equal(t, int64(17), history[1].NewStock)
	assert.Equal(t, "Warehouse", history[0].ChangedBy)
}

func TestImportService_MergeOverflowSkipsRow(t *testing.T) {
	env := newTestEnv(t)

	body := "name,brand,stock\nWidget,Acme,9223372036854775807\n"
	importString(t, env, body, domain.ImportOptions{})

	summary := importString(t, env, body+"Gadget,,3\n", domain.ImportOptions{Mode: domain.ImportModeMerge})
	assert.Equal(t, 1, summary.Added)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Merged)
	assert.Empty(t, summary.Duplicates)

	widget, err := env.queries.Search(bg, domain.ProductFilter{Name: "Widget"})
	require.NoError(t, err)
	require.Len(t, widget, 1)
	assert.Equal(t, int64(math.MaxInt64), widget[0].Stock)
	assert.Equal(t, domain.StatusInStock, widget[0].Status())

	history, err := env.products.History(bg, widget[0].ID, domain.NewestFirst)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = env.products.MergeProduct(bg, widget[0].ID, domain.ProductFields{Name: "Widget", Stock: 1}, "Warehouse")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestImportService_MergeUsesDefaultActor(t *testing.T) {
	env := newTestEnv(t)

	existing, err := env.products.CreateProduct(bg, domain.ProductFields{Name: "Widget", Stock: 1})
	require.NoError(t, err)

	importString(t, env, "name,stock\nWidget,4\n", domain.ImportOptions{Mode: domain.ImportModeMerge})

	history, err := env.products.History(bg, existing.ID, domain.NewestFirst)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, DefaultImportActor, history[0].ChangedBy)
}

func TestImportService_ExportRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	importString(t, env, catalogCSV, domain.ImportOptions{})

	var buf bytes.Buffer
	require.NoError(t, env.queries.Export(bg, &buf))

	fresh := newTestEnv(t)
	summary := importString(t, fresh, buf.String(), domain.ImportOptions{})
	assert.Equal(t, 3, summary.Added)

	original, err := env.queries.Search(bg, domain.ProductFilter{})
	require.NoError(t, err)
	copied, err := fresh.queries.Search(bg, domain.ProductFilter{})
	require.NoError(t, err)

	require.Len(t, copied, len(original))
	for i := range original {
		assert.Equal(t, original[i].Name, copied[i].Name)
		assert.Equal(t, original[i].Brand, copied[i].Brand)
		assert.Equal(t, original[i].Category, copied[i].Category)
		assert.Equal(t, original[i].Unit, copied[i].Unit)
		assert.Equal(t, original[i].Stock, copied[i].Stock)
		assert.Equal(t, original[i].Image, copied[i].Image)
	}
}

func TestImportService_CancelledContextReturnsPartialSummary(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithCancel(bg)
	records := []domain.RawProductRecord{
		{Line: 2, Name: "First", Stock: "1"},
		{Line: 3, Name: "Second", Stock: "1"},
	}

	cancel()

	summary, err := env.imports.Reconcile(ctx, records, domain.ImportOptions{})
	require.Error(t, err)
	if summary != nil {
		assert.Zero(t, summary.Added)
	}
}

func TestQueryService_SearchAndCategories(t *testing.T) {
	env := newTestEnv(t)
	importString(t, env, catalogCSV, domain.ImportOptions{})

	cats, err := env.queries.Categories(bg)
	require.NoError(t, err)
	assert.Equal(t, []string{"Beverages", "Snacks"}, cats)

	hits, err := env.queries.Search(bg, domain.ProductFilter{Name: "cola"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Diet Cola", hits[0].Name)

	hits, err = env.queries.Search(bg, domain.ProductFilter{Name: " "})
	require.NoError(t, err)
	require.Len(t, hits, 1, "a blank pattern is still a substring to match")
	assert.Equal(t, "Diet Cola", hits[0].Name)

	hits, err = env.queries.Search(bg, domain.ProductFilter{Category: "Beverages"})
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = env.queries.Search(bg, domain.ProductFilter{Category: "Beverages "})
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = env.queries.Search(bg, domain.ProductFilter{Category: "beverages"})
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = env.queries.Search(bg, domain.ProductFilter{Limit: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	empty := newTestEnv(t)
	cats, err = empty.queries.Categories(bg)
	require.NoError(t, err)
	assert.NotNil(t, cats)
	assert.Empty(t, cats)
}
