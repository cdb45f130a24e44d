package repository

import (
	"context"

	"github.com/sakashimaa/inventory-audit/internal/domain"
)

// ProductRepository is the Catalog Store. Calls made with a ctx obtained from
// db.Transactor.WithinTx join that transaction.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) (*domain.Product, error)
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	// GetForUpdate reads the row and holds it until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*domain.Product, error)
	// Update applies the non-nil fields and returns the row as stored.
	Update(ctx context.Context, id int64, input *domain.UpdateProductInput) (*domain.Product, error)
	// DeleteByID removes the row and its history and returns the removed row.
	DeleteByID(ctx context.Context, id int64) (*domain.Product, error)
	List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	// FindByIdentity returns the oldest product with the same identity key.
	FindByIdentity(ctx context.Context, name, brand string) (*domain.Product, error)
	Categories(ctx context.Context) ([]string, error)
}

// HistoryRepository is the Audit Ledger. It has no update or delete path;
// entries disappear only together with their product.
type HistoryRepository interface {
	Append(ctx context.Context, entry *domain.HistoryEntry) (*domain.HistoryEntry, error)
	ListByProduct(ctx context.Context, productID int64, order domain.SortOrder) ([]domain.HistoryEntry, error)
	CountByProduct(ctx context.Context, productID int64) (int64, error)
}
