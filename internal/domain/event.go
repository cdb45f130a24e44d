package domain

import "time"

const (
	EventProductCreated  = "ProductCreated"
	EventStockChanged    = "StockChanged"
	EventProductDeleted  = "ProductDeleted"
	EventCatalogImported = "CatalogImported"
	EventStockAdjusted   = "StockAdjusted"

	AggregateProduct = "Product"
	AggregateCatalog = "Catalog"
)

type ProductCreatedEvent struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Brand     string `json:"brand"`
	Stock     int64  `json:"stock"`
}

type StockChangedEvent struct {
	ProductID int64     `json:"product_id"`
	HistoryID int64     `json:"history_id"`
	ChangedBy string    `json:"changed_by"`
	OldStock  int64     `json:"old_stock"`
	NewStock  int64     `json:"new_stock"`
	ChangedAt time.Time `json:"changed_at"`
}

type ProductDeletedEvent struct {
	ProductID     int64     `json:"product_id"`
	FinalStock    int64     `json:"final_stock"`
	PurgedHistory int64     `json:"purged_history"`
	DeletedAt     time.Time `json:"deleted_at"`
}

type CatalogImportedEvent struct {
	ImportID   string    `json:"import_id"`
	Mode       string    `json:"mode"`
	Actor      string    `json:"actor"`
	Added      int       `json:"added"`
	Skipped    int       `json:"skipped"`
	Duplicates int       `json:"duplicates"`
	Merged     int       `json:"merged"`
	ImportedAt time.Time `json:"imported_at"`
}

// StockAdjustedEvent arrives from warehouse systems and sets an absolute stock.
type StockAdjustedEvent struct {
	ProductID int64  `json:"product_id"`
	Stock     int64  `json:"stock"`
	ChangedBy string `json:"changed_by"`
}
