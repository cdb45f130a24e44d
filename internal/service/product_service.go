package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sakashimaa/inventory-audit/internal/domain"
	"github.com/sakashimaa/inventory-audit/internal/lock"
	"github.com/sakashimaa/inventory-audit/internal/metrics"
	"github.com/sakashimaa/inventory-audit/internal/repository"
	"github.com/sakashimaa/inventory-audit/pkg/db"
	"github.com/sakashimaa/inventory-audit/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ProductService is the single entry point for catalog mutations.
type ProductService interface {
	CreateProduct(ctx context.Context, fields domain.ProductFields) (*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	// UpdateProduct applies the supplied fields and, when stock changes,
	// appends one history entry attributed to actor in the same unit of work.
	UpdateProduct(ctx context.Context, id int64, input domain.UpdateProductInput, actor string) (*domain.Product, error)
	// MergeProduct adds incoming.Stock to the product's stock and fills its
	// empty category and image from incoming.
	MergeProduct(ctx context.Context, id int64, incoming domain.ProductFields, actor string) (*domain.Product, error)
	// DeleteProduct removes the product together with its history.
	DeleteProduct(ctx context.Context, id int64) error
	History(ctx context.Context, id int64, order domain.SortOrder) ([]domain.HistoryEntry, error)
}

type Dependencies struct {
	Products    repository.ProductRepository
	History     repository.HistoryRepository
	Outbox      OutboxWriter
	Tx          db.Transactor
	Locker      lock.Locker
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
	EventsTopic string
	// Now stamps history entries; defaults to time.Now in UTC.
	Now func() time.Time
}

type productService struct {
	productRepo repository.ProductRepository
	historyRepo repository.HistoryRepository
	events      eventWriter
	tx          db.Transactor
	locker      lock.Locker
	metrics     *metrics.Metrics
	logger      *zap.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

func NewProductService(deps Dependencies) ProductService {
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &productService{
		productRepo: deps.Products,
		historyRepo: deps.History,
		events:      eventWriter{outbox: deps.Outbox, topic: deps.EventsTopic},
		tx:          deps.Tx,
		locker:      deps.Locker,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		tracer:      otel.Tracer("service/product"),
		now:         now,
	}
}

func (s *productService) CreateProduct(ctx context.Context, fields domain.ProductFields) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.CreateProduct")
	defer span.End()

	fields.Normalize()
	if err := fields.Validate(); err != nil {
		mylogger.Warn(ctx, s.logger, "invalid product", zap.Error(err))
		return nil, err
	}

	var created *domain.Product
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.productRepo.Create(ctx, fields.Product())
		if err != nil {
			return err
		}

		return s.events.save(ctx, domain.AggregateProduct, productAggregateID(created.ID), domain.EventProductCreated, domain.ProductCreatedEvent{
			ProductID: created.ID,
			Name:      created.Name,
			Brand:     created.Brand,
			Stock:     created.Stock,
		})
	})
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "create product failed", zap.Error(err))
		return nil, fmt.Errorf("error creating product: %w", err)
	}

	span.SetAttributes(attribute.Int64("product_id", created.ID))
	mylogger.Info(ctx, s.logger, "product created", zap.Int64("product_id", created.ID), zap.Int64("stock", created.Stock))

	return created, nil
}

func (s *productService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	res, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			mylogger.Warn(ctx, s.logger, "product not found", zap.Int64("product_id", id))
			return nil, err
		}

		mylogger.Error(ctx, s.logger, "error getting product", zap.Int64("product_id", id), zap.Error(err))
		return nil, fmt.Errorf("error getting product by id: %w", err)
	}

	return res, nil
}

func (s *productService) UpdateProduct(ctx context.Context, id int64, input domain.UpdateProductInput, actor string) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.UpdateProduct")
	defer span.End()

	span.SetAttributes(attribute.Int64("product_id", id), attribute.String("actor", actor))

	input.Normalize()
	if err := input.Validate(); err != nil {
		mylogger.Warn(ctx, s.logger, "invalid product update", zap.Int64("product_id", id), zap.Error(err))
		return nil, err
	}

	if input.Stock != nil && strings.TrimSpace(actor) == "" {
		err := fmt.Errorf("%w: changedBy is required when stock is supplied", domain.ErrInvalidInput)
		mylogger.Warn(ctx, s.logger, "stock update without actor", zap.Int64("product_id", id))
		return nil, err
	}

	return s.mutate(ctx, id, actor, func(*domain.Product) (domain.UpdateProductInput, error) {
		return input, nil
	})
}

func (s *productService) MergeProduct(ctx context.Context, id int64, incoming domain.ProductFields, actor string) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.MergeProduct")
	defer span.End()

	span.SetAttributes(attribute.Int64("product_id", id), attribute.String("actor", actor))

	incoming.Normalize()
	if incoming.Stock < 0 {
		return nil, fmt.Errorf("%w: stock must not be negative", domain.ErrInvalidInput)
	}
	if incoming.Stock != 0 && strings.TrimSpace(actor) == "" {
		return nil, fmt.Errorf("%w: an actor is required to merge stock", domain.ErrInvalidInput)
	}

	return s.mutate(ctx, id, actor, func(current *domain.Product) (domain.UpdateProductInput, error) {
		var input domain.UpdateProductInput

		if incoming.Stock != 0 {
			if incoming.Stock > math.MaxInt64-current.Stock {
				return input, fmt.Errorf("%w: merged stock overflows", domain.ErrInvalidInput)
			}
			stock := current.Stock + incoming.Stock
			input.Stock = &stock
		}
		if current.Category == "" && incoming.Category != "" {
			input.Category = &incoming.Category
		}
		if current.Image == "" && incoming.Image != "" {
			input.Image = &incoming.Image
		}

		return input, nil
	})
}

// mutate is the read-current, write-new, append-history sequence. It holds
// the product's key for its whole duration and runs the writes as one unit,
// so every entry's oldStock is the previous entry's newStock.
func (s *productService) mutate(
	ctx context.Context,
	id int64,
	actor string,
	build func(current *domain.Product) (domain.UpdateProductInput, error),
) (*domain.Product, error) {
	unlock, err := s.locker.Lock(ctx, lock.ProductKey(id))
	if err != nil {
		mylogger.Warn(ctx, s.logger, "failed to acquire product lock", zap.Int64("product_id", id), zap.Error(err))
		return nil, err
	}
	defer unlock()

	var updated *domain.Product
	var entry *domain.HistoryEntry

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.productRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		input, err := build(current)
		if err != nil {
			return err
		}

		next, err := s.productRepo.Update(ctx, id, &input)
		if err != nil {
			return err
		}

		if next.Stock != current.Stock {
			entry, err = s.historyRepo.Append(ctx, &domain.HistoryEntry{
				ProductID: id,
				ChangedBy: actor,
				OldStock:  current.Stock,
				NewStock:  next.Stock,
				Timestamp: s.now(),
			})
			if err != nil {
				return err
			}

			err = s.events.save(ctx, domain.AggregateProduct, productAggregateID(id), domain.EventStockChanged, domain.StockChangedEvent{
				ProductID: id,
				HistoryID: entry.ID,
				ChangedBy: entry.ChangedBy,
				OldStock:  entry.OldStock,
				NewStock:  entry.NewStock,
				ChangedAt: entry.Timestamp,
			})
			if err != nil {
				return err
			}
		}

		updated = next
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			mylogger.Warn(ctx, s.logger, "product not found", zap.Int64("product_id", id))
			return nil, err
		}
		if errors.Is(err, domain.ErrInvalidInput) {
			mylogger.Warn(ctx, s.logger, "update rejected", zap.Int64("product_id", id), zap.Error(err))
			return nil, err
		}

		mylogger.Error(ctx, s.logger, "update product failed", zap.Int64("product_id", id), zap.Error(err))
		return nil, fmt.Errorf("error updating product: %w", err)
	}

	if entry != nil {
		s.metrics.StockChanged()
		mylogger.Info(
			ctx,
			s.logger,
			"stock changed",
			zap.Int64("product_id", id),
			zap.String("changed_by", entry.ChangedBy),
			zap.Int64("old_stock", entry.OldStock),
			zap.Int64("new_stock", entry.NewStock),
		)
	} else {
		mylogger.Debug(ctx, s.logger, "product updated without stock change", zap.Int64("product_id", id))
	}

	return updated, nil
}

func (s *productService) DeleteProduct(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "ProductService.DeleteProduct")
	defer span.End()

	span.SetAttributes(attribute.Int64("product_id", id))

	unlock, err := s.locker.Lock(ctx, lock.ProductKey(id))
	if err != nil {
		return err
	}
	defer unlock()

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		purged, err := s.historyRepo.CountByProduct(ctx, id)
		if err != nil {
			return err
		}

		deleted, err := s.productRepo.DeleteByID(ctx, id)
		if err != nil {
			return err
		}

		return s.events.save(ctx, domain.AggregateProduct, productAggregateID(id), domain.EventProductDeleted, domain.ProductDeletedEvent{
			ProductID:     id,
			FinalStock:    deleted.Stock,
			PurgedHistory: purged,
			DeletedAt:     s.now(),
		})
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			mylogger.Warn(ctx, s.logger, "product not found", zap.Int64("product_id", id))
			return err
		}

		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "error deleting product", zap.Int64("product_id", id), zap.Error(err))
		return fmt.Errorf("error deleting product: %w", err)
	}

	mylogger.Info(ctx, s.logger, "product deleted", zap.Int64("product_id", id))
	return nil
}

func (s *productService) History(ctx context.Context, id int64, order domain.SortOrder) ([]domain.HistoryEntry, error) {
	if _, err := s.GetProduct(ctx, id); err != nil {
		return nil, err
	}

	entries, err := s.historyRepo.ListByProduct(ctx, id, order)
	if err != nil {
		mylogger.Error(ctx, s.logger, "error listing history", zap.Int64("product_id", id), zap.Error(err))
		return nil, fmt.Errorf("error listing history: %w", err)
	}

	return entries, nil
}
