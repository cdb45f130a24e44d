package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/inventory-audit/internal/domain"
	"github.com/sakashimaa/inventory-audit/pkg/db"
	"github.com/sakashimaa/inventory-audit/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type historyRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewHistoryRepository(pool *pgxpool.Pool, logger *zap.Logger) HistoryRepository {
	return &historyRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("contract/history_repo"),
	}
}

func (r *historyRepo) Append(ctx context.Context, entry *domain.HistoryEntry) (*domain.HistoryEntry, error) {
	ctx, span := r.tracer.Start(ctx, "HistoryRepository.Append")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("product_id", entry.ProductID),
		attribute.Int64("old_stock", entry.OldStock),
		attribute.Int64("new_stock", entry.NewStock),
	)

	query := `
		INSERT INTO product_history (product_id, changed_by, old_stock, new_stock, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	res := *entry
	err := db.Conn(ctx, r.pool).QueryRow(
		ctx,
		query,
		entry.ProductID,
		entry.ChangedBy,
		entry.OldStock,
		entry.NewStock,
		entry.Timestamp,
	).Scan(&res.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return nil, ErrProductNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error appending history entry",
			zap.Int64("product_id", entry.ProductID),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error appending history entry: %w", err)
	}

	return &res, nil
}

func (r *historyRepo) ListByProduct(ctx context.Context, productID int64, order domain.SortOrder) ([]domain.HistoryEntry, error) {
	ctx, span := r.tracer.Start(ctx, "HistoryRepository.ListByProduct")
	defer span.End()

	direction := "DESC"
	if order == domain.OldestFirst {
		direction = "ASC"
	}

	span.SetAttributes(
		attribute.Int64("product_id", productID),
		attribute.String("order", direction),
	)

	query := `
		SELECT id, product_id, changed_by, old_stock, new_stock, created_at
		FROM product_history
		WHERE product_id = $1
		ORDER BY id ` + direction

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, productID)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error listing history",
			zap.Int64("product_id", productID),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error selecting history: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.HistoryEntry, error) {
		var e domain.HistoryEntry
		err := row.Scan(&e.ID, &e.ProductID, &e.ChangedBy, &e.OldStock, &e.NewStock, &e.Timestamp)
		return e, err
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error scanning history: %w", err)
	}

	return entries, nil
}

func (r *historyRepo) CountByProduct(ctx context.Context, productID int64) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "HistoryRepository.CountByProduct")
	defer span.End()

	var count int64
	query := `SELECT COUNT(*) FROM product_history WHERE product_id = $1`
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, query, productID).Scan(&count); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("error counting history: %w", err)
	}

	return count, nil
}
