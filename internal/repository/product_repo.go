package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/inventory-audit/internal/domain"
	"github.com/sakashimaa/inventory-audit/pkg/db"
	"github.com/sakashimaa/inventory-audit/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const productColumns = `id, name, category, brand, unit, stock, image, created_at, updated_at`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type productRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewProductRepository(pool *pgxpool.Pool, logger *zap.Logger) ProductRepository {
	return &productRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("contract/product_repo"),
	}
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Category,
		&p.Brand,
		&p.Unit,
		&p.Stock,
		&p.Image,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *productRepo) Create(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("name", product.Name),
	)

	query := `
		INSERT INTO products (name, category, brand, unit, stock, image)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + productColumns

	created, err := scanProduct(db.Conn(ctx, r.pool).QueryRow(
		ctx,
		query,
		product.Name,
		product.Category,
		product.Brand,
		product.Unit,
		product.Stock,
		product.Image,
	))
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error creating product",
			zap.Error(err),
		)

		return nil, fmt.Errorf("error creating product: %w", err)
	}

	return created, nil
}

func (r *productRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	return r.get(ctx, "ProductRepository.GetByID", id, "")
}

func (r *productRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Product, error) {
	return r.get(ctx, "ProductRepository.GetForUpdate", id, " FOR UPDATE")
}

func (r *productRepo) get(ctx context.Context, spanName string, id int64, suffix string) (*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, spanName)
	defer span.End()

	span.SetAttributes(
		attribute.Int64("id", id),
	)

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1` + suffix

	res, err := scanProduct(db.Conn(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error get by id",
			zap.Int64("id", id),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error getting product: %w", err)
	}

	return res, nil
}

func (r *productRepo) Update(ctx context.Context, id int64, input *domain.UpdateProductInput) (*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Update")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("id", id),
	)

	if input.IsEmpty() {
		return r.GetByID(ctx, id)
	}

	var updates []string
	var args []interface{}
	argId := 1

	set := func(column string, value interface{}) {
		updates = append(updates, fmt.Sprintf("%s = $%d", column, argId))
		args = append(args, value)
		argId++
	}

	if input.Name != nil {
		set("name", *input.Name)
	}
	if input.Category != nil {
		set("category", *input.Category)
	}
	if input.Brand != nil {
		set("brand", *input.Brand)
	}
	if input.Unit != nil {
		set("unit", *input.Unit)
	}
	if input.Stock != nil {
		set("stock", *input.Stock)
	}
	if input.Image != nil {
		set("image", *input.Image)
	}

	updates = append(updates, "updated_at = NOW()")

	query := fmt.Sprintf(
		"UPDATE products SET %s WHERE id = $%d RETURNING %s",
		strings.Join(updates, ", "),
		argId,
		productColumns,
	)
	args = append(args, id)

	updated, err := scanProduct(db.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to update product",
			zap.Int64("id", id),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error updating product: %w", err)
	}

	return updated, nil
}

func (r *productRepo) DeleteByID(ctx context.Context, id int64) (*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.DeleteByID")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("id", id),
	)

	query := `DELETE FROM products WHERE id = $1 RETURNING ` + productColumns

	deleted, err := scanProduct(db.Conn(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error deleting product by id",
			zap.Int64("id", id),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error deleting product by id: %w", err)
	}

	return deleted, nil
}

func (r *productRepo) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.List")
	defer span.End()

	span.SetAttributes(
		attribute.String("name", filter.Name),
		attribute.String("category", filter.Category),
		attribute.Int("limit", filter.Limit),
		attribute.Int("offset", filter.Offset),
	)

	query := `SELECT ` + productColumns + ` FROM products WHERE TRUE`

	var args []interface{}
	argId := 1

	if filter.Name != "" {
		query += fmt.Sprintf(" AND name ILIKE $%d", argId)
		args = append(args, "%"+likeEscaper.Replace(filter.Name)+"%")
		argId++
	}

	if filter.Category != "" {
		query += fmt.Sprintf(" AND category = $%d", argId)
		args = append(args, filter.Category)
		argId++
	}

	query += " ORDER BY id ASC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argId)
		args = append(args, filter.Limit)
		argId++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argId)
		args = append(args, filter.Offset)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error listing products",
			zap.String("name", filter.Name),
			zap.String("category", filter.Category),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error selecting products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			span.RecordError(err)

			mylogger.Error(ctx, r.logger, "Failed to scan rows", zap.Error(err))

			return nil, fmt.Errorf("error scanning rows: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)

		mylogger.Error(ctx, r.logger, "Rows iteration error", zap.Error(err))

		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	span.SetAttributes(attribute.Int("result_count", len(products)))

	return products, nil
}

func (r *productRepo) FindByIdentity(ctx context.Context, name, brand string) (*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.FindByIdentity")
	defer span.End()

	span.SetAttributes(
		attribute.String("name", name),
		attribute.String("brand", brand),
	)

	query := `SELECT ` + productColumns + `
		FROM products
		WHERE lower(btrim(name)) = lower(btrim($1)) AND lower(btrim(brand)) = lower(btrim($2))
		ORDER BY id ASC
		LIMIT 1`

	res, err := scanProduct(db.Conn(ctx, r.pool).QueryRow(ctx, query, name, brand))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error finding product by identity",
			zap.String("name", name),
			zap.String("brand", brand),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error finding product by identity: %w", err)
	}

	return res, nil
}

func (r *productRepo) Categories(ctx context.Context) ([]string, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Categories")
	defer span.End()

	query := `
		SELECT DISTINCT category
		FROM products
		WHERE category <> ''
		ORDER BY category
	`

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(ctx, r.logger, "Error selecting categories", zap.Error(err))

		return nil, fmt.Errorf("error selecting categories: %w", err)
	}

	categories, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error collecting categories: %w", err)
	}

	return categories, nil
}
