package service

import (
	"context"
	"fmt"
	"io"

	"github.com/sakashimaa/inventory-audit/internal/csvcodec"
	"github.com/sakashimaa/inventory-audit/internal/domain"
	"github.com/sakashimaa/inventory-audit/internal/repository"
	"github.com/sakashimaa/inventory-audit/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// QueryService reads the catalog. It never writes and never takes product
// locks; each call sees the committed state.
type QueryService interface {
	Search(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	Categories(ctx context.Context) ([]string, error)
	// Export writes the whole catalog as CSV to w.
	Export(ctx context.Context, w io.Writer) error
}

type queryService struct {
	productRepo repository.ProductRepository
	logger      *zap.Logger
	tracer      trace.Tracer
}

func NewQueryService(productRepo repository.ProductRepository, logger *zap.Logger) QueryService {
	return &queryService{
		productRepo: productRepo,
		logger:      logger,
		tracer:      otel.Tracer("service/query"),
	}
}

func (s *queryService) Search(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "QueryService.Search")
	defer span.End()

	span.SetAttributes(
		attribute.String("name", filter.Name),
		attribute.String("category", filter.Category),
	)

	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", domain.ErrInvalidInput)
	}

	products, err := s.productRepo.List(ctx, filter)
	if err != nil {
		mylogger.Error(ctx, s.logger, "error searching products", zap.Error(err))
		return nil, fmt.Errorf("error searching products: %w", err)
	}

	return products, nil
}

func (s *queryService) Categories(ctx context.Context) ([]string, error) {
	categories, err := s.productRepo.Categories(ctx)
	if err != nil {
		mylogger.Error(ctx, s.logger, "error listing categories", zap.Error(err))
		return nil, fmt.Errorf("error listing categories: %w", err)
	}

	if categories == nil {
		categories = []string{}
	}

	return categories, nil
}

func (s *queryService) Export(ctx context.Context, w io.Writer) error {
	ctx, span := s.tracer.Start(ctx, "QueryService.Export")
	defer span.End()

	products, err := s.productRepo.List(ctx, domain.ProductFilter{})
	if err != nil {
		mylogger.Error(ctx, s.logger, "error reading catalog for export", zap.Error(err))
		return fmt.Errorf("error reading catalog: %w", err)
	}

	span.SetAttributes(attribute.Int("products", len(products)))

	if err := csvcodec.WriteProducts(w, products); err != nil {
		mylogger.Error(ctx, s.logger, "error writing export", zap.Error(err))
		return err
	}

	mylogger.Info(ctx, s.logger, "catalog exported", zap.Int("products", len(products)))
	return nil
}
