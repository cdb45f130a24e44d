package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sakashimaa/inventory-audit/internal/csvcodec"
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

const DefaultImportActor = "import"

type ImportService interface {
	// Import reads a CSV file and reconciles it into the catalog. A file that
	// cannot be parsed fails with domain.ErrMalformedInput before any row is
	// applied.
	Import(ctx context.Context, r io.Reader, opts domain.ImportOptions) (*domain.ImportSummary, error)
	// Reconcile applies already parsed rows in order. When it fails halfway
	// the summary of the rows applied so far is returned with the error.
	Reconcile(ctx context.Context, records []domain.RawProductRecord, opts domain.ImportOptions) (*domain.ImportSummary, error)
}

type ImportDependencies struct {
	Products ProductService
	Catalog  repository.ProductRepository
	Outbox   OutboxWriter
	Tx       db.Transactor
	Locker   lock.Locker
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	// DefaultActor is attributed to merged stock when the caller names nobody.
	DefaultActor string
	EventsTopic  string
	Now          func() time.Time
}

type importService struct {
	products     ProductService
	catalog      repository.ProductRepository
	events       eventWriter
	tx           db.Transactor
	locker       lock.Locker
	metrics      *metrics.Metrics
	logger       *zap.Logger
	tracer       trace.Tracer
	defaultActor string
	now          func() time.Time
}

func NewImportService(deps ImportDependencies) ImportService {
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	actor := strings.TrimSpace(deps.DefaultActor)
	if actor == "" {
		actor = DefaultImportActor
	}

	return &importService{
		products:     deps.Products,
		catalog:      deps.Catalog,
		events:       eventWriter{outbox: deps.Outbox, topic: deps.EventsTopic},
		tx:           deps.Tx,
		locker:       deps.Locker,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		tracer:       otel.Tracer("service/import"),
		defaultActor: actor,
		now:          now,
	}
}

func (s *importService) Import(ctx context.Context, r io.Reader, opts domain.ImportOptions) (*domain.ImportSummary, error) {
	records, err := csvcodec.ReadProducts(r)
	if err != nil {
		mylogger.Warn(ctx, s.logger, "rejected import file", zap.String("import_id", opts.ID), zap.Error(err))
		return nil, err
	}

	return s.Reconcile(ctx, records, opts)
}

func (s *importService) Reconcile(ctx context.Context, records []domain.RawProductRecord, opts domain.ImportOptions) (*domain.ImportSummary, error) {
	opts = s.withDefaults(opts)

	ctx, span := s.tracer.Start(ctx, "ImportService.Reconcile")
	defer span.End()

	span.SetAttributes(
		attribute.String("import_id", opts.ID),
		attribute.String("mode", string(opts.Mode)),
		attribute.Int("records", len(records)),
	)

	unlock, err := s.locker.Lock(ctx, lock.ImportKey)
	if err != nil {
		return nil, err
	}
	defer unlock()

	mylogger.Info(
		ctx,
		s.logger,
		"import started",
		zap.String("import_id", opts.ID),
		zap.String("mode", string(opts.Mode)),
		zap.Int("records", len(records)),
	)

	run := &importRun{
		importService: s,
		opts:          opts,
		summary:       domain.NewImportSummary(),
		seen:          make(map[string]int64, len(records)),
	}

	for i := range records {
		if err := run.apply(ctx, &records[i]); err != nil {
			span.RecordError(err)
			s.metrics.ImportFinished(run.summary)
			mylogger.Error(
				ctx,
				s.logger,
				"import aborted",
				zap.String("import_id", opts.ID),
				zap.Int("line", records[i].Line),
				zap.Int("added", run.summary.Added),
				zap.Int("skipped", run.summary.Skipped),
				zap.Error(err),
			)
			return run.summary, fmt.Errorf("import stopped at line %d: %w", records[i].Line, err)
		}
	}

	summary := run.summary
	s.metrics.ImportFinished(summary)

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.events.save(ctx, domain.AggregateCatalog, opts.ID, domain.EventCatalogImported, domain.CatalogImportedEvent{
			ImportID:   opts.ID,
			Mode:       string(opts.Mode),
			Actor:      opts.Actor,
			Added:      summary.Added,
			Skipped:    summary.Skipped,
			Duplicates: len(summary.Duplicates),
			Merged:     summary.Merged,
			ImportedAt: s.now(),
		})
	})
	if err != nil {
		// The catalog changes are already committed; only the notification is lost.
		mylogger.Error(ctx, s.logger, "failed to record import event", zap.String("import_id", opts.ID), zap.Error(err))
	}

	mylogger.Info(
		ctx,
		s.logger,
		"import finished",
		zap.String("import_id", opts.ID),
		zap.Int("added", summary.Added),
		zap.Int("skipped", summary.Skipped),
		zap.Int("duplicates", len(summary.Duplicates)),
		zap.Int("merged", summary.Merged),
	)

	return summary, nil
}

func (s *importService) withDefaults(opts domain.ImportOptions) domain.ImportOptions {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Mode == "" {
		opts.Mode = domain.ImportModeSkip
	}
	opts.Actor = strings.TrimSpace(opts.Actor)
	if opts.Actor == "" {
		opts.Actor = s.defaultActor
	}

	return opts
}

// importRun carries the state of one reconciliation. seen maps identity keys
// to the product that first claimed them in this run, whether it existed
// before or was created by an earlier row.
type importRun struct {
	*importService
	opts    domain.ImportOptions
	summary *domain.ImportSummary
	seen    map[string]int64
}

func (r *importRun) apply(ctx context.Context, raw *domain.RawProductRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rec, err := raw.Parse()
	if err != nil {
		r.skip(ctx, raw.Line, err)
		return nil
	}

	key := rec.IdentityKey()

	if id, ok := r.seen[key]; ok {
		return r.duplicate(ctx, rec, id, domain.DuplicateRepeated)
	}

	existing, err := r.catalog.FindByIdentity(ctx, rec.Name, rec.Brand)
	switch {
	case err == nil:
		r.seen[key] = existing.ID
		return r.duplicate(ctx, rec, existing.ID, domain.DuplicateExists)
	case errors.Is(err, domain.ErrNotFound):
		return r.create(ctx, rec)
	default:
		return err
	}
}

func (r *importRun) create(ctx context.Context, rec domain.ImportRecord) error {
	created, err := r.products.CreateProduct(ctx, rec.Fields())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			r.skip(ctx, rec.Line, err)
			return nil
		}
		return err
	}

	r.seen[rec.IdentityKey()] = created.ID
	r.summary.Added++

	return nil
}

func (r *importRun) duplicate(ctx context.Context, rec domain.ImportRecord, productID int64, reason domain.DuplicateReason) error {
	if r.opts.Mode != domain.ImportModeMerge {
		r.summary.Duplicates = append(r.summary.Duplicates, domain.DuplicateRecord{
			ImportRecord: rec,
			Reason:       reason,
			ProductID:    productID,
		})
		return nil
	}

	_, err := r.products.MergeProduct(ctx, productID, rec.Fields(), r.opts.Actor)
	if errors.Is(err, domain.ErrNotFound) {
		// Deleted since it was matched; the row names a product that no
		// longer exists, so it is added like any new row.
		mylogger.Warn(ctx, r.logger, "merge target vanished", zap.Int64("product_id", productID), zap.Int("line", rec.Line))
		delete(r.seen, rec.IdentityKey())
		return r.create(ctx, rec)
	}
	if errors.Is(err, domain.ErrInvalidInput) {
		r.skip(ctx, rec.Line, err)
		return nil
	}
	if err != nil {
		return err
	}

	r.summary.Merged++
	r.summary.Duplicates = append(r.summary.Duplicates, domain.DuplicateRecord{
		ImportRecord: rec,
		Reason:       domain.DuplicateMerged,
		ProductID:    productID,
	})

	return nil
}

func (r *importRun) skip(ctx context.Context, line int, reason error) {
	r.summary.Skipped++
	mylogger.Debug(ctx, r.logger, "import row skipped", zap.String("import_id", r.opts.ID), zap.Int("line", line), zap.Error(reason))
}
