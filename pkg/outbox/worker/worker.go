package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sakashimaa/inventory-audit/pkg/db"
	"github.com/sakashimaa/inventory-audit/pkg/mylogger"
	"github.com/sakashimaa/inventory-audit/pkg/outbox/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type OutboxRepository interface {
	SaveOutboxEvent(ctx context.Context, event *domain.OutboxEvent) error
	GetUnpublishedEvents(ctx context.Context, batchSize int) ([]*domain.OutboxEvent, error)
	MarkEventPublished(ctx context.Context, eventID int64) error
	MarkEventFailed(ctx context.Context, eventID int64, errMsg string) error
}

type KafkaProducer interface {
	ProduceMessage(ctx context.Context, topic, key string, message interface{}) error
}

type Options struct {
	BatchSize int
	Interval  time.Duration
}

type OutboxProcessor struct {
	tx            db.Transactor
	repo          OutboxRepository
	kafkaProducer KafkaProducer
	logger        *zap.Logger
	batchSize     int
	interval      time.Duration
	tracer        trace.Tracer
}

func NewOutboxProcessor(
	tx db.Transactor,
	repo OutboxRepository,
	producer KafkaProducer,
	logger *zap.Logger,
	opts Options,
) *OutboxProcessor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.Interval <= 0 {
		opts.Interval = 500 * time.Millisecond
	}

	return &OutboxProcessor{
		tx:            tx,
		repo:          repo,
		kafkaProducer: producer,
		logger:        logger,
		batchSize:     opts.BatchSize,
		interval:      opts.Interval,
		tracer:        otel.Tracer("outbox-worker"),
	}
}

// Start polls until ctx is cancelled.
func (p *OutboxProcessor) Start(ctx context.Context) {
	mylogger.Info(ctx, p.logger, "Starting outbox processor", zap.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mylogger.Info(ctx, p.logger, "Outbox processor stopping")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
				mylogger.Error(ctx, p.logger, "Error processing outbox batch", zap.Error(err))
			}
		}
	}
}

// ProcessBatch publishes up to one batch and returns how many events were
// published. Rows stay locked (SKIP LOCKED) until the batch commits, so
// several workers can share the table.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	ctx, span := p.tracer.Start(ctx, "OutboxProcessor.ProcessBatch")
	defer span.End()

	published := 0
	err := p.tx.WithinTx(ctx, func(ctx context.Context) error {
		events, err := p.repo.GetUnpublishedEvents(ctx, p.batchSize)
		if err != nil {
			return err
		}

		if len(events) == 0 {
			return nil
		}

		mylogger.Debug(ctx, p.logger, "Processing outbox events", zap.Int("count", len(events)))

		for _, event := range events {
			if err := p.publish(ctx, event); err != nil {
				mylogger.Warn(
					ctx,
					p.logger,
					"outbox worker produce message failed",
					zap.Int64("id", event.ID),
					zap.String("event_type", event.EventType),
					zap.Error(err),
				)

				if dbErr := p.repo.MarkEventFailed(ctx, event.ID, err.Error()); dbErr != nil {
					return fmt.Errorf("error marking event %d failed: %w", event.ID, dbErr)
				}
				continue
			}

			if err := p.repo.MarkEventPublished(ctx, event.ID); err != nil {
				return fmt.Errorf("error marking event %d published: %w", event.ID, err)
			}
			published++
		}

		return nil
	})

	span.SetAttributes(attribute.Int("published", published))
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	return published, nil
}

func (p *OutboxProcessor) publish(ctx context.Context, event *domain.OutboxEvent) error {
	var payloadMap map[string]any
	if err := json.Unmarshal(event.Payload, &payloadMap); err != nil {
		return fmt.Errorf("unmarshal event payload: %w", err)
	}

	payloadMap["event_id"] = event.ID

	return p.kafkaProducer.ProduceMessage(ctx, event.Topic, event.AggregateID, payloadMap)
}
