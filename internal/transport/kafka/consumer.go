package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/sakashimaa/inventory-audit/internal/domain"
	"github.com/sakashimaa/inventory-audit/internal/service"
	eventDomain "github.com/sakashimaa/inventory-audit/pkg/domain"
	"github.com/sakashimaa/inventory-audit/pkg/kafka"
	"github.com/sakashimaa/inventory-audit/pkg/mylogger"
	"go.uber.org/zap"
)

// Deduplicator runs action once per event id and reports whether it ran.
type Deduplicator func(ctx context.Context, eventID int64, action func(ctx context.Context) error) (bool, error)

// Consumer applies stock adjustments published by warehouse systems. Each
// adjustment goes through the same update path as an edit from the UI, so it
// lands in the audit ledger attributed to the message's changed_by.
type Consumer struct {
	service service.ProductService
	dedup   Deduplicator
	logger  *zap.Logger
}

func NewConsumer(service service.ProductService, dedup Deduplicator, logger *zap.Logger) *Consumer {
	return &Consumer{
		service: service,
		dedup:   dedup,
		logger:  logger,
	}
}

func (c *Consumer) Start(ctx context.Context, brokers []string, groupID string, topics []string) error {
	consumerGroup := kafka.NewConsumerGroup(
		brokers,
		groupID,
		topics,
		c.processMessage,
		c.logger,
	)

	return consumerGroup.Run(ctx)
}

func (c *Consumer) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	mylogger.Debug(
		ctx,
		c.logger,
		"Processing message",
		zap.String("topic", msg.Topic),
	)

	var envelope eventDomain.Envelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		// A message that can never be decoded would block the partition.
		mylogger.Error(ctx, c.logger, "Dropping undecodable message", zap.Int64("offset", msg.Offset), zap.Error(err))
		return nil
	}

	switch envelope.Event {
	case domain.EventStockAdjusted:
		var event domain.StockAdjustedEvent
		if err := envelope.Decode(&event); err != nil {
			mylogger.Error(ctx, c.logger, "Dropping malformed stock adjustment", zap.Error(err))
			return nil
		}

		return c.handleStockAdjusted(ctx, envelope.EventID, &event)
	default:
		mylogger.Warn(ctx, c.logger, "Ignored event type", zap.String("event_type", envelope.Event))
	}

	return nil
}

func (c *Consumer) handleStockAdjusted(ctx context.Context, eventID int64, event *domain.StockAdjustedEvent) error {
	action := func(ctx context.Context) error {
		stock := event.Stock
		_, err := c.service.UpdateProduct(ctx, event.ProductID, domain.UpdateProductInput{Stock: &stock}, event.ChangedBy)
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidInput) {
			// Retrying cannot fix these; acknowledge and move on.
			mylogger.Warn(
				ctx,
				c.logger,
				"Rejected stock adjustment",
				zap.Int64("event_id", eventID),
				zap.Int64("product_id", event.ProductID),
				zap.Error(err),
			)
			return nil
		}
		return err
	}

	if eventID == 0 || c.dedup == nil {
		mylogger.Warn(ctx, c.logger, "Stock adjustment without dedup", zap.Int64("product_id", event.ProductID))
		return action(ctx)
	}

	processed, err := c.dedup(ctx, eventID, action)
	if err != nil {
		return fmt.Errorf("stock adjustment %d: %w", eventID, err)
	}

	if processed {
		mylogger.Info(
			ctx,
			c.logger,
			"Stock adjustment applied",
			zap.Int64("event_id", eventID),
			zap.Int64("product_id", event.ProductID),
			zap.Int64("stock", event.Stock),
		)
	}

	return nil
}
