package service

import (
	"context"
	"fmt"
	"strconv"

	outboxDomain "github.com/sakashimaa/inventory-audit/pkg/outbox/domain"
)

type OutboxWriter interface {
	SaveOutboxEvent(ctx context.Context, event *outboxDomain.OutboxEvent) error
}

type eventWriter struct {
	outbox OutboxWriter
	topic  string
}

// save writes the event into the outbox. Called inside a unit of work it
// commits or rolls back together with the state change it describes.
func (w eventWriter) save(ctx context.Context, aggregateType, aggregateID, eventType string, payload any) error {
	if w.outbox == nil {
		return nil
	}

	event, err := outboxDomain.NewOutboxEvent(w.topic, aggregateType, aggregateID, eventType, payload)
	if err != nil {
		return err
	}

	if err := w.outbox.SaveOutboxEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}

	return nil
}

func productAggregateID(id int64) string {
	return strconv.FormatInt(id, 10)
}
