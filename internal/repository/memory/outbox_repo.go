package memory

import (
	"context"

	outboxDomain "github.com/sakashimaa/inventory-audit/pkg/outbox/domain"
)

// eventRetention bounds the in-memory event trail; older events are dropped.
const eventRetention = 1000

// OutboxRepository records events written by the services. Nothing publishes
// them; the most recent ones are kept so that a local run produces the same
// event trail as the postgres backend.
type OutboxRepository struct {
	store *Store
}

func (r *OutboxRepository) SaveOutboxEvent(ctx context.Context, event *outboxDomain.OutboxEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s := r.store
	unlock, record := s.write(ctx)
	defer unlock()

	s.nextEventID++
	event.ID = s.nextEventID
	event.CreatedAt = s.now()

	prev := s.events
	next := append(prev, *event)
	if len(next) > eventRetention {
		next = next[len(next)-eventRetention:]
	}
	s.events = next
	record(func() { s.events = prev })

	return nil
}

// Events returns a copy of the retained events, oldest first.
func (r *OutboxRepository) Events() []outboxDomain.OutboxEvent {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	res := make([]outboxDomain.OutboxEvent, len(r.store.events))
	copy(res, r.store.events)
	return res
}
