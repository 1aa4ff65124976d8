package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"flight_surety/internal/database"
	"flight_surety/internal/models"

	"github.com/google/uuid"
)

// EventPublisher delivers journaled events to external subscribers
type EventPublisher interface {
	Publish(ctx context.Context, events []models.Event) error
}

// OutboxRelay publishes journaled events that have not been published yet. An event is
// marked only after the publisher accepts it; a failed batch is retried on the next tick.
type OutboxRelay struct {
	repo      database.OutboxRepository
	publisher EventPublisher
	batchSize int
	interval  time.Duration
}

func NewOutboxRelay(repo database.OutboxRepository, publisher EventPublisher, batchSize int, interval time.Duration) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{
		repo:      repo,
		publisher: publisher,
		batchSize: batchSize,
		interval:  interval,
	}
}

func (r *OutboxRelay) Name() string {
	return "outbox_relay"
}

func (r *OutboxRelay) Interval() time.Duration {
	return r.interval
}

// Run drains the outbox batch by batch until it is empty or the context ends
func (r *OutboxRelay) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := r.relayBatch(ctx)
		if err != nil {
			return err
		}
		if n < r.batchSize {
			return nil
		}
	}
}

func (r *OutboxRelay) relayBatch(ctx context.Context) (int, error) {
	pending, err := r.repo.FetchUnpublished(r.batchSize)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	events := make([]models.Event, len(pending))
	ids := make([]uuid.UUID, len(pending))
	for i, ev := range pending {
		events[i] = *ev
		ids[i] = ev.ID
	}

	if err := r.publisher.Publish(ctx, events); err != nil {
		return 0, fmt.Errorf("failed to publish %d events: %w", len(events), err)
	}

	if err := r.repo.MarkPublished(ids); err != nil {
		return 0, err
	}

	slog.Debug("Relayed events", "count", len(events), "first_block", events[0].Block)
	return len(events), nil
}
