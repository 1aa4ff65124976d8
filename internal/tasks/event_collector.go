package tasks

import (
	"context"
	"log/slog"
	"time"

	"flight_surety/internal/database"
	"flight_surety/internal/models"
)

// ChannelSink hands committed events to an EventCollector
type ChannelSink chan<- *models.Event

// Publish blocks when the collector falls behind, which in turn holds up the ledger
func (s ChannelSink) Publish(ctx context.Context, events []models.Event) error {
	for i := range events {
		ev := events[i]
		select {
		case s <- &ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// EventCollector collects committed events and commits them to the journal in batches
type EventCollector struct {
	repo          database.EventWriter
	eventChan     <-chan *models.Event
	batchSize     int           // maximum number of events in a batch before committing to database
	flushInterval time.Duration // time to flush batch even if not full
}

// Default batch size is 100 events and flush interval is 1 second
func NewEventCollector(repo database.EventWriter, eventChan <-chan *models.Event) *EventCollector {
	return &EventCollector{
		repo:          repo,
		eventChan:     eventChan,
		batchSize:     100,
		flushInterval: 1 * time.Second,
	}
}

// NewEventCollectorWithConfig creates a new collector with custom batch settings
func NewEventCollectorWithConfig(repo database.EventWriter, eventChan <-chan *models.Event, batchSize int, flushInterval time.Duration) *EventCollector {
	return &EventCollector{
		repo:          repo,
		eventChan:     eventChan,
		batchSize:     batchSize,
		flushInterval: flushInterval,
	}
}

// Start collects events until the context is cancelled or the channel is closed.
// Batches are flushed when they reach batchSize or every flushInterval.
func (c *EventCollector) Start(ctx context.Context) error {
	batch := make([]*models.Event, 0, c.batchSize)

	flushBatch := func() {
		if len(batch) == 0 {
			return
		}
		if err := c.repo.InsertBatch(batch); err != nil {
			slog.Error("Error inserting batch of events", "batch_size", len(batch), "error", err)
		} else {
			slog.Debug("Journaled batch of events", "batch_size", len(batch))
		}
		batch = batch[:0]
	}

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushBatch()
			return ctx.Err()

		case <-ticker.C:
			flushBatch()

		case ev, ok := <-c.eventChan:
			if !ok {
				flushBatch()
				return nil
			}
			if ev == nil {
				continue
			}

			batch = append(batch, ev)
			slog.Debug("Added event to batch",
				"kind", ev.Kind,
				"block", ev.Block,
				"current_batch_size", len(batch),
				"max_batch_size", c.batchSize,
			)

			if len(batch) >= c.batchSize {
				flushBatch()
			}
		}
	}
}
