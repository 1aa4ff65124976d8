package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"flight_surety/internal/models"

	"github.com/segmentio/kafka-go"
)

// Message is the envelope published for every committed engine event
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Block      uint64          `json:"block"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Publisher forwards committed events to a topic. Events sharing a flight, or an
// account when no flight is involved, land on the same partition.
type Publisher struct {
	producer *Producer
	timeout  time.Duration
}

func NewPublisher(p *Producer) *Publisher {
	return &Publisher{producer: p, timeout: 5 * time.Second}
}

// Publish implements ledger.Sink
func (p *Publisher) Publish(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		msg, err := encode(ev)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.producer.SendMessages(sendCtx, msgs...); err != nil {
		return err
	}

	slog.Debug("Published events", "topic", p.producer.GetTopic(), "count", len(msgs))
	return nil
}

func encode(ev models.Event) (kafka.Message, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event %s: %w", ev.ID, err)
	}

	value, err := json.Marshal(Message{
		ID:         ev.ID.String(),
		Type:       string(ev.Kind),
		Block:      ev.Block,
		OccurredAt: ev.OccurredAt,
		Payload:    payload,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal envelope %s: %w", ev.ID, err)
	}

	return kafka.Message{
		Key:   []byte(ev.PartitionKey()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Kind)},
		},
	}, nil
}
