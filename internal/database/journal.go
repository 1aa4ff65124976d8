package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"flight_surety/internal/models"

	"github.com/google/uuid"
)

// EventWriter persists batches of committed events
type EventWriter interface {
	InsertBatch(events []*models.Event) error
}

// OutboxRepository hands journaled events to the publisher relay.
// An event stays pending until MarkPublished succeeds, so delivery is at least once.
type OutboxRepository interface {
	FetchUnpublished(limit int) ([]*models.Event, error)
	MarkPublished(ids []uuid.UUID) error
}

type JournalRepository interface {
	EventWriter
	OutboxRepository
	ListEvents(kind models.EventKind, limit int) ([]*models.Event, error)
	CountEvents() (int, error)
	FlightStatus(key models.FlightKey) (models.StatusCode, bool, error)
}

type journalRepository struct {
	db *sql.DB
}

func NewJournalRepository(db *sql.DB) JournalRepository {
	return &journalRepository{db: db}
}

// InsertBatch appends events in a single transaction and updates the flight status projection.
// Events already journaled (same id) are ignored.
func (r *journalRepository) InsertBatch(events []*models.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO events (
		id, kind, block, occurred_at, address, airline, flight, departure, idx, status, amount, payload
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	statusStmt, err := tx.Prepare(`INSERT INTO flight_statuses (airline, flight, departure, status, block)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(airline, flight, departure) DO UPDATE SET status = excluded.status, block = excluded.block`)
	if err != nil {
		return fmt.Errorf("failed to prepare status statement: %w", err)
	}
	defer statusStmt.Close()

	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to encode event %s: %w", ev.ID, err)
		}

		var airline, flight, departure, idx, status any
		if ev.Flight != nil {
			airline, flight, departure = ev.Flight.Airline.String(), ev.Flight.Flight, ev.Flight.Timestamp
		}
		if ev.Index != nil {
			idx = int(*ev.Index)
		}
		if ev.Status != nil {
			status = int(*ev.Status)
		}

		if _, err := stmt.Exec(
			ev.ID.String(),
			string(ev.Kind),
			ev.Block,
			ev.OccurredAt,
			nullIfEmpty(ev.Address.String()),
			airline,
			flight,
			departure,
			idx,
			status,
			ev.Amount.String(),
			string(payload),
		); err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}

		if ev.Kind == models.EventFlightStatusFinalized && ev.Flight != nil && ev.Status != nil {
			if _, err := statusStmt.Exec(airline, flight, departure, status, ev.Block); err != nil {
				return fmt.Errorf("failed to update flight status: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListEvents returns the most recent events of a kind, oldest first. An empty kind lists all kinds.
func (r *journalRepository) ListEvents(kind models.EventKind, limit int) ([]*models.Event, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(`SELECT payload FROM (
			SELECT payload, block, rowid FROM events
			WHERE (? = '' OR kind = ?)
			ORDER BY block DESC, rowid DESC
			LIMIT ?
		) ORDER BY block ASC, rowid ASC`, string(kind), string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*models.Event, error) {
	var events []*models.Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev := &models.Event{}
		if err := json.Unmarshal([]byte(payload), ev); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	return events, nil
}

// FetchUnpublished returns the oldest events not yet published, in commit order
func (r *journalRepository) FetchUnpublished(limit int) ([]*models.Event, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(`SELECT payload FROM events
		WHERE published_at IS NULL
		ORDER BY block ASC, rowid ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unpublished events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (r *journalRepository) MarkPublished(ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`UPDATE events SET published_at = CURRENT_TIMESTAMP WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.Exec(id.String()); err != nil {
			return fmt.Errorf("failed to mark event %s published: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *journalRepository) CountEvents() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// FlightStatus returns the journaled final status of a flight
func (r *journalRepository) FlightStatus(key models.FlightKey) (models.StatusCode, bool, error) {
	var status int
	err := r.db.QueryRow(`SELECT status FROM flight_statuses WHERE airline = ? AND flight = ? AND departure = ?`,
		key.Airline.String(), key.Flight, key.Timestamp).Scan(&status)
	if err == sql.ErrNoRows {
		return models.StatusUnknown, false, nil
	}
	if err != nil {
		return models.StatusUnknown, false, fmt.Errorf("failed to query flight status: %w", err)
	}
	return models.StatusCode(status), true, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
