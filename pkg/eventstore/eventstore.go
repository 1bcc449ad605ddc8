// Package eventstore is an append-only Postgres event log with optimistic
// concurrency per aggregate.
package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
	ErrInvalidVersion      = errors.New("invalid version number")
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id BIGSERIAL PRIMARY KEY,
	aggregate_id UUID NOT NULL,
	aggregate_type TEXT NOT NULL,
	event_type TEXT NOT NULL,
	event_data JSONB NOT NULL,
	metadata JSONB,
	version INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (aggregate_id, version)
)`

const (
	currentVersionQuery = `SELECT COALESCE(MAX(version), 0) FROM events WHERE aggregate_id = $1`

	insertEventQuery = `INSERT INTO events
	(aggregate_id, aggregate_type, event_type, event_data, metadata, version, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id`

	selectEventsQuery = `SELECT id, aggregate_id, aggregate_type, event_type, event_data, metadata, version, created_at
	FROM events
	WHERE aggregate_id = $1 AND version >= $2`
)

// Event is one stored fact about an aggregate.
type Event struct {
	ID            int64                  `json:"id"`
	AggregateID   uuid.UUID              `json:"aggregate_id"`
	AggregateType string                 `json:"aggregate_type"`
	EventType     string                 `json:"event_type"`
	EventData     json.RawMessage        `json:"event_data"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Version       int                    `json:"version"`
	CreatedAt     time.Time              `json:"created_at"`
}

type EventStore struct {
	db     *sql.DB
	tracer trace.Tracer
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{
		db:     db,
		tracer: otel.Tracer("nftmarket/eventstore"),
	}
}

// Migrate creates the events table if it does not exist.
func (es *EventStore) Migrate(ctx context.Context) error {
	if _, err := es.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create events table: %w", err)
	}
	return nil
}

// AppendEvents appends events after expectedVersion. The first event gets
// version expectedVersion+1.
func (es *EventStore) AppendEvents(ctx context.Context, aggregateID uuid.UUID, aggregateType string, expectedVersion int, events []Event) error {
	ctx, span := es.tracer.Start(ctx, "eventstore.append",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID.String()),
			attribute.String("aggregate.type", aggregateType),
			attribute.Int("expected.version", expectedVersion),
			attribute.Int("event.count", len(events)),
		),
	)
	defer span.End()

	if expectedVersion < 0 {
		return ErrInvalidVersion
	}

	tx, err := es.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current int
	if err := tx.QueryRowContext(ctx, currentVersionQuery, aggregateID).Scan(&current); err != nil {
		return fmt.Errorf("query current version: %w", err)
	}
	if err := checkVersion(current, expectedVersion); err != nil {
		span.SetAttributes(attribute.Int("actual.version", current))
		return err
	}

	now := time.Now().UTC()
	for i, event := range events {
		version := expectedVersion + i + 1
		metadata, err := encodeMetadata(event.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata of event %d: %w", i, err)
		}

		var id int64
		err = tx.QueryRowContext(ctx, insertEventQuery,
			aggregateID, aggregateType, event.EventType, []byte(event.EventData), metadata, version, now,
		).Scan(&id)
		if isUniqueViolation(err) {
			return ErrConcurrencyConflict
		}
		if err != nil {
			return fmt.Errorf("insert event %d: %w", i, err)
		}
		span.AddEvent("event.appended", trace.WithAttributes(
			attribute.Int64("event.id", id),
			attribute.Int("event.version", version),
			attribute.String("event.type", event.EventType),
		))
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return ErrConcurrencyConflict
		}
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// LoadEvents returns the events of an aggregate in version order. A
// toVersion of zero means no upper bound.
func (es *EventStore) LoadEvents(ctx context.Context, aggregateID uuid.UUID, fromVersion, toVersion int) ([]Event, error) {
	ctx, span := es.tracer.Start(ctx, "eventstore.load",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID.String()),
			attribute.Int("from.version", fromVersion),
			attribute.Int("to.version", toVersion),
		),
	)
	defer span.End()

	query, args := loadQuery(aggregateID, fromVersion, toVersion)
	rows, err := es.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}

func checkVersion(current, expected int) error {
	if current != expected {
		return fmt.Errorf("%w: expected %d, found %d", ErrConcurrencyConflict, expected, current)
	}
	return nil
}

func loadQuery(aggregateID uuid.UUID, fromVersion, toVersion int) (string, []interface{}) {
	query := selectEventsQuery
	args := []interface{}{aggregateID, fromVersion}
	if toVersion > 0 {
		query += " AND version <= $3"
		args = append(args, toVersion)
	}
	return query + " ORDER BY version ASC", args
}

// encodeMetadata returns nil for empty metadata so the column stays NULL.
func encodeMetadata(metadata map[string]interface{}) ([]byte, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	return json.Marshal(metadata)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (Event, error) {
	var event Event
	var data, metadata []byte
	if err := row.Scan(
		&event.ID,
		&event.AggregateID,
		&event.AggregateType,
		&event.EventType,
		&data,
		&metadata,
		&event.Version,
		&event.CreatedAt,
	); err != nil {
		return Event{}, fmt.Errorf("scan event: %w", err)
	}
	event.EventData = data
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
			return Event{}, fmt.Errorf("decode metadata of event %d: %w", event.ID, err)
		}
	}
	return event, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation"
}
