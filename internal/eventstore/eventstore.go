package eventstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	jsoniter "github.com/json-iterator/go"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"libradesk/internal/records"
)

var (
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
	ErrInvalidVersion      = errors.New("invalid version number")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event is one entry of an aggregate's audit trail.
type Event struct {
	ID            int64               `json:"id" db:"id"`
	AggregateID   string              `json:"aggregate_id" db:"aggregate_id"`
	AggregateType string              `json:"aggregate_type" db:"aggregate_type"`
	EventType     string              `json:"event_type" db:"event_type"`
	EventData     jsoniter.RawMessage `json:"event_data" db:"-"`
	Version       int                 `json:"version" db:"version"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
}

// NewEvent encodes payload as the event body.
func NewEvent(eventType string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{EventType: eventType, EventData: data}, nil
}

// Decode unmarshals the event body into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.EventData, v)
}

type eventRow struct {
	Event
	Data string `db:"event_data"`
}

// EventStore appends and reads events in the database the documents live in,
// so an append can share the transaction of the change it records.
type EventStore struct {
	tracer trace.Tracer
}

func NewEventStore() *EventStore {
	return &EventStore{tracer: otel.Tracer("libradesk/eventstore")}
}

// AppendEvents appends events after expectedVersion using optimistic concurrency control.
func (es *EventStore) AppendEvents(ctx context.Context, h records.Handle, aggregateID, aggregateType string, expectedVersion int, events []Event) error {
	ctx, span := es.tracer.Start(ctx, "eventstore.append",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID),
			attribute.String("aggregate.type", aggregateType),
			attribute.Int("expected.version", expectedVersion),
			attribute.Int("event.count", len(events)),
		),
	)
	defer span.End()

	if expectedVersion < 0 {
		return ErrInvalidVersion
	}

	currentVersion, err := es.currentVersion(ctx, h, aggregateID)
	if err != nil {
		return err
	}

	if currentVersion != expectedVersion {
		span.SetAttributes(
			attribute.Int("actual.version", currentVersion),
			attribute.Bool("conflict.detected", true),
		)
		return ErrConcurrencyConflict
	}

	dialect := goqu.Dialect(string(h.Dialect()))
	now := time.Now().UTC()

	for i, event := range events {
		version := expectedVersion + i + 1

		query, args, err := dialect.Insert("events").Prepared(true).Rows(goqu.Record{
			"aggregate_id":   aggregateID,
			"aggregate_type": aggregateType,
			"event_type":     event.EventType,
			"event_data":     string(event.EventData),
			"version":        version,
			"created_at":     now,
		}).ToSQL()
		if err != nil {
			return fmt.Errorf("build insert for event %d: %w", i, err)
		}

		if _, err := h.ExecContext(ctx, query, args...); err != nil {
			if isUniqueViolation(err) {
				return ErrConcurrencyConflict
			}
			return fmt.Errorf("insert event %d: %w", i, err)
		}

		span.AddEvent("event.appended", trace.WithAttributes(
			attribute.Int("event.version", version),
			attribute.String("event.type", event.EventType),
		))
	}

	span.SetAttributes(attribute.Bool("append.success", true))
	return nil
}

// LoadEvents returns an aggregate's events from fromVersion on, up to toVersion when it is positive.
func (es *EventStore) LoadEvents(ctx context.Context, h records.Handle, aggregateID string, fromVersion, toVersion int) ([]Event, error) {
	ctx, span := es.tracer.Start(ctx, "eventstore.load",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID),
			attribute.Int("from.version", fromVersion),
			attribute.Int("to.version", toVersion),
		),
	)
	defer span.End()

	ds := goqu.Dialect(string(h.Dialect())).From("events").Prepared(true).
		Where(goqu.C("aggregate_id").Eq(aggregateID), goqu.C("version").Gte(fromVersion))
	if toVersion > 0 {
		ds = ds.Where(goqu.C("version").Lte(toVersion))
	}

	query, args, err := ds.Order(goqu.C("version").Asc()).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build events query: %w", err)
	}

	rows, err := h.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		var row eventRow
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		row.Event.EventData = jsoniter.RawMessage(row.Data)
		events = append(events, row.Event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}

// GetCurrentVersion returns the latest version for an aggregate, 0 when it has none.
func (es *EventStore) GetCurrentVersion(ctx context.Context, h records.Handle, aggregateID string) (int, error) {
	ctx, span := es.tracer.Start(ctx, "eventstore.get_version",
		trace.WithAttributes(attribute.String("aggregate.id", aggregateID)),
	)
	defer span.End()

	version, err := es.currentVersion(ctx, h, aggregateID)
	if err != nil {
		return 0, err
	}

	span.SetAttributes(attribute.Int("current.version", version))
	return version, nil
}

func (es *EventStore) currentVersion(ctx context.Context, h records.Handle, aggregateID string) (int, error) {
	query, args, err := goqu.Dialect(string(h.Dialect())).From("events").Prepared(true).
		Select(goqu.COALESCE(goqu.MAX("version"), 0)).
		Where(goqu.C("aggregate_id").Eq(aggregateID)).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build version query: %w", err)
	}

	var version int
	err = h.QueryRowxContext(ctx, query, args...).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("query current version: %w", err)
	}
	return version, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
