package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"libradesk/internal/eventstore"
	"libradesk/internal/records"
)

// Document is a submittable record. Implementations are value types;
// WithDocStatus returns a modified copy.
type Document[T any] interface {
	records.Row
	DocStatus() DocStatus
	WithDocStatus(DocStatus) T
	// LockKeys names the shared resources a submission of this document reads
	// or writes, e.g. the member whose memberships are checked for overlap.
	LockKeys() []string
}

// Hook runs inside the submit transaction after the state change is known to be
// valid. Returning an error aborts the submission and leaves the draft untouched.
type Hook[T any] interface {
	BeforeSubmit(ctx context.Context, tx *records.Tx, doc T) (T, error)
}

// HookFunc adapts a function to Hook.
type HookFunc[T any] func(ctx context.Context, tx *records.Tx, doc T) (T, error)

func (f HookFunc[T]) BeforeSubmit(ctx context.Context, tx *records.Tx, doc T) (T, error) {
	return f(ctx, tx, doc)
}

// Kind describes one document type handled by a Manager.
type Kind struct {
	// Name is the aggregate type recorded with events, e.g. "membership".
	Name string
	// EventPrefix is prepended to Submitted/Cancelled, e.g. "Membership".
	EventPrefix string
	Table       string
}

// Config holds the collaborators shared by every Manager of a process.
type Config struct {
	Events *eventstore.EventStore
	Locks  *KeyedMutex
	Logger *slog.Logger
}

// Manager runs the draft, active, cancelled lifecycle of one document kind.
type Manager[T Document[T]] struct {
	db     *records.DB
	kind   Kind
	hook   Hook[T]
	events *eventstore.EventStore
	locks  *KeyedMutex
	logger *slog.Logger

	tracer      trace.Tracer
	transitions metric.Int64Counter
}

func NewManager[T Document[T]](db *records.DB, kind Kind, hook Hook[T], cfg Config) *Manager[T] {
	if cfg.Locks == nil {
		cfg.Locks = NewKeyedMutex()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	counter, err := otel.Meter("libradesk/lifecycle").Int64Counter("lifecycle.transitions",
		metric.WithDescription("Document lifecycle transitions by outcome"),
	)
	if err != nil {
		counter = noop.Int64Counter{}
	}

	return &Manager[T]{
		db:          db,
		kind:        kind,
		hook:        hook,
		events:      cfg.Events,
		locks:       cfg.Locks,
		logger:      cfg.Logger.With("kind", kind.Name),
		tracer:      otel.Tracer("libradesk/lifecycle"),
		transitions: counter,
	}
}

// Submit runs the before-submit hook and activates the draft with the given id.
func (m *Manager[T]) Submit(ctx context.Context, id string) (T, error) {
	return m.transition(ctx, id, EventSubmit)
}

// Cancel marks an active document cancelled. No hook runs.
func (m *Manager[T]) Cancel(ctx context.Context, id string) (T, error) {
	return m.transition(ctx, id, EventCancel)
}

func (m *Manager[T]) transition(ctx context.Context, id string, event Event) (T, error) {
	ctx, span := m.tracer.Start(ctx, m.kind.Name+"."+string(event),
		trace.WithAttributes(
			attribute.String("document.kind", m.kind.Name),
			attribute.String("document.id", id),
		),
	)
	defer span.End()

	doc, err := m.apply(ctx, id, event)

	outcome := outcomeOf(err)
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", m.kind.Name),
		attribute.String("event", string(event)),
		attribute.String("outcome", outcome),
	))
	span.SetAttributes(attribute.String("outcome", outcome))

	switch outcome {
	case "ok":
		m.logger.InfoContext(ctx, "document "+string(event)+" applied", "id", id, "status", doc.DocStatus())
	case "rejected":
		m.logger.InfoContext(ctx, "document "+string(event)+" rejected", "id", id, "reason", err.Error())
	case "error":
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.logger.ErrorContext(ctx, "document "+string(event)+" failed", "id", id, "error", err)
	}

	return doc, err
}

func (m *Manager[T]) apply(ctx context.Context, id string, event Event) (T, error) {
	var result T

	doc, err := records.NewTable[T](m.db, m.kind.Table).Get(ctx, id)
	if err != nil {
		return result, err
	}

	keys := append(doc.LockKeys(), m.kind.Name+":"+id)
	unlock := m.locks.Lock(keys...)
	defer unlock()

	err = m.db.InTx(ctx, func(tx *records.Tx) error {
		if err := tx.AdvisoryLock(ctx, keys...); err != nil {
			return err
		}

		table := records.NewTable[T](tx, m.kind.Table)
		current, err := table.ForUpdate().Get(ctx, id)
		if err != nil {
			return err
		}

		next, err := machine.Apply(ctx, current.DocStatus(), event)
		if err != nil {
			return err
		}

		if event == EventSubmit && m.hook != nil {
			if current, err = m.hook.BeforeSubmit(ctx, tx, current); err != nil {
				return err
			}
		}

		current = current.WithDocStatus(next)
		if err := table.Save(ctx, current); err != nil {
			return err
		}

		if err := m.record(ctx, tx, event, current); err != nil {
			return err
		}

		result = current
		return nil
	})
	if err != nil {
		var zero T
		if errors.Is(err, ErrRejected) {
			return zero, err
		}
		return zero, fmt.Errorf("failed to %s %s %s: %w", event, m.kind.Name, id, err)
	}
	return result, nil
}

func (m *Manager[T]) record(ctx context.Context, tx *records.Tx, event Event, doc T) error {
	if m.events == nil {
		return nil
	}

	suffix := "Submitted"
	if event == EventCancel {
		suffix = "Cancelled"
	}
	e, err := eventstore.NewEvent(m.kind.EventPrefix+suffix, doc)
	if err != nil {
		return err
	}

	version, err := m.events.GetCurrentVersion(ctx, tx, doc.RowID())
	if err != nil {
		return err
	}
	return m.events.AppendEvents(ctx, tx, doc.RowID(), m.kind.Name, version, []eventstore.Event{e})
}

func outcomeOf(err error) string {
	var trErr *TransitionError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRejected):
		return "rejected"
	case errors.As(err, &trErr):
		return "invalid"
	default:
		return "error"
	}
}
