package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("record not found")

// Row is a document that can be written to a table keyed by id.
type Row interface {
	RowID() string
	Record() map[string]any
}

// Store is the query surface document validators depend on.
type Store[T Row] interface {
	Exists(ctx context.Context, filter Filter) (bool, error)
	Count(ctx context.Context, filter Filter) (int, error)
	Get(ctx context.Context, id string) (T, error)
	Save(ctx context.Context, row T) error
	List(ctx context.Context, filter Filter) ([]T, error)
}

// Table implements Store over one SQL table. T must be a struct whose db
// tags cover every column of the table.
type Table[T Row] struct {
	h         Handle
	name      string
	forUpdate bool
}

func NewTable[T Row](h Handle, name string) *Table[T] {
	return &Table[T]{h: h, name: name}
}

// ForUpdate returns a copy whose Get locks the row until the surrounding
// transaction ends. SQLite serializes writers already, so it is a no-op there.
func (t *Table[T]) ForUpdate() *Table[T] {
	c := *t
	c.forUpdate = true
	return &c
}

func (t *Table[T]) dialect() goqu.DialectWrapper {
	return goqu.Dialect(string(t.h.Dialect()))
}

func (t *Table[T]) from(filter Filter) *goqu.SelectDataset {
	ds := t.dialect().From(t.name).Prepared(true)
	if len(filter) > 0 {
		ds = ds.Where(filter.expression())
	}
	return ds
}

func (t *Table[T]) Exists(ctx context.Context, filter Filter) (bool, error) {
	query, args, err := t.from(filter).Select(goqu.L("1")).Limit(1).ToSQL()
	if err != nil {
		return false, fmt.Errorf("failed to build %s exists query: %w", t.name, err)
	}

	var one int
	err = t.h.QueryRowxContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query %s: %w", t.name, err)
	}
	return true, nil
}

func (t *Table[T]) Count(ctx context.Context, filter Filter) (int, error) {
	query, args, err := t.from(filter).Select(goqu.COUNT(goqu.Star())).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("failed to build %s count query: %w", t.name, err)
	}

	var n int
	if err := t.h.QueryRowxContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", t.name, err)
	}
	return n, nil
}

func (t *Table[T]) Get(ctx context.Context, id string) (T, error) {
	var row T

	ds := t.from(Where(Eq("id", id)))
	if t.forUpdate && t.h.Dialect() == Postgres {
		ds = ds.ForUpdate(exp.Wait)
	}
	query, args, err := ds.ToSQL()
	if err != nil {
		return row, fmt.Errorf("failed to build %s get query: %w", t.name, err)
	}

	err = sqlx.GetContext(ctx, t.h, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return row, fmt.Errorf("%s %s: %w", t.name, id, ErrNotFound)
	}
	if err != nil {
		return row, fmt.Errorf("failed to get %s %s: %w", t.name, id, err)
	}
	return row, nil
}

// Save updates the row with the same id, inserting it when none exists.
func (t *Table[T]) Save(ctx context.Context, row T) error {
	record := goqu.Record(row.Record())
	record["id"] = row.RowID()

	query, args, err := t.dialect().Update(t.name).Prepared(true).
		Set(record).
		Where(goqu.C("id").Eq(row.RowID())).
		ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build %s update: %w", t.name, err)
	}

	res, err := t.h.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s %s: %w", t.name, row.RowID(), err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to update %s %s: %w", t.name, row.RowID(), err)
	} else if n > 0 {
		return nil
	}

	query, args, err = t.dialect().Insert(t.name).Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build %s insert: %w", t.name, err)
	}
	if _, err := t.h.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert %s %s: %w", t.name, row.RowID(), err)
	}
	return nil
}

// List returns matching rows ordered by id.
func (t *Table[T]) List(ctx context.Context, filter Filter) ([]T, error) {
	query, args, err := t.from(filter).Order(goqu.C("id").Asc()).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s list query: %w", t.name, err)
	}

	rows := make([]T, 0)
	if err := sqlx.SelectContext(ctx, t.h, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t.name, err)
	}
	return rows, nil
}
