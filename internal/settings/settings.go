// Package settings stores the library-wide configuration singleton.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/doug-martin/goqu/v9"

	"libradesk/internal/lifecycle"
	"libradesk/internal/records"
)

const (
	Doctype = "Library Settings"

	FieldLoanPeriod  = "loan_period"
	FieldMaxArticles = "max_articles"

	// DefaultLoanPeriod applies when no loan period is configured.
	DefaultLoanPeriod = 30
)

// Settings is the library configuration. A zero LoanPeriod means the default
// period; a nil MaxArticles means no issue limit is configured, while an
// explicit 0 allows no issues at all.
type Settings struct {
	LoanPeriod  int  `json:"loan_period"`
	MaxArticles *int `json:"max_articles"`
}

// Limit returns a MaxArticles value of n.
func Limit(n int) *int {
	return &n
}

// LoanPeriodDays is the membership length in days.
func (s Settings) LoanPeriodDays() int {
	if s.LoanPeriod == 0 {
		return DefaultLoanPeriod
	}
	return s.LoanPeriod
}

// Validate rejects negative values.
func (s Settings) Validate() error {
	if s.LoanPeriod < 0 {
		return fmt.Errorf("%w: loan_period must not be negative, got %d", lifecycle.ErrInvalidDocument, s.LoanPeriod)
	}
	if s.MaxArticles != nil && *s.MaxArticles < 0 {
		return fmt.Errorf("%w: max_articles must not be negative, got %d", lifecycle.ErrInvalidDocument, *s.MaxArticles)
	}
	return nil
}

// Store reads and writes single values keyed by doctype and field.
type Store interface {
	GetSingleValue(ctx context.Context, doctype, field string) (string, bool, error)
	SetSingleValue(ctx context.Context, doctype, field, value string) error
}

// SQLStore keeps single values in the singles table.
type SQLStore struct {
	h records.Handle
}

func NewSQLStore(h records.Handle) *SQLStore {
	return &SQLStore{h: h}
}

func (s *SQLStore) GetSingleValue(ctx context.Context, doctype, field string) (string, bool, error) {
	query, args, err := goqu.Dialect(string(s.h.Dialect())).From("singles").Prepared(true).
		Select("value").
		Where(goqu.C("doctype").Eq(doctype), goqu.C("field").Eq(field)).
		ToSQL()
	if err != nil {
		return "", false, fmt.Errorf("failed to build settings query: %w", err)
	}

	var value string
	err = s.h.QueryRowxContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s.%s: %w", doctype, field, err)
	}
	return value, true, nil
}

func (s *SQLStore) SetSingleValue(ctx context.Context, doctype, field, value string) error {
	dialect := goqu.Dialect(string(s.h.Dialect()))

	query, args, err := dialect.Update("singles").Prepared(true).
		Set(goqu.Record{"value": value}).
		Where(goqu.C("doctype").Eq(doctype), goqu.C("field").Eq(field)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build settings update: %w", err)
	}

	res, err := s.h.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to write %s.%s: %w", doctype, field, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	query, args, err = dialect.Insert("singles").Prepared(true).
		Rows(goqu.Record{"doctype": doctype, "field": field, "value": value}).
		ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build settings insert: %w", err)
	}
	if _, err := s.h.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to write %s.%s: %w", doctype, field, err)
	}
	return nil
}

// Load reads the library settings. A missing loan period stays zero and a
// missing max_articles stays nil.
func Load(ctx context.Context, store Store) (Settings, error) {
	var s Settings

	loanPeriod, err := loadInt(ctx, store, FieldLoanPeriod)
	if err != nil {
		return Settings{}, err
	}
	if loanPeriod != nil {
		s.LoanPeriod = *loanPeriod
	}

	if s.MaxArticles, err = loadInt(ctx, store, FieldMaxArticles); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func loadInt(ctx context.Context, store Store, field string) (*int, error) {
	raw, ok, err := store.GetSingleValue(ctx, Doctype, field)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", field, raw, err)
	}
	return &n, nil
}

// Save validates and writes the library settings. A nil MaxArticles clears the limit.
func Save(ctx context.Context, store Store, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := store.SetSingleValue(ctx, Doctype, FieldLoanPeriod, strconv.Itoa(s.LoanPeriod)); err != nil {
		return err
	}

	maxArticles := ""
	if s.MaxArticles != nil {
		maxArticles = strconv.Itoa(*s.MaxArticles)
	}
	return store.SetSingleValue(ctx, Doctype, FieldMaxArticles, maxArticles)
}
