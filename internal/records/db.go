// Package records persists library documents in PostgreSQL or SQLite.
package records

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	_ "github.com/lib/pq"  // Register PostgreSQL driver.
	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*/*.sql
var migrations embed.FS

// Dialect names the SQL flavour of a connection, using goqu's dialect names.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite3"
)

// SQLiteBusyTimeout is how long a SQLite write waits for a lock held by another connection.
const SQLiteBusyTimeout = 5 * time.Second

// Handle is anything queries can run on: the pool or an open transaction.
type Handle interface {
	sqlx.ExtContext
	Dialect() Dialect
}

// DB is a migrated connection pool.
type DB struct {
	*sqlx.DB
	dialect Dialect
}

// Tx is a transaction started by DB.InTx.
type Tx struct {
	*sqlx.Tx
	dialect Dialect
}

func (db *DB) Dialect() Dialect { return db.dialect }
func (tx *Tx) Dialect() Dialect { return tx.dialect }

// Open connects with otelsql instrumentation and applies migrations.
// driver is "postgres" or "sqlite".
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	var (
		dialect Dialect
		system  attribute.KeyValue
	)
	switch driver {
	case "postgres":
		dialect, system = Postgres, semconv.DBSystemPostgreSQL
	case "sqlite":
		dialect, system = SQLite, semconv.DBSystemSqlite
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	sqlDB, err := otelsql.Open(driver, dsn, otelsql.WithAttributes(system))
	if err != nil {
		return nil, fmt.Errorf("opening instrumented database: %w", err)
	}

	if dialect == SQLite {
		// One connection keeps :memory: databases alive and avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)

		// Writers from other processes sharing the file wait instead of failing with SQLITE_BUSY.
		if _, err := sqlDB.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", SQLiteBusyTimeout.Milliseconds())); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("setting busy timeout: %w", err)
		}
		if _, err := sqlDB.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("setting WAL mode: %w", err)
		}
		if _, err := sqlDB.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("enabling foreign keys: %w", err)
		}
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := otelsql.RegisterDBStatsMetrics(sqlDB, otelsql.WithAttributes(system)); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("registering db stats metrics: %w", err)
	}

	if err := migrate(sqlDB, dialect); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return NewDB(sqlx.NewDb(sqlDB, driver), dialect), nil
}

// NewDB wraps an already configured and migrated connection.
func NewDB(db *sqlx.DB, dialect Dialect) *DB {
	return &DB{DB: db, dialect: dialect}
}

// InTx runs fn in a transaction, committing when fn returns nil.
func (db *DB) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	var opts *sql.TxOptions
	if db.dialect == Postgres {
		opts = &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	}

	sqlTx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Tx{Tx: sqlTx, dialect: db.dialect}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// goose keeps its base FS and dialect in package globals.
var migrateMu sync.Mutex

func migrate(db *sql.DB, dialect Dialect) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(string(dialect)); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	dir := "migrations/postgres"
	if dialect == SQLite {
		dir = "migrations/sqlite"
	}
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// AdvisoryLock takes transaction-scoped PostgreSQL advisory locks on keys,
// serializing submissions across processes. SQLite allows one writer at a time,
// so it is a no-op there.
func (tx *Tx) AdvisoryLock(ctx context.Context, keys ...string) error {
	if tx.dialect != Postgres {
		return nil
	}

	keys = slices.Clone(keys)
	slices.Sort(keys)
	for _, key := range slices.Compact(keys) {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key); err != nil {
			return fmt.Errorf("failed to lock %s: %w", key, err)
		}
	}
	return nil
}
