// Package recordstest opens throwaway databases for tests.
package recordstest

import (
	"context"
	"fmt"
	"os"
	"testing"

	"libradesk/internal/records"
)

// NewDB returns a migrated in-memory SQLite database closed at test cleanup.
func NewDB(t testing.TB) *records.DB {
	t.Helper()

	db, err := records.Open(context.Background(), "sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// NewPostgres connects to the database named by the PG* environment variables,
// skipping the test when none is reachable.
func NewPostgres(t testing.TB) *records.DB {
	t.Helper()

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getEnv("PGHOST", "localhost"),
		getEnv("PGPORT", "5432"),
		getEnv("PGUSER", "user"),
		getEnv("PGPASSWORD", "password"),
		getEnv("PGDATABASE", "testdb"),
	)

	db, err := records.Open(context.Background(), "postgres", dsn)
	if err != nil {
		t.Skipf("skipping postgres tests: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
