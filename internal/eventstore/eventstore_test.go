package eventstore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libradesk/internal/records"
	"libradesk/internal/records/recordstest"
)

type testEvent struct {
	Message string `json:"message"`
}

func mustEvent(t testing.TB, msg string) Event {
	t.Helper()
	e, err := NewEvent("TestEvent", testEvent{Message: msg})
	require.NoError(t, err)
	return e
}

func TestAppendAndLoad(t *testing.T) {
	db := recordstest.NewDB(t)
	store := NewEventStore()
	ctx := context.Background()
	id := uuid.NewString()

	require.NoError(t, store.AppendEvents(ctx, db, id, "article", 0, []Event{mustEvent(t, "one"), mustEvent(t, "two")}))
	require.NoError(t, store.AppendEvents(ctx, db, id, "article", 2, []Event{mustEvent(t, "three")}))

	events, err := store.LoadEvents(ctx, db, id, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)

	for i, e := range events {
		assert.Equal(t, i+1, e.Version)
		assert.Equal(t, "article", e.AggregateType)
	}

	var body testEvent
	require.NoError(t, events[2].Decode(&body))
	assert.Equal(t, "three", body.Message)

	ranged, err := store.LoadEvents(ctx, db, id, 2, 2)
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, 2, ranged[0].Version)

	version, err := store.GetCurrentVersion(ctx, db, id)
	require.NoError(t, err)
	assert.Equal(t, 3, version)
}

func TestAppendVersionMismatch(t *testing.T) {
	db := recordstest.NewDB(t)
	store := NewEventStore()
	ctx := context.Background()
	id := uuid.NewString()

	require.NoError(t, store.AppendEvents(ctx, db, id, "article", 0, []Event{mustEvent(t, "one")}))

	err := store.AppendEvents(ctx, db, id, "article", 0, []Event{mustEvent(t, "again")})
	assert.ErrorIs(t, err, ErrConcurrencyConflict)

	err = store.AppendEvents(ctx, db, id, "article", -1, nil)
	assert.ErrorIs(t, err, ErrInvalidVersion)
}

func TestAppendConcurrentWritersInTransactions(t *testing.T) {
	db := recordstest.NewDB(t)
	store := NewEventStore()
	ctx := context.Background()
	id := uuid.NewString()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := db.InTx(ctx, func(tx *records.Tx) error {
				return store.AppendEvents(ctx, tx, id, "article", 0, []Event{mustEvent(t, fmt.Sprint(i))})
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	version, err := store.GetCurrentVersion(ctx, db, id)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestVersionOfUnknownAggregate(t *testing.T) {
	db := recordstest.NewDB(t)

	version, err := NewEventStore().GetCurrentVersion(context.Background(), db, "missing")
	require.NoError(t, err)
	assert.Equal(t, 0, version)
}

func BenchmarkAppendEvents(b *testing.B) {
	db := recordstest.NewPostgres(b)
	store := NewEventStore()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		b.StopTimer()
		id := uuid.NewString()
		events := []Event{mustEvent(b, fmt.Sprintf("event %d", i))}
		b.StartTimer()

		if err := store.AppendEvents(context.Background(), db, id, "bench", 0, events); err != nil {
			b.Fatalf("AppendEvents failed: %v", err)
		}
	}
}
