package records_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libradesk/internal/records"
	"libradesk/internal/records/recordstest"
)

type member struct {
	ID       string `db:"id"`
	FullName string `db:"full_name"`
	Email    string `db:"email"`
	Phone    string `db:"phone"`
}

func (m member) RowID() string { return m.ID }

func (m member) Record() map[string]any {
	return map[string]any{"full_name": m.FullName, "email": m.Email, "phone": m.Phone}
}

func TestTable_SaveInsertsThenUpdates(t *testing.T) {
	db := recordstest.NewDB(t)
	ctx := context.Background()
	members := records.NewTable[member](db, "members")

	require.NoError(t, members.Save(ctx, member{ID: "m-1", FullName: "Ada Lovelace"}))
	require.NoError(t, members.Save(ctx, member{ID: "m-1", FullName: "Ada King", Email: "ada@example.org"}))

	got, err := members.Get(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada King", got.FullName)
	assert.Equal(t, "ada@example.org", got.Email)

	n, err := members.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTable_GetMissing(t *testing.T) {
	db := recordstest.NewDB(t)
	members := records.NewTable[member](db, "members")

	_, err := members.Get(context.Background(), "nobody")
	if !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("Get error = %v, want ErrNotFound", err)
	}
}

func TestTable_ExistsAndCountWithFilters(t *testing.T) {
	db := recordstest.NewDB(t)
	ctx := context.Background()
	members := records.NewTable[member](db, "members")

	for _, m := range []member{
		{ID: "a", FullName: "Alan Turing", Phone: "1"},
		{ID: "b", FullName: "Grace Hopper", Phone: "2"},
		{ID: "c", FullName: "Barbara Liskov", Phone: "3"},
	} {
		require.NoError(t, members.Save(ctx, m))
	}

	ok, err := members.Exists(ctx, records.Where(records.Eq("full_name", "Grace Hopper")))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = members.Exists(ctx, records.Where(records.Eq("full_name", "Grace Hopper"), records.Gt("phone", "2")))
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := members.Count(ctx, records.Where(records.Lt("phone", "3")))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTable_ListLike(t *testing.T) {
	db := recordstest.NewDB(t)
	ctx := context.Background()
	members := records.NewTable[member](db, "members")

	require.NoError(t, members.Save(ctx, member{ID: "2", FullName: "Grace Hopper"}))
	require.NoError(t, members.Save(ctx, member{ID: "1", FullName: "Edsger Dijkstra"}))
	require.NoError(t, members.Save(ctx, member{ID: "3", FullName: "Tony Hoare"}))

	got, err := members.List(ctx, records.Where(records.Like("full_name", "HO")))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].ID)
	assert.Equal(t, "3", got[1].ID)

	all, err := members.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "1", all[0].ID)
}

func TestInTx_RollsBackOnError(t *testing.T) {
	db := recordstest.NewDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.InTx(ctx, func(tx *records.Tx) error {
		if err := records.NewTable[member](tx, "members").Save(ctx, member{ID: "x", FullName: "X"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	ok, err := records.NewTable[member](db, "members").Exists(ctx, records.Where(records.Eq("id", "x")))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTable_ForUpdateLocksOnPostgres(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := records.NewDB(sqlx.NewDb(sqlDB, "postgres"), records.Postgres)

	mock.ExpectQuery(`SELECT \* FROM "members" WHERE \("id" = \$1\) FOR UPDATE`).
		WithArgs("m-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "email", "phone"}).
			AddRow("m-1", "Ada Lovelace", "", ""))

	got, err := records.NewTable[member](db, "members").ForUpdate().Get(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got.FullName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_ForUpdateIgnoredOnSQLite(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := records.NewDB(sqlx.NewDb(sqlDB, "sqlite"), records.SQLite)

	mock.ExpectQuery("^SELECT \\* FROM `members` WHERE \\(`id` = \\?\\)$").
		WithArgs("m-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "email", "phone"}).
			AddRow("m-1", "Ada Lovelace", "", ""))

	_, err = records.NewTable[member](db, "members").ForUpdate().Get(context.Background(), "m-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_SaveInsertsWhenUpdateMisses(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := records.NewDB(sqlx.NewDb(sqlDB, "postgres"), records.Postgres)

	mock.ExpectExec(`UPDATE "members" SET .* WHERE \("id" = \$\d\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO "members"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, records.NewTable[member](db, "members").Save(context.Background(), member{ID: "m-2", FullName: "Grace"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_SQLiteWritersWaitForLock(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "shared.db")

	first, err := records.Open(ctx, "sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { first.Close() })
	second, err := records.Open(ctx, "sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { second.Close() })

	var timeout int64
	require.NoError(t, second.GetContext(ctx, &timeout, "PRAGMA busy_timeout"))
	assert.Equal(t, records.SQLiteBusyTimeout.Milliseconds(), timeout)

	locked := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- first.InTx(ctx, func(tx *records.Tx) error {
			if err := records.NewTable[member](tx, "members").Save(ctx, member{ID: "m-1", FullName: "Holder"}); err != nil {
				return err
			}
			close(locked)
			time.Sleep(200 * time.Millisecond)
			return nil
		})
	}()

	<-locked
	require.NoError(t, records.NewTable[member](second, "members").Save(ctx, member{ID: "m-2", FullName: "Waiter"}))
	require.NoError(t, <-done)

	n, err := records.NewTable[member](second, "members").Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
