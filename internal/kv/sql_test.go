package kv

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newSQLMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "postgres"), mock, func() { db.Close() }
}

func TestSQLBackendLoadNotFound(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	backend := NewSQLBackend(db, "postgres")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT payload FROM kv_store WHERE store_key = $1")).
		WithArgs("students").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	_, err := backend.Load(context.Background(), "students")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLBackendLoad(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	backend := NewSQLBackend(db, "postgres")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT payload FROM kv_store WHERE store_key = $1")).
		WithArgs("marks").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(`[{"id":"1"}]`))

	raw, err := backend.Load(context.Background(), "marks")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"1"}]`, string(raw))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLBackendSave(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	backend := NewSQLBackend(db, "postgres")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO kv_store (store_key, payload, updated_at) VALUES ($1, $2, $3)")).
		WithArgs("faculty", "[]", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, backend.Save(context.Background(), "faculty", []byte("[]")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLBackendSaveError(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	backend := NewSQLBackend(db, "postgres")

	mock.ExpectExec("INSERT INTO kv_store").WillReturnError(errors.New("connection reset"))

	err := backend.Save(context.Background(), "faculty", []byte("[]"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save faculty")
}

func TestSQLBackendEnsureSchemaAndKeys(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	backend := NewSQLBackend(db, "postgres")

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS kv_store").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT store_key FROM kv_store ORDER BY store_key ASC").
		WillReturnRows(sqlmock.NewRows([]string{"store_key"}).AddRow("batches").AddRow("students"))

	require.NoError(t, backend.EnsureSchema(context.Background()))
	keys, err := backend.Keys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"batches", "students"}, keys)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteBackendPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "portal.db")

	open := func() *SQLBackend {
		db, err := sqlx.Open("sqlite", path)
		require.NoError(t, err)
		backend := NewSQLBackend(db, "sqlite")
		require.NoError(t, backend.EnsureSchema(ctx))
		return backend
	}

	first := open()
	store := NewStore(first)
	require.NoError(t, Write(ctx, store, "students", []record{{ID: "1", Name: "Asha"}}))
	require.NoError(t, Write(ctx, store, "students", []record{{ID: "1", Name: "Asha"}, {ID: "2", Name: "Bala"}}))
	require.NoError(t, first.Close())

	second := open()
	defer second.Close()
	items, err := Read[record](ctx, NewStore(second), "students")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	keys, err := second.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"students"}, keys)
}
