package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRegistry(t *testing.T) (*PostgresRegistry, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRegistry(sqlx.NewDb(db, "postgres"), time.Second), mock
}

func TestPostgresRegistryAppend(t *testing.T) {
	registry, mock := newMockRegistry(t)

	mock.ExpectExec("INSERT INTO dataset_registry").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := registry.Append(context.Background(), Entry{
		DatasetID:      "us_equities_eod",
		DatasetVersion: "2024-01-02",
		SchemaVersion:  "1",
		CreatedAtTs:    time.Now().UTC(),
		IngestRunID:    "run-1",
		SourceSet:      []string{"fixture"},
		RowCount:       10,
		ContentHash:    "abc123",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRegistryAppendConflict(t *testing.T) {
	registry, mock := newMockRegistry(t)

	mock.ExpectExec("INSERT INTO dataset_registry").
		WillReturnError(&pq.Error{Code: "23505"})

	err := registry.Append(context.Background(), Entry{DatasetID: "ds", DatasetVersion: "v1"})
	require.Error(t, err)
	var conflict *RegistryConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestPostgresRegistryGet(t *testing.T) {
	registry, mock := newMockRegistry(t)

	createdAt := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"dataset_id", "dataset_version", "schema_version", "created_at_ts", "ingest_run_id",
		"universe_hash", "calendar_version", "sessionrules_version", "source_set", "row_count", "content_hash",
	}).AddRow("ds", "v1", "1", createdAt, "run-1", "uhash", "cal-1", "rules-1", pq.Array([]string{"fixture"}), 10, "abc123")

	mock.ExpectQuery("SELECT (.+) FROM dataset_registry").WillReturnRows(rows)

	entry, err := registry.Get(context.Background(), "ds", "v1")
	require.NoError(t, err)
	assert.Equal(t, "abc123", entry.ContentHash)
	assert.Equal(t, []string{"fixture"}, entry.SourceSet)
}

func TestPostgresRegistryGetNotFound(t *testing.T) {
	registry, mock := newMockRegistry(t)

	mock.ExpectQuery("SELECT (.+) FROM dataset_registry").WillReturnError(sql.ErrNoRows)

	_, err := registry.Get(context.Background(), "ds", "missing")
	require.Error(t, err)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}
