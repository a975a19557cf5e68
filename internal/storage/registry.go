package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Entry is one append-only registry record, keyed by (dataset_id,
// dataset_version). Once appended an Entry is immutable.
type Entry struct {
	DatasetID           string    `db:"dataset_id"`
	DatasetVersion      string    `db:"dataset_version"`
	SchemaVersion       string    `db:"schema_version"`
	CreatedAtTs         time.Time `db:"created_at_ts"`
	IngestRunID         string    `db:"ingest_run_id"`
	UniverseHash        string    `db:"universe_hash"`
	CalendarVersion     string    `db:"calendar_version"`
	SessionRulesVersion string    `db:"sessionrules_version"`
	SourceSet           []string  `db:"-"`
	RowCount            int       `db:"row_count"`
	ContentHash         string    `db:"content_hash"`
}

// Registry is the append-only dataset registry contract: single-writer per
// (dataset_id, dataset_version), fails RegistryConflict on duplicate
// publish, and supports an integrity sweep comparing a stored snapshot's
// recomputed content hash against the registered one.
type Registry interface {
	Append(ctx context.Context, e Entry) error
	Get(ctx context.Context, datasetID, datasetVersion string) (Entry, error)
	VerifyIntegrity(ctx context.Context, zone *CanonicalZone, datasetID, datasetVersion string) error
}

// schema (applied out-of-band via migration tooling, not by this package):
//
//	CREATE TABLE dataset_registry (
//	    dataset_id            TEXT NOT NULL,
//	    dataset_version       TEXT NOT NULL,
//	    schema_version        TEXT NOT NULL,
//	    created_at_ts         TIMESTAMPTZ NOT NULL,
//	    ingest_run_id         TEXT NOT NULL,
//	    universe_hash         TEXT NOT NULL,
//	    calendar_version      TEXT NOT NULL,
//	    sessionrules_version  TEXT NOT NULL,
//	    source_set            TEXT[] NOT NULL,
//	    row_count             INTEGER NOT NULL,
//	    content_hash          TEXT NOT NULL,
//	    PRIMARY KEY (dataset_id, dataset_version)
//	);
// Migrations live outside this package; PostgresRegistry assumes the table
// already exists.

// PostgresRegistry implements Registry over a sqlx.DB: QueryRowxContext
// for single-row reads, ExecContext for writes, explicit %w-wrapped errors.
type PostgresRegistry struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPostgresRegistry constructs a PostgresRegistry over db with a
// per-call timeout.
func NewPostgresRegistry(db *sqlx.DB, timeout time.Duration) *PostgresRegistry {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PostgresRegistry{db: db, timeout: timeout}
}

// Append inserts e. A duplicate (dataset_id, dataset_version) primary key
// violation is surfaced as RegistryConflictError, never a raw pq error.
func (r *PostgresRegistry) Append(ctx context.Context, e Entry) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dataset_registry
		(dataset_id, dataset_version, schema_version, created_at_ts, ingest_run_id,
		 universe_hash, calendar_version, sessionrules_version, source_set, row_count, content_hash)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		e.DatasetID, e.DatasetVersion, e.SchemaVersion, e.CreatedAtTs, e.IngestRunID,
		e.UniverseHash, e.CalendarVersion, e.SessionRulesVersion, pq.Array(e.SourceSet), e.RowCount, e.ContentHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &RegistryConflictError{DatasetID: e.DatasetID, DatasetVersion: e.DatasetVersion}
		}
		return fmt.Errorf("storage: registry append: %w", err)
	}
	return nil
}

// Get reads back the entry for (datasetID, datasetVersion).
func (r *PostgresRegistry) Get(ctx context.Context, datasetID, datasetVersion string) (Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var e Entry
	var sourceSet pq.StringArray
	row := r.db.QueryRowxContext(ctx, `
		SELECT dataset_id, dataset_version, schema_version, created_at_ts, ingest_run_id,
		       universe_hash, calendar_version, sessionrules_version, source_set, row_count, content_hash
		FROM dataset_registry WHERE dataset_id=$1 AND dataset_version=$2`,
		datasetID, datasetVersion)
	err := row.Scan(&e.DatasetID, &e.DatasetVersion, &e.SchemaVersion, &e.CreatedAtTs, &e.IngestRunID,
		&e.UniverseHash, &e.CalendarVersion, &e.SessionRulesVersion, &sourceSet, &e.RowCount, &e.ContentHash)
	if err != nil {
		return Entry{}, &NotFoundError{DatasetID: datasetID, DatasetVersion: datasetVersion}
	}
	e.SourceSet = []string(sourceSet)
	return e, nil
}

// VerifyIntegrity recomputes the stored canonical snapshot's content hash
// via zone and compares it to the registered value, callable standalone or
// via `quantlab registry verify`.
func (r *PostgresRegistry) VerifyIntegrity(ctx context.Context, zone *CanonicalZone, datasetID, datasetVersion string) error {
	entry, err := r.Get(ctx, datasetID, datasetVersion)
	if err != nil {
		return err
	}
	actual, err := zone.RecomputeContentHash(datasetID, datasetVersion)
	if err != nil {
		return err
	}
	if actual != entry.ContentHash {
		return &IntegrityError{DatasetID: datasetID, DatasetVersion: datasetVersion, Expected: entry.ContentHash, Actual: actual}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

var _ Registry = (*PostgresRegistry)(nil)
