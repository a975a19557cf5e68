package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/quantlab/quantlab/internal/hashing"
	"github.com/quantlab/quantlab/internal/quantschema"
)

// CanonicalMetadata is the sidecar written as "_metadata.json" alongside
// every published canonical snapshot part file.
type CanonicalMetadata struct {
	DatasetID      string    `json:"dataset_id"`
	DatasetVersion string    `json:"dataset_version"`
	SchemaVersion  string    `json:"schema_version"`
	CreatedAtTs    time.Time `json:"created_at_ts"`
	IngestRunID    string    `json:"ingest_run_id"`
	RowCount       int       `json:"row_count"`
	ContentHash    string    `json:"content_hash"`
}

// CanonicalZone is the write-once store for canonical snapshots, keyed by
// (dataset_id, dataset_version):
// canonical/dataset_id=<DID>/dataset_version=<DV>/{part-*, _metadata.json}.
// Publish is atomic because the underlying Zone.Put is: the part file and
// metadata sidecar are each staged then renamed into place, and a reader
// only ever sees a key once its rename completed.
type CanonicalZone struct {
	zone Zone
}

// NewCanonicalZone wraps zone as a CanonicalZone.
func NewCanonicalZone(zone Zone) *CanonicalZone { return &CanonicalZone{zone: zone} }

func canonicalBaseKey(datasetID, datasetVersion string) string {
	return fmt.Sprintf("dataset_id=%s/dataset_version=%s", datasetID, datasetVersion)
}

// Publish content-hashes recs, writes a single "part-0.json" (the canonical
// JSON record set — real deployments would shard into multiple
// "part-N.json"/parquet files, the storage key scheme already supports
// it) and "_metadata.json", and returns the computed content hash for
// registry append. Publish never overwrites an existing dataset_version:
// a retry for an already-published version fails with
// SnapshotOverwriteError.
func (z *CanonicalZone) Publish(datasetID, datasetVersion, schemaVersion, ingestRunID string, recs quantschema.BarRecordSet, createdAt time.Time) (CanonicalMetadata, error) {
	contentHash, err := hashing.ContentHash(recs)
	if err != nil {
		return CanonicalMetadata{}, fmt.Errorf("storage: content hash canonical snapshot: %w", err)
	}
	body, err := hashing.CanonicalJSON(recs)
	if err != nil {
		return CanonicalMetadata{}, fmt.Errorf("storage: canonical json: %w", err)
	}

	meta := CanonicalMetadata{
		DatasetID:      datasetID,
		DatasetVersion: datasetVersion,
		SchemaVersion:  schemaVersion,
		CreatedAtTs:    createdAt.UTC(),
		IngestRunID:    ingestRunID,
		RowCount:       len(recs),
		ContentHash:    contentHash,
	}
	metaBody, err := json.Marshal(meta)
	if err != nil {
		return CanonicalMetadata{}, fmt.Errorf("storage: marshal canonical metadata: %w", err)
	}

	base := canonicalBaseKey(datasetID, datasetVersion)
	if err := z.zone.Put(base+"/part-0.json", body); err != nil {
		return CanonicalMetadata{}, fmt.Errorf("storage: put canonical part: %w", err)
	}
	if err := z.zone.Put(base+"/_metadata.json", metaBody); err != nil {
		return CanonicalMetadata{}, fmt.Errorf("storage: put canonical metadata: %w", err)
	}
	return meta, nil
}

// ReadMetadata reads back "_metadata.json" for (datasetID, datasetVersion).
func (z *CanonicalZone) ReadMetadata(datasetID, datasetVersion string) (CanonicalMetadata, error) {
	raw, err := z.zone.Get(canonicalBaseKey(datasetID, datasetVersion) + "/_metadata.json")
	if err != nil {
		return CanonicalMetadata{}, fmt.Errorf("storage: read canonical metadata: %w", err)
	}
	var meta CanonicalMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return CanonicalMetadata{}, fmt.Errorf("storage: unmarshal canonical metadata: %w", err)
	}
	return meta, nil
}

// RecomputeContentHash re-reads "part-0.json" and hashes its bytes with
// sha256, used by Registry.VerifyIntegrity — a byte-level check distinct
// from recanonicalizing the records, since what is stored IS the canonical
// JSON already.
func (z *CanonicalZone) RecomputeContentHash(datasetID, datasetVersion string) (string, error) {
	raw, err := z.zone.Get(canonicalBaseKey(datasetID, datasetVersion) + "/part-0.json")
	if err != nil {
		return "", fmt.Errorf("storage: read canonical part: %w", err)
	}
	return hashing.Sha256Hex(raw), nil
}
