// Package storage implements the storage zones and dataset registry: a raw
// zone keyed by (ingest_run_id, request_fingerprint), a canonical zone
// keyed by (dataset_id, dataset_version) published by stage-then-rename,
// and an append-only registry.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Zone is the storage-zone contract both the local filesystem and the
// optional S3 backend implement. Keys are zone-relative paths; Put is
// atomic (stage-then-rename for the filesystem backend, single PutObject
// for S3) and never overwrites an existing key.
type Zone interface {
	Exists(key string) (bool, error)
	Put(key string, data []byte) error
	Get(key string) ([]byte, error)
}

// LocalZone implements Zone on the local filesystem using a stage
// directory and atomic rename, generalized to arbitrary zone keys.
type LocalZone struct {
	Root string
}

// NewLocalZone constructs a LocalZone rooted at root, creating it if
// necessary.
func NewLocalZone(root string) (*LocalZone, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create zone root %s: %w", root, err)
	}
	return &LocalZone{Root: root}, nil
}

// Exists reports whether key has already been published.
func (z *LocalZone) Exists(key string) (bool, error) {
	_, err := os.Stat(filepath.Join(z.Root, key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("storage: stat %s: %w", key, err)
}

// Put writes data at key via a stage file + atomic rename; it refuses to
// overwrite an existing key (write-once).
func (z *LocalZone) Put(key string, data []byte) error {
	exists, err := z.Exists(key)
	if err != nil {
		return err
	}
	if exists {
		return &SnapshotOverwriteError{Key: key}
	}

	final := filepath.Join(z.Root, key)
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir for %s: %w", key, err)
	}

	stage := final + ".stage"
	if err := os.WriteFile(stage, data, 0o644); err != nil {
		return fmt.Errorf("storage: write stage file for %s: %w", key, err)
	}
	if err := os.Rename(stage, final); err != nil {
		_ = os.Remove(stage)
		return fmt.Errorf("storage: rename stage to final for %s: %w", key, err)
	}

	log.Debug().Str("zone_root", z.Root).Str("key", key).Int("bytes", len(data)).Msg("zone key published")
	return nil
}

// Get reads the bytes published at key.
func (z *LocalZone) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(z.Root, key))
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", key, err)
	}
	return data, nil
}

var _ Zone = (*LocalZone)(nil)
