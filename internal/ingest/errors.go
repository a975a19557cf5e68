package ingest

import "fmt"

// ProviderFetchError wraps a transport/auth failure from a ProviderAdapter.
type ProviderFetchError struct {
	Provider string
	Err      error
}

func (e *ProviderFetchError) Error() string {
	return fmt.Sprintf("ingest: provider %q fetch failed: %v", e.Provider, e.Err)
}
func (e *ProviderFetchError) Unwrap() error { return e.Err }

// NormalizationError reports a raw payload that does not match the shape
// the Normalizer expects for its dataset.
type NormalizationError struct {
	DatasetID string
	Reason    string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("ingest: normalize dataset %q: %s", e.DatasetID, e.Reason)
}

// ValidationError reports a hard-rule violation that blocks publishing.
type ValidationError struct {
	InstrumentID string
	Field        string
	Reason       string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ingest: validation failed for %q field %q: %s", e.InstrumentID, e.Field, e.Reason)
}

// StorageError wraps a raw/canonical zone write failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("ingest: storage op %q: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }
