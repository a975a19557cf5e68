package ingest

import (
	"fmt"

	"github.com/quantlab/quantlab/internal/hashing"
)

// CanonicalMap implements hashing.Canonicalizer so a FetchRequest's
// content hash can key the raw zone, independent of instrument/field
// insertion order.
func (r FetchRequest) CanonicalMap() (map[string]interface{}, error) {
	ids := make([]string, len(r.InstrumentIDs))
	for i, id := range r.InstrumentIDs {
		ids[i] = string(id)
	}
	return map[string]interface{}{
		"dataset_id":   r.DatasetID,
		"instruments":  hashing.SortedStrings(ids),
		"start":        hashing.ISODate(r.Start),
		"end":          hashing.ISODate(r.End),
		"fields":       hashing.SortedStrings(r.Fields),
		"granularity":  string(r.Granularity),
	}, nil
}

// Fingerprint computes the FetchRequest's content hash, used as the
// request-fingerprint component of the raw zone key.
func (r FetchRequest) Fingerprint() (string, error) {
	hash, err := hashing.ContentHash(r)
	if err != nil {
		return "", fmt.Errorf("ingest: fingerprint fetch request: %w", err)
	}
	return hash, nil
}

var _ hashing.Canonicalizer = FetchRequest{}
