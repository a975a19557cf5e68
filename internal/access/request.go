package access

import (
	"fmt"
	"time"

	"github.com/quantlab/quantlab/internal/hashing"
	"github.com/quantlab/quantlab/internal/quantschema"
)

// TimeSeriesRequest describes an access-service bundle request: the asset
// set, fields, date range, and the policies that govern reindexing,
// deduplication, and guardrail flagging.
type TimeSeriesRequest struct {
	Provider          string
	AssetIDs          []quantschema.MarketDataId
	Fields            []string
	Start             time.Time
	End               time.Time
	AsOf              time.Time
	MissingDataPolicy MissingDataPolicy
	ValidationPolicy  ValidationPolicy
}

// CanonicalMap implements hashing.Canonicalizer so a request's content
// hash is independent of asset/field insertion order and fixes the
// request-level identity the manifest cache keys on.
func (r TimeSeriesRequest) CanonicalMap() (map[string]interface{}, error) {
	assets := make([]string, len(r.AssetIDs))
	for i, a := range r.AssetIDs {
		assets[i] = string(a)
	}
	return map[string]interface{}{
		"provider":            r.Provider,
		"assets":              hashing.SortedStrings(assets),
		"fields":              hashing.SortedStrings(r.Fields),
		"start":               hashing.ISODate(r.Start),
		"end":                 hashing.ISODate(r.End),
		"as_of":               hashing.ISOTime(r.AsOf),
		"missing_data_policy": string(r.MissingDataPolicy),
		"validation_policy":   r.ValidationPolicy.canonicalMap(),
	}, nil
}

// Hash computes the request_hash used to key the manifest cache.
func (r TimeSeriesRequest) Hash() (string, error) {
	hash, err := hashing.ContentHash(r)
	if err != nil {
		return "", fmt.Errorf("access: hash request: %w", err)
	}
	return hash, nil
}

var _ hashing.Canonicalizer = TimeSeriesRequest{}
