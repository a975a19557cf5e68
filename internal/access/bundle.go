package access

import (
	"fmt"
	"sort"
	"time"

	"github.com/quantlab/quantlab/internal/pricing"
	"github.com/quantlab/quantlab/internal/quantschema"
	"github.com/quantlab/quantlab/internal/risk"
)

// ColumnKey is the (asset_id, field) tuple key the minimal columnar
// representation uses instead of a pandas-style multi-index, so the
// structure stays explicit at every call site.
type ColumnKey struct {
	Asset quantschema.MarketDataId
	Field string
}

// AssetMeta carries the per-asset metadata a bundle's consumers need
// without re-deriving it: the provider symbol actually used and any
// per-asset warnings (e.g. a dropped-date count under DROP_DATES).
type AssetMeta struct {
	ProviderSymbol string
	Warnings       []string
}

// QualitySummary aggregates the guardrail and missing-data outcomes across
// every asset/field in a bundle.
type QualitySummary struct {
	MissingCount       int
	DroppedDateCount   int
	DuplicatesResolved int
	Flags              map[quantschema.MarketDataId]quantschema.QualityFlagSet
}

// LineageMeta is the replay/provenance record a bundle and its manifest
// both carry.
type LineageMeta struct {
	Provider       string
	IngestionTsUTC time.Time
	AsOfUTC        *time.Time
	DatasetVersion string
	CodeVersion    string
	RequestHash    string
}

// Bundle is the aligned time-series result the access service returns:
// a sorted unique date index shared by every column, a columnar value
// store keyed by (asset, field), per-asset metadata, a quality summary,
// and lineage. Bundle owns its arrays; nothing aliases another bundle's
// backing slices.
type Bundle struct {
	Dates      []string
	Columns    map[ColumnKey][]*float64
	AssetsMeta map[quantschema.MarketDataId]AssetMeta
	Quality    QualitySummary
	Lineage    LineageMeta
}

// CanonicalMap implements hashing.Canonicalizer so a bundle's content hash
// (the market_data_bundle_hash risk/stress reports cite as lineage) is
// computed the same way as every other identity in the repo.
func (b *Bundle) CanonicalMap() (map[string]interface{}, error) {
	keys := make([]ColumnKey, 0, len(b.Columns))
	for k := range b.Columns {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Asset != keys[j].Asset {
			return keys[i].Asset < keys[j].Asset
		}
		return keys[i].Field < keys[j].Field
	})
	cols := make([]interface{}, 0, len(keys))
	for _, k := range keys {
		vals := make([]interface{}, len(b.Dates))
		for i, v := range b.Columns[k] {
			if v == nil {
				vals[i] = nil
			} else {
				vals[i] = *v
			}
		}
		cols = append(cols, map[string]interface{}{
			"asset": string(k.Asset), "field": k.Field, "values": vals,
		})
	}
	return map[string]interface{}{
		"dates":   append([]string(nil), b.Dates...),
		"columns": cols,
	}, nil
}

// valueAt returns the column's value on or before asOf's calendar date,
// enforcing the anti-look-ahead invariant: no value strictly after asOf is
// ever returned.
func (b *Bundle) valueAt(asset quantschema.MarketDataId, field string, asOf time.Time) (float64, bool) {
	col, ok := b.Columns[ColumnKey{Asset: asset, Field: field}]
	if !ok {
		return 0, false
	}
	cutoff := asOf.UTC().Format("2006-01-02")
	for i := len(b.Dates) - 1; i >= 0; i-- {
		if b.Dates[i] > cutoff {
			continue
		}
		if col[i] != nil {
			return *col[i], true
		}
		return 0, false
	}
	return 0, false
}

// GetValue implements pricing.MarketDataView.
func (b *Bundle) GetValue(asset quantschema.MarketDataId, field string, asOf time.Time) (float64, error) {
	v, ok := b.valueAt(asset, field, asOf)
	if !ok {
		return 0, fmt.Errorf("access: no value for asset %q field %q as of %s", asset, field, asOf.UTC().Format("2006-01-02"))
	}
	return v, nil
}

// HasValue implements pricing.MarketDataView.
func (b *Bundle) HasValue(asset quantschema.MarketDataId, field string, asOf time.Time) bool {
	_, ok := b.valueAt(asset, field, asOf)
	return ok
}

// GetPoint implements pricing.MarketDataView, propagating the asset's
// quality flags as metadata without altering the numeric value.
func (b *Bundle) GetPoint(asset quantschema.MarketDataId, field string, asOf time.Time) (pricing.MarketPoint, error) {
	v, err := b.GetValue(asset, field, asOf)
	if err != nil {
		return pricing.MarketPoint{}, err
	}
	meta := map[string]quantschema.QualityFlagSet{}
	if flags, ok := b.Quality.Flags[asset]; ok {
		meta[string(asset)] = flags
	}
	return pricing.MarketPoint{Value: v, Meta: meta}, nil
}

// Series extracts a risk.PriceSeries for (asset, field) over the bundle's
// full date index, the shape the risk engine's return builders consume.
func (b *Bundle) Series(asset quantschema.MarketDataId, field string) (risk.PriceSeries, bool) {
	col, ok := b.Columns[ColumnKey{Asset: asset, Field: field}]
	if !ok {
		return risk.PriceSeries{}, false
	}
	return risk.PriceSeries{Dates: append([]string(nil), b.Dates...), Values: col}, true
}

var (
	_ pricing.MarketDataView = (*Bundle)(nil)
	_ risk.SeriesSource      = (*Bundle)(nil)
)
