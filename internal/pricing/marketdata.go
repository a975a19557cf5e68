// Package pricing implements the pricing/valuation engine: a read-only
// market-data view protocol, an FX resolver, a pluggable
// pricer registry, and the valuation engine that aggregates per-position
// results into a portfolio NAV with per-currency breakdown.
package pricing

import (
	"time"

	"github.com/quantlab/quantlab/internal/quantschema"
)

// MarketPoint is a single observed value with optional propagated quality
// metadata.
type MarketPoint struct {
	Value float64
	Meta  map[string]quantschema.QualityFlagSet
}

// MarketDataView is the read-only protocol pricing depends on. Nothing in
// this package may depend on how values are produced (bundle, cache,
// fixture) — only on this interface.
type MarketDataView interface {
	GetValue(asset quantschema.MarketDataId, field string, asOf time.Time) (float64, error)
	HasValue(asset quantschema.MarketDataId, field string, asOf time.Time) bool
	GetPoint(asset quantschema.MarketDataId, field string, asOf time.Time) (MarketPoint, error)
}
