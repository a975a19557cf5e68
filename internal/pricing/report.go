package pricing

import (
	"github.com/quantlab/quantlab/internal/hashing"
)

// CanonicalMap implements hashing.Canonicalizer for PositionValuation,
// recording every input used (price, field, date) and the FX metadata the
// audit trail requires.
func (v PositionValuation) CanonicalMap() (map[string]interface{}, error) {
	m := map[string]interface{}{
		"instrument_id":     string(v.InstrumentID),
		"currency":          string(v.Currency),
		"unit_price":        v.UnitPrice,
		"field_used":        v.FieldUsed,
		"as_of":             hashing.ISOTime(v.AsOf),
		"quantity":          v.Quantity,
		"notional_native":   v.NotionalNative,
		"notional_base":     v.NotionalBase,
		"fx_inverted":       v.FxInverted,
		"fx_rate_effective": v.FxRateEffective,
		"warnings":          hashing.SortedStrings(v.Warnings),
	}
	if v.FxAssetIDUsed != nil {
		m["fx_asset_id_used"] = string(*v.FxAssetIDUsed)
	}
	return m, nil
}

// CanonicalMap implements hashing.Canonicalizer for PortfolioValuation:
// positions are already in canonical instrument_id order, currency keys
// sort lexicographically under canonical JSON.
func (v PortfolioValuation) CanonicalMap() (map[string]interface{}, error) {
	positions := make([]interface{}, 0, len(v.Positions))
	for _, pv := range v.Positions {
		m, err := pv.CanonicalMap()
		if err != nil {
			return nil, err
		}
		positions = append(positions, m)
	}

	breakdown := make(map[string]interface{}, len(v.BreakdownByCcy))
	for ccy, bd := range v.BreakdownByCcy {
		sumNative, err := hashing.Finite(bd.SumNative, "breakdown.sum_native")
		if err != nil {
			return nil, err
		}
		sumBase, err := hashing.Finite(bd.SumBase, "breakdown.sum_base")
		if err != nil {
			return nil, err
		}
		breakdown[string(ccy)] = map[string]interface{}{
			"sum_native": sumNative,
			"sum_base":   sumBase,
		}
	}

	nav, err := hashing.Finite(v.NavBase, "nav_base")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"as_of":            hashing.ISOTime(v.AsOf),
		"base_currency":    string(v.BaseCurrency),
		"nav_base":         nav,
		"positions":        positions,
		"breakdown_by_ccy": breakdown,
	}, nil
}

var (
	_ hashing.Canonicalizer = PositionValuation{}
	_ hashing.Canonicalizer = PortfolioValuation{}
)
