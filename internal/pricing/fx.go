package pricing

import (
	"math"
	"time"

	"github.com/quantlab/quantlab/internal/hashing"
	"github.com/quantlab/quantlab/internal/quantschema"
)

// FXEURUSDAssetID is the canonical FX series this resolver consults: USD
// price of one EUR (Policy B).
const FXEURUSDAssetID quantschema.MarketDataId = "FX.EURUSD"

const fxField = "rate"

// FXResolution is the resolved effective FX rate plus the lineage metadata
// the valuation engine must record per position.
type FXResolution struct {
	RateEffective float64
	AssetIDUsed   *quantschema.MarketDataId
	Inverted      bool
}

// ResolveFX computes the effective rate to convert a native-currency amount
// into base currency as of asOf, per Policy B.
func ResolveFX(view MarketDataView, native, base quantschema.Currency, asOf time.Time) (FXResolution, error) {
	if native == base {
		return FXResolution{RateEffective: 1}, nil
	}
	if err := requireSupportedCurrency(native); err != nil {
		return FXResolution{}, err
	}
	if err := requireSupportedCurrency(base); err != nil {
		return FXResolution{}, err
	}

	if !view.HasValue(FXEURUSDAssetID, fxField, asOf) {
		return FXResolution{}, &MissingFxRateError{AsOf: hashing.ISOTime(asOf)}
	}
	raw, err := view.GetValue(FXEURUSDAssetID, fxField, asOf)
	if err != nil {
		return FXResolution{}, &MissingFxRateError{AsOf: hashing.ISOTime(asOf)}
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) || raw <= 0 {
		return FXResolution{}, &InvalidFxRateError{Rate: raw}
	}

	assetUsed := FXEURUSDAssetID
	switch {
	case native == "EUR" && base == "USD":
		return FXResolution{RateEffective: raw, AssetIDUsed: &assetUsed}, nil
	case native == "USD" && base == "EUR":
		return FXResolution{RateEffective: 1 / raw, AssetIDUsed: &assetUsed, Inverted: true}, nil
	default:
		// Unreachable given requireSupportedCurrency above restricts to
		// {EUR,USD}, but kept explicit rather than relying on that.
		return FXResolution{}, &UnsupportedCurrencyError{Currency: string(native) + "/" + string(base)}
	}
}

func requireSupportedCurrency(c quantschema.Currency) error {
	if c != "EUR" && c != "USD" {
		return &UnsupportedCurrencyError{Currency: string(c)}
	}
	return nil
}
