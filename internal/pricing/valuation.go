package pricing

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/quantlab/quantlab/internal/instruments"
	"github.com/quantlab/quantlab/internal/quantschema"
)

// PositionValuation is the per-position output of ValuationEngine.Value.
type PositionValuation struct {
	InstrumentID    quantschema.InstrumentId
	Currency        quantschema.Currency
	UnitPrice       float64
	FieldUsed       string
	AsOf            time.Time
	Quantity        float64
	NotionalNative  float64
	NotionalBase    float64
	FxAssetIDUsed   *quantschema.MarketDataId
	FxInverted      bool
	FxRateEffective float64
	Warnings        []string
}

// CurrencyBreakdown is the per-currency reconciliation entry in
// PortfolioValuation.
type CurrencyBreakdown struct {
	SumNative float64
	SumBase   float64
}

// PortfolioValuation is the aggregated valuation output.
type PortfolioValuation struct {
	AsOf           time.Time
	BaseCurrency   quantschema.Currency
	NavBase        float64
	Positions      []PositionValuation
	BreakdownByCcy map[quantschema.Currency]CurrencyBreakdown
}

// Engine is the valuation engine: given an instrument catalog and a
// market-data view, it resolves pricers and FX rates and computes a
// portfolio's NAV in base currency.
type Engine struct {
	Registry *Registry
}

// NewEngine constructs a valuation engine over the MVP pricer registry.
func NewEngine() *Engine {
	return &Engine{Registry: NewRegistry()}
}

// Instruments maps instrument_id to its catalog entry, used to resolve a
// Portfolio's positions into priceable instruments.
type Instruments map[quantschema.InstrumentId]instruments.Instrument

// Value computes a PortfolioValuation for portfolio in baseCcy as of asOf.
func (e *Engine) Value(portfolio instruments.Portfolio, catalog Instruments, view MarketDataView, baseCcy quantschema.Currency, asOf time.Time) (PortfolioValuation, error) {
	out := PortfolioValuation{
		AsOf:           asOf,
		BaseCurrency:   baseCcy,
		Positions:      make([]PositionValuation, 0, len(portfolio.Positions)),
		BreakdownByCcy: map[quantschema.Currency]CurrencyBreakdown{},
	}

	for _, pos := range portfolio.Positions {
		inst, ok := catalog[pos.InstrumentID]
		if !ok {
			return PortfolioValuation{}, fmt.Errorf("valuation: unknown instrument_id %q", pos.InstrumentID)
		}
		result, err := e.Registry.Price(inst, pos, view, asOf)
		if err != nil {
			return PortfolioValuation{}, fmt.Errorf("valuation: pricing %q: %w", pos.InstrumentID, err)
		}

		nativeCcy := baseCcy
		if inst.Currency != nil {
			nativeCcy = *inst.Currency
		}

		fx, err := ResolveFX(view, nativeCcy, baseCcy, asOf)
		if err != nil {
			return PortfolioValuation{}, fmt.Errorf("valuation: fx for %q: %w", pos.InstrumentID, err)
		}

		notionalBase := result.NotionalNative * fx.RateEffective
		if math.IsNaN(notionalBase) || math.IsInf(notionalBase, 0) {
			return PortfolioValuation{}, &NonFiniteInputError{Field: "notional_base", Value: notionalBase}
		}

		pv := PositionValuation{
			InstrumentID:    pos.InstrumentID,
			Currency:        nativeCcy,
			UnitPrice:       result.UnitPrice,
			FieldUsed:       result.FieldUsed,
			AsOf:            asOf,
			Quantity:        pos.Quantity,
			NotionalNative:  result.NotionalNative,
			NotionalBase:    notionalBase,
			FxAssetIDUsed:   fx.AssetIDUsed,
			FxInverted:      fx.Inverted,
			FxRateEffective: fx.RateEffective,
			Warnings:        result.Warnings,
		}
		out.Positions = append(out.Positions, pv)
		out.NavBase += notionalBase

		bd := out.BreakdownByCcy[nativeCcy]
		bd.SumNative += result.NotionalNative
		bd.SumBase += notionalBase
		out.BreakdownByCcy[nativeCcy] = bd
	}

	for ccy, amount := range portfolio.Cash {
		fx, err := ResolveFX(view, ccy, baseCcy, asOf)
		if err != nil {
			return PortfolioValuation{}, fmt.Errorf("valuation: fx for cash %q: %w", ccy, err)
		}
		base := amount * fx.RateEffective
		out.NavBase += base
		bd := out.BreakdownByCcy[ccy]
		bd.SumNative += amount
		bd.SumBase += base
		out.BreakdownByCcy[ccy] = bd
	}

	sort.Slice(out.Positions, func(i, j int) bool {
		return out.Positions[i].InstrumentID < out.Positions[j].InstrumentID
	})
	return out, nil
}
