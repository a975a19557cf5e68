package pricing

import (
	"time"

	"github.com/quantlab/quantlab/internal/instruments"
)

// PriceResult is what a Pricer computes for a single position: the
// unit price used and the resulting native-currency notional, plus any
// quality warnings propagated from the MarketDataView without altering the
// numeric result.
type PriceResult struct {
	UnitPrice      float64
	NotionalNative float64
	FieldUsed      string
	Warnings       []string
}

// Pricer computes a position's native-currency notional for one
// instrument kind.
type Pricer interface {
	Price(inst instruments.Instrument, pos instruments.Position, view MarketDataView, asOf time.Time) (PriceResult, error)
}

// Registry maps InstrumentType to the Pricer responsible for it.
type Registry struct {
	pricers map[instruments.InstrumentType]Pricer
}

// NewRegistry builds the MVP pricer registry: cash, equity, tradable
// index, and linear future. Callers may register additional
// or overriding pricers.
func NewRegistry() *Registry {
	r := &Registry{pricers: map[instruments.InstrumentType]Pricer{}}
	r.Register(instruments.TypeCash, CashPricer{})
	r.Register(instruments.TypeEquity, EquityPricer{})
	r.Register(instruments.TypeIndex, EquityPricer{}) // tradable index prices identically to equity
	r.Register(instruments.TypeFuture, FuturePricer{})
	return r
}

// Register installs (or overrides) the pricer for a kind.
func (r *Registry) Register(kind instruments.InstrumentType, p Pricer) { r.pricers[kind] = p }

// Price dispatches to the registered pricer for inst's kind, failing fast
// if none is registered.
func (r *Registry) Price(inst instruments.Instrument, pos instruments.Position, view MarketDataView, asOf time.Time) (PriceResult, error) {
	p, ok := r.pricers[inst.InstrumentType]
	if !ok {
		return PriceResult{}, &MissingPricerError{Kind: string(inst.InstrumentType)}
	}
	return p.Price(inst, pos, view, asOf)
}

// CashPricer prices cash: notional equals quantity, unit price is 1, no
// market-data lookup.
type CashPricer struct{}

func (CashPricer) Price(_ instruments.Instrument, pos instruments.Position, _ MarketDataView, _ time.Time) (PriceResult, error) {
	return PriceResult{UnitPrice: 1, NotionalNative: pos.Quantity}, nil
}

// EquityPricer prices equities and tradable indices via close price.
type EquityPricer struct{}

func (EquityPricer) Price(inst instruments.Instrument, pos instruments.Position, view MarketDataView, asOf time.Time) (PriceResult, error) {
	if inst.MarketDataID == nil {
		return PriceResult{}, &MissingPriceError{Asset: string(inst.InstrumentID), Field: "close"}
	}
	point, err := view.GetPoint(*inst.MarketDataID, "close", asOf)
	if err != nil {
		return PriceResult{}, &MissingPriceError{Asset: string(*inst.MarketDataID), Field: "close"}
	}
	return PriceResult{
		UnitPrice:      point.Value,
		NotionalNative: pos.Quantity * point.Value,
		FieldUsed:      "close",
		Warnings:       flattenPointWarnings(point),
	}, nil
}

// FuturePricer prices linear futures (MTM only, no margining/roll).
type FuturePricer struct{}

func (FuturePricer) Price(inst instruments.Instrument, pos instruments.Position, view MarketDataView, asOf time.Time) (PriceResult, error) {
	if inst.MarketDataID == nil {
		return PriceResult{}, &MissingPriceError{Asset: string(inst.InstrumentID), Field: "close"}
	}
	spec, ok := inst.Spec.(instruments.FutureSpec)
	if !ok {
		return PriceResult{}, &MissingPricerError{Kind: string(inst.InstrumentType)}
	}
	point, err := view.GetPoint(*inst.MarketDataID, "close", asOf)
	if err != nil {
		return PriceResult{}, &MissingPriceError{Asset: string(*inst.MarketDataID), Field: "close"}
	}
	return PriceResult{
		UnitPrice:      point.Value,
		NotionalNative: pos.Quantity * point.Value * spec.Multiplier,
		FieldUsed:      "close",
		Warnings:       flattenPointWarnings(point),
	}, nil
}

func flattenPointWarnings(p MarketPoint) []string {
	var out []string
	for field, flags := range p.Meta {
		for _, f := range flags.Sorted() {
			out = append(out, field+":"+f)
		}
	}
	return out
}
