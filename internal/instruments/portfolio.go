package instruments

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/quantlab/quantlab/internal/quantschema"
)

// Position is a long-only holding of one instrument. MVP does not support
// short positions.
type Position struct {
	InstrumentID quantschema.InstrumentId
	Quantity     float64
}

// Validate enforces Position's invariants.
func (p Position) Validate() error {
	if p.InstrumentID == "" {
		return &quantschema.FieldError{Field: "position.instrument_id", Reason: "must not be empty"}
	}
	if math.IsNaN(p.Quantity) || math.IsInf(p.Quantity, 0) {
		return &quantschema.FieldError{Field: "position.quantity", Reason: "must be finite", Value: p.Quantity}
	}
	if p.Quantity < 0 {
		return &quantschema.FieldError{Field: "position.quantity", Reason: "must be >= 0 (long-only)", Value: p.Quantity}
	}
	return nil
}

// Portfolio is an immutable, canonically ordered snapshot of positions and
// cash balances as of a point in time.
type Portfolio struct {
	SchemaVersion string
	AsOf          time.Time // must carry an explicit UTC offset
	Positions     []Position
	Cash          map[quantschema.Currency]float64
	Meta          map[string]string
}

// NewPortfolio validates and constructs a Portfolio, sorting positions by
// instrument_id and normalizing cash keys to uppercase for canonical order.
// Duplicate instrument_ids across positions are rejected, never merged.
func NewPortfolio(schemaVersion string, asOf time.Time, positions []Position, cash map[quantschema.Currency]float64, meta map[string]string) (Portfolio, error) {
	if asOf.IsZero() {
		return Portfolio{}, &quantschema.FieldError{Field: "portfolio.as_of", Reason: "must be set"}
	}

	seen := make(map[quantschema.InstrumentId]struct{}, len(positions))
	sorted := make([]Position, len(positions))
	copy(sorted, positions)
	for _, p := range sorted {
		if err := p.Validate(); err != nil {
			return Portfolio{}, err
		}
		if _, dup := seen[p.InstrumentID]; dup {
			return Portfolio{}, &quantschema.FieldError{Field: "portfolio.positions", Reason: "duplicate instrument_id", Value: string(p.InstrumentID)}
		}
		seen[p.InstrumentID] = struct{}{}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].InstrumentID < sorted[j].InstrumentID })

	normCash := make(map[quantschema.Currency]float64, len(cash))
	for ccy, v := range cash {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Portfolio{}, &quantschema.FieldError{Field: "portfolio.cash", Reason: "must be finite", Value: v}
		}
		upper, err := quantschema.NewCurrency(string(ccy))
		if err != nil {
			return Portfolio{}, fmt.Errorf("portfolio.cash: %w", err)
		}
		normCash[upper] = v
	}

	return Portfolio{
		SchemaVersion: schemaVersion,
		AsOf:          asOf,
		Positions:     sorted,
		Cash:          normCash,
		Meta:          meta,
	}, nil
}

// SortedCashCurrencies returns the portfolio's cash currency keys in
// canonical (sorted, uppercase) order.
func (p Portfolio) SortedCashCurrencies() []quantschema.Currency {
	out := make([]quantschema.Currency, 0, len(p.Cash))
	for ccy := range p.Cash {
		out = append(out, ccy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CanonicalMap implements hashing.Canonicalizer: positions already sorted
// by instrument_id, cash keys uppercased and sorted.
func (p Portfolio) CanonicalMap() (map[string]interface{}, error) {
	positions := make([]interface{}, 0, len(p.Positions))
	for _, pos := range p.Positions {
		qty, err := roundTripFinite(pos.Quantity, "position.quantity")
		if err != nil {
			return nil, err
		}
		positions = append(positions, map[string]interface{}{
			"instrument_id": string(pos.InstrumentID),
			"quantity":      qty,
		})
	}
	cash := make(map[string]interface{}, len(p.Cash))
	for _, ccy := range p.SortedCashCurrencies() {
		v, err := roundTripFinite(p.Cash[ccy], "cash")
		if err != nil {
			return nil, err
		}
		cash[string(ccy)] = v
	}
	return map[string]interface{}{
		"schema_version": p.SchemaVersion,
		"as_of":          p.AsOf.UTC().Format(time.RFC3339),
		"positions":      positions,
		"cash":           cash,
	}, nil
}

func roundTripFinite(v float64, field string) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &quantschema.FieldError{Field: field, Reason: "must be finite", Value: v}
	}
	return v, nil
}
