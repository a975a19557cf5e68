// Package instruments implements the instruments domain model: typed
// instrument specs, positions, and portfolio snapshots with canonical
// ordering. This package provides construction and
// canonical serialization only — no pricing or risk behavior lives here.
package instruments

import (
	"fmt"
	"math"
	"time"

	"github.com/quantlab/quantlab/internal/hashing"
	"github.com/quantlab/quantlab/internal/quantschema"
)

// InstrumentType is the discriminant for Instrument.Spec.
type InstrumentType string

const (
	TypeEquity InstrumentType = "equity"
	TypeIndex  InstrumentType = "index"
	TypeCash   InstrumentType = "cash"
	TypeFuture InstrumentType = "future"
	TypeBond   InstrumentType = "bond"
)

// Spec is the tagged-variant interface implemented by each instrument kind.
// Kind() must equal the Instrument's InstrumentType for a valid instrument.
type Spec interface {
	Kind() InstrumentType
}

// EquitySpec is a plain tradable equity.
type EquitySpec struct{}

func (EquitySpec) Kind() InstrumentType { return TypeEquity }

// IndexSpec describes an index, tradable or reference-only.
type IndexSpec struct {
	IsTradable bool
}

func (IndexSpec) Kind() InstrumentType { return TypeIndex }

// CashSpec is a currency-denominated cash position.
type CashSpec struct{}

func (CashSpec) Kind() InstrumentType { return TypeCash }

// FutureSpec describes a linear futures contract.
type FutureSpec struct {
	Multiplier float64
	Expiry     time.Time
}

func (FutureSpec) Kind() InstrumentType { return TypeFuture }

// BondSpec is a reference-only bond spec (no curve pricing in MVP scope).
type BondSpec struct {
	Maturity time.Time
}

func (BondSpec) Kind() InstrumentType { return TypeBond }

// Instrument is a tradable or notional instrument with a tagged Spec.
type Instrument struct {
	SchemaVersion  string
	InstrumentID   quantschema.InstrumentId
	InstrumentType InstrumentType
	MarketDataID   *quantschema.MarketDataId
	Currency       *quantschema.Currency
	Spec           Spec
	Meta           map[string]string
}

// NewInstrument validates and constructs an Instrument.
func NewInstrument(schemaVersion string, id quantschema.InstrumentId, spec Spec, marketDataID *quantschema.MarketDataId, currency *quantschema.Currency, meta map[string]string) (Instrument, error) {
	inst := Instrument{
		SchemaVersion:  schemaVersion,
		InstrumentID:   id,
		InstrumentType: spec.Kind(),
		MarketDataID:   marketDataID,
		Currency:       currency,
		Spec:           spec,
		Meta:           meta,
	}
	if err := inst.Validate(); err != nil {
		return Instrument{}, err
	}
	return inst, nil
}

// Validate enforces every Instrument invariant.
func (i Instrument) Validate() error {
	if i.InstrumentID == "" {
		return &quantschema.FieldError{Field: "instrument_id", Reason: "must not be empty"}
	}
	if i.Spec == nil {
		return &quantschema.FieldError{Field: "spec", Reason: "must not be nil"}
	}
	if i.Spec.Kind() != i.InstrumentType {
		return &quantschema.FieldError{Field: "instrument_type", Reason: fmt.Sprintf("must match spec.kind %q", i.Spec.Kind())}
	}

	switch s := i.Spec.(type) {
	case EquitySpec:
		if i.MarketDataID == nil {
			return &quantschema.FieldError{Field: "market_data_id", Reason: "required for equity"}
		}
	case IndexSpec:
		if s.IsTradable && i.MarketDataID == nil {
			return &quantschema.FieldError{Field: "market_data_id", Reason: "required for tradable index"}
		}
	case CashSpec:
		if i.Currency == nil {
			return &quantschema.FieldError{Field: "currency", Reason: "required for cash"}
		}
	case FutureSpec:
		if i.MarketDataID == nil {
			return &quantschema.FieldError{Field: "market_data_id", Reason: "required for future"}
		}
		if math.IsNaN(s.Multiplier) || math.IsInf(s.Multiplier, 0) || s.Multiplier <= 0 {
			return &quantschema.FieldError{Field: "future_spec.multiplier", Reason: "must be finite and > 0", Value: s.Multiplier}
		}
		if s.Expiry.IsZero() {
			return &quantschema.FieldError{Field: "future_spec.expiry", Reason: "required"}
		}
	case BondSpec:
		if s.Maturity.IsZero() {
			return &quantschema.FieldError{Field: "bond_spec.maturity", Reason: "required"}
		}
	default:
		return &quantschema.FieldError{Field: "spec", Reason: fmt.Sprintf("unknown spec type %T", i.Spec)}
	}
	return nil
}

// CanonicalMap implements hashing.Canonicalizer.
func (i Instrument) CanonicalMap() (map[string]interface{}, error) {
	m := map[string]interface{}{
		"schema_version":  i.SchemaVersion,
		"instrument_id":   string(i.InstrumentID),
		"instrument_type": string(i.InstrumentType),
	}
	if i.MarketDataID != nil {
		m["market_data_id"] = string(*i.MarketDataID)
	}
	if i.Currency != nil {
		m["currency"] = string(*i.Currency)
	}
	return m, nil
}

var _ hashing.Canonicalizer = Instrument{}
