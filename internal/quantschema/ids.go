// Package quantschema defines the canonical identifiers, record schema, and
// quality-flag vocabulary shared by every QuantLab subsystem.
//
// Constructors in this package enforce validity at the boundary. The
// InstrumentId, MarketDataId, and Currency types are plain string types, so
// a direct conversion bypasses the constructor's checks; RecordMeta
// validation re-checks only that instrument_id is non-empty.
package quantschema

import (
	"fmt"
	"regexp"
	"strings"
)

// InstrumentId identifies a tradable or notional instrument (e.g. "EQ.AAPL",
// "FUT.ES", "CASH.EUR"). Length 1-64, no whitespace.
type InstrumentId string

var instrumentIDWhitespace = regexp.MustCompile(`\s`)

// NewInstrumentId validates and constructs an InstrumentId.
func NewInstrumentId(raw string) (InstrumentId, error) {
	if raw == "" {
		return "", &FieldError{Field: "instrument_id", Reason: "must not be empty"}
	}
	if len(raw) > 64 {
		return "", &FieldError{Field: "instrument_id", Reason: fmt.Sprintf("length %d exceeds 64", len(raw))}
	}
	if instrumentIDWhitespace.MatchString(raw) {
		return "", &FieldError{Field: "instrument_id", Reason: "must not contain whitespace", Value: raw}
	}
	return InstrumentId(raw), nil
}

func (i InstrumentId) String() string { return string(i) }

// MarketDataId (aka AssetId) is an opaque, stable identifier for a market
// data series, structurally (symbol, venue?). QuantLab treats it as an
// opaque string; the symbol/venue decomposition is the concern of the
// SymbolMapper in package access.
type MarketDataId string

// NewMarketDataId validates and constructs a MarketDataId.
func NewMarketDataId(raw string) (MarketDataId, error) {
	if raw == "" {
		return "", &FieldError{Field: "market_data_id", Reason: "must not be empty"}
	}
	if instrumentIDWhitespace.MatchString(raw) {
		return "", &FieldError{Field: "market_data_id", Reason: "must not contain whitespace", Value: raw}
	}
	return MarketDataId(raw), nil
}

func (m MarketDataId) String() string { return string(m) }

// Currency is a three-letter uppercase ISO-4217 code.
type Currency string

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// NewCurrency validates and constructs a Currency, uppercasing the input.
func NewCurrency(raw string) (Currency, error) {
	up := strings.ToUpper(strings.TrimSpace(raw))
	if !currencyPattern.MatchString(up) {
		return "", &FieldError{Field: "currency", Reason: "must be three uppercase letters", Value: raw}
	}
	return Currency(up), nil
}

func (c Currency) String() string { return string(c) }

// FieldError is the uniform input/schema validation error: it
// names the offending field and, where useful, the rejected value.
type FieldError struct {
	Field  string
	Reason string
	Value  interface{}
}

func (e *FieldError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("field %q invalid: %s (value=%v)", e.Field, e.Reason, e.Value)
	}
	return fmt.Sprintf("field %q invalid: %s", e.Field, e.Reason)
}
