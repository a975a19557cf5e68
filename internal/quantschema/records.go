package quantschema

import (
	"math"
	"time"
)

// TsProvenance describes how a canonical record's ts field was derived.
type TsProvenance string

const (
	TsExchangeClose TsProvenance = "EXCHANGE_CLOSE"
	TsFixingTime    TsProvenance = "FIXING_TIME"
	TsProviderEOD   TsProvenance = "PROVIDER_EOD"
	TsUnknown       TsProvenance = "UNKNOWN"
)

// Source records where a canonical record originated.
type Source struct {
	Provider        string
	Endpoint        string
	ProviderDataset string // optional
}

// RecordMeta holds the fields common to every canonical record.
type RecordMeta struct {
	DatasetID      string
	SchemaVersion  string
	DatasetVersion string
	InstrumentID   InstrumentId
	Ts             time.Time // UTC
	AsofTs         time.Time // UTC, >= ts_source_date
	TsProvenance   TsProvenance
	Source         Source
	IngestRunID    string
	QualityFlags   QualityFlagSet

	// Recommended, optional.
	TradingDateLocal string
	TimezoneLocal    string
	Currency         Currency
}

func (m RecordMeta) validate() error {
	if m.DatasetID == "" {
		return &FieldError{Field: "dataset_id", Reason: "must not be empty"}
	}
	if m.SchemaVersion == "" {
		return &FieldError{Field: "schema_version", Reason: "must not be empty"}
	}
	if m.DatasetVersion == "" {
		return &FieldError{Field: "dataset_version", Reason: "must not be empty"}
	}
	if m.InstrumentID == "" {
		return &FieldError{Field: "instrument_id", Reason: "must not be empty"}
	}
	if m.Ts.IsZero() {
		return &FieldError{Field: "ts", Reason: "must be set"}
	}
	if m.Ts.Location() != time.UTC {
		return &FieldError{Field: "ts", Reason: "must be UTC"}
	}
	if m.AsofTs.IsZero() {
		return &FieldError{Field: "asof_ts", Reason: "must be set"}
	}
	if m.AsofTs.Location() != time.UTC {
		return &FieldError{Field: "asof_ts", Reason: "must be UTC"}
	}
	// asof_ts must not precede the observation's source date: an
	// observation cannot be known before the day it describes begins.
	sourceDate := time.Date(m.Ts.Year(), m.Ts.Month(), m.Ts.Day(), 0, 0, 0, 0, time.UTC)
	if m.AsofTs.Before(sourceDate) {
		return &FieldError{Field: "asof_ts", Reason: "must not precede ts source date", Value: m.AsofTs}
	}
	if m.IngestRunID == "" {
		return &FieldError{Field: "ingest_run_id", Reason: "must not be empty"}
	}
	switch m.TsProvenance {
	case TsExchangeClose, TsFixingTime, TsProviderEOD, TsUnknown:
	default:
		return &FieldError{Field: "ts_provenance", Reason: "unknown provenance", Value: m.TsProvenance}
	}
	return nil
}

// AdjustmentBasis describes how an adjusted close was computed, when present.
type AdjustmentBasis string

const (
	AdjustmentBasisSplit   AdjustmentBasis = "SPLIT"
	AdjustmentBasisDiv     AdjustmentBasis = "DIVIDEND"
	AdjustmentBasisBoth    AdjustmentBasis = "SPLIT_AND_DIVIDEND"
	AdjustmentBasisUnknown AdjustmentBasis = "UNKNOWN"
)

// BarRecord is an OHLCV bar with canonical metadata.
type BarRecord struct {
	RecordMeta

	Open            *float64
	High            *float64
	Low             *float64
	Close           float64
	Volume          *float64
	AdjClose        *float64
	AdjustmentBasis AdjustmentBasis
}

// Validate enforces BarRecord's hard rules. It does not mutate the record
// or drop it; the Validator (package ingest) decides whether a violation
// is a hard error or soft flag for a given pipeline.
func (b BarRecord) Validate() error {
	if err := b.RecordMeta.validate(); err != nil {
		return err
	}
	if !isFinitePositive(b.Close) {
		return &FieldError{Field: "bar.close", Reason: "must be finite and strictly positive", Value: b.Close}
	}
	for name, p := range map[string]*float64{"bar.open": b.Open, "bar.high": b.High, "bar.low": b.Low, "bar.adj_close": b.AdjClose} {
		if p != nil && !isFinitePositive(*p) {
			return &FieldError{Field: name, Reason: "must be finite and strictly positive", Value: *p}
		}
	}
	if b.Volume != nil {
		if math.IsNaN(*b.Volume) || math.IsInf(*b.Volume, 0) || *b.Volume < 0 {
			return &FieldError{Field: "bar.volume", Reason: "must be finite and non-negative", Value: *b.Volume}
		}
	}
	if b.High != nil {
		maxOC := b.Close
		if b.Open != nil && *b.Open > maxOC {
			maxOC = *b.Open
		}
		if *b.High < maxOC {
			return &FieldError{Field: "bar.high", Reason: "must be >= max(open,close)", Value: *b.High}
		}
	}
	if b.Low != nil {
		minOC := b.Close
		if b.Open != nil && *b.Open < minOC {
			minOC = *b.Open
		}
		if *b.Low > minOC {
			return &FieldError{Field: "bar.low", Reason: "must be <= min(open,close)", Value: *b.Low}
		}
	}
	if b.High != nil && b.Low != nil && *b.High < *b.Low {
		return &FieldError{Field: "bar.high", Reason: "must be >= bar.low"}
	}
	return nil
}

// PointRecord is a single scalar observation (e.g. an FX fixing) with
// canonical metadata.
type PointRecord struct {
	RecordMeta

	Field            string
	Value            float64
	BaseCcy          Currency
	QuoteCcy         Currency
	FixingConvention string // optional
}

// Validate enforces PointRecord's hard rules.
func (p PointRecord) Validate() error {
	if err := p.RecordMeta.validate(); err != nil {
		return err
	}
	if p.Field == "" {
		return &FieldError{Field: "field", Reason: "must not be empty"}
	}
	if !isFinitePositive(p.Value) {
		return &FieldError{Field: "value", Reason: "must be finite and strictly positive", Value: p.Value}
	}
	if p.BaseCcy == "" {
		return &FieldError{Field: "base_ccy", Reason: "must not be empty"}
	}
	if p.QuoteCcy == "" {
		return &FieldError{Field: "quote_ccy", Reason: "must not be empty"}
	}
	return nil
}

func isFinitePositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
