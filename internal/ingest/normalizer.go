package ingest

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/quantlab/quantlab/internal/calendar"
	"github.com/quantlab/quantlab/internal/quantschema"
)

// MappingContext supplies the calendar and seed-universe context the
// Normalizer needs to derive ts/ts_provenance and attach trading_date_local
// for a dataset. It is per-(dataset_id, ingest_run) and never mutated by
// normalization.
type MappingContext struct {
	DatasetID      string
	SchemaVersion  string
	DatasetVersion string
	IngestRunID    string
	SessionRules   *calendar.SessionRules
	Calendars      map[calendar.MIC]*calendar.VenueCalendar
	InstrumentMIC  map[quantschema.InstrumentId]calendar.MIC
	InstrumentCcy  map[quantschema.InstrumentId]quantschema.Currency
}

// Normalizer turns a RawResponse into canonical BarRecords. It is pure and
// deterministic: the same payload + MappingContext always produces the
// same records (modulo AsofTs, which defaults to FetchedAtTs).
type Normalizer struct{}

// NewNormalizer constructs a Normalizer. It carries no state; the type
// exists so normalization can be mocked/swapped the way every other engine
// boundary in this repo is.
func NewNormalizer() *Normalizer { return &Normalizer{} }

// csvColumns is the column count of the MVP fixture wire shape: instrument_id,date,open,high,low,close,volume
const csvColumns = 7

// Normalize parses raw.Payload (CSV, the MVP fixture format) into canonical
// BarRecords using mc for ts derivation and metadata. Rows for instruments
// absent from mc.InstrumentMIC are rejected with NormalizationError: every
// instrument a raw payload mentions must be resolvable against the seed
// universe.
func (n *Normalizer) Normalize(raw RawResponse, mc MappingContext) ([]quantschema.BarRecord, error) {
	if raw.PayloadFormat != PayloadCSV {
		return nil, &NormalizationError{DatasetID: mc.DatasetID, Reason: fmt.Sprintf("unsupported payload format %q", raw.PayloadFormat)}
	}
	reader := csv.NewReader(strings.NewReader(string(raw.Payload)))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, &NormalizationError{DatasetID: mc.DatasetID, Reason: fmt.Sprintf("csv parse: %v", err)}
	}

	var out []quantschema.BarRecord
	for i, row := range rows {
		if i == 0 && len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "instrument_id") {
			continue // header
		}
		if len(row) < csvColumns {
			return nil, &NormalizationError{DatasetID: mc.DatasetID, Reason: fmt.Sprintf("row %d: expected %d columns, got %d", i, csvColumns, len(row))}
		}

		instID, err := quantschema.NewInstrumentId(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, &NormalizationError{DatasetID: mc.DatasetID, Reason: fmt.Sprintf("row %d: %v", i, err)}
		}
		tradingDate := strings.TrimSpace(row[1])

		mic, ok := mc.InstrumentMIC[instID]
		if !ok {
			return nil, &NormalizationError{DatasetID: mc.DatasetID, Reason: fmt.Sprintf("row %d: instrument %q not in seed universe", i, instID)}
		}
		venue := mc.Calendars[mic]

		derived, err := calendar.DeriveEODTimestamp(mc.SessionRules, venue, mic, tradingDate, &raw.FetchedAtTs)
		if err != nil {
			return nil, &NormalizationError{DatasetID: mc.DatasetID, Reason: fmt.Sprintf("row %d: %v", i, err)}
		}

		flags := quantschema.NewQualityFlagSet(derived.QualityFlags...)
		if venue != nil && calendar.DetectCalendarConflict(venue, tradingDate, true) {
			flags.Add(quantschema.FlagCalendarConflict)
		}

		open, errOpen := parseOptionalFloat(row[2])
		high, errHigh := parseOptionalFloat(row[3])
		low, errLow := parseOptionalFloat(row[4])
		close, errClose := strconv.ParseFloat(strings.TrimSpace(row[5]), 64)
		volume, errVol := parseOptionalFloat(row[6])
		if errOpen != nil || errHigh != nil || errLow != nil || errClose != nil || errVol != nil {
			return nil, &NormalizationError{DatasetID: mc.DatasetID, Reason: fmt.Sprintf("row %d: unparseable numeric field", i)}
		}

		rec := quantschema.BarRecord{
			RecordMeta: quantschema.RecordMeta{
				DatasetID:        mc.DatasetID,
				SchemaVersion:    mc.SchemaVersion,
				DatasetVersion:   mc.DatasetVersion,
				InstrumentID:     instID,
				Ts:               derived.Ts,
				AsofTs:           raw.FetchedAtTs.UTC(),
				TsProvenance:     derived.Provenance,
				Source:           raw.Source,
				IngestRunID:      mc.IngestRunID,
				QualityFlags:     flags,
				TradingDateLocal: tradingDate,
				Currency:         mc.InstrumentCcy[instID],
			},
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: volume,
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseOptionalFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
