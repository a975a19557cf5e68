package quantschema

import (
	"sort"

	"github.com/quantlab/quantlab/internal/hashing"
)

func (m RecordMeta) canonicalMap() (map[string]interface{}, error) {
	out := map[string]interface{}{
		"dataset_id":      m.DatasetID,
		"schema_version":  m.SchemaVersion,
		"dataset_version": m.DatasetVersion,
		"instrument_id":   string(m.InstrumentID),
		"ts":              hashing.ISOTime(m.Ts),
		"asof_ts":         hashing.ISOTime(m.AsofTs),
		"ts_provenance":   string(m.TsProvenance),
		"source": map[string]interface{}{
			"provider":         m.Source.Provider,
			"endpoint":         m.Source.Endpoint,
			"provider_dataset": m.Source.ProviderDataset,
		},
		"ingest_run_id": m.IngestRunID,
		"quality_flags": m.QualityFlags.Sorted(),
	}
	if m.TradingDateLocal != "" {
		out["trading_date_local"] = m.TradingDateLocal
	}
	if m.TimezoneLocal != "" {
		out["timezone_local"] = m.TimezoneLocal
	}
	if m.Currency != "" {
		out["currency"] = string(m.Currency)
	}
	return out, nil
}

// CanonicalMap implements hashing.Canonicalizer for BarRecord, used both to
// content-hash an individual record and, via BarRecordSet, an entire
// canonical snapshot.
func (b BarRecord) CanonicalMap() (map[string]interface{}, error) {
	m, err := b.RecordMeta.canonicalMap()
	if err != nil {
		return nil, err
	}
	bar := map[string]interface{}{"close": b.Close}
	if b.Open != nil {
		bar["open"] = *b.Open
	}
	if b.High != nil {
		bar["high"] = *b.High
	}
	if b.Low != nil {
		bar["low"] = *b.Low
	}
	if b.Volume != nil {
		bar["volume"] = *b.Volume
	}
	if b.AdjClose != nil {
		bar["adj_close"] = *b.AdjClose
	}
	if b.AdjustmentBasis != "" {
		bar["adjustment_basis"] = string(b.AdjustmentBasis)
	}
	m["bar"] = bar
	return m, nil
}

// CanonicalMap implements hashing.Canonicalizer for PointRecord.
func (p PointRecord) CanonicalMap() (map[string]interface{}, error) {
	m, err := p.RecordMeta.canonicalMap()
	if err != nil {
		return nil, err
	}
	m["field"] = p.Field
	m["value"] = p.Value
	m["base_ccy"] = string(p.BaseCcy)
	m["quote_ccy"] = string(p.QuoteCcy)
	if p.FixingConvention != "" {
		m["fixing_convention"] = p.FixingConvention
	}
	return m, nil
}

// BarRecordSet is a snapshot's worth of BarRecords, canonicalized as a
// sorted list so that two snapshots built from the same logical records in
// different insertion orders hash identically.
type BarRecordSet []BarRecord

// CanonicalMap implements hashing.Canonicalizer.
func (s BarRecordSet) CanonicalMap() (map[string]interface{}, error) {
	rows := make([]map[string]interface{}, 0, len(s))
	for _, r := range s {
		m, err := r.CanonicalMap()
		if err != nil {
			return nil, err
		}
		rows = append(rows, m)
	}
	sort.Slice(rows, func(i, j int) bool {
		ii, jj := rows[i]["instrument_id"].(string), rows[j]["instrument_id"].(string)
		if ii != jj {
			return ii < jj
		}
		return rows[i]["ts"].(string) < rows[j]["ts"].(string)
	})
	out := make([]interface{}, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return map[string]interface{}{"records": out, "row_count": len(out)}, nil
}

var (
	_ hashing.Canonicalizer = BarRecord{}
	_ hashing.Canonicalizer = PointRecord{}
	_ hashing.Canonicalizer = BarRecordSet{}
)
