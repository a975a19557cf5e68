package config

import (
	"fmt"
	"sort"

	"github.com/quantlab/quantlab/internal/hashing"
)

type universeEntrySet struct {
	entries []UniverseEntry
}

func (s universeEntrySet) CanonicalMap() (map[string]interface{}, error) {
	sorted := make([]UniverseEntry, len(s.entries))
	copy(sorted, s.entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].InstrumentID < sorted[j].InstrumentID })

	rows := make([]interface{}, 0, len(sorted))
	for _, e := range sorted {
		rows = append(rows, map[string]interface{}{
			"instrument_id":  e.InstrumentID,
			"mic":            e.MIC,
			"vendor_symbol":  e.VendorSymbol,
			"currency":       e.Currency,
			"timezone_local": e.TimezoneLocal,
		})
	}
	return map[string]interface{}{"instruments": rows}, nil
}

func hashUniverseEntries(entries []UniverseEntry) (string, error) {
	hash, err := hashing.ContentHash(universeEntrySet{entries: entries})
	if err != nil {
		return "", fmt.Errorf("config: hash universe entries: %w", err)
	}
	return hash, nil
}
