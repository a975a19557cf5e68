// Package report holds the lineage and serialization helpers shared by the
// pricing, risk, and stress engines. Each engine's
// report type (PortfolioValuation, RiskReport, StressReport) implements
// hashing.Canonicalizer directly; this package supplies the pieces common
// to all three so lineage is assembled the same way everywhere: canonical
// JSON bytes, a content hash, and a reference set of upstream hashes.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/quantlab/quantlab/internal/hashing"
)

// Lineage is the minimal set of content-hash references a report must carry
// to be reproducible: the portfolio snapshot it valued, the market-data
// bundle it read, and the request that produced it. Individual engines
// (risk.Lineage, stress's inline fields) may carry additional references;
// this type is the common subset used by CLI/report-writing glue.
type Lineage struct {
	PortfolioSnapshotHash string
	MarketDataBundleHash  string
	RequestHash           string
}

// CanonicalMap renders Lineage for embedding inside a larger report's
// CanonicalMap.
func (l Lineage) CanonicalMap() map[string]interface{} {
	return map[string]interface{}{
		"portfolio_snapshot_hash": l.PortfolioSnapshotHash,
		"market_data_bundle_hash": l.MarketDataBundleHash,
		"request_hash":            l.RequestHash,
	}
}

// Envelope is the stable wrapper every assembled report is written to disk
// or returned over an API as: the canonical JSON bytes, the content hash
// computed over those same bytes, and when the report was assembled.
type Envelope struct {
	ContentHash string
	GeneratedAt time.Time
	Body        []byte
}

// Assemble canonicalizes c, computes its content hash, and returns the
// Envelope callers persist or transmit. Using this single entry point
// guarantees that every report in the repo (valuation, risk, stress) is
// serialized and hashed with the identical routine from package hashing,
// so report identities cannot drift between engines.
func Assemble(c hashing.Canonicalizer, generatedAt time.Time) (Envelope, error) {
	body, err := hashing.CanonicalJSON(c)
	if err != nil {
		return Envelope{}, fmt.Errorf("report: canonicalize: %w", err)
	}
	hash, err := hashing.ContentHash(c)
	if err != nil {
		return Envelope{}, fmt.Errorf("report: content hash: %w", err)
	}
	return Envelope{ContentHash: hash, GeneratedAt: generatedAt.UTC(), Body: body}, nil
}

// SortedWarnings returns warnings in the stable lexicographic order every
// canonical report uses so two runs over identical inputs serialize
// byte-identically even if warnings were appended in different orders.
func SortedWarnings(warnings []string) []string {
	out := hashing.SortedStrings(warnings)
	sort.Strings(out)
	return out
}
