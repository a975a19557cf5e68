package risk

import (
	"sort"
	"time"

	"github.com/quantlab/quantlab/internal/hashing"
)

// ReportVersion is the stable schema version for RiskReport.
const ReportVersion = "1"

// Metrics bundles every scalar/series output of the risk pipeline.
type Metrics struct {
	Volatility    float64
	Covariance    *CovarianceDiagnostics
	Drawdown      DrawdownResult
	TrackingError *float64
	VarEs         []VarEsResult
}

// RiskReport is the risk engine's typed, deterministic output with full
// input lineage.
type RiskReport struct {
	ReportVersion string
	GeneratedAt   time.Time
	AsOf          time.Time
	Lineage       Lineage
	Metrics       Metrics
	Exposures     Exposures
	Attribution   AttributionResult
	Warnings      []string
}

// CanonicalMap implements hashing.Canonicalizer so RiskReport can be
// content-hashed or embedded in downstream lineage.
func (r RiskReport) CanonicalMap() (map[string]interface{}, error) {
	varEs := make([]interface{}, 0, len(r.Metrics.VarEs))
	for _, v := range r.Metrics.VarEs {
		varEs = append(varEs, map[string]interface{}{
			"confidence": v.Confidence,
			"var":        v.VaR,
			"es":         v.ES,
		})
	}
	sort.Slice(r.Warnings, func(i, j int) bool { return r.Warnings[i] < r.Warnings[j] })

	lineage := map[string]interface{}{
		"portfolio_snapshot_hash": r.Lineage.PortfolioSnapshotHash,
		"market_data_bundle_hash": r.Lineage.MarketDataBundleHash,
		"request_hash":            r.Lineage.RequestHash,
	}
	if r.Lineage.BenchmarkID != "" {
		lineage["benchmark_id"] = r.Lineage.BenchmarkID
	}
	if r.Lineage.BenchmarkHash != "" {
		lineage["benchmark_hash"] = r.Lineage.BenchmarkHash
	}

	metricsMap := map[string]interface{}{
		"volatility":   r.Metrics.Volatility,
		"max_drawdown": r.Metrics.Drawdown.MaxDrawdown,
		"var_es":       varEs,
	}
	if r.Metrics.TrackingError != nil {
		metricsMap["tracking_error"] = *r.Metrics.TrackingError
	}
	if r.Metrics.Covariance != nil {
		metricsMap["covariance_diagnostics"] = map[string]interface{}{
			"sample_size":        r.Metrics.Covariance.SampleSize,
			"missing_count":      r.Metrics.Covariance.MissingCount,
			"symmetry_max_error": r.Metrics.Covariance.SymmetryMaxError,
			"is_symmetric":       r.Metrics.Covariance.IsSymmetric,
			"estimator":          string(r.Metrics.Covariance.Estimator),
		}
	}

	assetWeights := map[string]interface{}{}
	for k, v := range r.Exposures.AssetWeights {
		assetWeights[k] = v
	}
	currencyExposures := map[string]interface{}{}
	for k, v := range r.Exposures.CurrencyExposures {
		currencyExposures[k] = v
	}

	contributions := make([]interface{}, 0, len(r.Attribution.Order))
	for i, asset := range r.Attribution.Order {
		if i >= len(r.Attribution.Contributions) {
			break
		}
		contributions = append(contributions, map[string]interface{}{
			"asset":        asset,
			"contribution": r.Attribution.Contributions[i],
		})
	}

	m := map[string]interface{}{
		"report_version": r.ReportVersion,
		"as_of":          hashing.ISOTime(r.AsOf),
		"lineage":        lineage,
		"metrics":        metricsMap,
		"exposures": map[string]interface{}{
			"asset_weights":      assetWeights,
			"currency_exposures": currencyExposures,
			"normalized":         r.Exposures.Normalized,
			"convention":         r.Exposures.Convention,
		},
		"attribution": map[string]interface{}{
			"variance":      r.Attribution.Variance,
			"convention":    r.Attribution.Convention,
			"contributions": contributions,
		},
		"warnings": hashing.SortedStrings(r.Warnings),
	}
	return m, nil
}

var _ hashing.Canonicalizer = RiskReport{}
