package stress

import (
	"fmt"
	"math"
	"sort"

	"github.com/quantlab/quantlab/internal/hashing"
	"github.com/quantlab/quantlab/internal/instruments"
	"github.com/quantlab/quantlab/internal/quantschema"
)

// ScenarioResult aggregates one scenario's per-position P&L.
type ScenarioResult struct {
	ScenarioID           string
	PortfolioPnL         float64
	Positions            []PositionPnL
	BreakdownByMarketData map[quantschema.MarketDataId]float64
	BreakdownByCurrency   map[quantschema.Currency]float64
	Warnings              []string
}

// RevaluePortfolio applies scenario to every position in portfolio,
// reconciling the portfolio total to the sum of position P&Ls.
func RevaluePortfolio(portfolio instruments.Portfolio, catalog map[quantschema.InstrumentId]instruments.Instrument, state MarketState, scenario Scenario, policy MissingShockPolicy) (ScenarioResult, error) {
	result := ScenarioResult{
		ScenarioID:            scenario.ScenarioID,
		BreakdownByMarketData: map[quantschema.MarketDataId]float64{},
		BreakdownByCurrency:   map[quantschema.Currency]float64{},
	}
	for _, pos := range portfolio.Positions {
		inst, ok := catalog[pos.InstrumentID]
		if !ok {
			return ScenarioResult{}, fmt.Errorf("stress: unknown instrument_id %q", pos.InstrumentID)
		}
		pnl, err := RevaluePosition(inst, pos, state, scenario, policy)
		if err != nil {
			return ScenarioResult{}, fmt.Errorf("stress: revaluing %q under %q: %w", pos.InstrumentID, scenario.ScenarioID, err)
		}
		result.Positions = append(result.Positions, pnl)
		result.PortfolioPnL += pnl.PnL
		if pnl.MarketDataID != "" {
			result.BreakdownByMarketData[pnl.MarketDataID] += pnl.PnL
		}
		if pnl.Currency != "" {
			result.BreakdownByCurrency[pnl.Currency] += pnl.PnL
		}
		if pnl.Warning != "" {
			result.Warnings = append(result.Warnings, pnl.Warning)
		}
	}
	return result, nil
}

// ScenarioLossSummary names one scenario's contribution to the worst-case
// ranking used in StressReport.TopKLosses.
type ScenarioLossSummary struct {
	ScenarioID string
	PnL        float64
}

// DriverContribution is one market_data_id's P&L contribution under the
// worst-case scenario, ranked by absolute magnitude.
type DriverContribution struct {
	MarketDataID quantschema.MarketDataId
	PnL          float64
}

// StressReport is the stress engine's typed output. Scenario-set summary
// metrics are explicitly not probabilities and not VaR; Disclaimer carries
// that statement into the serialized report. Lineage is by content hash:
// the scenario set that was applied and the portfolio snapshot it was
// applied to.
type StressReport struct {
	NAV                   float64
	Scenarios             []ScenarioResult
	MaxLoss               float64
	MaxLossReturn         float64
	TopKLosses            []ScenarioLossSummary
	TopDrivers            []DriverContribution
	ScenarioSetHash       string
	PortfolioSnapshotHash string
	Disclaimer            string
}

const stressDisclaimer = "scenario-set metrics are not probabilities and are not VaR"

// BuildStressReport runs every scenario in set against portfolio/state and
// assembles the summary. Scenario results are returned sorted by
// scenario_id regardless of ScenarioSet insertion order.
func BuildStressReport(portfolio instruments.Portfolio, catalog map[quantschema.InstrumentId]instruments.Instrument, state MarketState, set ScenarioSet, policy MissingShockPolicy, nav float64, topK int) (StressReport, error) {
	sorted := set.Sorted()
	results := make([]ScenarioResult, 0, len(sorted))
	for _, sc := range sorted {
		r, err := RevaluePortfolio(portfolio, catalog, state, sc, policy)
		if err != nil {
			return StressReport{}, err
		}
		results = append(results, r)
	}

	maxLoss := 0.0
	for i, r := range results {
		if i == 0 || r.PortfolioPnL < maxLoss {
			maxLoss = r.PortfolioPnL
		}
	}

	ranked := make([]ScenarioLossSummary, 0, len(results))
	for _, r := range results {
		ranked = append(ranked, ScenarioLossSummary{ScenarioID: r.ScenarioID, PnL: r.PortfolioPnL})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].PnL < ranked[j].PnL })
	if topK > 0 && topK < len(ranked) {
		ranked = ranked[:topK]
	}

	maxLossReturn := 0.0
	if nav != 0 {
		maxLossReturn = maxLoss / nav
	}

	setHash, err := hashing.ContentHash(set)
	if err != nil {
		return StressReport{}, fmt.Errorf("stress: scenario set hash: %w", err)
	}
	portfolioHash, err := hashing.ContentHash(portfolio)
	if err != nil {
		return StressReport{}, fmt.Errorf("stress: portfolio snapshot hash: %w", err)
	}

	return StressReport{
		NAV:                   nav,
		Scenarios:             results,
		MaxLoss:               maxLoss,
		MaxLossReturn:         maxLossReturn,
		TopKLosses:            ranked,
		TopDrivers:            topDrivers(results, maxLoss, topK),
		ScenarioSetHash:       setHash,
		PortfolioSnapshotHash: portfolioHash,
		Disclaimer:            stressDisclaimer,
	}, nil
}

// topDrivers ranks market_data_id contributions under the worst-case
// scenario by absolute P&L. Ties break on market_data_id for determinism.
func topDrivers(results []ScenarioResult, maxLoss float64, topK int) []DriverContribution {
	var worst *ScenarioResult
	for i := range results {
		if results[i].PortfolioPnL == maxLoss {
			worst = &results[i]
			break
		}
	}
	if worst == nil {
		return nil
	}
	drivers := make([]DriverContribution, 0, len(worst.BreakdownByMarketData))
	for mdid, pnl := range worst.BreakdownByMarketData {
		drivers = append(drivers, DriverContribution{MarketDataID: mdid, PnL: pnl})
	}
	sort.Slice(drivers, func(i, j int) bool {
		ai, aj := math.Abs(drivers[i].PnL), math.Abs(drivers[j].PnL)
		if ai != aj {
			return ai > aj
		}
		return drivers[i].MarketDataID < drivers[j].MarketDataID
	})
	if topK > 0 && topK < len(drivers) {
		drivers = drivers[:topK]
	}
	return drivers
}

// CanonicalMap implements hashing.Canonicalizer.
func (r StressReport) CanonicalMap() (map[string]interface{}, error) {
	scenarios := make([]interface{}, 0, len(r.Scenarios))
	for _, s := range r.Scenarios {
		pnl, err := hashing.Finite(s.PortfolioPnL, "scenario.portfolio_pnl")
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, map[string]interface{}{
			"scenario_id":   s.ScenarioID,
			"portfolio_pnl": pnl,
		})
	}
	topLosses := make([]interface{}, 0, len(r.TopKLosses))
	for _, l := range r.TopKLosses {
		topLosses = append(topLosses, map[string]interface{}{
			"scenario_id": l.ScenarioID,
			"pnl":         l.PnL,
		})
	}
	topDrivers := make([]interface{}, 0, len(r.TopDrivers))
	for _, d := range r.TopDrivers {
		topDrivers = append(topDrivers, map[string]interface{}{
			"market_data_id": string(d.MarketDataID),
			"pnl":            d.PnL,
		})
	}
	return map[string]interface{}{
		"nav":                     r.NAV,
		"scenarios":               scenarios,
		"max_loss":                r.MaxLoss,
		"max_loss_return":         r.MaxLossReturn,
		"top_k_losses":            topLosses,
		"top_drivers":             topDrivers,
		"scenario_set_hash":       r.ScenarioSetHash,
		"portfolio_snapshot_hash": r.PortfolioSnapshotHash,
		"disclaimer":              r.Disclaimer,
	}, nil
}

var _ hashing.Canonicalizer = StressReport{}
