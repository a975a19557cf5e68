package risk

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/quantlab/quantlab/internal/hashing"
	"github.com/quantlab/quantlab/internal/instruments"
	"github.com/quantlab/quantlab/internal/metrics"
	"github.com/quantlab/quantlab/internal/obslog"
	"github.com/quantlab/quantlab/internal/quantschema"
)

var engineLog = obslog.Component("risk.engine")

// defaultAnnualizationFactor is used when a request leaves the factor
// unset; 252 trading days per year.
const defaultAnnualizationFactor = 252

// SeriesSource is the risk engine's market-data dependency: a date-aligned
// price series per (asset, field). *access.Bundle satisfies it.
type SeriesSource interface {
	Series(asset quantschema.MarketDataId, field string) (PriceSeries, bool)
}

// Engine orchestrates the risk pipeline: input validation, return
// building, covariance, drawdown, tracking error, VaR/ES, exposures,
// variance attribution, and RiskReport assembly. Compute is a pure
// function of its inputs and safe to call concurrently.
type Engine struct {
	Metrics *metrics.Collectors
	now     func() time.Time
}

// NewEngine constructs a risk engine.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// pricedAsset is one portfolio position resolved against the catalog and
// the series source.
type pricedAsset struct {
	instrumentID quantschema.InstrumentId
	marketDataID quantschema.MarketDataId
	currency     quantschema.Currency
	quantity     float64
	multiplier   float64
	prices       PriceSeries
	lastPrice    float64
}

// Compute runs the full risk pipeline for req over portfolio, catalog, and
// source, returning the assembled RiskReport. It is cooperatively
// cancellable: ctx is checked between stages.
func (e *Engine) Compute(ctx context.Context, req Request, portfolio instruments.Portfolio, catalog map[quantschema.InstrumentId]instruments.Instrument, source SeriesSource) (RiskReport, error) {
	start := e.nowFn()
	defer func() {
		if e.Metrics != nil {
			e.Metrics.EngineLatency.WithLabelValues("risk").Observe(time.Since(start).Seconds())
		}
	}()

	if req.AsOf.IsZero() {
		return RiskReport{}, &quantschema.FieldError{Field: "risk_request.as_of", Reason: "must be set"}
	}
	annualization := req.AnnualizationFactor
	if annualization <= 0 {
		annualization = defaultAnnualizationFactor
	}

	windowStart, windowEnd, err := resolveWindow(req)
	if err != nil {
		return RiskReport{}, err
	}
	// as_of past the window end is fine; the window just ends earlier.
	// The reverse, window data past as_of, is look-ahead and is rejected
	// per-date in clipSeries.
	cutoff := hashing.ISODate(req.AsOf)

	var warnings []string

	// Stage 1: resolve every position against the catalog and the bundle.
	assets, err := resolveAssets(portfolio, catalog, source, hashing.ISODate(windowStart), hashing.ISODate(windowEnd), cutoff)
	if err != nil {
		return RiskReport{}, err
	}
	if len(assets) == 0 {
		return RiskReport{}, &quantschema.FieldError{Field: "portfolio.positions", Reason: "no priced positions to run risk over"}
	}
	if err := ctx.Err(); err != nil {
		return RiskReport{}, err
	}

	// Stage 2: per-asset return series.
	assetReturns := make(map[string]ReturnSeries, len(assets))
	order := make([]string, 0, len(assets))
	for _, a := range assets {
		rs, err := BuildReturns(a.prices, req.ReturnDefinition, req.MissingDataPolicy)
		if err != nil {
			return RiskReport{}, fmt.Errorf("risk: returns for %q: %w", a.marketDataID, err)
		}
		warnings = append(warnings, rs.Warnings...)
		assetReturns[string(a.marketDataID)] = rs
		order = append(order, string(a.marketDataID))
	}
	sort.Strings(order)
	commonDates := intersectDates(assetReturns, order)
	if len(commonDates) < 2 {
		return RiskReport{}, &InsufficientSampleError{Have: len(commonDates), Need: 2, For: "portfolio risk window"}
	}
	aligned := alignReturns(assetReturns, order, commonDates)
	if err := ctx.Err(); err != nil {
		return RiskReport{}, err
	}

	// Weights from as-of notionals.
	weights, basis, currencyNotionals := computeWeights(assets, portfolio)

	// Stage 3: portfolio return series per input mode.
	portReturns, err := e.portfolioReturns(req, assets, aligned, weights, order, commonDates)
	if err != nil {
		return RiskReport{}, err
	}
	warnings = append(warnings, portReturns.Warnings...)
	if err := ctx.Err(); err != nil {
		return RiskReport{}, err
	}

	// Stages 4-7: volatility, covariance, drawdown.
	vol := Volatility(portReturns.Values, annualization)
	cov, covDiag, err := SampleCovariance(order, aligned)
	if err != nil {
		return RiskReport{}, err
	}
	dd := ComputeDrawdown(portReturns.Values)
	if err := ctx.Err(); err != nil {
		return RiskReport{}, err
	}

	// Stage 8: tracking error against the benchmark, when one is named.
	var trackingError *float64
	benchmarkID := ""
	if req.BenchmarkMarketDataID != nil {
		te, err := e.trackingError(req, *req.BenchmarkMarketDataID, source, portReturns, annualization, hashing.ISODate(windowStart), hashing.ISODate(windowEnd), cutoff)
		if err != nil {
			return RiskReport{}, err
		}
		trackingError = &te
		benchmarkID = string(*req.BenchmarkMarketDataID)
	}

	// Stage 9: historical VaR/ES across the requested confidence levels.
	varEs, err := ComputeVarEs(portReturns.Values, req.ConfidenceLevels)
	if err != nil {
		return RiskReport{}, err
	}
	for _, v := range varEs {
		if v.Warning != "" {
			warnings = append(warnings, v.Warning)
		}
	}
	if err := ctx.Err(); err != nil {
		return RiskReport{}, err
	}

	// Stages 10-11: exposures and variance attribution.
	exposures := ComputeExposures(basis, currencyNotionals)
	weightVec := make([]float64, len(order))
	for i, asset := range order {
		weightVec[i] = weights[asset]
	}
	attribution, err := VarianceAttribution(order, weightVec, cov)
	if err != nil {
		return RiskReport{}, err
	}

	// Stage 12: lineage.
	lineage := req.Lineage
	if lineage.PortfolioSnapshotHash == "" {
		hash, err := hashing.ContentHash(portfolio)
		if err != nil {
			return RiskReport{}, fmt.Errorf("risk: portfolio snapshot hash: %w", err)
		}
		lineage.PortfolioSnapshotHash = hash
	}
	if benchmarkID != "" {
		lineage.BenchmarkID = benchmarkID
	}

	report := RiskReport{
		ReportVersion: ReportVersion,
		GeneratedAt:   e.nowFn().UTC(),
		AsOf:          req.AsOf,
		Lineage:       lineage,
		Metrics: Metrics{
			Volatility:    vol,
			Covariance:    &covDiag,
			Drawdown:      dd,
			TrackingError: trackingError,
			VarEs:         varEs,
		},
		Exposures:   exposures,
		Attribution: attribution,
		Warnings:    hashing.SortedStrings(warnings),
	}
	engineLog.Info().
		Str("as_of", cutoff).
		Int("assets", len(order)).
		Int("sample_size", covDiag.SampleSize).
		Int("warnings", len(report.Warnings)).
		Msg("risk report assembled")
	return report, nil
}

func (e *Engine) nowFn() time.Time {
	if e.now != nil {
		return e.now()
	}
	return time.Now()
}

func resolveWindow(req Request) (time.Time, time.Time, error) {
	w := req.Window
	if !w.Start.IsZero() && !w.End.IsZero() {
		if w.End.Before(w.Start) {
			return time.Time{}, time.Time{}, &quantschema.FieldError{Field: "risk_request.window", Reason: "end before start"}
		}
		return w.Start, w.End, nil
	}
	if w.LookbackDays > 0 {
		end := req.AsOf
		return end.AddDate(0, 0, -w.LookbackDays), end, nil
	}
	return time.Time{}, time.Time{}, &quantschema.FieldError{Field: "risk_request.window", Reason: "either lookback_days or start+end must be set"}
}

// resolveAssets maps every non-cash position to its market data series,
// clips each series to the window, and rejects look-ahead: a date inside
// the window but strictly after as_of fails rather than being silently
// dropped.
func resolveAssets(portfolio instruments.Portfolio, catalog map[quantschema.InstrumentId]instruments.Instrument, source SeriesSource, startDate, endDate, cutoff string) ([]pricedAsset, error) {
	var out []pricedAsset
	for _, pos := range portfolio.Positions {
		inst, ok := catalog[pos.InstrumentID]
		if !ok {
			return nil, &UnknownAssetError{MarketDataID: string(pos.InstrumentID)}
		}
		if inst.InstrumentType == instruments.TypeCash {
			continue
		}
		if inst.MarketDataID == nil {
			return nil, &MissingMarketStateError{MarketDataID: string(pos.InstrumentID)}
		}
		mdid := *inst.MarketDataID

		full, ok := source.Series(mdid, "close")
		if !ok {
			return nil, &UnknownAssetError{MarketDataID: string(mdid)}
		}
		clipped, last, err := clipSeries(full, startDate, endDate, cutoff)
		if err != nil {
			return nil, err
		}
		if last == nil {
			return nil, &MissingMarketStateError{MarketDataID: string(mdid)}
		}

		multiplier := 1.0
		if spec, isFut := inst.Spec.(instruments.FutureSpec); isFut {
			multiplier = spec.Multiplier
		}
		ccy := quantschema.Currency("")
		if inst.Currency != nil {
			ccy = *inst.Currency
		}
		out = append(out, pricedAsset{
			instrumentID: pos.InstrumentID,
			marketDataID: mdid,
			currency:     ccy,
			quantity:     pos.Quantity,
			multiplier:   multiplier,
			prices:       clipped,
			lastPrice:    *last,
		})
	}
	return out, nil
}

// clipSeries restricts prices to [startDate, endDate] and returns the last
// observed value at or before cutoff. A retained date strictly after
// cutoff is look-ahead and fails.
func clipSeries(prices PriceSeries, startDate, endDate, cutoff string) (PriceSeries, *float64, error) {
	out := PriceSeries{}
	var last *float64
	for i, d := range prices.Dates {
		if d < startDate || d > endDate {
			continue
		}
		if d > cutoff {
			return PriceSeries{}, nil, &LookAheadError{AsOf: cutoff, Used: d}
		}
		out.Dates = append(out.Dates, d)
		out.Values = append(out.Values, prices.Values[i])
		if prices.Values[i] != nil {
			last = prices.Values[i]
		}
	}
	return out, last, nil
}

func intersectDates(assetReturns map[string]ReturnSeries, order []string) []string {
	counts := map[string]int{}
	for _, asset := range order {
		for _, d := range assetReturns[asset].Dates {
			counts[d]++
		}
	}
	var out []string
	for d, n := range counts {
		if n == len(order) {
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}

func alignReturns(assetReturns map[string]ReturnSeries, order []string, dates []string) map[string][]float64 {
	out := make(map[string][]float64, len(order))
	for _, asset := range order {
		rs := assetReturns[asset]
		byDate := make(map[string]float64, len(rs.Dates))
		for i, d := range rs.Dates {
			byDate[d] = rs.Values[i]
		}
		vals := make([]float64, len(dates))
		for i, d := range dates {
			vals[i] = byDate[d]
		}
		out[asset] = vals
	}
	return out
}

// computeWeights derives as-of notional weights per market_data_id, the
// exposure basis, and per-currency notionals (including cash balances).
func computeWeights(assets []pricedAsset, portfolio instruments.Portfolio) (map[string]float64, map[string]float64, map[string]float64) {
	basis := make(map[string]float64, len(assets))
	currency := map[string]float64{}
	total := 0.0
	for _, a := range assets {
		notional := a.quantity * a.lastPrice * a.multiplier
		basis[string(a.marketDataID)] += notional
		total += notional
		if a.currency != "" {
			currency[string(a.currency)] += notional
		}
	}
	for ccy, amount := range portfolio.Cash {
		currency[string(ccy)] += amount
	}

	weights := make(map[string]float64, len(basis))
	for asset, notional := range basis {
		if total != 0 {
			weights[asset] = notional / total
		} else {
			weights[asset] = notional
		}
	}
	return weights, basis, currency
}

// portfolioReturns builds the single portfolio return series per the
// request's input mode. PORTFOLIO_RETURNS compounds the actual aggregate
// notional series date by date; STATIC_WEIGHTS_X_ASSET_RETURNS holds
// weights fixed and warns that it ignores intra-window rebalancing.
func (e *Engine) portfolioReturns(req Request, assets []pricedAsset, aligned map[string][]float64, weights map[string]float64, order []string, dates []string) (ReturnSeries, error) {
	switch req.InputMode {
	case InputPortfolioReturns:
		return aggregateNotionalReturns(req.ReturnDefinition, assets)
	case InputStaticWeightsXAssetRets, "":
		assetSeries := make(map[string]ReturnSeries, len(order))
		for _, asset := range order {
			assetSeries[asset] = ReturnSeries{Dates: dates, Values: aligned[asset]}
		}
		return PortfolioReturns(InputStaticWeightsXAssetRets, assetSeries, weights, dates)
	default:
		return ReturnSeries{}, fmt.Errorf("risk: unknown input mode %q", req.InputMode)
	}
}

// aggregateNotionalReturns builds V_t = sum_i q_i * m_i * P_{i,t} over
// dates where every asset has a price, then returns of V. This reflects
// intra-window weight drift, unlike the static-weights approximation.
func aggregateNotionalReturns(definition ReturnDefinition, assets []pricedAsset) (ReturnSeries, error) {
	// A return on date t needs prices on t and its predecessor, so
	// rebuild from each asset's price series restricted to dates every
	// asset covers.
	counts := map[string]int{}
	priceAt := make([]map[string]float64, len(assets))
	for i, a := range assets {
		priceAt[i] = map[string]float64{}
		for j, d := range a.prices.Dates {
			if a.prices.Values[j] == nil {
				continue
			}
			priceAt[i][d] = *a.prices.Values[j]
			counts[d]++
		}
	}
	var dates []string
	for d, n := range counts {
		if n == len(assets) {
			dates = append(dates, d)
		}
	}
	sort.Strings(dates)

	values := make([]*float64, len(dates))
	for i, d := range dates {
		v := 0.0
		for j, a := range assets {
			v += a.quantity * a.multiplier * priceAt[j][d]
		}
		vv := v
		values[i] = &vv
	}
	return BuildReturns(PriceSeries{Dates: dates, Values: values}, definition, MissingError)
}

func (e *Engine) trackingError(req Request, benchmark quantschema.MarketDataId, source SeriesSource, portReturns ReturnSeries, annualization float64, startDate, endDate, cutoff string) (float64, error) {
	full, ok := source.Series(benchmark, "close")
	if !ok {
		return 0, &UnknownAssetError{MarketDataID: string(benchmark)}
	}
	clipped, _, err := clipSeries(full, startDate, endDate, cutoff)
	if err != nil {
		return 0, err
	}
	benchReturns, err := BuildReturns(clipped, req.ReturnDefinition, req.MissingDataPolicy)
	if err != nil {
		return 0, fmt.Errorf("risk: benchmark returns for %q: %w", benchmark, err)
	}

	benchByDate := make(map[string]float64, len(benchReturns.Dates))
	for i, d := range benchReturns.Dates {
		benchByDate[d] = benchReturns.Values[i]
	}
	var port, bench []float64
	for i, d := range portReturns.Dates {
		b, ok := benchByDate[d]
		if !ok {
			if req.MissingDataPolicy == MissingError {
				return 0, fmt.Errorf("risk: benchmark %q missing return on %s", benchmark, d)
			}
			continue
		}
		port = append(port, portReturns.Values[i])
		bench = append(bench, b)
	}
	if len(port) < 2 {
		return 0, &InsufficientSampleError{Have: len(port), Need: 2, For: "tracking error"}
	}
	return TrackingError(port, bench, annualization), nil
}
