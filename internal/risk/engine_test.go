package risk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/quantlab/internal/instruments"
	"github.com/quantlab/quantlab/internal/quantschema"
)

type mapSource map[string]PriceSeries

func (m mapSource) Series(asset quantschema.MarketDataId, field string) (PriceSeries, bool) {
	s, ok := m[string(asset)]
	return s, ok
}

func fp(v float64) *float64 { return &v }

func testFixture(t *testing.T) (instruments.Portfolio, map[quantschema.InstrumentId]instruments.Instrument, mapSource) {
	t.Helper()
	usd := quantschema.Currency("USD")
	mdSPY := quantschema.MarketDataId("EQ:SPY")
	mdAGG := quantschema.MarketDataId("EQ:AGG")

	spy, err := instruments.NewInstrument("1", "EQ.SPY", instruments.EquitySpec{}, &mdSPY, &usd, nil)
	require.NoError(t, err)
	agg, err := instruments.NewInstrument("1", "EQ.AGG", instruments.EquitySpec{}, &mdAGG, &usd, nil)
	require.NoError(t, err)

	asOf := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	portfolio, err := instruments.NewPortfolio("1", asOf,
		[]instruments.Position{
			{InstrumentID: "EQ.SPY", Quantity: 10},
			{InstrumentID: "EQ.AGG", Quantity: 100},
		}, nil, nil)
	require.NoError(t, err)

	catalog := map[quantschema.InstrumentId]instruments.Instrument{
		"EQ.SPY": spy,
		"EQ.AGG": agg,
	}
	dates := []string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05", "2024-01-08"}
	source := mapSource{
		"EQ:SPY": {Dates: dates, Values: []*float64{fp(470), fp(472), fp(468), fp(471), fp(474)}},
		"EQ:AGG": {Dates: dates, Values: []*float64{fp(98), fp(98.2), fp(97.9), fp(98.1), fp(98.3)}},
	}
	return portfolio, catalog, source
}

func baseRequest() Request {
	return Request{
		AsOf:                time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		Window:              Window{Start: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)},
		ReturnDefinition:    ReturnSimple,
		AnnualizationFactor: 252,
		ConfidenceLevels:    []float64{0.90},
		InputMode:           InputStaticWeightsXAssetRets,
		MissingDataPolicy:   MissingError,
		CovarianceEstimator: CovarianceSample,
	}
}

func TestEngineComputeAssemblesReport(t *testing.T) {
	portfolio, catalog, source := testFixture(t)
	report, err := NewEngine().Compute(context.Background(), baseRequest(), portfolio, catalog, source)
	require.NoError(t, err)

	assert.Equal(t, ReportVersion, report.ReportVersion)
	assert.NotEmpty(t, report.Lineage.PortfolioSnapshotHash)
	assert.Greater(t, report.Metrics.Volatility, 0.0)
	require.NotNil(t, report.Metrics.Covariance)
	assert.True(t, report.Metrics.Covariance.IsSymmetric)
	require.Len(t, report.Metrics.VarEs, 1)
	assert.GreaterOrEqual(t, report.Metrics.VarEs[0].ES, report.Metrics.VarEs[0].VaR)

	// Static-weights mode must carry the rebalancing approximation warning.
	assert.Contains(t, report.Warnings, "approximation ignores intra-window rebalancing")

	// Contributions reconcile to variance.
	sum := 0.0
	for _, c := range report.Attribution.Contributions {
		sum += c
	}
	assert.InDelta(t, report.Attribution.Variance, sum, 1e-9)

	// Weights normalized over the two priced positions.
	total := 0.0
	for _, w := range report.Exposures.AssetWeights {
		total += w
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestEngineComputePortfolioReturnsMode(t *testing.T) {
	portfolio, catalog, source := testFixture(t)
	req := baseRequest()
	req.InputMode = InputPortfolioReturns

	report, err := NewEngine().Compute(context.Background(), req, portfolio, catalog, source)
	require.NoError(t, err)
	assert.NotContains(t, report.Warnings, "approximation ignores intra-window rebalancing")
	assert.Greater(t, report.Metrics.Volatility, 0.0)
}

func TestEngineComputeRejectsLookAhead(t *testing.T) {
	portfolio, catalog, source := testFixture(t)
	req := baseRequest()
	// Window extends past as_of, and the bundle has data there.
	req.AsOf = time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)

	_, err := NewEngine().Compute(context.Background(), req, portfolio, catalog, source)
	require.Error(t, err)
	var lookAhead *LookAheadError
	assert.ErrorAs(t, err, &lookAhead)
}

func TestEngineComputeUnknownAsset(t *testing.T) {
	portfolio, catalog, source := testFixture(t)
	delete(source, "EQ:AGG")

	_, err := NewEngine().Compute(context.Background(), baseRequest(), portfolio, catalog, source)
	require.Error(t, err)
	var unknown *UnknownAssetError
	assert.ErrorAs(t, err, &unknown)
}

func TestEngineComputeTrackingError(t *testing.T) {
	portfolio, catalog, source := testFixture(t)
	bench := quantschema.MarketDataId("IDX:BENCH")
	source["IDX:BENCH"] = PriceSeries{
		Dates:  []string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05", "2024-01-08"},
		Values: []*float64{fp(1000), fp(1004), fp(996), fp(1002), fp(1008)},
	}
	req := baseRequest()
	req.BenchmarkMarketDataID = &bench

	report, err := NewEngine().Compute(context.Background(), req, portfolio, catalog, source)
	require.NoError(t, err)
	require.NotNil(t, report.Metrics.TrackingError)
	assert.Greater(t, *report.Metrics.TrackingError, 0.0)
	assert.Equal(t, "IDX:BENCH", report.Lineage.BenchmarkID)
}

func TestEngineComputeCancelled(t *testing.T) {
	portfolio, catalog, source := testFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine().Compute(ctx, baseRequest(), portfolio, catalog, source)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngineComputeLookbackWindow(t *testing.T) {
	portfolio, catalog, source := testFixture(t)
	req := baseRequest()
	req.Window = Window{LookbackDays: 10}

	report, err := NewEngine().Compute(context.Background(), req, portfolio, catalog, source)
	require.NoError(t, err)
	require.NotNil(t, report.Metrics.Covariance)
	assert.Equal(t, 4, report.Metrics.Covariance.SampleSize)
}
