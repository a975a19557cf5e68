package pricing

import (
	"testing"
	"time"

	"github.com/quantlab/quantlab/internal/hashing"
	"github.com/quantlab/quantlab/internal/instruments"
	"github.com/quantlab/quantlab/internal/quantschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeView struct {
	values map[string]float64
}

func key(asset quantschema.MarketDataId, field string, asOf time.Time) string {
	return string(asset) + "|" + field + "|" + asOf.UTC().Format("2006-01-02")
}

func (f *fakeView) GetValue(asset quantschema.MarketDataId, field string, asOf time.Time) (float64, error) {
	v, ok := f.values[key(asset, field, asOf)]
	if !ok {
		return 0, &MissingPriceError{Asset: string(asset), Field: field}
	}
	return v, nil
}

func (f *fakeView) HasValue(asset quantschema.MarketDataId, field string, asOf time.Time) bool {
	_, ok := f.values[key(asset, field, asOf)]
	return ok
}

func (f *fakeView) GetPoint(asset quantschema.MarketDataId, field string, asOf time.Time) (MarketPoint, error) {
	v, err := f.GetValue(asset, field, asOf)
	if err != nil {
		return MarketPoint{}, err
	}
	return MarketPoint{Value: v}, nil
}

func TestResolveFXSameCurrencyIsIdentity(t *testing.T) {
	view := &fakeView{}
	res, err := ResolveFX(view, "USD", "USD", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.RateEffective)
	assert.Nil(t, res.AssetIDUsed)
}

func TestResolveFXInversion(t *testing.T) {
	asOf := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)
	view := &fakeView{values: map[string]float64{key(FXEURUSDAssetID, fxField, asOf): 1.10}}

	res, err := ResolveFX(view, "USD", "EUR", asOf)
	require.NoError(t, err)
	assert.True(t, res.Inverted)
	assert.InDelta(t, 1/1.10, res.RateEffective, 1e-12)

	res2, err := ResolveFX(view, "EUR", "USD", asOf)
	require.NoError(t, err)
	assert.False(t, res2.Inverted)
	assert.Equal(t, 1.10, res2.RateEffective)
}

func TestResolveFXUnsupportedCurrency(t *testing.T) {
	view := &fakeView{}
	_, err := ResolveFX(view, "GBP", "USD", time.Now())
	assert.Error(t, err)
}

func TestResolveFXMissingRate(t *testing.T) {
	view := &fakeView{}
	_, err := ResolveFX(view, "EUR", "USD", time.Now())
	var missing *MissingFxRateError
	assert.ErrorAs(t, err, &missing)
}

func TestValuationEngineFXInversionScenario(t *testing.T) {
	asOf := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)
	mdid := quantschema.MarketDataId("AAPL")
	view := &fakeView{values: map[string]float64{
		key(mdid, "close", asOf):             200.00,
		key(FXEURUSDAssetID, fxField, asOf): 1.10,
	}}

	iid, err := quantschema.NewInstrumentId("EQ.AAPL")
	require.NoError(t, err)
	usd, err := quantschema.NewCurrency("USD")
	require.NoError(t, err)
	eur, err := quantschema.NewCurrency("EUR")
	require.NoError(t, err)

	inst, err := instruments.NewInstrument("1", iid, instruments.EquitySpec{}, &mdid, &usd, nil)
	require.NoError(t, err)

	pf, err := instruments.NewPortfolio("1", asOf, []instruments.Position{
		{InstrumentID: iid, Quantity: 10},
	}, map[quantschema.Currency]float64{"EUR": 1000}, nil)
	require.NoError(t, err)

	engine := NewEngine()
	catalog := Instruments{iid: inst}
	val, err := engine.Value(pf, catalog, view, eur, asOf)
	require.NoError(t, err)

	require.Len(t, val.Positions, 1)
	pv := val.Positions[0]
	assert.Equal(t, 2000.0, pv.NotionalNative)
	assert.InDelta(t, 2000.0/1.10, pv.NotionalBase, 1e-9)
	assert.True(t, pv.FxInverted)
	require.NotNil(t, pv.FxAssetIDUsed)
	assert.Equal(t, FXEURUSDAssetID, *pv.FxAssetIDUsed)

	assert.InDelta(t, 1000+2000.0/1.10, val.NavBase, 1e-9)
}

func TestValuationEngineScalesLinearlyWithQuantity(t *testing.T) {
	asOf := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	mdid := quantschema.MarketDataId("AAPL")
	view := &fakeView{values: map[string]float64{key(mdid, "close", asOf): 150.0}}

	iid, _ := quantschema.NewInstrumentId("EQ.AAPL")
	usd, _ := quantschema.NewCurrency("USD")
	inst, err := instruments.NewInstrument("1", iid, instruments.EquitySpec{}, &mdid, &usd, nil)
	require.NoError(t, err)
	catalog := Instruments{iid: inst}
	engine := NewEngine()

	pf1, _ := instruments.NewPortfolio("1", asOf, []instruments.Position{{InstrumentID: iid, Quantity: 2}}, nil, nil)
	v1, err := engine.Value(pf1, catalog, view, usd, asOf)
	require.NoError(t, err)

	pf2, _ := instruments.NewPortfolio("1", asOf, []instruments.Position{{InstrumentID: iid, Quantity: 6}}, nil, nil)
	v2, err := engine.Value(pf2, catalog, view, usd, asOf)
	require.NoError(t, err)

	assert.InDelta(t, v1.Positions[0].NotionalNative*3, v2.Positions[0].NotionalNative, 1e-9)
	assert.InDelta(t, v1.Positions[0].NotionalBase*3, v2.Positions[0].NotionalBase, 1e-9)
	assert.Equal(t, v1.Positions[0].NotionalNative, v1.Positions[0].NotionalBase)
	assert.Nil(t, v1.Positions[0].FxAssetIDUsed)
}

func TestPortfolioValuationContentHashIsStable(t *testing.T) {
	asOf := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	mdid := quantschema.MarketDataId("AAPL")
	view := &fakeView{values: map[string]float64{key(mdid, "close", asOf): 150.0}}

	iid, _ := quantschema.NewInstrumentId("EQ.AAPL")
	usd, _ := quantschema.NewCurrency("USD")
	inst, err := instruments.NewInstrument("1", iid, instruments.EquitySpec{}, &mdid, &usd, nil)
	require.NoError(t, err)
	catalog := Instruments{iid: inst}
	engine := NewEngine()

	pf, _ := instruments.NewPortfolio("1", asOf, []instruments.Position{{InstrumentID: iid, Quantity: 2}}, nil, nil)
	v1, err := engine.Value(pf, catalog, view, usd, asOf)
	require.NoError(t, err)
	v2, err := engine.Value(pf, catalog, view, usd, asOf)
	require.NoError(t, err)

	h1, err := hashing.ContentHash(v1)
	require.NoError(t, err)
	h2, err := hashing.ContentHash(v2)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestValuationEngineMissingPricerFailsFast(t *testing.T) {
	asOf := time.Now().UTC()
	iid, _ := quantschema.NewInstrumentId("BOND.X")
	inst, err := instruments.NewInstrument("1", iid, instruments.BondSpec{Maturity: asOf.AddDate(5, 0, 0)}, nil, nil, nil)
	require.NoError(t, err)
	engine := NewEngine()
	catalog := Instruments{iid: inst}
	pf, _ := instruments.NewPortfolio("1", asOf, []instruments.Position{{InstrumentID: iid, Quantity: 1}}, nil, nil)
	_, err = engine.Value(pf, catalog, &fakeView{}, "USD", asOf)
	assert.Error(t, err)
}
