package instruments

import (
	"testing"
	"time"

	"github.com/quantlab/quantlab/internal/quantschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustID(t *testing.T, raw string) quantschema.InstrumentId {
	t.Helper()
	id, err := quantschema.NewInstrumentId(raw)
	require.NoError(t, err)
	return id
}

func mustMDID(t *testing.T, raw string) quantschema.MarketDataId {
	t.Helper()
	id, err := quantschema.NewMarketDataId(raw)
	require.NoError(t, err)
	return id
}

func mustCcy(t *testing.T, raw string) quantschema.Currency {
	t.Helper()
	c, err := quantschema.NewCurrency(raw)
	require.NoError(t, err)
	return c
}

func TestNewInstrumentEquityRequiresMarketDataID(t *testing.T) {
	id := mustID(t, "EQ.AAPL")
	_, err := NewInstrument("1", id, EquitySpec{}, nil, nil, nil)
	assert.Error(t, err)

	mdid := mustMDID(t, "NASDAQ:AAPL")
	inst, err := NewInstrument("1", id, EquitySpec{}, &mdid, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, TypeEquity, inst.InstrumentType)
}

func TestNewInstrumentCashRequiresCurrency(t *testing.T) {
	id := mustID(t, "CASH.EUR")
	_, err := NewInstrument("1", id, CashSpec{}, nil, nil, nil)
	assert.Error(t, err)

	ccy := mustCcy(t, "EUR")
	inst, err := NewInstrument("1", id, CashSpec{}, nil, &ccy, nil)
	require.NoError(t, err)
	assert.Equal(t, TypeCash, inst.InstrumentType)
}

func TestNewInstrumentFutureValidatesMultiplierAndExpiry(t *testing.T) {
	id := mustID(t, "FUT.ES")
	mdid := mustMDID(t, "CME:ES")

	_, err := NewInstrument("1", id, FutureSpec{Multiplier: 0, Expiry: time.Now()}, &mdid, nil, nil)
	assert.Error(t, err)

	_, err = NewInstrument("1", id, FutureSpec{Multiplier: 50}, &mdid, nil, nil)
	assert.Error(t, err)

	inst, err := NewInstrument("1", id, FutureSpec{Multiplier: 50, Expiry: time.Now()}, &mdid, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, TypeFuture, inst.InstrumentType)
}

func TestNewInstrumentIndexNonTradablePermitsNilMarketDataID(t *testing.T) {
	id := mustID(t, "IDX.SPX")
	inst, err := NewInstrument("1", id, IndexSpec{IsTradable: false}, nil, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, inst.MarketDataID)
}

func TestNewPortfolioSortsPositionsAndCash(t *testing.T) {
	positions := []Position{
		{InstrumentID: mustID(t, "EQ.MSFT"), Quantity: 5},
		{InstrumentID: mustID(t, "EQ.AAPL"), Quantity: 10},
	}
	cash := map[quantschema.Currency]float64{"eur": 100, "usd": 50}
	pf, err := NewPortfolio("1", time.Now().UTC(), positions, cash, nil)
	require.NoError(t, err)
	require.Len(t, pf.Positions, 2)
	assert.Equal(t, quantschema.InstrumentId("EQ.AAPL"), pf.Positions[0].InstrumentID)
	assert.Equal(t, quantschema.InstrumentId("EQ.MSFT"), pf.Positions[1].InstrumentID)
	assert.Equal(t, []quantschema.Currency{"EUR", "USD"}, pf.SortedCashCurrencies())
}

func TestNewPortfolioRejectsDuplicateInstrumentID(t *testing.T) {
	positions := []Position{
		{InstrumentID: mustID(t, "EQ.AAPL"), Quantity: 1},
		{InstrumentID: mustID(t, "EQ.AAPL"), Quantity: 2},
	}
	_, err := NewPortfolio("1", time.Now().UTC(), positions, nil, nil)
	assert.Error(t, err)
}

func TestNewPortfolioRejectsNegativeQuantity(t *testing.T) {
	positions := []Position{{InstrumentID: mustID(t, "EQ.AAPL"), Quantity: -1}}
	_, err := NewPortfolio("1", time.Now().UTC(), positions, nil, nil)
	assert.Error(t, err)
}

func TestPortfolioCanonicalMapIsOrderIndependent(t *testing.T) {
	asOf := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	a, err := NewPortfolio("1", asOf, []Position{
		{InstrumentID: mustID(t, "EQ.AAPL"), Quantity: 10},
		{InstrumentID: mustID(t, "EQ.MSFT"), Quantity: 5},
	}, map[quantschema.Currency]float64{"USD": 100}, nil)
	require.NoError(t, err)

	b, err := NewPortfolio("1", asOf, []Position{
		{InstrumentID: mustID(t, "EQ.MSFT"), Quantity: 5},
		{InstrumentID: mustID(t, "EQ.AAPL"), Quantity: 10},
	}, map[quantschema.Currency]float64{"USD": 100}, nil)
	require.NoError(t, err)

	ma, err := a.CanonicalMap()
	require.NoError(t, err)
	mb, err := b.CanonicalMap()
	require.NoError(t, err)
	assert.Equal(t, ma, mb)
}
