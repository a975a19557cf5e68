package access

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/quantlab/internal/calendar"
	"github.com/quantlab/quantlab/internal/quantschema"
)

func xnysCalendar(t *testing.T) *calendar.VenueCalendar {
	t.Helper()
	days := map[string]struct{}{}
	for _, d := range []string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"} {
		days[d] = struct{}{}
	}
	return &calendar.VenueCalendar{
		MIC:          "XNYS",
		Timezone:     "America/New_York",
		TradingDays:  days,
		RegularClose: 16 * time.Hour,
	}
}

func writeFixture(t *testing.T, dir, symbol, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(dir+"/"+symbol+".csv", []byte(content), 0o644))
}

func newTestService(t *testing.T, providerDir, cacheDir string) *Service {
	t.Helper()
	cache, err := NewCache(cacheDir)
	require.NoError(t, err)
	mapper := StaticSymbolMapper{"EQ.AAPL": "AAPL"}
	provider := NewFixtureSeriesProvider(providerDir)
	return NewService(provider, mapper, xnysCalendar(t), cache)
}

func TestRequestHashStableUnderReordering(t *testing.T) {
	r1 := TimeSeriesRequest{
		Provider: "fixture",
		AssetIDs: []quantschema.MarketDataId{"EQ.AAPL", "EQ.MSFT"},
		Fields:   []string{"close", "volume"},
		Start:    time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
	}
	r2 := TimeSeriesRequest{
		Provider: "fixture",
		AssetIDs: []quantschema.MarketDataId{"EQ.MSFT", "EQ.AAPL"},
		Fields:   []string{"volume", "close"},
		Start:    r1.Start,
		End:      r1.End,
	}
	h1, err := r1.Hash()
	require.NoError(t, err)
	h2, err := r2.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "request hash must not depend on asset/field insertion order")
}

func TestGetTimeSeriesCalendarAlignment(t *testing.T) {
	providerDir := t.TempDir()
	cacheDir := t.TempDir()
	writeFixture(t, providerDir, "AAPL",
		"date,field,value\n"+
			"2024-01-02,close,100\n"+
			"2024-01-03,close,101\n"+
			"2024-01-04,close,102\n"+
			"2024-01-05,close,103\n")

	svc := newTestService(t, providerDir, cacheDir)
	req := TimeSeriesRequest{
		Provider:          "fixture",
		AssetIDs:          []quantschema.MarketDataId{"EQ.AAPL"},
		Fields:            []string{"close"},
		Start:             time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		End:               time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		MissingDataPolicy: MissingDataNanOK,
		ValidationPolicy:  DefaultValidationPolicy(),
	}
	bundle, err := svc.GetTimeSeries(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"}, bundle.Dates)

	col := bundle.Columns[ColumnKey{Asset: "EQ.AAPL", Field: "close"}]
	require.Len(t, col, 4)
	assert.Equal(t, 100.0, *col[0])
	assert.Equal(t, 103.0, *col[3])
}

func TestGetTimeSeriesFlagsSuspectCorpAction(t *testing.T) {
	providerDir := t.TempDir()
	cacheDir := t.TempDir()
	writeFixture(t, providerDir, "AAPL",
		"date,field,value\n"+
			"2024-01-02,close,100\n"+
			"2024-01-03,close,100\n"+
			"2024-01-04,close,50\n"+
			"2024-01-05,close,51\n")

	svc := newTestService(t, providerDir, cacheDir)
	req := TimeSeriesRequest{
		Provider:          "fixture",
		AssetIDs:          []quantschema.MarketDataId{"EQ.AAPL"},
		Fields:            []string{"close"},
		Start:             time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		End:               time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		MissingDataPolicy: MissingDataNanOK,
		ValidationPolicy:  DefaultValidationPolicy(),
	}
	bundle, err := svc.GetTimeSeries(context.Background(), req)
	require.NoError(t, err)

	flags, ok := bundle.Quality.Flags["EQ.AAPL"]
	require.True(t, ok)
	assert.True(t, flags.Has(quantschema.FlagSuspectCorpAction))
}

// countingProvider fails the test if FetchField is invoked more than once
// per (symbol, field) pair, proving a replay served from the cache rather
// than re-fetching.
type countingProvider struct {
	*FixtureSeriesProvider
	calls map[string]int
}

func (p *countingProvider) FetchField(ctx context.Context, providerSymbol, field string, start, end time.Time) ([]Observation, error) {
	key := providerSymbol + "/" + field
	p.calls[key]++
	if p.calls[key] > 1 {
		return nil, errors.New("provider fetched more than once for a cached request")
	}
	return p.FixtureSeriesProvider.FetchField(ctx, providerSymbol, field, start, end)
}

func TestGetTimeSeriesCacheHitDoesNotRefetch(t *testing.T) {
	providerDir := t.TempDir()
	cacheDir := t.TempDir()
	writeFixture(t, providerDir, "AAPL",
		"date,field,value\n"+
			"2024-01-02,close,100\n"+
			"2024-01-03,close,101\n"+
			"2024-01-04,close,102\n"+
			"2024-01-05,close,103\n")

	counting := &countingProvider{FixtureSeriesProvider: NewFixtureSeriesProvider(providerDir), calls: map[string]int{}}
	svc := &Service{
		Provider:     counting,
		SymbolMapper: StaticSymbolMapper{"EQ.AAPL": "AAPL"},
		Calendar:     xnysCalendar(t),
		Cache:        mustCache(t, cacheDir),
		now:          time.Now,
	}
	req := TimeSeriesRequest{
		Provider:          "fixture",
		AssetIDs:          []quantschema.MarketDataId{"EQ.AAPL"},
		Fields:            []string{"close"},
		Start:             time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		End:               time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		MissingDataPolicy: MissingDataNanOK,
		ValidationPolicy:  DefaultValidationPolicy(),
	}

	first, err := svc.GetTimeSeries(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.GetTimeSeries(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Dates, second.Dates)
	col := second.Columns[ColumnKey{Asset: "EQ.AAPL", Field: "close"}]
	require.Len(t, col, 4)
	assert.Equal(t, 100.0, *col[0])
}

func mustCache(t *testing.T, dir string) *Cache {
	t.Helper()
	c, err := NewCache(dir)
	require.NoError(t, err)
	return c
}

func TestDedupDisciplineLastWins(t *testing.T) {
	obs := []Observation{{Date: "2024-01-02", Value: 100}, {Date: "2024-01-02", Value: 105}}
	byDate, dupCount, err := dedup("EQ.AAPL", obs, DedupLast)
	require.NoError(t, err)
	assert.Equal(t, 1, dupCount)
	assert.Equal(t, 105.0, byDate["2024-01-02"])
}

func TestDedupDisciplineErrorRaises(t *testing.T) {
	obs := []Observation{{Date: "2024-01-02", Value: 100}, {Date: "2024-01-02", Value: 105}}
	_, _, err := dedup("EQ.AAPL", obs, DedupError)
	var dupErr *DuplicateDateError
	require.ErrorAs(t, err, &dupErr)
}

func TestMissingDataPolicyErrorRaisesOnGap(t *testing.T) {
	providerDir := t.TempDir()
	cacheDir := t.TempDir()
	writeFixture(t, providerDir, "AAPL",
		"date,field,value\n"+
			"2024-01-02,close,100\n"+
			"2024-01-04,close,102\n")

	svc := newTestService(t, providerDir, cacheDir)
	req := TimeSeriesRequest{
		Provider:          "fixture",
		AssetIDs:          []quantschema.MarketDataId{"EQ.AAPL"},
		Fields:            []string{"close"},
		Start:             time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		End:               time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		MissingDataPolicy: MissingDataError,
		ValidationPolicy:  DefaultValidationPolicy(),
	}
	_, err := svc.GetTimeSeries(context.Background(), req)
	var missingErr *MissingValueError
	require.ErrorAs(t, err, &missingErr)
}

func TestMissingSymbolMapping(t *testing.T) {
	mapper := StaticSymbolMapper{"EQ.AAPL": "AAPL"}
	_, err := mapper.ProviderSymbol("EQ.UNKNOWN")
	var mapErr *MissingSymbolMappingError
	require.ErrorAs(t, err, &mapErr)
}
