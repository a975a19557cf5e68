package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/quantlab/internal/calendar"
	"github.com/quantlab/quantlab/internal/quantschema"
)

func xnysVenue() *calendar.VenueCalendar {
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

func testMappingContext(t *testing.T) MappingContext {
	t.Helper()
	aapl, err := quantschema.NewInstrumentId("EQ.AAPL")
	require.NoError(t, err)
	return MappingContext{
		DatasetID:      "us_equities_eod",
		SchemaVersion:  "1",
		DatasetVersion: "2024-01-05",
		IngestRunID:    "run-1",
		Calendars:      map[calendar.MIC]*calendar.VenueCalendar{"XNYS": xnysVenue()},
		InstrumentMIC:  map[quantschema.InstrumentId]calendar.MIC{aapl: "XNYS"},
		InstrumentCcy:  map[quantschema.InstrumentId]quantschema.Currency{aapl: "USD"},
	}
}

func TestNormalizeProducesCanonicalBarRecords(t *testing.T) {
	raw := RawResponse{
		PayloadFormat: PayloadCSV,
		Payload:       []byte("instrument_id,date,open,high,low,close,volume\nEQ.AAPL,2024-01-02,100,102,99,101,1000000\n"),
		Source:        quantschema.Source{Provider: "fixture", Endpoint: "fixture://local"},
		FetchedAtTs:   time.Date(2024, 1, 2, 22, 0, 0, 0, time.UTC),
	}

	recs, err := NewNormalizer().Normalize(raw, testMappingContext(t))
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, quantschema.TsExchangeClose, rec.TsProvenance)
	assert.Equal(t, time.UTC, rec.Ts.Location())
	assert.Equal(t, 101.0, rec.Close)
	assert.Equal(t, "2024-01-02", rec.TradingDateLocal)
	assert.Equal(t, quantschema.Currency("USD"), rec.Currency)
}

func TestNormalizeRejectsUnknownInstrument(t *testing.T) {
	raw := RawResponse{
		PayloadFormat: PayloadCSV,
		Payload:       []byte("instrument_id,date,open,high,low,close,volume\nEQ.UNKNOWN,2024-01-02,100,102,99,101,1000\n"),
		FetchedAtTs:   time.Date(2024, 1, 2, 22, 0, 0, 0, time.UTC),
	}

	_, err := NewNormalizer().Normalize(raw, testMappingContext(t))
	require.Error(t, err)
	var normErr *NormalizationError
	require.ErrorAs(t, err, &normErr)
}

func TestNormalizeFlagsCalendarConflictForClosedDayDelivery(t *testing.T) {
	mc := testMappingContext(t)
	raw := RawResponse{
		PayloadFormat: PayloadCSV,
		// 2024-01-01 is a federal holiday, not in the trading-day set.
		Payload:     []byte("instrument_id,date,open,high,low,close,volume\nEQ.AAPL,2024-01-01,100,102,99,101,1000\n"),
		FetchedAtTs: time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC),
	}

	recs, err := NewNormalizer().Normalize(raw, mc)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].QualityFlags.Has(quantschema.FlagCalendarConflict))
}

func TestNormalizeRejectsUnsupportedPayloadFormat(t *testing.T) {
	raw := RawResponse{PayloadFormat: PayloadJSON, Payload: []byte("{}")}
	_, err := NewNormalizer().Normalize(raw, testMappingContext(t))
	require.Error(t, err)
}
