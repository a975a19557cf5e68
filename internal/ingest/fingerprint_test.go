package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/quantlab/internal/quantschema"
)

func TestFetchRequestFingerprintStableUnderReordering(t *testing.T) {
	aapl, err := quantschema.NewInstrumentId("EQ.AAPL")
	require.NoError(t, err)
	msft, err := quantschema.NewInstrumentId("EQ.MSFT")
	require.NoError(t, err)

	r1 := FetchRequest{
		DatasetID:     "us_equities_eod",
		InstrumentIDs: []quantschema.InstrumentId{aapl, msft},
		Start:         time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		End:           time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		Fields:        []string{"close", "volume"},
		Granularity:   GranularityDaily,
	}
	r2 := FetchRequest{
		DatasetID:     "us_equities_eod",
		InstrumentIDs: []quantschema.InstrumentId{msft, aapl},
		Start:         r1.Start,
		End:           r1.End,
		Fields:        []string{"volume", "close"},
		Granularity:   GranularityDaily,
	}

	h1, err := r1.Fingerprint()
	require.NoError(t, err)
	h2, err := r2.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestFetchRequestFingerprintChangesWithDatasetID(t *testing.T) {
	aapl, err := quantschema.NewInstrumentId("EQ.AAPL")
	require.NoError(t, err)
	base := FetchRequest{
		DatasetID:     "us_equities_eod",
		InstrumentIDs: []quantschema.InstrumentId{aapl},
		Start:         time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		End:           time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		Fields:        []string{"close"},
	}
	other := base
	other.DatasetID = "eu_equities_eod"

	h1, err := base.Fingerprint()
	require.NoError(t, err)
	h2, err := other.Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
