package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/quantlab/internal/calendar"
	"github.com/quantlab/quantlab/internal/ingest"
	"github.com/quantlab/quantlab/internal/ingest/fixture"
	"github.com/quantlab/quantlab/internal/quantschema"
	"github.com/quantlab/quantlab/internal/storage"
)

type fakeRegistry struct {
	entries map[string]storage.Entry
}

func newFakeRegistry() *fakeRegistry { return &fakeRegistry{entries: map[string]storage.Entry{}} }

func (f *fakeRegistry) key(datasetID, datasetVersion string) string {
	return datasetID + "/" + datasetVersion
}

func (f *fakeRegistry) Append(ctx context.Context, e storage.Entry) error {
	k := f.key(e.DatasetID, e.DatasetVersion)
	if _, ok := f.entries[k]; ok {
		return &storage.RegistryConflictError{DatasetID: e.DatasetID, DatasetVersion: e.DatasetVersion}
	}
	f.entries[k] = e
	return nil
}

func (f *fakeRegistry) Get(ctx context.Context, datasetID, datasetVersion string) (storage.Entry, error) {
	e, ok := f.entries[f.key(datasetID, datasetVersion)]
	if !ok {
		return storage.Entry{}, &storage.NotFoundError{DatasetID: datasetID, DatasetVersion: datasetVersion}
	}
	return e, nil
}

func (f *fakeRegistry) VerifyIntegrity(ctx context.Context, zone *storage.CanonicalZone, datasetID, datasetVersion string) error {
	entry, err := f.Get(ctx, datasetID, datasetVersion)
	if err != nil {
		return err
	}
	actual, err := zone.RecomputeContentHash(datasetID, datasetVersion)
	if err != nil {
		return err
	}
	if actual != entry.ContentHash {
		return &storage.IntegrityError{DatasetID: datasetID, DatasetVersion: datasetVersion, Expected: entry.ContentHash, Actual: actual}
	}
	return nil
}

var _ storage.Registry = (*fakeRegistry)(nil)

func newTestRunner(t *testing.T) (*ingest.IngestionRunner, *fakeRegistry) {
	t.Helper()
	providerDir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(providerDir, "us_equities_eod.csv"),
		[]byte("instrument_id,date,open,high,low,close,volume\nEQ.AAPL,2024-01-02,100,102,99,101,1000000\n"),
		0o644,
	))

	rawZone, err := storage.NewLocalZone(t.TempDir())
	require.NoError(t, err)
	canonicalZone, err := storage.NewLocalZone(t.TempDir())
	require.NoError(t, err)

	aapl, err := quantschema.NewInstrumentId("EQ.AAPL")
	require.NoError(t, err)

	xnys := &calendar.VenueCalendar{
		MIC:          "XNYS",
		Timezone:     "America/New_York",
		TradingDays:  map[string]struct{}{"2024-01-02": {}},
		RegularClose: 16 * time.Hour,
	}

	registry := newFakeRegistry()
	runner := ingest.NewIngestionRunner(ingest.RunnerConfig{
		Adapter:       fixture.NewAdapter(providerDir),
		RawZone:       storage.NewRawZone(rawZone),
		CanonicalZone: storage.NewCanonicalZone(canonicalZone),
		Registry:      registry,
		MappingContext: ingest.MappingContext{
			SchemaVersion: "1",
			Calendars:     map[calendar.MIC]*calendar.VenueCalendar{"XNYS": xnys},
			InstrumentMIC: map[quantschema.InstrumentId]calendar.MIC{aapl: "XNYS"},
			InstrumentCcy: map[quantschema.InstrumentId]quantschema.Currency{aapl: "USD"},
		},
		UniverseHash:    "uhash",
		CalendarVer:     "cal-1",
		SessionRulesVer: "rules-1",
	})
	return runner, registry
}

func TestIngestionRunnerEndToEnd(t *testing.T) {
	runner, registry := newTestRunner(t)
	req := ingest.FetchRequest{DatasetID: "us_equities_eod", Granularity: ingest.GranularityDaily}

	result, err := runner.Run(context.Background(), req, "2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, 1, result.RowCount)
	assert.NotEmpty(t, result.ContentHash)
	assert.True(t, result.ValidationReport.CanPublish())

	entry, err := registry.Get(context.Background(), "us_equities_eod", "2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, result.ContentHash, entry.ContentHash)
}

func TestIngestionRunnerRegistryConflictOnRepublish(t *testing.T) {
	runner, _ := newTestRunner(t)
	req := ingest.FetchRequest{DatasetID: "us_equities_eod", Granularity: ingest.GranularityDaily}

	_, err := runner.Run(context.Background(), req, "2024-01-02")
	require.NoError(t, err)

	_, err = runner.Run(context.Background(), req, "2024-01-02")
	require.Error(t, err)
	var conflict *storage.RegistryConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestIngestionRunnerFetchErrorSurfaced(t *testing.T) {
	runner, _ := newTestRunner(t)
	req := ingest.FetchRequest{DatasetID: "does_not_exist", Granularity: ingest.GranularityDaily}

	_, err := runner.Run(context.Background(), req, "2024-01-02")
	require.Error(t, err)
	var fetchErr *ingest.ProviderFetchError
	require.ErrorAs(t, err, &fetchErr)
}
