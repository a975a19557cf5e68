// Package fixture implements the MVP ProviderAdapter: a local CSV fixture
// reader. It is the adapter the IngestionRunner exercises in tests and
// local runs before any HTTP vendor adapter exists, and it implements the
// exact same contract an HTTP adapter would: adapters read bytes, they
// never normalize, apply FX, or do calendar logic.
package fixture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/quantlab/quantlab/internal/ingest"
	"github.com/quantlab/quantlab/internal/quantschema"
)

// Adapter reads one CSV file per dataset from Root, named
// "<dataset_id>.csv". It never mutates the file it reads.
type Adapter struct {
	Root     string
	Endpoint string
}

// NewAdapter constructs a fixture Adapter rooted at dir.
func NewAdapter(dir string) *Adapter {
	return &Adapter{Root: dir, Endpoint: "fixture://local"}
}

// Name identifies the adapter for logging, circuit-breaker naming, and
// Source.Provider.
func (a *Adapter) Name() string { return "fixture" }

// Fetch reads "<root>/<dataset_id>.csv" verbatim as RawResponse.Payload.
// The FetchRequest's time range and field filters are not applied here —
// a fixture adapter delivers whatever the file contains and lets the
// Normalizer/Validator react to any mismatch, exactly like a real vendor
// response would.
func (a *Adapter) Fetch(ctx context.Context, req ingest.FetchRequest) (ingest.RawResponse, error) {
	select {
	case <-ctx.Done():
		return ingest.RawResponse{}, ctx.Err()
	default:
	}

	path := filepath.Join(a.Root, req.DatasetID+".csv")
	data, err := os.ReadFile(path)
	if err != nil {
		return ingest.RawResponse{}, &ingest.ProviderFetchError{Provider: a.Name(), Err: fmt.Errorf("read fixture %s: %w", path, err)}
	}

	fetchedAt := time.Now().UTC()
	return ingest.RawResponse{
		Payload:       data,
		PayloadFormat: ingest.PayloadCSV,
		Source: quantschema.Source{
			Provider: a.Name(),
			Endpoint: a.Endpoint,
		},
		FetchedAtTs: fetchedAt,
		TransportMeta: ingest.TransportMeta{
			HTTPStatus: 200,
			Attempts:   1,
		},
	}, nil
}

var _ ingest.ProviderAdapter = (*Adapter)(nil)
