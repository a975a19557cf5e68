// Package ingest implements the provider boundary and ingestion runner:
// a ProviderAdapter contract, a pure Normalizer, a
// Validator that partitions findings into hard errors and soft flags, and
// the IngestionRunner that composes fetch -> raw-zone write -> normalize ->
// validate -> canonical stage -> content hash -> publish -> registry
// append.
package ingest

import (
	"context"
	"time"

	"github.com/quantlab/quantlab/internal/quantschema"
)

// Granularity names the sampling frequency of a FetchRequest. QuantLab's
// cores only reason about end-of-day bars; intraday data is out of
// scope.
type Granularity string

const GranularityDaily Granularity = "1D"

// FetchRequest describes one provider call. VendorOverrides carries
// provider-specific knobs (field name remaps, adjustment mode) that never
// leak past the Normalizer.
type FetchRequest struct {
	DatasetID       string
	InstrumentIDs   []quantschema.InstrumentId
	Start           time.Time
	End             time.Time
	Fields          []string
	Granularity     Granularity
	VendorOverrides map[string]string
}

// TransportMeta carries adapter-local diagnostics (HTTP status, retry
// count) that are useful for logging but are never part of any canonical
// record.
type TransportMeta struct {
	HTTPStatus int
	Attempts   int
	Elapsed    time.Duration
}

// PayloadFormat names the wire encoding of RawResponse.Payload.
type PayloadFormat string

const (
	PayloadCSV  PayloadFormat = "csv"
	PayloadJSON PayloadFormat = "json"
)

// RawResponse is exactly what a ProviderAdapter returns: the provider's
// bytes, untouched. Adapters MUST NOT mutate payloads, apply FX, or perform
// calendar logic — that discipline is enforced by convention (this type
// carries no hooks for it) and by the Normalizer being the only thing
// downstream that reads Payload.
type RawResponse struct {
	Payload            []byte
	PayloadFormat      PayloadFormat
	Source             quantschema.Source
	FetchedAtTs        time.Time
	RequestFingerprint string
	TransportMeta      TransportMeta
}

// ProviderAdapter is the contract every market-data source implements,
// from the MVP local CSV/JSON fixture adapter (package ingest/fixture) to a
// future HTTP vendor adapter. Fetch must be safe to call concurrently for
// distinct requests and must not share mutable state across calls.
type ProviderAdapter interface {
	Fetch(ctx context.Context, req FetchRequest) (RawResponse, error)
	Name() string
}
