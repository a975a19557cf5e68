package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/quantlab/quantlab/internal/metrics"
	"github.com/quantlab/quantlab/internal/obslog"
	"github.com/quantlab/quantlab/internal/quantschema"
	"github.com/quantlab/quantlab/internal/storage"
)

var runnerLog = obslog.Component("ingest.runner")

// RunnerConfig bundles everything one dataset's ingestion run needs beyond
// the FetchRequest itself.
type RunnerConfig struct {
	Adapter         ProviderAdapter
	MappingContext  MappingContext
	RawZone         *storage.RawZone
	CanonicalZone   *storage.CanonicalZone
	Registry        storage.Registry
	Validator       *Validator
	UniverseHash    string
	CalendarVer     string
	SessionRulesVer string
	Metrics         *metrics.Collectors
}

// RunResult summarizes a completed ingestion run for callers and logs.
type RunResult struct {
	IngestRunID      string
	DatasetVersion   string
	ContentHash      string
	RowCount         int
	ValidationReport ValidationReport
}

// HostHealth is a point-in-time resource snapshot attached to the run's
// logs.
type HostHealth struct {
	MemPercent float64
	LoadAvg1   float64
}

func snapshotHealth() HostHealth {
	h := HostHealth{}
	if vm, err := mem.VirtualMemory(); err == nil {
		h.MemPercent = vm.UsedPercent
	}
	if la, err := load.Avg(); err == nil {
		h.LoadAvg1 = la.Load1
	}
	return h
}

// IngestionRunner composes fetch -> raw-zone write -> normalize ->
// validate -> canonical stage -> content hash -> publish -> registry
// append. Each call to Run is a single sequential pipeline for one
// FetchRequest; distinct FetchRequests may run concurrently across
// goroutines since RunnerConfig's collaborators share no mutable state
// across calls.
type IngestionRunner struct {
	cfg RunnerConfig
}

// NewIngestionRunner constructs a runner over cfg.
func NewIngestionRunner(cfg RunnerConfig) *IngestionRunner {
	if cfg.Validator == nil {
		cfg.Validator = NewValidator(DefaultValidationPolicy())
	}
	return &IngestionRunner{cfg: cfg}
}

// Run executes one ingestion pipeline for req, publishing a new
// (req.DatasetID, datasetVersion) canonical snapshot and appending a
// registry entry on success. datasetVersion is caller-supplied (e.g. a
// content hash of the seed universe + date range, or a monotonic tag) so
// republishing the identical logical dataset is explicit, not implicit.
func (r *IngestionRunner) Run(ctx context.Context, req FetchRequest, datasetVersion string) (RunResult, error) {
	runID := uuid.NewString()
	health := snapshotHealth()
	start := time.Now()
	log := runnerLog.With().Str("ingest_run_id", runID).Str("dataset_id", req.DatasetID).Logger()
	log.Info().Float64("mem_percent", health.MemPercent).Float64("load1", health.LoadAvg1).Msg("ingestion run starting")

	outcome := "success"
	defer func() {
		if r.cfg.Metrics != nil {
			r.cfg.Metrics.IngestionRuns.WithLabelValues(req.DatasetID, outcome).Inc()
			r.cfg.Metrics.IngestionDuration.WithLabelValues(req.DatasetID).Observe(time.Since(start).Seconds())
		}
	}()

	raw, err := r.cfg.Adapter.Fetch(ctx, req)
	if err != nil {
		outcome = "fetch_error"
		return RunResult{}, fmt.Errorf("ingest: fetch: %w", err)
	}

	fingerprint, err := req.Fingerprint()
	if err != nil {
		outcome = "fingerprint_error"
		return RunResult{}, fmt.Errorf("ingest: fingerprint: %w", err)
	}
	raw.RequestFingerprint = fingerprint

	ext := "csv"
	if raw.PayloadFormat == PayloadJSON {
		ext = "json"
	}
	envelope := storage.RawEnvelope{
		IngestRunID:        runID,
		RequestFingerprint: fingerprint,
		Provider:           raw.Source.Provider,
		Endpoint:           raw.Source.Endpoint,
		PayloadFormat:      string(raw.PayloadFormat),
		FetchedAtTs:        raw.FetchedAtTs,
		HTTPStatus:         raw.TransportMeta.HTTPStatus,
		Attempts:           raw.TransportMeta.Attempts,
	}
	if err := r.cfg.RawZone.Put(envelope, ext, raw.Payload); err != nil {
		outcome = "storage_error"
		return RunResult{}, &StorageError{Op: "raw_zone.put", Err: err}
	}

	mc := r.cfg.MappingContext
	mc.DatasetID = req.DatasetID
	mc.IngestRunID = runID
	mc.DatasetVersion = datasetVersion
	recs, err := NewNormalizer().Normalize(raw, mc)
	if err != nil {
		outcome = "normalization_error"
		return RunResult{}, err
	}

	report := r.cfg.Validator.ValidateBars(recs)
	if !report.CanPublish() {
		outcome = "validation_error"
		if r.cfg.Metrics != nil {
			r.cfg.Metrics.HardValidationErr.WithLabelValues(req.DatasetID).Add(float64(report.HardErrorCount))
		}
		log.Warn().Int("hard_errors", report.HardErrorCount).Msg("ingestion blocked by hard validation errors")
		return RunResult{ValidationReport: report}, fmt.Errorf("ingest: %d hard validation errors, publish blocked", report.HardErrorCount)
	}

	if _, err := r.cfg.Registry.Get(ctx, req.DatasetID, datasetVersion); err == nil {
		outcome = "registry_conflict"
		return RunResult{}, &storage.RegistryConflictError{DatasetID: req.DatasetID, DatasetVersion: datasetVersion}
	}

	meta, err := r.cfg.CanonicalZone.Publish(req.DatasetID, datasetVersion, mc.SchemaVersion, runID, quantschema.BarRecordSet(recs), time.Now())
	if err != nil {
		outcome = "storage_error"
		return RunResult{}, &StorageError{Op: "canonical_zone.publish", Err: err}
	}

	sourceSet := []string{raw.Source.Provider}
	entry := storage.Entry{
		DatasetID:           req.DatasetID,
		DatasetVersion:      datasetVersion,
		SchemaVersion:       mc.SchemaVersion,
		CreatedAtTs:         meta.CreatedAtTs,
		IngestRunID:         runID,
		UniverseHash:        r.cfg.UniverseHash,
		CalendarVersion:     r.cfg.CalendarVer,
		SessionRulesVersion: r.cfg.SessionRulesVer,
		SourceSet:           sourceSet,
		RowCount:            meta.RowCount,
		ContentHash:         meta.ContentHash,
	}
	if err := r.cfg.Registry.Append(ctx, entry); err != nil {
		outcome = "registry_conflict"
		return RunResult{}, err
	}

	log.Info().Str("dataset_version", datasetVersion).Int("rows", meta.RowCount).Str("content_hash", meta.ContentHash).Msg("ingestion run published")
	return RunResult{
		IngestRunID:      runID,
		DatasetVersion:   datasetVersion,
		ContentHash:      meta.ContentHash,
		RowCount:         meta.RowCount,
		ValidationReport: report,
	}, nil
}
