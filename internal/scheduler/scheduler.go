package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/quantlab/quantlab/internal/ingest"
)

// Job is one periodically-scheduled ingestion: a FetchRequest template and
// the dataset-version function that turns a fire-time into this run's
// dataset_version (e.g. a content hash of the date window, or the fire
// date itself for daily end-of-day jobs).
type Job struct {
	Name           string
	Schedule       string // cron expression, e.g. "0 0 22 * * MON-FRI"
	Request        ingest.FetchRequest
	DatasetVersion func() string
}

// Scheduler drives a set of Jobs against a shared IngestionRunner on cron
// schedules.
type Scheduler struct {
	cron   *cron.Cron
	runner *ingest.IngestionRunner
	log    zerolog.Logger
}

// New constructs a Scheduler that runs jobs through runner.
func New(runner *ingest.IngestionRunner, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		runner: runner,
		log:    log.With().Str("component", "scheduler").Logger(),
	}
}

// AddJob registers job on its cron schedule. The job fires in the
// background; failures are logged, never panicked, so one bad run never
// takes down the scheduler loop.
func (s *Scheduler) AddJob(ctx context.Context, job Job) error {
	_, err := s.cron.AddFunc(job.Schedule, func() {
		datasetVersion := job.DatasetVersion()
		jobLog := s.log.With().Str("job", job.Name).Str("dataset_version", datasetVersion).Logger()
		jobLog.Debug().Msg("ingestion job starting")

		result, err := s.runner.Run(ctx, job.Request, datasetVersion)
		if err != nil {
			jobLog.Error().Err(err).Msg("ingestion job failed")
			return
		}
		jobLog.Info().Str("ingest_run_id", result.IngestRunID).Int("rows", result.RowCount).Msg("ingestion job completed")
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("job", job.Name).Str("schedule", job.Schedule).Msg("job registered")
	return nil
}

// Start begins running registered jobs on their schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop drains any in-flight job and halts the cron loop.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunNow executes job immediately, outside its schedule, e.g. for a manual
// backfill triggered from the CLI.
func (s *Scheduler) RunNow(ctx context.Context, job Job) (ingest.RunResult, error) {
	return s.runner.Run(ctx, job.Request, job.DatasetVersion())
}
