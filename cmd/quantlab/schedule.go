package main

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	_ "github.com/lib/pq"

	"github.com/quantlab/quantlab/internal/ingest"
	"github.com/quantlab/quantlab/internal/ingest/fixture"
	"github.com/quantlab/quantlab/internal/metrics"
	"github.com/quantlab/quantlab/internal/scheduler"
	"github.com/quantlab/quantlab/internal/storage"
)

func newScheduleCmd() *cobra.Command {
	var (
		datasetID     string
		cronSchedule  string
		fixturesDir   string
		rawRoot       string
		canonicalRoot string
		postgresDSN   string
	)

	start := &cobra.Command{
		Use:   "start",
		Short: "Run a single periodic ingestion job until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			rawZone, err := openZone(cmd.Context(), rawRoot)
			if err != nil {
				return err
			}
			canonicalZone, err := openZone(cmd.Context(), canonicalRoot)
			if err != nil {
				return err
			}
			db, err := sqlx.Open("postgres", postgresDSN)
			if err != nil {
				return err
			}
			defer db.Close()

			runner := ingest.NewIngestionRunner(ingest.RunnerConfig{
				Adapter:       fixture.NewAdapter(fixturesDir),
				RawZone:       storage.NewRawZone(rawZone),
				CanonicalZone: storage.NewCanonicalZone(canonicalZone),
				Registry:      storage.NewPostgresRegistry(db, 5*time.Second),
				Metrics:       metrics.Default,
			})

			s := scheduler.New(runner, log.Logger)
			err = s.AddJob(cmd.Context(), scheduler.Job{
				Name:           datasetID,
				Schedule:       cronSchedule,
				Request:        ingest.FetchRequest{DatasetID: datasetID, Granularity: ingest.GranularityDaily},
				DatasetVersion: func() string { return time.Now().UTC().Format("2006-01-02") },
			})
			if err != nil {
				return err
			}
			s.Start()
			defer s.Stop()

			<-cmd.Context().Done()
			return nil
		},
	}
	start.Flags().StringVar(&datasetID, "dataset", "", "dataset_id to schedule")
	start.Flags().StringVar(&cronSchedule, "cron", "0 0 22 * * MON-FRI", "cron schedule (seconds-resolution)")
	start.Flags().StringVar(&fixturesDir, "fixtures-dir", "fixtures", "directory of CSV fixture files")
	start.Flags().StringVar(&rawRoot, "raw-root", "data/raw", "raw zone root: local directory or s3://bucket/prefix")
	start.Flags().StringVar(&canonicalRoot, "canonical-root", "data/canonical", "canonical zone root: local directory or s3://bucket/prefix")
	start.Flags().StringVar(&postgresDSN, "postgres-dsn", "", "Postgres connection string for the dataset registry")
	_ = start.MarkFlagRequired("dataset")
	_ = start.MarkFlagRequired("postgres-dsn")

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Periodic ingestion scheduling commands",
	}
	cmd.AddCommand(start)
	return cmd
}
