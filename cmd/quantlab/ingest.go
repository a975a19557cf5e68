package main

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	_ "github.com/lib/pq"

	"github.com/quantlab/quantlab/internal/calendar"
	"github.com/quantlab/quantlab/internal/config"
	"github.com/quantlab/quantlab/internal/ingest"
	"github.com/quantlab/quantlab/internal/ingest/fixture"
	"github.com/quantlab/quantlab/internal/metrics"
	"github.com/quantlab/quantlab/internal/storage"
)

func newIngestCmd() *cobra.Command {
	var (
		datasetID        string
		datasetVersion   string
		universeName     string
		configPath       string
		sessionRulesPath string
		fixturesDir      string
		rawRoot          string
		canonicalRoot    string
		postgresDSN      string
	)

	run := &cobra.Command{
		Use:   "run",
		Short: "Run one ingestion pipeline for a dataset and publish the resulting snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := config.LoadAppConfig(configPath)
			if err != nil {
				return err
			}
			universe, ok := appCfg.Universe(universeName)
			if !ok {
				return fmt.Errorf("quantlab: universe %q not found in %s", universeName, configPath)
			}
			universeHash, err := universe.UniverseHash()
			if err != nil {
				return err
			}

			sessionRulesVer := universe.SessionRulesVersion
			var sessionRules *calendar.SessionRules
			if sessionRulesPath != "" {
				rules, rulesHash, err := config.LoadSessionRules(sessionRulesPath)
				if err != nil {
					return err
				}
				sessionRules = rules
				sessionRulesVer = rulesHash
			}

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
				return fmt.Errorf("quantlab: open registry database: %w", err)
			}
			defer db.Close()
			registry := storage.NewPostgresRegistry(db, 5*time.Second)

			runner := ingest.NewIngestionRunner(ingest.RunnerConfig{
				Adapter: fixture.NewAdapter(fixturesDir),
				MappingContext: ingest.MappingContext{
					SchemaVersion: "1",
					SessionRules:  sessionRules,
					Calendars:     appCfg.VenueCalendars(),
					InstrumentMIC: universe.InstrumentMIC(),
					InstrumentCcy: universe.InstrumentCurrency(),
				},
				RawZone:         storage.NewRawZone(rawZone),
				CanonicalZone:   storage.NewCanonicalZone(canonicalZone),
				Registry:        registry,
				UniverseHash:    universeHash,
				CalendarVer:     universe.CalendarVersion,
				SessionRulesVer: sessionRulesVer,
				Metrics:         metrics.Default,
			})

			ids, err := universe.InstrumentIDs()
			if err != nil {
				return err
			}
			result, err := runner.Run(cmd.Context(), ingest.FetchRequest{
				DatasetID:     datasetID,
				InstrumentIDs: ids,
				Granularity:   ingest.GranularityDaily,
			}, datasetVersion)
			if err != nil {
				return err
			}
			cmd.Printf("ingested %d rows for %s@%s, content_hash=%s\n", result.RowCount, datasetID, datasetVersion, result.ContentHash)
			return nil
		},
	}
	run.Flags().StringVar(&datasetID, "dataset", "", "dataset_id to ingest")
	run.Flags().StringVar(&datasetVersion, "version", "", "dataset_version tag for this run")
	run.Flags().StringVar(&universeName, "universe", "", "seed universe name from the app config")
	run.Flags().StringVar(&configPath, "config", "config/app.yaml", "path to app config YAML")
	run.Flags().StringVar(&sessionRulesPath, "session-rules", "", "optional path to session-rules YAML; falls back to baseline calendar closes")
	run.Flags().StringVar(&fixturesDir, "fixtures-dir", "fixtures", "directory of CSV fixture files, one per dataset_id")
	run.Flags().StringVar(&rawRoot, "raw-root", "data/raw", "raw zone root: local directory or s3://bucket/prefix")
	run.Flags().StringVar(&canonicalRoot, "canonical-root", "data/canonical", "canonical zone root: local directory or s3://bucket/prefix")
	run.Flags().StringVar(&postgresDSN, "postgres-dsn", "", "Postgres connection string for the dataset registry")
	_ = run.MarkFlagRequired("dataset")
	_ = run.MarkFlagRequired("version")
	_ = run.MarkFlagRequired("universe")
	_ = run.MarkFlagRequired("postgres-dsn")

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingestion runner commands",
	}
	cmd.AddCommand(run)
	return cmd
}
