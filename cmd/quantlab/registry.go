package main

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	_ "github.com/lib/pq"

	"github.com/quantlab/quantlab/internal/storage"
)

func newRegistryCmd() *cobra.Command {
	var (
		datasetID      string
		datasetVersion string
		canonicalRoot  string
		postgresDSN    string
	)

	verify := &cobra.Command{
		Use:   "verify",
		Short: "Recompute a published snapshot's content hash and compare it to the registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := sqlx.Open("postgres", postgresDSN)
			if err != nil {
				return err
			}
			defer db.Close()
			registry := storage.NewPostgresRegistry(db, 5*time.Second)

			canonicalZone, err := openZone(cmd.Context(), canonicalRoot)
			if err != nil {
				return err
			}
			zone := storage.NewCanonicalZone(canonicalZone)

			if err := registry.VerifyIntegrity(cmd.Context(), zone, datasetID, datasetVersion); err != nil {
				return err
			}
			cmd.Printf("ok: %s@%s content_hash matches the registered entry\n", datasetID, datasetVersion)
			return nil
		},
	}
	verify.Flags().StringVar(&datasetID, "dataset", "", "dataset_id to verify")
	verify.Flags().StringVar(&datasetVersion, "version", "", "dataset_version to verify")
	verify.Flags().StringVar(&canonicalRoot, "canonical-root", "data/canonical", "canonical zone root: local directory or s3://bucket/prefix")
	verify.Flags().StringVar(&postgresDSN, "postgres-dsn", "", "Postgres connection string for the dataset registry")
	_ = verify.MarkFlagRequired("dataset")
	_ = verify.MarkFlagRequired("version")
	_ = verify.MarkFlagRequired("postgres-dsn")

	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Dataset registry commands",
	}
	cmd.AddCommand(verify)
	return cmd
}
