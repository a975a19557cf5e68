package main

import (
	"github.com/spf13/cobra"

	"github.com/quantlab/quantlab/internal/obslog"
)

var (
	logLevel  string
	logPretty bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "quantlab",
		Short: "QuantLab market-data, pricing, risk, and stress analytics",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			obslog.Init(obslog.Config{Level: logLevel, Pretty: logPretty})
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&logPretty, "log-pretty", false, "human-readable console log output")

	root.AddCommand(newIngestCmd())
	root.AddCommand(newRegistryCmd())
	root.AddCommand(newAccessCmd())
	root.AddCommand(newScheduleCmd())
	return root
}
