package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"llamactl/internal/config"
	"llamactl/internal/diagnose"
	"llamactl/internal/telemetry"
)

func newDiagnoseCmd(root *rootOptions) *cobra.Command {
	var card, worker string
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Run one crash-diagnosis pass and print the report as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(root.logLevel)
			if err != nil {
				return err
			}
			probeCard := card
			if probeCard == "" && root.configPath != "" {
				if cfg, err := config.Load(root.configPath); err == nil && len(cfg.GPUCards) > 0 {
					probeCard = cfg.GPUCards[0].Card
				}
			}
			if probeCard == "" {
				if devices := telemetry.Discover(logger); len(devices) > 0 {
					probeCard = devices[0].Card
				}
			}
			report := diagnose.NewRunner(worker, probeCard, logger).Run(cmd.Context())
			b, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
	cmd.Flags().StringVar(&card, "card", "", "DRM card id to probe, e.g. card1 (default: config, then PCI discovery)")
	cmd.Flags().StringVar(&worker, "worker", "llama-server", "Worker process name to inspect")
	return cmd
}
