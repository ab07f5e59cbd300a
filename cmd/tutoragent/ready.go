package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/szaher/tutoragent/internal/readiness"
)

func newReadyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Print the readiness report",
		Long:  "Evaluate readiness checks locally. Like GET /readyz, a degraded report still exits 0.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			checker, err := readiness.FromConfig(cfg)
			if err != nil {
				return err
			}

			problems := checker.Problems(cmd.Context())
			status := "ok"
			if len(problems) > 0 {
				status = "degraded"
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"status":   status,
				"version":  cfg.Version,
				"problems": problems,
			})
		},
	}
}
