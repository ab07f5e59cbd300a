package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/szaher/tutoragent/internal/agent"
	"github.com/szaher/tutoragent/internal/telemetry"
)

func newInvokeCmd() *cobra.Command {
	var (
		userID    string
		input     string
		agentCtx  string
		requestID string
	)

	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Invoke the configured agent once and print its output",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			in, err := parseObjectFlag("input", input)
			if err != nil {
				return err
			}
			actx, err := parseObjectFlag("context", agentCtx)
			if err != nil {
				return err
			}

			logger := telemetry.NewLogger(os.Stderr, "warn", cfg.Secrets()...)
			defer func() { _ = logger.Sync() }()

			a, err := agent.New(cfg.Agent, logger)
			if err != nil {
				return err
			}

			ctx := telemetry.WithCorrelationID(cmd.Context(), requestID)
			out, err := a.Invoke(ctx, userID, in, actx)
			if err != nil {
				return fmt.Errorf("invoke: %w", err)
			}
			if out == nil {
				out = map[string]any{}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "User identifier (required)")
	cmd.Flags().StringVar(&input, "input", "", "Input object as JSON")
	cmd.Flags().StringVar(&agentCtx, "context", "", "Context object as JSON")
	cmd.Flags().StringVar(&requestID, "request-id", "", "Correlation ID forwarded to remote agents")
	_ = cmd.MarkFlagRequired("user-id")

	return cmd
}

// parseObjectFlag decodes a JSON object flag. Empty means {}.
func parseObjectFlag(name, value string) (map[string]any, error) {
	if value == "" {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(value), &m); err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	if m == nil {
		return nil, fmt.Errorf("--%s: must be a JSON object", name)
	}
	return m, nil
}
