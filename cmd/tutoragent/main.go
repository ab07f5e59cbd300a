// Package main is the entry point for the tutoragent service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/szaher/tutoragent/internal/config"
)

// Version information set at build time.
var version = "dev"

// Global flags.
var configFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tutoragent",
		Short: "HTTP service exposing a pluggable tutoring agent",
		Long: `tutoragent serves a pluggable agent behind health, readiness, manifest,
invoke and static UI endpoints. Configuration comes from an optional YAML
file overridden by environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "Path to YAML config file (default $TUTORAGENT_CONFIG)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newInvokeCmd())
	root.AddCommand(newReadyCmd())

	return root
}

// loadConfig reads --config, falling back to $TUTORAGENT_CONFIG.
func loadConfig() (config.Config, error) {
	if configFile == "" {
		return config.FromEnv()
	}
	return config.Load(configFile, os.LookupEnv)
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
