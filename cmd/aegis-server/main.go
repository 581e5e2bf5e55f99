// Command aegis-server runs the feedback classification engine.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"aegis/internal/config"
	"aegis/internal/server"
)

func main() {
	root := &cobra.Command{
		Use:   "aegis-server",
		Short: "Hybrid LLM/heuristic customer feedback engine",
		Long: `aegis-server ingests customer feedback, classifies it with an LLM raced
against a deterministic heuristic, and serves the results over HTTP.
Configuration comes from AEGIS_-prefixed environment variables.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
	root.AddCommand(serve)

	root.PersistentFlags().String("port", "", "listen port (overrides AEGIS_PORT)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	return server.Run(cfg)
}
