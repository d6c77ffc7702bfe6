// Package cli implements the sercha-digest command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-digest/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-digest/internal/app"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-digest/internal/logger"
)

// skipSetup marks commands that run without configuration.
const skipSetup = "skip-setup"

var (
	version = "dev"

	configPath string
	verbose    bool
	plain      bool
)

// Services used by commands. They are built from the configuration before a
// command runs unless already set, which is how tests inject mocks.
var (
	cfg               *file.Config
	pipelineRunner    driving.PipelineRunner
	documentExplainer driving.DocumentExplainer
	historyService    driving.HistoryService
	digestResender    driving.DigestResender
	setupChecker      driving.SetupChecker

	closeServices func() error
)

var rootCmd = &cobra.Command{
	Use:   "sercha-digest",
	Short: "Industrial AI news digest",
	Long: `sercha-digest filters scraped news for industrial AI relevance, analyses the
best items for each audience and delivers a daily digest to Markdown, Notion,
email or the terminal.`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.sercha-digest/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print per-item decisions")
	rootCmd.PersistentFlags().BoolVar(&plain, "plain", false, "disable colours in terminal output")
}

// Execute runs the root command with the given build version.
func Execute(ctx context.Context, v string) error {
	if v != "" {
		version = v
	}
	return rootCmd.ExecuteContext(ctx)
}

// setup loads and validates the configuration, then wires the services.
func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if cmd.Annotations[skipSetup] == "true" || pipelineRunner != nil {
		return nil
	}

	loaded, err := file.Load(configPath)
	if err != nil {
		return err
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	a, err := app.New(loaded, app.Options{Out: cmd.OutOrStdout(), Plain: plain})
	if err != nil {
		return fmt.Errorf("initialise: %w", err)
	}

	cfg = loaded
	pipelineRunner = a.Pipeline
	documentExplainer = a.Explainer
	historyService = a.History
	digestResender = a.Resender
	setupChecker = a.Checker
	closeServices = a.Close
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if closeServices == nil {
		return nil
	}
	err := closeServices()
	closeServices = nil
	return err
}
