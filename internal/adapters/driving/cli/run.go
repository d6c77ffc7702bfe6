package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-digest/internal/adapters/driven/delivery/stdout"
	"github.com/custodia-labs/sercha-digest/internal/core/domain"
)

var (
	runSkipDynamic    bool
	runSkipValidation bool
	runTopN           int
	runDryRun         bool
	runMock           bool
	runStrict         bool
	runReport         string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the digest pipeline once",
	Long: `Reads every configured source, filters and ranks the documents, analyses the
selected items and delivers a digest to each recipient profile.

Documents delivered to a profile are not sent to it again within the cooldown
window unless the profile would otherwise fall below its minimum.`,
	Args: cobra.NoArgs,
	RunE: runDigest,
}

func init() {
	runCmd.Flags().BoolVar(&runSkipDynamic, "skip-dynamic", false, "skip sources of type dynamic")
	runCmd.Flags().BoolVar(&runSkipValidation, "skip-validation", false, "skip semantic validation")
	runCmd.Flags().IntVarP(&runTopN, "top-n", "n", -1, "maximum documents to analyse (default from config)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "print digests instead of delivering; record no history")
	runCmd.Flags().BoolVar(&runMock, "mock", false, "replace the analysis backend with deterministic output")
	runCmd.Flags().BoolVar(&runStrict, "strict", false, "fail the run on any stage error")
	runCmd.Flags().StringVar(&runReport, "report", "", "write a Markdown filter report to this file")
	rootCmd.AddCommand(runCmd)
}

func runDigest(cmd *cobra.Command, _ []string) error {
	if pipelineRunner == nil {
		return errors.New("pipeline not configured")
	}

	opts := domain.RunOptions{
		SkipDynamic:    runSkipDynamic,
		SkipValidation: runSkipValidation,
		DryRun:         runDryRun,
		Mock:           runMock,
		Strict:         runStrict,
		ReportPath:     runReport,
	}
	if runTopN >= 0 {
		n := runTopN
		opts.TopN = &n
	}

	result, err := pipelineRunner.Run(cmd.Context(), opts)
	if err != nil {
		if errors.Is(err, domain.ErrRunInProgress) {
			return errors.New("another run is in progress")
		}
		return fmt.Errorf("run failed: %w", err)
	}

	printRunSummary(cmd, result)
	return nil
}

func printRunSummary(cmd *cobra.Command, result *domain.RunResult) {
	s := styles()
	stats := result.Stats

	cmd.Println(s.Title.Render("Run " + stats.RunID))
	cmd.Println(stdout.RunSummary(stats))
	for _, id := range result.Routing.Order {
		payload := result.Routing.Payloads[id]
		cmd.Printf("  %s: %d items, %d related\n", id, len(payload.Primary), len(payload.Related))
	}
	for _, id := range result.Failed {
		cmd.Println(s.Error.Render("  delivery failed for " + id))
	}
	if n := len(stats.Errors); n > 0 {
		cmd.Println(s.Warning.Render(fmt.Sprintf("%d non-fatal errors (use --verbose for details)", n)))
	}
}

// styles returns the terminal styles selected by --plain.
func styles() *stdout.Styles {
	if plain {
		return stdout.Plain()
	}
	return stdout.DefaultStyles()
}
