package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the LLM backend, sources and prompts",
	Long: `Contacts the configured LLM backend and checks that the model is available,
reads every source once and reloads the prompt templates from disk. Nothing is
delivered and no history is recorded.

Exits non-zero when any check fails.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	if setupChecker == nil {
		return errors.New("setup checks not configured")
	}

	s := styles()
	results := setupChecker.Check(cmd.Context())
	failed := 0
	for _, r := range results {
		if r.OK() {
			cmd.Printf("%s %-20s %s\n", s.Success.Render("ok  "), r.Name, s.Muted.Render(r.Detail))
			continue
		}
		failed++
		cmd.Printf("%s %-20s %v\n", s.Error.Render("FAIL"), r.Name, r.Err)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(results))
	}
	cmd.Println("All checks passed.")
	return nil
}
