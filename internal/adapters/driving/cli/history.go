package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	historyProfile string
	historyLimit   int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and maintain delivery history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List delivered documents, newest first",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove history beyond the retention horizon",
	Long: `Deletes delivery history older than the retention horizon. Entries inside the
cooldown window are always kept so pruning never causes a redelivery.`,
	Args: cobra.NoArgs,
	RunE: runHistoryPrune,
}

func init() {
	historyListCmd.Flags().StringVarP(&historyProfile, "profile", "p", "", "only this profile")
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "maximum entries (0 for all)")
	historyCmd.AddCommand(historyListCmd, historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistoryList(cmd *cobra.Command, _ []string) error {
	if historyService == nil {
		return errors.New("history service not configured")
	}

	entries, err := historyService.List(cmd.Context(), historyProfile, historyLimit)
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}
	if len(entries) == 0 {
		cmd.Println("No deliveries recorded.")
		return nil
	}

	for _, e := range entries {
		cmd.Printf("%s  %-16s %s\n", e.DeliveredAt.Local().Format("2006-01-02 15:04"), e.ProfileID, e.DocumentID)
	}
	return nil
}

func runHistoryPrune(cmd *cobra.Command, _ []string) error {
	if historyService == nil {
		return errors.New("history service not configured")
	}

	n, err := historyService.Prune(cmd.Context(), time.Now())
	if err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	cmd.Printf("Removed %d history entries.\n", n)
	return nil
}
