package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	resendProfile string
	resendChannel string
)

var resendCmd = &cobra.Command{
	Use:   "resend",
	Short: "Deliver the last digest of a profile again",
	Long: `Re-sends the most recent digest delivered to a profile, for instance after a
mail server outage. The digest is delivered exactly as archived; nothing is
scraped or analysed and delivery history is left unchanged.`,
	Args: cobra.NoArgs,
	RunE: runResend,
}

func init() {
	resendCmd.Flags().StringVarP(&resendProfile, "profile", "p", "", "recipient profile (required)")
	resendCmd.Flags().StringVar(&resendChannel, "channel", "", "only this channel (default all channels of the profile)")
	_ = resendCmd.MarkFlagRequired("profile")
	rootCmd.AddCommand(resendCmd)
}

func runResend(cmd *cobra.Command, _ []string) error {
	if digestResender == nil {
		return errors.New("resend not configured")
	}

	// A zero digest means nothing was attempted.
	digest, err := digestResender.Resend(cmd.Context(), resendProfile, resendChannel)
	if err != nil && digest.ProfileID == "" {
		return fmt.Errorf("resend %s: %w", resendProfile, err)
	}

	s := styles()
	cmd.Printf("Digest of run %s (%s, %d items) for %s\n", digest.RunID,
		digest.DeliveredAt.Local().Format("2006-01-02 15:04"), len(digest.Payload.Primary), resendProfile)
	if err != nil {
		cmd.Println(s.Error.Render("  " + err.Error()))
		return fmt.Errorf("resend %s: some channels failed", resendProfile)
	}
	cmd.Println(s.Success.Render("  resent"))
	return nil
}
