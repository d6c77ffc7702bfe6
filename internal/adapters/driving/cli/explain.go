package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
)

var (
	explainTitle      string
	explainExcerpt    string
	explainURL        string
	explainSourceType string
	explainViews      int
)

var explainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Show how the keyword filter scores a document",
	Long: `Scores a single document with the configured keyword table and prints every
rule that changed the score. Useful for tuning keywords without running the
pipeline.`,
	Args: cobra.NoArgs,
	RunE: runExplain,
}

func init() {
	explainCmd.Flags().StringVarP(&explainTitle, "title", "t", "", "document title")
	explainCmd.Flags().StringVarP(&explainExcerpt, "excerpt", "e", "", "document excerpt")
	explainCmd.Flags().StringVarP(&explainURL, "url", "u", "", "document URL")
	explainCmd.Flags().StringVar(&explainSourceType, "source-type", "web", "web, rss, dynamic or video")
	explainCmd.Flags().IntVar(&explainViews, "views", -1, "view count for video documents")
	_ = explainCmd.MarkFlagRequired("title")
	rootCmd.AddCommand(explainCmd)
}

func runExplain(cmd *cobra.Command, _ []string) error {
	if documentExplainer == nil {
		return errors.New("explain service not configured")
	}

	sourceType := domain.SourceType(strings.ToLower(explainSourceType))
	if !sourceType.IsValid() {
		return fmt.Errorf("%w: source type %q", domain.ErrInvalidInput, explainSourceType)
	}

	doc := domain.Document{
		Title:      explainTitle,
		Excerpt:    explainExcerpt,
		URL:        explainURL,
		SourceType: sourceType,
	}
	if explainViews >= 0 {
		v := explainViews
		doc.Views = &v
	}

	printExplanation(cmd, documentExplainer.Explain(doc))
	return nil
}

func printExplanation(cmd *cobra.Command, scored domain.ScoredDocument) {
	s := styles()

	cmd.Println(s.Title.Render(scored.Title))
	if len(scored.Breakdown) == 0 {
		cmd.Println(s.Muted.Render("  no rule matched"))
	}
	for _, step := range scored.Breakdown {
		line := fmt.Sprintf("  %+d  %s", step.Delta, step.Rule)
		switch {
		case step.Terminal:
			cmd.Println(s.Error.Render(fmt.Sprintf("  stop  %s", step.Rule)))
		case step.Delta < 0:
			cmd.Println(s.Warning.Render(line))
		default:
			cmd.Println(s.Normal.Render(line))
		}
	}

	verdict := s.Error.Render("FAIL")
	if scored.Passed {
		verdict = s.Success.Render("PASS")
	}
	cmd.Printf("Score %d: %s\n", scored.Score, verdict)
	if len(scored.PersonaTags) > 0 {
		cmd.Printf("Tags: %s\n", strings.Join(scored.PersonaTags, ", "))
	}
}
