package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured sources and recipient profiles",
	Args:  cobra.NoArgs,
	RunE:  runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, _ []string) error {
	if cfg == nil {
		return errors.New("configuration not loaded")
	}
	s := styles()

	cmd.Println(s.Title.Render("Sources"))
	for _, src := range cfg.SourceConfigs() {
		lang := src.Language
		if lang == "" {
			lang = "-"
		}
		cmd.Printf("  %-16s %-8s priority %d  lang %-3s %s\n", src.ID, src.Type, src.Priority, lang, src.Path)
	}

	cmd.Println()
	cmd.Println(s.Title.Render("Profiles"))
	for _, p := range cfg.RecipientProfiles() {
		tags := "all"
		if !p.IsCatchAll() {
			tags = strings.Join(p.AcceptedTags, ",")
		}
		cmd.Printf("  %-16s %-10s %s  items %d-%d  tags %s  via %s\n",
			p.ID, p.Persona, p.Language, p.MinItems, p.MaxItems, tags, strings.Join(p.Channels, ","))
	}

	cmd.Println()
	cmd.Println(s.Muted.Render(fmt.Sprintf("config: %s", cfg.Path())))
	return nil
}
