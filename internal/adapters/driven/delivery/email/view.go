package email

import (
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
)

type digestView struct {
	Date    string
	Profile string
	Persona string
	Items   []itemView
	Related []domain.RelatedRef
	Run     domain.RunStats
}

type itemView struct {
	Category  string
	Title     string
	TitleEN   string
	Summary   string
	Core      string
	Context   string
	Tools     string
	ViewLabel string
	View      string
	Marker    string
	Source    string
	URL       string
	Score     int
}

func newDigestView(profile domain.RecipientProfile, payload domain.DeliveryPayload, day time.Time) digestView {
	v := digestView{
		Date:    day.Format("2006-01-02"),
		Profile: profile.Name,
		Persona: string(profile.Persona),
		Related: payload.Related,
		Run:     payload.Run,
	}
	if v.Profile == "" {
		v.Profile = profile.ID
	}

	lang := profile.Language
	for _, item := range payload.Primary {
		iv := itemView{
			Category: item.Analysis.CategoryTag,
			Title:    item.TitleIn(lang),
			Summary:  item.SummaryIn(lang),
			Core:     item.Analysis.CoreTechPoints,
			Context:  item.Analysis.GermanContext,
			Tools:    item.Analysis.ToolStack,
			Source:   item.SourceName,
			URL:      item.URL,
			Score:    item.Score,
		}
		if en := item.Analysis.TitleEN; en != iv.Title {
			iv.TitleEN = en
		}
		if iv.Source == "" {
			iv.Source = item.SourceID
		}
		switch {
		case item.Backfill:
			iv.Marker = "repeat"
		case item.TopUp:
			iv.Marker = "top-up"
		}
		switch profile.Persona {
		case domain.PersonaStudent:
			if item.Analysis.Student != nil {
				iv.ViewLabel, iv.View = "In simple terms", item.Analysis.Student.SimpleExplanation
			}
		case domain.PersonaTechnician:
			if item.Analysis.Technician != nil {
				iv.ViewLabel, iv.View = "Für die Praxis", item.Analysis.Technician.AnalysisDE
			}
		}
		v.Items = append(v.Items, iv)
	}
	return v
}

// renderText renders the plain text alternative.
func renderText(v digestView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Industrial AI Digest for %s\n", v.Date, v.Profile)
	fmt.Fprintf(&b, "%d items selected\n", len(v.Items))
	b.WriteString(strings.Repeat("=", 60))
	b.WriteString("\n\n")

	for _, item := range v.Items {
		fmt.Fprintf(&b, "[%s] %s", item.Category, item.Title)
		if item.Marker != "" {
			fmt.Fprintf(&b, " (%s)", item.Marker)
		}
		b.WriteString("\n")
		if item.TitleEN != "" {
			fmt.Fprintf(&b, "  %s\n", item.TitleEN)
		}
		fmt.Fprintf(&b, "  Summary: %s\n", item.Summary)
		if item.Core != "" {
			fmt.Fprintf(&b, "  Core: %s\n", item.Core)
		}
		if item.Context != "" {
			fmt.Fprintf(&b, "  Context: %s\n", item.Context)
		}
		if item.Tools != "" {
			fmt.Fprintf(&b, "  Tools: %s\n", item.Tools)
		}
		if item.View != "" {
			fmt.Fprintf(&b, "  %s: %s\n", item.ViewLabel, item.View)
		}
		fmt.Fprintf(&b, "  Source: %s | %s\n\n", item.Source, item.URL)
	}

	if len(v.Related) > 0 {
		b.WriteString("Related:\n")
		for _, ref := range v.Related {
			fmt.Fprintf(&b, "  - %s %s\n", ref.Title, ref.URL)
		}
	}
	return b.String()
}
