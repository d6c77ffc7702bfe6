// Package stdout renders delivery payloads to a terminal. Dry runs use it in
// place of every configured channel.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driven"
)

// Name is the channel name profiles use to select this deliverer.
const Name = "stdout"

// Deliverer writes a styled digest to an io.Writer.
type Deliverer struct {
	mu     sync.Mutex
	out    io.Writer
	styles *Styles
}

var _ driven.Deliverer = (*Deliverer)(nil)

// New creates a deliverer writing to out. A nil writer means os.Stdout and
// nil styles mean the default theme.
func New(out io.Writer, styles *Styles) *Deliverer {
	if out == nil {
		out = os.Stdout
	}
	if styles == nil {
		styles = DefaultStyles()
	}
	return &Deliverer{out: out, styles: styles}
}

// Name returns the channel name.
func (d *Deliverer) Name() string {
	return Name
}

// Deliver renders the payload. Writes are serialised so concurrent profiles
// do not interleave.
func (d *Deliverer) Deliver(ctx context.Context, profile domain.RecipientProfile, payload domain.DeliveryPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	text := Render(d.styles, profile, payload)

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := io.WriteString(d.out, text); err != nil {
		return fmt.Errorf("writing digest for %s: %w", profile.ID, err)
	}
	return nil
}

// Render formats a payload for the terminal.
func Render(s *Styles, profile domain.RecipientProfile, payload domain.DeliveryPayload) string {
	var b strings.Builder

	name := profile.Name
	if name == "" {
		name = profile.ID
	}
	header := fmt.Sprintf("Digest for %s (%s, %s)", name, profile.Persona, languageOf(profile))
	b.WriteString(s.Title.Render(header))
	b.WriteString("\n")
	b.WriteString(s.Muted.Render(fmt.Sprintf("%d items", len(payload.Primary))))
	b.WriteString("\n\n")

	lang := languageOf(profile)
	for i, item := range payload.Primary {
		b.WriteString(fmt.Sprintf("%2d. ", i+1))
		b.WriteString(s.Tag.Render("[" + item.Analysis.CategoryTag + "]"))
		b.WriteString(" ")
		b.WriteString(s.Subtitle.Render(item.TitleIn(lang)))
		if marker := markerOf(item); marker != "" {
			b.WriteString(" ")
			b.WriteString(s.Warning.Render(marker))
		}
		b.WriteString("\n")

		writeField(&b, s, "Summary", item.SummaryIn(lang))
		writeField(&b, s, "Core", item.Analysis.CoreTechPoints)
		writeField(&b, s, "Tools", item.Analysis.ToolStack)
		writeView(&b, s, profile.Persona, item.Analysis)
		b.WriteString("    ")
		b.WriteString(s.Muted.Render(fmt.Sprintf("score %d | %s | %s", item.Score, sourceOf(item.ScoredDocument), item.URL)))
		b.WriteString("\n\n")
	}

	if len(payload.Related) > 0 {
		b.WriteString(s.Subtitle.Render("Related"))
		b.WriteString("\n")
		for _, ref := range payload.Related {
			b.WriteString(fmt.Sprintf("  - %s ", ref.Title))
			b.WriteString(s.Muted.Render(fmt.Sprintf("(%d) %s", ref.Score, ref.URL)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(s.Box.Render(RunSummary(payload.Run)))
	b.WriteString("\n")
	return b.String()
}

// RunSummary formats the per-stage counts of a run.
func RunSummary(run domain.RunStats) string {
	return fmt.Sprintf("scraped %d | deduped %d | passed %d | validated %d | analysed %d | delivered %d | fallbacks %d",
		run.Scraped, run.Deduped, run.Passed, run.Validated, run.Analyzed, run.Delivered, run.Fallbacks)
}

func writeField(b *strings.Builder, s *Styles, label, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	b.WriteString("    ")
	b.WriteString(s.Muted.Render(label + ":"))
	b.WriteString(" ")
	b.WriteString(s.Normal.Render(value))
	b.WriteString("\n")
}

func writeView(b *strings.Builder, s *Styles, persona domain.Persona, a domain.Analysis) {
	switch persona {
	case domain.PersonaStudent:
		if a.Student != nil {
			writeField(b, s, "Explained", a.Student.SimpleExplanation)
		}
	case domain.PersonaTechnician:
		if a.Technician != nil {
			writeField(b, s, "Werkstatt", a.Technician.AnalysisDE)
		}
	}
}

func markerOf(item domain.DeliveredItem) string {
	switch {
	case item.Backfill:
		return "(repeat)"
	case item.TopUp:
		return "(top-up)"
	case item.Fallback:
		return "(unanalysed)"
	}
	return ""
}

func sourceOf(d domain.ScoredDocument) string {
	if d.SourceName != "" {
		return d.SourceName
	}
	return d.SourceID
}

func languageOf(p domain.RecipientProfile) string {
	if p.Language == "" {
		return "en"
	}
	return p.Language
}
