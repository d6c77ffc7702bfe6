// Package markdown writes one Markdown digest file per profile per run.
package markdown

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-digest/internal/logger"
)

// Name is the channel name profiles use to select this deliverer.
const Name = "markdown"

// Writer implements driven.Deliverer by writing files into a directory.
type Writer struct {
	dir string
	now func() time.Time
}

var _ driven.Deliverer = (*Writer)(nil)

// NewWriter creates a writer rooted at dir. A profile's markdown
// destination, when set, replaces dir for that profile.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, now: time.Now}
}

// Name returns the channel name.
func (w *Writer) Name() string {
	return Name
}

// Deliver writes digest-<date>-<profile>.md. The file is written to a
// temporary name and renamed so a reader never sees a partial digest.
func (w *Writer) Deliver(ctx context.Context, profile domain.RecipientProfile, payload domain.DeliveryPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := w.dir
	if own := profile.Destination(Name); own != "" {
		dir = own
	}
	if dir == "" {
		return fmt.Errorf("%w: no markdown directory for profile %s", domain.ErrMissingField, profile.ID)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating markdown directory: %w", err)
	}

	day := runDay(payload.Run, w.now)
	path := filepath.Join(dir, FileName(day, profile.ID))

	tmp, err := os.CreateTemp(dir, ".digest-*.md")
	if err != nil {
		return fmt.Errorf("creating markdown file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(Render(profile, payload, day)); err != nil {
		tmp.Close()
		return fmt.Errorf("writing markdown digest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing markdown digest: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("moving markdown digest into place: %w", err)
	}

	logger.Info("markdown: digest for %s saved to %s", profile.ID, path)
	return nil
}

// FileName returns the digest file name for a day and profile.
func FileName(day time.Time, profileID string) string {
	return fmt.Sprintf("digest-%s-%s.md", day.Format("2006-01-02"), profileID)
}

// Render formats the payload as Markdown.
func Render(profile domain.RecipientProfile, payload domain.DeliveryPayload, day time.Time) string {
	lang := profile.Language
	var b strings.Builder

	fmt.Fprintf(&b, "# %s Industrial AI Digest: %s\n\n", day.Format("2006-01-02"), displayName(profile))
	fmt.Fprintf(&b, "> **%d** items selected for %s\n\n", len(payload.Primary), profile.Persona)
	b.WriteString("---\n\n")

	for _, item := range payload.Primary {
		fmt.Fprintf(&b, "### [%s] %s", item.Analysis.CategoryTag, item.TitleIn(lang))
		switch {
		case item.Backfill:
			b.WriteString(" _(repeat)_")
		case item.TopUp:
			b.WriteString(" _(top-up)_")
		}
		b.WriteString("\n\n")

		if en := item.Analysis.TitleEN; en != "" && en != item.TitleIn(lang) {
			fmt.Fprintf(&b, "*%s*\n\n", en)
		}
		fmt.Fprintf(&b, "**Summary:** %s\n\n", item.SummaryIn(lang))
		if item.Analysis.CoreTechPoints != "" {
			fmt.Fprintf(&b, "**Core technology:** %s\n\n", item.Analysis.CoreTechPoints)
		}
		if item.Analysis.GermanContext != "" {
			fmt.Fprintf(&b, "**Context:** %s\n\n", item.Analysis.GermanContext)
		}
		if item.Analysis.ToolStack != "" {
			fmt.Fprintf(&b, "**Tool stack:** %s\n\n", item.Analysis.ToolStack)
		}
		writeView(&b, profile.Persona, item.Analysis)

		fmt.Fprintf(&b, "Source: %s | [Read the original](%s) | score %d\n\n", sourceName(item.ScoredDocument), item.URL, item.Score)
		b.WriteString("---\n\n")
	}

	if len(payload.Related) > 0 {
		b.WriteString("## Related\n\n")
		for _, ref := range payload.Related {
			fmt.Fprintf(&b, "- [%s](%s) (%s, score %d)\n", ref.Title, ref.URL, ref.SourceName, ref.Score)
		}
		b.WriteString("\n")
	}

	r := payload.Run
	fmt.Fprintf(&b, "_Run %s: scraped %d, deduped %d, passed %d, validated %d, analysed %d, delivered %d._\n",
		r.RunID, r.Scraped, r.Deduped, r.Passed, r.Validated, r.Analyzed, r.Delivered)
	return b.String()
}

func writeView(b *strings.Builder, persona domain.Persona, a domain.Analysis) {
	switch persona {
	case domain.PersonaStudent:
		if a.Student != nil && a.Student.SimpleExplanation != "" {
			fmt.Fprintf(b, "> **In simple terms:** %s\n\n", a.Student.SimpleExplanation)
		}
	case domain.PersonaTechnician:
		if a.Technician != nil && a.Technician.AnalysisDE != "" {
			fmt.Fprintf(b, "> **Für die Praxis:** %s\n\n", a.Technician.AnalysisDE)
		}
	}
}

func runDay(run domain.RunStats, now func() time.Time) time.Time {
	if !run.StartedAt.IsZero() {
		return run.StartedAt
	}
	return now()
}

func displayName(p domain.RecipientProfile) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

func sourceName(d domain.ScoredDocument) string {
	if d.SourceName != "" {
		return d.SourceName
	}
	return d.SourceID
}
