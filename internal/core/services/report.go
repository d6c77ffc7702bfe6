package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
)

// RenderFilterReport renders a Markdown report of which titles passed the
// lexical filter and, when validation ran, what the validator said.
func RenderFilterReport(scored []domain.ScoredDocument, verdicts map[string]domain.Verdict, threshold int, generated time.Time) string {
	var passed, failed []domain.ScoredDocument
	for _, d := range scored {
		if d.Passed {
			passed = append(passed, d)
		} else {
			failed = append(failed, d)
		}
	}

	var b strings.Builder
	b.WriteString("# Filter report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", generated.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Total: %d\n- Passed: %d (threshold %d)\n- Failed: %d\n",
		len(scored), len(passed), threshold, len(failed))

	b.WriteString("\n## Passed\n\n")
	writeReportRows(&b, passed, verdicts)
	b.WriteString("\n## Failed\n\n")
	writeReportRows(&b, failed, nil)
	return b.String()
}

func writeReportRows(b *strings.Builder, docs []domain.ScoredDocument, verdicts map[string]domain.Verdict) {
	if len(docs) == 0 {
		b.WriteString("_None._\n")
		return
	}
	for _, d := range docs {
		source := d.SourceName
		if source == "" {
			source = d.SourceID
		}
		fmt.Fprintf(b, "- [%d] %s (%s)", d.Score, escapeMarkdown(d.Title), source)
		if v, ok := verdicts[d.ID]; ok {
			fmt.Fprintf(b, " semantic: %s", v)
		}
		if len(d.Breakdown) > 0 {
			rules := make([]string, len(d.Breakdown))
			for i, step := range d.Breakdown {
				rules[i] = step.Rule
			}
			fmt.Fprintf(b, " `%s`", strings.Join(rules, ", "))
		}
		b.WriteString("\n")
	}
}

var markdownEscaper = strings.NewReplacer("[", `\[`, "]", `\]`, "*", `\*`, "_", `\_`)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
