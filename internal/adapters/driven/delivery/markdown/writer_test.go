package markdown

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
)

var runAt = time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)

func testPayload() domain.DeliveryPayload {
	doc := domain.ScoredDocument{
		Document: domain.Document{ID: "d1", Title: "Original title", URL: "https://example.com/a", SourceName: "Example"},
		Score:    5,
	}
	return domain.DeliveryPayload{
		ProfileID: "student",
		Primary: []domain.DeliveredItem{
			{AnalyzedDocument: domain.AnalyzedDocument{
				ScoredDocument: doc,
				Analysis: domain.Analysis{
					CategoryTag: "Simulation",
					TitleZH:     "仿真新闻",
					TitleEN:     "Simulation news",
					SummaryZH:   "摘要",
					Student:     &domain.StudentView{SimpleExplanation: "Like a video game for factories."},
				},
			}, TopUp: true},
		},
		Related: []domain.RelatedRef{{Title: "Side story", URL: "https://example.com/b", SourceName: "Example", Score: 2}},
		Run:     domain.RunStats{RunID: "r1", StartedAt: runAt, Scraped: 12, Delivered: 1},
	}
}

func TestWriter_Deliver(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	profile := domain.RecipientProfile{ID: "student", Persona: domain.PersonaStudent, Language: "zh"}

	require.NoError(t, w.Deliver(context.Background(), profile, testPayload()))

	data, err := os.ReadFile(filepath.Join(dir, "digest-2026-03-10-student.md"))
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "### [Simulation] 仿真新闻 _(top-up)_")
	assert.Contains(t, content, "*Simulation news*")
	assert.Contains(t, content, "**Summary:** 摘要")
	assert.Contains(t, content, "Like a video game for factories.")
	assert.Contains(t, content, "- [Side story](https://example.com/b)")
	assert.Contains(t, content, "scraped 12")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestWriter_DestinationOverridesDir(t *testing.T) {
	dir := t.TempDir()
	own := filepath.Join(t.TempDir(), "nested", "student")
	w := NewWriter(dir)
	profile := domain.RecipientProfile{
		ID:           "student",
		Persona:      domain.PersonaStudent,
		Destinations: map[string]string{Name: own},
	}

	require.NoError(t, w.Deliver(context.Background(), profile, testPayload()))

	_, err := os.Stat(filepath.Join(own, "digest-2026-03-10-student.md"))
	assert.NoError(t, err)
}

func TestWriter_IgnoresOtherChannelDestinations(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	profile := domain.RecipientProfile{
		ID:      "student",
		Persona: domain.PersonaStudent,
		Destinations: map[string]string{
			"email":  "student@example.com",
			"notion": "db-student",
		},
	}

	require.NoError(t, w.Deliver(context.Background(), profile, testPayload()))

	_, err := os.Stat(filepath.Join(dir, "digest-2026-03-10-student.md"))
	assert.NoError(t, err)
	_, err = os.Stat("student@example.com")
	assert.True(t, os.IsNotExist(err))
}

func TestWriter_NoDirectory(t *testing.T) {
	w := NewWriter("")
	err := w.Deliver(context.Background(), domain.RecipientProfile{ID: "p"}, testPayload())
	assert.ErrorIs(t, err, domain.ErrMissingField)
}

func TestWriter_UsesClockWithoutRunStart(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	w.now = func() time.Time { return runAt.Add(24 * time.Hour) }

	payload := testPayload()
	payload.Run.StartedAt = time.Time{}
	require.NoError(t, w.Deliver(context.Background(), domain.RecipientProfile{ID: "p"}, payload))

	_, err := os.Stat(filepath.Join(dir, "digest-2026-03-11-p.md"))
	assert.NoError(t, err)
}
