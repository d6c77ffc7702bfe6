package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
)

func TestDeduplicator_MergesByID(t *testing.T) {
	first := doc("x", "Digital Twin at Hannover Messe")
	first.SourcePriority = 3
	first.Excerpt = "short"
	second := doc("x", "Digital Twin at Hannover Messe (update)")
	second.SourcePriority = 1
	second.Excerpt = "a much richer excerpt"
	second.PublishedAt = at(2)

	out := NewDeduplicator(0).Dedup([]domain.Document{first, doc("y", "Other news entirely"), second})

	require.Len(t, out, 2)
	assert.Equal(t, "x", out[0].ID)
	assert.Equal(t, 3, out[0].SourcePriority)
	assert.Equal(t, "a much richer excerpt", out[0].Excerpt)
	assert.Equal(t, at(2), out[0].PublishedAt)
	assert.Equal(t, "y", out[1].ID)
}

func TestDeduplicator_MergesByTitle(t *testing.T) {
	a := doc("a", "Siemens launches new Digital Twin platform")
	b := doc("b", "Siemens launches new digital twin platform!")

	out := NewDeduplicator(0).Dedup([]domain.Document{a, b})

	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].ID)
}

func TestDeduplicator_TitleMergeRegistersID(t *testing.T) {
	a := doc("a", "Siemens launches new Digital Twin platform")
	b := doc("b", "Siemens launches new digital twin platform!")
	// Same ID as b under a rewritten headline.
	late := doc("b", "Xcelerator portfolio gains simulation layer")
	late.Excerpt = "the longest excerpt of the three records"

	out := NewDeduplicator(0).Dedup([]domain.Document{a, b, late})

	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "the longest excerpt of the three records", out[0].Excerpt)
}

func TestDeduplicator_NearDuplicateTitles(t *testing.T) {
	a := doc("a", "Fraunhofer IPA presents a new digital twin platform for logistics planning")
	b := doc("b", "Fraunhofer IPA presents new digital twin platform for logistics planning")
	c := doc("c", "Fraunhofer IPA presents new robot gripper for logistics")

	out := NewDeduplicator(0).Dedup([]domain.Document{a, b, c})

	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "c", out[1].ID)
}

func TestDeduplicator_ShortTitlesNeedExactMatch(t *testing.T) {
	a := doc("a", "AI news")
	b := doc("b", "AI news today")

	out := NewDeduplicator(0).Dedup([]domain.Document{a, b})

	assert.Len(t, out, 2)
}

func TestDeduplicator_Idempotent(t *testing.T) {
	docs := []domain.Document{
		doc("1", "Digital Twin in der Fertigung"),
		doc("2", "Digital Twin in der Fertigung"),
		doc("3", "Predictive Maintenance bei BMW"),
		doc("1", "Digital Twin in der Fertigung (Kopie)"),
		doc("4", "Smart Factory Studie 2026 veroeffentlicht heute"),
		doc("5", "Smart Factory Studie 2026 veroeffentlicht"),
	}
	d := NewDeduplicator(0)

	once := d.Dedup(docs)
	twice := d.Dedup(once)

	assert.Equal(t, once, twice)
	assert.Len(t, once, 4)
}

func TestDeduplicator_Empty(t *testing.T) {
	assert.Empty(t, NewDeduplicator(0).Dedup(nil))
}
