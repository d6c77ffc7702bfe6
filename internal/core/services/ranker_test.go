package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
)

func ids(docs []domain.ScoredDocument) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestRanker_SortKeys(t *testing.T) {
	input := []domain.ScoredDocument{
		scored("undated", 3, 2, nil),
		scored("old", 3, 2, at(1)),
		scored("new", 3, 2, at(5)),
		scored("low-priority", 3, 1, at(9)),
		scored("top", 5, 1, nil),
	}

	sel := NewRanker(0, nil).Select(input, 0)
	assert.Equal(t, []string{"top", "new", "old", "undated", "low-priority"}, ids(sel.Selected))
	assert.Empty(t, sel.Overflow)
}

func TestRanker_Stable(t *testing.T) {
	input := []domain.ScoredDocument{
		scored("first", 2, 1, at(3)),
		scored("second", 2, 1, at(3)),
		scored("third", 2, 1, at(3)),
	}
	sel := NewRanker(0, nil).Select(input, 2)
	assert.Equal(t, []string{"first", "second"}, ids(sel.Selected))
	assert.Equal(t, []string{"third"}, ids(sel.Overflow))

	// Input is not reordered in place.
	assert.Equal(t, "first", input[0].ID)
}

func TestRanker_OverflowCap(t *testing.T) {
	var input []domain.ScoredDocument
	for i := 0; i < 10; i++ {
		input = append(input, scored(fmt.Sprintf("d%d", i), 10-i, 1, nil))
	}
	sel := NewRanker(3, nil).Select(input, 4)
	assert.Equal(t, []string{"d0", "d1", "d2", "d3"}, ids(sel.Selected))
	assert.Equal(t, []string{"d4", "d5", "d6"}, ids(sel.Overflow))
}

func TestRanker_SourceTypeCap(t *testing.T) {
	video := func(id string, score int) domain.ScoredDocument {
		d := scored(id, score, 1, nil)
		d.SourceType = domain.SourceTypeVideo
		return d
	}
	input := []domain.ScoredDocument{
		video("v1", 9), video("v2", 8), video("v3", 7),
		scored("w1", 6, 1, nil), scored("w2", 5, 1, nil),
	}

	sel := NewRanker(0, map[domain.SourceType]int{domain.SourceTypeVideo: 2}).Select(input, 4)
	assert.Equal(t, []string{"v1", "v2", "w1", "w2"}, ids(sel.Selected))
	assert.Equal(t, []string{"v3"}, ids(sel.Overflow))
}

// 103 scraped documents of which 9 pass; with top_n 20 every passing
// document is selected and nothing overflows.
func TestRanker_ScenarioC(t *testing.T) {
	scorer := NewScorer(testKeywordTable(), 1)
	var docs []domain.Document
	for i := 0; i < 103; i++ {
		title := fmt.Sprintf("Company news bulletin %d", i)
		if i%12 == 0 && i/12 < 9 {
			title = fmt.Sprintf("Digital Twin update %d", i)
		}
		docs = append(docs, doc(fmt.Sprintf("n%03d", i), title))
	}

	var passed []domain.ScoredDocument
	for _, d := range scorer.ScoreAll(docs) {
		if d.Passed {
			passed = append(passed, d)
		}
	}
	require.Len(t, passed, 9)

	sel := NewRanker(domain.DefaultOverflowCap, nil).Select(passed, 20)
	assert.Len(t, sel.Selected, 9)
	assert.Empty(t, sel.Overflow)
}
