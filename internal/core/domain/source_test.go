package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSourceConfig_Validate(t *testing.T) {
	ok := SourceConfig{ID: "arxiv", Type: SourceTypeRSS, Path: "out/arxiv.jsonl"}
	assert.NoError(t, ok.Validate())

	assert.ErrorIs(t, SourceConfig{Type: SourceTypeRSS, Path: "x"}.Validate(), ErrInvalidInput)
	assert.ErrorIs(t, SourceConfig{ID: "a", Type: "ftp", Path: "x"}.Validate(), ErrInvalidInput)
	assert.ErrorIs(t, SourceConfig{ID: "a", Type: SourceTypeWeb}.Validate(), ErrInvalidInput)
}

func TestSourceConfig_DisplayName(t *testing.T) {
	assert.Equal(t, "arxiv", SourceConfig{ID: "arxiv"}.DisplayName())
	assert.Equal(t, "arXiv cs.AI", SourceConfig{ID: "arxiv", Name: "arXiv cs.AI"}.DisplayName())
}

func TestPipelineConfig_Validate(t *testing.T) {
	cfg := DefaultPipelineConfig()
	assert.NoError(t, cfg.Validate())

	strict := cfg
	strict.PassThreshold = 3
	strict.FallbackAcceptThreshold = 3
	assert.ErrorIs(t, strict.Validate(), ErrInvalidInput)

	keywordOnly := strict
	keywordOnly.ValidationEnabled = false
	assert.NoError(t, keywordOnly.Validate())

	shortRetention := cfg
	shortRetention.RetentionDays = 3
	assert.ErrorIs(t, shortRetention.Validate(), ErrInvalidInput)
}

func TestPipelineConfig_Durations(t *testing.T) {
	cfg := PipelineConfig{CooldownDays: 7, RetentionDays: 30}
	assert.Equal(t, 7*24*time.Hour, cfg.Cooldown())
	assert.Equal(t, 30*24*time.Hour, cfg.Retention())
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{BaseDelay: 100 * time.Millisecond, Multiplier: 2, MaxDelay: time.Second}

	assert.Equal(t, 100*time.Millisecond, p.Delay(1, 0))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2, 0))
	assert.Equal(t, 400*time.Millisecond, p.Delay(3, 0))
	assert.Equal(t, time.Second, p.Delay(10, 0))

	p.Jitter = 0.5
	assert.Equal(t, 50*time.Millisecond, p.Delay(1, 0))
	assert.Equal(t, 100*time.Millisecond, p.Delay(1, 0.5))
}

func TestKeywordTable_ValidateSortsTiers(t *testing.T) {
	table := KeywordTable{
		Version: "test",
		Tiers: []KeywordTier{
			{Name: "medium", Weight: 1, Phrases: []string{"smart factory"}},
			{Name: "technician", Weight: 3, Phrases: []string{"sps"}},
			{Name: "high", Weight: 2, Phrases: []string{"digital twin"}},
		},
	}

	assert.NoError(t, table.Validate())
	assert.Equal(t, "technician", table.Tiers[0].Name)
	assert.Equal(t, "high", table.Tiers[1].Name)
	assert.Equal(t, "medium", table.Tiers[2].Name)
}

func TestKeywordTable_ValidateRejects(t *testing.T) {
	assert.ErrorIs(t, (&KeywordTable{}).Validate(), ErrInvalidInput)
	assert.ErrorIs(t, (&KeywordTable{Version: "v", Tiers: []KeywordTier{{Name: "a", Weight: 0}}}).Validate(), ErrInvalidInput)
	assert.ErrorIs(t, (&KeywordTable{Version: "v", Tiers: []KeywordTier{{Name: "a", Weight: 1}, {Name: "a", Weight: 2}}}).Validate(), ErrInvalidInput)
	assert.ErrorIs(t, (&KeywordTable{Version: "v", Combos: []ComboRule{{Name: "x", Brands: []string{"b"}}}}).Validate(), ErrInvalidInput)
}
