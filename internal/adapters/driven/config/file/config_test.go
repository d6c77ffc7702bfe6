package file

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
)

const sampleConfig = `
keywords_file = "keywords.toml"

[pipeline]
pass_threshold = 2
fallback_accept_threshold = 4
top_n = 10
cooldown_days = 5

[pipeline.source_type_caps]
video = 1

[llm]
provider = "openai"
model = "gpt-4o-mini"

[retry]
max_attempts = 4
base_delay_ms = 250

[[sources]]
id = "dfki"
name = "DFKI News"
type = "web"
path = "scraped/dfki.jsonl"
language = "de"
priority = 3

[[sources]]
id = "arxiv"
type = "rss"
path = "/var/digest/arxiv.json"

[[profiles]]
id = "student"
persona = "student"
language = "zh"
min_items = 3
max_items = 8
channels = ["markdown"]

[[profiles]]
id = "technician"
persona = "technician"
language = "de"
accepted_tags = ["technician"]
min_items = 1
max_items = 5
channels = ["markdown", "stdout"]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_Sample(t *testing.T) {
	t.Setenv("DIGEST_LLM_API_KEY", "sk-test")
	path := writeConfig(t, sampleConfig)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, path, cfg.Path())

	p := cfg.PipelineConfig()
	assert.Equal(t, 2, p.PassThreshold)
	assert.Equal(t, 4, p.FallbackAcceptThreshold)
	assert.True(t, p.ValidationEnabled, "default kept when key is absent")
	assert.Equal(t, 10, p.TopN)
	assert.Equal(t, 1, p.SourceTypeCaps[domain.SourceTypeVideo])
	assert.Equal(t, 5*24*time.Hour, p.Cooldown())
	assert.Equal(t, domain.DefaultRetentionDays, p.RetentionDays)

	llm := cfg.LLMSettings()
	assert.Equal(t, domain.AIProviderOpenAI, llm.Provider)
	assert.Equal(t, "sk-test", llm.APIKey)
	assert.True(t, llm.IsConfigured())

	r := cfg.RetryPolicy()
	assert.Equal(t, 4, r.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, r.BaseDelay)

	sources := cfg.SourceConfigs()
	require.Len(t, sources, 2)
	dir := filepath.Dir(path)
	assert.Equal(t, filepath.Join(dir, "scraped/dfki.jsonl"), sources[0].Path)
	assert.Equal(t, "/var/digest/arxiv.json", sources[1].Path)
	assert.Equal(t, 1, sources[1].Priority, "missing priority defaults to standard")
	assert.Equal(t, filepath.Join(dir, "keywords.toml"), cfg.KeywordsFile)

	profiles := cfg.RecipientProfiles()
	require.Len(t, profiles, 2)
	assert.True(t, profiles[0].IsCatchAll())
	assert.Equal(t, domain.PersonaTechnician, profiles[1].Persona)
	assert.Equal(t, []string{"markdown", "stdout"}, cfg.Channels())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	var cerr *domain.ConfigError
	assert.True(t, errors.As(err, &cerr))
}

func TestParse_SyntaxError(t *testing.T) {
	err := Parse([]byte("[pipeline\npass_threshold = 1"), Default())
	var cerr *domain.ConfigError
	require.True(t, errors.As(err, &cerr))
	assert.Contains(t, cerr.Field, "line")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"no sources", func(c *Config) { c.Sources = nil }, "sources"},
		{"duplicate source", func(c *Config) { c.Sources[1].ID = c.Sources[0].ID }, "sources"},
		{"bad source type", func(c *Config) { c.Sources[0].Type = "podcast" }, "sources"},
		{"no profiles", func(c *Config) { c.Profiles = nil }, "profiles"},
		{"bad persona", func(c *Config) { c.Profiles[0].Persona = "manager" }, "profiles.student"},
		{"min above max", func(c *Config) { c.Profiles[0].MinItems = 9 }, "profiles.student"},
		{"unknown channel", func(c *Config) { c.Profiles[0].Channels = []string{"fax"} }, "profiles.student.channels"},
		{"notion without token", func(c *Config) { c.Profiles[0].Channels = []string{ChannelNotion} }, "profiles.student.channels"},
		{"email without smtp", func(c *Config) { c.Profiles[0].Channels = []string{ChannelEmail} }, "profiles.student.channels"},
		{"fallback not above pass", func(c *Config) { c.Pipeline.FallbackAcceptThreshold = 2 }, "pipeline"},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "kimi" }, "llm.provider"},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "retry.max_attempts"},
		{"unknown cap type", func(c *Config) { c.Pipeline.SourceTypeCaps["podcast"] = 1 }, "pipeline.source_type_caps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, sampleConfig))
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			var cerr *domain.ConfigError
			require.True(t, errors.As(err, &cerr), "got %v", err)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestValidate_ChannelRequirementsMet(t *testing.T) {
	t.Setenv("DIGEST_NOTION_TOKEN", "secret")
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	cfg.Delivery.NotionDatabase = "db-id"
	cfg.Delivery.SMTPHost = "smtp.example.com"
	cfg.Delivery.SMTPFrom = "digest@example.com"
	cfg.Profiles[0].Channels = []string{ChannelNotion, ChannelEmail}
	cfg.Profiles[0].EmailTo = []string{"student@example.com"}

	assert.NoError(t, cfg.Validate())
}

func TestValidate_EmailRecipients(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	cfg.Delivery.SMTPHost = "smtp.example.com"
	cfg.Delivery.SMTPFrom = "digest@example.com"
	cfg.Profiles[0].Channels = []string{ChannelEmail}

	var cerr *domain.ConfigError
	require.True(t, errors.As(cfg.Validate(), &cerr), "email_to is required")
	assert.Equal(t, "profiles.student.channels", cerr.Field)

	cfg.Profiles[0].EmailTo = []string{"not an address"}
	assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidInput)

	cfg.Profiles[0].EmailTo = []string{"a@example.com", "Bob <b@example.com>"}
	assert.NoError(t, cfg.Validate())
}

func TestRecipientProfiles_PerChannelDestinations(t *testing.T) {
	t.Setenv("DIGEST_NOTION_TOKEN", "secret")
	path := writeConfig(t, sampleConfig+`
[[profiles]]
id = "mixed"
persona = "student"
language = "en"
min_items = 1
max_items = 5
channels = ["email", "markdown", "notion"]
email_to = ["a@example.com", "b@example.com"]
markdown_dir = "out/mixed"

[delivery]
notion_database = "db-default"
smtp_host = "smtp.example.com"
smtp_from = "digest@example.com"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	profiles := cfg.RecipientProfiles()
	require.Len(t, profiles, 3)
	mixed := profiles[2]
	assert.Equal(t, "a@example.com,b@example.com", mixed.Destination(ChannelEmail))
	assert.Equal(t, filepath.Join(filepath.Dir(path), "out", "mixed"), mixed.Destination(ChannelMarkdown))
	assert.Empty(t, mixed.Destination(ChannelNotion), "notion falls back to delivery.notion_database")

	assert.Empty(t, profiles[0].Destination(ChannelMarkdown))
}

func TestLoadKeywordTable_BuiltIn(t *testing.T) {
	table, err := LoadKeywordTable("")
	require.NoError(t, err)

	assert.NotEmpty(t, table.Version)
	require.NotEmpty(t, table.Tiers)
	assert.Equal(t, "technician", table.Tiers[0].Name, "tiers ordered by weight")
	assert.Equal(t, domain.TagTechnician, table.Tiers[0].Tag)
	assert.Equal(t, domain.TagGeneral, table.Tiers[1].Tag)
	assert.Contains(t, table.HardExclude, "webinar")
}

func TestParseKeywordTable_Invalid(t *testing.T) {
	_, err := ParseKeywordTable([]byte(`
[[tiers]]
name = "high"
weight = 2
`))
	var cerr *domain.ConfigError
	require.True(t, errors.As(err, &cerr))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLoadKeywordTable_MissingFile(t *testing.T) {
	_, err := LoadKeywordTable(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
