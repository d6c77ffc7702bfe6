package file

import (
	"errors"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
)

// Channel names profiles may refer to.
const (
	ChannelMarkdown = "markdown"
	ChannelNotion   = "notion"
	ChannelEmail    = "email"
	ChannelStdout   = "stdout"
)

// envPrefix is the prefix of every secret environment variable.
const envPrefix = "DIGEST"

// Config is the digest configuration loaded from TOML plus secrets from the
// environment. It is loaded once per run and passed explicitly.
type Config struct {
	Pipeline  PipelineSection  `toml:"pipeline"`
	LLM       LLMSection       `toml:"llm"`
	Retry     RetrySection     `toml:"retry"`
	RateLimit RateLimitSection `toml:"rate_limit"`
	Sources   []SourceSection  `toml:"sources"`
	Profiles  []ProfileSection `toml:"profiles"`
	Delivery  DeliverySection  `toml:"delivery"`
	Storage   StorageSection   `toml:"storage"`
	Metrics   MetricsSection   `toml:"metrics"`

	// KeywordsFile overrides the built-in keyword table.
	KeywordsFile string `toml:"keywords_file"`

	// PromptsDir holds user-editable prompt files.
	PromptsDir string `toml:"prompts_dir"`

	Secrets Secrets `toml:"-"`

	path string
}

// PipelineSection is the [pipeline] table.
type PipelineSection struct {
	PassThreshold           int            `toml:"pass_threshold"`
	FallbackAcceptThreshold int            `toml:"fallback_accept_threshold"`
	ValidationEnabled       bool           `toml:"validation_enabled"`
	TopN                    int            `toml:"top_n"`
	OverflowCap             int            `toml:"overflow_cap"`
	SourceTypeCaps          map[string]int `toml:"source_type_caps"`
	ExclusiveTags           []string       `toml:"exclusive_tags"`
	CooldownDays            int            `toml:"cooldown_days"`
	RetentionDays           int            `toml:"retention_days"`
	MaxItemsPerSource       int            `toml:"max_items_per_source"`
}

// LLMSection is the [llm] table.
type LLMSection struct {
	Provider          string `toml:"provider"`
	Model             string `toml:"model"`
	BaseURL           string `toml:"base_url"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	LocalConcurrency  int    `toml:"local_concurrency"`
	RemoteConcurrency int    `toml:"remote_concurrency"`
}

// RetrySection is the [retry] table.
type RetrySection struct {
	MaxAttempts int     `toml:"max_attempts"`
	BaseDelayMS int     `toml:"base_delay_ms"`
	Multiplier  float64 `toml:"multiplier"`
	Jitter      float64 `toml:"jitter"`
	MaxDelayMS  int     `toml:"max_delay_ms"`
}

// RateLimitSection is the [rate_limit] table. Zero values select the
// provider defaults.
type RateLimitSection struct {
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

// SourceSection is one [[sources]] entry.
type SourceSection struct {
	ID       string `toml:"id"`
	Name     string `toml:"name"`
	Type     string `toml:"type"`
	Path     string `toml:"path"`
	URL      string `toml:"url"`
	Language string `toml:"language"`
	Category string `toml:"category"`
	Priority int    `toml:"priority"`
}

// ProfileSection is one [[profiles]] entry.
type ProfileSection struct {
	ID           string   `toml:"id"`
	Name         string   `toml:"name"`
	Persona      string   `toml:"persona"`
	Language     string   `toml:"language"`
	AcceptedTags []string `toml:"accepted_tags"`
	MinItems     int      `toml:"min_items"`
	MaxItems     int      `toml:"max_items"`
	Keywords     []string `toml:"keywords"`
	Channels     []string `toml:"channels"`

	// Per-channel targets. Empty values fall back to [delivery].
	EmailTo        []string `toml:"email_to"`
	NotionDatabase string   `toml:"notion_database"`
	MarkdownDir    string   `toml:"markdown_dir"`
}

// destinations maps each channel to the profile's own target.
func (p ProfileSection) destinations() map[string]string {
	out := make(map[string]string, 3)
	if len(p.EmailTo) > 0 {
		out[ChannelEmail] = strings.Join(p.EmailTo, ",")
	}
	if p.NotionDatabase != "" {
		out[ChannelNotion] = p.NotionDatabase
	}
	if p.MarkdownDir != "" {
		out[ChannelMarkdown] = p.MarkdownDir
	}
	return out
}

// DeliverySection is the [delivery] table.
type DeliverySection struct {
	MarkdownDir    string `toml:"markdown_dir"`
	NotionDatabase string `toml:"notion_database"`
	SMTPHost       string `toml:"smtp_host"`
	SMTPPort       int    `toml:"smtp_port"`
	SMTPFrom       string `toml:"smtp_from"`
	Subject        string `toml:"subject"`
}

// StorageSection is the [storage] table.
type StorageSection struct {
	DataDir string `toml:"data_dir"`
}

// MetricsSection is the [metrics] table.
type MetricsSection struct {
	// Textfile receives Prometheus text exposition after each run.
	Textfile string `toml:"textfile"`
}

// Secrets are read from DIGEST_* environment variables, never from TOML.
type Secrets struct {
	LLMAPIKey   string `envconfig:"LLM_API_KEY"`
	NotionToken string `envconfig:"NOTION_TOKEN"`
	SMTPUser    string `envconfig:"SMTP_USER"`
	SMTPPass    string `envconfig:"SMTP_PASS"`
}

// Default returns a configuration with every default applied and no
// sources or profiles.
func Default() *Config {
	p := domain.DefaultPipelineConfig()
	caps := make(map[string]int, len(p.SourceTypeCaps))
	for t, n := range p.SourceTypeCaps {
		caps[string(t)] = n
	}
	r := domain.DefaultRetryPolicy()
	return &Config{
		Pipeline: PipelineSection{
			PassThreshold:           p.PassThreshold,
			FallbackAcceptThreshold: p.FallbackAcceptThreshold,
			ValidationEnabled:       p.ValidationEnabled,
			TopN:                    p.TopN,
			OverflowCap:             p.OverflowCap,
			SourceTypeCaps:          caps,
			ExclusiveTags:           p.ExclusiveTags,
			CooldownDays:            p.CooldownDays,
			RetentionDays:           p.RetentionDays,
			MaxItemsPerSource:       p.MaxItemsPerSource,
		},
		LLM: LLMSection{
			Provider:          string(domain.AIProviderOllama),
			TimeoutSeconds:    45,
			LocalConcurrency:  2,
			RemoteConcurrency: 8,
		},
		Retry: RetrySection{
			MaxAttempts: r.MaxAttempts,
			BaseDelayMS: int(r.BaseDelay / time.Millisecond),
			Multiplier:  r.Multiplier,
			Jitter:      r.Jitter,
			MaxDelayMS:  int(r.MaxDelay / time.Millisecond),
		},
		Delivery: DeliverySection{
			MarkdownDir: "digests",
			SMTPPort:    587,
			Subject:  "Industrial AI Digest",
		},
	}
}

// DefaultPath returns ~/.sercha-digest/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".sercha-digest", "config.toml"), nil
}

// Load reads the configuration at path (DefaultPath when empty), then loads
// secrets from the environment. A .env file in the working directory is
// loaded first when present; it never overrides variables already set.
// A missing file is an error only when path was given explicitly.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, &domain.ConfigError{Field: ".env", Err: err}
		}
	}

	explicit := path != ""
	if !explicit {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, &domain.ConfigError{Err: err}
		}
	}

	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := Parse(data, cfg); err != nil {
			return nil, err
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// No config yet; Validate reports what is missing.
	default:
		return nil, &domain.ConfigError{Field: path, Err: err}
	}

	if err := envconfig.Process(envPrefix, &cfg.Secrets); err != nil {
		return nil, &domain.ConfigError{Field: "environment", Err: err}
	}

	cfg.resolvePaths()
	return cfg, nil
}

// Parse decodes TOML into cfg, keeping defaults for absent keys.
func Parse(data []byte, cfg *Config) error {
	if err := toml.Unmarshal(data, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return &domain.ConfigError{Field: fmt.Sprintf("line %d column %d", row, col), Err: err}
		}
		return &domain.ConfigError{Err: err}
	}
	return nil
}

// Path returns the file the configuration was loaded from.
func (c *Config) Path() string {
	return c.path
}

// resolvePaths makes relative source, keyword and output paths relative to
// the config file's directory.
func (c *Config) resolvePaths() {
	if c.path == "" {
		return
	}
	dir := filepath.Dir(c.path)
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) || strings.HasPrefix(p, "~") {
			return p
		}
		return filepath.Join(dir, p)
	}
	for i := range c.Sources {
		c.Sources[i].Path = resolve(c.Sources[i].Path)
	}
	for i := range c.Profiles {
		c.Profiles[i].MarkdownDir = resolve(c.Profiles[i].MarkdownDir)
	}
	c.KeywordsFile = resolve(c.KeywordsFile)
	c.PromptsDir = resolve(c.PromptsDir)
	c.Delivery.MarkdownDir = resolve(c.Delivery.MarkdownDir)
	c.Storage.DataDir = resolve(c.Storage.DataDir)
	c.Metrics.Textfile = resolve(c.Metrics.Textfile)
}

// Validate checks the configuration once at start-up.
//
//nolint:gocyclo // Flat list of independent checks.
func (c *Config) Validate() error {
	if err := c.PipelineConfig().Validate(); err != nil {
		return &domain.ConfigError{Field: "pipeline", Err: err}
	}
	for t := range c.Pipeline.SourceTypeCaps {
		if !domain.SourceType(t).IsValid() {
			return configErr("pipeline.source_type_caps", "unknown source type %q", t)
		}
	}

	if c.LLM.Provider != "" && !domain.AIProvider(c.LLM.Provider).IsValid() {
		return configErr("llm.provider", "unknown provider %q", c.LLM.Provider)
	}
	if c.Retry.MaxAttempts < 1 {
		return configErr("retry.max_attempts", "must be at least 1")
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		return configErr("retry.jitter", "must be between 0 and 1")
	}

	if len(c.Sources) == 0 {
		return configErr("sources", "at least one source is required")
	}
	seen := make(map[string]bool, len(c.Sources))
	for _, s := range c.SourceConfigs() {
		if err := s.Validate(); err != nil {
			return &domain.ConfigError{Field: "sources", Err: err}
		}
		if seen[s.ID] {
			return configErr("sources", "duplicate source id %q", s.ID)
		}
		seen[s.ID] = true
	}

	if len(c.Profiles) == 0 {
		return configErr("profiles", "at least one profile is required")
	}
	seen = make(map[string]bool, len(c.Profiles))
	for _, p := range c.Profiles {
		field := "profiles." + p.ID
		if p.ID == "" {
			return configErr("profiles", "profile id is required")
		}
		if seen[p.ID] {
			return configErr("profiles", "duplicate profile id %q", p.ID)
		}
		seen[p.ID] = true
		switch domain.Persona(p.Persona) {
		case domain.PersonaStudent, domain.PersonaTechnician:
		default:
			return configErr(field, "unknown persona %q", p.Persona)
		}
		if p.MinItems < 0 || p.MaxItems < 1 || p.MinItems > p.MaxItems {
			return configErr(field, "need 0 <= min_items <= max_items and max_items >= 1")
		}
		if len(p.Channels) == 0 {
			return configErr(field, "at least one channel is required")
		}
		for _, ch := range p.Channels {
			if err := c.validateChannel(ch, p); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Config) validateChannel(ch string, p ProfileSection) error {
	field := "profiles." + p.ID + ".channels"
	switch ch {
	case ChannelStdout:
		return nil
	case ChannelMarkdown:
		if c.Delivery.MarkdownDir == "" && p.MarkdownDir == "" {
			return configErr(field, "markdown channel needs delivery.markdown_dir or markdown_dir")
		}
		return nil
	case ChannelNotion:
		if c.Secrets.NotionToken == "" {
			return configErr(field, "notion channel needs %s_NOTION_TOKEN", envPrefix)
		}
		if c.Delivery.NotionDatabase == "" && p.NotionDatabase == "" {
			return configErr(field, "notion channel needs delivery.notion_database or notion_database")
		}
		return nil
	case ChannelEmail:
		if c.Delivery.SMTPHost == "" || c.Delivery.SMTPFrom == "" {
			return configErr(field, "email channel needs delivery.smtp_host and delivery.smtp_from")
		}
		if len(p.EmailTo) == 0 {
			return configErr(field, "email channel needs email_to")
		}
		for _, addr := range p.EmailTo {
			if _, err := mail.ParseAddress(addr); err != nil {
				return configErr(field, "invalid email_to address %q", addr)
			}
		}
		return nil
	default:
		return &domain.ConfigError{Field: field, Err: fmt.Errorf("%w: %q", domain.ErrUnknownChannel, ch)}
	}
}

func configErr(field, format string, args ...any) error {
	return &domain.ConfigError{
		Field: field,
		Err:   fmt.Errorf("%w: %s", domain.ErrInvalidInput, fmt.Sprintf(format, args...)),
	}
}

// PipelineConfig converts the [pipeline] table.
func (c *Config) PipelineConfig() domain.PipelineConfig {
	caps := make(map[domain.SourceType]int, len(c.Pipeline.SourceTypeCaps))
	for t, n := range c.Pipeline.SourceTypeCaps {
		caps[domain.SourceType(t)] = n
	}
	return domain.PipelineConfig{
		PassThreshold:           c.Pipeline.PassThreshold,
		FallbackAcceptThreshold: c.Pipeline.FallbackAcceptThreshold,
		ValidationEnabled:       c.Pipeline.ValidationEnabled,
		TopN:                    c.Pipeline.TopN,
		OverflowCap:             c.Pipeline.OverflowCap,
		SourceTypeCaps:          caps,
		ExclusiveTags:           c.Pipeline.ExclusiveTags,
		CooldownDays:            c.Pipeline.CooldownDays,
		RetentionDays:           c.Pipeline.RetentionDays,
		MaxItemsPerSource:       c.Pipeline.MaxItemsPerSource,
	}
}

// LLMSettings converts the [llm] table plus the API key secret.
func (c *Config) LLMSettings() *domain.LLMSettings {
	return &domain.LLMSettings{
		Provider:          domain.AIProvider(c.LLM.Provider),
		Model:             c.LLM.Model,
		BaseURL:           c.LLM.BaseURL,
		APIKey:            c.Secrets.LLMAPIKey,
		TimeoutSeconds:    c.LLM.TimeoutSeconds,
		LocalConcurrency:  c.LLM.LocalConcurrency,
		RemoteConcurrency: c.LLM.RemoteConcurrency,
		RequestsPerSecond: c.RateLimit.RequestsPerSecond,
		Burst:             c.RateLimit.Burst,
	}
}

// RetryPolicy converts the [retry] table.
func (c *Config) RetryPolicy() domain.RetryPolicy {
	return domain.RetryPolicy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   time.Duration(c.Retry.BaseDelayMS) * time.Millisecond,
		Multiplier:  c.Retry.Multiplier,
		Jitter:      c.Retry.Jitter,
		MaxDelay:    time.Duration(c.Retry.MaxDelayMS) * time.Millisecond,
	}
}

// SourceConfigs converts the [[sources]] entries in file order.
func (c *Config) SourceConfigs() []domain.SourceConfig {
	out := make([]domain.SourceConfig, len(c.Sources))
	for i, s := range c.Sources {
		priority := s.Priority
		if priority == 0 {
			priority = 1
		}
		out[i] = domain.SourceConfig{
			ID:       s.ID,
			Name:     s.Name,
			Type:     domain.SourceType(s.Type),
			Path:     s.Path,
			URL:      s.URL,
			Language: s.Language,
			Category: s.Category,
			Priority: priority,
		}
	}
	return out
}

// RecipientProfiles converts the [[profiles]] entries in file order.
func (c *Config) RecipientProfiles() []domain.RecipientProfile {
	out := make([]domain.RecipientProfile, len(c.Profiles))
	for i, p := range c.Profiles {
		out[i] = domain.RecipientProfile{
			ID:           p.ID,
			Name:         p.Name,
			Persona:      domain.Persona(p.Persona),
			Language:     p.Language,
			AcceptedTags: p.AcceptedTags,
			MinItems:     p.MinItems,
			MaxItems:     p.MaxItems,
			Keywords:     p.Keywords,
			Channels:     p.Channels,
			Destinations: p.destinations(),
		}
	}
	return out
}

// Channels returns every channel named by at least one profile.
func (c *Config) Channels() []string {
	var out []string
	seen := make(map[string]bool)
	for _, p := range c.Profiles {
		for _, ch := range p.Channels {
			if !seen[ch] {
				seen[ch] = true
				out = append(out, ch)
			}
		}
	}
	return out
}
