package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-digest/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-digest/internal/core/domain"
)

const records = `{"title": "Digital Twin drives Smart Factory rollout", "url": "https://news.example.com/twin", "excerpt": "A plant-wide digital twin for discrete event simulation."}
{"title": "Webinar: Digital Twin basics", "url": "https://news.example.com/webinar", "excerpt": "Register now."}
`

func setup(t *testing.T) (*file.Config, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "news.jsonl"), []byte(records), 0600))

	config := fmt.Sprintf(`
prompts_dir = %q

[llm]
provider = "ollama"

[storage]
data_dir = %q

[metrics]
textfile = %q

[delivery]
markdown_dir = %q

[[sources]]
id = "news"
name = "Example News"
type = "web"
path = "news.jsonl"

[[profiles]]
id = "student"
persona = "student"
language = "en"
min_items = 1
max_items = 5
channels = ["markdown"]
`, filepath.Join(dir, "prompts"), filepath.Join(dir, "data"), filepath.Join(dir, "metrics", "digest.prom"),
		filepath.Join(dir, "out"))

	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(config), 0600))

	cfg, err := file.Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	return cfg, dir
}

func TestApp_MockRunDeliversAndRecordsHistory(t *testing.T) {
	cfg, dir := setup(t)
	a, err := New(cfg, Options{Plain: true})
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	now := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	res, err := a.Pipeline.Run(ctx, domain.RunOptions{Mock: true, Now: now})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Stats.Scraped)
	assert.Equal(t, 1, res.Stats.Passed)
	assert.Equal(t, 1, res.Stats.Delivered)

	_, err = os.Stat(filepath.Join(dir, "out", "digest-2026-03-10-student.md"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "metrics", "digest.prom"))
	assert.NoError(t, err)

	entries, err := a.History.List(ctx, "student", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestApp_DryRunWritesStdoutOnly(t *testing.T) {
	cfg, dir := setup(t)
	var out bytes.Buffer
	a, err := New(cfg, Options{Out: &out, Plain: true})
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	_, err = a.Pipeline.Run(ctx, domain.RunOptions{Mock: true, DryRun: true})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Digest for student")
	_, err = os.Stat(filepath.Join(dir, "out"))
	assert.True(t, os.IsNotExist(err), "dry runs never touch real channels")

	entries, err := a.History.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestApp_Explain(t *testing.T) {
	cfg, _ := setup(t)
	a, err := New(cfg, Options{})
	require.NoError(t, err)
	defer a.Close()

	scored := a.Explainer.Explain(domain.Document{Title: "OPC UA for Condition Monitoring"})
	assert.True(t, scored.Passed)
	assert.Contains(t, scored.PersonaTags, domain.TagTechnician)
}

func TestApp_ResendArchivedDigest(t *testing.T) {
	cfg, dir := setup(t)
	a, err := New(cfg, Options{Plain: true})
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	now := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	_, err = a.Pipeline.Run(ctx, domain.RunOptions{Mock: true, Now: now})
	require.NoError(t, err)

	digestPath := filepath.Join(dir, "out", "digest-2026-03-10-student.md")
	require.NoError(t, os.Remove(digestPath))

	digest, err := a.Resender.Resend(ctx, "student", "markdown")
	require.NoError(t, err)
	assert.Len(t, digest.Payload.Primary, 1)
	_, err = os.Stat(digestPath)
	assert.NoError(t, err, "resend rewrites the archived digest")

	entries, err := a.History.List(ctx, "student", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "resend leaves history alone")
}

func TestApp_CheckSourcesAndPrompts(t *testing.T) {
	cfg, dir := setup(t)
	a, err := New(cfg, Options{})
	require.NoError(t, err)
	defer a.Close()

	// The first result is the LLM backend, which depends on a local server.
	results := a.Checker.Check(context.Background())
	require.Len(t, results, 3)
	assert.Equal(t, "llm", results[0].Name)
	assert.True(t, results[1].OK())
	assert.Equal(t, "2 records", results[1].Detail)
	assert.True(t, results[2].OK())
	assert.Equal(t, filepath.Join(dir, "prompts"), results[2].Detail)
}
