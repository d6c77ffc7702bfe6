package cli

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/sercha-digest/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-digest/internal/core/domain"
)

// execute runs the root command with args and returns combined output.
// Flag variables are restored afterwards since cobra keeps them between runs.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		resetFlags()
	})

	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores every flag to its default and clears Changed, which
// cobra consults for required flags.
func resetFlags() {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	var walk func(*cobra.Command)
	walk = func(c *cobra.Command) {
		c.Flags().VisitAll(reset)
		c.PersistentFlags().VisitAll(reset)
		for _, sub := range c.Commands() {
			walk(sub)
		}
	}
	walk(rootCmd)
}

// inject installs mocks for the duration of the test.
func inject(t *testing.T, runner *mockRunner, explainer *mockExplainer, history *mockHistory) {
	t.Helper()
	oldCfg, oldRunner, oldExplainer, oldHistory := cfg, pipelineRunner, documentExplainer, historyService

	c := file.Default()
	c.Sources = []file.SourceSection{{ID: "dfki", Type: "web", Path: "/data/dfki.jsonl", Language: "de", Priority: 3}}
	c.Profiles = []file.ProfileSection{{
		ID: "technician", Persona: "technician", Language: "de",
		AcceptedTags: []string{"technician"}, MinItems: 1, MaxItems: 5, Channels: []string{"markdown"},
	}}
	cfg = c
	pipelineRunner = runner
	documentExplainer = explainer
	historyService = history

	t.Cleanup(func() {
		cfg, pipelineRunner, documentExplainer, historyService = oldCfg, oldRunner, oldExplainer, oldHistory
	})
}

// mockRunner implements driving.PipelineRunner.
type mockRunner struct {
	mu     sync.Mutex
	opts   []domain.RunOptions
	result *domain.RunResult
	err    error
}

func (m *mockRunner) Run(_ context.Context, opts domain.RunOptions) (*domain.RunResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opts = append(m.opts, opts)
	if m.result == nil {
		return &domain.RunResult{}, m.err
	}
	return m.result, m.err
}

func (m *mockRunner) lastOpts() domain.RunOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opts[len(m.opts)-1]
}

// mockExplainer implements driving.DocumentExplainer.
type mockExplainer struct {
	mu  sync.Mutex
	got domain.Document
	res domain.ScoredDocument
}

func (m *mockExplainer) Explain(doc domain.Document) domain.ScoredDocument {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = doc
	res := m.res
	res.Document = doc
	return res
}

// mockHistory implements driving.HistoryService.
type mockHistory struct {
	mu      sync.Mutex
	entries []domain.DeliveryHistoryEntry
	pruned  int
	profile string
	limit   int
	err     error
}

func (m *mockHistory) List(_ context.Context, profileID string, limit int) ([]domain.DeliveryHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile, m.limit = profileID, limit
	return m.entries, m.err
}

func (m *mockHistory) Prune(context.Context, time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pruned, m.err
}

// injectMaintenance installs the resend and check services for the test.
func injectMaintenance(t *testing.T, resender *mockResender, checker *mockChecker) {
	t.Helper()
	oldResender, oldChecker := digestResender, setupChecker
	digestResender = resender
	setupChecker = checker
	t.Cleanup(func() {
		digestResender, setupChecker = oldResender, oldChecker
	})
}

// mockResender implements driving.DigestResender.
type mockResender struct {
	mu      sync.Mutex
	profile string
	channel string
	digest  domain.ArchivedDigest
	err     error
}

func (m *mockResender) Resend(_ context.Context, profileID, channel string) (domain.ArchivedDigest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile, m.channel = profileID, channel
	return m.digest, m.err
}

// mockChecker implements driving.SetupChecker.
type mockChecker struct {
	results []domain.CheckResult
}

func (m *mockChecker) Check(context.Context) []domain.CheckResult {
	return m.results
}
