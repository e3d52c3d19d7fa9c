package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/BaSui01/sunyadvisor/agent"
	"github.com/BaSui01/sunyadvisor/agent/orchestrator"
	"github.com/BaSui01/sunyadvisor/config"
	"github.com/BaSui01/sunyadvisor/llm"
	"github.com/BaSui01/sunyadvisor/rag/ingest"
	"github.com/BaSui01/sunyadvisor/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestVersionCommand(t *testing.T) {
	Version, BuildTime, GitCommit = "1.2.3", "2026-01-01", "abc123"
	t.Cleanup(func() { Version, BuildTime, GitCommit = "dev", "unknown", "unknown" })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "sunyadvisor 1.2.3")
	assert.Contains(t, out.String(), "Git Commit: abc123")
}

func TestCommandsRegistered(t *testing.T) {
	for _, path := range [][]string{
		{"serve"}, {"chat"}, {"version"},
		{"ingest", "embed"}, {"ingest", "insert"}, {"ingest", "run"},
		{"migrate", "up"}, {"migrate", "down"}, {"migrate", "status"}, {"migrate", "version"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
	down, _, err := rootCmd.Find([]string{"migrate", "down"})
	require.NoError(t, err)
	assert.NotNil(t, down.Flags().Lookup("all"))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("server:\n  http_port: 9000\n"), 0o600))
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("SUNYADVISOR_SERVER_METRICS_PORT=9100\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("SUNYADVISOR_SERVER_METRICS_PORT") })

	oldPath, oldEnv := configPath, envFiles
	t.Cleanup(func() { configPath, envFiles = oldPath, oldEnv })
	configPath, envFiles = yamlPath, []string{envPath, filepath.Join(dir, "missing.env")}

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, 9100, cfg.Server.MetricsPort)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("SUNYADVISOR_DATABASE_DRIVER", "oracle")
	oldPath, oldEnv := configPath, envFiles
	t.Cleanup(func() { configPath, envFiles = oldPath, oldEnv })
	configPath, envFiles = "", nil

	_, err := loadConfig()
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestInitLogger(t *testing.T) {
	logger := initLogger(config.LogConfig{Level: "warn", Format: "console", OutputPaths: []string{"stderr"}})
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	logger = initLogger(config.LogConfig{Level: "nonsense"})
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestAgentConfig(t *testing.T) {
	base := orchestrator.DefaultKnowledgeConfig()
	got := agentConfig(base, config.AgentConfig{Model: "m", Temperature: 0.25, MaxToolIterations: 9})
	assert.Equal(t, base.Name, got.Name)
	assert.Equal(t, base.JSONMode, got.JSONMode)
	assert.Equal(t, "m", got.Model)
	assert.InDelta(t, 0.25, got.Temperature, 1e-6)
	assert.Equal(t, 9, got.MaxToolIterations)
	assert.Equal(t, base.TokenBudget, got.TokenBudget)

	kept := agentConfig(agent.Config{Model: "keep", MaxTokens: 7}, config.AgentConfig{})
	assert.Equal(t, "keep", kept.Model)
	assert.Equal(t, 7, kept.MaxTokens)
}

func TestNewChatProvider_NoRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	}))
	defer srv.Close()

	cfg := config.DefaultConfig().LLM
	cfg.BaseURL = srv.URL
	p := newChatProvider(cfg, zap.NewNop())
	require.NotNil(t, p)

	_, err := p.Completion(context.Background(), &llm.ChatRequest{
		Model:    "gpt-4o-mini",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrServiceUnavailable, types.GetErrorCode(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestSchoolTags(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"binghamton", "alfred", ".cache"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}

	cfg := config.DefaultConfig().Ingest
	cfg.Root = root
	assert.Equal(t, []string{"alfred", "binghamton"}, schoolTags(cfg, zap.NewNop()))

	cfg.Universities = []string{"ub"}
	assert.Equal(t, []string{"ub"}, schoolTags(cfg, zap.NewNop()))

	cfg.Universities = nil
	cfg.Root = filepath.Join(root, "missing")
	assert.Nil(t, schoolTags(cfg, zap.NewNop()))
}

func TestWithCounter_DoesNotShareBacking(t *testing.T) {
	base := make([]agent.Option, 1, 8)
	a := withCounter(base, "gpt-4o")
	b := withCounter(base, "nomic-embed-text")
	assert.Len(t, base, 1)
	assert.Len(t, a, 2)
	assert.Len(t, b, 2)
	assert.NotSame(t, &a[0], &b[0])
}

func TestLoadPersona(t *testing.T) {
	p, err := loadPersona("")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.DefaultCounselorPersona, p)

	dir := t.TempDir()
	path := filepath.Join(dir, "persona.txt")
	require.NoError(t, os.WriteFile(path, []byte("  You are Ada.\n"), 0o600))
	p, err = loadPersona(path)
	require.NoError(t, err)
	assert.Equal(t, "You are Ada.", p)

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o600))
	_, err = loadPersona(empty)
	assert.Error(t, err)

	_, err = loadPersona(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestNewReranker(t *testing.T) {
	assert.Nil(t, newReranker(config.RerankConfig{}))
	assert.NotNil(t, newReranker(config.DefaultRerankConfig()))
}

func TestApplyIngestFlags(t *testing.T) {
	old := ingestFlags
	t.Cleanup(func() { ingestFlags = old })

	c := config.DefaultIngestConfig()
	ingestFlags.root = "/corpus"
	ingestFlags.universities = []string{"buffalo"}
	ingestFlags.workers = 4
	ingestFlags.noResolve = true
	applyIngestFlags(&c)

	assert.Equal(t, "/corpus", c.Root)
	assert.Equal(t, []string{"buffalo"}, c.Universities)
	assert.Equal(t, 4, c.Workers)
	assert.False(t, c.ResolveURLs)
}

func TestPrintReport(t *testing.T) {
	var out bytes.Buffer
	printReport(&out, &ingest.Report{Seen: 3, Embedded: 2, Failed: 1})
	assert.Contains(t, out.String(), "documents seen:      3")
	assert.NotContains(t, out.String(), "urls resolved")

	out.Reset()
	printReport(&out, &ingest.Report{URLResolved: 5, URLFailed: 1})
	assert.Contains(t, out.String(), "urls resolved:       5")
}

type fakeConversation struct {
	turns  []string
	chats  int64
	failOn string
}

func (f *fakeConversation) HandleTurn(_ context.Context, text string) (*orchestrator.TurnResult, error) {
	f.turns = append(f.turns, text)
	if text == f.failOn {
		return nil, errors.New("provider down")
	}
	return &orchestrator.TurnResult{Reply: "echo: " + text, Sources: []string{"https://www.buffalo.edu"}}, nil
}

func (f *fakeConversation) NewChat(context.Context) (int64, error) {
	f.chats++
	return f.chats + 1, nil
}

func TestRunREPL(t *testing.T) {
	conv := &fakeConversation{failOn: "break"}
	in := strings.NewReader("hello\n\n/new\nbreak\n/quit\nnever sent\n")
	var out bytes.Buffer

	require.NoError(t, runREPL(context.Background(), in, &out, conv, zap.NewNop()))

	assert.Equal(t, []string{"hello", "break"}, conv.turns)
	assert.EqualValues(t, 1, conv.chats)
	text := out.String()
	assert.Contains(t, text, "counselor> echo: hello")
	assert.Contains(t, text, "source: https://www.buffalo.edu")
	assert.Contains(t, text, "started chat 2")
	assert.Contains(t, text, "counselor> "+orchestrator.GenericErrorMessage)
	assert.NotContains(t, text, "provider down")
}

func TestRunREPL_EOF(t *testing.T) {
	conv := &fakeConversation{}
	var out bytes.Buffer
	require.NoError(t, runREPL(context.Background(), strings.NewReader("hi"), &out, conv, zap.NewNop()))
	assert.Equal(t, []string{"hi"}, conv.turns)
}
