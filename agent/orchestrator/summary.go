package orchestrator

import (
	"context"
	"strings"

	"github.com/BaSui01/sunyadvisor/agent"
	"github.com/BaSui01/sunyadvisor/llm"
	"github.com/BaSui01/sunyadvisor/types"

	"go.uber.org/zap"
)

// Summarizer condenses a finished chat into one paragraph.
type Summarizer struct {
	cfg      agent.Config
	provider llm.Provider
	logger   *zap.Logger
}

// NewSummarizer creates a summarizer. cfg.SystemPrompt is replaced.
func NewSummarizer(cfg agent.Config, provider llm.Provider, logger *zap.Logger) *Summarizer {
	if cfg.Name == "" {
		cfg.Name = "summarizer"
	}
	cfg.SystemPrompt = summaryPrompt
	cfg.JSONMode = false
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{cfg: cfg, provider: provider, logger: logger}
}

// Summarize runs one model call over transcript. A fresh agent is used per
// call so summaries never see each other.
func (s *Summarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	a, err := agent.New(s.cfg, s.provider, s.logger)
	if err != nil {
		return "", err
	}
	a.AddMessage(types.NewUserMessage(transcript))
	res, err := a.Respond(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Final.Content), nil
}
