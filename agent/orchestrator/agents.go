package orchestrator

import (
	"github.com/BaSui01/sunyadvisor/agent"
	"github.com/BaSui01/sunyadvisor/llm"
	"github.com/BaSui01/sunyadvisor/llm/tools"
	"github.com/BaSui01/sunyadvisor/profile"
	"github.com/BaSui01/sunyadvisor/rag"

	"go.uber.org/zap"
)

// Agent names used for tagging and history loading.
const (
	CounselorName = "counselor"
	KnowledgeName = "knowledge"
)

// DefaultCounselorConfig returns the counselor's settings.
func DefaultCounselorConfig() agent.Config {
	return agent.Config{
		Name:        CounselorName,
		Model:       "gpt-4o",
		Temperature: 0.7,
		JSONMode:    true,
		TokenBudget: 12000,
	}
}

// DefaultKnowledgeConfig returns the knowledge agent's settings.
func DefaultKnowledgeConfig() agent.Config {
	return agent.Config{
		Name:              KnowledgeName,
		Model:             "gpt-4o",
		Temperature:       0.2,
		TokenBudget:       24000,
		MaxToolIterations: agent.DefaultMaxToolIterations,
	}
}

// NewCounselor builds the counselor. JSON mode is always on.
func NewCounselor(cfg agent.Config, provider llm.Provider, p *profile.StudentProfile, persona string, logger *zap.Logger, opts ...agent.Option) (*agent.Agent, error) {
	cfg.JSONMode = true
	cfg.SystemPrompt = CounselorPrompt(persona, p)
	return agent.New(cfg, provider, logger, opts...)
}

// NewKnowledge builds the knowledge agent with rag_search bound to engine.
func NewKnowledge(cfg agent.Config, provider llm.Provider, engine *rag.Engine, resolve rag.SchoolResolver, logger *zap.Logger, opts ...agent.Option) (*agent.Agent, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultKnowledgePrompt
	}
	reg := tools.NewDefaultRegistry(logger)
	if engine != nil {
		if err := rag.RegisterSearchTool(reg, engine, resolve); err != nil {
			return nil, err
		}
	}
	opts = append(opts, agent.WithTools(reg, nil))
	return agent.New(cfg, provider, logger, opts...)
}
