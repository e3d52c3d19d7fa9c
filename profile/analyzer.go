package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BaSui01/sunyadvisor/llm"
	"github.com/BaSui01/sunyadvisor/types"

	"go.uber.org/zap"
)

// LLMConfig selects the model used by the analyzer and the refresher.
type LLMConfig struct {
	Model       string  `json:"model" yaml:"model"`
	Temperature float32 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
}

var errNoCompletion = errors.New("profile: model returned no content")

func complete(ctx context.Context, p llm.Provider, cfg LLMConfig, format llm.ResponseFormat, system, user string) (string, error) {
	req := &llm.ChatRequest{
		Model: cfg.Model,
		Messages: []llm.Message{
			types.NewSystemMessage(system),
			types.NewUserMessage(user),
		},
		MaxTokens:      cfg.MaxTokens,
		ResponseFormat: format,
	}
	req.WithTemperature(cfg.Temperature)
	if traceID, ok := types.TraceID(ctx); ok {
		req.TraceID = traceID
	}
	resp, err := p.Completion(ctx, req)
	if err != nil {
		return "", err
	}
	msg, ok := resp.FirstMessage()
	if !ok || strings.TrimSpace(msg.Content) == "" {
		return "", errNoCompletion
	}
	return strings.TrimSpace(msg.Content), nil
}

const analyzerPrompt = `You are a strengths coach for high school students exploring college.
You receive a student's answers to a 102-statement strengths assessment and the resulting theme scores (3 to 15).
Write a short analysis, at most three paragraphs, addressed to the student's counselor:
what the top themes suggest about how the student learns and works, which environments and majors may suit them,
and how the lowest themes could be supported. Do not repeat the raw numbers. Plain text only.`

// Analyzer turns assessment results into a free-text analysis.
type Analyzer struct {
	provider llm.Provider
	cfg      LLMConfig
	logger   *zap.Logger
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(provider llm.Provider, cfg LLMConfig, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{provider: provider, cfg: cfg, logger: logger.With(zap.String("component", "profile_analyzer"))}
}

// Analyze makes one model call over the responses and scores.
func (a *Analyzer) Analyze(ctx context.Context, responses []Response, scores []ThemeScore) (string, error) {
	if a.provider == nil {
		return "", types.NewError(types.ErrProviderNotSet, "profile analyzer has no provider")
	}
	text, err := complete(ctx, a.provider, a.cfg, llm.ResponseFormatText, analyzerPrompt, analysisInput(responses, scores))
	if err != nil {
		a.logger.Warn("analysis failed", zap.Error(err))
		return "", fmt.Errorf("analyze assessment: %w", err)
	}
	return text, nil
}

func analysisInput(responses []Response, scores []ThemeScore) string {
	var b strings.Builder
	b.WriteString("Theme scores:\n")
	for _, s := range rank(scores) {
		fmt.Fprintf(&b, "%s (%s): %d, %s\n", s.Theme, s.Domain, s.Score, s.Level)
	}
	b.WriteString("\nResponses (1 = strongly disagree, 5 = strongly agree):\n")
	for _, r := range responses {
		q, ok := QuestionByID(r.QuestionID)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%d. %s => %d\n", q.ID, q.Text, r.Answer)
	}
	return b.String()
}
