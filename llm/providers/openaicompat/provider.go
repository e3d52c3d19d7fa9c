package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/sunyadvisor/internal/tlsutil"
	"github.com/BaSui01/sunyadvisor/llm"
	"github.com/BaSui01/sunyadvisor/llm/providers"
	"github.com/BaSui01/sunyadvisor/types"
	"go.uber.org/zap"
)

// Config points the client at a chat completions server.
type Config struct {
	// ProviderName labels errors, logs and metrics. Defaults to "openai".
	ProviderName string
	// APIKey is sent as a bearer token. Local servers usually need none.
	APIKey  string
	BaseURL string
	// DefaultModel is used when a request does not name one.
	DefaultModel string
	// Timeout bounds each HTTP exchange. Defaults to 60s.
	Timeout time.Duration
	// ChatPath defaults to /v1/chat/completions and ModelsPath, probed by
	// HealthCheck, to /v1/models.
	ChatPath   string
	ModelsPath string
}

func (c Config) withDefaults() Config {
	if c.ProviderName == "" {
		c.ProviderName = "openai"
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.ChatPath == "" {
		c.ChatPath = "/v1/chat/completions"
	}
	if c.ModelsPath == "" {
		c.ModelsPath = "/v1/models"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}

// Provider is an llm.Provider for servers speaking the OpenAI chat
// completions API.
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

var _ llm.Provider = (*Provider)(nil)

func New(cfg Config, logger *zap.Logger) *Provider {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("provider", cfg.ProviderName)),
	}
}

func (p *Provider) Name() string { return p.cfg.ProviderName }

// send performs one exchange and maps transport failures and 4xx/5xx
// replies to *types.Error. The caller closes the body on success.
func (p *Provider) send(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	providers.BearerTokenHeaders(req, p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, types.NewError(types.ErrUpstreamTimeout, "chat completion timed out").
				WithCause(err).WithRetryable(true).WithProvider(p.Name())
		}
		return nil, providers.TransportError(err, p.Name())
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		msg := providers.ReadErrorMessage(resp.Body)
		p.logger.Warn("upstream rejected request", zap.String("path", path), zap.Int("status", resp.StatusCode), zap.String("message", msg))
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}
	return resp, nil
}

// HealthCheck lists models, which every compatible server supports and
// which costs no tokens.
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	resp, err := p.send(ctx, http.MethodGet, p.cfg.ModelsPath, nil)
	status := &llm.HealthStatus{Healthy: err == nil, Latency: time.Since(start)}
	if err != nil {
		return status, err
	}
	resp.Body.Close()
	return status, nil
}

// wireRequest translates req. tool_choice is only sent alongside tools,
// since servers reject it otherwise.
func (p *Provider) wireRequest(req *llm.ChatRequest) providers.OpenAICompatRequest {
	model := req.Model
	if model == "" {
		model = p.cfg.DefaultModel
	}
	body := providers.OpenAICompatRequest{
		Model:       model,
		Messages:    providers.ConvertMessagesToOpenAI(req.Messages),
		Tools:       providers.ConvertToolsToOpenAI(req.Tools),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if len(body.Tools) > 0 && req.ToolChoice != "" {
		body.ToolChoice = req.ToolChoice
	}
	if req.ResponseFormat == llm.ResponseFormatJSON {
		body.ResponseFormat = &providers.OpenAICompatResponseFormat{Type: string(req.ResponseFormat)}
	}
	return body
}

// Completion sends a non-streaming chat completion.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, types.NewError(types.ErrInvalidRequest, "chat request has no messages").WithProvider(p.Name())
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	payload, err := json.Marshal(p.wireRequest(req))
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	start := time.Now()
	resp, err := p.send(ctx, http.MethodPost, p.cfg.ChatPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var wire providers.OpenAICompatResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "decode chat completion").
			WithCause(err).WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithProvider(p.Name())
	}
	out := providers.ToLLMChatResponse(wire, p.Name())
	if wire.Created != 0 {
		out.CreatedAt = time.Unix(wire.Created, 0)
	}
	p.logger.Debug("chat completion",
		zap.String("model", out.Model),
		zap.Int("total_tokens", out.Usage.TotalTokens),
		zap.Duration("latency", time.Since(start)))
	return out, nil
}
