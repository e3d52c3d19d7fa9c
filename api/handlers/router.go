package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// PublicPaths are served without a bearer token.
var PublicPaths = []string{
	"/health",
	"/ready",
	"/version",
	"/v1/auth/signup",
	"/v1/auth/login",
	"/v1/assessment/questions",
}

// RouterConfig assembles the HTTP surface.
type RouterConfig struct {
	Chat       *ChatHandler
	Auth       *AuthHandler
	Assessment *AssessmentHandler
	Health     *HealthHandler

	Verifier TokenVerifier
	Recorder HTTPRecorder // optional

	Version, BuildTime, GitCommit string

	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
	Tracing        bool
}

// NewRouter registers every route and wraps the mux in the middleware
// chain. ctx bounds the rate limiter's cleanup goroutine.
func NewRouter(ctx context.Context, cfg RouterConfig, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()

	if h := cfg.Health; h != nil {
		mux.HandleFunc("GET /health", h.HandleHealth)
		mux.HandleFunc("GET /ready", h.HandleReady)
		mux.HandleFunc("GET /version", h.HandleVersion(cfg.Version, cfg.BuildTime, cfg.GitCommit))
	}
	if h := cfg.Auth; h != nil {
		mux.HandleFunc("POST /v1/auth/signup", h.HandleSignup)
		mux.HandleFunc("POST /v1/auth/login", h.HandleLogin)
	}
	if h := cfg.Chat; h != nil {
		mux.HandleFunc("POST /v1/chat/turn", h.HandleTurn)
		mux.HandleFunc("POST /v1/chat/new", h.HandleNewChat)
		mux.HandleFunc("GET /v1/chat/history", h.HandleHistory)
		mux.HandleFunc("GET /v1/chat/ws", h.HandleSocket)
	}
	if h := cfg.Assessment; h != nil {
		mux.HandleFunc("GET /v1/assessment/questions", h.HandleQuestions)
		mux.HandleFunc("POST /v1/assessment", h.HandleSubmit)
		mux.HandleFunc("GET /v1/profile", h.HandleProfile)
	}

	mws := []Middleware{Recovery(logger), RequestID()}
	if cfg.Tracing {
		mws = append(mws, OTelTracing())
	}
	if cfg.Recorder != nil {
		mws = append(mws, MetricsMiddleware(cfg.Recorder))
	}
	mws = append(mws, SecurityHeaders(), CORS(cfg.CORSOrigins))
	if cfg.Verifier != nil {
		mws = append(mws, BearerAuth(cfg.Verifier, PublicPaths, true, logger))
	}
	// after auth so the log line and the limiter key carry the user
	mws = append(mws, RequestLogger(logger))
	if cfg.RateLimitRPS > 0 {
		mws = append(mws, RateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst, logger))
	}
	return Chain(mux, mws...)
}
