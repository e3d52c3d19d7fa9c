package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/BaSui01/sunyadvisor/agent"
	"github.com/BaSui01/sunyadvisor/agent/orchestrator"
	"github.com/BaSui01/sunyadvisor/agent/persistence"
	"github.com/BaSui01/sunyadvisor/config"
	"github.com/BaSui01/sunyadvisor/internal/cache"
	"github.com/BaSui01/sunyadvisor/internal/database"
	"github.com/BaSui01/sunyadvisor/internal/metrics"
	"github.com/BaSui01/sunyadvisor/internal/migration"
	"github.com/BaSui01/sunyadvisor/llm"
	"github.com/BaSui01/sunyadvisor/llm/embedding"
	"github.com/BaSui01/sunyadvisor/llm/providers/openaicompat"
	"github.com/BaSui01/sunyadvisor/llm/rerank"
	"github.com/BaSui01/sunyadvisor/llm/tokenizer"
	"github.com/BaSui01/sunyadvisor/profile"
	"github.com/BaSui01/sunyadvisor/rag"
	"github.com/BaSui01/sunyadvisor/rag/ingest"

	"go.uber.org/zap"
)

// queryCacheTTL bounds how long a memoized query embedding is reused.
const queryCacheTTL = 24 * time.Hour

// app holds the long-lived components shared by serve and chat.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Collector // nil outside serve

	db       *database.PoolManager
	sessions persistence.SessionStore
	messages persistence.MessageStore
	cache    *cache.Manager // nil unless sessions live in redis

	provider llm.Provider
	engine   *rag.Engine
	store    *rag.QdrantStore
	schools  rag.SchoolResolver
	profiles *profile.Service
	persona  string

	closers []func() error
}

// newApp connects every backend. Partially built apps are closed on error.
func newApp(ctx context.Context, cfg *config.Config, collector *metrics.Collector, logger *zap.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger, metrics: collector}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.Database.AutoMigrate {
		if err := migration.Apply(ctx, cfg.Database, logger); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	a.db, err = database.Open(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.db.Close)
	if collector != nil {
		a.db.ObserveStats(func(s database.PoolStats) {
			collector.RecordDBConnections(s.OpenConnections, s.InUse, s.Idle)
		})
	}

	repo := profile.NewRepository(a.db.DB())
	if err := repo.Seed(ctx); err != nil {
		return nil, fmt.Errorf("seed assessment catalogue: %w", err)
	}

	a.sessions, err = persistence.NewSessionStore(persistence.StoreConfig{
		Type: persistence.StoreType(cfg.Session.Store),
		Redis: persistence.RedisStoreConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			PoolSize:  cfg.Redis.PoolSize,
			KeyPrefix: cfg.Session.KeyPrefix,
		},
		SessionTTL: cfg.Session.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	a.closers = append(a.closers, a.sessions.Close)
	a.messages = persistence.NewMessageStore(a.db.DB())

	if cfg.Session.Store == string(persistence.StoreTypeRedis) {
		a.cache, err = cache.NewManager(cache.FromRedisConfig(cfg.Redis, cfg.Session.KeyPrefix+"cache:", queryCacheTTL), logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.cache.Close)
	}

	a.provider = newChatProvider(cfg.LLM, logger)

	embedder, err := newEmbedder(cfg.Embedding, logger)
	if err != nil {
		return nil, err
	}
	var queries rag.EmbeddingProvider = embedder
	if a.cache != nil {
		var rec cache.Recorder
		if collector != nil {
			rec = collector
		}
		queries = cache.NewQueryEmbeddings(embedder, a.cache, rec, logger)
	}

	a.store = newQdrantStore(cfg.Qdrant, logger)
	var engineOpts []rag.EngineOption
	if collector != nil {
		engineOpts = append(engineOpts, rag.WithObserver(collector))
	}
	ec := rag.DefaultEngineConfig()
	ec.Collection = cfg.Qdrant.Collection
	ec.TopN = cfg.RAG.TopN
	ec.TopK = cfg.RAG.TopK
	a.engine, err = rag.NewEngine(queries, a.store, newReranker(cfg.Rerank), ec, logger, engineOpts...)
	if err != nil {
		return nil, err
	}
	a.schools = rag.NewSchoolResolver(schoolTags(cfg.Ingest, logger), cfg.RAG.SchoolAliases)

	var analyzer *profile.Analyzer
	if a.provider != nil {
		analyzer = profile.NewAnalyzer(a.provider, llmConfig(cfg.Agents.Refresh), logger)
	}
	a.profiles = profile.NewService(repo, analyzer, logger)

	a.persona, err = loadPersona(cfg.Agents.PersonaFile)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Close releases backends in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// orchestratorFactory builds the orchestrator of one session with the
// student's stored profile.
func (a *app) orchestratorFactory() orchestrator.Factory {
	cfg := a.cfg.Agents
	return func(ctx context.Context, sess orchestrator.Session) (*orchestrator.Orchestrator, error) {
		if a.provider == nil {
			return nil, errors.New("llm provider is not configured")
		}
		p, err := a.profiles.Profile(ctx, sess.UserID)
		if err != nil {
			return nil, fmt.Errorf("load profile: %w", err)
		}

		var agentOpts []agent.Option
		var orchOpts []orchestrator.Option
		if a.metrics != nil {
			agentOpts = append(agentOpts, agent.WithObserver(a.metrics))
			orchOpts = append(orchOpts, orchestrator.WithObserver(a.metrics))
		}

		counselorCfg := agentConfig(orchestrator.DefaultCounselorConfig(), cfg.Counselor)
		counselor, err := orchestrator.NewCounselor(counselorCfg,
			a.provider, p, a.persona, a.logger, withCounter(agentOpts, counselorCfg.Model)...)
		if err != nil {
			return nil, err
		}
		knowledgeCfg := agentConfig(orchestrator.DefaultKnowledgeConfig(), cfg.Knowledge)
		knowledge, err := orchestrator.NewKnowledge(knowledgeCfg,
			a.provider, a.engine, a.schools, a.logger, withCounter(agentOpts, knowledgeCfg.Model)...)
		if err != nil {
			return nil, err
		}

		oc := orchestrator.DefaultConfig()
		if cfg.RefreshEvery > 0 {
			oc.RefreshEvery = cfg.RefreshEvery
		}
		summaryCfg := agentConfig(agent.Config{Name: "summary"}, cfg.Summary)
		orchOpts = append(orchOpts,
			orchestrator.WithConfig(oc),
			orchestrator.WithProfile(p, a.persona),
			orchestrator.WithRefresher(profile.NewRefresher(a.provider, llmConfig(cfg.Refresh), a.logger), a.profiles),
			orchestrator.WithSummarizer(orchestrator.NewSummarizer(summaryCfg, a.provider, a.logger)),
		)
		return orchestrator.New(sess, counselor, knowledge, a.messages, a.sessions, a.logger, orchOpts...)
	}
}

// schoolTags lists the university tags the search tool may filter on: the
// configured universities, else the corpus directories.
func schoolTags(cfg config.IngestConfig, logger *zap.Logger) []string {
	if len(cfg.Universities) > 0 {
		return cfg.Universities
	}
	tags, err := ingest.NewWalker(cfg.Exclude).Universities(cfg.Root)
	if err != nil {
		logger.Warn("university tags unavailable, school filter disabled", zap.Error(err))
		return nil
	}
	return tags
}

func newChatProvider(cfg config.LLMConfig, logger *zap.Logger) llm.Provider {
	if cfg.BaseURL == "" {
		logger.Warn("llm base_url is not configured, chat is disabled")
		return nil
	}
	client := openaicompat.New(openaicompat.Config{
		ProviderName: cfg.Provider,
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		Timeout:      cfg.Timeout,
	}, logger)

	rc := llm.DefaultResilienceConfig()
	rc.Retry.MaxRetries = cfg.MaxRetries
	if cfg.BreakerThreshold > 0 {
		rc.Breaker.Threshold = cfg.BreakerThreshold
	}
	if cfg.BreakerReset > 0 {
		rc.Breaker.ResetTimeout = cfg.BreakerReset
	}
	return llm.NewResilientProvider(client, rc, logger)
}

func newEmbedder(cfg config.EmbeddingConfig, logger *zap.Logger) (*embedding.Embedder, error) {
	provider, err := embedding.NewHTTPProvider(embedding.HTTPConfig{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		MaxTokens:  cfg.MaxTokens,
		MaxBatch:   cfg.MaxBatch,
		Timeout:    cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	tok := tokenizer.GetTokenizerOrEstimator(cfg.Model)
	if bpe, ok := tok.(*tokenizer.TiktokenTokenizer); ok {
		if err := bpe.Err(); err != nil {
			logger.Warn("bpe ranks unavailable, estimating embedding windows", zap.String("model", cfg.Model), zap.Error(err))
		}
	}
	return embedding.NewEmbedder(provider, tok, provider.Spec(), logger)
}

// newReranker returns nil when no cross-encoder is configured. The engine
// then keeps the vector order.
func newReranker(cfg config.RerankConfig) rag.RerankProvider {
	if cfg.BaseURL == "" {
		return nil
	}
	return rerank.NewHTTPProvider(rerank.HTTPConfig{
		Wire:    rerank.Wire(cfg.Wire),
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	})
}

func newQdrantStore(cfg config.QdrantConfig, logger *zap.Logger) *rag.QdrantStore {
	return rag.NewQdrantStore(rag.QdrantConfig{
		Host:    cfg.Host,
		Port:    cfg.Port,
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
	}, logger)
}

// withCounter budgets the agent's context with its model's tokenizer.
func withCounter(opts []agent.Option, model string) []agent.Option {
	return append(slices.Clip(opts), agent.WithTokenCounter(tokenizer.Counter{T: tokenizer.GetTokenizerOrEstimator(model)}))
}

// agentConfig overlays the configured model settings on base. Zero values
// keep the base setting, except temperature which is always taken.
func agentConfig(base agent.Config, c config.AgentConfig) agent.Config {
	if c.Model != "" {
		base.Model = c.Model
	}
	base.Temperature = float32(c.Temperature)
	if c.MaxTokens > 0 {
		base.MaxTokens = c.MaxTokens
	}
	if c.TokenBudget > 0 {
		base.TokenBudget = c.TokenBudget
	}
	if c.MaxToolIterations > 0 {
		base.MaxToolIterations = c.MaxToolIterations
	}
	return base
}

func llmConfig(c config.AgentConfig) profile.LLMConfig {
	return profile.LLMConfig{Model: c.Model, Temperature: float32(c.Temperature), MaxTokens: c.MaxTokens}
}

// loadPersona reads the persona override, or returns the built-in persona
// when path is empty.
func loadPersona(path string) (string, error) {
	if path == "" {
		return orchestrator.DefaultCounselorPersona, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read persona file: %w", err)
	}
	persona := strings.TrimSpace(string(raw))
	if persona == "" {
		return "", fmt.Errorf("persona file %s is empty", path)
	}
	return persona, nil
}
