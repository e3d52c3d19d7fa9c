package config

import "time"

// DefaultConfig returns a configuration that runs against local services.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Database:  DefaultDatabaseConfig(),
		Redis:     DefaultRedisConfig(),
		Session:   DefaultSessionConfig(),
		Qdrant:    DefaultQdrantConfig(),
		LLM:       DefaultLLMConfig(),
		Embedding: DefaultEmbeddingConfig(),
		Rerank:    DefaultRerankConfig(),
		RAG:       DefaultRAGConfig(),
		Ingest:    DefaultIngestConfig(),
		Agents:    DefaultAgentsConfig(),
		Auth:      DefaultAuthConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    3 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
	}
}

func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "sunyadvisor",
		Name:            "sunyadvisor",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		AutoMigrate:     true,
	}
}

func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Store:     "memory",
		KeyPrefix: "sunyadvisor:",
		TTL:       24 * time.Hour,
		IdleTTL:   30 * time.Minute,
		MaxActive: 1000,
	}
}

func DefaultQdrantConfig() QdrantConfig {
	return QdrantConfig{
		Host:       "localhost",
		Port:       6333,
		Collection: "suny",
		Timeout:    30 * time.Second,
	}
}

func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:         "openai",
		BaseURL:          "https://api.openai.com",
		Timeout:          2 * time.Minute,
		MaxRetries:       0,
		BreakerThreshold: 5,
		BreakerReset:     time.Minute,
	}
}

func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		BaseURL:  "http://localhost:8081",
		Model:    "nomic-embed-text-v1.5",
		MaxBatch: 32,
		Timeout:  60 * time.Second,
	}
}

func DefaultRerankConfig() RerankConfig {
	return RerankConfig{
		BaseURL: "http://localhost:8082",
		Model:   "cross-encoder/ms-marco-MiniLM-L-6-v2",
		Wire:    "tei",
		Timeout: 30 * time.Second,
	}
}

func DefaultRAGConfig() RAGConfig {
	return RAGConfig{
		TopN:         20,
		TopK:         5,
		ChunkSize:    256,
		ChunkOverlap: 32,
		MinChunkSize: 128,
	}
}

func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		Root:            "data/suny",
		Exclude:         []string{"faculty", "news", "events"},
		Workers:         1,
		BatchSize:       50,
		InsertBatchSize: 256,
		ResolveURLs:     true,
		URLFailureLog:   "url_failures.log",
		ProbeTimeout:    10 * time.Second,
		ProbeRate:       2,
	}
}

func DefaultAgentsConfig() AgentsConfig {
	return AgentsConfig{
		Counselor: AgentConfig{
			Model:       "gpt-4o",
			Temperature: 0.7,
			TokenBudget: 12000,
		},
		Knowledge: AgentConfig{
			Model:             "gpt-4o",
			Temperature:       0.2,
			TokenBudget:       24000,
			MaxToolIterations: 5,
		},
		Refresh: AgentConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0,
			MaxTokens:   1024,
		},
		Summary: AgentConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.3,
			MaxTokens:   512,
		},
		RefreshEvery: 5,
	}
}

func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		Issuer:     "sunyadvisor",
		TokenTTL:   7 * 24 * time.Hour,
		BcryptCost: 12,
	}
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "sunyadvisor",
		SampleRate:   0.1,
	}
}
