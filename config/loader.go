package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultEnvPrefix prefixes every environment override.
const DefaultEnvPrefix = "SUNYADVISOR"

// Config is the complete configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" env:"SERVER"`
	Database  DatabaseConfig  `yaml:"database" env:"DATABASE"`
	Redis     RedisConfig     `yaml:"redis" env:"REDIS"`
	Session   SessionConfig   `yaml:"session" env:"SESSION"`
	Qdrant    QdrantConfig    `yaml:"qdrant" env:"QDRANT"`
	LLM       LLMConfig       `yaml:"llm" env:"LLM"`
	Embedding EmbeddingConfig `yaml:"embedding" env:"EMBEDDING"`
	Rerank    RerankConfig    `yaml:"rerank" env:"RERANK"`
	RAG       RAGConfig       `yaml:"rag" env:"RAG"`
	Ingest    IngestConfig    `yaml:"ingest" env:"INGEST"`
	Agents    AgentsConfig    `yaml:"agents" env:"AGENTS"`
	Auth      AuthConfig      `yaml:"auth" env:"AUTH"`
	Log       LogConfig       `yaml:"log" env:"LOG"`
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig configures the HTTP listeners.
type ServerConfig struct {
	HTTPPort    int           `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// WriteTimeout must cover a full routed turn including tool calls.
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	CORSOrigins     []string      `yaml:"cors_origins" env:"CORS_ORIGINS"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

// DatabaseConfig selects the relational store.
type DatabaseConfig struct {
	// Driver is postgres, mysql or sqlite.
	Driver   string `yaml:"driver" env:"DRIVER"`
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	// Name is the database name, or the file path for sqlite.
	Name            string        `yaml:"name" env:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	// AutoMigrate runs the embedded migrations on startup.
	AutoMigrate bool `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
}

// RedisConfig configures the session store backend.
type RedisConfig struct {
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// SessionConfig configures chat session tracking.
type SessionConfig struct {
	// Store is memory or redis.
	Store     string        `yaml:"store" env:"STORE"`
	KeyPrefix string        `yaml:"key_prefix" env:"KEY_PREFIX"`
	TTL       time.Duration `yaml:"ttl" env:"TTL"`
	// IdleTTL and MaxActive bound the orchestrators kept in memory.
	IdleTTL   time.Duration `yaml:"idle_ttl" env:"IDLE_TTL"`
	MaxActive int           `yaml:"max_active" env:"MAX_ACTIVE"`
}

// QdrantConfig locates the vector store.
type QdrantConfig struct {
	Host       string        `yaml:"host" env:"HOST"`
	Port       int           `yaml:"port" env:"PORT"`
	BaseURL    string        `yaml:"base_url" env:"BASE_URL"`
	APIKey     string        `yaml:"api_key" env:"API_KEY"`
	Collection string        `yaml:"collection" env:"COLLECTION"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// LLMConfig locates the chat-completions endpoint.
type LLMConfig struct {
	Provider string        `yaml:"provider" env:"PROVIDER"`
	APIKey   string        `yaml:"api_key" env:"API_KEY"`
	BaseURL  string        `yaml:"base_url" env:"BASE_URL"`
	Timeout  time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// MaxRetries enables retries of transient completion failures. Zero,
	// the default, surfaces the first failure to the caller.
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// BreakerThreshold is the run of upstream failures that stops calls
	// for BreakerReset.
	BreakerThreshold int           `yaml:"breaker_threshold" env:"BREAKER_THRESHOLD"`
	BreakerReset     time.Duration `yaml:"breaker_reset" env:"BREAKER_RESET"`
}

// EmbeddingConfig locates the embedding server.
type EmbeddingConfig struct {
	BaseURL    string        `yaml:"base_url" env:"BASE_URL"`
	APIKey     string        `yaml:"api_key" env:"API_KEY"`
	Model      string        `yaml:"model" env:"MODEL"`
	Dimensions int           `yaml:"dimensions" env:"DIMENSIONS"`
	MaxTokens  int           `yaml:"max_tokens" env:"MAX_TOKENS"`
	MaxBatch   int           `yaml:"max_batch" env:"MAX_BATCH"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// RerankConfig locates the cross-encoder.
type RerankConfig struct {
	BaseURL string        `yaml:"base_url" env:"BASE_URL"`
	APIKey  string        `yaml:"api_key" env:"API_KEY"`
	Model   string        `yaml:"model" env:"MODEL"`
	Wire    string        `yaml:"wire" env:"WIRE"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// RAGConfig tunes retrieval. SchoolAliases maps full campus names to
// university tags, for example "university at buffalo": "ub".
type RAGConfig struct {
	TopN          int               `yaml:"top_n" env:"TOP_N"`
	TopK          int               `yaml:"top_k" env:"TOP_K"`
	ChunkSize     int               `yaml:"chunk_size" env:"CHUNK_SIZE"`
	ChunkOverlap  int               `yaml:"chunk_overlap" env:"CHUNK_OVERLAP"`
	MinChunkSize  int               `yaml:"min_chunk_size" env:"MIN_CHUNK_SIZE"`
	SchoolAliases map[string]string `yaml:"school_aliases" env:"-"`
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	Root            string   `yaml:"root" env:"ROOT"`
	Universities    []string `yaml:"universities" env:"UNIVERSITIES"`
	Exclude         []string `yaml:"exclude" env:"EXCLUDE"`
	Workers         int      `yaml:"workers" env:"WORKERS"`
	BatchSize       int      `yaml:"batch_size" env:"BATCH_SIZE"`
	InsertBatchSize int      `yaml:"insert_batch_size" env:"INSERT_BATCH_SIZE"`
	ResolveURLs     bool     `yaml:"resolve_urls" env:"RESOLVE_URLS"`
	// URLFailureLog receives one line per page whose URL could not be resolved.
	URLFailureLog string            `yaml:"url_failure_log" env:"URL_FAILURE_LOG"`
	ProbeTimeout  time.Duration     `yaml:"probe_timeout" env:"PROBE_TIMEOUT"`
	ProbeRate     float64           `yaml:"probe_rate" env:"PROBE_RATE"`
	Hosts         map[string]string `yaml:"hosts"`
}

// AgentConfig configures one model-backed agent.
type AgentConfig struct {
	Model             string  `yaml:"model" env:"MODEL"`
	Temperature       float64 `yaml:"temperature" env:"TEMPERATURE"`
	MaxTokens         int     `yaml:"max_tokens" env:"MAX_TOKENS"`
	TokenBudget       int     `yaml:"token_budget" env:"TOKEN_BUDGET"`
	MaxToolIterations int     `yaml:"max_tool_iterations" env:"MAX_TOOL_ITERATIONS"`
}

// AgentsConfig configures the counselor, the knowledge agent and the
// lightweight helper calls.
type AgentsConfig struct {
	Counselor AgentConfig `yaml:"counselor" env:"COUNSELOR"`
	Knowledge AgentConfig `yaml:"knowledge" env:"KNOWLEDGE"`
	// Refresh is used for profile refresh and assessment analysis.
	Refresh AgentConfig `yaml:"refresh" env:"REFRESH"`
	Summary AgentConfig `yaml:"summary" env:"SUMMARY"`
	// RefreshEvery is the number of user messages between profile refreshes.
	RefreshEvery int `yaml:"refresh_every" env:"REFRESH_EVERY"`
	// PersonaFile replaces the built-in counselor persona when set.
	PersonaFile string `yaml:"persona_file" env:"PERSONA_FILE"`
}

// AuthConfig configures accounts and tokens.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	Issuer    string        `yaml:"issuer" env:"ISSUER"`
	TokenTTL  time.Duration `yaml:"token_ttl" env:"TOKEN_TTL"`
	// SignupCode gates registration when set.
	SignupCode string `yaml:"signup_code" env:"SIGNUP_CODE"`
	BcryptCost int    `yaml:"bcrypt_cost" env:"BCRYPT_COST"`
}

// LogConfig configures zap.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format is json or console.
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// Loader builds a Config.
type Loader struct {
	configPath string
	envPrefix  string
	dotenv     []string
	validators []func(*Config) error
}

// NewLoader creates a loader with the default env prefix.
func NewLoader() *Loader {
	return &Loader{envPrefix: DefaultEnvPrefix}
}

// WithConfigPath sets the YAML file. A missing file is not an error.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix overrides the environment prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithDotEnv loads the given .env files into the process environment
// before overrides are read. Variables already set are kept.
func (l *Loader) WithDotEnv(paths ...string) *Loader {
	l.dotenv = append(l.dotenv, paths...)
	return l
}

// WithValidator adds a check run after loading.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load builds the configuration.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}
	for _, path := range l.dotenv {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}
	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv walks v; nested structs extend the key with their tag.
func setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		tag := t.Field(i).Tag.Get("env")
		if tag == "" || tag == "-" {
			continue
		}
		key := prefix + "_" + tag

		if field.Kind() == reflect.Struct {
			if err := setFieldsFromEnv(field, key); err != nil {
				return err
			}
			continue
		}
		raw, ok := os.LookupEnv(key)
		if !ok || raw == "" {
			continue
		}
		if err := setFieldValue(field, raw); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return nil
		}
		parts := strings.Split(value, ",")
		out := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		field.Set(reflect.ValueOf(out))
	}
	return nil
}

// MustLoad loads path and panics on error.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv loads defaults overlaid with the environment only.
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate checks values that would fail later in confusing ways.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("unsupported database driver %q", c.Database.Driver))
	}
	switch c.Session.Store {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Sprintf("unsupported session store %q", c.Session.Store))
	}
	for name, a := range map[string]AgentConfig{
		"counselor": c.Agents.Counselor,
		"knowledge": c.Agents.Knowledge,
		"refresh":   c.Agents.Refresh,
		"summary":   c.Agents.Summary,
	} {
		if a.Model == "" {
			errs = append(errs, name+" model is required")
		}
		if a.Temperature < 0 || a.Temperature > 2 {
			errs = append(errs, name+" temperature must be between 0 and 2")
		}
	}
	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		errs = append(errs, "chunk_overlap must be smaller than chunk_size")
	}
	if c.RAG.TopK <= 0 || c.RAG.TopN < c.RAG.TopK {
		errs = append(errs, "rag top_k must be positive and not exceed top_n")
	}
	if c.Ingest.Workers <= 0 {
		errs = append(errs, "ingest workers must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DSN returns the driver-specific connection string.
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
