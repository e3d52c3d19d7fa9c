package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 9091, cfg.Server.MetricsPort)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "memory", cfg.Session.Store)
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTTL)
	assert.Equal(t, 0, cfg.LLM.MaxRetries)
	assert.Equal(t, "suny", cfg.Qdrant.Collection)

	assert.Equal(t, 20, cfg.RAG.TopN)
	assert.Equal(t, 5, cfg.RAG.TopK)
	assert.Equal(t, 256, cfg.RAG.ChunkSize)
	assert.Equal(t, 32, cfg.RAG.ChunkOverlap)

	assert.Equal(t, 5, cfg.Agents.RefreshEvery)
	assert.Equal(t, 5, cfg.Agents.Knowledge.MaxToolIterations)
	assert.InDelta(t, 0.7, cfg.Agents.Counselor.Temperature, 0.001)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Telemetry.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "gpt-4o", cfg.Agents.Counselor.Model)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlContent := `
server:
  http_port: 8888
  read_timeout: 60s
database:
  driver: sqlite
  name: advisor.db
agents:
  counselor:
    model: gpt-4.1
    temperature: 0.5
  refresh_every: 3
ingest:
  universities: [alfred, buffalo]
  hosts:
    alfred: www.alfredstate.edu
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "advisor.db", cfg.Database.Name)
	assert.Equal(t, "gpt-4.1", cfg.Agents.Counselor.Model)
	assert.InDelta(t, 0.5, cfg.Agents.Counselor.Temperature, 0.001)
	assert.Equal(t, 3, cfg.Agents.RefreshEvery)
	assert.Equal(t, []string{"alfred", "buffalo"}, cfg.Ingest.Universities)
	assert.Equal(t, "www.alfredstate.edu", cfg.Ingest.Hosts["alfred"])
	assert.Equal(t, "debug", cfg.Log.Level)

	// untouched sections keep their defaults
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("SUNYADVISOR_SERVER_HTTP_PORT", "7777")
	t.Setenv("SUNYADVISOR_AUTH_TOKEN_TTL", "2h")
	t.Setenv("SUNYADVISOR_AGENTS_KNOWLEDGE_TEMPERATURE", "0.1")
	t.Setenv("SUNYADVISOR_INGEST_RESOLVE_URLS", "false")
	t.Setenv("SUNYADVISOR_SERVER_CORS_ORIGINS", "https://a.edu, https://b.edu,")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.HTTPPort)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.InDelta(t, 0.1, cfg.Agents.Knowledge.Temperature, 0.001)
	assert.False(t, cfg.Ingest.ResolveURLs)
	assert.Equal(t, []string{"https://a.edu", "https://b.edu"}, cfg.Server.CORSOrigins)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 8888\n"), 0o644))
	t.Setenv("SUNYADVISOR_SERVER_HTTP_PORT", "9999")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.HTTPPort)
}

func TestLoader_DotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("SUNYADVISOR_AUTH_JWT_SECRET=from-dotenv\nSUNYADVISOR_RAG_TOP_K=7\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("SUNYADVISOR_AUTH_JWT_SECRET")
		os.Unsetenv("SUNYADVISOR_RAG_TOP_K")
	})

	cfg, err := NewLoader().
		WithDotEnv(envPath, filepath.Join(dir, "missing.env")).
		Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Auth.JWTSecret)
	assert.Equal(t, 7, cfg.RAG.TopK)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER_HTTP_PORT", "6666")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)
	assert.Equal(t, 6666, cfg.Server.HTTPPort)
}

func TestLoader_WithValidator(t *testing.T) {
	t.Setenv("SUNYADVISOR_SERVER_HTTP_PORT", "80")

	_, err := NewLoader().
		WithValidator(func(cfg *Config) error {
			if cfg.Server.HTTPPort < 1024 {
				return assert.AnError
			}
			return nil
		}).
		Load()
	assert.ErrorIs(t, err, assert.AnError)
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/non/existent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))

	_, err := NewLoader().WithConfigPath(path).Load()
	assert.Error(t, err)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("SUNYADVISOR_SERVER_HTTP_PORT", "not-a-number")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUNYADVISOR_SERVER_HTTP_PORT")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults"},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.HTTPPort = 0 },
			wantErr: "invalid HTTP port",
		},
		{
			name:    "bad driver",
			mutate:  func(c *Config) { c.Database.Driver = "oracle" },
			wantErr: "unsupported database driver",
		},
		{
			name:    "bad session store",
			mutate:  func(c *Config) { c.Session.Store = "memcached" },
			wantErr: "unsupported session store",
		},
		{
			name:    "missing model",
			mutate:  func(c *Config) { c.Agents.Summary.Model = "" },
			wantErr: "summary model is required",
		},
		{
			name:    "temperature out of range",
			mutate:  func(c *Config) { c.Agents.Counselor.Temperature = 3 },
			wantErr: "counselor temperature",
		},
		{
			name:    "overlap not smaller than size",
			mutate:  func(c *Config) { c.RAG.ChunkOverlap = c.RAG.ChunkSize },
			wantErr: "chunk_overlap",
		},
		{
			name:    "top_k above top_n",
			mutate:  func(c *Config) { c.RAG.TopK = c.RAG.TopN + 1 },
			wantErr: "top_k",
		},
		{
			name:    "no workers",
			mutate:  func(c *Config) { c.Ingest.Workers = 0 },
			wantErr: "workers",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	base := DatabaseConfig{
		Host: "db", Port: 5432, User: "u", Password: "p", Name: "advisor", SSLMode: "disable",
	}

	pg := base
	pg.Driver = "postgres"
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=advisor sslmode=disable", pg.DSN())

	my := base
	my.Driver = "mysql"
	my.Port = 3306
	assert.Equal(t, "u:p@tcp(db:3306)/advisor?parseTime=true&multiStatements=true", my.DSN())

	lite := base
	lite.Driver = "sqlite"
	assert.Equal(t, "advisor", lite.DSN())

	unknown := base
	unknown.Driver = "oracle"
	assert.Empty(t, unknown.DSN())
}

func TestMustLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 8181\n"), 0o644))
	assert.Equal(t, 8181, MustLoad(path).Server.HTTPPort)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("{{{"), 0o644))
	assert.Panics(t, func() { MustLoad(bad) })
}
