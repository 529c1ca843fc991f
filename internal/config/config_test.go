package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rerrors "github.com/Aman-CERP/rolodex/internal/errors"
)

// isolate points the user config at an empty temp dir and clears env
// overrides so the host environment cannot leak into a test.
func isolate(t *testing.T) string {
	t.Helper()
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	for _, name := range []string{
		"ROLODEX_LEXICAL_WEIGHT", "ROLODEX_SEMANTIC_WEIGHT", "ROLODEX_CACHE_SIZE",
		"ROLODEX_EMBEDDINGS_PROVIDER", "ROLODEX_EMBEDDINGS_MODEL", "ROLODEX_EMBEDDINGS_BASE_URL",
		"ROLODEX_REASONING_PROVIDER", "ROLODEX_REASONING_MODEL",
		"ROLODEX_ADDR", "ROLODEX_LOG_LEVEL", "ROLODEX_DATA_DIR", "ROLODEX_PERSIST",
	} {
		t.Setenv(name, "")
	}
	return xdg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	// Given: no configuration file exists
	cfg := NewConfig()

	// Then: all defaults should be applied
	require.NotNil(t, cfg)
	assert.Equal(t, 1, cfg.Version)

	assert.Equal(t, 10, cfg.Search.DefaultTopK)
	assert.Equal(t, 100, cfg.Search.MaxTopK)
	assert.Equal(t, 512, cfg.Search.MaxQueryLength)
	assert.Equal(t, 0.6, cfg.Search.LexicalWeight)
	assert.Equal(t, 0.4, cfg.Search.SemanticWeight)
	assert.Equal(t, 10.0, cfg.Search.LexicalScale)
	assert.Equal(t, 3, cfg.Search.MinLexicalResults)
	assert.Equal(t, 0.5, cfg.Search.Tier2Threshold)
	assert.Equal(t, 0.3, cfg.Search.Tier3Confidence)
	assert.True(t, cfg.Search.ExpandQueries)

	assert.Equal(t, FieldWeights{Name: 3, Company: 2, Position: 1.5, Email: 0.5}, cfg.Lexical.Weights)
	assert.Equal(t, 1.2, cfg.Lexical.K1)
	assert.Equal(t, 0.75, cfg.Lexical.B)

	assert.Equal(t, 16, cfg.Vector.M)
	assert.Equal(t, 0.35, cfg.Vector.MinSimilarity)

	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, 512, cfg.Embeddings.Dimensions)
	assert.Equal(t, 2*time.Second, cfg.Embeddings.Timeout)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embeddings.APIKeyEnv)

	assert.Equal(t, "rules", cfg.Reasoning.Provider)
	assert.Equal(t, 5*time.Second, cfg.Reasoning.Timeout)
	assert.Equal(t, 3, cfg.Reasoning.MaxFailures)

	assert.Equal(t, 1000, cfg.Cache.Size)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.True(t, cfg.Storage.Persist)
	assert.Contains(t, cfg.Storage.DataDir, ".rolodex")

	require.NoError(t, cfg.Validate())
}

func TestGetUserConfigPath_RespectsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	assert.Equal(t, filepath.Join("/tmp/xdg", "rolodex", "config.yaml"), GetUserConfigPath())
	assert.Equal(t, filepath.Join("/tmp/xdg", "rolodex"), GetUserConfigDir())
}

func TestLoad_NoFilesUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Search, cfg.Search)
}

func TestLoad_PartialProjectFileKeepsOtherDefaults(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	// Given: a project file that only overrides a few keys
	writeFile(t, filepath.Join(dir, ProjectConfigName), `
search:
  lexical_weight: 0.7
  semantic_weight: 0.3
embeddings:
  timeout: 750ms
server:
  addr: ":9090"
`)

	// When: loading
	cfg, err := Load(dir)
	require.NoError(t, err)

	// Then: named keys change and the rest keep defaults
	assert.Equal(t, 0.7, cfg.Search.LexicalWeight)
	assert.Equal(t, 0.3, cfg.Search.SemanticWeight)
	assert.Equal(t, 750*time.Millisecond, cfg.Embeddings.Timeout)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 10, cfg.Search.DefaultTopK)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, 3.0, cfg.Lexical.Weights.Name)
}

func TestLoad_YmlFallback(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".rolodex.yml"), "cache:\n  size: 5\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Cache.Size)
}

func TestLoad_Precedence(t *testing.T) {
	xdg := isolate(t)
	dir := t.TempDir()

	// Given: user config, project config, and env all set server.log_level
	writeFile(t, filepath.Join(xdg, "rolodex", "config.yaml"), `
server:
  log_level: debug
cache:
  size: 42
reasoning:
  provider: none
`)
	writeFile(t, filepath.Join(dir, ProjectConfigName), "server:\n  log_level: warn\n")

	t.Run("project overrides user", func(t *testing.T) {
		cfg, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, "warn", cfg.Server.LogLevel)
		assert.Equal(t, 42, cfg.Cache.Size, "user value survives when project is silent")
		assert.Equal(t, "none", cfg.Reasoning.Provider)
	})

	t.Run("env overrides project", func(t *testing.T) {
		t.Setenv("ROLODEX_LOG_LEVEL", "error")
		t.Setenv("ROLODEX_CACHE_SIZE", "7")
		cfg, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, "error", cfg.Server.LogLevel)
		assert.Equal(t, 7, cfg.Cache.Size)
	})
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)

	t.Setenv("ROLODEX_LEXICAL_WEIGHT", "0.8")
	t.Setenv("ROLODEX_SEMANTIC_WEIGHT", "0.2")
	t.Setenv("ROLODEX_EMBEDDINGS_PROVIDER", "openai")
	t.Setenv("ROLODEX_EMBEDDINGS_MODEL", "nomic-embed-text")
	t.Setenv("ROLODEX_REASONING_PROVIDER", "anthropic")
	t.Setenv("ROLODEX_DATA_DIR", "/var/lib/rolodex")
	t.Setenv("ROLODEX_PERSIST", "false")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 0.8, cfg.Search.LexicalWeight)
	assert.Equal(t, 0.2, cfg.Search.SemanticWeight)
	assert.Equal(t, "openai", cfg.Embeddings.Provider)
	assert.Equal(t, "nomic-embed-text", cfg.Embeddings.Model)
	assert.Equal(t, "anthropic", cfg.Reasoning.Provider)
	assert.Equal(t, "/var/lib/rolodex", cfg.Storage.DataDir)
	assert.False(t, cfg.Storage.Persist)
}

func TestLoad_InvalidEnvWeightIgnored(t *testing.T) {
	isolate(t)
	t.Setenv("ROLODEX_LEXICAL_WEIGHT", "heavy")
	t.Setenv("ROLODEX_SEMANTIC_WEIGHT", "1.5")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0.6, cfg.Search.LexicalWeight)
	assert.Equal(t, 0.4, cfg.Search.SemanticWeight)
}

func TestLoad_InvalidFileIsConfigError(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigName), "search:\n  lexical_weight: 0.9\n")

	_, err := Load(dir)
	require.Error(t, err)
	assert.Equal(t, rerrors.ErrCodeConfigInvalid, rerrors.GetCode(err))
	assert.Contains(t, err.Error(), "must equal 1.0")
}

func TestLoad_MalformedYAML(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigName), "search: [unclosed\n")

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, path, "reasoning:\n  provider: openai\n  model: gpt-4o-mini\n")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Reasoning.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Reasoning.Model)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"weights must sum to one", func(c *Config) { c.Search.LexicalWeight = 0.5 }, "must equal 1.0"},
		{"negative weight", func(c *Config) { c.Search.LexicalWeight, c.Search.SemanticWeight = -0.2, 1.2 }, "between 0 and 1"},
		{"tier2 threshold range", func(c *Config) { c.Search.Tier2Threshold = 1.5 }, "tier2_threshold"},
		{"tier3 confidence range", func(c *Config) { c.Search.Tier3Confidence = -0.1 }, "tier3_confidence"},
		{"lexical scale", func(c *Config) { c.Search.LexicalScale = 0 }, "lexical_scale"},
		{"default above max", func(c *Config) { c.Search.DefaultTopK = 200 }, "default_top_k"},
		{"zero default", func(c *Config) { c.Search.DefaultTopK = 0 }, "default_top_k"},
		{"query length", func(c *Config) { c.Search.MaxQueryLength = 0 }, "max_query_length"},
		{"field weight positive", func(c *Config) { c.Lexical.Weights.Company = 0 }, "positive"},
		{"email must be lowest", func(c *Config) { c.Lexical.Weights.Email = 1.5 }, "email"},
		{"k1 positive", func(c *Config) { c.Lexical.K1 = 0 }, "k1"},
		{"b range", func(c *Config) { c.Lexical.B = 1.2 }, "lexical.b"},
		{"min similarity", func(c *Config) { c.Vector.MinSimilarity = 2 }, "min_similarity"},
		{"hnsw params", func(c *Config) { c.Vector.M = 0 }, "vector.m"},
		{"embedding provider", func(c *Config) { c.Embeddings.Provider = "mlx" }, "embeddings.provider"},
		{"dimensions", func(c *Config) { c.Embeddings.Dimensions = 0 }, "dimensions"},
		{"batch size", func(c *Config) { c.Embeddings.BatchSize = 1000 }, "batch_size"},
		{"embed timeout", func(c *Config) { c.Embeddings.Timeout = 0 }, "timeout"},
		{"reasoning provider", func(c *Config) { c.Reasoning.Provider = "gemini" }, "reasoning.provider"},
		{"reasoning timeout", func(c *Config) { c.Reasoning.Timeout = 0 }, "reasoning.timeout"},
		{"cache size", func(c *Config) { c.Cache.Size = -1 }, "cache.size"},
		{"log level", func(c *Config) { c.Server.LogLevel = "verbose" }, "log_level"},
		{"data dir", func(c *Config) { c.Storage.DataDir = "" }, "data_dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidate_ProvidersCaseInsensitive(t *testing.T) {
	cfg := NewConfig()
	cfg.Embeddings.Provider = "OpenAI"
	cfg.Reasoning.Provider = "Anthropic"
	cfg.Server.LogLevel = "DEBUG"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_NoPersistNeedsNoDataDir(t *testing.T) {
	cfg := NewConfig()
	cfg.Storage.Persist = false
	cfg.Storage.DataDir = ""
	assert.NoError(t, cfg.Validate())
}

func TestAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("CUSTOM_KEY", "sk-custom")

	cfg := NewConfig()
	assert.Equal(t, "sk-openai", cfg.Embeddings.APIKey())

	cfg.Embeddings.APIKeyEnv = ""
	assert.Empty(t, cfg.Embeddings.APIKey())

	tests := []struct {
		provider string
		env      string
		want     string
	}{
		{"rules", "", ""},
		{"openai", "", "sk-openai"},
		{"anthropic", "", "sk-ant"},
		{"anthropic", "CUSTOM_KEY", "sk-custom"},
	}
	for _, tt := range tests {
		t.Run(tt.provider+"/"+tt.env, func(t *testing.T) {
			r := ReasoningConfig{Provider: tt.provider, APIKeyEnv: tt.env}
			assert.Equal(t, tt.want, r.APIKey())
		})
	}
}

func TestWriteYAML_RoundTripsThroughLoadFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := NewConfig()
	cfg.Search.CandidatePool = 25
	cfg.Reasoning.ResetTimeout = 90 * time.Second
	require.NoError(t, cfg.WriteYAML(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "reset_timeout: 1m30s")

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 25, loaded.Search.CandidatePool)
	assert.Equal(t, 90*time.Second, loaded.Reasoning.ResetTimeout)
}

func TestStorageConfig_ContactDBPath(t *testing.T) {
	s := StorageConfig{DataDir: "/data"}
	assert.Equal(t, filepath.Join("/data", "contacts.db"), s.ContactDBPath())
}
