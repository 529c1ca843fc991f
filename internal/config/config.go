// Package config loads rolodex configuration from defaults, YAML files and
// environment variables.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	rerrors "github.com/Aman-CERP/rolodex/internal/errors"
	"github.com/Aman-CERP/rolodex/internal/logging"
)

// ProjectConfigName is the per-directory config file, tried before its
// .yml variant.
const ProjectConfigName = ".rolodex.yaml"

// Config is the full rolodex configuration. Durations use Go syntax
// ("2s", "1m30s") in YAML.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Lexical    LexicalConfig    `yaml:"lexical" json:"lexical"`
	Vector     VectorConfig     `yaml:"vector" json:"vector"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Reasoning  ReasoningConfig  `yaml:"reasoning" json:"reasoning"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
}

// SearchConfig configures tier routing and score fusion. The fusion
// weights can also be set with ROLODEX_LEXICAL_WEIGHT and
// ROLODEX_SEMANTIC_WEIGHT.
type SearchConfig struct {
	// DefaultTopK is used when a request gives no k.
	DefaultTopK int `yaml:"default_top_k" json:"default_top_k"`

	// MaxTopK caps any requested k.
	MaxTopK int `yaml:"max_top_k" json:"max_top_k"`

	// MaxQueryLength rejects longer queries, in runes.
	MaxQueryLength int `yaml:"max_query_length" json:"max_query_length"`

	// LexicalWeight and SemanticWeight blend Tier-1 and Tier-2 scores.
	// They must sum to 1.0.
	LexicalWeight  float64 `yaml:"lexical_weight" json:"lexical_weight"`
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`

	// LexicalScale normalizes BM25 scores as min(1, score/scale).
	LexicalScale float64 `yaml:"lexical_scale" json:"lexical_scale"`

	// MinLexicalResults escalates to Tier-2 when Tier-1 finds fewer.
	MinLexicalResults int `yaml:"min_lexical_results" json:"min_lexical_results"`

	// Tier2Threshold escalates to Tier-2 when the best normalized Tier-1
	// score is below it.
	Tier2Threshold float64 `yaml:"tier2_threshold" json:"tier2_threshold"`

	// Tier3Confidence escalates to Tier-3 when the best fused score is below it.
	Tier3Confidence float64 `yaml:"tier3_confidence" json:"tier3_confidence"`

	// CandidatePool is how many candidates each tier contributes to fusion.
	CandidatePool int `yaml:"candidate_pool" json:"candidate_pool"`

	// ExpandQueries adds nickname and title synonyms to Tier-1 slots.
	ExpandQueries bool `yaml:"expand_queries" json:"expand_queries"`
}

// LexicalConfig configures the BM25F index.
type LexicalConfig struct {
	Weights FieldWeights `yaml:"weights" json:"weights"`
	K1      float64      `yaml:"k1" json:"k1"`
	B       float64      `yaml:"b" json:"b"`
}

// FieldWeights are the per-field BM25F weights. Email must stay lowest.
type FieldWeights struct {
	Name     float64 `yaml:"name" json:"name"`
	Company  float64 `yaml:"company" json:"company"`
	Position float64 `yaml:"position" json:"position"`
	Email    float64 `yaml:"email" json:"email"`
}

// VectorConfig configures the HNSW graph.
type VectorConfig struct {
	M             int     `yaml:"m" json:"m"`
	EfSearch      int     `yaml:"ef_search" json:"ef_search"`
	MinSimilarity float64 `yaml:"min_similarity" json:"min_similarity"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "static" (offline, default) or "openai" (any
	// OpenAI-compatible /v1/embeddings server, including Ollama).
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	BaseURL    string `yaml:"base_url" json:"base_url"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`

	// APIKeyEnv names the environment variable holding the API key.
	// Keys are never stored in config files.
	APIKeyEnv string `yaml:"api_key_env" json:"api_key_env"`

	BatchSize int `yaml:"batch_size" json:"batch_size"`
	Workers   int `yaml:"workers" json:"workers"`

	// Timeout bounds a query-time embedding call; BuildTimeout bounds one
	// batch while indexing.
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	BuildTimeout time.Duration `yaml:"build_timeout" json:"build_timeout"`

	// CacheSize bounds the query embedding cache. Negative disables it.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// ReasoningConfig configures the Tier-3 filter provider.
type ReasoningConfig struct {
	// Provider is "none", "rules", "openai" or "anthropic".
	Provider  string        `yaml:"provider" json:"provider"`
	Model     string        `yaml:"model" json:"model"`
	BaseURL   string        `yaml:"base_url" json:"base_url"`
	APIKeyEnv string        `yaml:"api_key_env" json:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`

	// Circuit breaker settings.
	MaxFailures  int           `yaml:"max_failures" json:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout" json:"reset_timeout"`

	// ContextLimit caps the companies and positions sent to the provider.
	ContextLimit int `yaml:"context_limit" json:"context_limit"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	// Size is the maximum number of cached responses. Zero disables caching.
	Size int `yaml:"size" json:"size"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr            string        `yaml:"addr" json:"addr"`
	LogLevel        string        `yaml:"log_level" json:"log_level"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// MaxBodyBytes bounds contact upload bodies.
	MaxBodyBytes int64 `yaml:"max_body_bytes" json:"max_body_bytes"`
}

// StorageConfig configures durable contact storage.
type StorageConfig struct {
	// DataDir holds the contact database and the lock file.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// Persist stores contacts in SQLite so indexes survive restarts.
	Persist bool `yaml:"persist" json:"persist"`
}

// NewConfig returns the defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Search: SearchConfig{
			DefaultTopK:       10,
			MaxTopK:           100,
			MaxQueryLength:    512,
			LexicalWeight:     0.6,
			SemanticWeight:    0.4,
			LexicalScale:      10,
			MinLexicalResults: 3,
			Tier2Threshold:    0.5,
			Tier3Confidence:   0.3,
			CandidatePool:     50,
			ExpandQueries:     true,
		},
		Lexical: LexicalConfig{
			Weights: FieldWeights{Name: 3.0, Company: 2.0, Position: 1.5, Email: 0.5},
			K1:      1.2,
			B:       0.75,
		},
		Vector: VectorConfig{
			M:             16,
			EfSearch:      64,
			MinSimilarity: 0.35,
		},
		Embeddings: EmbeddingsConfig{
			Provider:     "static",
			Model:        "text-embedding-3-small",
			Dimensions:   512,
			APIKeyEnv:    "OPENAI_API_KEY",
			BatchSize:    32,
			Workers:      max(1, runtime.NumCPU()/2),
			Timeout:      2 * time.Second,
			BuildTimeout: 30 * time.Second,
			CacheSize:    1000,
		},
		Reasoning: ReasoningConfig{
			Provider:     "rules",
			APIKeyEnv:    "",
			Timeout:      5 * time.Second,
			MaxFailures:  3,
			ResetTimeout: 30 * time.Second,
			ContextLimit: 200,
		},
		Cache: CacheConfig{
			Size: 1000,
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:8080",
			LogLevel:        "info",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    10 << 20,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
			Persist: true,
		},
	}
}

// defaultDataDir returns ~/.rolodex/data.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".rolodex", "data")
	}
	return filepath.Join(home, ".rolodex", "data")
}

// ContactDBPath is the SQLite contact database inside DataDir.
func (s StorageConfig) ContactDBPath() string {
	return filepath.Join(s.DataDir, "contacts.db")
}

// APIKey resolves the embedding API key from the environment.
func (e EmbeddingsConfig) APIKey() string {
	if e.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(e.APIKeyEnv)
}

// APIKey resolves the reasoning API key from the environment. Without an
// explicit variable it falls back to the provider's conventional one.
func (r ReasoningConfig) APIKey() string {
	name := r.APIKeyEnv
	if name == "" {
		switch strings.ToLower(r.Provider) {
		case "openai":
			name = "OPENAI_API_KEY"
		case "anthropic":
			name = "ANTHROPIC_API_KEY"
		default:
			return ""
		}
	}
	return os.Getenv(name)
}

// GetUserConfigPath is $XDG_CONFIG_HOME/rolodex/config.yaml, falling back to
// ~/.config when XDG_CONFIG_HOME is unset.
func GetUserConfigPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = os.TempDir()
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "rolodex", "config.yaml")
}

func GetUserConfigDir() string { return filepath.Dir(GetUserConfigPath()) }

// Load layers, lowest first: defaults, the user config, the project config
// found in dir, then ROLODEX_* environment variables. The result is
// validated.
func Load(dir string) (*Config, error) {
	return load(func(cfg *Config) error {
		for _, name := range []string{ProjectConfigName, ".rolodex.yml"} {
			if path := filepath.Join(dir, name); fileExists(path) {
				return cfg.loadYAML(path)
			}
		}
		return nil
	})
}

// LoadFile is Load with path in place of the project config. path must exist.
func LoadFile(path string) (*Config, error) {
	return load(func(cfg *Config) error { return cfg.loadYAML(path) })
}

func load(project func(*Config) error) (*Config, error) {
	cfg := NewConfig()
	if user := GetUserConfigPath(); fileExists(user) {
		if err := cfg.loadYAML(user); err != nil {
			return nil, fmt.Errorf("user config: %w", err)
		}
	}
	if err := project(cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, rerrors.ConfigError("invalid configuration: "+err.Error(), err)
	}
	return cfg, nil
}

// loadYAML decodes path over c, so keys the file omits keep their value.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays ROLODEX_* variables. Empty, unparseable or out of
// range values leave the field alone.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	get := func(name string) (string, bool) {
		v, ok := lookup(name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	str := func(name string, dst *string) {
		if v, ok := get(name); ok {
			*dst = v
		}
	}
	weight := func(name string, dst *float64) {
		if v, ok := get(name); ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
				*dst = f
			}
		}
	}

	weight("ROLODEX_LEXICAL_WEIGHT", &c.Search.LexicalWeight)
	weight("ROLODEX_SEMANTIC_WEIGHT", &c.Search.SemanticWeight)
	if v, ok := get("ROLODEX_CACHE_SIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Cache.Size = n
		}
	}
	str("ROLODEX_EMBEDDINGS_PROVIDER", &c.Embeddings.Provider)
	str("ROLODEX_EMBEDDINGS_MODEL", &c.Embeddings.Model)
	str("ROLODEX_EMBEDDINGS_BASE_URL", &c.Embeddings.BaseURL)
	str("ROLODEX_REASONING_PROVIDER", &c.Reasoning.Provider)
	str("ROLODEX_REASONING_MODEL", &c.Reasoning.Model)
	str("ROLODEX_ADDR", &c.Server.Addr)
	str("ROLODEX_LOG_LEVEL", &c.Server.LogLevel)
	str("ROLODEX_DATA_DIR", &c.Storage.DataDir)
	if v, ok := get("ROLODEX_PERSIST"); ok {
		c.Storage.Persist = strings.EqualFold(v, "true") || v == "1"
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// validator keeps the first failed check.
type validator struct{ err error }

func (v *validator) check(ok bool, format string, args ...any) {
	if v.err == nil && !ok {
		v.err = fmt.Errorf(format, args...)
	}
}

func (v *validator) unit(name string, f float64) {
	v.check(f >= 0 && f <= 1, "%s must be between 0 and 1, got %f", name, f)
}

func (v *validator) oneOf(name, got string, allowed ...string) {
	v.check(slices.Contains(allowed, strings.ToLower(got)),
		"%s must be one of %s, got %q", name, strings.Join(allowed, ", "), got)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	var v validator

	s := c.Search
	v.unit("search.lexical_weight", s.LexicalWeight)
	v.unit("search.semantic_weight", s.SemanticWeight)
	sum := s.LexicalWeight + s.SemanticWeight
	v.check(math.Abs(sum-1) <= 0.01, "search.lexical_weight + search.semantic_weight must equal 1.0, got %.2f", sum)
	v.unit("search.tier2_threshold", s.Tier2Threshold)
	v.unit("search.tier3_confidence", s.Tier3Confidence)
	v.check(s.LexicalScale > 0, "search.lexical_scale must be positive, got %f", s.LexicalScale)
	v.check(s.DefaultTopK > 0 && s.DefaultTopK <= s.MaxTopK,
		"search.default_top_k must be in [1, max_top_k], got %d (max %d)", s.DefaultTopK, s.MaxTopK)
	v.check(s.MaxQueryLength > 0, "search.max_query_length must be positive, got %d", s.MaxQueryLength)
	v.check(s.MinLexicalResults >= 0 && s.CandidatePool > 0,
		"search.min_lexical_results must be non-negative and candidate_pool positive")

	w := c.Lexical.Weights
	v.check(w.Name > 0 && w.Company > 0 && w.Position > 0 && w.Email > 0, "lexical.weights must all be positive")
	v.check(w.Email < min(w.Name, w.Company, w.Position),
		"lexical.weights.email must be lower than every other field weight, got %.2f", w.Email)
	v.check(c.Lexical.K1 > 0, "lexical.k1 must be positive, got %f", c.Lexical.K1)
	v.unit("lexical.b", c.Lexical.B)

	v.unit("vector.min_similarity", c.Vector.MinSimilarity)
	v.check(c.Vector.M > 0 && c.Vector.EfSearch > 0, "vector.m and vector.ef_search must be positive")

	e := c.Embeddings
	v.oneOf("embeddings.provider", e.Provider, "static", "openai")
	v.check(e.Dimensions > 0, "embeddings.dimensions must be positive, got %d", e.Dimensions)
	v.check(e.BatchSize >= 1 && e.BatchSize <= 256, "embeddings.batch_size must be between 1 and 256, got %d", e.BatchSize)
	v.check(e.Timeout > 0 && e.BuildTimeout > 0, "embeddings.timeout and embeddings.build_timeout must be positive")

	v.oneOf("reasoning.provider", c.Reasoning.Provider, "none", "rules", "openai", "anthropic")
	v.check(c.Reasoning.Timeout > 0, "reasoning.timeout must be positive, got %s", c.Reasoning.Timeout)

	v.check(c.Cache.Size >= 0, "cache.size must be non-negative, got %d", c.Cache.Size)
	v.check(logging.ValidLevel(c.Server.LogLevel), "server.log_level must be debug, info, warn or error, got %q", c.Server.LogLevel)
	v.check(!c.Storage.Persist || c.Storage.DataDir != "", "storage.data_dir is required when storage.persist is true")

	return v.err
}

// WriteYAML marshals c to path, creating parent directories.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeConfigFile(path, data)
}
