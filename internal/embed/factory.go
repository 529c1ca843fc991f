package embed

import (
	"fmt"
	"strings"

	rerrors "github.com/Aman-CERP/rolodex/internal/errors"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderStatic uses hash-based embeddings (offline, deterministic)
	ProviderStatic ProviderType = "static"

	// ProviderOpenAI uses an OpenAI-compatible /v1/embeddings endpoint
	ProviderOpenAI ProviderType = "openai"
)

// Config selects and configures an embedder.
type Config struct {
	Provider   ProviderType
	Model      string
	BaseURL    string
	APIKey     string
	Dimensions int

	// CacheSize bounds the query embedding cache. Negative disables it,
	// zero uses DefaultEmbeddingCacheSize.
	CacheSize int
}

// NewEmbedder creates the embedder named by cfg.Provider, wrapped in a
// CachedEmbedder unless caching is disabled.
func NewEmbedder(cfg Config) (Embedder, error) {
	var (
		e   Embedder
		err error
	)

	switch ProviderType(strings.ToLower(string(cfg.Provider))) {
	case ProviderStatic, "":
		e = NewStaticEmbedder(cfg.Dimensions)
	case ProviderOpenAI:
		e, err = NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	default:
		return nil, rerrors.ConfigError(fmt.Sprintf("unknown embedding provider %q", cfg.Provider), nil).
			WithSuggestion("use one of: static, openai")
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheSize < 0 {
		return e, nil
	}
	return NewCachedEmbedder(e, cfg.CacheSize), nil
}
