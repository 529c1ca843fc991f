package reason

import (
	"fmt"
	"log/slog"
	"strings"

	rerrors "github.com/Aman-CERP/rolodex/internal/errors"
)

// Provider names accepted by NewProvider.
const (
	ProviderNone      = "none"
	ProviderRules     = "rules"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config selects and configures a reasoning provider.
type Config struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
	Guard    GuardConfig
}

// NewProvider builds the configured provider wrapped in a Guarded. The
// "none" provider returns nil, which disables Tier-3.
func NewProvider(cfg Config, logger *slog.Logger) (Provider, error) {
	var p Provider
	switch strings.ToLower(cfg.Provider) {
	case ProviderNone, "":
		return nil, nil
	case ProviderRules:
		rules, err := NewRuleProvider()
		if err != nil {
			return nil, err
		}
		p = rules
	case ProviderOpenAI:
		p = NewOpenAIProvider(OpenAIConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model})
	case ProviderAnthropic:
		p = NewAnthropicProvider(AnthropicConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model})
	default:
		return nil, rerrors.ConfigError(fmt.Sprintf("unknown reasoning provider %q", cfg.Provider), nil).
			WithSuggestion("use one of: none, rules, openai, anthropic")
	}
	return NewGuarded(p, cfg.Guard, logger), nil
}
