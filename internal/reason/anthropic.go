package reason

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	rerrors "github.com/Aman-CERP/rolodex/internal/errors"
)

const (
	// DefaultAnthropicModel is used when no model is configured.
	DefaultAnthropicModel = "claude-3-5-haiku-latest"

	defaultAnthropicMaxTokens = 512
)

// MessagesClient is the part of the Anthropic client the provider uses.
type MessagesClient interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicConfig configures the Messages API filter provider.
type AnthropicConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// AnthropicProvider asks a Claude model for a filter through the Messages API.
type AnthropicProvider struct {
	messages  MessagesClient
	model     string
	maxTokens int64
}

// NewAnthropicProvider creates a provider backed by the Anthropic SDK.
// SDK-level retries are disabled; the engine degrades instead of waiting.
func NewAnthropicProvider(cfg AnthropicConfig) *AnthropicProvider {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)
	return NewAnthropicProviderWithClient(&client.Messages, cfg)
}

// NewAnthropicProviderWithClient creates a provider over a custom client (for testing).
func NewAnthropicProviderWithClient(messages MessagesClient, cfg AnthropicConfig) *AnthropicProvider {
	model := cfg.Model
	if model == "" {
		model = DefaultAnthropicModel
	}
	maxTokens := int64(defaultAnthropicMaxTokens)
	if cfg.MaxTokens > 0 {
		maxTokens = int64(cfg.MaxTokens)
	}
	return &AnthropicProvider{messages: messages, model: model, maxTokens: maxTokens}
}

// Name identifies the provider.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// ExtractFilter sends query and rc to the model and parses the JSON in its
// text reply.
func (p *AnthropicProvider) ExtractFilter(ctx context.Context, query string, rc Context, timeout time.Duration) (*Filter, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg, err := p.messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt(rc)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(query)),
		},
	})
	if err != nil {
		return nil, p.classify(ctx, err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, rerrors.ProviderMalformed(p.Name(), fmt.Errorf("no text content in response"))
	}

	f, err := ParseFilter(text.String())
	if err != nil {
		return nil, rerrors.ProviderMalformed(p.Name(), err)
	}
	return f, nil
}

func (p *AnthropicProvider) classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return rerrors.ProviderTimeout(p.Name(), err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	out := rerrors.ProviderUnavailable(p.Name(), err)
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		out = out.WithDetail("status", fmt.Sprint(apiErr.StatusCode))
		if apiErr.StatusCode < 500 && apiErr.StatusCode != 429 {
			out.Retryable = false
		}
	}
	return out
}
