package reason

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Aman-CERP/rolodex/internal/embed"
	rerrors "github.com/Aman-CERP/rolodex/internal/errors"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIConfig configures the chat-completion filter provider.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIProvider asks an OpenAI-compatible chat model, in JSON mode, for
// a filter.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates a chat-completion provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(clientCfg), model: model}
}

// Name identifies the provider.
func (p *OpenAIProvider) Name() string { return "openai" }

// ExtractFilter sends query and rc to the model and parses its JSON answer.
func (p *OpenAIProvider) ExtractFilter(ctx context.Context, query string, rc Context, timeout time.Duration) (*Filter, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(rc)},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, embed.ClassifyOpenAIError(ctx, p.Name(), err)
	}
	if len(resp.Choices) == 0 {
		return nil, rerrors.ProviderMalformed(p.Name(), fmt.Errorf("no choices in response"))
	}

	f, err := ParseFilter(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, rerrors.ProviderMalformed(p.Name(), err)
	}
	return f, nil
}
