package embed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	openai "github.com/sashabaranov/go-openai"

	rerrors "github.com/Aman-CERP/rolodex/internal/errors"
)

// providerOpenAI names the embedding provider in errors and logs.
const providerOpenAI = "openai-embeddings"

// OpenAIConfig holds the settings of an OpenAI-compatible embedding API.
// BaseURL may point at any server speaking the /v1/embeddings protocol,
// including a local Ollama.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
}

// OpenAIEmbedder embeds text through an OpenAI-compatible HTTP API.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// NewOpenAIEmbedder creates an embedder for cfg. Dimensions must match
// what the model returns; mismatching responses are rejected.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.Model == "" {
		return nil, rerrors.ConfigError("embedding model is required", nil)
	}
	if cfg.Dimensions <= 0 {
		return nil, rerrors.ConfigError("embedding dimensions must be positive", nil).
			WithDetail("dimensions", fmt.Sprint(cfg.Dimensions))
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed generates embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one request. Response items are reordered by
// their index so the result matches the input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	})
	if err != nil {
		return nil, ClassifyOpenAIError(ctx, providerOpenAI, err)
	}

	if len(resp.Data) != len(texts) {
		return nil, rerrors.ProviderMalformed(providerOpenAI,
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i, d := range data {
		if len(d.Embedding) != e.dimensions {
			return nil, rerrors.New(rerrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("embedding has %d dimensions, expected %d", len(d.Embedding), e.dimensions), nil).
				WithDetail("model", string(e.model))
		}
		out[i] = normalizeVector(d.Embedding)
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// ModelName returns the model identifier.
func (e *OpenAIEmbedder) ModelName() string {
	return string(e.model)
}

// Close releases resources. The HTTP client holds none.
func (e *OpenAIEmbedder) Close() error {
	return nil
}

// ClassifyOpenAIError maps a go-openai failure onto the provider taxonomy.
// It is shared with the chat-based filter provider.
// Context deadlines become timeouts; 5xx and 429 responses stay retryable;
// other API errors (bad key, unknown model) are unavailable but final.
func ClassifyOpenAIError(ctx context.Context, provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return rerrors.ProviderTimeout(provider, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	status := 0
	var reqErr *openai.RequestError
	var apiErr *openai.APIError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		err = fmt.Errorf("API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
		if detail := extractDetail(reqErr.Body); detail != "" {
			err = fmt.Errorf("API error %d: %s", reqErr.HTTPStatusCode, detail)
		}
	}

	out := rerrors.ProviderUnavailable(provider, err)
	if status != 0 {
		out = out.WithDetail("status", fmt.Sprint(status))
		if status < 500 && status != 429 {
			out.Retryable = false
		}
	}
	return out
}

// extractDetail pulls the "detail" field out of a JSON error body, used by
// some OpenAI-compatible servers instead of the "error" object.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
