package reason

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rerrors "github.com/Aman-CERP/rolodex/internal/errors"
)

func chatCompletion(content string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"model":  "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	}
}

func newChatServer(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewOpenAIProvider(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL, Model: "test-model"})
}

func TestOpenAIProvider_ExtractFilter(t *testing.T) {
	// Given: a chat server answering in JSON mode
	p := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req struct {
			Model          string `json:"model"`
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Contains(t, req.Messages[0].Content, "Stripe")
		assert.Equal(t, "who works in fintech", req.Messages[1].Content)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletion(`{"matching_companies": ["Stripe"], "summary": "fintech"}`))
	})

	// When: extracting a filter
	f, err := p.ExtractFilter(context.Background(), "who works in fintech",
		Context{Companies: []string{"Stripe"}}, time.Second)

	// Then: the JSON answer becomes a typed filter
	require.NoError(t, err)
	assert.Equal(t, []string{"Stripe"}, f.Companies)
	assert.Equal(t, "fintech", f.Summary)
}

func TestOpenAIProvider_MalformedContent(t *testing.T) {
	p := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletion("I think Stripe is fintech."))
	})

	_, err := p.ExtractFilter(context.Background(), "fintech", Context{}, time.Second)

	assert.ErrorIs(t, err, rerrors.ErrProviderMalformed)
}

func TestOpenAIProvider_ServerError(t *testing.T) {
	p := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
	})

	_, err := p.ExtractFilter(context.Background(), "fintech", Context{}, time.Second)

	assert.ErrorIs(t, err, rerrors.ErrProviderUnavailable)
}

func TestOpenAIProvider_HonorsTimeout(t *testing.T) {
	release := make(chan struct{})
	p := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	start := time.Now()
	_, err := p.ExtractFilter(context.Background(), "fintech", Context{}, 50*time.Millisecond)

	assert.ErrorIs(t, err, rerrors.ErrProviderTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}
