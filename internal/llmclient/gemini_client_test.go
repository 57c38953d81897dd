// File: internal/llmclient/gemini_client_test.go
package llmclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/guidelight-ai/guidelight/api/schemas"
	"github.com/guidelight-ai/guidelight/internal/config"
	"github.com/guidelight-ai/guidelight/internal/llmclient"
)

func geminiReply(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{
			{
				"content": map[string]any{
					"parts": []map[string]string{{"text": text}},
				},
				"finishReason": "STOP",
			},
		},
	}
}

func newGemini(t *testing.T, endpoint string) *llmclient.GeminiClient {
	client, err := llmclient.NewGeminiClient(config.LLMModelConfig{
		Model:      "gemini-2.5-flash",
		APIKey:     "test-key",
		Endpoint:   endpoint,
		APITimeout: 2 * time.Second,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return client
}

func TestGeminiClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		genConfig := payload["generationConfig"].(map[string]any)
		assert.Equal(t, "application/json", genConfig["response_mime_type"])

		_ = json.NewEncoder(w).Encode(geminiReply(`{"ok": true}`))
	}))
	defer srv.Close()

	client := newGemini(t, srv.URL)
	out, err := client.Generate(context.Background(), schemas.GenerationRequest{
		SystemPrompt:    "be terse",
		UserPrompt:      "reply with json",
		ForceJSONFormat: true,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"ok": true}`, out)
}

func TestGeminiClient_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(geminiReply("recovered"))
	}))
	defer srv.Close()

	client := newGemini(t, srv.URL)
	out, err := client.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.Equal(t, int64(2), calls.Load())
}

func TestGeminiClient_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := newGemini(t, srv.URL)
	_, err := client.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "hi"})

	require.Error(t, err)
	assert.Equal(t, int64(1), calls.Load(), "4xx responses must not be retried")
}

func TestGeminiClient_RequiresAPIKey(t *testing.T) {
	_, err := llmclient.NewGeminiClient(config.LLMModelConfig{Model: "gemini-2.5-flash"}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestRouter_DispatchesByTier(t *testing.T) {
	logger := zaptest.NewLogger(t)

	fast := &tierEcho{name: "fast"}
	powerful := &tierEcho{name: "powerful"}
	router, err := llmclient.NewRouter(logger, fast, powerful)
	require.NoError(t, err)

	out, err := router.Generate(context.Background(), schemas.GenerationRequest{Tier: schemas.TierFast})
	require.NoError(t, err)
	assert.Equal(t, "fast", out)

	// No tier defaults to the powerful model.
	out, err = router.Generate(context.Background(), schemas.GenerationRequest{})
	require.NoError(t, err)
	assert.Equal(t, "powerful", out)
}

func TestRouter_RequiresBothClients(t *testing.T) {
	_, err := llmclient.NewRouter(zaptest.NewLogger(t), &tierEcho{name: "fast"}, nil)
	assert.Error(t, err)
}

// tierEcho identifies which client handled the request.
type tierEcho struct{ name string }

func (e *tierEcho) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	return e.name, nil
}
