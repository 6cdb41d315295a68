package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaProviderJoinsStreamedChunks(t *testing.T) {
	var received ollamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		_ = json.NewDecoder(r.Body).Decode(&received)

		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = w.Write([]byte(`{"response":"Hello","done":false}` + "\n"))
		_, _ = w.Write([]byte(`{"response":" world","done":false}` + "\n"))
		_, _ = w.Write([]byte(`{"response":"","done":true}` + "\n"))
	}))
	defer srv.Close()

	p, err := NewOllamaProvider(srv.URL+"/", "llama3", time.Second)
	require.NoError(t, err)

	reply, err := p.Complete(context.Background(), "say hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello world", reply)
	assert.Equal(t, "llama3", received.Model)
	assert.Equal(t, "say hi", received.Prompt)
}

func TestOllamaProviderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p, err := NewOllamaProvider(srv.URL, "missing", time.Second)
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), "say hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestOllamaProviderStreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"out of memory"}` + "\n"))
	}))
	defer srv.Close()

	p, err := NewOllamaProvider(srv.URL, "llama3", time.Second)
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), "say hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of memory")
}

func TestAnthropicProviderCollectsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [
				{"type": "text", "text": "Hello"},
				{"type": "text", "text": "there"}
			],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 3, "output_tokens": 2}
		}`))
	}))
	defer srv.Close()

	p, err := NewAnthropicProvider("test-key", srv.URL+"/", "claude-test", 0)
	require.NoError(t, err)

	reply, err := p.Complete(context.Background(), "say hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello\nthere", reply)
}

func TestOpenAIProviderReadsOutputText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/responses"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "resp_1",
			"object": "response",
			"created_at": 1700000000,
			"model": "gpt-test",
			"status": "completed",
			"output": [{
				"type": "message",
				"id": "msg_1",
				"status": "completed",
				"role": "assistant",
				"content": [{"type": "output_text", "text": "Hello there", "annotations": []}]
			}]
		}`))
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider("test-key", srv.URL+"/v1/", "gpt-test", 64)
	require.NoError(t, err)

	reply, err := p.Complete(context.Background(), "say hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello there", reply)
}
