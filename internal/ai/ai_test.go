package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAICompatibleClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var body struct {
			Model    string        `json:"model"`
			Messages []ChatMessage `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "chat-model", body.Model)
		require.Len(t, body.Messages, 2)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"chat-model-0613","choices":[{"message":{"role":"assistant","content":"  42  "}}],"usage":{"total_tokens":17}}`))
	}))
	defer srv.Close()

	c := NewOpenAICompatibleClient(ClientConfig{BaseURL: srv.URL + "/", APIKey: "key", Model: "chat-model"})
	got, err := c.Complete(context.Background(), []ChatMessage{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "answer?"},
	})
	require.NoError(t, err)
	assert.Equal(t, Completion{Text: "42", Model: "chat-model-0613", TotalTokens: 17}, got)
}

func TestOpenAICompatibleClient_EmbedBatchOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	c := NewOpenAICompatibleClient(ClientConfig{BaseURL: srv.URL, APIKey: "key", Model: "emb"})
	got, err := c.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, got)
}

func TestOpenAICompatibleClient_EmbedBatchCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	c := NewOpenAICompatibleClient(ClientConfig{BaseURL: srv.URL, APIKey: "key", Model: "emb"})
	_, err := c.EmbedBatch(context.Background(), []string{"first", "second"})
	assert.Error(t, err)
}

func TestOpenAICompatibleClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	c := NewOpenAICompatibleClient(ClientConfig{BaseURL: srv.URL, APIKey: "nope", Model: "m"})
	_, err := c.Complete(context.Background(), []ChatMessage{{Role: RoleUser, Content: "hi"}})
	assert.Error(t, err)
}

func TestTokenCount(t *testing.T) {
	assert.Equal(t, 5, tokenCount(5))
	assert.Equal(t, 7, tokenCount(int64(7)))
	assert.Equal(t, 3, tokenCount(float64(3)))
	assert.Equal(t, 0, tokenCount(nil))
	assert.Equal(t, 0, tokenCount("12"))
}

func TestOllamaClient_RequestTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	client, err := NewOllamaClient(srv.URL, "all-minilm", 0, 50*time.Millisecond)
	require.NoError(t, err)

	start := time.Now()
	_, err = client.EmbedBatch(context.Background(), []string{"hello"})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
