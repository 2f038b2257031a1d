package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaClient runs chat and embedding models served by a local Ollama.
type OllamaClient struct {
	llm       *ollama.LLM
	embedder  *embeddings.EmbedderImpl
	model     string
	maxTokens int
}

// NewOllamaClient connects to the Ollama server at serverURL. timeout bounds
// each HTTP request; zero means 90 seconds.
func NewOllamaClient(serverURL, model string, maxTokens int, timeout time.Duration) (*OllamaClient, error) {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	llm, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(model),
		ollama.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama client failed: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create ollama embedder failed: %w", err)
	}
	return &OllamaClient{llm: llm, embedder: embedder, model: model, maxTokens: maxTokens}, nil
}

func (c *OllamaClient) Model() string {
	return c.model
}

func (c *OllamaClient) Complete(ctx context.Context, messages []ChatMessage) (Completion, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		if m.Role == RoleSystem {
			role = llms.ChatMessageTypeSystem
		}
		content = append(content, llms.TextParts(role, m.Content))
	}

	var opts []llms.CallOption
	if c.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.maxTokens))
	}
	resp, err := c.llm.GenerateContent(ctx, content, opts...)
	if err != nil {
		return Completion{}, fmt.Errorf("ollama generate failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, errors.New("empty ollama choices")
	}

	choice := resp.Choices[0]
	return Completion{
		Text:        strings.TrimSpace(choice.Content),
		Model:       c.model,
		TotalTokens: tokenCount(choice.GenerationInfo["TotalTokens"]),
	}, nil
}

func (c *OllamaClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ollama embed failed: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(texts))
	}
	return vectors, nil
}

func tokenCount(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
