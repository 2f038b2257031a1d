package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Completion is a generated answer with best-effort token accounting.
type Completion struct {
	Text        string
	Model       string
	TotalTokens int
}

type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	MaxTokens  int
	Dimensions int
	Timeout    time.Duration
}

// OpenAICompatibleClient talks to any endpoint implementing the OpenAI chat
// completions and embeddings APIs.
type OpenAICompatibleClient struct {
	client *openai.Client
	cfg    ClientConfig
}

func NewOpenAICompatibleClient(cfg ClientConfig) *OpenAICompatibleClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	oc.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAICompatibleClient{
		client: openai.NewClientWithConfig(oc),
		cfg:    cfg,
	}
}

func (c *OpenAICompatibleClient) Model() string {
	return c.cfg.Model
}

func (c *OpenAICompatibleClient) Complete(ctx context.Context, messages []ChatMessage) (Completion, error) {
	req := openai.ChatCompletionRequest{
		Model:     c.cfg.Model,
		Messages:  make([]openai.ChatCompletionMessage, 0, len(messages)),
		MaxTokens: c.cfg.MaxTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Completion{}, fmt.Errorf("llm request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, errors.New("empty llm choices")
	}

	model := resp.Model
	if model == "" {
		model = c.cfg.Model
	}
	return Completion{
		Text:        strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:       model,
		TotalTokens: resp.Usage.TotalTokens,
	}, nil
}

// EmbedBatch returns one vector per text, in input order.
func (c *OpenAICompatibleClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(c.cfg.Model),
		Dimensions: c.cfg.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), len(texts))
	}

	// Providers may return items out of order; Index is authoritative.
	out := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		out[item.Index] = item.Embedding
	}
	for i, v := range out {
		if len(v) == 0 {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}
	return out, nil
}
