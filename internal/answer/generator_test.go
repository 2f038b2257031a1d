package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docmind/internal/ai"
	"docmind/internal/retrieval"
)

type fakeLLM struct {
	reply    ai.Completion
	err      error
	received []ai.ChatMessage
}

func (f *fakeLLM) Model() string { return "fake-model" }

func (f *fakeLLM) Complete(_ context.Context, messages []ai.ChatMessage) (ai.Completion, error) {
	f.received = messages
	return f.reply, f.err
}

func chunks(n int) []retrieval.Result {
	out := make([]retrieval.Result, n)
	for i := range out {
		out[i] = retrieval.Result{
			ChunkID:          uint(i + 1),
			Text:             fmt.Sprintf("text %d", i+1),
			DocumentFilename: fmt.Sprintf("doc%d.pdf", i%2),
		}
	}
	return out
}

func TestAnswer_NoBackendFallsBack(t *testing.T) {
	g := NewGenerator(nil, 5)

	got := g.Answer(context.Background(), "what?", chunks(2))
	assert.Equal(t, FallbackMessage, got.Text)
	assert.Equal(t, "fallback", got.Model)
	assert.Zero(t, got.TokensUsed)
	assert.True(t, got.Degraded)
	assert.Equal(t, []string{"doc0.pdf", "doc1.pdf"}, got.Sources)
}

func TestAnswer_BackendErrorIsDegraded(t *testing.T) {
	g := NewGenerator(&fakeLLM{err: errors.New("quota exceeded")}, 5)

	got := g.Answer(context.Background(), "what?", chunks(1))
	assert.Equal(t, "I encountered an error while processing your question: quota exceeded", got.Text)
	assert.Equal(t, "fake-model", got.Model)
	assert.Zero(t, got.TokensUsed)
	assert.True(t, got.Degraded)
}

func TestAnswer_UsesAtMostFiveChunks(t *testing.T) {
	llm := &fakeLLM{reply: ai.Completion{Text: "  The answer.\n", Model: "served-model", TotalTokens: 42}}
	g := NewGenerator(llm, 10)

	got := g.Answer(context.Background(), "what?", chunks(7))
	assert.Equal(t, "The answer.", got.Text)
	assert.Equal(t, "served-model", got.Model)
	assert.Equal(t, 42, got.TokensUsed)
	assert.False(t, got.Degraded)

	require.Len(t, llm.received, 2)
	assert.Equal(t, ai.RoleSystem, llm.received[0].Role)
	prompt := llm.received[1].Content
	assert.Contains(t, prompt, "text 5")
	assert.NotContains(t, prompt, "text 6")
	assert.Equal(t, 5, strings.Count(prompt, "Document: "))
}

func TestAnswer_ModelFallsBackToClientName(t *testing.T) {
	g := NewGenerator(&fakeLLM{reply: ai.Completion{Text: "ok"}}, 2)
	assert.Equal(t, "fake-model", g.Answer(context.Background(), "q", nil).Model)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("Is cataract covered?", []retrieval.Result{
		{DocumentFilename: "policy.pdf", Text: "Cataract surgery is covered."},
		{Text: "No name."},
	})

	assert.Contains(t, prompt, "Question: Is cataract covered?")
	assert.Contains(t, prompt, "Document: policy.pdf\nCataract surgery is covered.\n\nDocument: Unknown\nNo name.")
	assert.Contains(t, prompt, "say so clearly")
	assert.True(t, strings.HasSuffix(prompt, "Answer:"))
}
