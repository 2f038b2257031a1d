// Package answer turns a question and retrieved chunks into a grounded
// natural-language answer.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"docmind/internal/ai"
	"docmind/internal/retrieval"
)

const (
	MaxContextChunks = 5

	FallbackModel   = "fallback"
	FallbackMessage = "I'm currently unable to process your question due to API configuration. Please check the language model API key setup."
)

const systemPrompt = "You are an expert assistant that answers questions based on provided documents. " +
	"Use only the information from the documents supplied by the user to answer the question."

type Completer interface {
	Complete(ctx context.Context, messages []ai.ChatMessage) (ai.Completion, error)
	Model() string
}

type Answer struct {
	Text       string   `json:"answer"`
	Model      string   `json:"model"`
	TokensUsed int      `json:"tokens_used"`
	Degraded   bool     `json:"degraded"`
	Sources    []string `json:"sources"`
}

type Generator struct {
	llm       Completer
	maxChunks int
}

// NewGenerator builds a generator. llm may be nil, in which case every answer
// is the fallback message. maxChunks is clamped to [1, MaxContextChunks].
func NewGenerator(llm Completer, maxChunks int) *Generator {
	if maxChunks <= 0 || maxChunks > MaxContextChunks {
		maxChunks = MaxContextChunks
	}
	return &Generator{llm: llm, maxChunks: maxChunks}
}

func (g *Generator) Enabled() bool { return g.llm != nil }

func (g *Generator) Model() string {
	if g.llm == nil {
		return FallbackModel
	}
	return g.llm.Model()
}

func (g *Generator) Answer(ctx context.Context, question string, chunks []retrieval.Result) Answer {
	if len(chunks) > g.maxChunks {
		chunks = chunks[:g.maxChunks]
	}
	sources := uniqueSources(chunks)

	if g.llm == nil {
		return Answer{Text: FallbackMessage, Model: FallbackModel, Degraded: true, Sources: sources}
	}

	messages := []ai.ChatMessage{
		{Role: ai.RoleSystem, Content: systemPrompt},
		{Role: ai.RoleUser, Content: BuildPrompt(question, chunks)},
	}
	completion, err := g.llm.Complete(ctx, messages)
	if err != nil {
		log.Error().Err(err).Str("model", g.llm.Model()).Msg("answer generation failed")
		return Answer{
			Text:     fmt.Sprintf("I encountered an error while processing your question: %v", err),
			Model:    g.llm.Model(),
			Degraded: true,
			Sources:  sources,
		}
	}

	modelName := completion.Model
	if modelName == "" {
		modelName = g.llm.Model()
	}
	return Answer{
		Text:       strings.TrimSpace(completion.Text),
		Model:      modelName,
		TokensUsed: completion.TotalTokens,
		Sources:    sources,
	}
}

// BuildPrompt renders the user message for question over chunks.
func BuildPrompt(question string, chunks []retrieval.Result) string {
	blocks := make([]string, 0, len(chunks))
	for _, c := range chunks {
		name := c.DocumentFilename
		if name == "" {
			name = "Unknown"
		}
		blocks = append(blocks, "Document: "+name+"\n"+c.Text)
	}

	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nContext Documents:\n")
	b.WriteString(strings.Join(blocks, "\n\n"))
	b.WriteString("\n\nInstructions:\n")
	b.WriteString("1. Answer the question using only information from the provided context\n")
	b.WriteString("2. If the answer isn't in the context, say so clearly\n")
	b.WriteString("3. Cite which document(s) you're referencing\n")
	b.WriteString("4. Provide reasoning for your answer\n\n")
	b.WriteString("Answer:")
	return b.String()
}

func uniqueSources(chunks []retrieval.Result) []string {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c.DocumentFilename == "" {
			continue
		}
		if _, ok := seen[c.DocumentFilename]; ok {
			continue
		}
		seen[c.DocumentFilename] = struct{}{}
		out = append(out, c.DocumentFilename)
	}
	return out
}
