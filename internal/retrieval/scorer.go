package retrieval

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"docmind/internal/embedder"
	"docmind/internal/model"
)

const (
	exactMatchBonus   = 0.15
	wordOverlapWeight = 0.1
)

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {}, "you": {},
	"all": {}, "any": {}, "can": {}, "had": {}, "her": {}, "was": {}, "one": {},
	"our": {}, "out": {}, "has": {}, "have": {}, "his": {}, "how": {}, "its": {},
	"may": {}, "who": {}, "did": {}, "does": {}, "this": {}, "that": {}, "with": {},
	"from": {}, "they": {}, "them": {}, "then": {}, "than": {}, "what": {}, "when": {},
	"where": {}, "which": {}, "while": {}, "will": {}, "would": {}, "there": {},
	"their": {}, "these": {}, "those": {}, "been": {}, "were": {}, "into": {},
	"about": {}, "under": {}, "over": {}, "also": {}, "such": {}, "some": {},
	"only": {}, "other": {}, "your": {}, "should": {}, "could": {}, "being": {},
	"each": {}, "more": {}, "most": {}, "very": {}, "just": {}, "why": {},
}

// Embedder is the part of embedder.Service retrieval needs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) embedder.Result
}

type Scored struct {
	View     model.ChunkView
	Score    float64
	Semantic float64
}

// ComputedFunc receives vectors the scorer had to compute because the
// candidates had none stored. Only non-degraded batches are reported.
type ComputedFunc func(ctx context.Context, views []model.ChunkView, vectors [][]float32, modelName string)

type Scorer struct {
	embedder   Embedder
	onComputed ComputedFunc
}

func NewScorer(e Embedder, onComputed ComputedFunc) *Scorer {
	return &Scorer{embedder: e, onComputed: onComputed}
}

// Rank scores candidates against the query and returns them best first.
// Candidates without a stored vector are embedded in one batch.
func (s *Scorer) Rank(ctx context.Context, query string, queryVec []float32, candidates []model.ChunkView, docFilter []uint) []Scored {
	candidates = filterByDocument(candidates, docFilter)
	if len(candidates) == 0 {
		return []Scored{}
	}

	vectors := make([][]float32, len(candidates))
	var missing []int
	for i, c := range candidates {
		if v := c.Vector(); len(v) > 0 {
			vectors[i] = v
			continue
		}
		missing = append(missing, i)
	}

	if len(missing) > 0 && s.embedder != nil {
		texts := make([]string, len(missing))
		for j, i := range missing {
			texts[j] = candidates[i].ChunkText
		}
		res := s.embedder.Embed(ctx, texts)
		for j, i := range missing {
			vectors[i] = res.Vectors[j]
		}
		if !res.Degraded && s.onComputed != nil {
			views := make([]model.ChunkView, len(missing))
			for j, i := range missing {
				views[j] = candidates[i]
			}
			s.onComputed(ctx, views, res.Vectors, res.Model)
		}
	}

	scored := make([]Scored, len(candidates))
	for i, c := range candidates {
		semantic := Cosine(queryVec, vectors[i])
		scored[i] = Scored{
			View:     c,
			Semantic: semantic,
			Score:    semantic + KeywordBonus(query, c.ChunkText),
		}
	}

	sortScored(scored)
	return scored
}

// sortScored orders by combined score, then semantic score, then input order.
func sortScored(scored []Scored) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Semantic > scored[j].Semantic
	})
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// KeywordBonus rewards lexical overlap between query and text.
func KeywordBonus(query, text string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return 0
	}
	lowerText := strings.ToLower(text)
	if strings.Contains(lowerText, q) {
		return exactMatchBonus
	}

	words := keywords(q)
	if len(words) == 0 {
		return 0
	}
	hits := 0
	for _, w := range words {
		if strings.Contains(lowerText, w) {
			hits++
		}
	}
	return wordOverlapWeight * float64(hits) / float64(len(words))
}

func keywords(lowerQuery string) []string {
	fields := strings.FieldsFunc(lowerQuery, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, w := range fields {
		if len([]rune(w)) <= 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		out = append(out, w)
	}
	return out
}

func filterByDocument(views []model.ChunkView, docIDs []uint) []model.ChunkView {
	if len(docIDs) == 0 {
		return views
	}
	allowed := make(map[uint]struct{}, len(docIDs))
	for _, id := range docIDs {
		allowed[id] = struct{}{}
	}
	out := make([]model.ChunkView, 0, len(views))
	for _, v := range views {
		if _, ok := allowed[v.DocumentID]; ok {
			out = append(out, v)
		}
	}
	return out
}
