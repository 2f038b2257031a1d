// Package retrieval finds the chunks most relevant to a question, first
// through the vector index and, when that yields nothing, by scoring stored
// chunks locally.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"docmind/internal/model"
	"docmind/internal/vectorindex"
)

const (
	SourceIndex = "index"
	SourceLocal = "local"
	SourceEmpty = "empty"

	EmptyStatePlaceholder = "placeholder"
	EmptyStateNone        = "none"

	placeholderScore    = 0.8
	placeholderFilename = "demo_policy_document.pdf"
)

type Result struct {
	ChunkID          uint    `json:"chunk_id"`
	Text             string  `json:"chunk_text"`
	DocumentID       uint    `json:"document_id"`
	Score            float64 `json:"score"`
	DocumentFilename string  `json:"document_filename"`
}

type Outcome struct {
	Results  []Result `json:"results"`
	Source   string   `json:"source"`
	Degraded bool     `json:"degraded"`
}

type ChunkStore interface {
	ViewsByIDs(ctx context.Context, ids []uint) ([]model.ChunkView, error)
	Candidates(ctx context.Context, documentIDs []uint) ([]model.ChunkView, error)
	Count(ctx context.Context) (int64, error)
}

type EmbeddingStore interface {
	UpsertBatch(ctx context.Context, rows []model.Embedding) error
}

type VectorIndex interface {
	Upsert(ctx context.Context, records []vectorindex.Record) bool
	Query(ctx context.Context, vector []float32, topK int, filter *vectorindex.Filter) []vectorindex.Match
}

type Options struct {
	// EmptyState is EmptyStatePlaceholder or EmptyStateNone.
	EmptyState string
	// PersistFallbackEmbeddings stores vectors computed during local scoring.
	PersistFallbackEmbeddings bool
}

type Orchestrator struct {
	embedder   Embedder
	index      VectorIndex
	chunks     ChunkStore
	embeddings EmbeddingStore
	scorer     *Scorer
	emptyState string
}

func NewOrchestrator(e Embedder, index VectorIndex, chunks ChunkStore, embeddings EmbeddingStore, opts Options) *Orchestrator {
	o := &Orchestrator{
		embedder:   e,
		index:      index,
		chunks:     chunks,
		embeddings: embeddings,
		emptyState: opts.EmptyState,
	}
	if o.emptyState == "" {
		o.emptyState = EmptyStatePlaceholder
	}
	var onComputed ComputedFunc
	if opts.PersistFallbackEmbeddings && embeddings != nil {
		onComputed = o.persistComputed
	}
	o.scorer = NewScorer(e, onComputed)
	return o
}

// Search returns up to topK results for query. Only storage failures are
// returned as errors.
func (o *Orchestrator) Search(ctx context.Context, query string, topK int, docFilter []uint) (Outcome, error) {
	if topK <= 0 {
		return Outcome{Results: []Result{}, Source: SourceLocal}, nil
	}

	res := o.embedder.Embed(ctx, []string{query})
	queryVec := res.Vectors[0]
	out := Outcome{Degraded: res.Degraded}

	matches := o.index.Query(ctx, queryVec, topK, &vectorindex.Filter{DocumentIDs: docFilter})
	if len(matches) > 0 {
		results, err := o.resolveMatches(ctx, matches, topK)
		if err != nil {
			return Outcome{}, err
		}
		if len(results) > 0 {
			out.Results = results
			out.Source = SourceIndex
			return out, nil
		}
		log.Warn().Int("matches", len(matches)).Msg("no index match resolved to a stored chunk, falling back to local scoring")
	}

	candidates, err := o.chunks.Candidates(ctx, docFilter)
	if err != nil {
		return Outcome{}, fmt.Errorf("load candidates failed: %w", err)
	}
	if len(candidates) == 0 {
		total, err := o.chunks.Count(ctx)
		if err != nil {
			return Outcome{}, fmt.Errorf("count chunks failed: %w", err)
		}
		if total == 0 {
			out.Results = o.emptyResults(query)
			out.Source = SourceEmpty
			return out, nil
		}
		out.Results = []Result{}
		out.Source = SourceLocal
		return out, nil
	}

	ranked := o.scorer.Rank(ctx, query, queryVec, candidates, docFilter)
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	out.Results = make([]Result, 0, len(ranked))
	for _, s := range ranked {
		out.Results = append(out.Results, resultFromView(s.View, s.Score))
	}
	out.Source = SourceLocal
	return out, nil
}

func (o *Orchestrator) resolveMatches(ctx context.Context, matches []vectorindex.Match, topK int) ([]Result, error) {
	scores := make(map[uint]float64, len(matches))
	ids := make([]uint, 0, len(matches))
	for _, m := range matches {
		id, err := vectorindex.ParseChunkKey(m.Key)
		if err != nil {
			log.Warn().Err(err).Str("key", m.Key).Msg("skipping index match")
			continue
		}
		if _, seen := scores[id]; seen {
			continue
		}
		scores[id] = float64(m.Score)
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	views, err := o.chunks.ViewsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve index matches failed: %w", err)
	}
	byID := make(map[uint]model.ChunkView, len(views))
	for _, v := range views {
		byID[v.ChunkID] = v
	}

	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		v, ok := byID[id]
		if !ok {
			log.Warn().Uint("chunk_id", id).Msg("index match has no stored chunk")
			continue
		}
		results = append(results, resultFromView(v, scores[id]))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (o *Orchestrator) emptyResults(query string) []Result {
	if o.emptyState == EmptyStateNone {
		return []Result{}
	}
	return []Result{{
		ChunkID:          1,
		DocumentID:       1,
		Score:            placeholderScore,
		DocumentFilename: placeholderFilename,
		Text: fmt.Sprintf("Sample document content related to: %s. No documents have been indexed yet; "+
			"upload a document to get answers grounded in real content.", query),
	}}
}

func (o *Orchestrator) persistComputed(ctx context.Context, views []model.ChunkView, vectors [][]float32, modelName string) {
	rows := make([]model.Embedding, 0, len(views))
	records := make([]vectorindex.Record, 0, len(views))
	for i, v := range views {
		key := vectorindex.ChunkKey(v.ChunkID)
		row := model.Embedding{
			ChunkID:   v.ChunkID,
			VectorKey: key,
			ModelName: modelName,
			Status:    model.EmbeddingStatusCompleted,
		}
		row.SetVector(vectors[i])
		rows = append(rows, row)
		records = append(records, vectorindex.Record{
			Key:      key,
			Vector:   vectors[i],
			Metadata: vectorindex.Metadata{DocumentID: v.DocumentID, ChunkIndex: v.ChunkIndex},
		})
	}

	o.index.Upsert(ctx, records)
	if err := o.embeddings.UpsertBatch(ctx, rows); err != nil {
		log.Error().Err(err).Int("chunks", len(rows)).Msg("persist fallback embeddings failed")
		return
	}
	log.Debug().Int("chunks", len(rows)).Msg("persisted fallback embeddings")
}

func resultFromView(v model.ChunkView, score float64) Result {
	return Result{
		ChunkID:          v.ChunkID,
		Text:             v.ChunkText,
		DocumentID:       v.DocumentID,
		Score:            score,
		DocumentFilename: v.Filename,
	}
}
