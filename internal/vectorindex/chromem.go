package vectorindex

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
)

// ChromemIndex keeps vectors in an embedded chromem-go collection, either in
// memory or persisted under a directory.
type ChromemIndex struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewChromemIndex opens the collection. An empty path keeps everything in memory.
func NewChromemIndex(path string, compress bool, collection string) (*ChromemIndex, error) {
	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, compress)
		if err != nil {
			return nil, fmt.Errorf("open chromem db failed: %w", err)
		}
	}

	// Vectors are always supplied by the caller, so no embedding func is needed.
	c, err := db.GetOrCreateCollection(collection, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get or create chromem collection failed: %w", err)
	}
	return &ChromemIndex{db: db, collection: c}, nil
}

func (i *ChromemIndex) Name() string { return "chromem" }

func (i *ChromemIndex) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]chromem.Document, 0, len(records))
	for _, r := range records {
		docs = append(docs, chromem.Document{
			ID:        r.Key,
			Embedding: r.Vector,
			Metadata: map[string]string{
				"document_id": strconv.FormatUint(uint64(r.Metadata.DocumentID), 10),
				"chunk_index": strconv.Itoa(r.Metadata.ChunkIndex),
			},
		})
	}
	if err := i.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("chromem add documents failed: %w", err)
	}
	return nil
}

func (i *ChromemIndex) Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Match, error) {
	count := i.collection.Count()
	if count == 0 {
		return nil, nil
	}

	opts := chromem.QueryOptions{
		QueryEmbedding: vector,
		NResults:       min(topK, count),
	}

	// chromem only supports equality filters, so several documents are
	// filtered after scoring the whole collection.
	var allowed map[uint]struct{}
	switch {
	case filter.empty():
	case len(filter.DocumentIDs) == 1:
		opts.Where = map[string]string{
			"document_id": strconv.FormatUint(uint64(filter.DocumentIDs[0]), 10),
		}
	default:
		opts.NResults = count
		allowed = make(map[uint]struct{}, len(filter.DocumentIDs))
		for _, id := range filter.DocumentIDs {
			allowed[id] = struct{}{}
		}
	}

	results, err := i.collection.QueryWithOptions(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("chromem query failed: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, res := range results {
		meta := parseChromemMetadata(res.Metadata)
		if allowed != nil {
			if _, ok := allowed[meta.DocumentID]; !ok {
				continue
			}
		}
		matches = append(matches, Match{Key: res.ID, Score: res.Similarity, Metadata: meta})
		if len(matches) == topK {
			break
		}
	}
	return matches, nil
}

func (i *ChromemIndex) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := i.collection.Delete(ctx, nil, nil, keys...); err != nil {
		return fmt.Errorf("chromem delete failed: %w", err)
	}
	return nil
}

func parseChromemMetadata(raw map[string]string) Metadata {
	var meta Metadata
	if v, err := strconv.ParseUint(raw["document_id"], 10, 64); err == nil {
		meta.DocumentID = uint(v)
	}
	if v, err := strconv.Atoi(raw["chunk_index"]); err == nil {
		meta.ChunkIndex = v
	}
	return meta
}
