// Package vectorindex stores chunk embeddings in a nearest-neighbour index and
// queries them back. Backends report errors; Client turns every failure into
// "no result" so retrieval can fall through to local scoring.
package vectorindex

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"
)

type Metadata struct {
	DocumentID uint `json:"document_id"`
	ChunkIndex int  `json:"chunk_index"`
}

type Record struct {
	Key      string
	Vector   []float32
	Metadata Metadata
}

type Match struct {
	Key      string
	Score    float32
	Metadata Metadata
}

// Filter restricts a query to chunks of the given documents. A nil filter or
// an empty DocumentIDs slice matches everything.
type Filter struct {
	DocumentIDs []uint
}

func (f *Filter) empty() bool {
	return f == nil || len(f.DocumentIDs) == 0
}

type Index interface {
	Upsert(ctx context.Context, records []Record) error
	Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Match, error)
	Delete(ctx context.Context, keys []string) error
	Name() string
}

type Client struct {
	index Index
}

// NewClient wraps index. A nil index yields a disabled client that behaves
// like an unreachable service.
func NewClient(index Index) *Client {
	return &Client{index: index}
}

func (c *Client) Enabled() bool {
	return c != nil && c.index != nil
}

func (c *Client) Name() string {
	if !c.Enabled() {
		return "disabled"
	}
	return c.index.Name()
}

// Upsert writes the records that carry a non-zero vector and reports whether
// the index accepted all of them. Zero-vector records are skipped and do not
// affect the result; callers decide their status from the vector itself.
func (c *Client) Upsert(ctx context.Context, records []Record) bool {
	if !c.Enabled() {
		log.Warn().Int("records", len(records)).Msg("vector index not configured, skipping upsert")
		return false
	}

	usable := make([]Record, 0, len(records))
	for _, r := range records {
		if isZero(r.Vector) {
			log.Warn().Str("key", r.Key).Msg("skipping zero vector upsert")
			continue
		}
		usable = append(usable, r)
	}
	if len(usable) == 0 {
		return true
	}

	if err := c.index.Upsert(ctx, usable); err != nil {
		log.Error().Err(err).Str("index", c.index.Name()).Int("records", len(usable)).Msg("vector upsert failed")
		return false
	}
	return true
}

// Query returns up to topK matches ordered by descending score. Any failure
// yields an empty result.
func (c *Client) Query(ctx context.Context, vector []float32, topK int, filter *Filter) []Match {
	if !c.Enabled() {
		log.Debug().Msg("vector index not configured, returning no matches")
		return nil
	}
	if topK <= 0 || isZero(vector) {
		return nil
	}

	matches, err := c.index.Query(ctx, vector, topK, filter)
	if err != nil {
		log.Error().Err(err).Str("index", c.index.Name()).Msg("vector query failed")
		return nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

func (c *Client) Delete(ctx context.Context, keys []string) bool {
	if !c.Enabled() || len(keys) == 0 {
		return false
	}
	if err := c.index.Delete(ctx, keys); err != nil {
		log.Error().Err(err).Str("index", c.index.Name()).Int("keys", len(keys)).Msg("vector delete failed")
		return false
	}
	return true
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
