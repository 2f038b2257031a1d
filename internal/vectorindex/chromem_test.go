package vectorindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChromem(t *testing.T) *ChromemIndex {
	t.Helper()
	idx, err := NewChromemIndex("", false, "test")
	require.NoError(t, err)
	return idx
}

func TestChromemIndex_EmptyCollection(t *testing.T) {
	idx := newTestChromem(t)

	matches, err := idx.Query(context.Background(), []float32{1, 0, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestChromemIndex_UpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	idx := newTestChromem(t)

	require.NoError(t, idx.Upsert(ctx, []Record{
		{Key: "chunk-1", Vector: []float32{1, 0, 0}, Metadata: Metadata{DocumentID: 1, ChunkIndex: 0}},
		{Key: "chunk-2", Vector: []float32{0, 0, 1}, Metadata: Metadata{DocumentID: 2, ChunkIndex: 0}},
	}))

	matches, err := idx.Query(ctx, []float32{1, 0, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "chunk-1", matches[0].Key)

	// Move chunk-1 into the neighbourhood of the y axis.
	require.NoError(t, idx.Upsert(ctx, []Record{
		{Key: "chunk-1", Vector: []float32{0, 1, 0}, Metadata: Metadata{DocumentID: 1, ChunkIndex: 0}},
	}))

	matches, err = idx.Query(ctx, []float32{0, 1, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "chunk-1", matches[0].Key)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-5)

	matches, err = idx.Query(ctx, []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	for _, m := range matches {
		assert.Less(t, m.Score, float32(0.5))
	}
}

func TestChromemIndex_FilterAndMetadata(t *testing.T) {
	ctx := context.Background()
	idx := newTestChromem(t)

	require.NoError(t, idx.Upsert(ctx, []Record{
		{Key: "chunk-1", Vector: []float32{1, 0.1, 0}, Metadata: Metadata{DocumentID: 1, ChunkIndex: 0}},
		{Key: "chunk-2", Vector: []float32{1, 0.2, 0}, Metadata: Metadata{DocumentID: 2, ChunkIndex: 3}},
		{Key: "chunk-3", Vector: []float32{1, 0.3, 0}, Metadata: Metadata{DocumentID: 3, ChunkIndex: 1}},
	}))

	matches, err := idx.Query(ctx, []float32{1, 0, 0}, 5, &Filter{DocumentIDs: []uint{2}})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "chunk-2", matches[0].Key)
	assert.Equal(t, Metadata{DocumentID: 2, ChunkIndex: 3}, matches[0].Metadata)

	matches, err = idx.Query(ctx, []float32{1, 0, 0}, 5, &Filter{DocumentIDs: []uint{1, 3}})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "chunk-1", matches[0].Key)
	assert.Equal(t, "chunk-3", matches[1].Key)
}

func TestChromemIndex_Delete(t *testing.T) {
	ctx := context.Background()
	idx := newTestChromem(t)

	require.NoError(t, idx.Upsert(ctx, []Record{
		{Key: "chunk-1", Vector: []float32{1, 0}},
		{Key: "chunk-2", Vector: []float32{0, 1}},
	}))
	require.NoError(t, idx.Delete(ctx, []string{"chunk-1"}))

	matches, err := idx.Query(ctx, []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "chunk-2", matches[0].Key)
}
