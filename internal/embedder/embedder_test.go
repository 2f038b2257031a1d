package embedder

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockBackend struct {
	calls   [][]string
	failOn  int // 1-based call number that fails; 0 never
	short   bool
	counter int
}

func (m *mockBackend) Model() string { return "mock" }

func (m *mockBackend) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.counter++
	m.calls = append(m.calls, append([]string(nil), texts...))
	if m.counter == m.failOn {
		return nil, errors.New("model crashed")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	if m.short {
		return out[:len(out)-1], nil
	}
	return out, nil
}

type mapCache struct {
	data map[string][]float32
	sets int
}

func (c *mapCache) Get(_ context.Context, model, text string) ([]float32, bool) {
	v, ok := c.data[model+"|"+text]
	return v, ok
}

func (c *mapCache) Set(_ context.Context, model, text string, vec []float32) {
	c.sets++
	c.data[model+"|"+text] = vec
}

func TestEmbed_NoBackendIsDegraded(t *testing.T) {
	s := New(nil, WithDimension(8))

	res := s.Embed(context.Background(), []string{"a", "b"})
	assert.True(t, res.Degraded)
	assert.Equal(t, "none", res.Model)
	require.Len(t, res.Vectors, 2)
	for _, v := range res.Vectors {
		assert.Equal(t, make([]float32, 8), v)
	}
}

func TestEmbed_PreservesOrderAcrossBatches(t *testing.T) {
	backend := &mockBackend{}
	s := New(backend, WithBatchSize(2))

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	res := s.Embed(context.Background(), texts)

	assert.False(t, res.Degraded)
	assert.Len(t, backend.calls, 3)
	for i, text := range texts {
		assert.Equal(t, float32(len(text)), res.Vectors[i][0])
	}
}

func TestEmbed_FailedBatchOnlyAffectsItself(t *testing.T) {
	backend := &mockBackend{failOn: 2}
	s := New(backend, WithBatchSize(2), WithDimension(3))

	res := s.Embed(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})

	assert.True(t, res.Degraded)
	assert.Equal(t, []float32{1, 1}, res.Vectors[0])
	assert.Equal(t, []float32{2, 1}, res.Vectors[1])
	assert.Equal(t, []float32{0, 0, 0}, res.Vectors[2])
	assert.Equal(t, []float32{0, 0, 0}, res.Vectors[3])
	assert.Equal(t, []float32{5, 1}, res.Vectors[4])
}

func TestEmbed_WrongCountIsDegraded(t *testing.T) {
	s := New(&mockBackend{short: true}, WithDimension(2))

	res := s.Embed(context.Background(), []string{"a", "b"})
	assert.True(t, res.Degraded)
	assert.Equal(t, [][]float32{{0, 0}, {0, 0}}, res.Vectors)
}

func TestEmbed_UsesCache(t *testing.T) {
	backend := &mockBackend{}
	cache := &mapCache{data: map[string][]float32{"mock|hit": {9, 9}}}
	s := New(backend, WithCache(cache))

	res := s.Embed(context.Background(), []string{"hit", "miss"})

	assert.Equal(t, []float32{9, 9}, res.Vectors[0])
	assert.Equal(t, []float32{4, 1}, res.Vectors[1])
	require.Len(t, backend.calls, 1)
	assert.Equal(t, []string{"miss"}, backend.calls[0])
	assert.Equal(t, 1, cache.sets)
}

func TestEmbed_DegradedVectorsAreNotCached(t *testing.T) {
	cache := &mapCache{data: map[string][]float32{}}
	s := New(&mockBackend{failOn: 1}, WithCache(cache))

	res := s.Embed(context.Background(), []string{"x"})
	assert.True(t, res.Degraded)
	assert.Zero(t, cache.sets)
}

func TestHashBackend(t *testing.T) {
	h := NewHashBackend(64)
	vecs, err := h.EmbedBatch(context.Background(), []string{"Grace period for premium", "grace PERIOD for premium!", ""})
	require.NoError(t, err)

	assert.Len(t, vecs[0], 64)
	assert.Equal(t, vecs[0], vecs[1], "case and punctuation are ignored")
	assert.Equal(t, make([]float32, 64), vecs[2])

	var norm float32
	for _, v := range vecs[0] {
		norm += v * v
	}
	assert.InDelta(t, 1.0, norm, 1e-5)

	other, _ := h.EmbedBatch(context.Background(), []string{strings.Repeat("unrelated words ", 3)})
	assert.NotEqual(t, vecs[0], other[0])
}
