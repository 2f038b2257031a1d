package vectorindex

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type mockIndex struct {
	upserted  []Record
	upsertErr error
	matches   []Match
	queryErr  error
	queried   bool
	deleted   []string
}

func (m *mockIndex) Name() string { return "mock" }

func (m *mockIndex) Upsert(_ context.Context, records []Record) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserted = append(m.upserted, records...)
	return nil
}

func (m *mockIndex) Query(_ context.Context, _ []float32, _ int, _ *Filter) ([]Match, error) {
	m.queried = true
	return m.matches, m.queryErr
}

func (m *mockIndex) Delete(_ context.Context, keys []string) error {
	m.deleted = append(m.deleted, keys...)
	return nil
}

func TestClient_Disabled(t *testing.T) {
	c := NewClient(nil)
	ctx := context.Background()

	assert.False(t, c.Enabled())
	assert.Equal(t, "disabled", c.Name())
	assert.False(t, c.Upsert(ctx, []Record{{Key: "chunk-1", Vector: []float32{1}}}))
	assert.Empty(t, c.Query(ctx, []float32{1, 0}, 5, nil))
	assert.False(t, c.Delete(ctx, []string{"chunk-1"}))
}

func TestClient_QueryErrorIsEmpty(t *testing.T) {
	idx := &mockIndex{queryErr: errors.New("connection refused")}
	c := NewClient(idx)

	assert.Empty(t, c.Query(context.Background(), []float32{1, 0}, 5, nil))
	assert.True(t, idx.queried)
}

func TestClient_QuerySortsAndTruncates(t *testing.T) {
	idx := &mockIndex{matches: []Match{
		{Key: "chunk-1", Score: 0.2},
		{Key: "chunk-2", Score: 0.9},
		{Key: "chunk-3", Score: 0.5},
	}}
	c := NewClient(idx)

	got := c.Query(context.Background(), []float32{1, 0}, 2, nil)
	assert.Equal(t, []Match{{Key: "chunk-2", Score: 0.9}, {Key: "chunk-3", Score: 0.5}}, got)
}

func TestClient_ZeroQueryVectorSkipsIndex(t *testing.T) {
	idx := &mockIndex{matches: []Match{{Key: "chunk-1", Score: 1}}}
	c := NewClient(idx)

	assert.Empty(t, c.Query(context.Background(), []float32{0, 0, 0}, 3, nil))
	assert.False(t, idx.queried)
}

func TestClient_UpsertSkipsZeroVectors(t *testing.T) {
	idx := &mockIndex{}
	c := NewClient(idx)

	ok := c.Upsert(context.Background(), []Record{
		{Key: "chunk-1", Vector: []float32{0.1, 0.2}},
		{Key: "chunk-2", Vector: []float32{0, 0}},
	})

	assert.True(t, ok)
	assert.Len(t, idx.upserted, 1)
	assert.Equal(t, "chunk-1", idx.upserted[0].Key)

	idx = &mockIndex{}
	c = NewClient(idx)
	assert.True(t, c.Upsert(context.Background(), []Record{{Key: "chunk-3", Vector: []float32{0}}}))
	assert.Empty(t, idx.upserted)
}

func TestClient_UpsertReportsFailure(t *testing.T) {
	c := NewClient(&mockIndex{upsertErr: errors.New("unavailable")})
	assert.False(t, c.Upsert(context.Background(), []Record{{Key: "chunk-1", Vector: []float32{1}}}))

	c = NewClient(&mockIndex{})
	assert.True(t, c.Upsert(context.Background(), []Record{{Key: "chunk-1", Vector: []float32{1}}}))
}
