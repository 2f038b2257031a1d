package vectorindex

import (
	"context"
	"testing"
	"time"

	qdrant "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

type mockPointsClient struct {
	qdrant.PointsClient

	upsert   *qdrant.UpsertPoints
	search   *qdrant.SearchPoints
	deleted  *qdrant.DeletePoints
	result   []*qdrant.ScoredPoint
	lastMeta metadata.MD
}

func (m *mockPointsClient) Upsert(ctx context.Context, in *qdrant.UpsertPoints, _ ...grpc.CallOption) (*qdrant.PointsOperationResponse, error) {
	m.upsert = in
	m.lastMeta, _ = metadata.FromOutgoingContext(ctx)
	return &qdrant.PointsOperationResponse{}, nil
}

func (m *mockPointsClient) Search(_ context.Context, in *qdrant.SearchPoints, _ ...grpc.CallOption) (*qdrant.SearchResponse, error) {
	m.search = in
	return &qdrant.SearchResponse{Result: m.result}, nil
}

func (m *mockPointsClient) Delete(_ context.Context, in *qdrant.DeletePoints, _ ...grpc.CallOption) (*qdrant.PointsOperationResponse, error) {
	m.deleted = in
	return &qdrant.PointsOperationResponse{}, nil
}

type mockCollectionsClient struct {
	qdrant.CollectionsClient

	existing []string
	created  *qdrant.CreateCollection
}

func (m *mockCollectionsClient) List(_ context.Context, _ *qdrant.ListCollectionsRequest, _ ...grpc.CallOption) (*qdrant.ListCollectionsResponse, error) {
	resp := &qdrant.ListCollectionsResponse{}
	for _, name := range m.existing {
		resp.Collections = append(resp.Collections, &qdrant.CollectionDescription{Name: name})
	}
	return resp, nil
}

func (m *mockCollectionsClient) Create(_ context.Context, in *qdrant.CreateCollection, _ ...grpc.CallOption) (*qdrant.CollectionOperationResponse, error) {
	m.created = in
	return &qdrant.CollectionOperationResponse{Result: true}, nil
}

func TestQdrantIndex_EnsureCollection(t *testing.T) {
	collections := &mockCollectionsClient{}
	idx := newQdrantIndex(&mockPointsClient{}, collections, "chunks", "")

	require.NoError(t, idx.ensureCollection(context.Background(), 384))
	require.NotNil(t, collections.created)
	params := collections.created.GetVectorsConfig().GetParams()
	assert.Equal(t, uint64(384), params.GetSize())
	assert.Equal(t, qdrant.Distance_Cosine, params.GetDistance())

	collections = &mockCollectionsClient{existing: []string{"chunks"}}
	idx = newQdrantIndex(&mockPointsClient{}, collections, "chunks", "")
	require.NoError(t, idx.ensureCollection(context.Background(), 384))
	assert.Nil(t, collections.created)
}

func TestQdrantIndex_UpsertPayloadAndStableIDs(t *testing.T) {
	points := &mockPointsClient{}
	idx := newQdrantIndex(points, &mockCollectionsClient{}, "chunks", "secret")

	rec := Record{Key: "chunk-7", Vector: []float32{0.1, 0.2}, Metadata: Metadata{DocumentID: 3, ChunkIndex: 4}}
	require.NoError(t, idx.Upsert(context.Background(), []Record{rec}))

	require.Len(t, points.upsert.GetPoints(), 1)
	p := points.upsert.GetPoints()[0]
	assert.Equal(t, "chunk-7", p.GetPayload()[payloadKey].GetStringValue())
	assert.Equal(t, int64(3), p.GetPayload()[payloadDocumentID].GetIntegerValue())
	assert.Equal(t, int64(4), p.GetPayload()[payloadChunkIndex].GetIntegerValue())
	assert.Equal(t, pointID("chunk-7").GetUuid(), p.GetId().GetUuid())
	assert.NotEqual(t, pointID("chunk-8").GetUuid(), p.GetId().GetUuid())
	assert.Equal(t, []string{"secret"}, points.lastMeta.Get("api-key"))
}

func TestQdrantIndex_QueryMapsMatches(t *testing.T) {
	points := &mockPointsClient{result: []*qdrant.ScoredPoint{
		{
			Score: 0.91,
			Payload: map[string]*qdrant.Value{
				payloadKey:        {Kind: &qdrant.Value_StringValue{StringValue: "chunk-5"}},
				payloadDocumentID: {Kind: &qdrant.Value_IntegerValue{IntegerValue: 2}},
			},
		},
		{Score: 0.5, Payload: map[string]*qdrant.Value{}},
	}}
	idx := newQdrantIndex(points, &mockCollectionsClient{}, "chunks", "")

	matches, err := idx.Query(context.Background(), []float32{1, 0}, 3, &Filter{DocumentIDs: []uint{2, 9}})
	require.NoError(t, err)

	assert.Equal(t, []Match{{Key: "chunk-5", Score: 0.91, Metadata: Metadata{DocumentID: 2}}}, matches)
	assert.Equal(t, uint64(3), points.search.GetLimit())

	cond := points.search.GetFilter().GetMust()[0].GetField()
	assert.Equal(t, payloadDocumentID, cond.GetKey())
	assert.Equal(t, []int64{2, 9}, cond.GetMatch().GetIntegers().GetIntegers())
}

func TestQdrantIndex_QueryWithoutFilter(t *testing.T) {
	points := &mockPointsClient{}
	idx := newQdrantIndex(points, &mockCollectionsClient{}, "chunks", "")

	_, err := idx.Query(context.Background(), []float32{1, 0}, 3, &Filter{})
	require.NoError(t, err)
	assert.Nil(t, points.search.GetFilter())
}

func TestQdrantIndex_Delete(t *testing.T) {
	points := &mockPointsClient{}
	idx := newQdrantIndex(points, &mockCollectionsClient{}, "chunks", "")

	require.NoError(t, idx.Delete(context.Background(), []string{"chunk-1", "chunk-2"}))
	ids := points.deleted.GetPoints().GetPoints().GetIds()
	require.Len(t, ids, 2)
	assert.Equal(t, pointID("chunk-1").GetUuid(), ids[0].GetUuid())
}

// stalledPointsClient never answers until the call context ends.
type stalledPointsClient struct {
	qdrant.PointsClient
}

func (stalledPointsClient) Search(ctx context.Context, _ *qdrant.SearchPoints, _ ...grpc.CallOption) (*qdrant.SearchResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stalledPointsClient) Upsert(ctx context.Context, _ *qdrant.UpsertPoints, _ ...grpc.CallOption) (*qdrant.PointsOperationResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestQdrantIndex_StalledServerTimesOut(t *testing.T) {
	idx := newQdrantIndex(stalledPointsClient{}, &mockCollectionsClient{}, "chunks", "")
	idx.timeout = 50 * time.Millisecond
	c := NewClient(idx)

	start := time.Now()
	matches := c.Query(context.Background(), []float32{1, 0}, 3, nil)
	assert.Empty(t, matches)
	assert.Less(t, time.Since(start), 2*time.Second)

	start = time.Now()
	assert.False(t, c.Upsert(context.Background(), []Record{{Key: "chunk-1", Vector: []float32{1}}}))
	assert.Less(t, time.Since(start), 2*time.Second)
}
