package vectorindex

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/google/uuid"
	qdrant "github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// pointNamespace derives stable Qdrant point UUIDs from chunk keys, since
// Qdrant only accepts integers or UUIDs as point IDs.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("docmind/chunk"))

const (
	payloadKey        = "key"
	payloadDocumentID = "document_id"
	payloadChunkIndex = "chunk_index"

	DefaultQdrantTimeout = 5 * time.Second
)

type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimension  int
	// Timeout bounds every gRPC call. Zero means DefaultQdrantTimeout.
	Timeout time.Duration
}

type QdrantIndex struct {
	conn        *grpc.ClientConn
	points      qdrant.PointsClient
	collections qdrant.CollectionsClient
	collection  string
	apiKey      string
	timeout     time.Duration
}

// NewQdrantIndex connects over gRPC and makes sure the collection exists with
// cosine distance and the configured dimension.
func NewQdrantIndex(ctx context.Context, cfg QdrantConfig) (*QdrantIndex, error) {
	creds := insecure.NewCredentials()
	if cfg.UseTLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("connect qdrant at %s failed: %w", addr, err)
	}

	idx := newQdrantIndex(qdrant.NewPointsClient(conn), qdrant.NewCollectionsClient(conn), cfg.Collection, cfg.APIKey)
	idx.conn = conn
	if cfg.Timeout > 0 {
		idx.timeout = cfg.Timeout
	}

	if err := idx.ensureCollection(ctx, cfg.Dimension); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return idx, nil
}

func newQdrantIndex(points qdrant.PointsClient, collections qdrant.CollectionsClient, collection, apiKey string) *QdrantIndex {
	return &QdrantIndex{
		points:      points,
		collections: collections,
		collection:  collection,
		apiKey:      apiKey,
		timeout:     DefaultQdrantTimeout,
	}
}

func (q *QdrantIndex) Name() string { return "qdrant" }

func (q *QdrantIndex) Close() error {
	if q.conn == nil {
		return nil
	}
	return q.conn.Close()
}

func (q *QdrantIndex) ensureCollection(ctx context.Context, dimension int) error {
	ctx, cancel := q.callContext(ctx)
	defer cancel()

	list, err := q.collections.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("list qdrant collections failed: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == q.collection {
			return nil
		}
	}

	if dimension <= 0 {
		return fmt.Errorf("qdrant collection %q needs a positive dimension", q.collection)
	}
	_, err = q.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(dimension),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create qdrant collection failed: %w", err)
	}
	log.Info().Str("collection", q.collection).Int("dimension", dimension).Msg("created qdrant collection")
	return nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, r := range records {
		points = append(points, &qdrant.PointStruct{
			Id: pointID(r.Key),
			Vectors: &qdrant.Vectors{
				VectorsOptions: &qdrant.Vectors_Vector{
					Vector: &qdrant.Vector{Data: r.Vector},
				},
			},
			Payload: map[string]*qdrant.Value{
				payloadKey:        {Kind: &qdrant.Value_StringValue{StringValue: r.Key}},
				payloadDocumentID: {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(r.Metadata.DocumentID)}},
				payloadChunkIndex: {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(r.Metadata.ChunkIndex)}},
			},
		})
	}

	ctx, cancel := q.callContext(ctx)
	defer cancel()

	wait := true
	_, err := q.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

func (q *QdrantIndex) Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Match, error) {
	ctx, cancel := q.callContext(ctx)
	defer cancel()

	resp, err := q.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: q.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		Filter:         qdrantFilter(filter),
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	matches := make([]Match, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		payload := point.GetPayload()
		key := payload[payloadKey].GetStringValue()
		if key == "" {
			log.Warn().Str("point", point.GetId().GetUuid()).Msg("qdrant point without key payload")
			continue
		}
		matches = append(matches, Match{
			Key:   key,
			Score: point.GetScore(),
			Metadata: Metadata{
				DocumentID: uint(payload[payloadDocumentID].GetIntegerValue()),
				ChunkIndex: int(payload[payloadChunkIndex].GetIntegerValue()),
			},
		})
	}
	return matches, nil
}

func (q *QdrantIndex) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	ids := make([]*qdrant.PointId, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, pointID(k))
	}

	ctx, cancel := q.callContext(ctx)
	defer cancel()

	wait := true
	_, err := q.points.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: ids},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant delete failed: %w", err)
	}
	return nil
}

// callContext bounds one call by the index timeout and attaches the API key.
func (q *QdrantIndex) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	return q.withAuth(ctx), cancel
}

func (q *QdrantIndex) withAuth(ctx context.Context) context.Context {
	if q.apiKey == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "api-key", q.apiKey)
}

func pointID(key string) *qdrant.PointId {
	return &qdrant.PointId{
		PointIdOptions: &qdrant.PointId_Uuid{
			Uuid: uuid.NewSHA1(pointNamespace, []byte(key)).String(),
		},
	}
}

func qdrantFilter(filter *Filter) *qdrant.Filter {
	if filter.empty() {
		return nil
	}
	ids := make([]int64, 0, len(filter.DocumentIDs))
	for _, id := range filter.DocumentIDs {
		ids = append(ids, int64(id))
	}
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key: payloadDocumentID,
						Match: &qdrant.Match{
							MatchValue: &qdrant.Match_Integers{
								Integers: &qdrant.RepeatedIntegers{Integers: ids},
							},
						},
					},
				},
			},
		},
	}
}
