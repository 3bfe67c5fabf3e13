// Package qdrant implements vector.Index on a Qdrant collection over gRPC.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/efebarandurmaz/agni/internal/vector"
)

// Payload keys.
const (
	keyContent  = "content"
	keyDocID    = "doc_id"
	keySeq      = "seq"
	keyMetadata = "metadata"
)

// pointNamespace seeds the UUIDv5 point ids derived from document ids.
var pointNamespace = uuid.MustParse("6f1d2c4e-2b8a-5c33-9a57-61676e690000")

// Config selects the collection.
type Config struct {
	Host       string
	Port       int
	Collection string
	Dimension  int
}

// Index stores documents as points in one cosine-distance collection.
//
// Qdrant orders equal scores arbitrarily, so results are re-sorted by
// (distance, seq). Ties that straddle the k boundary can still differ from
// the in-process backends.
type Index struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	dim         int
	logger      *slog.Logger

	// mu serialises writers in this process; Count always asks the server.
	mu sync.Mutex
}

// New connects and creates the collection when missing.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	idx := &Index{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  cfg.Collection,
		dim:         cfg.Dimension,
		logger:      logger.With("component", "qdrant", "collection", cfg.Collection),
	}
	if err := idx.ensureCollection(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return idx, nil
}

func (q *Index) ensureCollection(ctx context.Context) error {
	resp, err := q.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: q.collection})
	if err != nil {
		return fmt.Errorf("qdrant collection exists: %w", err)
	}
	if resp.GetResult().GetExists() {
		return nil
	}
	return q.createCollection(ctx)
}

func (q *Index) createCollection(ctx context.Context) error {
	_, err := q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{Params: &pb.VectorParams{
			Size:     uint64(q.dim),
			Distance: pb.Distance_Cosine,
		}}},
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection: %w", err)
	}
	q.logger.Info("created collection", "dimension", q.dim)
	return nil
}

func (q *Index) countPoints(ctx context.Context) (int, error) {
	exact := true
	resp, err := q.points.Count(ctx, &pb.CountPoints{CollectionName: q.collection, Exact: &exact})
	if err != nil {
		return 0, fmt.Errorf("qdrant count: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// PointID maps a document id to its stable point UUID.
func PointID(docID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(docID)).String()
}

func (q *Index) Dimension() int { return q.dim }

func (q *Index) Upsert(ctx context.Context, ids, texts []string, embeddings [][]float32, metadatas []map[string]string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := vector.CheckUpsert(q.dim, ids, texts, embeddings, metadatas, nil); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := q.checkExisting(ctx, ids); err != nil {
		return err
	}
	base, err := q.countPoints(ctx)
	if err != nil {
		return err
	}

	points := make([]*pb.PointStruct, len(ids))
	for i, id := range ids {
		meta := make(map[string]*pb.Value, len(metadatas[i]))
		for k, v := range metadatas[i] {
			meta[k] = pb.NewValueString(v)
		}
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(id)}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: embeddings[i]}}},
			Payload: map[string]*pb.Value{
				keyContent:  pb.NewValueString(texts[i]),
				keyDocID:    pb.NewValueString(id),
				keySeq:      pb.NewValueInt(int64(base + i)),
				keyMetadata: {Kind: &pb.Value_StructValue{StructValue: &pb.Struct{Fields: meta}}},
			},
		}
	}

	wait := true
	if _, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

func (q *Index) checkExisting(ctx context.Context, ids []string) error {
	pids := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		pids[i] = &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(id)}}
	}
	resp, err := q.points.Get(ctx, &pb.GetPoints{
		CollectionName: q.collection,
		Ids:            pids,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return fmt.Errorf("qdrant get: %w", err)
	}
	if found := resp.GetResult(); len(found) > 0 {
		return fmt.Errorf("%w: %q already indexed", vector.ErrDuplicateID, found[0].GetPayload()[keyDocID].GetStringValue())
	}
	return nil
}

func (q *Index) Query(ctx context.Context, embedding []float32, k int) ([]vector.SearchResult, error) {
	n, err := q.countPoints(ctx)
	if err != nil {
		return nil, err
	}
	if err := vector.CheckQuery(q.dim, n, embedding, k); err != nil {
		return nil, err
	}

	resp, err := q.points.Search(ctx, &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         embedding,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	type ranked struct {
		res vector.SearchResult
		seq int64
	}
	hits := make([]ranked, len(resp.GetResult()))
	for i, pt := range resp.GetResult() {
		payload := pt.GetPayload()
		meta := make(map[string]string)
		for k, v := range payload[keyMetadata].GetStructValue().GetFields() {
			meta[k] = v.GetStringValue()
		}
		dist := 1 - pt.GetScore()
		if dist < 0 {
			dist = 0
		}
		hits[i] = ranked{
			res: vector.SearchResult{
				ID:       payload[keyDocID].GetStringValue(),
				Document: payload[keyContent].GetStringValue(),
				Distance: dist,
				Metadata: meta,
			},
			seq: payload[keySeq].GetIntegerValue(),
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].res.Distance != hits[j].res.Distance {
			return hits[i].res.Distance < hits[j].res.Distance
		}
		return hits[i].seq < hits[j].seq
	})

	out := make([]vector.SearchResult, len(hits))
	for i, h := range hits {
		out[i] = h.res
	}
	return out, nil
}

// Count asks Qdrant for the exact point count, so it reflects writes made
// by other processes.
func (q *Index) Count(ctx context.Context) (int, error) {
	return q.countPoints(ctx)
}

// Clear drops and recreates the collection.
func (q *Index) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, err := q.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: q.collection}); err != nil {
		return fmt.Errorf("qdrant delete collection: %w", err)
	}
	if err := q.createCollection(ctx); err != nil {
		return err
	}
	return nil
}

func (q *Index) Close() error {
	return q.conn.Close()
}

var _ vector.Index = (*Index)(nil)
