package qdrantDB

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/akolanti/GoRAG/internal/config"
	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/akolanti/GoRAG/internal/metrics"
	"github.com/akolanti/GoRAG/internal/rag/vectorDB"
	"github.com/akolanti/GoRAG/pkg/logger_i"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const Name = "qdrant"

// payload keys written next to the caller's metadata
const (
	keyChunkId   = "chunk_id"
	keyInsertSeq = "insert_seq"
)

// Qdrant cuts ties at the limit arbitrarily, so we ask for a few extra points, widen the search
// while the tie at the k-th score reaches the limit, and rank locally.
const queryOverfetch = 2

var logger = logger_i.NewLogger("qdrant")

// qdrantAPI is the slice of *qdrant.Client this store uses.
type qdrantAPI interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	GetCollectionInfo(ctx context.Context, collectionName string) (*qdrant.CollectionInfo, error)
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Get(ctx context.Context, request *qdrant.GetPoints) ([]*qdrant.RetrievedPoint, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	DeleteCollection(ctx context.Context, collectionName string) error
	Close() error
}

type collectionInfo struct {
	size   int
	metric ragModel.DistanceMetric
}

type Store struct {
	client qdrantAPI

	mu          sync.Mutex
	collections map[string]collectionInfo
	lastSeq     int64
}

var _ vectorDB.DataProcessor = (*Store)(nil)

type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

func NewQdrantStore(cfg Config) (*Store, error) {
	if cfg.Host == "" {
		cfg.Host = config.QdrantHost
	}
	if cfg.Port == 0 {
		cfg.Port = config.QdrantGrpcPort
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		APIKey:   cfg.APIKey,
		UseTLS:   cfg.UseTLS,
		PoolSize: uint(config.QdrantPoolSize),
	})
	if err != nil {
		return nil, ragModel.Opaque(ragModel.ErrVectorStore, "connect qdrant", err)
	}
	logger.Info("connected", "host", cfg.Host, "port", cfg.Port)
	return newStore(client), nil
}

func newStore(client qdrantAPI) *Store {
	return &Store{client: client, collections: make(map[string]collectionInfo)}
}

func (s *Store) Name() string { return Name }

func (s *Store) Close() error {
	logger.Info("Shutting down Qdrant")
	return s.client.Close()
}

func (s *Store) EnsureCollection(ctx context.Context, projectId string, embeddingSize int, metric ragModel.DistanceMetric) error {
	const op = "ensure collection"
	if embeddingSize <= 0 {
		return ragModel.NewError(ragModel.ErrVectorStore, op, "embedding size %d must be positive", embeddingSize)
	}
	distance, ok := toDistance(metric)
	if !ok {
		return ragModel.NewError(ragModel.ErrVectorStore, op, "unknown distance metric %q", metric)
	}

	name := vectorDB.CollectionName(projectId)
	info, err := s.describe(ctx, op, name)
	switch {
	case err == nil:
		return vectorDB.CheckDimension(op, embeddingSize, info.size)
	case !errors.Is(err, ragModel.ErrCollectionNotFound):
		return err
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(embeddingSize),
			Distance: distance,
		}),
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			// lost a race with another ingestion, the winner's size is what counts
			s.forget(name)
			return s.EnsureCollection(ctx, projectId, embeddingSize, metric)
		}
		return ragModel.Opaque(ragModel.ErrVectorStore, op, err)
	}

	s.remember(name, collectionInfo{size: embeddingSize, metric: metric})
	logger.FromContext(ctx).Info("collection created", "collection", name, "size", embeddingSize, "metric", metric)
	return nil
}

func (s *Store) Upsert(ctx context.Context, projectId string, records []ragModel.VectorRecord) error {
	const op = "upsert"
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("vector_upsert_qdrant", time.Since(start)) }()

	name := vectorDB.CollectionName(projectId)
	info, err := s.describe(ctx, op, name)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	seqs, err := s.insertSeqs(ctx, name, records)
	if err != nil {
		return err
	}

	base := s.reserveSeqs(len(records))
	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		if r.ChunkId == "" {
			return ragModel.NewError(ragModel.ErrVectorStore, op, "record without chunk id")
		}
		if err := vectorDB.CheckDimension(op, len(r.Vector), info.size); err != nil {
			return err
		}
		payload := sanitize(r.Metadata)
		payload[keyChunkId] = r.ChunkId
		seq, ok := seqs[r.ChunkId]
		if !ok {
			seq = base + int64(i)
		}
		payload[keyInsertSeq] = seq

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(r.ChunkId),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return s.classify(op, name, err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, projectId string, vector []float32, topK int) ([]ragModel.SearchHit, error) {
	const op = "query"
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("vector_query_qdrant", time.Since(start)) }()

	if err := vectorDB.CheckTopK(op, topK); err != nil {
		return nil, err
	}
	name := vectorDB.CollectionName(projectId)
	info, err := s.describe(ctx, op, name)
	if err != nil {
		return nil, err
	}
	if err := vectorDB.CheckDimension(op, len(vector), info.size); err != nil {
		return nil, err
	}

	result, err := s.search(ctx, name, vector, topK)
	if err != nil {
		return nil, s.classify(op, name, err)
	}

	ranked := make([]vectorDB.RankedHit, 0, len(result))
	for _, point := range result {
		metadata := make(map[string]any, len(point.GetPayload()))
		for k, v := range point.GetPayload() {
			metadata[k] = fromValue(v)
		}
		seq, _ := metadata[keyInsertSeq].(int64)
		delete(metadata, keyInsertSeq)

		chunkId, _ := metadata[keyChunkId].(string)
		if chunkId == "" {
			chunkId = point.GetId().GetUuid()
		}
		ranked = append(ranked, vectorDB.RankedHit{
			Hit: ragModel.SearchHit{ChunkId: chunkId, Score: point.GetScore(), Metadata: metadata},
			Seq: seq,
		})
	}
	logger.FromContext(ctx).Debug("query done", "collection", name, "hits", len(ranked))
	return vectorDB.Rank(ranked, info.metric, topK), nil
}

// search returns at least every point that ranks within topK, including the whole tie group at
// the k-th score, in Qdrant's best-first order.
func (s *Store) search(ctx context.Context, name string, vector []float32, topK int) ([]*qdrant.ScoredPoint, error) {
	req := &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(vector...),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	limit := uint64(topK * queryOverfetch)
	for {
		req.Limit = qdrant.PtrOf(limit)
		result, err := s.client.Query(ctx, req)
		if err != nil {
			return nil, err
		}
		if uint64(len(result)) < limit {
			return result, nil
		}
		cutoff := result[topK-1].GetScore()
		if result[len(result)-1].GetScore() != cutoff {
			return result, nil
		}
		// only the tie group and better can matter from here on
		req.ScoreThreshold = qdrant.PtrOf(cutoff)
		limit *= 2
	}
}

// insertSeqs reads the insertion sequence already stored for the records' ids so a re-upsert keeps its place.
func (s *Store) insertSeqs(ctx context.Context, name string, records []ragModel.VectorRecord) (map[string]int64, error) {
	ids := make([]*qdrant.PointId, 0, len(records))
	for _, r := range records {
		if r.ChunkId != "" {
			ids = append(ids, qdrant.NewID(r.ChunkId))
		}
	}
	existing, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: name,
		Ids:            ids,
		WithPayload:    qdrant.NewWithPayloadInclude(keyChunkId, keyInsertSeq),
	})
	if err != nil {
		return nil, s.classify("upsert", name, err)
	}
	seqs := make(map[string]int64, len(existing))
	for _, p := range existing {
		seqValue, ok := p.GetPayload()[keyInsertSeq]
		if !ok {
			continue
		}
		seq, _ := fromValue(seqValue).(int64)
		chunkId, _ := fromValue(p.GetPayload()[keyChunkId]).(string)
		if chunkId == "" {
			chunkId = p.GetId().GetUuid()
		}
		seqs[chunkId] = seq
	}
	return seqs, nil
}

func (s *Store) Delete(ctx context.Context, projectId string, chunkIds []string) error {
	if len(chunkIds) == 0 {
		return nil
	}
	name := vectorDB.CollectionName(projectId)
	ids := make([]*qdrant.PointId, len(chunkIds))
	for i, id := range chunkIds {
		ids[i] = qdrant.NewID(id)
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: name,
		Points:         qdrant.NewPointsSelector(ids...),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil && status.Code(err) != codes.NotFound {
		return s.classify("delete points", name, err)
	}
	return nil
}

func (s *Store) DeleteCollection(ctx context.Context, projectId string) error {
	name := vectorDB.CollectionName(projectId)
	s.forget(name)

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return ragModel.Opaque(ragModel.ErrVectorStore, "delete collection", err)
	}
	if !exists {
		return nil
	}
	if err := s.client.DeleteCollection(ctx, name); err != nil && status.Code(err) != codes.NotFound {
		return ragModel.Opaque(ragModel.ErrVectorStore, "delete collection", err)
	}
	return nil
}

// describe returns the dimension and metric of an existing collection, asking Qdrant only once per collection.
func (s *Store) describe(ctx context.Context, op, name string) (collectionInfo, error) {
	s.mu.Lock()
	info, ok := s.collections[name]
	s.mu.Unlock()
	if ok {
		return info, nil
	}

	resp, err := s.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return collectionInfo{}, s.classify(op, name, err)
	}
	params := resp.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return collectionInfo{}, ragModel.NewError(ragModel.ErrVectorStore, op, "collection %s has no single vector config", name)
	}
	info = collectionInfo{size: int(params.GetSize()), metric: fromDistance(params.GetDistance())}
	s.remember(name, info)
	return info, nil
}

// reserveSeqs hands out n increasing sequence numbers, wall clock based so they keep growing across restarts.
func (s *Store) reserveSeqs(n int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	base := max(time.Now().UnixNano(), s.lastSeq+1)
	s.lastSeq = base + int64(n) - 1
	return base
}

func (s *Store) remember(name string, info collectionInfo) {
	s.mu.Lock()
	s.collections[name] = info
	s.mu.Unlock()
}

func (s *Store) forget(name string) {
	s.mu.Lock()
	delete(s.collections, name)
	s.mu.Unlock()
}

func (s *Store) classify(op, name string, err error) error {
	if status.Code(err) == codes.NotFound {
		s.forget(name)
		return ragModel.NewError(ragModel.ErrCollectionNotFound, op, "collection %s does not exist", name)
	}
	if op == "query" {
		return ragModel.Opaque(ragModel.ErrVectorSearch, op, err)
	}
	return ragModel.Opaque(ragModel.ErrVectorStore, op, err)
}

func toDistance(metric ragModel.DistanceMetric) (qdrant.Distance, bool) {
	switch metric {
	case ragModel.DistanceCosine:
		return qdrant.Distance_Cosine, true
	case ragModel.DistanceDot:
		return qdrant.Distance_Dot, true
	case ragModel.DistanceEuclid:
		return qdrant.Distance_Euclid, true
	}
	return qdrant.Distance_UnknownDistance, false
}

func fromDistance(d qdrant.Distance) ragModel.DistanceMetric {
	switch d {
	case qdrant.Distance_Dot:
		return ragModel.DistanceDot
	case qdrant.Distance_Euclid:
		return ragModel.DistanceEuclid
	}
	return ragModel.DistanceCosine
}

// sanitize keeps the metadata values Qdrant's value map can encode and stringifies the rest.
func sanitize(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata)+2)
	for k, v := range metadata {
		switch t := v.(type) {
		case nil:
		case string, bool, int64, float64:
			out[k] = t
		case int:
			out[k] = int64(t)
		case int32:
			out[k] = int64(t)
		case float32:
			out[k] = float64(t)
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out
}

func fromValue(v *qdrant.Value) any {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	}
	return nil
}
