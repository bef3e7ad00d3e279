package memoryDB

import (
	"context"
	"maps"
	"math"
	"sync"

	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/akolanti/GoRAG/internal/rag/vectorDB"
	"github.com/akolanti/GoRAG/pkg/logger_i"
)

const Name = "memory"

var logger = logger_i.NewLogger("vector_memory")

type point struct {
	vector   []float32
	metadata map[string]any
	seq      int64
}

type collection struct {
	size   int
	metric ragModel.DistanceMetric
	points map[string]*point
	next   int64
}

// Store is a brute force in-process vector index. All collections share one lock.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

var _ vectorDB.DataProcessor = (*Store)(nil)

func NewStore() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) Name() string { return Name }

func (s *Store) EnsureCollection(_ context.Context, projectId string, embeddingSize int, metric ragModel.DistanceMetric) error {
	if embeddingSize <= 0 {
		return ragModel.NewError(ragModel.ErrVectorStore, "ensure collection", "embedding size %d must be positive", embeddingSize)
	}
	if !metric.Valid() {
		return ragModel.NewError(ragModel.ErrVectorStore, "ensure collection", "unknown distance metric %q", metric)
	}

	name := vectorDB.CollectionName(projectId)
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[name]; ok {
		return vectorDB.CheckDimension("ensure collection", embeddingSize, c.size)
	}
	s.collections[name] = &collection{size: embeddingSize, metric: metric, points: make(map[string]*point)}
	logger.Debug("collection created", "collection", name, "size", embeddingSize, "metric", metric)
	return nil
}

// Upsert validates the whole batch before writing so a rejected batch leaves nothing behind.
func (s *Store) Upsert(_ context.Context, projectId string, records []ragModel.VectorRecord) error {
	name := vectorDB.CollectionName(projectId)
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return ragModel.NewError(ragModel.ErrCollectionNotFound, "upsert", "collection %s does not exist", name)
	}
	for _, r := range records {
		if r.ChunkId == "" {
			return ragModel.NewError(ragModel.ErrVectorStore, "upsert", "record without chunk id")
		}
		if err := vectorDB.CheckDimension("upsert", len(r.Vector), c.size); err != nil {
			return err
		}
	}

	for _, r := range records {
		vec := make([]float32, len(r.Vector))
		copy(vec, r.Vector)
		if existing, ok := c.points[r.ChunkId]; ok {
			existing.vector = vec
			existing.metadata = maps.Clone(r.Metadata)
			continue
		}
		c.points[r.ChunkId] = &point{vector: vec, metadata: maps.Clone(r.Metadata), seq: c.next}
		c.next++
	}
	return nil
}

func (s *Store) Query(_ context.Context, projectId string, vector []float32, topK int) ([]ragModel.SearchHit, error) {
	if err := vectorDB.CheckTopK("query", topK); err != nil {
		return nil, err
	}
	name := vectorDB.CollectionName(projectId)
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return nil, ragModel.NewError(ragModel.ErrCollectionNotFound, "query", "collection %s does not exist", name)
	}
	if err := vectorDB.CheckDimension("query", len(vector), c.size); err != nil {
		return nil, err
	}

	ranked := make([]vectorDB.RankedHit, 0, len(c.points))
	for id, p := range c.points {
		ranked = append(ranked, vectorDB.RankedHit{
			Hit: ragModel.SearchHit{ChunkId: id, Score: score(c.metric, vector, p.vector), Metadata: maps.Clone(p.metadata)},
			Seq: p.seq,
		})
	}
	return vectorDB.Rank(ranked, c.metric, topK), nil
}

func (s *Store) Delete(_ context.Context, projectId string, chunkIds []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[vectorDB.CollectionName(projectId)]
	if !ok {
		return nil
	}
	for _, id := range chunkIds {
		delete(c.points, id)
	}
	return nil
}

func (s *Store) DeleteCollection(_ context.Context, projectId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, vectorDB.CollectionName(projectId))
	return nil
}

func score(metric ragModel.DistanceMetric, a, b []float32) float32 {
	var dot, na, nb, sq float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
		sq += (x - y) * (x - y)
	}
	switch metric {
	case ragModel.DistanceDot:
		return float32(dot)
	case ragModel.DistanceEuclid:
		return float32(math.Sqrt(sq))
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
