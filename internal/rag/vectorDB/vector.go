package vectorDB

import (
	"context"
	"sort"

	"github.com/akolanti/GoRAG/internal/config"
	"github.com/akolanti/GoRAG/internal/domain/ragModel"
)

// DataProcessor is a per-project vector collection. A collection's dimension is fixed when
// it is created; vectors of any other length are rejected with ErrDimensionMismatch.
type DataProcessor interface {
	Name() string
	EnsureCollection(ctx context.Context, projectId string, embeddingSize int, metric ragModel.DistanceMetric) error
	Upsert(ctx context.Context, projectId string, records []ragModel.VectorRecord) error
	// Query returns at most topK hits, best first. Ties keep insertion order.
	Query(ctx context.Context, projectId string, vector []float32, topK int) ([]ragModel.SearchHit, error)
	// Delete removes the given chunk ids. Unknown ids and a missing collection are not errors.
	Delete(ctx context.Context, projectId string, chunkIds []string) error
	DeleteCollection(ctx context.Context, projectId string) error
}

func CollectionName(projectId string) string {
	return config.QdrantCollectionPrefix + projectId
}

// RankedHit pairs a hit with the sequence it was first inserted at.
type RankedHit struct {
	Hit ragModel.SearchHit
	Seq int64
}

// Rank orders hits best first for the metric, breaking ties by insertion sequence, and keeps topK.
func Rank(hits []RankedHit, metric ragModel.DistanceMetric, topK int) []ragModel.SearchHit {
	higher := metric.HigherIsBetter()
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Hit.Score != b.Hit.Score {
			if higher {
				return a.Hit.Score > b.Hit.Score
			}
			return a.Hit.Score < b.Hit.Score
		}
		return a.Seq < b.Seq
	})
	if topK < len(hits) {
		hits = hits[:topK]
	}
	out := make([]ragModel.SearchHit, len(hits))
	for i, h := range hits {
		out[i] = h.Hit
	}
	return out
}

func CheckDimension(op string, got, want int) error {
	if got != want {
		return ragModel.NewError(ragModel.ErrDimensionMismatch, op, "vector has %d dimensions, collection expects %d", got, want)
	}
	return nil
}

func CheckTopK(op string, topK int) error {
	if topK <= 0 {
		return ragModel.NewError(ragModel.ErrVectorStore, op, "top k %d must be positive", topK)
	}
	return nil
}
