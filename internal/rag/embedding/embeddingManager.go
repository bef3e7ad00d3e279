package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/akolanti/GoRAG/internal/domain/ragModel"
)

// Embedder turns text into a fixed length vector. Implementations are immutable:
// WithEmbeddingModel returns a new bound instance and leaves the receiver untouched.
type Embedder interface {
	Name() string
	EmbeddingSize() int
	WithEmbeddingModel(modelId string, embeddingSize int) (Embedder, error)
	Embed(ctx context.Context, text string, docType ragModel.DocumentType) ([]float32, error)
}

// Settings are the per-model limits every backend carries.
type Settings struct {
	ModelId       string
	EmbeddingSize int
	MaxInputChars int
}

func (s Settings) Bound() bool {
	return s.ModelId != "" && s.EmbeddingSize > 0
}

// Rebind validates a configure request and returns the updated settings.
func (s Settings) Rebind(modelId string, embeddingSize int) (Settings, error) {
	if modelId == "" {
		return s, ragModel.NewError(ragModel.ErrEmbeddingUnavailable, "configure embedding model", "model id is empty")
	}
	if embeddingSize <= 0 {
		return s, ragModel.NewError(ragModel.ErrEmbeddingUnavailable, "configure embedding model",
			"embedding size %d must be positive", embeddingSize)
	}
	s.ModelId = modelId
	s.EmbeddingSize = embeddingSize
	return s, nil
}

// CheckVector rejects responses a caller could otherwise mistake for a usable embedding.
func CheckVector(op string, vector []float32, want int) error {
	if len(vector) == 0 {
		return ragModel.NewError(ragModel.ErrEmbeddingBackend, op, "empty embedding in response")
	}
	if len(vector) != want {
		return ragModel.NewError(ragModel.ErrEmbeddingBackend, op, "embedding has %d dimensions, want %d", len(vector), want)
	}
	zero := true
	for _, v := range vector {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return ragModel.NewError(ragModel.ErrEmbeddingBackend, op, "embedding contains non-finite values")
		}
		if v != 0 {
			zero = false
		}
	}
	if zero {
		return ragModel.NewError(ragModel.ErrEmbeddingBackend, op, "embedding is a zero vector")
	}
	return nil
}

func Float64To32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

// Unavailable is returned by backends that have no client or model bound.
func Unavailable(name string) error {
	return ragModel.NewError(ragModel.ErrEmbeddingUnavailable, name+" embed", "no embedding model configured")
}

// EmptyInput is returned when nothing is left to embed after truncation.
func EmptyInput(name string) error {
	return ragModel.NewError(ragModel.ErrEmbeddingBackend, name+" embed", "input is empty after normalization")
}

func Describe(e Embedder) string {
	return fmt.Sprintf("%s(%d)", e.Name(), e.EmbeddingSize())
}
