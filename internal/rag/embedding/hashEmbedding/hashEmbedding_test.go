package hashEmbedding

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/akolanti/GoRAG/internal/domain/ragModel"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestEmbed_DeterministicAndNormalised(t *testing.T) {
	e := NewHashEmbedder("hash-v1", 64, 1000)
	ctx := context.Background()

	a, err := e.Embed(ctx, "The quick brown fox", ragModel.DocumentTypeDocument)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.Embed(ctx, "the QUICK brown fox!", ragModel.DocumentTypeQuery)

	if len(a) != 64 {
		t.Fatalf("len = %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at %d", i)
		}
	}
	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("norm = %f, want 1", norm)
	}
}

func TestEmbed_SimilarTextScoresHigher(t *testing.T) {
	e := NewHashEmbedder("hash-v1", 256, 1000)
	ctx := context.Background()
	q, _ := e.Embed(ctx, "golang channels", ragModel.DocumentTypeQuery)
	near, _ := e.Embed(ctx, "channels in golang are typed conduits", ragModel.DocumentTypeDocument)
	far, _ := e.Embed(ctx, "tomato soup recipe with basil", ragModel.DocumentTypeDocument)

	if cosine(q, near) <= cosine(q, far) {
		t.Errorf("expected related text to score higher: near=%f far=%f", cosine(q, near), cosine(q, far))
	}
}

func TestEmbed_PunctuationOnly(t *testing.T) {
	e := NewHashEmbedder("hash-v1", 16, 1000)
	v, err := e.Embed(context.Background(), "?!", ragModel.DocumentTypeDocument)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(v) != 16 {
		t.Errorf("len = %d", len(v))
	}
}

func TestEmbed_Errors(t *testing.T) {
	unbound := NewHashEmbedder("", 0, 10)
	if _, err := unbound.Embed(context.Background(), "x", ragModel.DocumentTypeDocument); !errors.Is(err, ragModel.ErrEmbeddingUnavailable) {
		t.Errorf("expected ErrEmbeddingUnavailable, got %v", err)
	}

	e := NewHashEmbedder("m", 8, 10)
	if _, err := e.Embed(context.Background(), "   ", ragModel.DocumentTypeDocument); !errors.Is(err, ragModel.ErrEmbeddingBackend) {
		t.Errorf("expected ErrEmbeddingBackend for blank input, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Embed(ctx, "hello", ragModel.DocumentTypeDocument); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestWithEmbeddingModel(t *testing.T) {
	unbound := NewHashEmbedder("", 0, 10)
	bound, err := unbound.WithEmbeddingModel("m", 12)
	if err != nil {
		t.Fatal(err)
	}
	if bound.EmbeddingSize() != 12 || unbound.EmbeddingSize() != 0 {
		t.Errorf("sizes: bound=%d unbound=%d", bound.EmbeddingSize(), unbound.EmbeddingSize())
	}
}
