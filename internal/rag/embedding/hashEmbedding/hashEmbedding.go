package hashEmbedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/akolanti/GoRAG/internal/rag/embedding"
	"github.com/akolanti/GoRAG/internal/rag/textnorm"
)

const Name = "hashing"

// embedder is a local feature hashing model: lowercased words and word bigrams are hashed
// into EmbeddingSize buckets and the counts are L2 normalised. It needs no network and is
// deterministic, which makes it useful offline and in end to end tests.
type embedder struct {
	settings embedding.Settings
}

var _ embedding.Embedder = (*embedder)(nil)

func NewHashEmbedder(modelId string, embeddingSize int, maxInputChars int) embedding.Embedder {
	return &embedder{settings: embedding.Settings{
		ModelId:       modelId,
		EmbeddingSize: embeddingSize,
		MaxInputChars: maxInputChars,
	}}
}

func (e *embedder) Name() string { return Name }

func (e *embedder) EmbeddingSize() int { return e.settings.EmbeddingSize }

func (e *embedder) WithEmbeddingModel(modelId string, embeddingSize int) (embedding.Embedder, error) {
	settings, err := e.settings.Rebind(modelId, embeddingSize)
	if err != nil {
		return nil, err
	}
	return &embedder{settings: settings}, nil
}

func (e *embedder) Embed(ctx context.Context, text string, _ ragModel.DocumentType) ([]float32, error) {
	if !e.settings.Bound() {
		return nil, embedding.Unavailable(Name)
	}
	if err := ctx.Err(); err != nil {
		return nil, ragModel.Wrap(ragModel.ErrEmbeddingBackend, "hashing embed", err)
	}
	input := textnorm.TruncateInput(text, e.settings.MaxInputChars)
	if input == "" {
		return nil, embedding.EmptyInput(Name)
	}

	vector := make([]float32, e.settings.EmbeddingSize)
	features := tokens(input)
	for i, tok := range features {
		vector[bucket(e.settings.ModelId, tok, len(vector))]++
		if i > 0 {
			vector[bucket(e.settings.ModelId, features[i-1]+" "+tok, len(vector))] += 0.5
		}
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / norm)
	}

	if err := embedding.CheckVector("hashing embed", vector, e.settings.EmbeddingSize); err != nil {
		return nil, err
	}
	return vector, nil
}

func tokens(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) > 0 {
		return words
	}
	//punctuation only input still needs a non zero vector
	runes := []rune(strings.Join(strings.Fields(text), ""))
	out := make([]string, len(runes))
	for i, r := range runes {
		out[i] = string(r)
	}
	return out
}

// the model id seeds the hash so two hashing "models" do not share a feature space
func bucket(seed, token string, size int) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(token))
	return int(h.Sum64() % uint64(size))
}
