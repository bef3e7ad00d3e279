package googleEmbedding

import (
	"context"
	"net/http"
	"time"

	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/akolanti/GoRAG/internal/metrics"
	"github.com/akolanti/GoRAG/internal/rag/embedding"
	"github.com/akolanti/GoRAG/internal/rag/textnorm"
	"github.com/akolanti/GoRAG/pkg/logger_i"
	"google.golang.org/genai"
)

const Name = "gemini"

var logger = logger_i.NewLogger("google_embedding")

type Config struct {
	APIKey        string
	ModelId       string
	EmbeddingSize int
	MaxInputChars int
	HTTPClient    *http.Client
}

type client struct {
	genAi    *genai.Client
	settings embedding.Settings
}

var _ embedding.Embedder = (*client)(nil)

// NewGoogleEmbedder creates the genai client once. The returned instance is bound to
// cfg.ModelId when one is given; otherwise WithEmbeddingModel must be called before Embed.
func NewGoogleEmbedder(ctx context.Context, cfg Config) (embedding.Embedder, error) {
	if cfg.APIKey == "" {
		return nil, ragModel.NewError(ragModel.ErrEmbeddingUnavailable, "gemini embedder", "GEMINI_API_KEY is not set")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	})
	if err != nil {
		return nil, ragModel.Opaque(ragModel.ErrEmbeddingUnavailable, "gemini embedder", err)
	}
	logger.Info("Google Embedding client created", "model", cfg.ModelId, "size", cfg.EmbeddingSize)

	return &client{
		genAi: c,
		settings: embedding.Settings{
			ModelId:       cfg.ModelId,
			EmbeddingSize: cfg.EmbeddingSize,
			MaxInputChars: cfg.MaxInputChars,
		},
	}, nil
}

func (c *client) Name() string { return Name }

func (c *client) EmbeddingSize() int { return c.settings.EmbeddingSize }

func (c *client) WithEmbeddingModel(modelId string, embeddingSize int) (embedding.Embedder, error) {
	settings, err := c.settings.Rebind(modelId, embeddingSize)
	if err != nil {
		return nil, err
	}
	return &client{genAi: c.genAi, settings: settings}, nil
}

func (c *client) Embed(ctx context.Context, text string, docType ragModel.DocumentType) ([]float32, error) {
	if c.genAi == nil || !c.settings.Bound() {
		return nil, embedding.Unavailable(Name)
	}
	input := textnorm.TruncateInput(text, c.settings.MaxInputChars)
	if input == "" {
		return nil, embedding.EmptyInput(Name)
	}

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("embedding_gemini", time.Since(start)) }()

	dimension := int32(c.settings.EmbeddingSize)
	result, err := c.genAi.Models.EmbedContent(ctx, c.settings.ModelId, genai.Text(input), &genai.EmbedContentConfig{
		OutputDimensionality: &dimension,
		TaskType:             taskType(docType),
	})
	if err != nil {
		logger.FromContext(ctx).Error("Error getting Embeddings from Google", "error", err)
		return nil, ragModel.Opaque(ragModel.ErrEmbeddingBackend, "gemini embed", err)
	}
	if result == nil || len(result.Embeddings) == 0 || result.Embeddings[0] == nil {
		return nil, ragModel.NewError(ragModel.ErrEmbeddingBackend, "gemini embed", "response carried no embeddings")
	}

	vector := result.Embeddings[0].Values
	if err := embedding.CheckVector("gemini embed", vector, c.settings.EmbeddingSize); err != nil {
		return nil, err
	}
	return vector, nil
}

// https://ai.google.dev/gemini-api/docs/embeddings#task-types
func taskType(docType ragModel.DocumentType) string {
	if docType == ragModel.DocumentTypeQuery {
		return "RETRIEVAL_QUERY"
	}
	return "RETRIEVAL_DOCUMENT"
}
