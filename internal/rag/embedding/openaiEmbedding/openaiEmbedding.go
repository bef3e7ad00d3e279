package openaiEmbedding

import (
	"context"
	"net/http"
	"time"

	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/akolanti/GoRAG/internal/metrics"
	"github.com/akolanti/GoRAG/internal/rag/embedding"
	"github.com/akolanti/GoRAG/internal/rag/textnorm"
	"github.com/akolanti/GoRAG/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const Name = "openai"

var logger = logger_i.NewLogger("openai_embedding")

type Config struct {
	APIKey        string
	BaseURL       string //any OpenAI compatible endpoint, empty means api.openai.com
	ModelId       string
	EmbeddingSize int
	MaxInputChars int
	MaxRetries    int
	HTTPClient    *http.Client
}

type client struct {
	api      *openai.Client
	settings embedding.Settings
}

var _ embedding.Embedder = (*client)(nil)

func NewOpenAIEmbedder(cfg Config) (embedding.Embedder, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, ragModel.NewError(ragModel.ErrEmbeddingUnavailable, "openai embedder", "OPENAI_API_KEY is not set")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	api := openai.NewClient(opts...)
	logger.Info("OpenAI Embedding client created", "model", cfg.ModelId, "size", cfg.EmbeddingSize)

	return &client{
		api: &api,
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
	return &client{api: c.api, settings: settings}, nil
}

// Embed ignores docType: OpenAI embedding models encode documents and queries the same way.
func (c *client) Embed(ctx context.Context, text string, _ ragModel.DocumentType) ([]float32, error) {
	if c.api == nil || !c.settings.Bound() {
		return nil, embedding.Unavailable(Name)
	}
	input := textnorm.TruncateInput(text, c.settings.MaxInputChars)
	if input == "" {
		return nil, embedding.EmptyInput(Name)
	}

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("embedding_openai", time.Since(start)) }()

	resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfString: openai.String(input)},
		Model:      openai.EmbeddingModel(c.settings.ModelId),
		Dimensions: openai.Int(int64(c.settings.EmbeddingSize)),
	})
	if err != nil {
		logger.FromContext(ctx).Error("Error getting Embeddings from OpenAI", "error", err)
		return nil, ragModel.Opaque(ragModel.ErrEmbeddingBackend, "openai embed", err)
	}
	if resp == nil || len(resp.Data) == 0 {
		return nil, ragModel.NewError(ragModel.ErrEmbeddingBackend, "openai embed", "response carried no embeddings")
	}

	vector := embedding.Float64To32(resp.Data[0].Embedding)
	if err := embedding.CheckVector("openai embed", vector, c.settings.EmbeddingSize); err != nil {
		return nil, err
	}
	return vector, nil
}
