package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/akolanti/GoRAG/internal/config"
	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/akolanti/GoRAG/internal/rag/embedding"
	"github.com/akolanti/GoRAG/internal/rag/embedding/googleEmbedding"
	"github.com/akolanti/GoRAG/internal/rag/embedding/hashEmbedding"
	"github.com/akolanti/GoRAG/internal/rag/embedding/openaiEmbedding"
	"github.com/akolanti/GoRAG/internal/rag/llm"
	"github.com/akolanti/GoRAG/internal/rag/llm/anthropicLLM"
	"github.com/akolanti/GoRAG/internal/rag/llm/gemini"
	"github.com/akolanti/GoRAG/internal/rag/llm/openaiLLM"
	"github.com/akolanti/GoRAG/internal/rag/vectorDB"
	"github.com/akolanti/GoRAG/internal/rag/vectorDB/memoryDB"
	"github.com/akolanti/GoRAG/internal/rag/vectorDB/qdrantDB"
	"github.com/akolanti/GoRAG/pkg/logger_i"
)

const vendorMaxRetries = 2

var logger = logger_i.NewLogger("providers")

// Set is the resolved trio of backends plus the settings the orchestrators need from the config.
// Nothing outside this package looks at backend names.
type Set struct {
	Embedder  embedding.Embedder
	Generator llm.Provider
	Vectors   vectorDB.DataProcessor
	Metric    ragModel.DistanceMetric
	TopK      int

	closers []func() error
}

// Resolve builds every backend named in cfg. httpClient may be nil.
func Resolve(ctx context.Context, cfg config.ProviderConfig, httpClient *http.Client) (*Set, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	set := &Set{Metric: ragModel.DistanceMetric(cfg.DistanceMetric), TopK: cfg.TopK}

	var err error
	if set.Embedder, err = resolveEmbedder(ctx, cfg, httpClient); err != nil {
		return nil, err
	}
	if set.Generator, err = resolveGenerator(ctx, cfg, httpClient); err != nil {
		return nil, err
	}
	if err = set.resolveVectors(cfg); err != nil {
		return nil, err
	}

	logger.Info("providers resolved",
		"embedding", set.Embedder.Name(), "embeddingSize", set.Embedder.EmbeddingSize(),
		"generation", set.Generator.Name(), "vectors", set.Vectors.Name(), "metric", set.Metric)
	return set, nil
}

func resolveEmbedder(ctx context.Context, cfg config.ProviderConfig, httpClient *http.Client) (embedding.Embedder, error) {
	switch cfg.EmbeddingBackend {
	case googleEmbedding.Name:
		return googleEmbedding.NewGoogleEmbedder(ctx, googleEmbedding.Config{
			APIKey:        cfg.GeminiAPIKey,
			ModelId:       cfg.EmbeddingModelId,
			EmbeddingSize: cfg.EmbeddingSize,
			MaxInputChars: cfg.InputMaxCharacters,
			HTTPClient:    httpClient,
		})
	case openaiEmbedding.Name:
		return openaiEmbedding.NewOpenAIEmbedder(openaiEmbedding.Config{
			APIKey:        cfg.OpenAIAPIKey,
			BaseURL:       cfg.OpenAIBaseURL,
			ModelId:       cfg.EmbeddingModelId,
			EmbeddingSize: cfg.EmbeddingSize,
			MaxInputChars: cfg.InputMaxCharacters,
			MaxRetries:    vendorMaxRetries,
			HTTPClient:    httpClient,
		})
	case hashEmbedding.Name:
		return hashEmbedding.NewHashEmbedder(cfg.EmbeddingModelId, cfg.EmbeddingSize, cfg.InputMaxCharacters), nil
	}
	return nil, fmt.Errorf("unknown embedding backend %q", cfg.EmbeddingBackend)
}

func resolveGenerator(ctx context.Context, cfg config.ProviderConfig, httpClient *http.Client) (llm.Provider, error) {
	switch cfg.GenerationBackend {
	case gemini.Name:
		return gemini.NewGeminiClient(ctx, gemini.Config{
			APIKey:          cfg.GeminiAPIKey,
			ModelId:         cfg.GenerationModelId,
			MaxInputChars:   cfg.InputMaxCharacters,
			MaxOutputTokens: cfg.GenerationMaxOutputTokens,
			Temperature:     cfg.GenerationTemperature,
			HTTPClient:      httpClient,
		})
	case openaiLLM.Name:
		return openaiLLM.NewOpenAIClient(openaiLLM.Config{
			APIKey:          cfg.OpenAIAPIKey,
			BaseURL:         cfg.OpenAIBaseURL,
			ModelId:         cfg.GenerationModelId,
			MaxInputChars:   cfg.InputMaxCharacters,
			MaxOutputTokens: cfg.GenerationMaxOutputTokens,
			Temperature:     cfg.GenerationTemperature,
			MaxRetries:      vendorMaxRetries,
			HTTPClient:      httpClient,
		})
	case anthropicLLM.Name:
		return anthropicLLM.NewAnthropicClient(anthropicLLM.Config{
			APIKey:          cfg.AnthropicAPIKey,
			ModelId:         cfg.GenerationModelId,
			MaxInputChars:   cfg.InputMaxCharacters,
			MaxOutputTokens: cfg.GenerationMaxOutputTokens,
			Temperature:     cfg.GenerationTemperature,
			MaxRetries:      vendorMaxRetries,
			HTTPClient:      httpClient,
		})
	}
	return nil, fmt.Errorf("unknown generation backend %q", cfg.GenerationBackend)
}

func (s *Set) resolveVectors(cfg config.ProviderConfig) error {
	switch cfg.VectorBackend {
	case memoryDB.Name:
		s.Vectors = memoryDB.NewStore()
		return nil
	case qdrantDB.Name:
		store, err := qdrantDB.NewQdrantStore(qdrantDB.Config{
			Host:   cfg.QdrantHost,
			Port:   cfg.QdrantPort,
			APIKey: cfg.QdrantAPIKey,
			UseTLS: config.QdrantUseTLS,
		})
		if err != nil {
			return err
		}
		s.Vectors = store
		s.closers = append(s.closers, store.Close)
		return nil
	}
	return fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
}

// Close releases vendor connections. Safe to call on a partially built Set.
func (s *Set) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	s.closers = nil
	return errors.Join(errs...)
}
