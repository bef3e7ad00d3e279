package rag_test

import (
	"context"

	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/akolanti/GoRAG/internal/rag/embedding"
	"github.com/akolanti/GoRAG/internal/rag/ingest"
	"github.com/akolanti/GoRAG/internal/rag/llm"
)

// MockVectorDB implements vectorDB.DataProcessor
type MockVectorDB struct {
	OnQuery  func(ctx context.Context, projectId string, vector []float32, topK int) ([]ragModel.SearchHit, error)
	OnUpsert func(ctx context.Context, projectId string, records []ragModel.VectorRecord) error
}

func (m *MockVectorDB) Name() string { return "mock" }

func (m *MockVectorDB) EnsureCollection(ctx context.Context, projectId string, size int, metric ragModel.DistanceMetric) error {
	return nil
}

func (m *MockVectorDB) Upsert(ctx context.Context, projectId string, records []ragModel.VectorRecord) error {
	if m.OnUpsert != nil {
		return m.OnUpsert(ctx, projectId, records)
	}
	return nil
}

func (m *MockVectorDB) Query(ctx context.Context, projectId string, vector []float32, topK int) ([]ragModel.SearchHit, error) {
	if m.OnQuery != nil {
		return m.OnQuery(ctx, projectId, vector, topK)
	}
	return []ragModel.SearchHit{{ChunkId: "c1", Score: 0.9}}, nil
}

func (m *MockVectorDB) Delete(ctx context.Context, projectId string, chunkIds []string) error {
	return nil
}

func (m *MockVectorDB) DeleteCollection(ctx context.Context, projectId string) error { return nil }

type MockEmbedder struct {
	OnEmbed func(ctx context.Context, text string, docType ragModel.DocumentType) ([]float32, error)
}

func (m *MockEmbedder) Name() string       { return "mock" }
func (m *MockEmbedder) EmbeddingSize() int { return 3 }
func (m *MockEmbedder) WithEmbeddingModel(string, int) (embedding.Embedder, error) {
	return m, nil
}

func (m *MockEmbedder) Embed(ctx context.Context, text string, docType ragModel.DocumentType) ([]float32, error) {
	if m.OnEmbed != nil {
		return m.OnEmbed(ctx, text, docType)
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

// MockLLM implements llm.Provider
type MockLLM struct {
	OnGenerate func(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResult, error)
}

func (m *MockLLM) Name() string                                     { return "mock" }
func (m *MockLLM) WithGenerationModel(string) (llm.Provider, error) { return m, nil }
func (m *MockLLM) TruncateInput(text string) string                 { return text }

func (m *MockLLM) Generate(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResult, error) {
	if m.OnGenerate != nil {
		return m.OnGenerate(ctx, req)
	}
	history := ragModel.CopyHistory(req.History, 2)
	history = append(history,
		ragModel.ChatMessage{Role: ragModel.RoleUser, Text: req.Prompt},
		ragModel.ChatMessage{Role: ragModel.RoleAssistant, Text: "mocked llm response"})
	return llm.GenerateResult{Text: "mocked llm response", History: history}, nil
}

// MockChunkStore serves GetChunks from a fixed set.
type MockChunkStore struct {
	Chunks  map[string]ragModel.Chunk
	OnGet   func(ctx context.Context, projectId string, ids []string) ([]ragModel.Chunk, error)
	GetArgs [][]string
}

func (m *MockChunkStore) InsertManyChunks(ctx context.Context, chunks []ragModel.Chunk) (int, error) {
	return len(chunks), nil
}

func (m *MockChunkStore) ListChunks(ctx context.Context, projectId, assetId string) ([]ragModel.Chunk, error) {
	return nil, nil
}

func (m *MockChunkStore) CountChunks(ctx context.Context, projectId, assetId string) (int, error) {
	return 0, nil
}

func (m *MockChunkStore) GetChunks(ctx context.Context, projectId string, ids []string) ([]ragModel.Chunk, error) {
	m.GetArgs = append(m.GetArgs, ids)
	if m.OnGet != nil {
		return m.OnGet(ctx, projectId, ids)
	}
	var out []ragModel.Chunk
	for _, id := range ids {
		if c, ok := m.Chunks[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MockChunkStore) DeleteChunks(ctx context.Context, projectId, assetId string) (int, error) {
	return 0, nil
}

type MockIngestor struct {
	OnProcessAsset func(ctx context.Context, req ingest.ProcessRequest) (ingest.IngestResult, error)
	OnReembed      func(ctx context.Context, projectId, assetName string) (ingest.IngestResult, error)
}

func (m *MockIngestor) ProcessAsset(ctx context.Context, req ingest.ProcessRequest) (ingest.IngestResult, error) {
	if m.OnProcessAsset != nil {
		return m.OnProcessAsset(ctx, req)
	}
	return ingest.IngestResult{ChunksPersisted: 1, VectorsUpserted: 1, FinalState: ragModel.StateDone}, nil
}

func (m *MockIngestor) Reembed(ctx context.Context, projectId, assetName string) (ingest.IngestResult, error) {
	if m.OnReembed != nil {
		return m.OnReembed(ctx, projectId, assetName)
	}
	return ingest.IngestResult{VectorsUpserted: 1, FinalState: ragModel.StateDone}, nil
}
