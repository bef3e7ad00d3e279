package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/akolanti/GoRAG/internal/config"
	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/akolanti/GoRAG/internal/rag"
	"github.com/akolanti/GoRAG/internal/rag/ingest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func offlineConfig(t *testing.T) config.ProviderConfig {
	cfg := config.DefaultProviderConfig()
	cfg.EmbeddingBackend = "hashing"
	cfg.EmbeddingModelId = "hash-v1"
	cfg.EmbeddingSize = 64
	cfg.GenerationBackend = "openai"
	cfg.OpenAIAPIKey = "test-key"
	cfg.OpenAIBaseURL = "http://127.0.0.1:1/v1/"
	cfg.VectorBackend = "memory"
	cfg.RegistryBackend = "sqlite"
	cfg.SqlitePath = filepath.Join(t.TempDir(), "registry.db")
	return cfg
}

func TestBuild_IngestsWithSqliteRegistry(t *testing.T) {
	ctx := context.Background()
	uploads := t.TempDir()
	app, err := Build(ctx, offlineConfig(t), uploads)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, app.Close()) })

	name, size, err := app.Files.Save(ctx, "p1", "notes.txt", strings.NewReader("alpha beta gamma delta epsilon zeta eta theta"))
	require.NoError(t, err)
	_, err = app.Registry.CreateAsset(ctx, ragModel.Asset{ProjectId: "p1", AssetName: name, AssetType: "text/plain", AssetSize: size})
	require.NoError(t, err)

	res, err := app.Ingest.ProcessAsset(ctx, ingest.ProcessRequest{
		ProjectId: "p1", AssetName: name, ChunkSize: 16, OverlapSize: 4, Index: true,
	})
	require.NoError(t, err)
	assert.Equal(t, ragModel.StateDone, res.FinalState)
	assert.Equal(t, res.ChunksPersisted, res.VectorsUpserted)

	query, err := app.Providers.Embedder.Embed(ctx, "gamma delta", ragModel.DocumentTypeQuery)
	require.NoError(t, err)
	hits, err := app.Providers.Vectors.Query(ctx, "p1", query, 3)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)

	_, err = app.RAG.Answer(ctx, rag.AnswerRequest{ProjectId: "p1", Query: " "})
	assert.ErrorIs(t, err, ragModel.ErrInvalidQuery)
}

func TestOpenRegistry_Memory(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.RegistryBackend = "memory"
	reg, closeFn, err := OpenRegistry(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, closeFn)
	_, err = reg.GetOrCreateProject(context.Background(), "p1")
	assert.NoError(t, err)
}

func TestBuild_BadSqlitePath(t *testing.T) {
	cfg := offlineConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	cfg.SqlitePath = filepath.Join(blocker, "nested", "registry.db")

	_, err := Build(context.Background(), cfg, t.TempDir())
	assert.Error(t, err)
}

func TestIngestFile(t *testing.T) {
	ctx := context.Background()
	app, err := Build(ctx, offlineConfig(t), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	path := filepath.Join(t.TempDir(), "handbook.txt")
	require.NoError(t, os.WriteFile(path, []byte("the vacation policy grants twenty days per year"), 0o600))

	res, err := app.IngestFile(ctx, "p1", path, IngestFileOptions{ChunkSize: 20, OverlapSize: 5})
	require.NoError(t, err)
	assert.Equal(t, ragModel.StateDone, res.FinalState)
	assert.Positive(t, res.ChunksPersisted)

	assets, err := app.Registry.ListAssets(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "text/plain", assets[0].AssetType)

	png := filepath.Join(t.TempDir(), "image.png")
	require.NoError(t, os.WriteFile(png, []byte("\x89PNG\r\n\x1a\n"), 0o600))
	_, err = app.IngestFile(ctx, "p1", png, IngestFileOptions{})
	assert.ErrorIs(t, err, ragModel.ErrInvalidAsset)

	_, err = app.IngestFile(ctx, "p1", filepath.Join(t.TempDir(), "missing.txt"), IngestFileOptions{})
	assert.ErrorIs(t, err, ragModel.ErrSourceNotFound)
}
