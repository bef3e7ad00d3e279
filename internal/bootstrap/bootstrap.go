// Package bootstrap assembles stores, providers and services from a ProviderConfig.
// cmd/api and cmd/ragctl both start from here.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/akolanti/GoRAG/internal/config"
	"github.com/akolanti/GoRAG/internal/customHttpClient"
	"github.com/akolanti/GoRAG/internal/data/fileStore"
	"github.com/akolanti/GoRAG/internal/data/redisStore"
	"github.com/akolanti/GoRAG/internal/data/store"
	"github.com/akolanti/GoRAG/internal/domain/jobModel"
	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/akolanti/GoRAG/internal/rag"
	"github.com/akolanti/GoRAG/internal/rag/ingest"
	"github.com/akolanti/GoRAG/internal/rag/providers"
	"github.com/akolanti/GoRAG/pkg/logger_i"
)

var logger = logger_i.NewLogger("bootstrap")

// RegistryStore is the project/asset registry and the chunk store in one backend.
type RegistryStore interface {
	ragModel.Registry
	ragModel.ChunkStore
}

type App struct {
	Config    config.ProviderConfig
	Providers *providers.Set
	Registry  RegistryStore
	Files     *fileStore.Store
	Ingest    *ingest.Orchestrator
	RAG       rag.Service

	closers []func() error
}

// Build resolves every backend named in cfg. uploadRoot is where uploaded files live.
func Build(ctx context.Context, cfg config.ProviderConfig, uploadRoot string) (*App, error) {
	app := &App{Config: cfg, Files: fileStore.NewFileStore(uploadRoot)}

	set, err := providers.Resolve(ctx, cfg, customHttpClient.NewHTTPClient())
	if err != nil {
		return nil, fmt.Errorf("resolve providers: %w", err)
	}
	app.Providers = set
	app.closers = append(app.closers, set.Close)

	registry, closeRegistry, err := OpenRegistry(ctx, cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Registry = registry
	if closeRegistry != nil {
		app.closers = append(app.closers, closeRegistry)
	}

	app.Ingest = ingest.NewOrchestrator(ingest.Config{
		Registry: registry,
		Chunks:   registry,
		Source:   app.Files,
		Embedder: set.Embedder,
		Vectors:  set.Vectors,
		Metric:   set.Metric,
	})
	app.RAG = rag.NewService(rag.Config{
		Registry:       registry,
		Embedder:       set.Embedder,
		Generator:      set.Generator,
		Vectors:        set.Vectors,
		Chunks:         registry,
		Ingestor:       app.Ingest,
		TopK:           set.TopK,
		MaxPromptChars: cfg.InputMaxCharacters,
		IndexOnIngest:  cfg.IndexOnIngest,
	})
	return app, nil
}

// Close releases providers and stores in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	customHttpClient.CloseIdleConnections()
	return errors.Join(errs...)
}

// OpenRegistry picks the registry backend. An unreachable redis falls back to memory when
// FALLBACK_REDIS_TO_INTERNALSTORE is set. The returned close func may be nil.
func OpenRegistry(ctx context.Context, cfg config.ProviderConfig) (RegistryStore, func() error, error) {
	switch cfg.RegistryBackend {
	case "sqlite":
		s, err := store.NewSqliteRegistryStore(ctx, cfg.SqlitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite registry: %w", err)
		}
		logger.Info("Registry backend", "backend", "sqlite", "path", cfg.SqlitePath)
		return s, s.Close, nil
	case "redis":
		if rs := redisStore.GetRedisStore(ctx, config.RedisRegistryStore); rs != nil {
			logger.Info("Registry backend", "backend", "redis")
			return store.NewRedisRegistryStore(rs), nil, nil
		}
		if !config.FALLBACK_REDIS_TO_INTERNALSTORE {
			return nil, nil, errors.New("redis registry is unreachable")
		}
		logger.Warn("Redis registry is offline, falling back to memory")
	}
	logger.Info("Registry backend", "backend", "memory")
	return store.InitInMemoryRegistryStore(), nil, nil
}

// OpenJobStores returns redis backed job and message stores, or in-memory ones when redis is down.
func OpenJobStores(ctx context.Context) (jobModel.JobStore, jobModel.MessageStore) {
	jobs := redisStore.GetRedisStore(ctx, config.RedisJobStore)
	messages := redisStore.GetRedisStore(ctx, config.RedisMessageStore)
	if jobs == nil || messages == nil {
		logger.Error("Redis stores are offline, using in-memory job and message stores")
		return store.InitInMemoryJobStore(), store.InitMessageStore()
	}
	return store.NewRedisJobStore(jobs), store.NewRedisMessageStore(messages)
}

type IngestFileOptions struct {
	ChunkSize   int
	OverlapSize int
	NoIndex     bool
}

// IngestFile uploads a local file into the project and processes it, the same path
// an HTTP upload followed by a process request takes.
func (a *App) IngestFile(ctx context.Context, projectId, path string, opts IngestFileOptions) (ingest.IngestResult, error) {
	chunkSize, overlap := rag.ChunkDefaults(opts.ChunkSize, opts.OverlapSize)
	if err := ragModel.ValidateProjectId(projectId); err != nil {
		return ingest.IngestResult{}, err
	}
	if err := ragModel.ValidateChunkParameters(chunkSize, overlap); err != nil {
		return ingest.IngestResult{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return ingest.IngestResult{}, ragModel.Wrap(ragModel.ErrSourceNotFound, "ingest file", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return ingest.IngestResult{}, ragModel.Wrap(ragModel.ErrSourceNotFound, "ingest file", err)
	}

	contentType := detectContentType(path, f)
	if err := a.Files.ValidateUpload(contentType, info.Size()); err != nil {
		return ingest.IngestResult{}, err
	}
	name, written, err := a.Files.Save(ctx, projectId, filepath.Base(path), f)
	if err != nil {
		return ingest.IngestResult{}, err
	}
	if _, err := a.Registry.GetOrCreateProject(ctx, projectId); err != nil {
		return ingest.IngestResult{}, err
	}
	if _, err := a.Registry.CreateAsset(ctx, ragModel.Asset{
		ProjectId:   projectId,
		AssetType:   contentType,
		AssetName:   name,
		AssetSize:   written,
		AssetConfig: map[string]any{"original_name": filepath.Base(path)},
	}); err != nil {
		return ingest.IngestResult{}, err
	}

	return a.Ingest.ProcessAsset(ctx, ingest.ProcessRequest{
		ProjectId:   projectId,
		AssetName:   name,
		ChunkSize:   chunkSize,
		OverlapSize: overlap,
		Index:       a.Config.IndexOnIngest && !opts.NoIndex,
	})
}

// detectContentType trusts the extension first and sniffs the first bytes otherwise. f is rewound.
func detectContentType(path string, f io.ReadSeeker) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		mediaType, _, _ := strings.Cut(ct, ";")
		return mediaType
	}
	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	_, _ = f.Seek(0, io.SeekStart)
	mediaType, _, _ := strings.Cut(http.DetectContentType(head[:n]), ";")
	return mediaType
}
