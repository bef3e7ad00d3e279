package ingest

import (
	"context"
	"maps"
	"time"

	"github.com/akolanti/GoRAG/internal/config"
	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/akolanti/GoRAG/internal/metrics"
	"github.com/akolanti/GoRAG/internal/rag/embedding"
	"github.com/akolanti/GoRAG/internal/rag/splitter"
	"github.com/akolanti/GoRAG/internal/rag/textnorm"
	"github.com/akolanti/GoRAG/internal/rag/vectorDB"
	"github.com/akolanti/GoRAG/pkg/logger_i"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

var logger = logger_i.NewLogger("ingest")

// payload keys stored with every vector
const (
	MetaProjectId  = "project_id"
	MetaAssetId    = "asset_id"
	MetaAssetName  = "asset_name"
	MetaChunkOrder = "chunk_order"
)

type ProcessRequest struct {
	ProjectId   string
	AssetName   string
	ChunkSize   int
	OverlapSize int
	// Reset replaces the asset's stored chunks and vectors so it can be processed again. Other
	// assets of the project are untouched, and nothing is removed unless the new run reaches PERSISTING.
	Reset bool
	// Index embeds and upserts the chunks. Without it the run stops after the chunk store.
	Index bool
	// OnState, if set, is told about every state the run enters.
	OnState func(ragModel.IngestionState)
}

type IngestResult struct {
	ProjectInternalId string
	AssetId           string
	ChunksPersisted   int
	VectorsUpserted   int
	FinalState        ragModel.IngestionState
}

type Config struct {
	Registry ragModel.Registry
	Chunks   ragModel.ChunkStore
	Source   ragModel.ContentSource
	Embedder embedding.Embedder
	Vectors  vectorDB.DataProcessor
	Metric   ragModel.DistanceMetric

	// Concurrency bounds in-flight embedding calls; RequestsPerSecond paces them. Zero means the defaults.
	Concurrency       int
	RequestsPerSecond float64
}

type Orchestrator struct {
	registry ragModel.Registry
	chunks   ragModel.ChunkStore
	source   ragModel.ContentSource
	embedder embedding.Embedder
	vectors  vectorDB.DataProcessor
	metric   ragModel.DistanceMetric

	concurrency int
	limiter     *rate.Limiter
}

func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = config.EmbeddingConcurrency
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = config.EmbeddingRequestsPerSecond
	}
	if cfg.Metric == "" {
		cfg.Metric = ragModel.DistanceCosine
	}
	return &Orchestrator{
		registry:    cfg.Registry,
		chunks:      cfg.Chunks,
		source:      cfg.Source,
		embedder:    cfg.Embedder,
		vectors:     cfg.Vectors,
		metric:      cfg.Metric,
		concurrency: cfg.Concurrency,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Concurrency),
	}
}

// run tracks one invocation's state so every exit records the same outcome.
type run struct {
	req     ProcessRequest
	reembed bool
	result  IngestResult
	log     *logger_i.Logger
	start   time.Time
}

func (r *run) enter(state ragModel.IngestionState) {
	r.result.FinalState = state
	r.log.Debug("ingestion state", "state", state)
	if r.req.OnState != nil {
		r.req.OnState(state)
	}
}

func (r *run) fail(err error) (IngestResult, error) {
	failedIn := r.result.FinalState
	r.enter(ragModel.StateFailed)
	r.log.Error("ingestion failed", "step", failedIn, "error", err, "chunksPersisted", r.result.ChunksPersisted)
	persisted := r.result.ChunksPersisted
	if r.reembed {
		persisted = 0
	}
	metrics.RecordIngestion(string(ragModel.StateFailed), persisted, r.result.VectorsUpserted)
	return r.result, err
}

// ProcessAsset runs VALIDATING, SPLITTING, EMBEDDING, PERSISTING and ends in DONE or FAILED.
// No chunk is persisted unless every embedding succeeded. A vector store failure after the
// chunks are stored is reported as ErrPartiallyPersisted; Reembed repairs it.
func (o *Orchestrator) ProcessAsset(ctx context.Context, req ProcessRequest) (IngestResult, error) {
	r := &run{
		req:   req,
		log:   logger.FromContext(ctx).With("projectId", req.ProjectId, "asset", req.AssetName),
		start: time.Now(),
	}

	r.enter(ragModel.StateValidating)
	asset, content, err := o.validate(ctx, r)
	if err != nil {
		return r.fail(err)
	}

	r.enter(ragModel.StateSplitting)
	chunks, err := buildChunks(content, asset, req.ChunkSize, req.OverlapSize)
	if err != nil {
		return r.fail(err)
	}
	r.log.Debug("content split", "chunks", len(chunks), "characters", len([]rune(content)))

	var vectors [][]float32
	if req.Index {
		r.enter(ragModel.StateEmbedding)
		if vectors, err = o.embedAll(ctx, chunks); err != nil {
			return r.fail(err)
		}
	}

	r.enter(ragModel.StatePersisting)
	if req.Reset {
		if err := o.resetAsset(ctx, asset, r.log); err != nil {
			return r.fail(err)
		}
	}
	// the store rejects the batch if a concurrent run for this asset committed first
	n, err := o.chunks.InsertManyChunks(ctx, chunks)
	if err != nil {
		return r.fail(err)
	}
	r.result.ChunksPersisted = n

	if req.Index {
		upserted, err := o.upsert(ctx, req.ProjectId, chunks, vectors, map[string]string{asset.Id: asset.AssetName})
		if err != nil {
			return r.fail(ragModel.Wrap(ragModel.ErrPartiallyPersisted, "persist vectors", err))
		}
		r.result.VectorsUpserted = upserted
	}

	r.enter(ragModel.StateDone)
	metrics.RecordIngestion(string(ragModel.StateDone), r.result.ChunksPersisted, r.result.VectorsUpserted)
	metrics.CaptureExecutionMetrics("ingest_process_asset", time.Since(r.start))
	r.log.Info("asset processed", "chunks", r.result.ChunksPersisted, "vectors", r.result.VectorsUpserted)
	return r.result, nil
}

func (o *Orchestrator) validate(ctx context.Context, r *run) (ragModel.Asset, string, error) {
	req := r.req
	if err := ragModel.ValidateProjectId(req.ProjectId); err != nil {
		return ragModel.Asset{}, "", err
	}
	if err := ragModel.ValidateChunkParameters(req.ChunkSize, req.OverlapSize); err != nil {
		return ragModel.Asset{}, "", err
	}
	if req.Index {
		if err := o.checkIndexing(); err != nil {
			return ragModel.Asset{}, "", err
		}
	}

	project, err := o.registry.GetOrCreateProject(ctx, req.ProjectId)
	if err != nil {
		return ragModel.Asset{}, "", err
	}
	r.result.ProjectInternalId = project.Id

	asset, err := o.registry.FindAsset(ctx, req.ProjectId, req.AssetName)
	if err != nil {
		return ragModel.Asset{}, "", err
	}
	r.result.AssetId = asset.Id

	if !req.Reset {
		// fail fast before paying for embeddings; InsertManyChunks makes the binding check
		existing, err := o.chunks.CountChunks(ctx, req.ProjectId, asset.Id)
		if err != nil {
			return ragModel.Asset{}, "", err
		}
		if existing > 0 {
			return ragModel.Asset{}, "", ragModel.NewError(ragModel.ErrAssetAlreadyProcessed, "validate",
				"asset %q already has %d chunks, set reset to process it again", req.AssetName, existing)
		}
	}

	content, err := o.source.Read(ctx, asset)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && ragModel.KindOf(err) == nil {
			err = ragModel.Opaque(ragModel.ErrPersistence, "read content", ctxErr)
		}
		if ragModel.KindOf(err) == nil {
			err = ragModel.Wrap(ragModel.ErrSourceNotFound, "read content", err)
		}
		return ragModel.Asset{}, "", err
	}
	return asset, content, nil
}

func (o *Orchestrator) checkIndexing() error {
	if o.embedder == nil {
		return ragModel.NewError(ragModel.ErrEmbeddingUnavailable, "validate", "no embedding backend configured")
	}
	if o.vectors == nil {
		return ragModel.NewError(ragModel.ErrVectorStore, "validate", "no vector store configured")
	}
	return nil
}

// resetAsset removes the asset's vectors, then its chunks. A vector failure leaves the chunks in
// place so a retry can find them again.
func (o *Orchestrator) resetAsset(ctx context.Context, asset ragModel.Asset, log *logger_i.Logger) error {
	if o.vectors != nil {
		stored, err := o.chunks.ListChunks(ctx, asset.ProjectId, asset.Id)
		if err != nil {
			return err
		}
		ids := make([]string, len(stored))
		for i, c := range stored {
			ids[i] = c.Id
		}
		if err := o.vectors.Delete(ctx, asset.ProjectId, ids); err != nil {
			return err
		}
	}
	deleted, err := o.chunks.DeleteChunks(ctx, asset.ProjectId, asset.Id)
	if err != nil {
		return err
	}
	log.Info("asset reset", "assetId", asset.Id, "chunksDeleted", deleted)
	return nil
}

// ResetProject drops every chunk of the project and its vector collection.
func (o *Orchestrator) ResetProject(ctx context.Context, projectId string) error {
	if err := ragModel.ValidateProjectId(projectId); err != nil {
		return err
	}
	deleted, err := o.chunks.DeleteChunks(ctx, projectId, "")
	if err != nil {
		return err
	}
	if o.vectors != nil {
		if err := o.vectors.DeleteCollection(ctx, projectId); err != nil {
			return err
		}
	}
	logger.FromContext(ctx).Info("project reset", "projectId", projectId, "chunksDeleted", deleted)
	return nil
}

// buildChunks assigns ids and 1-based orders in splitter order. Blank windows are dropped first
// so the orders stay gap free.
func buildChunks(content string, asset ragModel.Asset, chunkSize, overlapSize int) ([]ragModel.Chunk, error) {
	if textnorm.IsBlank(content) {
		return nil, ragModel.NewError(ragModel.ErrNoChunksProduced, "split", "asset %q has no text content", asset.AssetName)
	}
	candidates, err := splitter.Split(content, chunkSize, overlapSize)
	if err != nil {
		return nil, err
	}

	chunks := make([]ragModel.Chunk, 0, len(candidates))
	for _, c := range candidates {
		if textnorm.IsBlank(c.Text) {
			continue
		}
		chunks = append(chunks, ragModel.Chunk{
			Id:            uuid.NewString(),
			ChunkText:     c.Text,
			ChunkMetadata: maps.Clone(c.Metadata),
			ChunkOrder:    len(chunks) + 1,
			ProjectId:     asset.ProjectId,
			AssetId:       asset.Id,
		})
	}
	if len(chunks) == 0 {
		return nil, ragModel.NewError(ragModel.ErrNoChunksProduced, "split", "asset %q produced no chunks", asset.AssetName)
	}
	return chunks, nil
}

// upsert ensures the collection and writes one record per chunk in a single call.
func (o *Orchestrator) upsert(ctx context.Context, projectId string, chunks []ragModel.Chunk, vectors [][]float32, names map[string]string) (int, error) {
	// a cancelled caller must not get a vector commit after the chunks
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := o.vectors.EnsureCollection(ctx, projectId, o.embedder.EmbeddingSize(), o.metric); err != nil {
		return 0, err
	}

	records := make([]ragModel.VectorRecord, len(chunks))
	for i, c := range chunks {
		records[i] = ragModel.VectorRecord{
			ChunkId: c.Id,
			Vector:  vectors[i],
			Metadata: map[string]any{
				MetaProjectId:  projectId,
				MetaAssetId:    c.AssetId,
				MetaAssetName:  names[c.AssetId],
				MetaChunkOrder: c.ChunkOrder,
			},
		}
	}
	if err := o.vectors.Upsert(ctx, projectId, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// Reembed embeds already persisted chunks again and upserts them by chunk id, which makes it safe
// to repeat. An empty assetName covers the whole project.
func (o *Orchestrator) Reembed(ctx context.Context, projectId, assetName string) (IngestResult, error) {
	r := &run{
		reembed: true,
		log:     logger.FromContext(ctx).With("projectId", projectId, "asset", assetName, "mode", "reembed"),
		start:   time.Now(),
	}
	r.enter(ragModel.StateValidating)
	if err := ragModel.ValidateProjectId(projectId); err != nil {
		return r.fail(err)
	}
	if err := o.checkIndexing(); err != nil {
		return r.fail(err)
	}
	project, err := o.registry.GetOrCreateProject(ctx, projectId)
	if err != nil {
		return r.fail(err)
	}
	r.result.ProjectInternalId = project.Id

	asset := ragModel.Asset{ProjectId: projectId}
	if assetName != "" {
		if asset, err = o.registry.FindAsset(ctx, projectId, assetName); err != nil {
			return r.fail(err)
		}
		r.result.AssetId = asset.Id
	}

	chunks, err := o.chunks.ListChunks(ctx, projectId, asset.Id)
	if err != nil {
		return r.fail(err)
	}
	if len(chunks) == 0 {
		return r.fail(ragModel.NewError(ragModel.ErrNoChunksProduced, "reembed", "project %q has no stored chunks", projectId))
	}
	r.result.ChunksPersisted = len(chunks)

	r.enter(ragModel.StateEmbedding)
	vectors, err := o.embedAll(ctx, chunks)
	if err != nil {
		return r.fail(err)
	}

	r.enter(ragModel.StatePersisting)
	upserted, err := o.upsert(ctx, projectId, chunks, vectors, o.assetNames(ctx, projectId))
	if err != nil {
		if ragModel.KindOf(err) == nil {
			err = ragModel.Wrap(ragModel.ErrVectorStore, "reembed", err)
		}
		return r.fail(err)
	}
	r.result.VectorsUpserted = upserted

	r.enter(ragModel.StateDone)
	metrics.RecordIngestion(string(ragModel.StateDone), 0, r.result.VectorsUpserted)
	r.log.Info("chunks re-embedded", "vectors", r.result.VectorsUpserted)
	return r.result, nil
}

// assetNames maps asset ids to names for vector payloads. Lookup failures leave names blank.
func (o *Orchestrator) assetNames(ctx context.Context, projectId string) map[string]string {
	names := map[string]string{}
	assets, err := o.registry.ListAssets(ctx, projectId)
	if err != nil {
		logger.FromContext(ctx).Warn("could not list assets for payload names", "projectId", projectId, "error", err)
		return names
	}
	for _, a := range assets {
		names[a.Id] = a.AssetName
	}
	return names
}
