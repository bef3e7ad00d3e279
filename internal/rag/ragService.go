package rag

import (
	"context"
	"strings"
	"time"

	"github.com/akolanti/GoRAG/internal/config"
	"github.com/akolanti/GoRAG/internal/domain/jobModel"
	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/akolanti/GoRAG/internal/metrics"
	"github.com/akolanti/GoRAG/internal/rag/embedding"
	"github.com/akolanti/GoRAG/internal/rag/ingest"
	"github.com/akolanti/GoRAG/internal/rag/llm"
	"github.com/akolanti/GoRAG/internal/rag/vectorDB"
	"github.com/akolanti/GoRAG/pkg/logger_i"
)

/*
Service is the only thing workers, handlers and the CLI talk to. The struct behind it stays
private so callers cannot reach the embedder, generator or stores directly, and tests swap
any of them through Config.
*/
type Service interface {
	// Answer retrieves the project's nearest chunks for the query and generates a grounded answer.
	Answer(ctx context.Context, req AnswerRequest) (Answer, error)
	ProcessRequest(ctx context.Context, job jobModel.Job, history []ragModel.ChatMessage) jobModel.Job
	IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job
	ReembedDocuments(ctx context.Context, job jobModel.Job) jobModel.Job
}

// Ingestor is satisfied by *ingest.Orchestrator.
type Ingestor interface {
	ProcessAsset(ctx context.Context, req ingest.ProcessRequest) (ingest.IngestResult, error)
	Reembed(ctx context.Context, projectId, assetName string) (ingest.IngestResult, error)
}

type AnswerRequest struct {
	ProjectId string
	Query     string
	TopK      int //zero means the configured default
	History   []ragModel.ChatMessage
}

type Answer struct {
	Text    string
	Sources []ragModel.RetrievedChunk
	History []ragModel.ChatMessage
}

type Config struct {
	// Registry, when set, gets or creates the queried project so a query counts as its first reference.
	Registry  ragModel.Registry
	Embedder  embedding.Embedder
	Generator llm.Provider
	Vectors   vectorDB.DataProcessor
	Chunks    ragModel.ChunkStore
	Ingestor  Ingestor

	TopK int
	// MaxPromptChars bounds the assembled prompt so the question survives the generator's truncation.
	MaxPromptChars int
	IndexOnIngest  bool
}

type service struct {
	registry       ragModel.Registry
	embedder       embedding.Embedder
	generator      llm.Provider
	vectors        vectorDB.DataProcessor
	chunks         ragModel.ChunkStore
	ingestor       Ingestor
	topK           int
	maxPromptChars int
	indexOnIngest  bool
	logger         *logger_i.Logger
}

func NewService(cfg Config) Service {
	if cfg.TopK <= 0 {
		cfg.TopK = config.DefaultTopK
	}
	return &service{
		registry:       cfg.Registry,
		embedder:       cfg.Embedder,
		generator:      cfg.Generator,
		vectors:        cfg.Vectors,
		chunks:         cfg.Chunks,
		ingestor:       cfg.Ingestor,
		topK:           cfg.TopK,
		maxPromptChars: cfg.MaxPromptChars,
		indexOnIngest:  cfg.IndexOnIngest,
		logger:         logger_i.NewLogger("RAG Service"),
	}
}

func (s *service) Answer(ctx context.Context, req AnswerRequest) (Answer, error) {
	return s.answer(ctx, req, s.logger.FromContext(ctx), func(jobModel.InternalStatus) {})
}

// answer runs embed, search, fetch and generate in order. step is told about each one.
func (s *service) answer(ctx context.Context, req AnswerRequest, log *logger_i.Logger, step func(jobModel.InternalStatus)) (Answer, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("rag_answer", time.Since(start)) }()

	if err := ragModel.ValidateProjectId(req.ProjectId); err != nil {
		return Answer{}, err
	}
	if strings.TrimSpace(req.Query) == "" {
		return Answer{}, ragModel.NewError(ragModel.ErrInvalidQuery, "answer", "query is empty")
	}
	if s.embedder == nil {
		return Answer{}, ragModel.NewError(ragModel.ErrEmbeddingUnavailable, "answer", "no embedding backend configured")
	}
	if s.generator == nil {
		return Answer{}, ragModel.NewError(ragModel.ErrGenerationUnavailable, "answer", "no generation backend configured")
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.topK
	}
	if s.registry != nil {
		if _, err := s.registry.GetOrCreateProject(ctx, req.ProjectId); err != nil {
			return Answer{}, err
		}
	}

	step(jobModel.EmbeddingAPICall)
	queryVector, err := s.executeEmbeddingStep(ctx, req.Query)
	if err != nil {
		return Answer{}, err
	}

	step(jobModel.VectorDBCall)
	hits, err := s.executeVectorSearchStep(ctx, req.ProjectId, queryVector, topK)
	if err != nil {
		return Answer{}, err
	}

	step(jobModel.ChunkStoreCall)
	sources, err := s.executeChunkFetchStep(ctx, req.ProjectId, hits)
	if err != nil {
		return Answer{}, err
	}

	prompt, used := buildPrompt(sources, req.Query, s.maxPromptChars)
	if used == 0 {
		return Answer{}, ragModel.NewError(ragModel.ErrInvalidQuery, "answer", "query leaves no room for retrieved context")
	}
	sources = sources[:used]
	log.Debug("prompt assembled", "hits", len(hits), "chunksUsed", used, "characters", len([]rune(prompt)))

	step(jobModel.LLMCall)
	result, err := s.executeLLMStep(ctx, prompt, req.History)
	if err != nil {
		return Answer{}, err
	}

	return Answer{Text: result.Text, Sources: sources, History: withoutSystem(result.History)}, nil
}

// ProcessRequest answers a query job. The job comes back with the answer or a classified error.
func (s *service) ProcessRequest(ctx context.Context, job jobModel.Job, history []ragModel.ChatMessage) jobModel.Job {
	log := s.logger.FromContext(ctx).With("jobId", job.Id, "projectId", job.ProjectId)

	processContext, cancel := context.WithTimeout(ctx, config.QueryTimeout)
	defer cancel()

	job.CurrentStep = jobModel.QueryInit
	answer, err := s.answer(processContext, AnswerRequest{
		ProjectId: job.ProjectId,
		Query:     job.JobPayload.Question,
		TopK:      job.JobPayload.TopK,
		History:   history,
	}, log, func(status jobModel.InternalStatus) {
		job = logOutput(job, status, log)
	})
	if err != nil {
		return s.jobError(job, err, jobModel.SignalAnswerFailed, log)
	}

	job.JobPayload.Answer = answer.Text
	job.JobPayload.Sources = answer.Sources
	return returnOutput(job, jobModel.SignalAnswerSuccess)
}

// IngestDocument runs an ingest job through the orchestrator, mirroring each state on the job.
func (s *service) IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job {
	log := s.logger.FromContext(ctx).With("jobId", job.Id, "projectId", job.ProjectId)
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("document_ingestion", time.Since(start)) }()

	job = logOutput(job, jobModel.IngestInit, log)
	chunkSize, overlap := ChunkDefaults(job.JobPayload.ChunkSize, job.JobPayload.OverlapSize)

	res, err := s.ingestor.ProcessAsset(ctx, ingest.ProcessRequest{
		ProjectId:   job.ProjectId,
		AssetName:   job.JobPayload.AssetName,
		ChunkSize:   chunkSize,
		OverlapSize: overlap,
		Reset:       job.JobPayload.Reset,
		Index:       s.indexOnIngest,
		OnState: func(state ragModel.IngestionState) {
			job.JobPayload.FinalState = state
			job = logOutput(job, jobModel.IngestProcessing, log)
		},
	})
	job.JobPayload.ChunksCreated = res.ChunksPersisted
	job.JobPayload.VectorsUpserted = res.VectorsUpserted
	job.JobPayload.FinalState = res.FinalState
	if err != nil {
		signal := jobModel.SignalProcessingFailed
		if ragModel.KindOf(err) == ragModel.ErrPartiallyPersisted {
			signal = jobModel.SignalPartiallyPersisted
		}
		return s.jobError(job, err, signal, log)
	}
	return returnOutput(job, jobModel.SignalProcessingSuccess)
}

// ReembedDocuments re-embeds stored chunks for one asset, or the whole project when no asset is named.
func (s *service) ReembedDocuments(ctx context.Context, job jobModel.Job) jobModel.Job {
	log := s.logger.FromContext(ctx).With("jobId", job.Id, "projectId", job.ProjectId)
	job = logOutput(job, jobModel.IngestProcessing, log)

	res, err := s.ingestor.Reembed(ctx, job.ProjectId, job.JobPayload.AssetName)
	job.JobPayload.ChunksCreated = 0
	job.JobPayload.VectorsUpserted = res.VectorsUpserted
	job.JobPayload.FinalState = res.FinalState
	if err != nil {
		return s.jobError(job, err, jobModel.SignalReembedFailed, log)
	}
	return returnOutput(job, jobModel.SignalReembedSuccess)
}

// ChunkDefaults fills an unset chunk size, and its overlap with it, from config.
func ChunkDefaults(chunkSize, overlapSize int) (int, int) {
	if chunkSize > 0 {
		return chunkSize, overlapSize
	}
	if overlapSize <= 0 {
		overlapSize = config.DefaultOverlapSize
	}
	return config.DefaultChunkSize, overlapSize
}
