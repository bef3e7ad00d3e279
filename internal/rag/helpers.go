package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akolanti/GoRAG/internal/config"
	"github.com/akolanti/GoRAG/internal/domain/jobModel"
	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/akolanti/GoRAG/internal/metrics"
	"github.com/akolanti/GoRAG/internal/rag/llm"
	"github.com/akolanti/GoRAG/pkg/logger_i"
)

func returnOutput(job jobModel.Job, signal jobModel.Signal) jobModel.Job {
	job.JobPayload.Signal = signal
	job.CurrentStep = jobModel.Complete
	job.Status = jobModel.JobStatusComplete
	job.Error = nil
	return job
}

func logOutput(job jobModel.Job, status jobModel.InternalStatus, log *logger_i.Logger) jobModel.Job {
	job.CurrentStep = status
	log.Debug("job step", "currentStep", job.CurrentStep, "ingestionState", job.JobPayload.FinalState)
	return job
}

func (s *service) jobError(job jobModel.Job, err error, signal jobModel.Signal, log *logger_i.Logger) jobModel.Job {
	log.Error("job failed", "step", job.CurrentStep, "signal", signal, "error", err)

	job.Error = jobModel.NewJobError(err, signal)
	job.JobPayload.Signal = signal
	job.CurrentStep = jobModel.Error
	job.Status = jobModel.JobStatusError
	return job
}

func (s *service) executeEmbeddingStep(ctx context.Context, query string) ([]float32, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("embedding", time.Since(start)) }()

	return s.embedder.Embed(ctx, query, ragModel.DocumentTypeQuery)
}

// executeVectorSearchStep turns every search failure, including an empty result, into ErrVectorSearch.
func (s *service) executeVectorSearchStep(ctx context.Context, projectId string, vector []float32, topK int) ([]ragModel.SearchHit, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("vector_search", time.Since(start)) }()

	hits, err := s.vectors.Query(ctx, projectId, vector, topK)
	if err != nil {
		if errors.Is(err, ragModel.ErrVectorSearch) {
			return nil, err
		}
		return nil, ragModel.Wrap(ragModel.ErrVectorSearch, "search", err)
	}
	if len(hits) == 0 {
		return nil, ragModel.NewError(ragModel.ErrVectorSearch, "search", "no results for project %q", projectId)
	}
	return hits, nil
}

// executeChunkFetchStep resolves hits to chunk text, best first. Hits whose chunk is gone are skipped.
func (s *service) executeChunkFetchStep(ctx context.Context, projectId string, hits []ragModel.SearchHit) ([]ragModel.RetrievedChunk, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("chunk_fetch", time.Since(start)) }()

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ChunkId
	}
	chunks, err := s.chunks.GetChunks(ctx, projectId, ids)
	if err != nil {
		return nil, ragModel.Wrap(ragModel.ErrVectorSearch, "fetch chunks", err)
	}
	byId := make(map[string]ragModel.Chunk, len(chunks))
	for _, c := range chunks {
		byId[c.Id] = c
	}

	out := make([]ragModel.RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		c, ok := byId[h.ChunkId]
		if !ok || strings.TrimSpace(c.ChunkText) == "" {
			continue
		}
		out = append(out, ragModel.RetrievedChunk{
			ChunkId:    c.Id,
			AssetId:    c.AssetId,
			ChunkOrder: c.ChunkOrder,
			Score:      h.Score,
			Text:       c.ChunkText,
		})
	}
	if len(out) == 0 {
		return nil, ragModel.NewError(ragModel.ErrVectorSearch, "fetch chunks",
			"none of the %d hits map to a stored chunk", len(hits))
	}
	return out, nil
}

func (s *service) executeLLMStep(ctx context.Context, prompt string, history []ragModel.ChatMessage) (llm.GenerateResult, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("llm_generation", time.Since(start)) }()

	result, err := s.generator.Generate(ctx, llm.GenerateRequest{
		Prompt:  prompt,
		History: withSystemContext(history),
	})
	if err != nil {
		return llm.GenerateResult{}, ragModel.Wrap(ragModel.ErrGenerationFailed, "generate answer", err)
	}
	return result, nil
}

// withSystemContext returns a new history that starts with the assistant instructions.
func withSystemContext(history []ragModel.ChatMessage) []ragModel.ChatMessage {
	out := make([]ragModel.ChatMessage, 0, len(history)+1)
	out = append(out, ragModel.ChatMessage{Role: ragModel.RoleSystem, Text: config.ModelContext})
	return append(out, withoutSystem(history)...)
}

func withoutSystem(history []ragModel.ChatMessage) []ragModel.ChatMessage {
	out := make([]ragModel.ChatMessage, 0, len(history))
	for _, m := range history {
		if m.Role != ragModel.RoleSystem {
			out = append(out, m)
		}
	}
	return out
}

// buildPrompt lists the chunks in the given order followed by the question, and reports how
// many chunks fit. maxChars <= 0 means no limit. The first chunk is cut rather than dropped.
func buildPrompt(sources []ragModel.RetrievedChunk, query string, maxChars int) (string, int) {
	query = strings.TrimSpace(query)
	tail := fmt.Sprintf("\nUser Question: %s", query)
	budget := maxChars - len([]rune("Context:\n")) - len([]rune(tail))

	var sb strings.Builder
	sb.WriteString("Context:\n")
	used := 0
	for i, src := range sources {
		entry := fmt.Sprintf("[%d] %s\n\n", i+1, strings.TrimSpace(src.Text))
		size := len([]rune(entry))
		if maxChars > 0 && size > budget {
			if i == 0 && budget > 0 {
				sb.WriteString(string([]rune(entry)[:budget]))
				used = 1
			}
			break
		}
		sb.WriteString(entry)
		budget -= size
		used++
	}
	sb.WriteString(tail)
	return sb.String(), used
}
