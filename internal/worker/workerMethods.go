package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/akolanti/GoRAG/internal/config"
	jobmodel "github.com/akolanti/GoRAG/internal/domain/jobModel"
	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/akolanti/GoRAG/internal/metrics"
	"github.com/akolanti/GoRAG/pkg/logger_i"
)

func executeJob(job jobmodel.Job) {
	start := time.Now()
	defer func() {
		metrics.CaptureJobMetrics(string(job.JobType), string(job.Status), string(job.JobPayload.Signal), time.Since(start))
	}()
	ctx, cancel := context.WithTimeout(logger_i.WithTraceId(context.Background(), job.TraceId), config.JobTimeout)
	defer cancel()
	log := logger.FromContext(ctx).With("jobId", job.Id, "jobType", job.JobType)
	log.Debug("Processing job")

	job.Status = jobmodel.JobStatusRunning
	saveJobState(ctx, job, log)

	switch job.JobType {
	case jobmodel.JobTypeIngest:
		job = _ragService.IngestDocument(ctx, job)
	case jobmodel.JobTypeReembed:
		job = _ragService.ReembedDocuments(ctx, job)
	case jobmodel.JobTypeQuery:
		job = processQuery(ctx, job, log)
	default:
		job.Error = jobmodel.NewJobError(ragModel.NewError(ragModel.ErrInvalidQuery, "execute job", "unknown job type %q", job.JobType), "")
		job.Status = jobmodel.JobStatusError
		job.CurrentStep = jobmodel.Error
	}

	job.EndTime = time.Now()
	// the job context may have expired, the final state still has to land
	saveCtx, saveCancel := context.WithTimeout(logger_i.WithTraceId(context.Background(), job.TraceId), 5*time.Second)
	defer saveCancel()
	saveJobState(saveCtx, job, log)
	log.Info("Job finished", "status", job.Status, "signal", job.JobPayload.Signal)
}

func removeWorker(reason string) {
	workerWaitGroup.Done()
	count := atomic.AddInt64(&currentWorkerCount, -1)
	logger.Info("Removed worker", "reason", reason, "workerCount", count)
	metrics.DecrementActiveWorkerCount()
}

// processQuery answers with the chat's recent history and records the exchange when it succeeds.
func processQuery(ctx context.Context, job jobmodel.Job, log *logger_i.Logger) jobmodel.Job {
	var history []ragModel.ChatMessage
	if job.ChatId != "" {
		job.CurrentStep = jobmodel.RedisCall
		h, err := _jobService.MessageStore.GetMessageHistory(ctx, job.ChatId)
		if err != nil {
			log.Error("Failed to get message history", "error", err)
		}
		history = h
	}

	job = _ragService.ProcessRequest(ctx, job, history)
	if job.Status == jobmodel.JobStatusError || job.ChatId == "" {
		return job
	}

	err := _jobService.MessageStore.AppendMessages(ctx, job.ChatId,
		ragModel.ChatMessage{Role: ragModel.RoleUser, Text: job.JobPayload.Question},
		ragModel.ChatMessage{Role: ragModel.RoleAssistant, Text: job.JobPayload.Answer})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Failed to save chat history", "error", err)
	}
	return job
}

func saveJobState(ctx context.Context, job jobmodel.Job, log *logger_i.Logger) {
	if err := _jobService.JobStore.SaveJob(ctx, job); err != nil {
		log.Error("Failed to save job state", "status", job.Status, "error", err)
	}
}
