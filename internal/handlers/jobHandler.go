package handlers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akolanti/GoRAG/internal/api"
	"github.com/akolanti/GoRAG/internal/config"
	"github.com/akolanti/GoRAG/internal/domain/jobModel"
	"github.com/akolanti/GoRAG/internal/job"
	"github.com/akolanti/GoRAG/internal/metrics"
	"github.com/akolanti/GoRAG/pkg/logger_i"
)

var (
	handlerInstance *JobHandler //private singleton
	once            sync.Once
	logJH           = logger_i.NewLogger("JobHandler")
)

type JobHandler struct {
	service *job.Service
}

func InitJobHandler(jobService *job.Service) {
	once.Do(func() {
		handlerInstance = &JobHandler{service: jobService}
		logJH.Info("Starting job handler")
	})
}

func CreateNewJob(newJob newJobData) {
	log := logJH.With("traceId", newJob.traceId, "jobId", newJob.id, "jobType", newJob.jobType)
	log.Info("Creating new job")
	if newJob.isNewChat {
		log.Info("Create new chat", "chatId", newJob.chatId)
		handlerInstance.initNewChat(newJob.chatId, newJob.traceId)
	}
	handlerInstance.pushToJobChannel(newJob, log)
}

func GetJobStatus(id string, traceId string) (result jobModel.Job, isFound bool) {
	ctxC := logger_i.WithTraceId(context.Background(), traceId)
	if handlerInstance != nil {
		return handlerInstance.service.JobStore.GetJob(ctxC, id)
	}
	return result, false
}

func ValidateChatRequest(ctx context.Context, chatReq api.ChatRequest) bool {
	if handlerInstance == nil {
		return false
	}
	logJH.FromContext(ctx).Debug("Validating chat id", "chatId", chatReq.ChatID)
	if chatReq.Message == "" || chatReq.TopK < 0 {
		return false
	}
	if chatReq.ChatID == "" {
		return true
	}
	return handlerInstance.service.MessageStore.ValidateChatId(ctx, chatReq.ChatID)
}

// private methods
func (h *JobHandler) pushToJobChannel(newJob newJobData, log *logger_i.Logger) {
	_job := jobModel.Job{
		Id:          newJob.id,
		ChatId:      newJob.chatId,
		ProjectId:   newJob.projectId,
		TraceId:     newJob.traceId,
		JobType:     newJob.jobType,
		JobPayload:  newJob.payload,
		CreatedTime: time.Now(),
		Status:      jobModel.JobStatusQueued,
	}
	if newJob.jobType == jobModel.JobTypeQuery {
		_job.CurrentStep = jobModel.QueryInit
	} else {
		_job.CurrentStep = jobModel.IngestInit
	}

	// saved before queueing so a status request right after 202 finds it
	ctx := logger_i.WithTraceId(context.Background(), newJob.traceId)
	if err := h.service.JobStore.SaveJob(ctx, _job); err != nil {
		log.Error("Failed to save queued job", "error", err)
	}

	metrics.IncrementJobsInQueue()

	h.service.JobChannel <- _job //this is a blocking send to prevent the system from being overwhelmed
	log.Info("Created new job")

	//a new worker is started every RequestsPerNewWorkerCount requests, and for every ingest or
	//reembed job since those fan out to the embedding backend. Idle workers retire on their own.
	accurateCount := atomic.AddInt64(&h.service.RequestCount, 1)
	if accurateCount%config.RequestsPerNewWorkerCount == 0 || _job.JobType != jobModel.JobTypeQuery {
		metrics.StartDispatcherSignalCount()
		log.Debug("Signalling dispatcher", "requestCount", accurateCount)
		h.service.DispatcherChannel <- true
	}
}

func (h *JobHandler) initNewChat(chatId string, traceId string) {
	ctxC := logger_i.WithTraceId(context.Background(), traceId)
	err := h.service.MessageStore.InitNewChat(ctxC, chatId)
	if err != nil {
		logJH.Error("Error initiating new chat", "chatId", chatId, "error", err)
	}
}
