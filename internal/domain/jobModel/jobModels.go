package jobModel

import (
	"context"
	"time"

	"github.com/akolanti/GoRAG/internal/domain/ragModel"
)

type JobStatus string
type InternalStatus string

type JobType string

// Signal is the short outcome code clients switch on.
type Signal string

const (
	JobStatusQueued   JobStatus = "QUEUED"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusComplete JobStatus = "COMPLETE"
	JobStatusError    JobStatus = "ERROR"

	QueryInit        InternalStatus = "Init"
	EmbeddingAPICall InternalStatus = "EmbeddingAPI"
	VectorDBCall     InternalStatus = "VectorDB"
	ChunkStoreCall   InternalStatus = "ChunkStore"
	LLMCall          InternalStatus = "LLM"
	RedisCall        InternalStatus = "Redis"

	IngestInit       InternalStatus = "IngestInit"
	IngestProcessing InternalStatus = "IngestProcessing"
	Error            InternalStatus = "Error"

	Complete InternalStatus = "Complete"

	JobTypeQuery   JobType = "Query"
	JobTypeIngest  JobType = "Ingest"
	JobTypeReembed JobType = "Reembed"

	SignalFileUploadSuccess   Signal = "FILE_UPLOAD_SUCCESS"
	SignalFileUploadFailed    Signal = "FILE_UPLOAD_FAILED"
	SignalFileTypeUnsupported Signal = "FILE_TYPE_NOT_SUPPORTED"
	SignalFileSizeExceeded    Signal = "FILE_SIZE_EXCEEDED"
	SignalProcessingSuccess   Signal = "PROCESSING_SUCCESS"
	SignalProcessingFailed    Signal = "PROCESSING_FAILED"
	SignalPartiallyPersisted  Signal = "PROCESSING_PARTIAL"
	SignalAnswerSuccess       Signal = "ANSWER_SUCCESS"
	SignalAnswerFailed        Signal = "ANSWER_FAILED"
	SignalReembedSuccess      Signal = "REEMBED_SUCCESS"
	SignalReembedFailed       Signal = "REEMBED_FAILED"
)

type Job struct {
	Id          string         `json:"id"`
	ChatId      string         `json:"chat_id,omitempty"`
	ProjectId   string         `json:"project_id"`
	TraceId     string         `json:"trace_id"`
	JobType     JobType        `json:"job_type"`
	JobPayload  JobPayload     `json:"job_payload"`
	Error       *JobError      `json:"error,omitempty"`
	CreatedTime time.Time      `json:"created_time"`
	EndTime     time.Time      `json:"end_time,omitempty"`
	Status      JobStatus      `json:"status"`
	CurrentStep InternalStatus `json:"current_step"`
}

type JobError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Signal  Signal `json:"signal,omitempty"`
	Retry   bool   `json:"retry"`
}

type JobPayload struct {
	Question string                    `json:"question,omitempty"`
	Answer   string                    `json:"answer,omitempty"`
	Sources  []ragModel.RetrievedChunk `json:"sources,omitempty"`
	TopK     int                       `json:"top_k,omitempty"`

	AssetName   string `json:"asset_name,omitempty"`
	ChunkSize   int    `json:"chunk_size,omitempty"`
	OverlapSize int    `json:"overlap_size,omitempty"`
	Reset       bool   `json:"reset,omitempty"`

	ChunksCreated   int                     `json:"chunks_created,omitempty"`
	VectorsUpserted int                     `json:"vectors_upserted,omitempty"`
	FinalState      ragModel.IngestionState `json:"final_state,omitempty"`
	Signal          Signal                  `json:"signal,omitempty"`
}

// NewJobError classifies err with the same codes the API reports.
func NewJobError(err error, signal Signal) *JobError {
	return &JobError{
		Code:    ragModel.HTTPStatus(err),
		Message: err.Error(),
		Signal:  signal,
		Retry:   ragModel.IsTransient(err),
	}
}

type JobStore interface {
	GetJob(ctx context.Context, jobId string) (Job, bool)
	SaveJob(ctx context.Context, job Job) error
	DeleteJob(ctx context.Context, jobID string)
}

// MessageStore keeps per-chat history. Only user and assistant turns are stored.
type MessageStore interface {
	ValidateChatId(ctx context.Context, id string) bool
	InitNewChat(ctx context.Context, id string) error
	AppendMessages(ctx context.Context, id string, messages ...ragModel.ChatMessage) error
	// GetMessageHistory returns the most recent window of messages, oldest first.
	GetMessageHistory(ctx context.Context, chatId string) ([]ragModel.ChatMessage, error)
}
