package api

import (
	"time"

	"github.com/akolanti/GoRAG/internal/domain/ragModel"
)

type JobExternalStatus string

const (
	JobStatusError JobExternalStatus = "Error"
)

type JobResponse struct {
	Id        string            `json:"id" example:"job_cz109"`
	ChatId    string            `json:"chat_id,omitempty" example:"chat_550"`
	ProjectId string            `json:"project_id,omitempty" example:"handbook"`
	JobType   string            `json:"job_type,omitempty" example:"Query"`
	Result    Result            `json:"result"`
	Error     *JobOutgoingError `json:"error,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
}

type JobOutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Message string `json:"message" example:"Job not found"`
	Signal  string `json:"signal,omitempty" example:"PROCESSING_FAILED"`
	Retry   bool   `json:"can_retry" example:"false"`
}

type RAGResponse struct {
	Question string                    `json:"question"`
	Answer   string                    `json:"answer"`
	Sources  []ragModel.RetrievedChunk `json:"sources"`
}

type IngestResponse struct {
	AssetName       string `json:"file_id"`
	ChunksCreated   int    `json:"chunks_created"`
	VectorsUpserted int    `json:"vectors_upserted"`
	FinalState      string `json:"final_state"`
}

type Result struct {
	Status              string          `json:"status"`
	Step                string          `json:"current_step,omitempty"`
	Signal              string          `json:"signal,omitempty"`
	RAGExternalResponse *RAGResponse    `json:"rag_response,omitempty"`
	IngestResponse      *IngestResponse `json:"ingest_response,omitempty"`
}

type InitJobResponse struct {
	Id        string `json:"id"`
	StatusURL string `json:"status_url"`
}

type WelcomeResponse struct {
	AppName    string `json:"app_name" example:"GoRAG"`
	AppVersion string `json:"app_version" example:"0.3.0"`
}

type UploadResponse struct {
	Signal  string `json:"signal" example:"FILE_UPLOAD_SUCCESS"`
	FileId  string `json:"file_id" example:"a1b2c3d4e5f6_handbook.pdf"`
	AssetId string `json:"asset_id"`
}

type AssetsResponse struct {
	ProjectId string           `json:"project_id"`
	Assets    []ragModel.Asset `json:"assets"`
}

// requests---------------------

type ChatRequest struct {
	Message string `json:"message" validate:"required" `
	ChatID  string `json:"chatID,omitempty" `
	TopK    int    `json:"top_k,omitempty"`
}

type ProcessRequest struct {
	FileId      string `json:"file_id" validate:"required"`
	ChunkSize   int    `json:"chunk_size,omitempty" example:"100"`
	OverlapSize int    `json:"overlap_size,omitempty" example:"20"`
	DoReset     bool   `json:"do_reset,omitempty"`
}

type ReembedRequest struct {
	FileId string `json:"file_id,omitempty"`
}
