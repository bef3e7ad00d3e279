package adapter

import (
	"github.com/akolanti/GoRAG/internal/api"
	"github.com/akolanti/GoRAG/internal/domain/jobModel"
)

const StatusPath = "/api/v1/status/"

func ToInitJobResponse(id string) api.InitJobResponse {
	return api.InitJobResponse{Id: id, StatusURL: StatusPath + id}
}

// ToAPIResponse renders a stored job for the status endpoint. Only the result block matching the
// job type is filled.
func ToAPIResponse(job jobModel.Job) api.JobResponse {
	resp := api.JobResponse{
		Id:        job.Id,
		ChatId:    job.ChatId,
		ProjectId: job.ProjectId,
		JobType:   string(job.JobType),
		StartTime: job.CreatedTime,
		EndTime:   job.EndTime,
		Error:     outgoingError(job.Error),
		Result: api.Result{
			Status: string(job.Status),
			Step:   string(job.CurrentStep),
			Signal: string(job.JobPayload.Signal),
		},
	}

	if job.JobType == jobModel.JobTypeIngest || job.JobType == jobModel.JobTypeReembed {
		resp.Result.IngestResponse = ToIngestResponse(job.JobPayload)
	} else {
		resp.Result.RAGExternalResponse = ToRAGExternalStatus(job.JobPayload)
	}
	return resp
}

func outgoingError(e *jobModel.JobError) *api.JobOutgoingError {
	if e == nil {
		return nil
	}
	return &api.JobOutgoingError{Code: e.Code, Message: e.Message, Signal: string(e.Signal), Retry: e.Retry}
}

// ToRAGExternalStatus is nil until the query job has produced something.
func ToRAGExternalStatus(payload jobModel.JobPayload) *api.RAGResponse {
	if payload.Answer == "" && len(payload.Sources) == 0 {
		return nil
	}
	return &api.RAGResponse{Question: payload.Question, Answer: payload.Answer, Sources: payload.Sources}
}

// ToIngestResponse is nil until the orchestrator has reported a state.
func ToIngestResponse(payload jobModel.JobPayload) *api.IngestResponse {
	if payload.FinalState == "" {
		return nil
	}
	return &api.IngestResponse{
		AssetName:       payload.AssetName,
		ChunksCreated:   payload.ChunksCreated,
		VectorsUpserted: payload.VectorsUpserted,
		FinalState:      string(payload.FinalState),
	}
}

func BadRequest(id string, message string, code int) api.JobResponse {
	return BadRequestWithSignal(id, message, code, "")
}

// BadRequestWithSignal builds the error body for requests rejected before a job exists.
func BadRequestWithSignal(id string, message string, code int, signal jobModel.Signal) api.JobResponse {
	return api.JobResponse{
		Id:    id,
		Error: outgoingError(&jobModel.JobError{Code: code, Message: message, Signal: signal}),
		Result: api.Result{
			Status: string(api.JobStatusError),
			Signal: string(signal),
		},
	}
}
