package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/akolanti/GoRAG/internal/adapter"
	"github.com/akolanti/GoRAG/internal/adapter/utils"
	"github.com/akolanti/GoRAG/internal/domain/jobModel"
	"github.com/akolanti/GoRAG/pkg/logger_i"
)

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but can't send a clean status code now
		logRH.Error("Error encoding response", "error", err)
	}
}

func validateId(id string, traceId string) (result jobModel.Job, isFound bool) {
	if id == "" {
		logRH.Warn("Empty Job ID")
		return jobModel.Job{}, false
	}
	return GetJobStatus(id, traceId)
}

// validateContext reports whether the request is still worth serving.
func validateContext(r *http.Request) bool {
	if err := r.Context().Err(); err != nil {
		logRH.FromContext(r.Context()).Warn("context error", "error", err, "remoteAddr", r.RemoteAddr)
		return false
	}
	return true
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, id string, error string) {
	writeJsonResponse(w, httpCode, adapter.BadRequest(id, error, httpCode))
}

func writeSignalError(w http.ResponseWriter, httpCode int, id string, message string, signal jobModel.Signal) {
	writeJsonResponse(w, httpCode, adapter.BadRequestWithSignal(id, message, httpCode, signal))
}

func queueJob(w http.ResponseWriter, r *http.Request, newJob newJobData) {
	newJob.id = utils.GetNewUUID()
	newJob.traceId = logger_i.TraceId(r.Context())
	CreateNewJob(newJob)
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(newJob.id))
}
