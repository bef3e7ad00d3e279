package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/akolanti/GoRAG/internal/adapter"
	"github.com/akolanti/GoRAG/internal/adapter/utils"
	"github.com/akolanti/GoRAG/internal/api"
	"github.com/akolanti/GoRAG/internal/config"
	"github.com/akolanti/GoRAG/internal/data/fileStore"
	"github.com/akolanti/GoRAG/internal/domain/jobModel"
	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/akolanti/GoRAG/internal/rag"
	"github.com/akolanti/GoRAG/pkg/logger_i"
)

var logRH = logger_i.NewLogger("RequestHandler")

// newJobData is what a handler hands to the job handler.
type newJobData struct {
	id        string
	chatId    string
	projectId string
	isNewChat bool
	traceId   string
	jobType   jobModel.JobType
	payload   jobModel.JobPayload
}

// WelcomeHandler godoc
// @Summary      Service info
// @Tags         Base
// @Produce      json
// @Success      200  {object}  api.WelcomeResponse
// @Router       /api/v1/ [get]
func WelcomeHandler(w http.ResponseWriter, r *http.Request) {
	writeJsonResponse(w, http.StatusOK, api.WelcomeResponse{AppName: config.AppName, AppVersion: config.AppVersion})
}

// UploadHandler godoc
// @Summary      Upload a source file
// @Description  Stores the file under the project and registers it as an asset. The returned file_id is used by process and reembed.
// @Tags         Data
// @Accept       multipart/form-data
// @Produce      json
// @Param        project_id  path      string  true  "Project ID"
// @Param        file        formData  file    true  "A text, PDF, DOCX, RTF or ODT file"
// @Success      200  {object}  api.UploadResponse
// @Failure      400  {object}  api.JobResponse  "FILE_TYPE_NOT_SUPPORTED, FILE_SIZE_EXCEEDED or a bad project id"
// @Failure      500  {object}  api.JobResponse  "FILE_UPLOAD_FAILED"
// @Router       /api/v1/data/upload/{project_id} [post]
func UploadHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r) {
		return
	}
	log := logRH.FromContext(r.Context())
	projectId := utils.GetChiURLParam(r, "project_id")
	if err := ragModel.ValidateProjectId(projectId); err != nil {
		writeSignalError(w, http.StatusBadRequest, projectId, err.Error(), jobModel.SignalFileUploadFailed)
		return
	}

	// room for the multipart framing on top of the file itself
	r.Body = http.MaxBytesReader(w, r.Body, int64(config.FileMaxSizeMB+1)<<20)
	fileReader, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeSignalError(w, http.StatusBadRequest, projectId, "file too large", jobModel.SignalFileSizeExceeded)
			return
		}
		writeSignalError(w, http.StatusBadRequest, projectId, "could not read form file", jobModel.SignalFileUploadFailed)
		return
	}
	defer fileReader.Close()

	contentType := header.Header.Get("Content-Type")
	store := handlerInstance.service.FileStore
	if err := store.ValidateUpload(contentType, header.Size); err != nil {
		writeSignalError(w, http.StatusBadRequest, projectId, err.Error(), uploadSignal(err))
		return
	}

	name, written, err := store.Save(r.Context(), projectId, header.Filename, fileReader)
	if err != nil {
		log.Error("Failed to store upload", "projectId", projectId, "error", err)
		writeSignalError(w, ragModel.HTTPStatus(err), projectId, err.Error(), uploadSignal(err))
		return
	}

	registry := handlerInstance.service.Registry
	if _, err := registry.GetOrCreateProject(r.Context(), projectId); err != nil {
		_ = store.Remove(projectId, name)
		writeSignalError(w, ragModel.HTTPStatus(err), projectId, err.Error(), jobModel.SignalFileUploadFailed)
		return
	}
	asset, err := registry.CreateAsset(r.Context(), ragModel.Asset{
		ProjectId:   projectId,
		AssetType:   strings.TrimSpace(strings.Split(contentType, ";")[0]),
		AssetName:   name,
		AssetSize:   written,
		AssetConfig: map[string]any{"original_name": header.Filename},
	})
	if err != nil {
		_ = store.Remove(projectId, name)
		writeSignalError(w, ragModel.HTTPStatus(err), projectId, err.Error(), jobModel.SignalFileUploadFailed)
		return
	}

	log.Info("Upload registered", "projectId", projectId, "asset", name, "bytes", written)
	writeJsonResponse(w, http.StatusOK, api.UploadResponse{
		Signal:  string(jobModel.SignalFileUploadSuccess),
		FileId:  asset.AssetName,
		AssetId: asset.Id,
	})
}

func uploadSignal(err error) jobModel.Signal {
	switch {
	case errors.Is(err, fileStore.ErrFileTypeNotSupported):
		return jobModel.SignalFileTypeUnsupported
	case errors.Is(err, fileStore.ErrFileSizeExceeded):
		return jobModel.SignalFileSizeExceeded
	}
	return jobModel.SignalFileUploadFailed
}

// ProcessHandler godoc
// @Summary      Chunk and index an uploaded file
// @Description  Validates the request synchronously, then queues an ingest job. Poll status_url for chunks_created.
// @Tags         Data
// @Accept       json
// @Produce      json
// @Param        project_id  path  string              true  "Project ID"
// @Param        request     body  api.ProcessRequest  true  "File id and chunking parameters"
// @Success      202  {object}  api.InitJobResponse
// @Failure      400  {object}  api.JobResponse
// @Failure      404  {object}  api.JobResponse  "Unknown file_id"
// @Router       /api/v1/data/process/{project_id} [post]
func ProcessHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r) {
		return
	}
	projectId := utils.GetChiURLParam(r, "project_id")
	var req api.ProcessRequest
	if !decodeBody(w, r, &req, projectId, jobModel.SignalProcessingFailed) {
		return
	}

	chunkSize, overlap := rag.ChunkDefaults(req.ChunkSize, req.OverlapSize)
	err := ragModel.ValidateProjectId(projectId)
	if err == nil {
		err = ragModel.ValidateChunkParameters(chunkSize, overlap)
	}
	if err == nil && strings.TrimSpace(req.FileId) == "" {
		err = ragModel.NewError(ragModel.ErrInvalidAsset, "validate", "file_id is required")
	}
	if err == nil {
		_, err = handlerInstance.service.Registry.FindAsset(r.Context(), projectId, req.FileId)
	}
	if err != nil {
		writeSignalError(w, ragModel.HTTPStatus(err), projectId, err.Error(), jobModel.SignalProcessingFailed)
		return
	}

	queueJob(w, r, newJobData{
		projectId: projectId,
		jobType:   jobModel.JobTypeIngest,
		payload: jobModel.JobPayload{
			AssetName:   req.FileId,
			ChunkSize:   chunkSize,
			OverlapSize: overlap,
			Reset:       req.DoReset,
		},
	})
}

// ReembedHandler godoc
// @Summary      Re-embed stored chunks
// @Description  Embeds already persisted chunks again and upserts them. Repairs a PROCESSING_PARTIAL run. Omit file_id for the whole project.
// @Tags         Data
// @Accept       json
// @Produce      json
// @Param        project_id  path  string              true   "Project ID"
// @Param        request     body  api.ReembedRequest  false  "Optional file id"
// @Success      202  {object}  api.InitJobResponse
// @Failure      400  {object}  api.JobResponse
// @Router       /api/v1/data/reembed/{project_id} [post]
func ReembedHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r) {
		return
	}
	projectId := utils.GetChiURLParam(r, "project_id")
	var req api.ReembedRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req, projectId, jobModel.SignalReembedFailed) {
		return
	}
	if err := ragModel.ValidateProjectId(projectId); err != nil {
		writeSignalError(w, http.StatusBadRequest, projectId, err.Error(), jobModel.SignalReembedFailed)
		return
	}
	queueJob(w, r, newJobData{
		projectId: projectId,
		jobType:   jobModel.JobTypeReembed,
		payload:   jobModel.JobPayload{AssetName: req.FileId},
	})
}

// AssetsHandler godoc
// @Summary      List a project's assets
// @Tags         Data
// @Produce      json
// @Param        project_id  path  string  true  "Project ID"
// @Success      200  {object}  api.AssetsResponse
// @Failure      400  {object}  api.JobResponse
// @Router       /api/v1/data/assets/{project_id} [get]
func AssetsHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r) {
		return
	}
	projectId := utils.GetChiURLParam(r, "project_id")
	if err := ragModel.ValidateProjectId(projectId); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, projectId, err.Error())
		return
	}
	assets, err := handlerInstance.service.Registry.ListAssets(r.Context(), projectId)
	if err != nil {
		logRH.FromContext(r.Context()).Error("Failed to list assets", "projectId", projectId, "error", err)
		WriteErrorResponse(w, ragModel.HTTPStatus(err), projectId, "could not list assets")
		return
	}
	if assets == nil {
		assets = []ragModel.Asset{}
	}
	writeJsonResponse(w, http.StatusOK, api.AssetsResponse{ProjectId: projectId, Assets: assets})
}

// ChatHandler godoc
// @Summary      Ask a question about a project
// @Description  Accepts a message, queues a retrieval and generation job, and returns a job ID to track status.
// @Tags         Messaging
// @Accept       json
// @Produce      json
// @Param        project_id  path      string               true  "Project ID"
// @Param        request     body      api.ChatRequest      true  "Chat Message and optional Chat ID"
// @Success      202         {object}  api.InitJobResponse  "Job successfully created"
// @Failure      400         {object}  api.JobResponse      "Invalid request data or chat ID"
// @Router       /api/v1/chat/{project_id} [post]
func ChatHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r) {
		return
	}
	projectId := utils.GetChiURLParam(r, "project_id")
	var requestData api.ChatRequest
	if !decodeBody(w, r, &requestData, projectId, jobModel.SignalAnswerFailed) {
		return
	}
	if err := ragModel.ValidateProjectId(projectId); err != nil || !ValidateChatRequest(r.Context(), requestData) {
		logRH.FromContext(r.Context()).Warn("Bad Chat Request", "error", err, "chatId", requestData.ChatID)
		WriteErrorResponse(w, http.StatusBadRequest, requestData.ChatID, "Bad Request")
		return
	}

	chatID := requestData.ChatID
	isNewChat := chatID == ""
	if isNewChat {
		chatID = utils.GetNewUUID()
	}
	queueJob(w, r, newJobData{
		chatId:    chatID,
		projectId: projectId,
		isNewChat: isNewChat,
		jobType:   jobModel.JobTypeQuery,
		payload:   jobModel.JobPayload{Question: requestData.Message, TopK: requestData.TopK},
	})
}

// GetStatusHandler godoc
// @Summary      Get job status
// @Description  Retrieves the current status of a specific job using its ID.
// @Tags         Job Status
// @Produce      json
// @Param        id   path      string  true  "Job ID "
// @Success      200  {object}  api.JobResponse   "Successful retrieval of job status"
// @Failure      404  {object}  api.JobResponse   "Job not found (returns Error object within JobResponse)"
// @Router       /api/v1/status/{id} [get]
func GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r) {
		return
	}
	idString := utils.GetChiURLParam(r, "id")
	result, isFound := validateId(idString, logger_i.TraceId(r.Context()))

	logRH.FromContext(r.Context()).Debug("Get Status Request", "path", r.URL.Path)
	if !isFound {
		WriteErrorResponse(w, http.StatusNotFound, idString, "Job not found")
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToAPIResponse(result))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any, id string, signal jobModel.Signal) bool {
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logRH.Error("Couldn't close the request body", "error", err)
		}
	}(r.Body)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logRH.FromContext(r.Context()).Warn("Undecodable request body", "error", err)
		writeSignalError(w, http.StatusBadRequest, id, "Bad Request", signal)
		return false
	}
	return true
}
