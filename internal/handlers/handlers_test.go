package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/akolanti/GoRAG/internal/api"
	"github.com/akolanti/GoRAG/internal/data/fileStore"
	"github.com/akolanti/GoRAG/internal/data/store"
	"github.com/akolanti/GoRAG/internal/domain/jobModel"
	"github.com/akolanti/GoRAG/internal/job"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHandlers(t *testing.T) (*job.Service, http.Handler) {
	t.Helper()
	svc := job.InitJobService(job.ServiceConfig{
		JobChannel:        make(chan jobModel.Job, 10),
		DispatcherChannel: make(chan bool, 10),
		JobStore:          store.InitInMemoryJobStore(),
		MessageStore:      store.InitMessageStore(),
		Registry:          store.InitInMemoryRegistryStore(),
		FileStore:         fileStore.NewFileStore(t.TempDir()),
	})
	handlerInstance = &JobHandler{service: svc}
	t.Cleanup(func() { handlerInstance = nil })

	r := chi.NewRouter()
	r.Get("/api/v1/", WelcomeHandler)
	r.Post("/api/v1/data/upload/{project_id}", UploadHandler)
	r.Post("/api/v1/data/process/{project_id}", ProcessHandler)
	r.Post("/api/v1/data/reembed/{project_id}", ReembedHandler)
	r.Get("/api/v1/data/assets/{project_id}", AssetsHandler)
	r.Post("/api/v1/chat/{project_id}", ChatHandler)
	r.Get("/api/v1/status/{id}", GetStatusHandler)
	return svc, r
}

func uploadRequest(t *testing.T, projectId, contentType, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/data/upload/"+projectId, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, path string, v any) *http.Request {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return httptest.NewRequest(method, path, bytes.NewReader(b))
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWelcome(t *testing.T) {
	_, h := setupHandlers(t)
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body api.WelcomeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "GoRAG", body.AppName)
}

func TestUploadThenProcess(t *testing.T) {
	svc, h := setupHandlers(t)

	rec := serve(h, uploadRequest(t, "p1", "text/plain", "notes.txt", []byte("some words to index")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var uploaded api.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &uploaded))
	assert.Equal(t, string(jobModel.SignalFileUploadSuccess), uploaded.Signal)
	require.NotEmpty(t, uploaded.FileId)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/data/assets/p1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var assets api.AssetsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &assets))
	require.Len(t, assets.Assets, 1)
	assert.Equal(t, uploaded.FileId, assets.Assets[0].AssetName)

	rec = serve(h, jsonRequest(t, http.MethodPost, "/api/v1/data/process/p1",
		api.ProcessRequest{FileId: uploaded.FileId, ChunkSize: 50, OverlapSize: 10}))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var accepted api.InitJobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))

	queued := <-svc.JobChannel
	assert.Equal(t, accepted.Id, queued.Id)
	assert.Equal(t, jobModel.JobTypeIngest, queued.JobType)
	assert.Equal(t, uploaded.FileId, queued.JobPayload.AssetName)
	assert.Equal(t, 50, queued.JobPayload.ChunkSize)
	assert.Len(t, svc.DispatcherChannel, 1, "ingest jobs always wake the dispatcher")

	rec = serve(h, httptest.NewRequest(http.MethodGet, accepted.StatusURL, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var status api.JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, string(jobModel.JobStatusQueued), status.Result.Status)
}

func TestUpload_Rejections(t *testing.T) {
	_, h := setupHandlers(t)

	tests := []struct {
		name        string
		projectId   string
		contentType string
		wantCode    int
		wantSignal  jobModel.Signal
	}{
		{"unsupported type", "p1", "image/png", http.StatusBadRequest, jobModel.SignalFileTypeUnsupported},
		{"bad project id", "p-1", "text/plain", http.StatusBadRequest, jobModel.SignalFileUploadFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, uploadRequest(t, tt.projectId, tt.contentType, "x.bin", []byte("data")))
			require.Equal(t, tt.wantCode, rec.Code)
			var body api.JobResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.NotNil(t, body.Error)
			assert.Equal(t, string(tt.wantSignal), body.Error.Signal)
		})
	}
}

func TestProcess_Validation(t *testing.T) {
	svc, h := setupHandlers(t)

	tests := []struct {
		name string
		path string
		req  api.ProcessRequest
		want int
	}{
		{"unknown file", "/api/v1/data/process/p1", api.ProcessRequest{FileId: "missing.txt"}, http.StatusNotFound},
		{"overlap not smaller", "/api/v1/data/process/p1", api.ProcessRequest{FileId: "a.txt", ChunkSize: 10, OverlapSize: 10}, http.StatusBadRequest},
		{"no file id", "/api/v1/data/process/p1", api.ProcessRequest{}, http.StatusBadRequest},
		{"bad project", "/api/v1/data/process/p_1", api.ProcessRequest{FileId: "a.txt"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, jsonRequest(t, http.MethodPost, tt.path, tt.req))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
	assert.Empty(t, svc.JobChannel, "rejected requests never reach the queue")
}

func TestChat(t *testing.T) {
	svc, h := setupHandlers(t)

	rec := serve(h, jsonRequest(t, http.MethodPost, "/api/v1/chat/p1", api.ChatRequest{Message: ""}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, jsonRequest(t, http.MethodPost, "/api/v1/chat/p1", api.ChatRequest{Message: "hi", ChatID: "unknown"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, jsonRequest(t, http.MethodPost, "/api/v1/chat/p1", api.ChatRequest{Message: "what is go?", TopK: 3}))
	require.Equal(t, http.StatusAccepted, rec.Code)
	queued := <-svc.JobChannel
	assert.Equal(t, jobModel.JobTypeQuery, queued.JobType)
	assert.Equal(t, "p1", queued.ProjectId)
	assert.Equal(t, 3, queued.JobPayload.TopK)
	assert.NotEmpty(t, queued.ChatId)
	assert.True(t, svc.MessageStore.ValidateChatId(t.Context(), queued.ChatId), "a new chat is opened")

	rec = serve(h, jsonRequest(t, http.MethodPost, "/api/v1/chat/p1", api.ChatRequest{Message: "and then?", ChatID: queued.ChatId}))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, queued.ChatId, (<-svc.JobChannel).ChatId)
}

func TestReembedAndStatus(t *testing.T) {
	svc, h := setupHandlers(t)

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/v1/data/reembed/p1", nil))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	queued := <-svc.JobChannel
	assert.Equal(t, jobModel.JobTypeReembed, queued.JobType)
	assert.Empty(t, queued.JobPayload.AssetName)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/status/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
