package rag_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/akolanti/GoRAG/internal/config"
	"github.com/akolanti/GoRAG/internal/data/store"
	"github.com/akolanti/GoRAG/internal/domain/jobModel"
	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/akolanti/GoRAG/internal/rag"
	"github.com/akolanti/GoRAG/internal/rag/embedding/hashEmbedding"
	"github.com/akolanti/GoRAG/internal/rag/ingest"
	"github.com/akolanti/GoRAG/internal/rag/llm"
	"github.com/akolanti/GoRAG/internal/rag/vectorDB/memoryDB"
	"github.com/akolanti/GoRAG/pkg/logger_i"
)

func testChunks() *MockChunkStore {
	return &MockChunkStore{Chunks: map[string]ragModel.Chunk{
		"c1": {Id: "c1", ChunkText: "first chunk", ChunkOrder: 1, AssetId: "a1"},
		"c2": {Id: "c2", ChunkText: "second chunk", ChunkOrder: 2, AssetId: "a1"},
	}}
}

func newService(e *MockEmbedder, v *MockVectorDB, l *MockLLM, c *MockChunkStore, i *MockIngestor) rag.Service {
	return rag.NewService(rag.Config{
		Embedder:       e,
		Generator:      l,
		Vectors:        v,
		Chunks:         c,
		Ingestor:       i,
		TopK:           3,
		MaxPromptChars: 8000,
		IndexOnIngest:  true,
	})
}

func TestProcessRequest_Scenarios(t *testing.T) {
	tests := []struct {
		name           string
		setupMocks     func(e *MockEmbedder, v *MockVectorDB, l *MockLLM, c *MockChunkStore)
		expectedStatus jobModel.JobStatus
		expectedAnswer string
		expectedKind   error
		expectedCode   int
	}{
		{
			name: "Success_Full_Flow",
			setupMocks: func(e *MockEmbedder, v *MockVectorDB, l *MockLLM, c *MockChunkStore) {
				l.OnGenerate = func(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResult, error) {
					return llm.GenerateResult{Text: "final answer"}, nil
				}
			},
			expectedStatus: jobModel.JobStatusComplete,
			expectedAnswer: "final answer",
		},
		{
			name: "Failure_Embedding",
			setupMocks: func(e *MockEmbedder, v *MockVectorDB, l *MockLLM, c *MockChunkStore) {
				e.OnEmbed = func(ctx context.Context, text string, docType ragModel.DocumentType) ([]float32, error) {
					return nil, ragModel.Opaque(ragModel.ErrEmbeddingBackend, "mock embed", errors.New("api limit"))
				}
			},
			expectedStatus: jobModel.JobStatusError,
			expectedKind:   ragModel.ErrEmbeddingBackend,
			expectedCode:   http.StatusBadGateway,
		},
		{
			name: "Failure_Vector_Search",
			setupMocks: func(e *MockEmbedder, v *MockVectorDB, l *MockLLM, c *MockChunkStore) {
				v.OnQuery = func(ctx context.Context, projectId string, vector []float32, topK int) ([]ragModel.SearchHit, error) {
					return nil, errors.New("db timeout")
				}
			},
			expectedStatus: jobModel.JobStatusError,
			expectedKind:   ragModel.ErrVectorSearch,
			expectedCode:   http.StatusInternalServerError,
		},
		{
			name: "Failure_Zero_Hits",
			setupMocks: func(e *MockEmbedder, v *MockVectorDB, l *MockLLM, c *MockChunkStore) {
				v.OnQuery = func(ctx context.Context, projectId string, vector []float32, topK int) ([]ragModel.SearchHit, error) {
					return nil, nil
				}
			},
			expectedStatus: jobModel.JobStatusError,
			expectedKind:   ragModel.ErrVectorSearch,
			expectedCode:   http.StatusInternalServerError,
		},
		{
			name: "Failure_No_Readable_Chunk",
			setupMocks: func(e *MockEmbedder, v *MockVectorDB, l *MockLLM, c *MockChunkStore) {
				v.OnQuery = func(ctx context.Context, projectId string, vector []float32, topK int) ([]ragModel.SearchHit, error) {
					return []ragModel.SearchHit{{ChunkId: "gone", Score: 1}}, nil
				}
			},
			expectedStatus: jobModel.JobStatusError,
			expectedKind:   ragModel.ErrVectorSearch,
			expectedCode:   http.StatusInternalServerError,
		},
		{
			name: "Failure_LLM_Generation",
			setupMocks: func(e *MockEmbedder, v *MockVectorDB, l *MockLLM, c *MockChunkStore) {
				l.OnGenerate = func(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResult, error) {
					return llm.GenerateResult{}, ragModel.Opaque(ragModel.ErrGenerationBackend, "mock generate", errors.New("provider down"))
				}
			},
			expectedStatus: jobModel.JobStatusError,
			expectedKind:   ragModel.ErrGenerationFailed,
			expectedCode:   http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mEmbed := &MockEmbedder{}
			mVec := &MockVectorDB{}
			mLLM := &MockLLM{}
			mChunks := testChunks()

			tt.setupMocks(mEmbed, mVec, mLLM, mChunks)

			s := newService(mEmbed, mVec, mLLM, mChunks, &MockIngestor{})

			ctx := logger_i.WithTraceId(context.Background(), "test-trace")
			job := jobModel.Job{
				Id:        "test-job",
				ProjectId: "proj1",
				JobPayload: jobModel.JobPayload{
					Question: "test question",
				},
			}

			result := s.ProcessRequest(ctx, job, nil)

			if result.Status != tt.expectedStatus {
				t.Errorf("Status got %v, want %v", result.Status, tt.expectedStatus)
			}
			if tt.expectedAnswer != "" && result.JobPayload.Answer != tt.expectedAnswer {
				t.Errorf("Answer got %s, want %s", result.JobPayload.Answer, tt.expectedAnswer)
			}
			if tt.expectedKind == nil {
				if result.JobPayload.Signal != jobModel.SignalAnswerSuccess || result.CurrentStep != jobModel.Complete {
					t.Errorf("unexpected success job %+v", result)
				}
				return
			}
			if result.Error == nil {
				t.Fatal("expected a job error")
			}
			if result.Error.Code != tt.expectedCode {
				t.Errorf("Error Code got %d, want %d", result.Error.Code, tt.expectedCode)
			}
			if result.Error.Signal != jobModel.SignalAnswerFailed {
				t.Errorf("Signal got %s", result.Error.Signal)
			}
			if !result.Error.Retry {
				t.Error("backend failures should be retryable")
			}
		})
	}
}

func TestAnswer_ErrorKinds(t *testing.T) {
	tests := []struct {
		name  string
		req   rag.AnswerRequest
		setup func(v *MockVectorDB, l *MockLLM)
		want  error
	}{
		{"bad project", rag.AnswerRequest{ProjectId: "a b", Query: "q"}, nil, ragModel.ErrInvalidProjectID},
		{"blank query", rag.AnswerRequest{ProjectId: "proj1", Query: "  "}, nil, ragModel.ErrInvalidQuery},
		{"missing collection", rag.AnswerRequest{ProjectId: "proj1", Query: "q"}, func(v *MockVectorDB, l *MockLLM) {
			v.OnQuery = func(ctx context.Context, projectId string, vector []float32, topK int) ([]ragModel.SearchHit, error) {
				return nil, ragModel.NewError(ragModel.ErrCollectionNotFound, "query", "no collection")
			}
		}, ragModel.ErrVectorSearch},
		{"generation", rag.AnswerRequest{ProjectId: "proj1", Query: "q"}, func(v *MockVectorDB, l *MockLLM) {
			l.OnGenerate = func(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResult, error) {
				return llm.GenerateResult{}, ragModel.NewError(ragModel.ErrGenerationBackend, "generate", "empty")
			}
		}, ragModel.ErrGenerationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, l := &MockVectorDB{}, &MockLLM{}
			if tt.setup != nil {
				tt.setup(v, l)
			}
			s := newService(&MockEmbedder{}, v, l, testChunks(), &MockIngestor{})
			_, err := s.Answer(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestAnswer_PromptOrderAndHistory(t *testing.T) {
	var got llm.GenerateRequest
	mEmbed := &MockEmbedder{
		OnEmbed: func(ctx context.Context, text string, docType ragModel.DocumentType) ([]float32, error) {
			if docType != ragModel.DocumentTypeQuery {
				t.Errorf("query embedded as %s", docType)
			}
			return []float32{1, 0, 0}, nil
		},
	}
	mVec := &MockVectorDB{
		OnQuery: func(ctx context.Context, projectId string, vector []float32, topK int) ([]ragModel.SearchHit, error) {
			if topK != 2 {
				t.Errorf("topK = %d, want request override 2", topK)
			}
			return []ragModel.SearchHit{{ChunkId: "c2", Score: 0.9}, {ChunkId: "missing", Score: 0.8}, {ChunkId: "c1", Score: 0.5}}, nil
		},
	}
	mLLM := &MockLLM{OnGenerate: func(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResult, error) {
		got = req
		return (&MockLLM{}).Generate(ctx, req)
	}}

	history := []ragModel.ChatMessage{
		{Role: ragModel.RoleUser, Text: "earlier question"},
		{Role: ragModel.RoleAssistant, Text: "earlier answer"},
	}
	s := newService(mEmbed, mVec, mLLM, testChunks(), &MockIngestor{})

	ans, err := s.Answer(context.Background(), rag.AnswerRequest{ProjectId: "proj1", Query: "what now?", TopK: 2, History: history})
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}

	first := strings.Index(got.Prompt, "second chunk")
	second := strings.Index(got.Prompt, "first chunk")
	if first < 0 || second < 0 || first > second {
		t.Errorf("prompt not ordered by score:\n%s", got.Prompt)
	}
	if !strings.HasSuffix(got.Prompt, "User Question: what now?") {
		t.Errorf("prompt should end with the question:\n%s", got.Prompt)
	}
	if len(got.History) != 3 || got.History[0].Role != ragModel.RoleSystem || got.History[0].Text != config.ModelContext {
		t.Errorf("generator history = %+v", got.History)
	}

	if len(ans.Sources) != 2 || ans.Sources[0].ChunkId != "c2" || ans.Sources[1].ChunkId != "c1" {
		t.Errorf("sources = %+v", ans.Sources)
	}
	if len(history) != 2 || history[1].Text != "earlier answer" {
		t.Errorf("caller history mutated: %+v", history)
	}
	for _, m := range ans.History {
		if m.Role == ragModel.RoleSystem {
			t.Error("system message leaked into the returned history")
		}
	}
	if last := ans.History[len(ans.History)-1]; last.Role != ragModel.RoleAssistant || last.Text != ans.Text {
		t.Errorf("last history entry = %+v", last)
	}
}

func TestAnswer_PromptBudget(t *testing.T) {
	long := strings.Repeat("x", 300)
	chunks := &MockChunkStore{Chunks: map[string]ragModel.Chunk{
		"c1": {Id: "c1", ChunkText: long, ChunkOrder: 1},
		"c2": {Id: "c2", ChunkText: long, ChunkOrder: 2},
	}}
	v := &MockVectorDB{OnQuery: func(ctx context.Context, projectId string, vector []float32, topK int) ([]ragModel.SearchHit, error) {
		return []ragModel.SearchHit{{ChunkId: "c1", Score: 1}, {ChunkId: "c2", Score: 0.5}}, nil
	}}
	var prompt string
	l := &MockLLM{OnGenerate: func(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResult, error) {
		prompt = req.Prompt
		return llm.GenerateResult{Text: "ok"}, nil
	}}
	s := rag.NewService(rag.Config{Embedder: &MockEmbedder{}, Generator: l, Vectors: v, Chunks: chunks, MaxPromptChars: 400})

	ans, err := s.Answer(context.Background(), rag.AnswerRequest{ProjectId: "proj1", Query: "short?"})
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if n := len([]rune(prompt)); n > 400 {
		t.Errorf("prompt has %d characters, limit 400", n)
	}
	if len(ans.Sources) != 1 {
		t.Errorf("expected only the chunk that fit, got %d sources", len(ans.Sources))
	}
	if !strings.HasSuffix(prompt, "User Question: short?") {
		t.Error("question was cut from the prompt")
	}
}

func TestIngestDocument_Scenarios(t *testing.T) {
	tests := []struct {
		name           string
		payload        jobModel.JobPayload
		setup          func(i *MockIngestor)
		expectedStatus jobModel.JobStatus
		expectedSignal jobModel.Signal
		expectedCode   int
	}{
		{
			name:    "Ingestion_Success",
			payload: jobModel.JobPayload{AssetName: "doc.txt", ChunkSize: 50, OverlapSize: 5},
			setup: func(i *MockIngestor) {
				i.OnProcessAsset = func(ctx context.Context, req ingest.ProcessRequest) (ingest.IngestResult, error) {
					if req.ChunkSize != 50 || req.OverlapSize != 5 || !req.Index {
						return ingest.IngestResult{}, errors.New("request not forwarded")
					}
					req.OnState(ragModel.StateValidating)
					req.OnState(ragModel.StateDone)
					return ingest.IngestResult{ChunksPersisted: 7, VectorsUpserted: 7, FinalState: ragModel.StateDone}, nil
				}
			},
			expectedStatus: jobModel.JobStatusComplete,
			expectedSignal: jobModel.SignalProcessingSuccess,
		},
		{
			name:    "Ingestion_Defaults",
			payload: jobModel.JobPayload{AssetName: "doc.txt"},
			setup: func(i *MockIngestor) {
				i.OnProcessAsset = func(ctx context.Context, req ingest.ProcessRequest) (ingest.IngestResult, error) {
					if req.ChunkSize != config.DefaultChunkSize || req.OverlapSize != config.DefaultOverlapSize {
						return ingest.IngestResult{}, errors.New("defaults not applied")
					}
					return ingest.IngestResult{ChunksPersisted: 1, FinalState: ragModel.StateDone}, nil
				}
			},
			expectedStatus: jobModel.JobStatusComplete,
			expectedSignal: jobModel.SignalProcessingSuccess,
		},
		{
			name:    "Failure_No_Chunks",
			payload: jobModel.JobPayload{AssetName: "empty.txt", ChunkSize: 10},
			setup: func(i *MockIngestor) {
				i.OnProcessAsset = func(ctx context.Context, req ingest.ProcessRequest) (ingest.IngestResult, error) {
					return ingest.IngestResult{FinalState: ragModel.StateFailed},
						ragModel.NewError(ragModel.ErrNoChunksProduced, "split", "nothing")
				}
			},
			expectedStatus: jobModel.JobStatusError,
			expectedSignal: jobModel.SignalProcessingFailed,
			expectedCode:   http.StatusUnprocessableEntity,
		},
		{
			name:    "Failure_Partial",
			payload: jobModel.JobPayload{AssetName: "doc.txt", ChunkSize: 10},
			setup: func(i *MockIngestor) {
				i.OnProcessAsset = func(ctx context.Context, req ingest.ProcessRequest) (ingest.IngestResult, error) {
					return ingest.IngestResult{ChunksPersisted: 4, FinalState: ragModel.StateFailed},
						ragModel.Wrap(ragModel.ErrPartiallyPersisted, "persist vectors", errors.New("disk full"))
				}
			},
			expectedStatus: jobModel.JobStatusError,
			expectedSignal: jobModel.SignalPartiallyPersisted,
			expectedCode:   http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mIngest := &MockIngestor{}
			tt.setup(mIngest)
			s := newService(&MockEmbedder{}, &MockVectorDB{}, &MockLLM{}, testChunks(), mIngest)

			ctx := logger_i.WithTraceId(context.Background(), "ingest-trace")
			result := s.IngestDocument(ctx, jobModel.Job{Id: "ingest-job-1", ProjectId: "proj1", JobPayload: tt.payload})

			if result.Status != tt.expectedStatus {
				t.Errorf("Status got %v, want %v", result.Status, tt.expectedStatus)
			}
			if result.JobPayload.Signal != tt.expectedSignal {
				t.Errorf("Signal got %s, want %s", result.JobPayload.Signal, tt.expectedSignal)
			}
			if tt.expectedCode != 0 && (result.Error == nil || result.Error.Code != tt.expectedCode) {
				t.Errorf("Error got %+v, want code %d", result.Error, tt.expectedCode)
			}
			if tt.name == "Failure_Partial" && result.JobPayload.ChunksCreated != 4 {
				t.Errorf("ChunksCreated got %d, want 4", result.JobPayload.ChunksCreated)
			}
		})
	}
}

func TestReembedDocuments(t *testing.T) {
	var gotAsset string
	mIngest := &MockIngestor{OnReembed: func(ctx context.Context, projectId, assetName string) (ingest.IngestResult, error) {
		gotAsset = assetName
		return ingest.IngestResult{VectorsUpserted: 5, FinalState: ragModel.StateDone}, nil
	}}
	s := newService(&MockEmbedder{}, &MockVectorDB{}, &MockLLM{}, testChunks(), mIngest)

	result := s.ReembedDocuments(context.Background(), jobModel.Job{Id: "j", ProjectId: "proj1", JobPayload: jobModel.JobPayload{AssetName: "doc.txt"}})
	if result.Status != jobModel.JobStatusComplete || result.JobPayload.VectorsUpserted != 5 {
		t.Errorf("unexpected job %+v", result)
	}
	if gotAsset != "doc.txt" || result.JobPayload.Signal != jobModel.SignalReembedSuccess {
		t.Errorf("asset %q signal %s", gotAsset, result.JobPayload.Signal)
	}
}

// End to end over the in-memory registry, the in-memory vector store and the hashing embedder.
func TestAnswer_EndToEnd(t *testing.T) {
	ctx := context.Background()
	registry := store.InitInMemoryRegistryStore()
	vectors := memoryDB.NewStore()
	embedder := hashEmbedding.NewHashEmbedder("hash-v1", 64, 8000)
	content := map[string]string{"notes.txt": "Go channels pass values between goroutines. " +
		"Redis keeps data in memory. Qdrant stores vectors for similarity search."}
	if _, err := registry.CreateAsset(ctx, ragModel.Asset{ProjectId: "proj1", AssetName: "notes.txt"}); err != nil {
		t.Fatalf("create asset: %v", err)
	}

	orch := ingest.NewOrchestrator(ingest.Config{
		Registry: registry,
		Chunks:   registry,
		Source:   sourceFunc(func(a ragModel.Asset) string { return content[a.AssetName] }),
		Embedder: embedder,
		Vectors:  vectors,
	})
	s := rag.NewService(rag.Config{Registry: registry, Embedder: embedder, Generator: &MockLLM{}, Vectors: vectors, Chunks: registry, Ingestor: orch, TopK: 2})

	// empty project
	_, err := s.Answer(ctx, rag.AnswerRequest{ProjectId: "proj2", Query: "anything"})
	registered := time.Now()
	if !errors.Is(err, ragModel.ErrVectorSearch) {
		t.Fatalf("expected ErrVectorSearch for an empty project, got %v", err)
	}
	first, err := registry.GetOrCreateProject(ctx, "proj2")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Answer(ctx, rag.AnswerRequest{ProjectId: "proj2", Query: "again"}); !errors.Is(err, ragModel.ErrVectorSearch) {
		t.Fatalf("expected ErrVectorSearch, got %v", err)
	}
	if again, _ := registry.GetOrCreateProject(ctx, "proj2"); again.Id != first.Id {
		t.Errorf("query created a second project record: %s vs %s", first.Id, again.Id)
	}
	if first.CreatedAt.After(registered) {
		t.Error("a query should register its project")
	}

	if _, err := orch.ProcessAsset(ctx, ingest.ProcessRequest{ProjectId: "proj1", AssetName: "notes.txt", ChunkSize: 48, OverlapSize: 8, Index: true}); err != nil {
		t.Fatalf("ProcessAsset failed: %v", err)
	}

	ans, err := s.Answer(ctx, rag.AnswerRequest{ProjectId: "proj1", Query: "Go channels pass values between goroutines"})
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if len(ans.Sources) == 0 || len(ans.Sources) > 2 {
		t.Fatalf("expected 1-2 sources, got %d", len(ans.Sources))
	}
	if !strings.Contains(ans.Sources[0].Text, "channels") {
		t.Errorf("best source should mention channels: %q", ans.Sources[0].Text)
	}
}

type sourceFunc func(ragModel.Asset) string

func (f sourceFunc) Read(_ context.Context, a ragModel.Asset) (string, error) { return f(a), nil }
