package mcpserver

import (
	"context"

	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/akolanti/GoRAG/internal/rag"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type AskInput struct {
	ProjectId string `json:"project_id" jsonschema:"the project whose documents answer the question"`
	Question  string `json:"question" jsonschema:"the question to answer"`
	TopK      int    `json:"top_k,omitempty" jsonschema:"how many chunks to retrieve (default from config)"`
}

type AskOutput struct {
	Answer  string        `json:"answer"`
	Sources []SourceChunk `json:"sources"`
}

type SourceChunk struct {
	ChunkId    string  `json:"chunk_id"`
	AssetId    string  `json:"asset_id"`
	ChunkOrder int     `json:"chunk_order"`
	Score      float32 `json:"score"`
	Text       string  `json:"text"`
}

type ProjectInput struct {
	ProjectId string `json:"project_id" jsonschema:"the project id"`
}

type AssetsOutput struct {
	Assets []AssetSummary `json:"assets"`
	Count  int            `json:"count"`
}

type AssetSummary struct {
	FileId string `json:"file_id"`
	Type   string `json:"type"`
	Size   int64  `json:"size"`
}

type IngestInput struct {
	ProjectId   string `json:"project_id" jsonschema:"the project to add the file to"`
	Path        string `json:"path" jsonschema:"path of a local text, PDF or office file"`
	ChunkSize   int    `json:"chunk_size,omitempty" jsonschema:"characters per chunk (default 100)"`
	OverlapSize int    `json:"overlap_size,omitempty" jsonschema:"characters shared by neighbouring chunks (default 20)"`
}

type ReembedInput struct {
	ProjectId string `json:"project_id" jsonschema:"the project id"`
	FileId    string `json:"file_id,omitempty" jsonschema:"a single file to re-embed, empty for the whole project"`
}

type IngestOutput struct {
	ChunksCreated   int    `json:"chunks_created"`
	VectorsUpserted int    `json:"vectors_upserted"`
	FinalState      string `json:"final_state"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from a project's indexed documents, citing the chunks used",
	}, s.handleAsk)

	if s.ports.Registry != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "list_assets",
			Description: "List the files uploaded to a project",
		}, s.handleListAssets)
	}
	if s.ports.Ingest != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ingest_file",
			Description: "Upload a local file into a project, chunk it and index it",
		}, s.handleIngest)
	}
	if s.ports.Reembed != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "reembed",
			Description: "Embed a project's stored chunks again and upsert them into the vector store",
		}, s.handleReembed)
	}
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	answer, err := s.ports.RAG.Answer(ctx, rag.AnswerRequest{
		ProjectId: input.ProjectId,
		Query:     input.Question,
		TopK:      input.TopK,
	})
	if err != nil {
		return nil, AskOutput{}, err
	}
	out := AskOutput{Answer: answer.Text, Sources: make([]SourceChunk, len(answer.Sources))}
	for i, src := range answer.Sources {
		out.Sources[i] = SourceChunk(src)
	}
	return nil, out, nil
}

func (s *Server) handleListAssets(ctx context.Context, _ *mcp.CallToolRequest, input ProjectInput) (*mcp.CallToolResult, AssetsOutput, error) {
	assets, err := s.ports.Registry.ListAssets(ctx, input.ProjectId)
	if err != nil {
		return nil, AssetsOutput{}, err
	}
	out := AssetsOutput{Assets: make([]AssetSummary, len(assets)), Count: len(assets)}
	for i, a := range assets {
		out.Assets[i] = AssetSummary{FileId: a.AssetName, Type: a.AssetType, Size: a.AssetSize}
	}
	return nil, out, nil
}

func (s *Server) handleIngest(ctx context.Context, _ *mcp.CallToolRequest, input IngestInput) (*mcp.CallToolResult, IngestOutput, error) {
	res, err := s.ports.Ingest(ctx, input.ProjectId, input.Path, input.ChunkSize, input.OverlapSize)
	out := IngestOutput{ChunksCreated: res.ChunksPersisted, VectorsUpserted: res.VectorsUpserted, FinalState: string(res.FinalState)}
	if err != nil {
		return nil, out, err
	}
	return nil, out, nil
}

func (s *Server) handleReembed(ctx context.Context, _ *mcp.CallToolRequest, input ReembedInput) (*mcp.CallToolResult, IngestOutput, error) {
	if err := ragModel.ValidateProjectId(input.ProjectId); err != nil {
		return nil, IngestOutput{}, err
	}
	res, err := s.ports.Reembed.Reembed(ctx, input.ProjectId, input.FileId)
	out := IngestOutput{VectorsUpserted: res.VectorsUpserted, FinalState: string(res.FinalState)}
	if err != nil {
		return nil, out, err
	}
	return nil, out, nil
}
