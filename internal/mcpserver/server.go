// Package mcpserver exposes project question answering and ingestion as MCP tools,
// so an assistant can query the same indexes the HTTP API serves.
package mcpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/akolanti/GoRAG/internal/config"
	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/akolanti/GoRAG/internal/rag"
	"github.com/akolanti/GoRAG/internal/rag/ingest"
	"github.com/akolanti/GoRAG/pkg/logger_i"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var ErrMissingRAGService = errors.New("mcp: rag service is required")

var logger = logger_i.NewLogger("MCP")

// FileIngestor uploads and processes a local file.
type FileIngestor func(ctx context.Context, projectId, path string, chunkSize, overlapSize int) (ingest.IngestResult, error)

// Ports are the services the tools call. Only RAG is required.
type Ports struct {
	RAG      rag.Service
	Registry ragModel.Registry
	Reembed  rag.Ingestor
	Ingest   FileIngestor
}

type Server struct {
	ports  Ports
	server *mcp.Server
}

func NewServer(ports Ports) (*Server, error) {
	if ports.RAG == nil {
		return nil, ErrMissingRAGService
	}
	s := &Server{
		ports:  ports,
		server: mcp.NewServer(&mcp.Implementation{Name: config.AppName, Version: config.AppVersion}, nil),
	}
	s.registerTools()
	return s, nil
}

// Run serves over stdio until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	logger.Info("MCP server on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the streamable HTTP transport on addr until ctx is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownContextTimeout)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("MCP server listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
