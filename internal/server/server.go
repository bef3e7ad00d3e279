package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"

	"github.com/akolanti/GoRAG/internal/adapter/utils"
	"github.com/akolanti/GoRAG/internal/config"
	"github.com/akolanti/GoRAG/internal/middleware"
	"github.com/akolanti/GoRAG/pkg/logger_i"
	"github.com/go-chi/chi/v5"
)

var (
	server  *http.Server
	ready   = make(chan struct{})
	_logger = logger_i.NewLogger("Server")
)

// ShutdownParams carries what main owns and the server must release on SIGINT/SIGTERM.
type ShutdownParams struct {
	GracefulShutdown chan os.Signal
	StopExecution    chan bool
	WorkerStop       chan bool
	Group            *sync.WaitGroup
	CloseServices    context.CancelFunc
}

// Routes mounts the versioned API on r.
func Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", middleware.WelcomeHandler)
		r.Route("/data", func(r chi.Router) {
			r.Post("/upload/{project_id}", middleware.UploadHandler)
			r.Post("/process/{project_id}", middleware.ProcessHandler)
			r.Post("/reembed/{project_id}", middleware.ReembedHandler)
			r.Get("/assets/{project_id}", middleware.AssetsHandler)
		})
		r.Post("/chat/{project_id}", middleware.ChatHandler)
		r.Get("/status/{id}", middleware.GetStatusHandler)
	})
}

func newHTTPServer(listenAddr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         listenAddr,
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
}

// CreateServer blocks serving the API until the server is shut down.
func CreateServer(listenAddr string) {
	r := utils.GetRouter()
	Routes(r.Router)
	server = newHTTPServer(listenAddr, r.Router)
	close(ready)

	_logger.Info("API listening", "address", listenAddr)
	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return
	}
	_logger.Error("API server stopped unexpectedly", "error", err, "address", listenAddr)
}

// ShutDownHandler waits for a signal, then drains the server and the worker pool before releasing main.
func ShutDownHandler(shutdownParams ShutdownParams) {
	sig := <-shutdownParams.GracefulShutdown
	_logger.Info("Shutdown requested", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownContextTimeout)
	defer cancel()

	<-ready
	if err := drain(ctx, server, shutdownParams); err != nil {
		_logger.Error("Shutdown deadline exceeded, exiting", "error", err)
		os.Exit(1)
	}
	_logger.Info("Shutdown complete")
}

// drain stops accepting requests, stops the workers, waits for in-flight jobs and closes external
// services, in that order. It returns ctx's error if the sequence does not finish in time.
func drain(ctx context.Context, srv *http.Server, p ShutdownParams) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.SetKeepAlivesEnabled(false)
		if err := srv.Shutdown(ctx); err != nil {
			_logger.Warn("HTTP shutdown incomplete", "error", err)
		}
		close(p.WorkerStop)
		p.Group.Wait()
		p.CloseServices()
		close(p.StopExecution)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
