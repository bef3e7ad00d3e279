// @title           GoRAG API
// @version         0.3.0
// @description     Upload documents per project, chunk and index them, and ask questions answered from the indexed chunks.

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/akolanti/GoRAG/internal/bootstrap"
	"github.com/akolanti/GoRAG/internal/config"
	jobmodel "github.com/akolanti/GoRAG/internal/domain/jobModel"
	"github.com/akolanti/GoRAG/internal/handlers"
	"github.com/akolanti/GoRAG/internal/job"
	"github.com/akolanti/GoRAG/internal/server"
	"github.com/akolanti/GoRAG/internal/worker"
	"github.com/akolanti/GoRAG/pkg/logger_i"
	"github.com/joho/godotenv"
)

var (
	listenAddr        string
	providerFile      string
	uploadRoot        string
	requestCount      int64
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {
	// a missing .env is fine, the process environment still applies
	_ = godotenv.Load()

	logger_i.Init()
	var logger = logger_i.NewLogger("main")

	//config
	flag.StringVar(&listenAddr, "listen-addr", config.ServerListenAddr, "server listen address")
	flag.StringVar(&providerFile, "config", envOr("PROVIDER_CONFIG", "gorag.yaml"), "provider config file")
	flag.StringVar(&uploadRoot, "upload-dir", envOr("UPLOAD_DIR", config.UploadRootDir), "directory for uploaded files")
	flag.Parse()
	config.AuthToken = os.Getenv("API_AUTH_TOKEN")

	providerConfig, err := config.LoadProviderConfig(providerFile)
	if err != nil {
		logger.Error("Invalid provider configuration", "file", providerFile, "error", err)
		os.Exit(1)
	}

	//init buffered job channel
	jobChannel := make(chan jobmodel.Job, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	stopWorkerChannel = make(chan bool, 1)

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	app, err := bootstrap.Build(serviceContext, providerConfig, uploadRoot)
	if err != nil {
		logger.Error("One or more external services failed to initialize. Shutting down.", "error", err)
		os.Exit(1)
	}

	jobStore, messageStore := bootstrap.OpenJobStores(serviceContext)
	service := job.InitJobService(job.ServiceConfig{
		JobChannel:        jobChannel,
		RequestCount:      requestCount,
		DispatcherChannel: dispatcherChannel,
		JobStore:          jobStore,
		MessageStore:      messageStore,
		Registry:          app.Registry,
		FileStore:         app.Files,
	})
	logger.Info("Starting job service")

	handlers.InitJobHandler(service)

	//init worker pool
	worker.InitServices(service, app.RAG)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices: func() {
			closeExternalServices()
			if err := app.Close(); err != nil {
				logger.Error("Closing providers", "error", err)
			}
		},
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(listenAddr)

	<-stopExecution
	logger.Info("Server stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
