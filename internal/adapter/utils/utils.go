// Package utils holds the router and the small helpers handlers share.
//
// Local dependencies:
//
//	docker run -p 6379:6379 -d redis
//	docker run -p 6333:6333 -p 6334:6334 -v vectorDBData:/qdrant/storage qdrant/qdrant
//
// Regenerate cmd/api/docs after changing handler annotations:
//
//	swag init -g cmd/api/main.go --parseDependency --parseInternal --dir ./ --output ./cmd/api/docs
package utils

import (
	"net/http"
	"sync"

	_ "github.com/akolanti/GoRAG/cmd/api/docs"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

var (
	once   sync.Once
	router RouterClient
)

type RouterClient struct {
	Router *chi.Mux
}

func GetNewUUID() string {
	return uuid.New().String()
}

func GetChiURLParam(request *http.Request, key string) string {
	return chi.URLParam(request, key)
}

// GetRouter returns the process-wide router, built on first use.
func GetRouter() RouterClient {
	once.Do(func() {
		router = NewRouter()
	})
	return router
}

// NewRouter builds a router with panic recovery, client IP resolution, /metrics and /swagger.
// API routes are mounted by the caller.
func NewRouter() RouterClient {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP, chimiddleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
	})
	r.Get("/swagger/*", httpSwagger.WrapHandler)
	return RouterClient{Router: r}
}
