package server

import (
	"net/http"

	"github.com/cloo-solutions/docqa/internal/api/handlers"
	"github.com/cloo-solutions/docqa/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

const DefaultMaxBodyBytes int64 = 50 * 1024 * 1024

type RouterConfig struct {
	HealthHandler    *handlers.HealthHandler
	ChatHandler      *handlers.ChatHandler
	DocumentsHandler *handlers.DocumentsHandler
	WSHandler        *handlers.WSHandler
	MaxBodyBytes     int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes == 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.CORS)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/", cfg.HealthHandler.Root)
	r.Get("/health", cfg.HealthHandler.Health)

	r.Post("/chat", cfg.ChatHandler.Chat)
	r.Get("/ws", cfg.WSHandler.Serve)

	r.Post("/upload", cfg.DocumentsHandler.Upload)
	r.Route("/files", func(r chi.Router) {
		r.Get("/", cfg.DocumentsHandler.List)
		r.Delete("/{filename}", cfg.DocumentsHandler.Delete)
	})

	return r
}
