package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/cloo-solutions/docqa/internal/api"
)

type IndexHealth interface {
	EnsureFresh(ctx context.Context) (bool, error)
	Ready() bool
}

type HealthHandler struct {
	index IndexHealth
}

func NewHealthHandler(index IndexHealth) *HealthHandler {
	return &HealthHandler{index: index}
}

type HealthResponse struct {
	Status          string `json:"status"`
	Healthy         bool   `json:"healthy"`
	EmbeddingsReady bool   `json:"embeddings_ready"`
	Message         string `json:"message"`
}

func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, map[string]string{
		"message": "docqa API is running",
		"status":  "healthy",
	})
}

// Health rebuilds a stale index before reporting readiness. Rebuild
// failures do not make the service unhealthy.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if _, err := h.index.EnsureFresh(r.Context()); err != nil {
		log.Printf("health: refresh failed: %v", err)
	}

	api.Success(w, http.StatusOK, HealthResponse{
		Status:          "healthy",
		Healthy:         true,
		EmbeddingsReady: h.index.Ready(),
		Message:         "backend is running",
	})
}
