package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cloo-solutions/docqa/internal/api"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/service"
)

const (
	sourcePreviewRunes = 200

	noDocumentsMessage = "no documents processed yet, upload files first"
)

// QAService is the retrieval and generation pipeline, split so the
// WebSocket handler can report progress between the two halves.
type QAService interface {
	Retrieve(ctx context.Context, query string) ([]domain.RetrievalResult, error)
	Answer(ctx context.Context, results []domain.RetrievalResult, query string) *service.AskOutput
}

type ReadyChecker interface {
	Ready() bool
}

type ChatHandler struct {
	qa    QAService
	index ReadyChecker
}

func NewChatHandler(qa QAService, index ReadyChecker) *ChatHandler {
	return &ChatHandler{qa: qa, index: index}
}

type ChatRequest struct {
	Message string `json:"message"`
}

type SourceResponse struct {
	File  string  `json:"file"`
	Chunk string  `json:"chunk"`
	Score float32 `json:"score"`
}

type ChatResponse struct {
	Answer  string           `json:"answer"`
	Sources []SourceResponse `json:"sources"`
	Status  string           `json:"status"`
}

func sourcesToResponse(results []domain.RetrievalResult) []SourceResponse {
	sources := make([]SourceResponse, 0, len(results))
	for _, r := range results {
		sources = append(sources, SourceResponse{
			File:  r.SourceFile,
			Chunk: preview(r.Text, sourcePreviewRunes),
			Score: r.Score,
		})
	}
	return sources
}

func preview(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	results, err := h.qa.Retrieve(r.Context(), req.Message)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	if !h.index.Ready() {
		api.Error(w, http.StatusBadRequest, noDocumentsMessage)
		return
	}

	out := h.qa.Answer(r.Context(), results, req.Message)
	api.Success(w, http.StatusOK, ChatResponse{
		Answer:  out.Answer,
		Sources: sourcesToResponse(out.Sources),
		Status:  out.Status,
	})
}
