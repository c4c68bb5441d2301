package handlers

import (
	"context"
	"net/http"
	"sync"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
)

type MockQAService struct {
	mock.Mock
}

func (m *MockQAService) Retrieve(ctx context.Context, query string) ([]domain.RetrievalResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RetrievalResult), args.Error(1)
}

func (m *MockQAService) Answer(ctx context.Context, results []domain.RetrievalResult, query string) *service.AskOutput {
	args := m.Called(ctx, results, query)
	return args.Get(0).(*service.AskOutput)
}

type MockIndex struct {
	mock.Mock
}

func (m *MockIndex) EnsureFresh(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockIndex) Ready() bool {
	return m.Called().Bool(0)
}

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Upload(ctx context.Context, uploads []service.Upload) (*service.UploadResult, error) {
	args := m.Called(ctx, uploads)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UploadResult), args.Error(1)
}

func (m *MockDocumentService) List() ([]service.DocumentInfo, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.DocumentInfo), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

type recordingHub struct {
	mu     sync.Mutex
	events []Event
}

func (h *recordingHub) Broadcast(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

func (h *recordingHub) types() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.events))
	for _, e := range h.events {
		out = append(out, e.Type)
	}
	return out
}

func contextWithRoute(req *http.Request, rctx *chi.Context) context.Context {
	return context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
}
