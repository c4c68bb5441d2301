package handlers

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/cloo-solutions/docqa/internal/api"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/go-chi/chi/v5"
)

const multipartMemory = 32 << 20

type DocumentService interface {
	Upload(ctx context.Context, uploads []service.Upload) (*service.UploadResult, error)
	List() ([]service.DocumentInfo, error)
	Delete(ctx context.Context, name string) error
}

type DocumentsHandler struct {
	svc DocumentService
	hub Broadcaster
}

// NewDocumentsHandler creates a handler; hub may be nil
func NewDocumentsHandler(svc DocumentService, hub Broadcaster) *DocumentsHandler {
	return &DocumentsHandler{svc: svc, hub: hub}
}

type UploadResponse struct {
	Message           string   `json:"message"`
	UploadedFiles     []string `json:"uploaded_files"`
	ProcessedFiles    []string `json:"processed_files"`
	EmbeddingsCreated bool     `json:"embeddings_created"`
	Chunks            int      `json:"chunks"`
}

type FileResponse struct {
	Name     string  `json:"name"`
	Size     int64   `json:"size"`
	Uploaded float64 `json:"uploaded"`
}

type FilesResponse struct {
	Files []FileResponse `json:"files"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func (h *DocumentsHandler) broadcast(event Event) {
	if h.hub != nil {
		h.hub.Broadcast(event)
	}
}

func (h *DocumentsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		api.HandleError(w, domain.ErrNoFilesUploaded)
		return
	}

	uploads := make([]service.Upload, 0, len(headers))
	files := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			api.Error(w, http.StatusBadRequest, fmt.Sprintf("cannot read %s", fh.Filename))
			return
		}
		files = append(files, f)
		uploads = append(uploads, service.Upload{Filename: fh.Filename, Content: f})
	}

	h.broadcast(Event{Type: EventProcessingStart, Message: "processing uploaded documents..."})

	result, err := h.svc.Upload(r.Context(), uploads)
	if err != nil {
		h.broadcast(Event{Type: EventError, Message: "document processing failed"})
		api.HandleError(w, err)
		return
	}

	msg := fmt.Sprintf("successfully processed %d files", len(result.Files))
	h.broadcast(Event{Type: EventProcessingComplete, Message: msg, Files: result.Files})

	resp := UploadResponse{
		Message:           fmt.Sprintf("successfully uploaded and processed %d files", len(result.Files)),
		UploadedFiles:     result.Files,
		ProcessedFiles:    result.Files,
		EmbeddingsCreated: true,
	}
	if result.Rebuild != nil {
		resp.Chunks = result.Rebuild.Chunks
	}
	api.Success(w, http.StatusOK, resp)
}

func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.List()
	if err != nil {
		api.HandleError(w, err)
		return
	}

	files := make([]FileResponse, 0, len(docs))
	for _, d := range docs {
		files = append(files, FileResponse{
			Name:     d.Name,
			Size:     d.Size,
			Uploaded: float64(d.Uploaded.UnixNano()) / float64(time.Second),
		})
	}
	api.Success(w, http.StatusOK, FilesResponse{Files: files})
}

func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "filename"))
	if err != nil || name == "" {
		api.Error(w, http.StatusBadRequest, "filename is required")
		return
	}

	if err := h.svc.Delete(r.Context(), name); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf("file %s deleted successfully", name)})
}
