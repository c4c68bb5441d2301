package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvelope(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
}

func TestNewAPIClientWithCmd_DefaultAndEnv(t *testing.T) {
	t.Setenv(envAPIURL, "")
	assert.Equal(t, defaultAPIURL, NewAPIClientWithCmd(nil).baseURL)

	t.Setenv(envAPIURL, "http://docqa.internal:9000/")
	assert.Equal(t, "http://docqa.internal:9000", NewAPIClientWithCmd(nil).baseURL)
}

func TestAPIClient_Post(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat", r.URL.Path)
		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "what is pd?", req.Message)
		writeEnvelope(w, http.StatusOK, ChatResponse{Answer: "a disorder", Status: "success"})
	}))
	defer srv.Close()

	resp, err := NewAPIClientWithConfig(srv.URL).Post("/chat", ChatRequest{Message: "what is pd?"})
	require.NoError(t, err)

	var chat ChatResponse
	require.NoError(t, json.Unmarshal(resp.Data, &chat))
	assert.Equal(t, "a disorder", chat.Answer)
}

func TestAPIClient_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"file not found"}`))
	}))
	defer srv.Close()

	_, err := NewAPIClientWithConfig(srv.URL).Delete(FilePath("gone.pdf"))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "file not found", apiErr.Message)
}

func TestAPIClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewAPIClientWithConfig(srv.URL).Get("/files")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "bad gateway")
}

func TestFilePath_Escapes(t *testing.T) {
	assert.Equal(t, "/files/a.pdf", FilePath("a.pdf"))
	assert.Equal(t, "/files/my%20notes.pdf", FilePath("my notes.pdf"))
}

func TestAPIClient_UploadFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.pdf")
	b := filepath.Join(dir, "b.pdf")
	require.NoError(t, os.WriteFile(a, []byte("%PDF-a"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("%PDF-bb"), 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		headers := r.MultipartForm.File["files"]
		require.Len(t, headers, 2)

		names := make([]string, 0, len(headers))
		for _, fh := range headers {
			f, err := fh.Open()
			require.NoError(t, err)
			content, _ := io.ReadAll(f)
			f.Close()
			assert.True(t, bytes.HasPrefix(content, []byte("%PDF")))
			names = append(names, fh.Filename)
		}
		writeEnvelope(w, http.StatusOK, UploadResponse{UploadedFiles: names, Chunks: 2, EmbeddingsCreated: true})
	}))
	defer srv.Close()

	var last, total int64
	resp, err := NewAPIClientWithConfig(srv.URL).UploadFiles([]string{a, b}, func(current, t int64) {
		last, total = current, t
	})
	require.NoError(t, err)

	var result UploadResponse
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, result.UploadedFiles)
	assert.Equal(t, int64(13), total)
	assert.Equal(t, int64(13), last)
}

func TestAPIClient_UploadMissingFile(t *testing.T) {
	_, err := NewAPIClientWithConfig("http://127.0.0.1:1").UploadFiles([]string{filepath.Join(t.TempDir(), "nope.pdf")}, nil)
	assert.Error(t, err)
}

func TestRunUpload_RejectsNonPDF(t *testing.T) {
	err := runUpload(NewAPIClientWithConfig("http://127.0.0.1:1"), []string{"notes.txt"}, false, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only PDF files")
}

func TestRunDelete_ReportsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/files/missing.pdf" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"file not found"}`))
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]string{"message": "deleted"})
	}))
	defer srv.Close()

	err := runDelete(NewAPIClientWithConfig(srv.URL), []string{"a.pdf", "missing.pdf"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2")
}

func TestRunFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, FilesResponse{Files: []File{{Name: "a.pdf", Size: 2048, Uploaded: 1700000000}}})
	}))
	defer srv.Close()

	assert.NoError(t, runFiles(NewAPIClientWithConfig(srv.URL), false))
	assert.NoError(t, runFiles(NewAPIClientWithConfig(srv.URL), true))
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "2.0 KiB", formatSize(2048))
	assert.Equal(t, "1.5 MiB", formatSize(1536*1024))
}

func TestProgressReader_ReportsProgress(t *testing.T) {
	data := []byte("hello world this is test data")

	var calls []int64
	pr := &progressReader{
		reader: bytes.NewReader(data),
		total:  int64(len(data)),
		onProgress: func(current, total int64) {
			calls = append(calls, current)
		},
	}

	result, err := io.ReadAll(pr)
	require.NoError(t, err)
	assert.Equal(t, data, result)
	require.NotEmpty(t, calls)
	assert.Equal(t, int64(len(data)), calls[len(calls)-1])
}

func TestProgressReader_NilCallback(t *testing.T) {
	data := []byte("hello world")
	pr := &progressReader{reader: bytes.NewReader(data), total: int64(len(data))}

	result, err := io.ReadAll(pr)
	require.NoError(t, err)
	assert.Equal(t, data, result)
}
