//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/docqa/internal/api/handlers"
	"github.com/cloo-solutions/docqa/internal/cli/admin"
	"github.com/cloo-solutions/docqa/internal/cli/client"
	"github.com/cloo-solutions/docqa/internal/config"
	"github.com/cloo-solutions/docqa/internal/server"
	"github.com/stretchr/testify/require"
)

const embeddingDims = 64

// E2ETestEnv runs the full pipeline behind the real router, with a fake
// OpenAI-compatible embedding server standing in for the model host.
type E2ETestEnv struct {
	T         *testing.T
	Ctx       context.Context
	Config    *config.Config
	Pipeline  *admin.Pipeline
	ServerURL string
	Client    *client.APIClient

	embedSrv *httptest.Server
	apiSrv   *httptest.Server
}

func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()
	root := t.TempDir()

	embedSrv := httptest.NewServer(http.HandlerFunc(fakeEmbeddings))

	cfg := &config.Config{
		Port:                "0",
		DataDirs:            []string{filepath.Join(root, "course_notes"), filepath.Join(root, "past_papers")},
		ArtifactPath:        filepath.Join(root, "embeddings", "vector_index.gob"),
		ChunkWords:          40,
		ChunkOverlap:        5,
		TopK:                3,
		EmbeddingBaseURL:    embedSrv.URL + "/v1",
		EmbeddingModels:     []string{"missing-model", "bow-model"},
		EmbeddingDimensions: embeddingDims,
		EmbedBatchSize:      4,
		ProviderTimeout:     5 * time.Second,
		EmbeddingTimeout:    5 * time.Second,
		RebuildTimeout:      time.Minute,
	}
	for _, dir := range cfg.DataDirs {
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}

	p, err := admin.NewPipeline(ctx, cfg)
	require.NoError(t, err)

	hub := handlers.NewHub()
	router := server.NewRouter(server.RouterConfig{
		HealthHandler:    handlers.NewHealthHandler(p.Index),
		ChatHandler:      handlers.NewChatHandler(p.QA, p.Index),
		DocumentsHandler: handlers.NewDocumentsHandler(p.Documents, hub),
		WSHandler:        handlers.NewWSHandler(p.QA, p.Index, hub),
	})
	apiSrv := httptest.NewServer(router)

	return &E2ETestEnv{
		T:         t,
		Ctx:       ctx,
		Config:    cfg,
		Pipeline:  p,
		ServerURL: apiSrv.URL,
		Client:    client.NewAPIClientWithConfig(apiSrv.URL),
		embedSrv:  embedSrv,
		apiSrv:    apiSrv,
	}
}

func (e *E2ETestEnv) Cleanup() {
	e.apiSrv.Close()
	e.embedSrv.Close()
}

// WriteDocument places a text document in the data directory with the given
// index and backdates it so later writes are strictly newer.
func (e *E2ETestEnv) WriteDocument(dirIndex int, name, content string) string {
	path := filepath.Join(e.Config.DataDirs[dirIndex], name)
	require.NoError(e.T, os.WriteFile(path, []byte(content), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(e.T, os.Chtimes(path, old, old))
	return path
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// fakeEmbeddings serves bag-of-words vectors for "bow-model" and rejects
// every other model name.
func fakeEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req embeddingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":{"message":"bad request"}}`, http.StatusBadRequest)
		return
	}
	if req.Model != "bow-model" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"message":"model not found","type":"invalid_request_error"}}`))
		return
	}

	data := make([]map[string]interface{}, 0, len(req.Input))
	for i, text := range req.Input {
		data = append(data, map[string]interface{}{
			"object":    "embedding",
			"index":     i,
			"embedding": bagOfWords(text),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"object": "list",
		"model":  req.Model,
		"data":   data,
		"usage":  map[string]int{"prompt_tokens": 0, "total_tokens": 0},
	})
}

func bagOfWords(text string) []float32 {
	v := make([]float32, embeddingDims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,?!'\"")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(word))
		v[h.Sum32()%embeddingDims]++
	}
	// Keep the vector non-zero so normalisation is defined
	v[0] += 0.01
	return v
}
