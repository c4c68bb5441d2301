//go:build e2e

package e2e

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/docqa/internal/api/handlers"
	"github.com/cloo-solutions/docqa/internal/cli/client"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	parkinsonDoc = "Parkinson's disease is a progressive neurological disorder. " +
		"Early symptoms include tremor, rigidity and slowness of movement. " +
		"Handwriting often becomes small and cramped, a sign called micrographia."
	mlDoc = "Machine learning models classify spiral drawings. " +
		"Convolutional networks reach high accuracy on handwriting datasets. " +
		"Feature extraction uses pen pressure and velocity."
)

func TestE2E_HealthBuildsIndex(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	env.WriteDocument(0, "parkinson.txt", parkinsonDoc)

	resp, err := env.Client.Get("/health")
	require.NoError(t, err)

	var health handlers.HealthResponse
	require.NoError(t, json.Unmarshal(resp.Data, &health))
	assert.True(t, health.Healthy)
	assert.True(t, health.EmbeddingsReady)

	status, err := env.Pipeline.Index.Status()
	require.NoError(t, err)
	assert.Equal(t, "bow-model", status.Model, "first candidate is unavailable, fallback must be used")
	assert.Greater(t, status.Chunks, 0)
}

func TestE2E_ChatRanksRelevantDocument(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	env.WriteDocument(0, "parkinson.txt", parkinsonDoc)
	env.WriteDocument(1, "ml.txt", mlDoc)

	resp, err := env.Client.Post("/chat", client.ChatRequest{Message: "What are the early symptoms of tremor and rigidity?"})
	require.NoError(t, err)

	var chat client.ChatResponse
	require.NoError(t, json.Unmarshal(resp.Data, &chat))
	assert.Equal(t, service.StatusSuccess, chat.Status)
	require.NotEmpty(t, chat.Sources)
	assert.Equal(t, "parkinson.txt", chat.Sources[0].File)
	assert.Contains(t, chat.Answer, "tremor")
}

func TestE2E_ChatWithoutDocuments(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	_, err := env.Client.Post("/chat", client.ChatRequest{Message: "anything?"})

	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestE2E_ChatEmptyMessage(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	_, err := env.Client.Post("/chat", client.ChatRequest{Message: "   "})

	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestE2E_NewDocumentTriggersRebuild(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	env.WriteDocument(0, "parkinson.txt", parkinsonDoc)
	_, err := env.Pipeline.Index.Rebuild(env.Ctx)
	require.NoError(t, err)
	before, err := env.Pipeline.Index.Status()
	require.NoError(t, err)

	// Only PDFs drive staleness, so the new document is a (text-less) PDF
	// placed next to a text document that carries the content.
	env.WriteDocument(1, "ml.txt", mlDoc)
	pdf := filepath.Join(env.Config.DataDirs[1], "scan.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.4 not really"), 0o644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(pdf, future, future))

	assert.True(t, env.Pipeline.Index.NeedsRebuild())

	resp, err := env.Client.Post("/chat", client.ChatRequest{Message: "spiral drawings accuracy"})
	require.NoError(t, err)
	var chat client.ChatResponse
	require.NoError(t, json.Unmarshal(resp.Data, &chat))
	require.NotEmpty(t, chat.Sources)
	assert.Equal(t, "ml.txt", chat.Sources[0].File)

	after, err := env.Pipeline.Index.Status()
	require.NoError(t, err)
	assert.Greater(t, after.Chunks, before.Chunks)
}

func TestE2E_FilesAndUploadValidation(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	resp, err := env.Client.Get("/files")
	require.NoError(t, err)
	var files client.FilesResponse
	require.NoError(t, json.Unmarshal(resp.Data, &files))
	assert.Empty(t, files.Files)

	txt := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("plain"), 0o644))
	_, err = env.Client.UploadFiles([]string{txt}, nil)

	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.NoFileExists(t, filepath.Join(env.Config.DataDirs[0], "notes.txt"))

	_, err = env.Client.Delete(client.FilePath("missing.pdf"))
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestE2E_WebSocketChat(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	env.WriteDocument(0, "parkinson.txt", parkinsonDoc)
	_, err := env.Pipeline.Index.Rebuild(env.Ctx)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(env.ServerURL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"message": "micrographia handwriting"}))

	var types []string
	var final handlers.Event
	for len(types) < 4 {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
		var e handlers.Event
		require.NoError(t, conn.ReadJSON(&e))
		types = append(types, e.Type)
		final = e
	}

	assert.Equal(t, []string{handlers.EventProcessing, handlers.EventSources, handlers.EventGenerating, handlers.EventResponse}, types)
	require.NotEmpty(t, final.Sources)
	assert.Equal(t, "parkinson.txt", final.Sources[0].File)
	assert.NotEmpty(t, final.Answer)
}
