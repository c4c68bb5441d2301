package admin

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloo-solutions/docqa/internal/config"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	return &config.Config{
		Port:                "8000",
		DataDirs:            []string{filepath.Join(root, "course_notes"), filepath.Join(root, "past_papers")},
		ArtifactPath:        filepath.Join(root, "embeddings", "vector_index.gob"),
		ChunkWords:          500,
		ChunkOverlap:        50,
		TopK:                3,
		EmbeddingBaseURL:    "http://127.0.0.1:1/v1",
		EmbeddingModels:     []string{"sentence-transformers/all-MiniLM-L6-v2"},
		EmbeddingDimensions: 384,
		EmbedBatchSize:      8,
		ProviderTimeout:     time.Second,
		EmbeddingTimeout:    time.Second,
		RebuildTimeout:      time.Minute,
	}
}

func TestNewPipeline_WithoutRemoteServices(t *testing.T) {
	cfg := testConfig(t)

	p, err := NewPipeline(context.Background(), cfg)
	require.NoError(t, err)

	assert.Nil(t, p.Mirror)
	assert.Equal(t, cfg.DataDirs[0], p.Documents.Dir())
	assert.False(t, p.Index.Ready())
	assert.True(t, p.Index.NeedsRebuild())

	status, err := p.Index.Status()
	require.NoError(t, err)
	assert.False(t, status.Ready)
}

func TestNewPipeline_RebuildWithNoDocuments(t *testing.T) {
	p, err := NewPipeline(context.Background(), testConfig(t))
	require.NoError(t, err)

	_, err = p.Index.Rebuild(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoDocuments)
}

func TestNewPipeline_AskDegradesWithoutEmbeddingServer(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.DataDirs[0], 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DataDirs[0], "notes.txt"), []byte("tremor and rigidity"), 0o644))

	p, err := NewPipeline(context.Background(), cfg)
	require.NoError(t, err)

	out, err := p.QA.Ask(context.Background(), "what is tremor?")
	require.NoError(t, err)
	assert.Equal(t, service.StatusNoResults, out.Status)
	assert.Equal(t, service.NoInformationMessage, out.Answer)
}

func TestNewAnswerGenerator_SynonymsFile(t *testing.T) {
	cfg := testConfig(t)

	path := filepath.Join(t.TempDir(), "synonyms.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\nterms:\n  tremor: [shaking]\n"), 0o644))
	cfg.SynonymsFile = path
	gen, err := newAnswerGenerator(cfg)
	require.NoError(t, err)
	assert.NotNil(t, gen)

	cfg.SynonymsFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = newAnswerGenerator(cfg)
	assert.Error(t, err)
}
