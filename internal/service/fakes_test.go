package service

import (
	"context"
	"errors"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode"

	"github.com/cloo-solutions/docqa/internal/ingest"
	"github.com/cloo-solutions/docqa/internal/storage"
	"github.com/stretchr/testify/require"
)

const fakeDims = 32

// fakeModel embeds text as a bag of hashed words, so texts sharing words
// score higher. Explicit vectors override the hashing.
type fakeModel struct {
	name    string
	vectors map[string][]float32
	err     error

	mu      sync.Mutex
	batches [][]string
}

func newFakeModel(name string) *fakeModel {
	return &fakeModel{name: name, vectors: map[string][]float32{}}
}

func (m *fakeModel) Name() string { return m.name }

func (m *fakeModel) Encode(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batches = append(m.batches, append([]string(nil), texts...))
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := m.vectors[text]; ok {
			out[i] = append([]float32(nil), v...)
			continue
		}
		out[i] = bagOfWords(text)
	}
	return out, nil
}

func (m *fakeModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

func bagOfWords(text string) []float32 {
	vec := make([]float32, fakeDims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.TrimFunc(word, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		if word == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[h.Sum32()%fakeDims]++
	}
	return vec
}

// fakeOpener hands out registered models and counts opens
type fakeOpener struct {
	mu     sync.Mutex
	models map[string]*fakeModel
	opened []string
}

func newFakeOpener(models ...*fakeModel) *fakeOpener {
	o := &fakeOpener{models: map[string]*fakeModel{}}
	for _, m := range models {
		o.models[m.name] = m
	}
	return o
}

func (o *fakeOpener) Open(_ context.Context, name string) (EmbeddingModel, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, name)
	m, ok := o.models[name]
	if !ok {
		return nil, errors.New("model not found")
	}
	return m, nil
}

func (o *fakeOpener) opens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.opened)
}

// textPDF reads .pdf fixtures as plain text
type textPDF struct{}

func (textPDF) ExtractText(path string) (string, error) {
	data, err := os.ReadFile(path)
	return string(data), err
}

type fixture struct {
	dir      string
	store    *storage.FileArtifactStore
	model    *fakeModel
	opener   *fakeOpener
	index    *IndexService
	detector *StalenessDetector
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "course_notes")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	model := newFakeModel(DefaultEmbeddingModels[0])
	opener := newFakeOpener(model)
	loader := NewFallbackModelLoader(opener.Open)
	store := storage.NewFileArtifactStore(filepath.Join(root, "embeddings", "vector_index.gob"))
	detector := NewStalenessDetector(store, []string{dir})

	index := NewIndexService(
		ingest.NewLoader([]string{dir}, textPDF{}),
		loader,
		NewEmbedder(loader, 2),
		store,
		detector,
		IndexConfig{Chunking: DefaultChunkConfig(), TopK: 3},
	)

	return &fixture{dir: dir, store: store, model: model, opener: opener, index: index, detector: detector}
}

// writeDoc writes a document and backdates it so a later artifact is
// strictly newer regardless of filesystem timestamp resolution.
func (f *fixture) writeDoc(t *testing.T, name, text string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, past, past))
	return path
}

func touch(t *testing.T, path string, when time.Time) {
	t.Helper()
	require.NoError(t, os.Chtimes(path, when, when))
}

func removeFile(path string) error {
	return os.Remove(path)
}
