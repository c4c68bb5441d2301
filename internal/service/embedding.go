package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/telemetry"
)

const (
	DefaultEmbedBatchSize = 8
	probeText             = "embedding model probe"
)

// DefaultEmbeddingModels lists the models tried in order when none is configured
var DefaultEmbeddingModels = []string{
	"sentence-transformers/all-MiniLM-L6-v2",
	"sentence-transformers/paraphrase-MiniLM-L3-v2",
}

// EmbeddingModel encodes texts into fixed-width vectors
type EmbeddingModel interface {
	Name() string
	Encode(ctx context.Context, texts []string) ([][]float32, error)
}

// ModelOpener returns a handle for a named model
type ModelOpener func(ctx context.Context, name string) (EmbeddingModel, error)

// ModelLoader resolves a usable embedding model
type ModelLoader interface {
	LoadModel(ctx context.Context) (EmbeddingModel, error)
	LoadPreferred(ctx context.Context, name string) (EmbeddingModel, error)
}

// FallbackModelLoader tries each candidate in order and returns the first one
// that can encode a probe string.
type FallbackModelLoader struct {
	candidates []string
	open       ModelOpener
}

func NewFallbackModelLoader(open ModelOpener, candidates ...string) *FallbackModelLoader {
	if len(candidates) == 0 {
		candidates = DefaultEmbeddingModels
	}
	return &FallbackModelLoader{candidates: candidates, open: open}
}

// Candidates returns the model names in the order they are tried
func (l *FallbackModelLoader) Candidates() []string {
	return l.candidates
}

func (l *FallbackModelLoader) LoadModel(ctx context.Context) (EmbeddingModel, error) {
	return l.load(ctx, l.candidates)
}

// LoadPreferred tries name before the configured candidates
func (l *FallbackModelLoader) LoadPreferred(ctx context.Context, name string) (EmbeddingModel, error) {
	if name == "" {
		return l.LoadModel(ctx)
	}
	order := []string{name}
	for _, c := range l.candidates {
		if c != name {
			order = append(order, c)
		}
	}
	return l.load(ctx, order)
}

func (l *FallbackModelLoader) load(ctx context.Context, names []string) (EmbeddingModel, error) {
	var causes []error
	for _, name := range names {
		model, err := l.probe(ctx, name)
		if err == nil {
			return model, nil
		}
		log.Printf("embedding: model %s unavailable: %v", name, err)
		causes = append(causes, fmt.Errorf("%s: %w", name, err))
	}
	return nil, fmt.Errorf("%w: %w", domain.ErrModelUnavailable, errors.Join(causes...))
}

func (l *FallbackModelLoader) probe(ctx context.Context, name string) (EmbeddingModel, error) {
	if l.open == nil {
		return nil, errors.New("no model opener configured")
	}
	model, err := l.open(ctx, name)
	if err != nil {
		return nil, err
	}
	vectors, err := model.Encode(ctx, []string{probeText})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, errors.New("probe returned no vector")
	}
	return model, nil
}

// Embedder turns chunks into an index artifact
type Embedder struct {
	loader    ModelLoader
	batchSize int
}

func NewEmbedder(loader ModelLoader, batchSize int) *Embedder {
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	return &Embedder{loader: loader, batchSize: batchSize}
}

// Embed loads a model and encodes every chunk in batches. Vectors are
// L2-normalized. Zero chunks produce an empty artifact for the loaded model.
func (e *Embedder) Embed(ctx context.Context, chunks []domain.Chunk) (*domain.IndexArtifact, error) {
	model, err := e.loader.LoadModel(ctx)
	if err != nil {
		return nil, err
	}
	return e.EmbedWith(ctx, model, chunks)
}

// EmbedWith encodes chunks with an already loaded model
func (e *Embedder) EmbedWith(ctx context.Context, model EmbeddingModel, chunks []domain.Chunk) (*domain.IndexArtifact, error) {
	ctx, span := telemetry.StartSpan(ctx, "Embedder.Embed", telemetry.SpanAttributes{
		Model:     model.Name(),
		Operation: "embed",
	})
	defer span.End()
	span.SetData("chunks", len(chunks))

	embedded, dims, err := e.encodeAll(ctx, model, chunks)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	return domain.NewIndexArtifact(model.Name(), dims, embedded), nil
}

func (e *Embedder) encodeAll(ctx context.Context, model EmbeddingModel, chunks []domain.Chunk) ([]domain.EmbeddedChunk, int, error) {
	embedded := make([]domain.EmbeddedChunk, 0, len(chunks))
	dims := 0

	for start := 0; start < len(chunks); start += e.batchSize {
		end := min(start+e.batchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := model.Encode(ctx, texts)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to encode chunks %d-%d: %w", start, end, err)
		}
		if len(vectors) != len(batch) {
			return nil, 0, fmt.Errorf("model returned %d vectors for %d chunks", len(vectors), len(batch))
		}

		for i, vec := range vectors {
			if dims == 0 {
				dims = len(vec)
			}
			if len(vec) != dims {
				return nil, 0, fmt.Errorf("chunk %d has %d dimensions, expected %d", start+i, len(vec), dims)
			}
			embedded = append(embedded, domain.EmbeddedChunk{
				SourceFile: batch[i].SourceFile,
				Text:       batch[i].Text,
				Vector:     domain.NormalizeL2(vec),
			})
		}
	}

	return embedded, dims, nil
}
