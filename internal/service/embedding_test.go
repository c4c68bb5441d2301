package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockModelLoader mocks model resolution
type MockModelLoader struct {
	mock.Mock
}

func (m *MockModelLoader) LoadModel(ctx context.Context) (EmbeddingModel, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(EmbeddingModel), args.Error(1)
}

func (m *MockModelLoader) LoadPreferred(ctx context.Context, name string) (EmbeddingModel, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(EmbeddingModel), args.Error(1)
}

func TestFallbackModelLoader_FirstCandidate(t *testing.T) {
	primary := newFakeModel("primary")
	opener := newFakeOpener(primary, newFakeModel("secondary"))

	model, err := NewFallbackModelLoader(opener.Open, "primary", "secondary").LoadModel(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "primary", model.Name())
	assert.Equal(t, []string{"primary"}, opener.opened)
	assert.Equal(t, 1, primary.calls(), "model is probed once")
}

func TestFallbackModelLoader_FallsBack(t *testing.T) {
	broken := newFakeModel("primary")
	broken.err = errors.New("out of memory")
	opener := newFakeOpener(broken, newFakeModel("secondary"))

	model, err := NewFallbackModelLoader(opener.Open, "primary", "secondary").LoadModel(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "secondary", model.Name())
}

func TestFallbackModelLoader_AllFail(t *testing.T) {
	opener := newFakeOpener()
	loader := NewFallbackModelLoader(opener.Open, "a", "b")

	model, err := loader.LoadModel(context.Background())

	assert.Nil(t, model)
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
	assert.Contains(t, err.Error(), "a: model not found")
	assert.Contains(t, err.Error(), "b: model not found")
}

func TestFallbackModelLoader_LoadPreferred(t *testing.T) {
	opener := newFakeOpener(newFakeModel("a"), newFakeModel("b"))
	loader := NewFallbackModelLoader(opener.Open, "a", "b")

	model, err := loader.LoadPreferred(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, "b", model.Name())

	model, err = loader.LoadPreferred(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "a", model.Name())
}

func TestFallbackModelLoader_DefaultCandidates(t *testing.T) {
	loader := NewFallbackModelLoader(newFakeOpener().Open)
	assert.Equal(t, DefaultEmbeddingModels, loader.Candidates())
}

func TestEmbedder_Embed_BatchesAndNormalizes(t *testing.T) {
	model := newFakeModel("m")
	model.vectors["one"] = []float32{3, 4}
	model.vectors["two"] = []float32{0, 2}
	model.vectors["three"] = []float32{1, 0}

	loader := new(MockModelLoader)
	loader.On("LoadModel", mock.Anything).Return(model, nil)

	chunks := []domain.Chunk{
		{SourceFile: "a.pdf", Text: "one"},
		{SourceFile: "a.pdf", Text: "two"},
		{SourceFile: "b.pdf", Text: "three"},
	}

	artifact, err := NewEmbedder(loader, 2).Embed(context.Background(), chunks)
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"one", "two"}, {"three"}}, model.batches)
	assert.Equal(t, "m", artifact.ModelName)
	assert.Equal(t, 2, artifact.Dimensions)
	require.Len(t, artifact.Chunks, 3)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, artifact.Chunks[0].Vector, 1e-6)
	assert.Equal(t, "b.pdf", artifact.Chunks[2].SourceFile)

	for _, c := range artifact.Chunks {
		var sum float64
		for _, x := range c.Vector {
			sum += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)
	}
	require.NoError(t, domain.ValidateArtifact(artifact))
}

func TestEmbedder_Embed_ModelUnavailable(t *testing.T) {
	loader := new(MockModelLoader)
	loader.On("LoadModel", mock.Anything).Return(nil, domain.ErrModelUnavailable)

	artifact, err := NewEmbedder(loader, 0).Embed(context.Background(), []domain.Chunk{{SourceFile: "a", Text: "x"}})

	assert.Nil(t, artifact)
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
}

func TestEmbedder_EmbedWith_EncodeError(t *testing.T) {
	model := newFakeModel("m")
	model.err = errors.New("connection reset")

	_, err := NewEmbedder(nil, 8).EmbedWith(context.Background(), model, []domain.Chunk{{SourceFile: "a", Text: "x"}})

	assert.ErrorContains(t, err, "connection reset")
}

func TestEmbedder_EmbedWith_DimensionMismatch(t *testing.T) {
	model := newFakeModel("m")
	model.vectors["a"] = []float32{1, 0}
	model.vectors["b"] = []float32{1, 0, 0}

	_, err := NewEmbedder(nil, 1).EmbedWith(context.Background(), model, []domain.Chunk{
		{SourceFile: "f", Text: "a"},
		{SourceFile: "f", Text: "b"},
	})

	assert.ErrorContains(t, err, "dimensions")
}

func TestEmbedder_EmbedWith_NoChunks(t *testing.T) {
	model := newFakeModel("m")

	artifact, err := NewEmbedder(nil, 8).EmbedWith(context.Background(), model, nil)

	require.NoError(t, err)
	assert.True(t, artifact.IsEmpty())
	assert.Equal(t, "m", artifact.ModelName)
	assert.Zero(t, model.calls())
}
