package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	// DefaultEmbeddingModel is the sentence-transformers model served by the embedding endpoint
	DefaultEmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"
	// DefaultEmbeddingDimensions is the expected dimension of MiniLM embeddings
	DefaultEmbeddingDimensions = 384
	// DefaultEmbeddingTimeout bounds one request to the embedding endpoint
	DefaultEmbeddingTimeout = 30 * time.Second
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when embedding has wrong dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoModel is returned when a model name is empty
	ErrNoModel = errors.New("embedding model name cannot be empty")
)

// EmbeddingAPI defines the interface for embedding generation
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, model string, texts []string) ([][]float32, error)
}

type OpenAIAdapter struct {
	client *openai.Client
}

// NewOpenAIAdapter talks to any OpenAI-compatible /embeddings endpoint
// (text-embeddings-inference, Ollama, OpenAI). A zero timeout leaves the
// HTTP client unbounded.
func NewOpenAIAdapter(baseURL, apiKey string, timeout time.Duration) *OpenAIAdapter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	return &OpenAIAdapter{client: openai.NewClientWithConfig(cfg)}
}

// CreateEmbeddings encodes a batch of texts in one request
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, model string, texts []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([][]float32, 0, len(data))
	for _, d := range data {
		vectors = append(vectors, d.Embedding)
	}
	return vectors, nil
}

type Config struct {
	BaseURL             string
	APIKey              string
	EmbeddingDimensions int
	// RequestsPerSecond caps calls to the embedding endpoint; 0 disables the limit.
	RequestsPerSecond float64
	// Timeout bounds each Encode call, rate limit wait included.
	Timeout time.Duration
}

// Factory opens embedding models that share one API client and rate limiter.
type Factory struct {
	api        EmbeddingAPI
	dimensions int
	limiter    *rate.Limiter
	timeout    time.Duration
}

// NewFactory creates a factory backed by the OpenAI-compatible adapter
func NewFactory(cfg Config) *Factory {
	api := NewOpenAIAdapter(cfg.BaseURL, cfg.APIKey, cfg.Timeout)
	return NewFactoryWithAPI(api, cfg.EmbeddingDimensions, cfg.RequestsPerSecond).WithTimeout(cfg.Timeout)
}

// NewFactoryWithAPI creates a factory around an arbitrary EmbeddingAPI
func NewFactoryWithAPI(api EmbeddingAPI, dimensions int, rps float64) *Factory {
	var limiter *rate.Limiter
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &Factory{api: api, dimensions: dimensions, limiter: limiter}
}

// WithTimeout sets the per-call deadline for models opened afterwards.
func (f *Factory) WithTimeout(d time.Duration) *Factory {
	f.timeout = d
	return f
}

// Open returns a handle for the named model. It does not touch the network;
// callers probe the model with Encode.
func (f *Factory) Open(_ context.Context, name string) (*EmbeddingModel, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrNoModel
	}
	return &EmbeddingModel{
		name:       name,
		api:        f.api,
		dimensions: f.dimensions,
		limiter:    f.limiter,
		timeout:    f.timeout,
	}, nil
}

// EmbeddingModel encodes texts with one named remote model
type EmbeddingModel struct {
	name       string
	api        EmbeddingAPI
	dimensions int
	limiter    *rate.Limiter
	timeout    time.Duration
}

func (m *EmbeddingModel) Name() string {
	return m.name
}

// Encode embeds texts in a single request. Vectors are returned unnormalised
// in input order.
func (m *EmbeddingModel) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	for _, text := range texts {
		if text == "" {
			return nil, ErrEmptyText
		}
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("embedding rate limit: %w", err)
		}
	}

	vectors, err := m.api.CreateEmbeddings(ctx, m.name, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings with %s: %w", m.name, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(texts))
	}

	width := m.dimensions
	for _, vec := range vectors {
		if width <= 0 {
			width = len(vec)
		}
		if len(vec) == 0 || len(vec) != width {
			return nil, fmt.Errorf("%w: got %d, expected %d", ErrWrongDimensions, len(vec), width)
		}
	}

	return vectors, nil
}
