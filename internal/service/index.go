package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/telemetry"
)

const DefaultTopK = 3

// DocumentLoader reads the source documents
type DocumentLoader interface {
	Load(ctx context.Context) ([]domain.Document, error)
}

// ArtifactStore persists the index artifact
type ArtifactStore interface {
	Path() string
	Save(artifact *domain.IndexArtifact) error
	Load() (*domain.IndexArtifact, error)
	Remove() error
	ModTime() (time.Time, bool)
}

// RebuildResult summarizes a completed rebuild
type RebuildResult struct {
	Documents int
	Chunks    int
	Model     string
	Duration  time.Duration
}

// IndexStatus describes the persisted artifact
type IndexStatus struct {
	Ready     bool
	Stale     bool
	Chunks    int
	Model     string
	CreatedAt time.Time
}

type IndexConfig struct {
	Chunking ChunkConfig
	TopK     int
	// RebuildTimeout bounds a shared rebuild or snapshot load. Zero means
	// only the embedding client's own timeouts apply.
	RebuildTimeout time.Duration
}

// indexSnapshot is an immutable view of one artifact and the model that
// encodes queries for it.
type indexSnapshot struct {
	artifact *domain.IndexArtifact
	model    EmbeddingModel
	version  uint64
	exists   bool
	modTime  time.Time
}

// IndexService owns the embedding model, the in-memory vectors and the
// chunk metadata. Rebuilds are single-flighted per artifact path; searches
// reload when the artifact changed in this process or on disk.
type IndexService struct {
	loader    DocumentLoader
	models    ModelLoader
	embedder  *Embedder
	store     ArtifactStore
	staleness *StalenessDetector
	cfg       IndexConfig

	group   singleflight.Group
	version atomic.Uint64

	mu   sync.RWMutex
	snap *indexSnapshot
}

func NewIndexService(
	loader DocumentLoader,
	models ModelLoader,
	embedder *Embedder,
	store ArtifactStore,
	staleness *StalenessDetector,
	cfg IndexConfig,
) *IndexService {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	return &IndexService{
		loader:    loader,
		models:    models,
		embedder:  embedder,
		store:     store,
		staleness: staleness,
		cfg:       cfg,
	}
}

// Ready reports whether an artifact has been written
func (s *IndexService) Ready() bool {
	_, ok := s.store.ModTime()
	return ok
}

// NeedsRebuild reports whether the artifact is missing or stale
func (s *IndexService) NeedsRebuild() bool {
	return s.staleness.NeedsRebuild()
}

// EnsureFresh rebuilds only when the artifact is missing or stale
func (s *IndexService) EnsureFresh(ctx context.Context) (bool, error) {
	if !s.staleness.NeedsRebuild() {
		return false, nil
	}
	_, err := s.Rebuild(ctx)
	return true, err
}

// Rebuild runs load, chunk and embed and replaces the artifact. Concurrent
// callers share the same run. The run is detached from any single caller, so
// a caller giving up returns ctx.Err() without cancelling it for the others.
func (s *IndexService) Rebuild(ctx context.Context) (*RebuildResult, error) {
	ch := s.group.DoChan(s.store.Path(), func() (any, error) {
		runCtx, cancel := s.detach(ctx)
		defer cancel()
		return s.rebuild(runCtx)
	})

	select {
	case res := <-ch:
		if res.Shared {
			log.Printf("index: joined in-flight rebuild")
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*RebuildResult), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for index rebuild: %w", ctx.Err())
	}
}

// detach keeps ctx values (tracing) but not its cancellation, and applies
// RebuildTimeout.
func (s *IndexService) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if s.cfg.RebuildTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.RebuildTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *IndexService) rebuild(ctx context.Context) (*RebuildResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "IndexService.Rebuild", telemetry.SpanAttributes{
		Operation: "rebuild",
	})
	defer span.End()

	start := time.Now()

	docs, err := s.loader.Load(ctx)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}

	if len(docs) == 0 {
		if err := s.store.Remove(); err != nil {
			span.SetError(err)
			return nil, err
		}
		s.publish(&domain.IndexArtifact{}, nil)
		log.Printf("index: no documents found, removed %s", s.store.Path())
		return nil, domain.ErrNoDocuments
	}

	chunks := ChunkDocuments(docs, s.cfg.Chunking)

	model, err := s.models.LoadModel(ctx)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	artifact, err := s.embedder.EmbedWith(ctx, model, chunks)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	if err := s.store.Save(artifact); err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to save index: %w", err)
	}
	s.publish(artifact, model)

	result := &RebuildResult{
		Documents: len(docs),
		Chunks:    len(artifact.Chunks),
		Model:     model.Name(),
		Duration:  time.Since(start),
	}
	span.SetData("chunks", result.Chunks)
	log.Printf("index: rebuilt %d chunks from %d documents with %s in %s",
		result.Chunks, result.Documents, result.Model, result.Duration.Round(time.Millisecond))

	return result, nil
}

func (s *IndexService) publish(artifact *domain.IndexArtifact, model EmbeddingModel) {
	modTime, exists := s.store.ModTime()
	snap := &indexSnapshot{
		artifact: artifact,
		model:    model,
		exists:   exists,
		modTime:  modTime,
	}

	s.mu.Lock()
	snap.version = s.version.Add(1)
	s.snap = snap
	s.mu.Unlock()
}

// Search returns the topK chunks most similar to query. A missing or empty
// index yields no results and no error.
func (s *IndexService) Search(ctx context.Context, query string, topK int) ([]domain.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyQuery
	}
	if topK <= 0 {
		topK = s.cfg.TopK
	}

	ctx, span := telemetry.StartSpan(ctx, "IndexService.Search", telemetry.SpanAttributes{
		Operation: "search",
	})
	defer span.End()

	snap, err := s.current(ctx)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if snap.artifact.IsEmpty() {
		return []domain.RetrievalResult{}, nil
	}

	vectors, err := snap.model.Encode(ctx, []string{query})
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("model returned %d vectors for one query", len(vectors))
	}
	queryVec := domain.NormalizeL2(vectors[0])
	if len(queryVec) != snap.artifact.Dimensions {
		return nil, fmt.Errorf("query has %d dimensions, index has %d", len(queryVec), snap.artifact.Dimensions)
	}

	return rank(snap.artifact.Chunks, queryVec, topK), nil
}

// rank is an exact flat scan; equal scores keep insertion order.
func rank(chunks []domain.EmbeddedChunk, query []float32, topK int) []domain.RetrievalResult {
	order := make([]int, len(chunks))
	scores := make([]float32, len(chunks))
	for i, c := range chunks {
		order[i] = i
		scores[i] = domain.Dot(c.Vector, query)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	if topK > len(order) {
		topK = len(order)
	}
	results := make([]domain.RetrievalResult, topK)
	for i, idx := range order[:topK] {
		results[i] = domain.RetrievalResult{
			SourceFile: chunks[idx].SourceFile,
			Text:       chunks[idx].Text,
			Score:      scores[idx],
		}
	}
	return results
}

// current returns the published snapshot, reloading it from disk when the
// artifact changed since it was taken. Loading probes the model over the
// network, so it runs outside s.mu and callers stop waiting when ctx ends.
func (s *IndexService) current(ctx context.Context) (*indexSnapshot, error) {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()

	if s.isCurrent(snap) {
		return snap, nil
	}

	ch := s.group.DoChan("load:"+s.store.Path(), func() (any, error) {
		loadCtx, cancel := s.detach(ctx)
		defer cancel()
		return s.reload(loadCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*indexSnapshot), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for index load: %w", ctx.Err())
	}
}

// reload loads a snapshot and publishes it unless a rebuild published a
// newer one in the meantime.
func (s *IndexService) reload(ctx context.Context) (*indexSnapshot, error) {
	version := s.version.Load()
	loaded, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	loaded.version = version

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isCurrent(s.snap) {
		return s.snap, nil
	}
	if version == s.version.Load() {
		s.snap = loaded
	}
	return loaded, nil
}

func (s *IndexService) isCurrent(snap *indexSnapshot) bool {
	if snap == nil || snap.version != s.version.Load() {
		return false
	}
	modTime, exists := s.store.ModTime()
	return exists == snap.exists && modTime.Equal(snap.modTime)
}

func (s *IndexService) loadSnapshot(ctx context.Context) (*indexSnapshot, error) {
	modTime, exists := s.store.ModTime()

	artifact, err := s.store.Load()
	if errors.Is(err, domain.ErrIndexMissing) {
		return &indexSnapshot{artifact: &domain.IndexArtifact{}}, nil
	}
	if err != nil {
		return nil, err
	}

	snap := &indexSnapshot{artifact: artifact, exists: exists, modTime: modTime}
	if artifact.IsEmpty() {
		return snap, nil
	}

	model, err := s.models.LoadPreferred(ctx, artifact.ModelName)
	if err != nil {
		return nil, err
	}
	if model.Name() != artifact.ModelName {
		return nil, fmt.Errorf("%w: index was built with %s", domain.ErrModelUnavailable, artifact.ModelName)
	}
	snap.model = model

	log.Printf("index: loaded %d chunks built with %s at %s", len(artifact.Chunks), artifact.ModelName, artifact.CreatedAt.Format(time.RFC3339))
	return snap, nil
}

// Status reads the persisted artifact without loading a model
func (s *IndexService) Status() (*IndexStatus, error) {
	status := &IndexStatus{Stale: s.staleness.NeedsRebuild()}

	artifact, err := s.store.Load()
	if errors.Is(err, domain.ErrIndexMissing) {
		return status, nil
	}
	if err != nil {
		return nil, err
	}

	status.Ready = true
	status.Chunks = len(artifact.Chunks)
	status.Model = artifact.ModelName
	status.CreatedAt = artifact.CreatedAt
	return status, nil
}
