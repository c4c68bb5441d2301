package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/telemetry"
)

// IndexRefresher rebuilds the index when it is stale
type IndexRefresher interface {
	EnsureFresh(ctx context.Context) (bool, error)
}

// ReindexProcessor keeps the index in step with the document directories
type ReindexProcessor struct {
	index IndexRefresher
}

// NewReindexProcessor creates a new ReindexProcessor instance
func NewReindexProcessor(index IndexRefresher) *ReindexProcessor {
	return &ReindexProcessor{index: index}
}

// ProcessJobs implements the JobProcessor interface
func (p *ReindexProcessor) ProcessJobs(ctx context.Context) error {
	ctx, span := telemetry.StartTransaction(ctx, "reindex", "job.reindex")
	defer span.End()

	rebuilt, err := p.index.EnsureFresh(ctx)
	if errors.Is(err, domain.ErrNoDocuments) {
		log.Printf("reindex: no documents to index")
		return nil
	}
	if err != nil {
		telemetry.CaptureError(ctx, err)
		return fmt.Errorf("reindex failed: %w", err)
	}
	span.SetData("rebuilt", rebuilt)
	if rebuilt {
		telemetry.AddBreadcrumb(ctx, "reindex", "index refreshed")
		log.Printf("reindex: index refreshed")
	}
	return nil
}
