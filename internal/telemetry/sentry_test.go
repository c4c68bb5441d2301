package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_NoDSN(t *testing.T) {
	shutdown, err := Init(Config{})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	shutdown()
}

func TestStartSpan_NestsUnderParent(t *testing.T) {
	ctx, parent := StartSpan(context.Background(), "IndexService.Rebuild", SpanAttributes{Operation: "rebuild"})
	defer parent.End()

	_, child := StartSpan(ctx, "Embedder.Embed", SpanAttributes{Model: "all-MiniLM-L6-v2"})
	defer child.End()

	require.NotNil(t, child.inner)
	assert.Equal(t, parent.inner.SpanID, child.inner.ParentSpanID)
	assert.Equal(t, "all-MiniLM-L6-v2", child.inner.Tags["embedding_model"])
	assert.Equal(t, "rebuild", parent.inner.Data["operation"])
}

func TestSpan_NilSafe(t *testing.T) {
	var span Span
	span.SetData("k", 1)
	span.SetStatus(sentry.SpanStatusOK)
	span.SetError(errors.New("boom"))
	span.End()
	assert.NotNil(t, span.Context())
}

func TestStartTransaction_SetsName(t *testing.T) {
	ctx, span := StartTransaction(context.Background(), "reindex", "job.reindex")
	defer span.End()

	require.NotNil(t, span.inner)
	assert.Equal(t, "reindex", span.inner.Name)
	assert.Equal(t, "job.reindex", span.inner.Op)

	// no client configured; these must not panic
	CaptureError(ctx, errors.New("reindex failed"))
	AddBreadcrumb(ctx, "reindex", "index refreshed")
}
