package service

import (
	"context"
	"log"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/telemetry"
)

const DefaultProviderTimeout = 30 * time.Second

// AnswerGenerator runs the provider chain and falls through to the
// extractive provider, so it always returns an answer.
type AnswerGenerator struct {
	providers []AnswerProvider
	fallback  *ExtractiveProvider
	timeout   time.Duration
}

func NewAnswerGenerator(timeout time.Duration, fallback *ExtractiveProvider, providers ...AnswerProvider) *AnswerGenerator {
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	if fallback == nil {
		fallback = NewExtractiveProvider(DefaultSynonymTable())
	}
	return &AnswerGenerator{providers: providers, fallback: fallback, timeout: timeout}
}

// GenerateAnswer returns the first answer produced by a provider. Each
// remote attempt gets its own timeout.
func (g *AnswerGenerator) GenerateAnswer(ctx context.Context, results []domain.RetrievalResult, query string) string {
	for _, p := range g.providers {
		if answer, ok := g.attempt(ctx, p, results, query); ok {
			return answer
		}
	}
	telemetry.AddBreadcrumb(ctx, "answer", "remote providers exhausted, using extractive answer")
	return g.fallback.Answer(results, query)
}

func (g *AnswerGenerator) attempt(ctx context.Context, p AnswerProvider, results []domain.RetrievalResult, query string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	ctx, span := telemetry.StartSpan(ctx, "AnswerGenerator.attempt", telemetry.SpanAttributes{
		Provider:  p.Name(),
		Operation: "answer",
	})
	defer span.End()

	start := time.Now()
	answer, ok := p.TryAnswer(ctx, results, query)
	span.SetData("ok", ok)
	if !ok {
		log.Printf("answer: %s provider gave no answer after %s, trying next", p.Name(), time.Since(start).Round(time.Millisecond))
	}
	return answer, ok
}
