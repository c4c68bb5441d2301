package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/cloo-solutions/docqa/internal/domain"
)

const (
	StatusSuccess   = "success"
	StatusNoResults = "no_results"
)

// Retriever finds the chunks relevant to a query
type Retriever interface {
	EnsureFresh(ctx context.Context) (bool, error)
	Search(ctx context.Context, query string, topK int) ([]domain.RetrievalResult, error)
}

// Answerer turns retrieval results into an answer
type Answerer interface {
	GenerateAnswer(ctx context.Context, results []domain.RetrievalResult, query string) string
}

type AskOutput struct {
	Answer  string
	Sources []domain.RetrievalResult
	Status  string
}

// QAService answers questions over the indexed documents
type QAService struct {
	index    Retriever
	answerer Answerer
	topK     int
}

func NewQAService(index Retriever, answerer Answerer, topK int) *QAService {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &QAService{index: index, answerer: answerer, topK: topK}
}

// Ask refreshes the index if needed, retrieves and answers. Only an empty
// query is an error; retrieval problems degrade to a no-results answer.
func (s *QAService) Ask(ctx context.Context, query string) (*AskOutput, error) {
	results, err := s.Retrieve(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.Answer(ctx, results, query), nil
}

// Retrieve is the first half of Ask, exposed so callers can report
// progress between retrieval and generation.
func (s *QAService) Retrieve(ctx context.Context, query string) ([]domain.RetrievalResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}

	if _, err := s.index.EnsureFresh(ctx); err != nil {
		if errors.Is(err, domain.ErrNoDocuments) {
			log.Printf("qa: no documents to index")
		} else {
			log.Printf("qa: refresh failed, serving existing index: %v", err)
		}
	}

	results, err := s.index.Search(ctx, query, s.topK)
	if err != nil {
		log.Printf("qa: search failed: %v", err)
		return []domain.RetrievalResult{}, nil
	}
	return results, nil
}

// Answer is the second half of Ask
func (s *QAService) Answer(ctx context.Context, results []domain.RetrievalResult, query string) *AskOutput {
	query = strings.TrimSpace(query)
	status := StatusSuccess
	if len(results) == 0 {
		status = StatusNoResults
	}
	return &AskOutput{
		Answer:  s.answerer.GenerateAnswer(ctx, results, query),
		Sources: results,
		Status:  status,
	}
}
