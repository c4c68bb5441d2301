package service

import (
	"strings"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// ChunkConfig controls the word windows documents are split into.
type ChunkConfig struct {
	WindowWords  int
	OverlapWords int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		WindowWords:  500,
		OverlapWords: 50,
	}
}

func (c ChunkConfig) normalized() ChunkConfig {
	if c.WindowWords <= 0 {
		return DefaultChunkConfig()
	}
	if c.OverlapWords < 0 || c.OverlapWords >= c.WindowWords {
		c.OverlapWords = 0
	}
	return c
}

// cleanText collapses whitespace runs to single spaces and trims the ends.
func cleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// splitWords returns overlapping windows of words. The window that reaches
// the final word is the last one, so consecutive windows share exactly
// OverlapWords words.
func splitWords(text string, cfg ChunkConfig) []string {
	cfg = cfg.normalized()
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := cfg.WindowWords - cfg.OverlapWords
	chunks := make([]string, 0, len(words)/step+1)
	for start := 0; start < len(words); start += step {
		end := start + cfg.WindowWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}

// ChunkDocument cleans a document and splits it into word windows tagged
// with the document's filename.
func ChunkDocument(doc domain.Document, cfg ChunkConfig) []domain.Chunk {
	texts := splitWords(cleanText(doc.RawText), cfg)
	chunks := make([]domain.Chunk, 0, len(texts))
	for _, text := range texts {
		chunks = append(chunks, domain.Chunk{SourceFile: doc.Filename, Text: text})
	}
	return chunks
}

// ChunkDocuments chunks every document, keeping document order.
func ChunkDocuments(docs []domain.Document, cfg ChunkConfig) []domain.Chunk {
	var all []domain.Chunk
	for _, doc := range docs {
		all = append(all, ChunkDocument(doc, cfg)...)
	}
	return all
}
