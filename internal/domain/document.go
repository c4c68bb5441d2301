package domain

import (
	"fmt"
	"math"
	"time"
)

// Document is the raw text of one source file
type Document struct {
	Filename string
	RawText  string
}

// Chunk is an overlapping word window taken from a document
type Chunk struct {
	SourceFile string
	Text       string
}

// EmbeddedChunk is a chunk together with its normalized embedding vector
type EmbeddedChunk struct {
	SourceFile string
	Text       string
	Vector     []float32
}

// IndexArtifact is the persisted bundle of every embedded chunk.
// It is always replaced as a whole, never patched.
type IndexArtifact struct {
	Chunks     []EmbeddedChunk
	ModelName  string
	Dimensions int
	CreatedAt  time.Time
}

// RetrievalResult is a chunk matched by a query, with its similarity score
type RetrievalResult struct {
	SourceFile string
	Text       string
	Score      float32
}

// NewIndexArtifact creates an artifact stamped with the current UTC time
func NewIndexArtifact(modelName string, dimensions int, chunks []EmbeddedChunk) *IndexArtifact {
	return &IndexArtifact{
		Chunks:     chunks,
		ModelName:  modelName,
		Dimensions: dimensions,
		CreatedAt:  time.Now().UTC(),
	}
}

// IsEmpty reports whether the artifact holds no searchable chunks
func (a *IndexArtifact) IsEmpty() bool {
	return a == nil || len(a.Chunks) == 0
}

// ValidateArtifact validates an IndexArtifact instance
func ValidateArtifact(a *IndexArtifact) error {
	if a == nil {
		return fmt.Errorf("index artifact cannot be nil")
	}

	if len(a.Chunks) > 0 && a.Dimensions <= 0 {
		return fmt.Errorf("index artifact Dimensions must be positive, got %d", a.Dimensions)
	}

	for i, c := range a.Chunks {
		if c.Text == "" {
			return fmt.Errorf("index artifact chunk %d has empty text", i)
		}
		if len(c.Vector) != a.Dimensions {
			return fmt.Errorf("index artifact chunk %d has %d dimensions, expected %d", i, len(c.Vector), a.Dimensions)
		}
	}

	return nil
}

// NormalizeL2 scales v in place to unit length and returns it.
// Zero vectors are returned unchanged.
func NormalizeL2(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// Dot returns the inner product of a and b over their common length
func Dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
