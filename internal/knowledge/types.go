package knowledge

import (
	"errors"
	"time"
)

// Error classes reported to callers. The agent degrades gracefully on
// either: a knowledge failure never aborts a chat.
var (
	// ErrEmbedding wraps failures from the embedding provider.
	ErrEmbedding = errors.New("knowledge: embedding failed")
	// ErrRetrieval wraps storage failures during search.
	ErrRetrieval = errors.New("knowledge: retrieval failed")
	// ErrNotFound is returned when an id does not exist.
	ErrNotFound = errors.New("knowledge: chunk not found")
	// ErrInvalidInput is returned for empty content or bad parameters.
	ErrInvalidInput = errors.New("knowledge: invalid input")
)

// Chunk is one stored knowledge entry.
type Chunk struct {
	ID        int64
	Content   string
	Metadata  map[string]any
	CreatedAt time.Time
}

// Result is a chunk returned from Query together with its cosine
// similarity score in [-1, 1].
type Result struct {
	Chunk
	Score float64
}
