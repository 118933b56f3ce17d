// Package knowledge stores property and business knowledge as embedded
// text chunks in PostgreSQL + pgvector and retrieves the chunks most
// similar to a query.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"

	"github.com/hostline/concierge/internal/log"
)

// DefaultVectorDimension matches the vector column width declared in
// the schema migration.
const DefaultVectorDimension = 768

// embedTimeout bounds a single embedding provider call.
const embedTimeout = 10 * time.Second

const insertChunkSQL = `INSERT INTO knowledge_chunks (content, embedding, metadata)
	VALUES ($1, $2, $3)
	RETURNING id, created_at`

// searchSQL scores every candidate with cosine similarity, drops the
// ones below the floor, and breaks score ties by ascending id so equal
// scores rank deterministically.
const searchSQL = `SELECT id, content, metadata, created_at, score
	FROM (
		SELECT id, content, metadata, created_at,
			1 - (embedding <=> $1) AS score
		FROM knowledge_chunks
	) ranked
	WHERE score >= $2
	ORDER BY score DESC, id ASC
	LIMIT $3`

// Store manages the knowledge corpus. Safe for concurrent use.
type Store struct {
	pool     *pgxpool.Pool
	embedder ai.Embedder
	dim      int32
	logger   log.Logger
}

// NewStore creates a knowledge Store. dim is the embedding width and
// must match the schema's vector column.
func NewStore(pool *pgxpool.Pool, embedder ai.Embedder, dim int, logger log.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dim)
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{pool: pool, embedder: embedder, dim: int32(dim), logger: logger}, nil
}

// embed turns text into a pgvector value via the configured embedder.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	dim := s.dim
	embedCtx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	resp, err := s.embedder.Embed(embedCtx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("%w: empty embedding response", ErrEmbedding)
	}
	vec := resp.Embeddings[0].Embedding
	if len(vec) != int(s.dim) {
		return pgvector.Vector{}, fmt.Errorf("%w: got %d dimensions, want %d",
			ErrEmbedding, len(vec), s.dim)
	}
	return pgvector.NewVector(vec), nil
}

// Ingest embeds content and stores it with its metadata. Returns the
// assigned chunk id.
func (s *Store) Ingest(ctx context.Context, content string, metadata map[string]any) (int64, error) {
	if strings.TrimSpace(content) == "" {
		return 0, fmt.Errorf("%w: empty content", ErrInvalidInput)
	}

	vec, err := s.embed(ctx, content)
	if err != nil {
		return 0, err
	}

	meta, err := marshalMetadata(metadata)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	var (
		id        int64
		createdAt time.Time
	)
	if err := s.pool.QueryRow(ctx, insertChunkSQL, content, vec, meta).Scan(&id, &createdAt); err != nil {
		return 0, fmt.Errorf("%w: insert chunk: %w", ErrRetrieval, err)
	}
	s.logger.Debug("ingested knowledge chunk", "id", id, "bytes", len(content))
	return id, nil
}

// Query embeds the query text and returns up to topK chunks whose
// cosine similarity is at least minScore, ordered by score descending
// with ties broken by ascending id. An empty result is not an error.
func (s *Store) Query(ctx context.Context, text string, topK int, minScore float64) ([]Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidInput)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", ErrInvalidInput)
	}

	vec, err := s.embed(ctx, text)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, searchSQL, vec, minScore, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", ErrRetrieval, err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			r    Result
			meta []byte
		)
		if err := rows.Scan(&r.ID, &r.Content, &meta, &r.CreatedAt, &r.Score); err != nil {
			return nil, fmt.Errorf("%w: scan: %w", ErrRetrieval, err)
		}
		if r.Metadata, err = unmarshalMetadata(meta); err != nil {
			return nil, fmt.Errorf("%w: metadata: %w", ErrRetrieval, err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %w", ErrRetrieval, err)
	}
	return results, nil
}

// UpdateMetadata replaces a chunk's metadata without re-embedding.
func (s *Store) UpdateMetadata(ctx context.Context, id int64, metadata map[string]any) error {
	meta, err := marshalMetadata(metadata)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE knowledge_chunks SET metadata = $2 WHERE id = $1`, id, meta)
	if err != nil {
		return fmt.Errorf("%w: update metadata: %w", ErrRetrieval, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

// Delete removes a chunk.
func (s *Store) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM knowledge_chunks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete chunk: %w", ErrRetrieval, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

// Count returns the corpus size.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM knowledge_chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count: %w", ErrRetrieval, err)
	}
	return n, nil
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(metadata)
}

func unmarshalMetadata(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
