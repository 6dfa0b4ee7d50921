package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/scrypster/resonance/internal/storage"
)

var _ storage.VectorIndex = (*VectorIndex)(nil)

// VectorIndex implements storage.VectorIndex with brute-force cosine
// similarity over embeddings stored as BLOBs.
type VectorIndex struct {
	db *sql.DB
}

// NewVectorIndex creates a vector index on the database of an open Store.
func NewVectorIndex(db *sql.DB) *VectorIndex {
	return &VectorIndex{db: db}
}

// Upsert stores or replaces the vector for id.
func (v *VectorIndex) Upsert(ctx context.Context, id string, vector []float64, metadata map[string]string) error {
	if id == "" {
		return fmt.Errorf("%w: vector ID is required", storage.ErrInvalidInput)
	}
	if len(vector) == 0 {
		return fmt.Errorf("%w: embedding vector cannot be empty", storage.ErrInvalidInput)
	}

	var meta sql.NullString
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		meta = sql.NullString{String: string(b), Valid: true}
	}

	query := `
		INSERT INTO embeddings (id, embedding, dimension, metadata, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			embedding = excluded.embedding,
			dimension = excluded.dimension,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at`

	_, err := v.db.ExecContext(ctx, query, id, serializeEmbedding(vector), len(vector), meta, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("sqlite: failed to upsert embedding: %w", err)
	}
	return nil
}

// Query returns up to topK stored vectors ranked by cosine similarity.
// Negative similarities are clamped to zero. Vectors of a different dimension
// are skipped.
func (v *VectorIndex) Query(ctx context.Context, vector []float64, topK int, filter map[string]string) ([]storage.VectorMatch, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: query vector cannot be empty", storage.ErrInvalidInput)
	}
	if topK <= 0 {
		return nil, nil
	}

	rows, err := v.db.QueryContext(ctx,
		`SELECT id, embedding, metadata FROM embeddings WHERE dimension = ?`, len(vector))
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query embeddings: %w", err)
	}
	defer rows.Close()

	var matches []storage.VectorMatch
	for rows.Next() {
		var (
			id   string
			blob []byte
			meta sql.NullString
		)
		if err := rows.Scan(&id, &blob, &meta); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan embedding: %w", err)
		}

		var metadata map[string]string
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		if !matchesFilter(metadata, filter) {
			continue
		}

		stored, err := deserializeEmbedding(blob, len(vector))
		if err != nil {
			return nil, fmt.Errorf("sqlite: corrupt embedding for %s: %w", id, err)
		}

		score := cosineSimilarity(vector, stored)
		if score < 0 {
			score = 0
		}
		matches = append(matches, storage.VectorMatch{ID: id, Score: score, Metadata: metadata})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed iterating embeddings: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func matchesFilter(metadata, filter map[string]string) bool {
	for k, want := range filter {
		if metadata[k] != want {
			return false
		}
	}
	return true
}

// serializeEmbedding encodes a vector as little-endian float64s.
func serializeEmbedding(embedding []float64) []byte {
	buf := make([]byte, len(embedding)*8)
	for i, v := range embedding {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// deserializeEmbedding decodes a little-endian float64 BLOB of the given dimension.
func deserializeEmbedding(buf []byte, dimension int) ([]float64, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension: %d", dimension)
	}
	if len(buf) != dimension*8 {
		return nil, fmt.Errorf("buffer size mismatch: expected %d bytes, got %d", dimension*8, len(buf))
	}

	out := make([]float64, dimension)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return out, nil
}

// cosineSimilarity computes the cosine similarity between two vectors.
// Returns 0 if either vector has zero magnitude or lengths differ.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
