package planning

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
)

// documentSchema holds past project ideas with their embeddings. Vectors
// are stored as little-endian float32 blobs and compared in memory; the
// corpus is small (one row per planning run).
const documentSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	text TEXT NOT NULL,
	embedding BLOB NOT NULL,
	created_at INTEGER NOT NULL
);
`

// Match is one similarity search result.
type Match struct {
	ID    string
	Text  string
	Score float64
}

// DocumentStore persists project ideas and finds similar past ones.
type DocumentStore struct {
	db       *sql.DB
	embedder Embedder
}

// NewDocumentStore creates a document store.
func NewDocumentStore(db *sql.DB, embedder Embedder) *DocumentStore {
	return &DocumentStore{db: db, embedder: embedder}
}

// InitSchema creates the documents table if it does not exist.
func (s *DocumentStore) InitSchema() error {
	if _, err := s.db.Exec(documentSchema); err != nil {
		return fmt.Errorf("failed to create documents schema: %w", err)
	}
	return nil
}

// Add embeds and stores a project idea, returning its id.
func (s *DocumentStore) Add(ctx context.Context, text string) (string, error) {
	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("failed to embed document: %w", err)
	}
	if want := s.embedder.Dimensions(); len(embedding) != want {
		return "", fmt.Errorf("embedding has %d dimensions, want %d", len(embedding), want)
	}

	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO documents (id, text, embedding, created_at) VALUES (?, ?, ?, ?)",
		id, text, float32SliceToBytes(embedding), time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to store document: %w", err)
	}

	return id, nil
}

// SearchSimilar returns the topK stored documents most similar to the
// query, best first. Returns an empty slice when the store is empty.
func (s *DocumentStore) SearchSimilar(ctx context.Context, query string, topK int) ([]Match, error) {
	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, text, embedding FROM documents")
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var id, text string
		var blob []byte
		if err := rows.Scan(&id, &text, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}

		score := cosineSimilarity(queryEmbedding, bytesToFloat32Slice(blob))
		matches = append(matches, Match{ID: id, Text: text, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}

	return matches, nil
}

// Count returns the number of stored documents.
func (s *DocumentStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

func float32SliceToBytes(values []float32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		bits := math.Float32bits(v)
		buf[i*4] = byte(bits)
		buf[i*4+1] = byte(bits >> 8)
		buf[i*4+2] = byte(bits >> 16)
		buf[i*4+3] = byte(bits >> 24)
	}
	return buf
}

func bytesToFloat32Slice(buf []byte) []float32 {
	values := make([]float32, len(buf)/4)
	for i := range values {
		bits := uint32(buf[i*4]) | uint32(buf[i*4+1])<<8 | uint32(buf[i*4+2])<<16 | uint32(buf[i*4+3])<<24
		values[i] = math.Float32frombits(bits)
	}
	return values
}

// cosineSimilarity compares two vectors; mismatched or zero vectors
// score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	av := make([]float64, len(a))
	bv := make([]float64, len(b))
	for i := range a {
		av[i] = float64(a[i])
		bv[i] = float64(b[i])
	}

	normA := floats.Norm(av, 2)
	normB := floats.Norm(bv, 2)
	if normA == 0 || normB == 0 {
		return 0
	}

	return floats.Dot(av, bv) / (normA * normB)
}
