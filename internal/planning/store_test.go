package planning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentStoreAddAndSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// fakeEmbedder keys on text length, so equal-length texts are
	// identical vectors and longer texts drift away.
	id, err := store.Add(ctx, "crypto tracker")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = store.Add(ctx, "a much longer project idea about fitness and meal planning")
	require.NoError(t, err)

	matches, err := store.SearchSimilar(ctx, "crypto charter", 3)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "crypto tracker", matches[0].Text)
	assert.Greater(t, matches[0].Score, matches[1].Score)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
}

// truncatingEmbedder reports more dimensions than it produces.
type truncatingEmbedder struct{}

func (truncatingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 2}, nil
}

func (truncatingEmbedder) Dimensions() int { return 3 }

func TestDocumentStoreRejectsWrongDimensions(t *testing.T) {
	db := newTestStore(t).db
	store := NewDocumentStore(db, truncatingEmbedder{})

	_, err := store.Add(context.Background(), "crypto tracker")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimensions")
}

func TestDocumentStoreSearchEmptyStore(t *testing.T) {
	store := newTestStore(t)

	matches, err := store.SearchSimilar(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestDocumentStoreSearchLimitsTopK(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three", "four"} {
		_, err := store.Add(ctx, text)
		require.NoError(t, err)
	}

	matches, err := store.SearchSimilar(ctx, "five", 2)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestVectorRoundTrip(t *testing.T) {
	original := []float32{0.1, -2.5, 3.25, 0}

	restored := bytesToFloat32Slice(float32SliceToBytes(original))
	assert.Equal(t, original, restored)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}), "mismatched lengths")
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 2}), "zero vector")
}
