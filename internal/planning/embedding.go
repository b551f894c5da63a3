package planning

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Embedder generates vector embeddings for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// GenAIEmbedder generates embeddings using Google's Gemini API.
type GenAIEmbedder struct {
	client *genai.Client
	model  string
}

// NewGenAIEmbedder creates an embedding engine.
func NewGenAIEmbedder(ctx context.Context, apiKey, model string) (*GenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIEmbedder{client: client, model: model}, nil
}

// Embed generates an embedding for a single text.
func (e *GenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}

	result, err := e.client.Models.EmbedContent(ctx,
		e.model,
		contents,
		&genai.EmbedContentConfig{
			TaskType: "SEMANTIC_SIMILARITY",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("GenAI embed failed: %w", err)
	}

	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	return result.Embeddings[0].Values, nil
}

// Dimensions returns the dimensionality of embeddings.
// gemini-embedding-001 produces 768-dimensional vectors.
func (e *GenAIEmbedder) Dimensions() int {
	return 768
}
