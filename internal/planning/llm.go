// Package planning implements the project planning studio: a staged
// pipeline that turns a one-line product idea into a set of design
// documents (similar projects, brief, flowchart, research, journey map,
// prototype) exported as PDFs.
package planning

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// CompletionClient generates text completions for pipeline stages.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// GenAIClient generates completions using Google's Gemini API.
type GenAIClient struct {
	client *genai.Client
	model  string
}

// NewGenAIClient creates a completion client.
func NewGenAIClient(ctx context.Context, apiKey, model string) (*GenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIClient{client: client, model: model}, nil
}

// Complete generates a completion for one prompt.
func (c *GenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	result, err := c.client.Models.GenerateContent(ctx,
		c.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			Temperature:     genai.Ptr[float32](0.5),
			MaxOutputTokens: 3000,
		},
	)
	if err != nil {
		return "", fmt.Errorf("GenAI completion failed: %w", err)
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("no completion returned")
	}

	return text, nil
}
