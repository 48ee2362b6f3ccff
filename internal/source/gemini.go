package source

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"recontext/internal/domain"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiClient generates content through the Gemini API. Thinking budget is
// pinned to zero so the whole token budget goes to the JSON payload.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini-backed client.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, domain.NewEngineError(domain.ErrConfigInvalid.Code, "gemini API key is empty")
	}
	if model == "" {
		model = defaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, domain.WrapEngineError(domain.ErrSourceUnavailable.Code, "create gemini client", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

// Name identifies the client in logs.
func (c *GeminiClient) Name() string { return "gemini:" + c.model }

// Complete sends one prompt and returns the raw response text.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	cfg := &genai.GenerateContentConfig{
		ThinkingConfig: &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(int32(0)),
		},
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned no text")
	}
	return text, nil
}
