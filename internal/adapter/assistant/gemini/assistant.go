// Package gemini answers assistant prompts with Google's Gemini models.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/iho/gofolio/internal/usecase"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

const systemInstruction = `You are a careful personal finance assistant.
Answer questions about the portfolio report you are given.
Quote figures exactly as they appear in the report and say so when the report does not contain the answer.`

// generator is implemented by genai.Client.Models.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Assistant implements usecase.Assistant.
type Assistant struct {
	models generator
	model  string
	config *genai.GenerateContentConfig
}

// New creates an Assistant using the Gemini API with apiKey.
func New(ctx context.Context, apiKey, model string) (*Assistant, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return newWithGenerator(client.Models, model), nil
}

func newWithGenerator(models generator, model string) *Assistant {
	if model == "" {
		model = DefaultModel
	}
	return &Assistant{
		models: models,
		model:  model,
		config: &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}},
		},
	}
}

// Generate returns the model's text answer to prompt.
func (a *Assistant) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := a.models.GenerateContent(ctx, a.model, genai.Text(prompt), a.config)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("gemini returned no text")
	}
	return text, nil
}

var _ usecase.Assistant = (*Assistant)(nil)
