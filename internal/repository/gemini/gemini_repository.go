package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"furusatoReco/business/scorer"

	"google.golang.org/genai"
)

type Config struct {
	APIKey          string
	Model           string
	Temperature     float64
	MaxOutputTokens int
}

// Backend scores through the Gemini API.
type Backend struct {
	client *genai.Client
	cfg    Config
}

var _ scorer.Backend = (*Backend)(nil)

func NewBackend(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini backend configured without API key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Backend{client: client, cfg: cfg}, nil
}

func (b *Backend) Name() string {
	return "gemini"
}

func (b *Backend) Complete(ctx context.Context, p scorer.Prompt) (string, error) {
	gc := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(b.cfg.Temperature)),
		ResponseMIMEType: "application/json",
	}
	if b.cfg.MaxOutputTokens > 0 {
		gc.MaxOutputTokens = int32(b.cfg.MaxOutputTokens)
	}
	if p.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(p.System, genai.RoleUser)
	}

	content := genai.NewContentFromText(p.User, genai.RoleUser)
	resp, err := b.client.Models.GenerateContent(ctx, b.cfg.Model, []*genai.Content{content}, gc)
	if err != nil {
		return "", fmt.Errorf("generate content with gemini: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no response candidates from gemini")
	}

	var result strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			result.WriteString(part.Text)
		}
	}
	return result.String(), nil
}
