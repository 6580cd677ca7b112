package imagegen

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

type dalleGenerator struct {
	client *openai.Client
	model  string
}

func newDalleGenerator(apiKey, model string, opts *clientOptions) *dalleGenerator {
	config := openai.DefaultConfig(apiKey)
	if opts.baseURL != "" {
		config.BaseURL = opts.baseURL
	}
	return &dalleGenerator{client: openai.NewClientWithConfig(config), model: model}
}

// Generate returns a short-lived URL for the rendered image. The widescreen
// size keeps scene compositions from being cropped on the viewer page.
func (g *dalleGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          g.model,
		N:              1,
		Size:           openai.CreateImageSize1792x1024,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", fmt.Errorf("openai image generation: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", fmt.Errorf("openai: no image in response")
	}
	return resp.Data[0].URL, nil
}
