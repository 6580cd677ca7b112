package imagegen

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"
)

type imagenGenerator struct {
	client *genai.Client
	model  string
}

func newImagenGenerator(apiKey, model string, opts *clientOptions) (*imagenGenerator, error) {
	ctx := context.Background()
	config := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if opts.baseURL != "" {
		config.HTTPOptions.BaseURL = opts.baseURL
	}

	client, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create imagen client: %w", err)
	}

	return &imagenGenerator{client: client, model: model}, nil
}

// Generate writes the rendered image to a temporary file and returns its
// path. The caller owns the file; the image cache moves it into place.
func (g *imagenGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateImages(ctx, g.model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    "16:9",
	})
	if err != nil {
		return "", fmt.Errorf("imagen generation: %w", err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return "", fmt.Errorf("imagen: no image in response")
	}

	f, err := os.CreateTemp("", "livescene-*.png")
	if err != nil {
		return "", fmt.Errorf("create temp image file: %w", err)
	}

	if _, err := f.Write(resp.GeneratedImages[0].Image.ImageBytes); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write temp image file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("close temp image file: %w", err)
	}

	return f.Name(), nil
}
