// Package imagegen renders composed scene prompts into images.
package imagegen

import (
	"context"
	"fmt"
)

// Generator produces one image per prompt. The returned string is either an
// http(s) URL or a local file path, depending on the provider; callers hand
// it to the image cache, which accepts both.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Option func(*clientOptions)

type clientOptions struct {
	baseURL string
}

func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

func NewGenerator(provider, apiKey, model string, opts ...Option) (Generator, error) {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	switch provider {
	case "openai":
		return newDalleGenerator(apiKey, model, o), nil
	case "google":
		return newImagenGenerator(apiKey, model, o)
	default:
		return nil, fmt.Errorf("unknown image provider %q: supported providers are openai, google", provider)
	}
}
