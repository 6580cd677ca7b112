// Package composer turns a transcript and the shared session state into one
// focused scene description optimized for image generation.
package composer

import (
	"context"
	"fmt"
	"strings"

	"github.com/pbram/livescene/internal/llm"
	"github.com/pbram/livescene/internal/store"
)

const systemPrompt = "You are a concise scene descriptor for tabletop roleplaying sessions, focused on " +
	"clear, imageable moments. Only include characters that are actually mentioned or implied in the " +
	"transcript, maintaining consistency with their descriptions."

type Composer struct {
	client llm.Client
}

func New(client llm.Client) *Composer {
	return &Composer{client: client}
}

// Compose returns a scene description for the transcript. Character order is
// taken as given, so callers decide whether to shuffle.
func (c *Composer) Compose(ctx context.Context, transcript string, characters []store.Character, environment, previousPrompt, style string) (string, error) {
	result, err := c.client.Complete(ctx, llm.Request{
		System:      systemPrompt,
		User:        buildPrompt(transcript, characters, environment, previousPrompt, style),
		MaxTokens:   500,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("compose scene: %w", err)
	}
	return result, nil
}

func buildPrompt(transcript string, characters []store.Character, environment, previousPrompt, style string) string {
	var b strings.Builder

	b.WriteString(`Your task is to identify the most visually interesting key event from the transcript and describe it in a clear, concise way that is optimized for image generation.

Guidelines:
- Focus on ONE key moment or action
- Only include characters that are actually mentioned or implied in the transcript
- Keep descriptions under 200 words
- Use clear, specific visual language
- Prioritize action and emotion over complex details
- For any characters you include, maintain consistency with their provided descriptions
- Set the moment inside the current environment unless the transcript clearly moves elsewhere
- If no clear action is described, create a simple portrait or scene of the mentioned characters
- Avoid complex lighting or camera instructions
- Render the moment in the style described below

`)
	fmt.Fprintf(&b, "Available Characters:\n%s\n\n", characterDetails(characters))
	fmt.Fprintf(&b, "Current Environment:\n%s\n\n", environment)
	if previousPrompt != "" {
		fmt.Fprintf(&b, "Previous Scene (for continuity):\n%s\n\n", previousPrompt)
	}
	fmt.Fprintf(&b, "Style Requirements:\n%s\n\n", style)
	fmt.Fprintf(&b, "Transcript:\n%s\n\n", transcript)
	b.WriteString("Generate a concise scene description, only including characters that are relevant to this specific moment:")

	return b.String()
}

func characterDetails(characters []store.Character) string {
	if len(characters) == 0 {
		return "No character data available."
	}

	details := make([]string, 0, len(characters))
	for _, ch := range characters {
		description := ch.Description
		if description == "" {
			description = "No description provided"
		}
		details = append(details, ch.Name+": "+description)
	}
	return strings.Join(details, "\n\n")
}
