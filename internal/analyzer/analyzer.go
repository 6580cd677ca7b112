// Package analyzer watches session transcripts for changes to the physical
// setting and maintains the running environment description.
package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/pbram/livescene/internal/llm"
)

const noUpdateSentinel = "NO_UPDATE_NEEDED"

const systemPrompt = "You analyze tabletop roleplaying session transcripts to maintain an accurate " +
	"environment description. You only update the description when there is clear evidence of a " +
	"significant location or setting change."

// Analyzer asks a language model whether a transcript moves the action to a
// new setting. An optional filter post-processes accepted descriptions, for
// deployments that want to strip stray character names or actions from the
// model output.
type Analyzer struct {
	client llm.Client
	filter func(string) string
}

type Option func(*Analyzer)

// WithFilter installs a post-processing step applied to accepted
// descriptions. A filter that returns an empty string rejects the update.
func WithFilter(filter func(string) string) Option {
	return func(a *Analyzer) { a.filter = filter }
}

func New(client llm.Client, opts ...Option) *Analyzer {
	a := &Analyzer{client: client}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze reports whether the transcript changes the environment and, if so,
// returns the replacement description.
func (a *Analyzer) Analyze(ctx context.Context, current, previousPrompt, transcript string) (string, bool, error) {
	result, err := a.client.Complete(ctx, llm.Request{
		System:      systemPrompt,
		User:        buildPrompt(current, previousPrompt, transcript),
		MaxTokens:   500,
		Temperature: 0.3,
	})
	if err != nil {
		return "", false, fmt.Errorf("analyze environment: %w", err)
	}

	if strings.Contains(result, noUpdateSentinel) {
		return "", false, nil
	}

	if a.filter != nil {
		result = strings.TrimSpace(a.filter(result))
		if result == "" {
			return "", false, nil
		}
	}
	return result, true, nil
}

func buildPrompt(current, previousPrompt, transcript string) string {
	var b strings.Builder

	b.WriteString(`Your job is to maintain a concise description of the environment where the session is taking place. Analyze the new transcript snippet to decide whether the setting has changed significantly, and if so, how to update the description.

Guidelines:
- Keep the environment description brief (under 100 words) but informative
- Focus on physical setting elements that would appear in an image (location, atmosphere, time of day, weather)
- Only update the description if there is clear evidence in the transcript that the setting has changed
- Maintain consistency with previous descriptions unless directly contradicted
- Be conservative: do not change the environment for minor details
- Do not include character positions or temporary objects unless they are defining features of the location

`)
	fmt.Fprintf(&b, "Current Environment Description:\n%s\n\n", current)
	if previousPrompt != "" {
		fmt.Fprintf(&b, "Previous Scene Prompt (for continuity):\n%s\n\n", previousPrompt)
	}
	fmt.Fprintf(&b, "New Transcript Snippet:\n%s\n\n", transcript)
	b.WriteString("Does this transcript indicate a significant change to the environment? " +
		"If yes, provide a new complete environment description. If no, respond with '" + noUpdateSentinel + "'.")

	return b.String()
}
