// Package transcribe converts recorded audio chunks into text with the
// Deepgram batch API.
package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

// Deepgram sends whole audio chunks to Deepgram's pre-recorded endpoint.
type Deepgram struct {
	client   *api.Client
	model    string
	language string
}

func NewDeepgram(apiKey, model, language string) (*Deepgram, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram api key is required")
	}

	client.Init(client.InitLib{LogLevel: client.LogLevelDefault})

	c := client.NewREST(apiKey, &interfaces.ClientOptions{})
	return &Deepgram{client: api.New(c), model: model, language: language}, nil
}

// Transcribe returns the transcript of the first channel of the chunk. A
// silent chunk yields an empty transcript, not an error.
func (d *Deepgram) Transcribe(ctx context.Context, audio []byte) (string, error) {
	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       d.model,
		Language:    d.language,
		Punctuate:   true,
		SmartFormat: true,
	}

	res, err := d.client.FromStream(ctx, bytes.NewReader(audio), options)
	if err != nil {
		return "", fmt.Errorf("deepgram transcription: %w", err)
	}
	if res == nil || res.Results == nil || len(res.Results.Channels) == 0 {
		return "", nil
	}

	alternatives := res.Results.Channels[0].Alternatives
	if len(alternatives) == 0 {
		return "", nil
	}
	return strings.TrimSpace(alternatives[0].Transcript), nil
}
