package asr

import (
	"bytes"
	"context"
	"fmt"

	listenv1rest "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/streamvox/asr-gateway/internal/audio"
)

func init() {
	Register("deepgram", func(opts Options) (Recognizer, error) {
		return NewDeepgramRecognizer(opts)
	})
}

// DeepgramRecognizer recognizes segments via the Deepgram prerecorded
// listen API. It serves deployments without an in-process model.
type DeepgramRecognizer struct {
	client     *listenv1rest.Client
	model      string
	language   string
	sampleRate int
}

// NewDeepgramRecognizer constructs the remote backend from an API key.
func NewDeepgramRecognizer(opts Options) (*DeepgramRecognizer, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("deepgram backend requires an API key")
	}
	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("deepgram backend requires a positive sample rate, got %d", opts.SampleRate)
	}
	model := opts.Model
	if model == "" {
		model = "nova-2"
	}
	language := opts.Language
	if language == "" {
		language = "en"
	}

	rest := listenClient.NewREST(opts.APIKey, &interfaces.ClientOptions{})
	return &DeepgramRecognizer{
		client:     listenv1rest.New(rest),
		model:      model,
		language:   language,
		sampleRate: opts.SampleRate,
	}, nil
}

// Recognize WAV-encodes the segment and submits it for transcription.
func (r *DeepgramRecognizer) Recognize(ctx context.Context, samples []float32) (string, error) {
	wav, err := audio.EncodeWAV(samples, r.sampleRate)
	if err != nil {
		return "", fmt.Errorf("failed to encode segment: %w", err)
	}

	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:     r.model,
		Language:  r.language,
		Punctuate: true,
	}
	res, err := r.client.FromStream(ctx, bytes.NewReader(wav), options)
	if err != nil {
		return "", fmt.Errorf("deepgram transcription failed: %w", err)
	}
	if res == nil || res.Results == nil || len(res.Results.Channels) == 0 {
		return "", fmt.Errorf("deepgram transcription returned no channels")
	}

	alts := res.Results.Channels[0].Alternatives
	if len(alts) == 0 {
		return "", nil
	}
	return alts[0].Transcript, nil
}
