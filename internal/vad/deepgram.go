package vad

import (
	"bytes"
	"context"
	"fmt"

	listenv1rest "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

// DeepgramOracle implements Oracle on top of the Deepgram prerecorded
// listen API with utterance splitting enabled: each returned utterance maps
// to one timeline segment with its confidence as the score.
type DeepgramOracle struct {
	client *listenv1rest.Client
	model  string
}

// NewDeepgramOracle constructs an oracle from an API key. A missing key
// yields ErrNoCredential so callers can degrade instead of failing.
func NewDeepgramOracle(apiKey string) (*DeepgramOracle, error) {
	if apiKey == "" {
		return nil, ErrNoCredential
	}
	rest := listenClient.NewREST(apiKey, &interfaces.ClientOptions{})
	return &DeepgramOracle{
		client: listenv1rest.New(rest),
		model:  "nova-2",
	}, nil
}

// DetectSegments submits a WAV buffer and returns the utterance timeline.
func (o *DeepgramOracle) DetectSegments(ctx context.Context, wav []byte) ([]TimelineSegment, error) {
	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:      o.model,
		Utterances: true,
		Punctuate:  false,
	}

	res, err := o.client.FromStream(ctx, bytes.NewReader(wav), options)
	if err != nil {
		return nil, fmt.Errorf("deepgram VAD request failed: %w", err)
	}
	if res == nil || res.Results == nil {
		return nil, fmt.Errorf("deepgram VAD request returned no results")
	}

	segments := make([]TimelineSegment, 0, len(res.Results.Utterances))
	for _, u := range res.Results.Utterances {
		segments = append(segments, TimelineSegment{
			Start:    u.Start,
			End:      u.End,
			Score:    u.Confidence,
			HasScore: true,
		})
	}
	return segments, nil
}
