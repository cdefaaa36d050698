package asr

import (
	"context"
	"fmt"
)

// Bridge implements Recognizer over an in-process model's capabilities:
// feature extraction, encoding, then decoding with whichever decoder the
// model exposes. A recognition call runs to completion once started;
// cancellation is only observed at the entry point.
type Bridge struct {
	model   Model
	fx      FeatureExtractor
	kind    DecoderKind
	decoder Decoder
}

// NewBridge builds a bridge, resolving the decoder kind once. RNN-T takes
// precedence when a model exposes both.
func NewBridge(model Model, fx FeatureExtractor) (*Bridge, error) {
	if model == nil {
		return nil, fmt.Errorf("asr: model is required")
	}
	if fx == nil {
		return nil, fmt.Errorf("asr: feature extractor is required")
	}

	b := &Bridge{model: model, fx: fx}
	switch {
	case model.RNNTDecoder() != nil:
		b.kind = DecoderRNNT
		b.decoder = model.RNNTDecoder()
	case model.CTCDecoder() != nil:
		b.kind = DecoderCTC
		b.decoder = model.CTCDecoder()
	default:
		return nil, fmt.Errorf("asr: model exposes no decoder")
	}
	return b, nil
}

// DecoderKind reports the decoding strategy resolved at construction.
func (b *Bridge) DecoderKind() DecoderKind {
	return b.kind
}

// Recognize runs extract -> encode -> decode and returns the best
// hypothesis.
func (b *Bridge) Recognize(ctx context.Context, samples []float32) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(samples) == 0 {
		return "", fmt.Errorf("asr: empty audio segment")
	}

	features, featLen, err := b.fx.Extract(samples)
	if err != nil {
		return "", fmt.Errorf("feature extraction failed: %w", err)
	}

	encoded, encodedLen, err := b.model.Encode(features, featLen)
	if err != nil {
		return "", fmt.Errorf("encoding failed: %w", err)
	}

	hyps, err := b.decoder.Decode(encoded, encodedLen)
	if err != nil {
		return "", fmt.Errorf("%s decoding failed: %w", b.kind, err)
	}
	if len(hyps) == 0 {
		return "", nil
	}
	return hyps[0], nil
}
