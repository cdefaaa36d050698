package asr

// DecoderKind identifies which decoding strategy a model exposes. It is
// resolved once when the bridge is built, not probed on every call.
type DecoderKind int

const (
	DecoderRNNT DecoderKind = iota
	DecoderCTC
)

func (k DecoderKind) String() string {
	switch k {
	case DecoderRNNT:
		return "rnnt"
	case DecoderCTC:
		return "ctc"
	}
	return "unknown"
}

// FeatureExtractor turns raw mono audio into acoustic features. Features
// are a [frames][dim] matrix; the returned length is the number of valid
// frames.
type FeatureExtractor interface {
	Extract(samples []float32) (features [][]float32, featureLength int, err error)
}

// Decoder converts encoded acoustic features into text hypotheses, best
// first.
type Decoder interface {
	Decode(encoded [][]float32, encodedLength int) ([]string, error)
}

// Model is the pretrained acoustic model capability. Exactly one of
// RNNTDecoder and CTCDecoder returns non-nil.
type Model interface {
	// Device names the compute device the model parameters live on.
	Device() string

	// FeatureDim is the encoder input feature dimension.
	FeatureDim() int

	// Encode runs the neural encoder over extracted features.
	Encode(features [][]float32, featureLength int) (encoded [][]float32, encodedLength int, err error)

	// RNNTDecoder returns the RNN-Transducer decoder, or nil.
	RNNTDecoder() Decoder

	// CTCDecoder returns the CTC decoder, or nil.
	CTCDecoder() Decoder
}
