package speechtotext

import "github.com/koscakluka/ema-voice/core/audio"

const (
	DefaultLanguage = "en-US"
	DefaultModel    = "nova-3"
)

type RecognitionOptions struct {
	Language string
	Model    string
	// Region selects the service endpoint. Empty uses the global endpoint.
	Region string

	// EndpointingMs is the trailing silence that finalizes a segment.
	EndpointingMs int
	// UtteranceEndMs is the gap between words that finalizes an utterance
	// when the segment endpointing did not.
	UtteranceEndMs int

	EncodingInfo audio.EncodingInfo
}

type RecognitionOption func(*RecognitionOptions)

func DefaultRecognitionOptions() RecognitionOptions {
	return RecognitionOptions{
		Language:       DefaultLanguage,
		Model:          DefaultModel,
		EndpointingMs:  300,
		UtteranceEndMs: 1000,
		EncodingInfo:   audio.GetDefaultEncodingInfo(),
	}
}

func WithLanguage(language string) RecognitionOption {
	return func(o *RecognitionOptions) {
		if language != "" {
			o.Language = language
		}
	}
}

func WithModel(model string) RecognitionOption {
	return func(o *RecognitionOptions) {
		if model != "" {
			o.Model = model
		}
	}
}

func WithRegion(region string) RecognitionOption {
	return func(o *RecognitionOptions) {
		o.Region = region
	}
}

func WithEndpointing(endpointingMs, utteranceEndMs int) RecognitionOption {
	return func(o *RecognitionOptions) {
		o.EndpointingMs = endpointingMs
		o.UtteranceEndMs = utteranceEndMs
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) RecognitionOption {
	return func(o *RecognitionOptions) {
		o.EncodingInfo = encodingInfo
	}
}
