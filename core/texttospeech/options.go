package texttospeech

import "github.com/koscakluka/ema-voice/core/audio"

type SynthesisOptions struct {
	Voice string
	// Region selects the service endpoint. Empty uses the global endpoint.
	Region       string
	EncodingInfo audio.EncodingInfo
}

type SynthesisOption func(*SynthesisOptions)

func WithVoice(voice string) SynthesisOption {
	return func(o *SynthesisOptions) {
		if voice != "" {
			o.Voice = voice
		}
	}
}

func WithRegion(region string) SynthesisOption {
	return func(o *SynthesisOptions) { o.Region = region }
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) SynthesisOption {
	return func(o *SynthesisOptions) {
		if encodingInfo.IsZero() {
			return
		}
		o.EncodingInfo = encodingInfo
	}
}
