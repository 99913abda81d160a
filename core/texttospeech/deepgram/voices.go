package deepgram

import (
	"fmt"
	"slices"

	"github.com/koscakluka/ema-voice/core/audio"
)

const DefaultVoice = "aura-2-thalia-en"

var availableVoices = []string{
	"aura-2-thalia-en",
	"aura-2-andromeda-en",
	"aura-2-helena-en",
	"aura-2-apollo-en",
	"aura-2-arcas-en",
	"aura-2-aries-en",
	"aura-2-asteria-en",
	"aura-2-luna-en",
	"aura-2-orion-en",
	"aura-2-zeus-en",
	"aura-asteria-en",
	"aura-luna-en",
	"aura-stella-en",
	"aura-orion-en",
	"aura-arcas-en",
}

func GetAvailableVoices() []string {
	return slices.Clone(availableVoices)
}

// speakEncoding maps the output encoding to the speak API encoding name.
func speakEncoding(encoding audio.EncodingInfo) (string, error) {
	switch encoding.Format {
	case audio.EncodingLinear16:
		switch encoding.SampleRate {
		case 8000, 16000, 24000, 32000, 48000:
			return "linear16", nil
		}
	case audio.EncodingMulaw, audio.EncodingALaw:
		switch encoding.SampleRate {
		case 8000, 16000:
			return encoding.Format.Name(), nil
		}
	default:
		return "", fmt.Errorf("unsupported encoding %q", encoding.Format.Name())
	}
	return "", fmt.Errorf("unsupported sample rate %d for %s encoding", encoding.SampleRate, encoding.Format.Name())
}
