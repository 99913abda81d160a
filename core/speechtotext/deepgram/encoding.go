package deepgram

import (
	"fmt"

	"github.com/koscakluka/ema-voice/core/audio"
)

// encodingName maps the audio encoding to the listen API encoding name.
func encodingName(encoding audio.EncodingInfo) (string, error) {
	switch encoding.SampleRate {
	case 8000, 16000, 24000, 32000, 48000:
	default:
		return "", fmt.Errorf("unsupported sample rate %d", encoding.SampleRate)
	}

	switch encoding.Format {
	case audio.EncodingLinear16:
		return "linear16", nil
	case audio.EncodingALaw, audio.EncodingMulaw:
		if encoding.SampleRate != 8000 {
			return "", fmt.Errorf("unsupported sample rate %d for %s encoding", encoding.SampleRate, encoding.Format.Name())
		}
		return encoding.Format.Name(), nil
	default:
		return "", fmt.Errorf("unsupported encoding %q", encoding.Format.Name())
	}
}
