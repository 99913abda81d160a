package audio

import "time"

const (
	DefaultSampleRate = 16000
	DefaultFormat     = EncodingLinear16
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: DefaultFormat}
}

// EncodingInfo describes mono audio exchanged with devices and speech
// services.
type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case EncodingALaw:
		return 0x55
	case EncodingMulaw:
		return 0xFF
	}

	return 0
}

// BytesPerSecond returns how many bytes one second of audio occupies, or 0
// for unknown formats.
func (e EncodingInfo) BytesPerSecond() int {
	if size := e.Format.ByteSize(); size > 0 {
		return e.SampleRate * size
	}
	return 0
}

// Duration estimates how long n bytes of audio take to play.
func (e EncodingInfo) Duration(n int) time.Duration {
	bytesPerSecond := e.BytesPerSecond()
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bytesPerSecond)
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
)
