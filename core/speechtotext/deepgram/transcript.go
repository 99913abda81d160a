package deepgram

import (
	"context"
	"encoding/json"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/koscakluka/ema-voice/core/speechtotext"
)

// transcriptState assembles final segments into utterances. It belongs to a
// single session's read goroutine.
type transcriptState struct {
	accumulated    string
	unendedSegment bool
}

func (s *transcriptState) process(ctx context.Context, msg []byte, onResult func(speechtotext.Result)) {
	var parsedMsg controlMessage
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.WarnContext(ctx, "failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.WarnContext(ctx, "failed to unmarshal deepgram results", "error", err)
			return
		}

		transcript := ""
		if len(msgResp.Channel.Alternatives) > 0 {
			transcript = strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		}

		if !msgResp.IsFinal {
			if transcript != "" {
				onResult(speechtotext.Partial(strings.TrimSpace(s.accumulated + " " + transcript)))
			}
			return
		}

		if transcript != "" {
			s.accumulated += " " + transcript
			s.unendedSegment = true
		}
		if msgResp.SpeechFinal {
			s.endUtterance(onResult)
		}

	case api.TypeUtteranceEndResponse:
		if s.unendedSegment {
			s.endUtterance(onResult)
		}

	case api.TypeSpeechStartedResponse:
		s.unendedSegment = true
	}
}

// endUtterance reports the accumulated transcript, or a no-match when speech
// was detected but nothing was transcribed.
func (s *transcriptState) endUtterance(onResult func(speechtotext.Result)) {
	heard := s.unendedSegment
	full := strings.TrimSpace(s.accumulated)
	s.accumulated = ""
	s.unendedSegment = false

	switch {
	case full != "":
		onResult(speechtotext.Finalized(full))
	case heard:
		onResult(speechtotext.NoMatch())
	}
}
