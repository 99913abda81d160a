package events

import (
	"errors"
	"testing"
	"time"
)

func TestConstructorsEmitExpectedKinds(t *testing.T) {
	testCases := []struct {
		name     string
		event    Event
		expected Kind
	}{
		{name: "utterance received", event: NewUtteranceReceived("u1", "hi"), expected: KindUtteranceReceived},
		{name: "utterance ignored", event: NewUtteranceIgnored("u1", "hi", "speaking"), expected: KindUtteranceIgnored},
		{name: "safety blocked", event: NewSafetyBlocked("u1", "blocked", "make a bomb"), expected: KindSafetyBlocked},
		{name: "generation completed", event: NewGenerationCompleted("u1", "hello", time.Second), expected: KindGenerationCompleted},
		{name: "generation failed", event: NewGenerationFailed("u1", errors.New("boom")), expected: KindGenerationFailed},
		{name: "generation canceled", event: NewGenerationCanceled("u1"), expected: KindGenerationCanceled},
		{name: "speech started", event: NewSpeechStarted("t1", "hello"), expected: KindSpeechStarted},
		{name: "speech stopped", event: NewSpeechStopped("t1", StopReasonCommand), expected: KindSpeechStopped},
		{name: "speech completed", event: NewSpeechCompleted("t1"), expected: KindSpeechCompleted},
		{name: "speech failed", event: NewSpeechFailed("t1", errors.New("boom")), expected: KindSpeechFailed},
		{name: "turn state changed", event: NewTurnStateChanged("idle", "speaking"), expected: KindTurnStateChanged},
		{name: "recognition canceled", event: NewRecognitionCanceled("Error", "socket closed"), expected: KindRecognitionCanceled},
		{name: "recognition no match", event: NewRecognitionNoMatch(), expected: KindRecognitionNoMatch},
		{name: "recognition restarted", event: NewRecognitionRestarted(1), expected: KindRecognitionRestarted},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.event.Kind(); got != testCase.expected {
				t.Fatalf("expected kind %q, got %q", testCase.expected, got)
			}
			if testCase.event.Timestamp().IsZero() {
				t.Fatalf("expected timestamp to be set")
			}
		})
	}
}

func TestSpeechStoppedCarriesReason(t *testing.T) {
	event := NewSpeechStopped("t1", StopReasonReplaced)

	if event.Reason != StopReasonReplaced {
		t.Fatalf("expected reason %q, got %q", StopReasonReplaced, event.Reason)
	}
}
