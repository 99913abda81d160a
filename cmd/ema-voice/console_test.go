package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/koscakluka/ema-voice/core/events"
)

func TestConsoleRendersTranscript(t *testing.T) {
	testCases := []struct {
		name     string
		event    events.Event
		expected []string
	}{
		{name: "utterance", event: events.NewUtteranceReceived("u1", "hello"), expected: []string{"You said:", "hello"}},
		{name: "reply", event: events.NewSpeechStarted("t1", "hi there"), expected: []string{"AI:", "hi there"}},
		{name: "blocked", event: events.NewSafetyBlocked("u1", "blocked", "make a bomb"), expected: []string{"Blocked by content moderation."}},
		{name: "no match", event: events.NewRecognitionNoMatch(), expected: []string{"Speech not recognized"}},
		{
			name:     "canceled with detail",
			event:    events.NewRecognitionCanceled("Error", "socket closed"),
			expected: []string{"Speech canceled", "Cancellation reason: Error", "Error details: socket closed"},
		},
		{name: "generation failed", event: events.NewGenerationFailed("u1", errors.New("boom")), expected: []string{"boom"}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			var out bytes.Buffer
			newConsole(&out).Handle(testCase.event)

			for _, expected := range testCase.expected {
				if !strings.Contains(out.String(), expected) {
					t.Fatalf("expected %q in %q", expected, out.String())
				}
			}
		})
	}
}

func TestConsoleOmitsDetailsForEndOfStream(t *testing.T) {
	var out bytes.Buffer
	newConsole(&out).Handle(events.NewRecognitionCanceled("EndOfStream", ""))

	if strings.Contains(out.String(), "Error details") {
		t.Fatalf("expected no error details, got %q", out.String())
	}
}

func TestConsoleIgnoresInternalEvents(t *testing.T) {
	var out bytes.Buffer
	c := newConsole(&out)
	c.Handle(events.NewTurnStateChanged("idle", "speaking"))
	c.Handle(events.NewSpeechStopped("t1", events.StopReasonReplaced))

	if out.Len() != 0 {
		t.Fatalf("expected no output, got %q", out.String())
	}
}
