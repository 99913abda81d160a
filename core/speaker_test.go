package orchestration

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/koscakluka/ema-voice/core/events"
)

func TestSpeakReplacesActiveTask(t *testing.T) {
	synth := &synthesizerStub{}
	speaker := NewResponseSpeaker(synth)

	if err := speaker.Speak(context.Background(), "first"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := speaker.Speak(context.Background(), "second"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if synth.speech(0).ctx.Err() == nil {
		t.Fatalf("expected first task to be canceled")
	}
	if got := synth.stops(); got != 1 {
		t.Fatalf("expected output to be stopped once, got %d", got)
	}
	if got := synth.overlapping.Load(); got != 0 {
		t.Fatalf("expected no overlapping tasks, got %d", got)
	}
	if !speaker.IsSpeaking() {
		t.Fatalf("expected speaker to be speaking")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	synth := &synthesizerStub{}
	speaker := NewResponseSpeaker(synth)

	if speaker.Stop() {
		t.Fatalf("expected stop without a task to report false")
	}
	if err := speaker.Speak(context.Background(), "hello"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !speaker.Stop() {
		t.Fatalf("expected first stop to report true")
	}
	if speaker.Stop() {
		t.Fatalf("expected second stop to report false")
	}

	if got := synth.stops(); got != 1 {
		t.Fatalf("expected output to be stopped once, got %d", got)
	}
	if speaker.IsSpeaking() {
		t.Fatalf("expected speaker to be silent")
	}
}

func TestStopSucceedsWhenOutputCannotBeSilenced(t *testing.T) {
	synth := &synthesizerStub{stopErr: errors.New("device unplugged")}
	recorder := &eventRecorder{}
	speaker := NewResponseSpeaker(synth, WithSpeakerEventHandler(recorder.handle))

	if err := speaker.Speak(context.Background(), "hello"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !speaker.Stop() {
		t.Fatalf("expected stop to report true")
	}

	if speaker.IsSpeaking() {
		t.Fatalf("expected speaker to be silent")
	}
	if synth.speech(0).ctx.Err() == nil {
		t.Fatalf("expected task context to be canceled")
	}
	if got := synth.stops(); got != 1 {
		t.Fatalf("expected output to be stopped once, got %d", got)
	}
	if stopped := recorder.ofKind(events.KindSpeechStopped); len(stopped) != 1 {
		t.Fatalf("expected one speech stopped event, got %d", len(stopped))
	}
	if speaker.Stop() {
		t.Fatalf("expected second stop to report false")
	}
}

func TestNaturalCompletionClearsSpeaking(t *testing.T) {
	synth := &synthesizerStub{}
	recorder := &eventRecorder{}
	speaker := NewResponseSpeaker(synth, WithSpeakerEventHandler(recorder.handle))

	if err := speaker.Speak(context.Background(), "hello"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	synth.finishLast(nil)

	waitFor(t, func() bool { return !speaker.IsSpeaking() }, "speaker to finish")
	speaker.Wait()
	if got := len(recorder.ofKind(events.KindSpeechCompleted)); got != 1 {
		t.Fatalf("expected one completion event, got %d", got)
	}
	if got := synth.stops(); got != 0 {
		t.Fatalf("expected no hard stop on natural completion, got %d", got)
	}
}

func TestLateCompletionOfReplacedTaskIsIgnored(t *testing.T) {
	synth := &synthesizerStub{}
	speaker := NewResponseSpeaker(synth)

	_ = speaker.Speak(context.Background(), "first")
	_ = speaker.Speak(context.Background(), "second")
	synth.speech(0).task.Finish(nil)
	speaker.Wait()

	if !speaker.IsSpeaking() {
		t.Fatalf("expected second task to keep speaking")
	}
}

func TestSynthesisFailureClearsSpeaking(t *testing.T) {
	synth := &synthesizerStub{}
	recorder := &eventRecorder{}
	speaker := NewResponseSpeaker(synth, WithSpeakerEventHandler(recorder.handle))

	_ = speaker.Speak(context.Background(), "hello")
	synth.finishLast(errors.New("socket closed"))

	waitFor(t, func() bool { return !speaker.IsSpeaking() }, "speaker to fail")
	speaker.Wait()
	if got := len(recorder.ofKind(events.KindSpeechFailed)); got != 1 {
		t.Fatalf("expected one failure event, got %d", got)
	}
}

func TestSpeakReturnsDispatchError(t *testing.T) {
	synth := &synthesizerStub{speakErr: errors.New("no connection")}
	speaker := NewResponseSpeaker(synth)

	if err := speaker.Speak(context.Background(), "hello"); err == nil {
		t.Fatalf("expected dispatch error")
	}
	if speaker.IsSpeaking() {
		t.Fatalf("expected speaker to stay silent after dispatch error")
	}
}

func TestSpeakWithoutSynthesizerFails(t *testing.T) {
	speaker := NewResponseSpeaker(nil)

	if err := speaker.Speak(context.Background(), "hello"); !errors.Is(err, errSynthesizerMissing) {
		t.Fatalf("expected missing synthesizer error, got %v", err)
	}
}

func TestCanceledContextStopsSpeech(t *testing.T) {
	synth := &synthesizerStub{}
	recorder := &eventRecorder{}
	speaker := NewResponseSpeaker(synth, WithSpeakerEventHandler(recorder.handle))
	ctx, cancel := context.WithCancel(context.Background())

	_ = speaker.Speak(ctx, "hello")
	cancel()

	waitFor(t, func() bool { return !speaker.IsSpeaking() }, "speech to stop on cancel")
	speaker.Wait()
	stopped := recorder.ofKind(events.KindSpeechStopped)
	if len(stopped) != 1 {
		t.Fatalf("expected one stop event, got %d", len(stopped))
	}
	if reason := stopped[0].(events.SpeechStopped).Reason; reason != events.StopReasonShutdown {
		t.Fatalf("expected shutdown reason, got %q", reason)
	}
	if got := synth.stops(); got != 1 {
		t.Fatalf("expected output to be hard-stopped once, got %d", got)
	}
}

func TestSpeakingMatchesActiveTaskUnderConcurrentSpeakAndStop(t *testing.T) {
	synth := &synthesizerStub{}
	controller := NewTurnController(nil, synth)
	speaker := controller.speaker

	checkInvariant := func() {
		controller.mu.Lock()
		defer controller.mu.Unlock()
		speaking := controller.state == StateSpeaking
		if speaking != (speaker.task != nil) {
			t.Errorf("state %s does not match active task %v", controller.state, speaker.task != nil)
		}
	}

	var wg sync.WaitGroup
	for worker := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				switch rand.IntN(4) {
				case 0, 1:
					_ = speaker.Speak(context.Background(), fmt.Sprintf("worker %d message %d", worker, i))
				case 2:
					controller.Stop()
				case 3:
					synth.mu.Lock()
					if n := len(synth.speeches); n > 0 {
						synth.speeches[rand.IntN(n)].task.Finish(nil)
					}
					synth.mu.Unlock()
				}
				checkInvariant()
			}
		}()
	}
	wg.Wait()
	speaker.Wait()
	checkInvariant()

	if got := synth.overlapping.Load(); got != 0 {
		t.Fatalf("expected at most one active task at a time, found %d overlaps", got)
	}
}
