package orchestration

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/llms"
	"github.com/koscakluka/ema-voice/core/speechtotext"
	"github.com/koscakluka/ema-voice/core/texttospeech"
)

type stubSpeech struct {
	ctx  context.Context
	task *texttospeech.Task
	text string
}

type synthesizerStub struct {
	mu        sync.Mutex
	speeches  []*stubSpeech
	stopCalls int
	speakErr  error
	stopErr   error

	overlapping atomic.Int32
}

func (s *synthesizerStub) SpeakAsync(ctx context.Context, text string) (texttospeech.SpeechTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.speakErr != nil {
		return nil, s.speakErr
	}
	for _, speech := range s.speeches {
		if speech.ctx.Err() == nil && !isDone(speech.task) {
			s.overlapping.Add(1)
		}
	}

	speech := &stubSpeech{ctx: ctx, task: texttospeech.NewTask(), text: text}
	s.speeches = append(s.speeches, speech)
	return speech.task, nil
}

func (s *synthesizerStub) StopSpeaking() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopCalls++
	return s.stopErr
}

func (s *synthesizerStub) spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	texts := []string{}
	for _, speech := range s.speeches {
		texts = append(texts, speech.text)
	}
	return texts
}

func (s *synthesizerStub) speech(i int) *stubSpeech {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 {
		i = len(s.speeches) + i
	}
	return s.speeches[i]
}

func (s *synthesizerStub) finishLast(err error) {
	s.speech(-1).task.Finish(err)
}

func (s *synthesizerStub) stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCalls
}

func isDone(task *texttospeech.Task) bool {
	select {
	case <-task.Done():
		return true
	default:
		return false
	}
}

type generatorStub struct {
	complete func(ctx context.Context, conversation []llms.Message) (string, error)
	calls    atomic.Int32
	called   chan struct{}
}

func newGeneratorStub(complete func(ctx context.Context, conversation []llms.Message) (string, error)) *generatorStub {
	return &generatorStub{complete: complete, called: make(chan struct{}, 16)}
}

func replyWith(reply string) *generatorStub {
	return newGeneratorStub(func(context.Context, []llms.Message) (string, error) { return reply, nil })
}

func (g *generatorStub) Complete(ctx context.Context, conversation []llms.Message) (string, error) {
	g.calls.Add(1)
	g.called <- struct{}{}
	return g.complete(ctx, conversation)
}

type recognizerStub struct {
	mu        sync.Mutex
	onResult  func(speechtotext.Result)
	starts    int
	stops     int
	startErrs []error
}

func (r *recognizerStub) Start(_ context.Context, onResult func(speechtotext.Result)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.starts++
	if len(r.startErrs) > 0 {
		err := r.startErrs[0]
		r.startErrs = r.startErrs[1:]
		if err != nil {
			return err
		}
	}
	r.onResult = onResult
	return nil
}

func (r *recognizerStub) Stop(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	return nil
}

func (r *recognizerStub) send(result speechtotext.Result) {
	r.mu.Lock()
	onResult := r.onResult
	r.mu.Unlock()
	onResult(result)
}

func (r *recognizerStub) startCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}

func (r *recognizerStub) stopCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) handle(event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) ofKind(kind events.Kind) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	matching := []events.Event{}
	for _, event := range r.events {
		if event.Kind() == kind {
			matching = append(matching, event)
		}
	}
	return matching
}

func waitFor(t *testing.T, condition func() bool, message string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !condition() {
		select {
		case <-deadline:
			t.Fatalf("timed out: %s", message)
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func waitForCall(t *testing.T, generator *generatorStub) {
	t.Helper()
	select {
	case <-generator.called:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected generator to be called")
	}
}
