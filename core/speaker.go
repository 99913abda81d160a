package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Synthesizer turns text into audible speech. SpeakAsync must return as soon
// as synthesis has been dispatched. StopSpeaking must silence output
// immediately: no audio of a stopped task may reach the device after it
// returns.
// Synthesizer turns text into audible speech. StopSpeaking silences the
// current speech; an error means the output may still be playing it.
type Synthesizer interface {
	SpeakAsync(ctx context.Context, text string) (texttospeech.SpeechTask, error)
	StopSpeaking() error
}

var errSynthesizerMissing = errors.New("no synthesizer configured")

// ResponseSpeaker owns the single in-flight speech task. Every method
// serializes on the assistant-state lock, so at most one task exists and the
// speaking condition holds exactly while a task is active.
type ResponseSpeaker struct {
	mu          sync.Locker
	synthesizer Synthesizer
	task        *speechTask

	// onSpeakingChanged is called with the lock held whenever a task starts
	// or ends.
	onSpeakingChanged func(speaking bool)
	emit              EventHandler

	wg sync.WaitGroup
}

type speechTask struct {
	id        string
	text      string
	cancel    context.CancelFunc
	startedAt time.Time
}

func NewResponseSpeaker(synthesizer Synthesizer, opts ...SpeakerOption) *ResponseSpeaker {
	return newResponseSpeaker(&sync.Mutex{}, synthesizer, opts...)
}

func newResponseSpeaker(mu sync.Locker, synthesizer Synthesizer, opts ...SpeakerOption) *ResponseSpeaker {
	s := &ResponseSpeaker{
		mu:                mu,
		synthesizer:       synthesizer,
		onSpeakingChanged: func(bool) {},
		emit:              noopEventHandler,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Speak cancels any running task, then dispatches synthesis of text and
// returns without waiting for it to finish. Canceling ctx stops the speech.
func (s *ResponseSpeaker) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speakLocked(ctx, text)
}

// Stop cancels the active task and silences output. It reports whether there
// was anything to stop.
func (s *ResponseSpeaker) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked(events.StopReasonCommand)
}

func (s *ResponseSpeaker) IsSpeaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task != nil
}

// Wait blocks until every task watcher has exited.
func (s *ResponseSpeaker) Wait() {
	s.wg.Wait()
}

func (s *ResponseSpeaker) speakLocked(ctx context.Context, text string) error {
	s.stopTaskLocked(events.StopReasonReplaced)

	if s.synthesizer == nil {
		s.onSpeakingChanged(false)
		return errSynthesizerMissing
	}

	taskCtx, cancel := context.WithCancel(ctx)
	task := &speechTask{id: uuid.NewString(), text: text, cancel: cancel, startedAt: time.Now()}
	s.task = task
	s.onSpeakingChanged(true)

	handle, err := s.synthesizer.SpeakAsync(taskCtx, text)
	if err != nil {
		cancel()
		s.task = nil
		s.onSpeakingChanged(false)

		err = fmt.Errorf("failed to start speech synthesis: %w", err)
		s.reportFailure(ctx, task, err)
		return err
	}

	trace.SpanFromContext(ctx).AddEvent("speech started", trace.WithAttributes(attribute.String("speech.task_id", task.id)))
	s.emit(events.NewSpeechStarted(task.id, text))

	s.wg.Add(1)
	go s.watch(taskCtx, task, handle)
	return nil
}

func (s *ResponseSpeaker) stopLocked(reason string) bool {
	stopped := s.stopTaskLocked(reason)
	if stopped {
		s.onSpeakingChanged(false)
	}
	return stopped
}

// stopTaskLocked tears the active task down without touching the speaking
// condition.
func (s *ResponseSpeaker) stopTaskLocked(reason string) bool {
	task := s.task
	if task == nil {
		return false
	}

	s.task = nil
	task.cancel()
	if err := s.synthesizer.StopSpeaking(); err != nil {
		logger.Error("failed to stop speech output", "task_id", task.id, "error", err)
	}

	speechTasks.WithLabelValues(reason).Inc()
	s.emit(events.NewSpeechStopped(task.id, reason))
	return true
}

func (s *ResponseSpeaker) watch(ctx context.Context, task *speechTask, handle texttospeech.SpeechTask) {
	defer s.wg.Done()

	var err error
	select {
	case <-handle.Done():
		err = handle.Err()
	case <-ctx.Done():
	}
	shutdown := ctx.Err() != nil

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.task != task {
		// Already stopped or replaced.
		return
	}

	if shutdown {
		s.stopLocked(events.StopReasonShutdown)
		return
	}

	s.task = nil
	task.cancel()
	if err != nil {
		s.reportFailure(ctx, task, fmt.Errorf("speech synthesis failed: %w", err))
	} else {
		speechTasks.WithLabelValues("completed").Inc()
		s.emit(events.NewSpeechCompleted(task.id))
	}
	s.onSpeakingChanged(false)
}

func (s *ResponseSpeaker) reportFailure(ctx context.Context, task *speechTask, err error) {
	speechTasks.WithLabelValues("failed").Inc()
	logger.ErrorContext(ctx, "speech task failed", "task_id", task.id, "error", err)
	s.emit(events.NewSpeechFailed(task.id, err))
}
