package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/llms"
	"github.com/koscakluka/ema-voice/core/safety"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Generator produces the assistant reply for a conversation whose last
// message is the user's prompt.
type Generator interface {
	Complete(ctx context.Context, conversation []llms.Message) (string, error)
}

// Disposition is what the controller did with an utterance.
type Disposition string

const (
	DispositionAnswered         Disposition = "answered"
	DispositionRefused          Disposition = "refused"
	DispositionStopped          Disposition = "stopped"
	DispositionIgnored          Disposition = "ignored"
	DispositionBusy             Disposition = "busy"
	DispositionCanceled         Disposition = "canceled"
	DispositionGenerationFailed Disposition = "generation_failed"
	DispositionSpeechFailed     Disposition = "speech_failed"
)

const DefaultRefusalMessage = "Sorry, I cannot respond to that request."

var errGeneratorMissing = errors.New("no generator configured")

// TurnController arbitrates between user utterances, reply generation and
// speech output. While the assistant is speaking, utterances are only checked
// for stop commands; otherwise they are screened by the safety gate and
// answered.
type TurnController struct {
	mu      sync.Mutex
	state   AssistantState
	speaker *ResponseSpeaker
	pending *pendingTurn
	history *conversation
	closed  bool
	turns   sync.WaitGroup

	generator         Generator
	gate              *safety.Gate
	stopCommands      CommandSet
	refusalMessage    string
	fallbackMessage   string
	generationTimeout time.Duration
	instructions      string
	historyLimit      int

	emit EventHandler
}

// pendingTurn is a reply being generated outside the lock.
type pendingTurn struct {
	utterance Utterance
	ctx       context.Context
	cancel    context.CancelFunc
	messages  []llms.Message
	canceled  bool
}

func NewTurnController(generator Generator, synthesizer Synthesizer, opts ...ControllerOption) *TurnController {
	c := &TurnController{
		state:          StateIdle,
		generator:      generator,
		gate:           safety.NewGate(safety.DefaultPhrases()),
		stopCommands:   NewCommandSet(DefaultStopCommands...),
		refusalMessage: DefaultRefusalMessage,
		historyLimit:   defaultHistoryTurns,
		emit:           noopEventHandler,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.history = newConversation(c.historyLimit)
	c.speaker = newResponseSpeaker(&c.mu, synthesizer,
		withSpeakingChangedCallback(c.setSpeakingLocked),
		WithSpeakerEventHandler(func(event events.Event) { c.emit(event) }),
	)
	return c
}

func (c *TurnController) State() AssistantState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stop interrupts speech output, if any. It reports whether anything was
// stopped.
func (c *TurnController) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaker.stopLocked(events.StopReasonCommand)
}

// History returns the completed turns kept as generation context.
func (c *TurnController) History() []llms.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Snapshot()
}

// Shutdown cancels pending generation, stops speech and waits for the
// generating turn and speech watchers to exit. Utterances handled afterwards
// are ignored.
func (c *TurnController) Shutdown() {
	c.mu.Lock()
	c.closed = true
	if c.pending != nil {
		c.pending.canceled = true
		c.pending.cancel()
	}
	c.speaker.stopLocked(events.StopReasonShutdown)
	c.mu.Unlock()

	c.turns.Wait()
	c.speaker.Wait()
}

// HandleUtterance runs one utterance through the turn state machine and waits
// for its disposition. It blocks while a reply is generated, but never while
// speech plays.
func (c *TurnController) HandleUtterance(ctx context.Context, utterance Utterance) Disposition {
	return <-c.SubmitUtterance(ctx, utterance)
}

// SubmitUtterance decides what to do with utterance and returns without
// waiting for reply generation. Stop commands and busy checks take effect
// before it returns; a generated reply is spoken later from a tracked
// goroutine. The channel receives the final disposition.
func (c *TurnController) SubmitUtterance(ctx context.Context, utterance Utterance) <-chan Disposition {
	ctx, span := tracer.Start(ctx, "handle utterance", trace.WithAttributes(
		attribute.String("utterance.id", utterance.ID),
	))

	result := make(chan Disposition, 1)
	finish := func(disposition Disposition) {
		span.SetAttributes(attribute.String("utterance.disposition", string(disposition)))
		utteranceDispositions.WithLabelValues(string(disposition)).Inc()
		span.End()
		result <- disposition
	}

	turn, disposition := c.decide(ctx, utterance)
	if turn == nil {
		finish(disposition)
		return result
	}

	go func() {
		defer c.turns.Done()
		finish(c.completeTurn(ctx, turn))
	}()
	return result
}

// decide handles everything that needs no generation under one critical
// section. It returns a pending turn, already registered with c.turns, when a
// reply must be generated.
func (c *TurnController) decide(ctx context.Context, utterance Utterance) (*pendingTurn, Disposition) {
	span := trace.SpanFromContext(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.emit(events.NewUtteranceReceived(utterance.ID, utterance.Text))

	if c.closed {
		return nil, c.ignoreLocked(utterance, "shutdown", DispositionIgnored)
	}
	if strings.TrimSpace(utterance.Text) == "" {
		return nil, c.ignoreLocked(utterance, "empty", DispositionIgnored)
	}

	if c.state == StateSpeaking {
		phrase, ok := c.stopCommands.Matches(utterance.Text)
		if !ok {
			return nil, c.ignoreLocked(utterance, "speaking", DispositionIgnored)
		}
		span.AddEvent("stop command", trace.WithAttributes(attribute.String("command", phrase)))
		c.speaker.stopLocked(events.StopReasonCommand)
		return nil, DispositionStopped
	}

	if c.pending != nil {
		phrase, ok := c.stopCommands.Matches(utterance.Text)
		if !ok {
			return nil, c.ignoreLocked(utterance, "busy", DispositionBusy)
		}
		span.AddEvent("pending generation canceled", trace.WithAttributes(attribute.String("command", phrase)))
		c.pending.canceled = true
		c.pending.cancel()
		return nil, DispositionStopped
	}

	if verdict := c.gate.Classify(utterance.Text); !verdict.Allowed {
		span.AddEvent("blocked by safety gate", trace.WithAttributes(
			attribute.String("safety.category", string(verdict.Category)),
		))
		safetyBlocks.WithLabelValues(string(verdict.Category)).Inc()
		c.emit(events.NewSafetyBlocked(utterance.ID, string(verdict.Category), verdict.Phrase))

		if err := c.speaker.speakLocked(ctx, c.refusalMessage); err != nil {
			span.RecordError(err)
			return nil, DispositionSpeechFailed
		}
		return nil, DispositionRefused
	}

	turn := &pendingTurn{utterance: utterance, messages: c.history.Messages(c.instructions, utterance.Text)}
	if c.generationTimeout > 0 {
		turn.ctx, turn.cancel = context.WithTimeout(ctx, c.generationTimeout)
	} else {
		turn.ctx, turn.cancel = context.WithCancel(ctx)
	}
	c.pending = turn
	c.turns.Add(1)
	return turn, ""
}

// completeTurn generates the reply for turn outside the lock and speaks it
// unless the turn was canceled in the meantime.
func (c *TurnController) completeTurn(ctx context.Context, turn *pendingTurn) Disposition {
	span := trace.SpanFromContext(ctx)
	utterance := turn.utterance

	startedAt := time.Now()
	reply, err := c.generate(turn.ctx, turn.messages)
	latency := time.Since(startedAt)
	turn.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == turn {
		c.pending = nil
	}

	if turn.canceled || ctx.Err() != nil {
		span.AddEvent("reply discarded")
		c.emit(events.NewGenerationCanceled(utterance.ID))
		return DispositionCanceled
	}

	if err != nil {
		c.reportGenerationFailure(ctx, utterance, err)
		if c.fallbackMessage != "" {
			if speakErr := c.speaker.speakLocked(ctx, c.fallbackMessage); speakErr != nil {
				span.RecordError(speakErr)
			}
		}
		return DispositionGenerationFailed
	}

	generationLatency.Observe(latency.Seconds())
	c.emit(events.NewGenerationCompleted(utterance.ID, reply, latency))

	if err := c.speaker.speakLocked(ctx, reply); err != nil {
		span.RecordError(err)
		return DispositionSpeechFailed
	}

	c.history.Record(llms.Turn{ID: utterance.ID, Prompt: utterance.Text, Response: reply, At: time.Now()})
	return DispositionAnswered
}

func (c *TurnController) generate(ctx context.Context, messages []llms.Message) (string, error) {
	ctx, span := tracer.Start(ctx, "generate reply")
	defer span.End()

	if c.generator == nil {
		return "", errGeneratorMissing
	}

	reply, err := c.generator.Complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("failed to generate reply: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("failed to generate reply: empty response")
	}
	span.SetAttributes(attribute.Int("reply.length", len(reply)))
	return reply, nil
}

// reportGenerationFailure is the single place a failed generation is surfaced.
func (c *TurnController) reportGenerationFailure(ctx context.Context, utterance Utterance, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	logger.ErrorContext(ctx, "reply generation failed", "utterance_id", utterance.ID, "error", err)
	generationFailures.Inc()
	c.emit(events.NewGenerationFailed(utterance.ID, err))
}

func (c *TurnController) ignoreLocked(utterance Utterance, reason string, disposition Disposition) Disposition {
	c.emit(events.NewUtteranceIgnored(utterance.ID, utterance.Text, reason))
	return disposition
}

func (c *TurnController) setSpeakingLocked(speaking bool) {
	next := StateIdle
	if speaking {
		next = StateSpeaking
	}
	if c.state == next {
		return
	}

	previous := c.state
	c.state = next
	stateTransitions.WithLabelValues(previous.String(), next.String()).Inc()
	c.emit(events.NewTurnStateChanged(previous.String(), next.String()))
}
