package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Recognizer is a continuous speech recognition session. onResult may be
// called from any goroutine but never concurrently with itself.
type Recognizer interface {
	Start(ctx context.Context, onResult func(speechtotext.Result)) error
	Stop(ctx context.Context) error
}

// UtteranceHandler consumes finalized utterances. SubmitUtterance must decide
// on the utterance before returning and leave slow work, such as reply
// generation, to run in the background. TurnController implements it.
type UtteranceHandler interface {
	SubmitUtterance(ctx context.Context, utterance Utterance) <-chan Disposition
}

const (
	defaultQueueSize       = 16
	defaultRestartAttempts = 5
	recognizerStopTimeout  = 5 * time.Second
)

var ErrLoopRunning = errors.New("recognition loop is already running")

// RecognitionLoop owns a recognizer session and feeds its finalized results to
// an UtteranceHandler one at a time, in arrival order.
type RecognitionLoop struct {
	recognizer Recognizer
	handler    UtteranceHandler
	emit       EventHandler

	queueSize       int
	restartAttempts uint
	newBackOff      func() backoff.BackOff

	running atomic.Bool
}

func NewRecognitionLoop(recognizer Recognizer, handler UtteranceHandler, opts ...RecognitionLoopOption) *RecognitionLoop {
	l := &RecognitionLoop{
		recognizer:      recognizer,
		handler:         handler,
		emit:            noopEventHandler,
		queueSize:       defaultQueueSize,
		restartAttempts: defaultRestartAttempts,
		newBackOff:      func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run starts recognition and blocks until ctx is canceled or the session
// cannot be restarted. On the way out it stops the recognizer, waits for the
// result being dispatched and stops any speech the handler has in flight.
// Replies still generating see ctx canceled and are discarded.
func (l *RecognitionLoop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer l.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan speechtotext.Result, l.queueSize)
	deliver := func(result speechtotext.Result) {
		select {
		case results <- result:
		case <-ctx.Done():
		}
	}

	if err := l.recognizer.Start(ctx, deliver); err != nil {
		return fmt.Errorf("failed to start recognition: %w", err)
	}

	dispatchDone := make(chan error, 1)
	go func() { dispatchDone <- l.dispatch(ctx, results, deliver) }()

	var runErr error
	dispatched := false
	select {
	case <-ctx.Done():
	case runErr = <-dispatchDone:
		dispatched = true
	}
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.WithoutCancel(ctx), recognizerStopTimeout)
	defer stopCancel()
	if err := l.recognizer.Stop(stopCtx); err != nil {
		logger.WarnContext(stopCtx, "failed to stop recognizer", "error", err)
	}

	if !dispatched {
		runErr = <-dispatchDone
	}

	if stopper, ok := l.handler.(interface{ Stop() bool }); ok {
		stopper.Stop()
	}
	return runErr
}

func (l *RecognitionLoop) dispatch(ctx context.Context, results <-chan speechtotext.Result, deliver func(speechtotext.Result)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case result := <-results:
			if ctx.Err() != nil {
				return nil
			}
			if err := l.handleResult(ctx, result, deliver); err != nil {
				return err
			}
		}
	}
}

func (l *RecognitionLoop) handleResult(ctx context.Context, result speechtotext.Result, deliver func(speechtotext.Result)) error {
	switch result.Kind {
	case speechtotext.ResultFinalized:
		text := strings.TrimSpace(result.Text)
		if text == "" {
			l.emit(events.NewRecognitionNoMatch())
			return nil
		}
		l.handler.SubmitUtterance(ctx, NewUtterance(text))

	case speechtotext.ResultNoMatch:
		l.emit(events.NewRecognitionNoMatch())

	case speechtotext.ResultCanceled:
		recognitionCancellations.WithLabelValues(string(result.Reason)).Inc()
		logger.WarnContext(ctx, "recognition canceled", "reason", result.Reason, "detail", result.ErrorDetail)
		l.emit(events.NewRecognitionCanceled(string(result.Reason), result.ErrorDetail))
		return l.restart(ctx, deliver)
	}
	return nil
}

func (l *RecognitionLoop) restart(ctx context.Context, deliver func(speechtotext.Result)) error {
	if l.restartAttempts == 0 || ctx.Err() != nil {
		return nil
	}

	ctx, span := tracer.Start(ctx, "restart recognition")
	defer span.End()

	if err := l.recognizer.Stop(ctx); err != nil {
		logger.WarnContext(ctx, "failed to stop canceled recognizer session", "error", err)
	}

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		return struct{}{}, l.recognizer.Start(ctx, deliver)
	}, backoff.WithBackOff(l.newBackOff()), backoff.WithMaxTries(l.restartAttempts))
	span.SetAttributes(attribute.Int("restart.attempts", attempt))
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		err = fmt.Errorf("failed to restart recognition after %d attempts: %w", attempt, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.ErrorContext(ctx, "recognition restart failed", "error", err)
		return err
	}

	span.AddEvent("recognition restarted")
	recognitionRestarts.Inc()
	l.emit(events.NewRecognitionRestarted(attempt))
	return nil
}
