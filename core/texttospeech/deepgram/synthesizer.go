package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/texttospeech"
	"github.com/koscakluka/ema-voice/internal/deepgram"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrStopped finishes tasks that were silenced with StopSpeaking.
var ErrStopped = errors.New("speech stopped")

// AudioOutput plays synthesized audio. Mark calls callback once every byte
// sent before it has been played; ClearBuffer drops queued audio and pending
// marks. SendAudio and Mark may block on the device; ClearBuffer must not wait
// for them.
type AudioOutput interface {
	EncodingInfo() audio.EncodingInfo
	SendAudio(audio []byte) error
	ClearBuffer()
	Mark(name string, callback func(string)) error
}

// Synthesizer speaks text through the Deepgram speak API, one websocket per
// task, and plays the audio on an AudioOutput.
type Synthesizer struct {
	apiKey   string
	endpoint string
	options  texttospeech.SynthesisOptions
	encoding string
	output   AudioOutput

	mu      sync.Mutex
	current *speechRequest

	// writeMu serializes output writes across requests. stop never takes it.
	writeMu sync.Mutex
}

type speechRequest struct {
	task *texttospeech.Task
	text string
}

type SynthesizerOption func(*Synthesizer)

func WithSynthesisOptions(opts ...texttospeech.SynthesisOption) SynthesizerOption {
	return func(s *Synthesizer) {
		for _, opt := range opts {
			opt(&s.options)
		}
	}
}

// WithEndpoint overrides the speak URL derived from the region.
func WithEndpoint(endpoint string) SynthesizerOption {
	return func(s *Synthesizer) { s.endpoint = endpoint }
}

func NewSynthesizer(apiKey string, output AudioOutput, opts ...SynthesizerOption) (*Synthesizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not set")
	}
	if output == nil {
		return nil, fmt.Errorf("audio output not set")
	}

	s := &Synthesizer{
		apiKey: apiKey,
		output: output,
		options: texttospeech.SynthesisOptions{
			Voice:        DefaultVoice,
			EncodingInfo: output.EncodingInfo(),
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	if !slices.Contains(availableVoices, s.options.Voice) {
		return nil, fmt.Errorf("invalid voice %q", s.options.Voice)
	}
	encoding, err := speakEncoding(s.options.EncodingInfo)
	if err != nil {
		return nil, fmt.Errorf("invalid encoding: %w", err)
	}
	s.encoding = encoding

	if s.endpoint == "" {
		s.endpoint = (&url.URL{Scheme: "wss", Host: deepgram.Host(s.options.Region), Path: "/v1/speak"}).String()
	}
	return s, nil
}

// SpeakAsync replaces the current speech with text and returns once the
// request is dispatched. The task finishes when the audio has played, when
// synthesis fails or when ctx is canceled.
func (s *Synthesizer) SpeakAsync(ctx context.Context, text string) (texttospeech.SpeechTask, error) {
	req := &speechRequest{task: texttospeech.NewTask(), text: text}

	s.mu.Lock()
	previous := s.current
	s.current = req
	s.mu.Unlock()
	if previous != nil {
		s.output.ClearBuffer()
		previous.task.Finish(ErrStopped)
	}

	stopOnCancel := context.AfterFunc(ctx, func() { s.stop(req, ctx.Err()) })
	go func() {
		<-req.task.Done()
		stopOnCancel()
	}()

	go s.run(ctx, req)
	return req.task, nil
}

// StopSpeaking silences the current speech without waiting for an output write
// in progress; audio from such a write is cleared as soon as the write
// returns. Silencing is local to the output, so it always returns nil.
func (s *Synthesizer) StopSpeaking() error {
	s.mu.Lock()
	req := s.current
	s.mu.Unlock()

	if req == nil {
		s.output.ClearBuffer()
		return nil
	}
	s.stop(req, ErrStopped)
	return nil
}

// stop silences req if it is still current and finishes it with err.
func (s *Synthesizer) stop(req *speechRequest, err error) {
	s.mu.Lock()
	current := s.current == req
	if current {
		s.current = nil
	}
	s.mu.Unlock()

	if current {
		s.output.ClearBuffer()
	}
	req.task.Finish(err)
}

// release drops req if it is still current.
func (s *Synthesizer) release(req *speechRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == req {
		s.current = nil
	}
}

func (s *Synthesizer) run(ctx context.Context, req *speechRequest) {
	ctx, span := tracer.Start(ctx, "synthesize speech", trace.WithAttributes(
		attribute.String("speech.task_id", req.task.ID),
		attribute.String("speech.voice", s.options.Voice),
		attribute.Int("speech.text_length", len(req.text)),
	))
	defer span.End()

	marked, err := s.synthesize(ctx, req)
	if marked {
		return
	}

	s.release(req)
	if err != nil && !errors.Is(err, ErrStopped) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.ErrorContext(ctx, "speech synthesis failed", "task_id", req.task.ID, "error", err)
	}
	req.task.Finish(err)
}

// synthesize streams the request until all of its audio is queued on the
// output. It reports marked once the end-of-speech mark is placed; from then
// on the mark finishes the task when playback reaches it.
func (s *Synthesizer) synthesize(ctx context.Context, req *speechRequest) (marked bool, err error) {
	conn, err := s.connect(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	stopClosing := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stopClosing()

	if err := conn.WriteJSON(speakMessage{Type: "Speak", Text: req.text}); err != nil {
		return false, s.connError(ctx, fmt.Errorf("failed to send text to deepgram: %w", err))
	}
	if err := conn.WriteJSON(controlMessage{Type: "Flush"}); err != nil {
		return false, s.connError(ctx, fmt.Errorf("failed to flush deepgram buffer: %w", err))
	}

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			return false, s.connError(ctx, fmt.Errorf("deepgram speak session ended early: %w", err))
		}

		switch msgType {
		case websocket.BinaryMessage:
			if len(msg) == 0 {
				continue
			}
			if err := s.play(req, msg); err != nil {
				return false, err
			}

		case websocket.TextMessage:
			var parsedMsg controlMessage
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				logger.WarnContext(ctx, "failed to unmarshal deepgram message", "error", err)
				continue
			}

			switch parsedMsg.Type {
			case "Flushed":
				_ = conn.WriteJSON(controlMessage{Type: "Close"})
				if err := s.markEnd(req); err != nil {
					return false, err
				}
				return true, nil
			case "Warning":
				logger.WarnContext(ctx, "deepgram speak warning", "message", string(msg))
			case "Error":
				return false, fmt.Errorf("deepgram speak error: %s", msg)
			}
		}
	}
}

// play forwards audio only while req is current. The write happens outside mu
// so stop never waits on the device; if req was stopped meanwhile, the chunk
// is cleared again. Holding writeMu keeps newer requests' audio out of that
// clear.
func (s *Synthesizer) play(req *speechRequest, chunk []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !s.isCurrent(req) {
		return ErrStopped
	}
	if err := s.output.SendAudio(chunk); err != nil {
		return fmt.Errorf("failed to play audio: %w", err)
	}
	if !s.isCurrent(req) {
		s.output.ClearBuffer()
		return ErrStopped
	}
	return nil
}

// markEnd places the end-of-speech mark. A mark placed for a request stopped
// in the meantime only finishes an already finished task.
func (s *Synthesizer) markEnd(req *speechRequest) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !s.isCurrent(req) {
		return ErrStopped
	}
	if err := s.output.Mark(req.task.ID, func(string) {
		s.release(req)
		req.task.Finish(nil)
	}); err != nil {
		return fmt.Errorf("failed to mark end of speech: %w", err)
	}
	return nil
}

func (s *Synthesizer) isCurrent(req *speechRequest) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current == req
}

func (s *Synthesizer) connError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

type controlMessage struct {
	Type string `json:"type"`
}

type speakMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (s *Synthesizer) connect(ctx context.Context) (*websocket.Conn, error) {
	speakURL, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid deepgram endpoint: %w", err)
	}

	queryParams := speakURL.Query()
	queryParams.Set("encoding", s.encoding)
	queryParams.Set("sample_rate", strconv.Itoa(s.options.EncodingInfo.SampleRate))
	queryParams.Set("model", s.options.Voice)
	speakURL.RawQuery = queryParams.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, speakURL.String(),
		http.Header{"Authorization": {"Token " + s.apiKey}})
	if err != nil {
		return nil, s.connError(ctx, fmt.Errorf("failed to open socket connection to deepgram: %w", err))
	}
	return conn, nil
}
