package deepgram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-voice/core/speechtotext"
	"github.com/koscakluka/ema-voice/internal/deepgram"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var errAlreadyStarted = errors.New("recognition session already started")

// Recognizer streams audio to the Deepgram listen API and reports results for
// each utterance.
type Recognizer struct {
	apiKey   string
	endpoint string
	options  speechtotext.RecognitionOptions
	encoding string

	connMu    sync.Mutex
	conn      *websocket.Conn
	stopConn  context.CancelFunc
	lastMsgTs time.Time
}

type RecognizerOption func(*Recognizer)

func WithRecognitionOptions(opts ...speechtotext.RecognitionOption) RecognizerOption {
	return func(r *Recognizer) {
		for _, opt := range opts {
			opt(&r.options)
		}
	}
}

// WithEndpoint overrides the listen URL derived from the region.
func WithEndpoint(endpoint string) RecognizerOption {
	return func(r *Recognizer) { r.endpoint = endpoint }
}

func NewRecognizer(apiKey string, opts ...RecognizerOption) (*Recognizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not set")
	}

	r := &Recognizer{apiKey: apiKey, options: speechtotext.DefaultRecognitionOptions()}
	for _, opt := range opts {
		opt(r)
	}

	encoding, err := encodingName(r.options.EncodingInfo)
	if err != nil {
		return nil, fmt.Errorf("invalid encoding: %w", err)
	}
	r.encoding = encoding

	if r.endpoint == "" {
		r.endpoint = (&url.URL{Scheme: "wss", Host: deepgram.Host(r.options.Region), Path: "/v1/listen"}).String()
	}
	return r, nil
}

// Start opens a session. Results are passed to onResult from a single
// goroutine until the session ends; a session that ends without Stop reports
// a canceled result.
func (r *Recognizer) Start(ctx context.Context, onResult func(speechtotext.Result)) error {
	ctx, span := tracer.Start(ctx, "start recognition")
	defer span.End()
	span.SetAttributes(
		attribute.String("recognition.model", r.options.Model),
		attribute.String("recognition.language", r.options.Language),
		attribute.String("recognition.encoding", r.encoding),
	)

	r.connMu.Lock()
	defer r.connMu.Unlock()
	if r.conn != nil {
		return errAlreadyStarted
	}

	conn, err := r.connect(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.conn = conn
	r.stopConn = cancel
	r.lastMsgTs = time.Now()

	go r.readAndProcessMessages(sessionCtx, conn, onResult)
	go r.generateSilence(sessionCtx)
	return nil
}

// Stop ends the current session without reporting a cancellation.
func (r *Recognizer) Stop(_ context.Context) error {
	r.connMu.Lock()
	conn, cancel := r.conn, r.stopConn
	r.conn, r.stopConn = nil, nil
	if conn == nil {
		r.connMu.Unlock()
		return nil
	}
	writeErr := conn.WriteJSON(controlMessage{Type: string(api.TypeCloseStreamResponse)})
	r.connMu.Unlock()

	cancel()
	if err := errors.Join(writeErr, conn.Close()); err != nil {
		return fmt.Errorf("failed to close deepgram session: %w", err)
	}
	return nil
}

// SendAudio forwards captured audio. Audio sent while no session is open is
// dropped.
func (r *Recognizer) SendAudio(audio []byte) error {
	r.connMu.Lock()
	defer r.connMu.Unlock()

	if r.conn == nil {
		return nil
	}
	r.lastMsgTs = time.Now()
	if err := r.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

type controlMessage struct {
	Type string `json:"type"`
}

func (r *Recognizer) connect(ctx context.Context) (*websocket.Conn, error) {
	listenURL, err := url.Parse(r.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid deepgram endpoint: %w", err)
	}

	queryParams := listenURL.Query()
	queryParams.Set("encoding", r.encoding)
	queryParams.Set("sample_rate", strconv.Itoa(r.options.EncodingInfo.SampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", r.options.Model)
	queryParams.Set("language", r.options.Language)
	queryParams.Set("smart_format", "true")
	queryParams.Set("interim_results", "true")
	queryParams.Set("vad_events", "true")
	if r.options.EndpointingMs > 0 {
		queryParams.Set("endpointing", strconv.Itoa(r.options.EndpointingMs))
	}
	if r.options.UtteranceEndMs > 0 {
		queryParams.Set("utterance_end_ms", strconv.Itoa(r.options.UtteranceEndMs))
	}
	listenURL.RawQuery = queryParams.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, listenURL.String(),
		http.Header{"Authorization": {"Token " + r.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	return conn, nil
}

// detach clears conn if it is still the current session and reports whether
// it was.
func (r *Recognizer) detach(conn *websocket.Conn) bool {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	if r.conn != conn {
		return false
	}
	r.stopConn()
	r.conn, r.stopConn = nil, nil
	return true
}

func (r *Recognizer) readAndProcessMessages(ctx context.Context, conn *websocket.Conn, onResult func(speechtotext.Result)) {
	transcript := &transcriptState{}
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if !r.detach(conn) {
				return
			}
			_ = conn.Close()

			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				onResult(speechtotext.Canceled(speechtotext.CancellationReasonEndOfStream, ""))
				return
			}
			logger.ErrorContext(ctx, "deepgram session ended", "error", err)
			onResult(speechtotext.Canceled(speechtotext.CancellationReasonError, err.Error()))
			return
		}

		if msgType == websocket.TextMessage {
			transcript.process(ctx, msg, onResult)
		}
	}
}

func (r *Recognizer) sinceLastAudio() time.Duration {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	return time.Since(r.lastMsgTs)
}

func (r *Recognizer) sendSilence(chunk []byte) error {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	if r.conn == nil {
		return nil
	}
	if err := r.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (r *Recognizer) sendKeepAlive() error {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	if r.conn == nil {
		return nil
	}
	if err := r.conn.WriteJSON(controlMessage{Type: "KeepAlive"}); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

// generateSilence pads short gaps in captured audio with silence so endpointing
// keeps working, and falls back to keep-alive messages for long gaps.
func (r *Recognizer) generateSilence(ctx context.Context) {
	type silenceGeneratorState string
	const (
		silenceGeneratorStateWaiting   silenceGeneratorState = "waiting"
		silenceGeneratorStateSilence   silenceGeneratorState = "silence"
		silenceGeneratorStateKeepAlive silenceGeneratorState = "keepAlive"
	)

	const (
		chunkDuration     = 50 * time.Millisecond
		silenceDuration   = time.Second
		keepAliveInterval = 5 * time.Second
	)
	ticker := time.NewTicker(chunkDuration)
	defer ticker.Stop()

	encoding := r.options.EncodingInfo
	chunk := make([]byte, encoding.BytesPerSecond()*int(chunkDuration/time.Millisecond)/1000)
	for i := range chunk {
		chunk[i] = encoding.SilenceValue()
	}

	state := silenceGeneratorStateWaiting
	var silenceStartedAt, lastKeepAliveAt time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			idle := r.sinceLastAudio() > chunkDuration
			switch state {
			case silenceGeneratorStateWaiting:
				if idle {
					state = silenceGeneratorStateSilence
					silenceStartedAt = time.Now()
				}

			case silenceGeneratorStateSilence:
				if !idle {
					state = silenceGeneratorStateWaiting
					continue
				}
				if time.Since(silenceStartedAt) >= silenceDuration {
					state = silenceGeneratorStateKeepAlive
					lastKeepAliveAt = time.Now()
					continue
				}
				if err := r.sendSilence(chunk); err != nil {
					logger.WarnContext(ctx, "failed to send silence", "error", err)
				}

			case silenceGeneratorStateKeepAlive:
				if !idle {
					state = silenceGeneratorStateWaiting
					continue
				}
				if time.Since(lastKeepAliveAt) >= keepAliveInterval {
					lastKeepAliveAt = time.Now()
					if err := r.sendKeepAlive(); err != nil {
						logger.WarnContext(ctx, "failed to send keep alive", "error", err)
					}
				}
			}
		}
	}
}
