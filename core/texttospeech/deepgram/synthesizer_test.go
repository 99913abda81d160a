package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/texttospeech"
)

type outputStub struct {
	mu        sync.Mutex
	audio     [][]byte
	queued    int
	marks     []string
	clears    int
	holdMarks bool
	pending   []func(string)
}

func (o *outputStub) EncodingInfo() audio.EncodingInfo { return audio.GetDefaultEncodingInfo() }

func (o *outputStub) SendAudio(audio []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.audio = append(o.audio, audio)
	o.queued++
	return nil
}

func (o *outputStub) ClearBuffer() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.clears++
	o.queued = 0
	o.pending = nil
}

func (o *outputStub) Mark(name string, callback func(string)) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.marks = append(o.marks, name)
	if o.holdMarks {
		o.pending = append(o.pending, callback)
		return nil
	}
	go callback(name)
	return nil
}

func (o *outputStub) chunks() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.audio)
}

func (o *outputStub) queuedChunks() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.queued
}

// gatedOutput blocks every write until gate is closed, like a device whose
// buffer is full.
type gatedOutput struct {
	outputStub
	gate    chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (o *gatedOutput) SendAudio(audio []byte) error {
	o.once.Do(func() { close(o.entered) })
	<-o.gate
	return o.outputStub.SendAudio(audio)
}

type speakServer struct {
	t        *testing.T
	requests chan *http.Request
	texts    chan string
	// stream keeps sending audio until the client disconnects instead of
	// answering the flush.
	stream bool
}

func (s *speakServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.requests <- r
	conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
	if err != nil {
		s.t.Errorf("failed to upgrade: %v", err)
		return
	}
	defer conn.Close()

	var speak speakMessage
	if err := conn.ReadJSON(&speak); err != nil {
		return
	}
	s.texts <- speak.Text
	var flush controlMessage
	if err := conn.ReadJSON(&flush); err != nil || flush.Type != "Flush" {
		return
	}

	if s.stream {
		for {
			if err := conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3, 4}); err != nil {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	_ = conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3, 4})
	_ = conn.WriteMessage(websocket.BinaryMessage, []byte{5, 6, 7, 8})
	_ = conn.WriteJSON(controlMessage{Type: "Flushed"})
	var closeMsg controlMessage
	_ = conn.ReadJSON(&closeMsg)
}

func newSpeakServer(t *testing.T, stream bool) (*speakServer, string) {
	t.Helper()
	handler := &speakServer{t: t, requests: make(chan *http.Request, 4), texts: make(chan string, 4), stream: stream}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return handler, "ws" + strings.TrimPrefix(server.URL, "http")
}

func waitTask(t *testing.T, task texttospeech.SpeechTask) error {
	t.Helper()
	select {
	case <-task.Done():
		return task.Err()
	case <-time.After(2 * time.Second):
		t.Fatalf("expected speech task to finish")
		return nil
	}
}

func TestSpeechFinishesAfterPlayback(t *testing.T) {
	server, endpoint := newSpeakServer(t, false)
	output := &outputStub{}
	synthesizer, err := NewSynthesizer("key", output, WithEndpoint(endpoint))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	task, err := synthesizer.SpeakAsync(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("expected dispatch to succeed, got %v", err)
	}
	if err := waitTask(t, task); err != nil {
		t.Fatalf("expected clean completion, got %v", err)
	}

	request := <-server.requests
	if got := request.URL.Query().Get("model"); got != DefaultVoice {
		t.Fatalf("expected default voice, got %q", got)
	}
	if got := request.URL.Query().Get("encoding"); got != "linear16" {
		t.Fatalf("expected linear16 encoding, got %q", got)
	}
	if got := <-server.texts; got != "hello there" {
		t.Fatalf("expected text to be sent, got %q", got)
	}
	if output.chunks() != 2 {
		t.Fatalf("expected 2 audio chunks, got %d", output.chunks())
	}
	if len(output.marks) != 1 {
		t.Fatalf("expected a single end mark, got %v", output.marks)
	}
}

func TestStopSpeakingSilencesOutput(t *testing.T) {
	_, endpoint := newSpeakServer(t, true)
	output := &outputStub{}
	synthesizer, err := NewSynthesizer("key", output, WithEndpoint(endpoint))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	task, err := synthesizer.SpeakAsync(context.Background(), "a long story")
	if err != nil {
		t.Fatalf("expected dispatch to succeed, got %v", err)
	}

	deadline := time.After(2 * time.Second)
	for output.chunks() == 0 {
		select {
		case <-deadline:
			t.Fatalf("expected audio to arrive")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if err := synthesizer.StopSpeaking(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := waitTask(t, task); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected stopped task, got %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	played := output.chunks()
	if queued := output.queuedChunks(); queued != 0 {
		t.Fatalf("expected no audio queued after stop, got %d chunks", queued)
	}
	time.Sleep(30 * time.Millisecond)
	if output.chunks() != played {
		t.Fatalf("expected no audio after stop, got %d more chunks", output.chunks()-played)
	}
}

func TestStopSpeakingDoesNotWaitForBlockedWrite(t *testing.T) {
	_, endpoint := newSpeakServer(t, true)
	output := &gatedOutput{gate: make(chan struct{}), entered: make(chan struct{})}
	synthesizer, err := NewSynthesizer("key", output, WithEndpoint(endpoint))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	task, err := synthesizer.SpeakAsync(context.Background(), "a long story")
	if err != nil {
		t.Fatalf("expected dispatch to succeed, got %v", err)
	}
	select {
	case <-output.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected audio write to start")
	}

	stopped := make(chan error, 1)
	go func() { stopped <- synthesizer.StopSpeaking() }()
	select {
	case err := <-stopped:
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	case <-time.After(200 * time.Millisecond):
		close(output.gate)
		t.Fatalf("expected stop to return while the output write is blocked")
	}
	if err := waitTask(t, task); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected stopped task, got %v", err)
	}

	close(output.gate)
	deadline := time.After(2 * time.Second)
	for output.chunks() == 0 || output.queuedChunks() != 0 {
		select {
		case <-deadline:
			t.Fatalf("expected blocked chunk to be cleared once written, got %d queued", output.queuedChunks())
		case <-time.After(5 * time.Millisecond):
		}
	}
	played := output.chunks()
	time.Sleep(30 * time.Millisecond)
	if output.chunks() != played {
		t.Fatalf("expected no audio after stop, got %d more chunks", output.chunks()-played)
	}
}

func TestStopAfterMarkDropsCompletion(t *testing.T) {
	_, endpoint := newSpeakServer(t, false)
	output := &outputStub{holdMarks: true}
	synthesizer, err := NewSynthesizer("key", output, WithEndpoint(endpoint))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	task, _ := synthesizer.SpeakAsync(context.Background(), "hello")
	deadline := time.After(2 * time.Second)
	for {
		output.mu.Lock()
		marked := len(output.marks) > 0
		output.mu.Unlock()
		if marked {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected end mark")
		case <-time.After(5 * time.Millisecond):
		}
	}

	_ = synthesizer.StopSpeaking()
	if err := waitTask(t, task); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected stopped task, got %v", err)
	}
}

func TestContextCancelFinishesTask(t *testing.T) {
	_, endpoint := newSpeakServer(t, true)
	output := &outputStub{}
	synthesizer, err := NewSynthesizer("key", output, WithEndpoint(endpoint))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	task, _ := synthesizer.SpeakAsync(ctx, "a long story")
	cancel()

	if err := waitTask(t, task); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled task, got %v", err)
	}
}

func TestDialFailureFailsTask(t *testing.T) {
	output := &outputStub{}
	synthesizer, err := NewSynthesizer("key", output, WithEndpoint("ws://127.0.0.1:1/v1/speak"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	task, err := synthesizer.SpeakAsync(context.Background(), "hello")
	if err != nil {
		t.Fatalf("expected dispatch to succeed, got %v", err)
	}
	if err := waitTask(t, task); err == nil || errors.Is(err, ErrStopped) {
		t.Fatalf("expected dial error, got %v", err)
	}
}

func TestNewSynthesizerValidatesInput(t *testing.T) {
	if _, err := NewSynthesizer("", &outputStub{}); err == nil {
		t.Fatalf("expected missing key error")
	}
	if _, err := NewSynthesizer("key", nil); err == nil {
		t.Fatalf("expected missing output error")
	}
	if _, err := NewSynthesizer("key", &outputStub{}, WithSynthesisOptions(texttospeech.WithVoice("robot"))); err == nil {
		t.Fatalf("expected invalid voice error")
	}
	mulaw24k := audio.EncodingInfo{SampleRate: 24000, Format: audio.EncodingMulaw}
	if _, err := NewSynthesizer("key", &outputStub{}, WithSynthesisOptions(texttospeech.WithEncodingInfo(mulaw24k))); err == nil {
		t.Fatalf("expected unsupported encoding error")
	}
}
