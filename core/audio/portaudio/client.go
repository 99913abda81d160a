// Package portaudio plays and captures audio through a duplex PortAudio
// stream on the default devices.
package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-voice/core/audio"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

var logger = otelslog.NewLogger("github.com/koscakluka/ema-voice/core/audio/portaudio")

type Client struct {
	bufferSize int
	stream     *portaudio.Stream

	in  []int16
	out []int16

	// writeMu serializes blocking writes to the stream.
	writeMu sync.Mutex
	queue   frameQueue
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	in := make([]int16, bufferSize)
	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 1, audio.DefaultSampleRate, bufferSize, in, out)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to start portaudio stream: %w", err)
	}

	c := &Client{
		bufferSize: bufferSize,
		stream:     stream,
		in:         in,
		out:        out,
		queue:      frameQueue{frameSize: bufferSize * 2},
	}
	return c, nil
}

// Stream captures microphone audio into onAudio until ctx is canceled.
func (c *Client) Stream(ctx context.Context, onAudio func(audio []byte)) error {
	for ctx.Err() == nil {
		if err := c.stream.Read(); err != nil {
			logger.WarnContext(ctx, "failed to read from portaudio stream", "error", err)
			continue
		}

		audioBuffer := bytes.Buffer{}
		if err := binary.Write(&audioBuffer, binary.LittleEndian, c.in); err != nil {
			return fmt.Errorf("failed to encode captured audio: %w", err)
		}
		onAudio(audioBuffer.Bytes())
	}
	return nil
}

func (c *Client) Close() {
	_ = c.stream.Stop()
	_ = c.stream.Close()
	_ = portaudio.Terminate()
}

// SendAudio queues audio and writes every complete frame to the device.
func (c *Client) SendAudio(audio []byte) error {
	c.queue.push(audio)
	return c.drain()
}

// ClearBuffer drops audio and marks that were not written yet.
func (c *Client) ClearBuffer() {
	c.queue.clear()
}

// Mark calls callback once all audio queued before it was written to the
// device. A trailing partial frame is padded with silence and flushed first.
func (c *Client) Mark(name string, callback func(string)) error {
	c.queue.mark(name, callback)
	c.queue.pad()
	return c.drain()
}

func (c *Client) drain() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	for {
		frame, marks, ok := c.queue.pop()
		if ok {
			if err := binary.Read(bytes.NewReader(frame), binary.LittleEndian, c.out); err != nil {
				return fmt.Errorf("failed to decode audio frame: %w", err)
			}
			if err := c.stream.Write(); err != nil {
				return fmt.Errorf("failed to write to portaudio stream: %w", err)
			}
		}
		for _, mark := range marks {
			go mark.callback(mark.name)
		}
		if !ok {
			return nil
		}
	}
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{SampleRate: audio.DefaultSampleRate, Format: audio.EncodingLinear16}
}

type queuedMark struct {
	name     string
	position int
	callback func(string)
}

// frameQueue splits queued audio into device frames and tracks marks as byte
// positions in the queue.
type frameQueue struct {
	frameSize int

	mu    sync.Mutex
	audio []byte
	marks []queuedMark
}

func (q *frameQueue) push(audio []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.audio = append(q.audio, audio...)
}

func (q *frameQueue) mark(name string, callback func(string)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.marks = append(q.marks, queuedMark{name: name, position: len(q.audio), callback: callback})
}

// pad extends a trailing partial frame with silence.
func (q *frameQueue) pad() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if rest := len(q.audio) % q.frameSize; rest != 0 {
		q.audio = append(q.audio, make([]byte, q.frameSize-rest)...)
	}
}

func (q *frameQueue) clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.audio = nil
	q.marks = nil
}

// pop returns the next complete frame, if any, and the marks that are passed
// once it is written.
func (q *frameQueue) pop() (frame []byte, passed []queuedMark, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	if len(q.audio) >= q.frameSize {
		frame = q.audio[:q.frameSize:q.frameSize]
		q.audio = q.audio[q.frameSize:]
		n, ok = q.frameSize, true
	}

	remaining := q.marks[:0:0]
	for _, mark := range q.marks {
		if mark.position <= n {
			passed = append(passed, mark)
			continue
		}
		mark.position -= n
		remaining = append(remaining, mark)
	}
	q.marks = remaining
	return frame, passed, ok
}

// CaptureEncodingInfo describes the audio handed to Stream callbacks.
func (c *Client) CaptureEncodingInfo() audio.EncodingInfo {
	return c.EncodingInfo()
}
