package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

type playbackClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig

	buffer playbackBuffer

	mu sync.Mutex
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext, sampleRate uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	c.config = malgo.DefaultDeviceConfig(malgo.Playback)
	c.config.SampleRate = sampleRate
	c.config.Playback.Format = format
	c.config.Playback.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	c.config.PeriodSizeInFrames = sampleRate / 10 // ~100ms of audio
	c.config.Periods = 4

	c.audioContext = audioContext

	var err error
	if c.device, err = malgo.InitDevice(
		c.audioContext.Context,
		c.config,
		malgo.DeviceCallbacks{Data: func(pOutput, _ []byte, frameCount uint32) {
			c.buffer.fill(pOutput, int(frameCount)*bytesPerFrame)
		}},
	); err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	return nil
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}
	return nil
}

func (c *playbackClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop playback device: %w", err)
	}

	c.buffer.clear()
	return nil
}

func (c *playbackClient) SendAudio(audio []byte) error {
	c.mu.Lock()
	started := c.device != nil && c.device.IsStarted()
	c.mu.Unlock()
	if !started {
		return fmt.Errorf("playback device not started")
	}

	c.buffer.write(audio)
	return nil
}

// ClearBuffer drops queued audio and pending marks. Nothing queued before the
// call is played afterwards.
func (c *playbackClient) ClearBuffer() {
	c.buffer.clear()
}

// Mark calls callback once all audio queued so far has been played.
func (c *playbackClient) Mark(mark string, callback func(string)) error {
	c.buffer.mark(mark, callback)
	return nil
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	c.device.Uninit()
	c.device = nil
	return nil
}

type playbackMark struct {
	name     string
	position int
	callback func(string)
}

// playbackBuffer queues audio for the device callback. Marks are positions in
// the queue; a mark fires once playback passes it.
type playbackBuffer struct {
	mu    sync.Mutex
	audio []byte
	marks []playbackMark
}

func (b *playbackBuffer) write(audio []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.audio = append(b.audio, audio...)
}

func (b *playbackBuffer) mark(name string, callback func(string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.marks = append(b.marks, playbackMark{name: name, position: len(b.audio), callback: callback})
}

func (b *playbackBuffer) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.audio = nil
	b.marks = nil
}

// fill copies up to need bytes into out, pads the rest with silence and
// returns the number of audio bytes copied. Passed marks are fired on their
// own goroutine so callbacks never run on the device thread.
func (b *playbackBuffer) fill(out []byte, need int) int {
	b.mu.Lock()
	n := copy(out[:min(need, len(out))], b.audio)
	b.audio = b.audio[n:]
	clear(out[n:min(need, len(out))])

	passed := 0
	for i := range b.marks {
		if b.marks[i].position <= n {
			passed++
			continue
		}
		b.marks[i].position -= n
	}
	toCall := b.marks[:passed:passed]
	b.marks = b.marks[passed:]
	b.mu.Unlock()

	if len(toCall) > 0 {
		go func() {
			for _, mark := range toCall {
				mark.callback(mark.name)
			}
		}()
	}
	return n
}
