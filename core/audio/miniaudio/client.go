// Package miniaudio plays and captures audio through the default devices
// using miniaudio.
package miniaudio

import (
	"context"
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-voice/core/audio"
)

const (
	playbackSampleRate = 24000
	captureSampleRate  = audio.DefaultSampleRate
)

type Client struct {
	// audioContext is only kept so it can be released in Close.
	audioContext *malgo.AllocatedContext
	playbackClient
	captureClient
}

func NewClient() (*Client, error) {
	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("malgo", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	client := Client{audioContext: audioCtx}

	if err := client.playbackClient.Init(audioCtx, playbackSampleRate); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback client: %w", err)
	}
	if err := client.playbackClient.Start(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	if err := client.captureClient.Init(audioCtx, captureSampleRate); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize capture client: %w", err)
	}

	return &client, nil
}

// Stream captures microphone audio into onAudio until ctx is canceled.
func (c *Client) Stream(ctx context.Context, onAudio func(audio []byte)) error {
	if err := c.captureClient.Start(onAudio); err != nil {
		return err
	}
	<-ctx.Done()
	return c.captureClient.Stop()
}

func (c *Client) Close() {
	_ = c.captureClient.Uninit()
	_ = c.playbackClient.Uninit()
	_ = c.audioContext.Uninit()
	c.audioContext.Free()
}

// EncodingInfo describes the playback format.
func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{SampleRate: playbackSampleRate, Format: audio.EncodingLinear16}
}

// CaptureEncodingInfo describes the audio handed to Stream callbacks.
func (c *Client) CaptureEncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{SampleRate: captureSampleRate, Format: audio.EncodingLinear16}
}
