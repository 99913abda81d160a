package main

import (
	"context"
	"fmt"

	orchestration "github.com/koscakluka/ema-voice/core"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/audio/miniaudio"
	"github.com/koscakluka/ema-voice/core/audio/portaudio"
	"github.com/koscakluka/ema-voice/core/llms"
	"github.com/koscakluka/ema-voice/core/llms/groq"
	"github.com/koscakluka/ema-voice/core/llms/openai"
	"github.com/koscakluka/ema-voice/core/safety"
	"github.com/koscakluka/ema-voice/core/speechtotext"
	sttdeepgram "github.com/koscakluka/ema-voice/core/speechtotext/deepgram"
	"github.com/koscakluka/ema-voice/core/texttospeech"
	ttsdeepgram "github.com/koscakluka/ema-voice/core/texttospeech/deepgram"
	"github.com/koscakluka/ema-voice/internal/config"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

var logger = otelslog.NewLogger("github.com/koscakluka/ema-voice/cmd/ema-voice")

const portaudioBufferSize = 1024

// audioDevice captures the microphone and plays synthesized speech.
type audioDevice interface {
	ttsdeepgram.AudioOutput
	CaptureEncodingInfo() audio.EncodingInfo
	Stream(ctx context.Context, onAudio func(audio []byte)) error
	Close()
}

func openAudioDevice(backend string) (audioDevice, error) {
	switch backend {
	case config.BackendPortaudio:
		device, err := portaudio.NewClient(portaudioBufferSize)
		if err != nil {
			return nil, fmt.Errorf("failed to open portaudio device: %w", err)
		}
		return device, nil
	default:
		device, err := miniaudio.NewClient()
		if err != nil {
			return nil, fmt.Errorf("failed to open miniaudio device: %w", err)
		}
		return device, nil
	}
}

type assistant struct {
	recognizer *sttdeepgram.Recognizer
	controller *orchestration.TurnController
	loop       *orchestration.RecognitionLoop
}

func newAssistant(cfg config.Config, device audioDevice, onEvent orchestration.EventHandler) (*assistant, error) {
	recognizer, err := sttdeepgram.NewRecognizer(cfg.Recognition.APIKey,
		sttdeepgram.WithRecognitionOptions(
			speechtotext.WithLanguage(cfg.Recognition.Language),
			speechtotext.WithModel(cfg.Recognition.Model),
			speechtotext.WithRegion(cfg.Recognition.Region),
			speechtotext.WithEncodingInfo(device.CaptureEncodingInfo()),
		))
	if err != nil {
		return nil, fmt.Errorf("failed to create recognizer: %w", err)
	}

	synthesizer, err := ttsdeepgram.NewSynthesizer(cfg.Synthesis.APIKey, device,
		ttsdeepgram.WithSynthesisOptions(
			texttospeech.WithVoice(cfg.Synthesis.Voice),
			texttospeech.WithRegion(cfg.Recognition.Region),
		))
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesizer: %w", err)
	}

	controllerOpts := []orchestration.ControllerOption{
		orchestration.WithSafetyGate(newSafetyGate(cfg)),
		orchestration.WithRefusalMessage(cfg.Safety.RefusalMessage),
		orchestration.WithFallbackMessage(cfg.Generation.FallbackMessage),
		orchestration.WithGenerationTimeout(cfg.Generation.Timeout),
		orchestration.WithInstructions(cfg.Generation.SystemPrompt),
		orchestration.WithHistoryLimit(cfg.Generation.HistoryTurns),
		orchestration.WithEventHandler(onEvent),
	}
	if len(cfg.Turns.StopCommands) > 0 {
		controllerOpts = append(controllerOpts, orchestration.WithStopCommands(cfg.Turns.StopCommands...))
	}
	controller := orchestration.NewTurnController(newGenerator(cfg), synthesizer, controllerOpts...)

	loop := orchestration.NewRecognitionLoop(recognizer, controller,
		orchestration.WithLoopEventHandler(onEvent),
		orchestration.WithRestartAttempts(cfg.Recognition.RestartAttempts),
	)

	return &assistant{recognizer: recognizer, controller: controller, loop: loop}, nil
}

func newGenerator(cfg config.Config) orchestration.Generator {
	generationOpts := []llms.GenerationOption{
		llms.WithModel(cfg.Generation.Model),
		llms.WithMaxTokens(cfg.Generation.MaxTokens),
		llms.WithTemperature(cfg.Generation.Temperature),
	}

	switch cfg.Generation.Provider {
	case config.ProviderGroq:
		return groq.NewClient(cfg.Generation.APIKey, groq.WithGenerationOptions(generationOpts...))
	default:
		return openai.NewClient(cfg.Generation.APIKey, openai.WithGenerationOptions(generationOpts...))
	}
}

func newSafetyGate(cfg config.Config) *safety.Gate {
	phrases := safety.DefaultPhrases()
	if len(cfg.Safety.BlockedPhrases) > 0 {
		phrases.Blocked = cfg.Safety.BlockedPhrases
	}
	if len(cfg.Safety.SensitivePhrases) > 0 {
		phrases.Sensitive = cfg.Safety.SensitivePhrases
	}
	if len(cfg.Safety.AllowedContext) > 0 {
		phrases.AllowedContext = cfg.Safety.AllowedContext
	}

	policy := safety.PolicyDefaultAllow
	if cfg.Safety.DefaultDeny {
		policy = safety.PolicyDefaultDeny
	}
	return safety.NewGate(phrases, safety.WithPolicy(policy))
}
