package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/koscakluka/ema-voice/internal/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	envFile      string
	configFile   string
	metricsAddr  string
	audioBackend string
}

func newRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "ema-voice",
		Short: "Voice assistant with spoken barge-in",
		Long: `Voice assistant with spoken barge-in.

Listens on the default microphone, answers every recognized utterance with a
language model reply spoken on the default output device, and stops talking
when it hears "stop", "pause" or "shut up".

Credentials are read from the environment or a .env file:
  SPEECH_KEY       Deepgram key for recognition and synthesis
  SPEECH_REGION    Deepgram region, e.g. "eu" (optional)
  OPENAI_API_KEY   OpenAI key (GENERATION_PROVIDER=openai, default)
  GROQ_API_KEY     Groq key (GENERATION_PROVIDER=groq)`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.envFile, flags.configFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.Metrics.Address = flags.metricsAddr
			}
			if cmd.Flags().Changed("audio-backend") {
				cfg.Audio.Backend = flags.audioBackend
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&flags.envFile, "env-file", "", "dotenv file to load (default ./.env when present)")
	cmd.Flags().StringVarP(&flags.configFile, "config", "c", "", "config file (yaml, json or toml)")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on, e.g. :9090")
	cmd.Flags().StringVar(&flags.audioBackend, "audio-backend", config.BackendMiniaudio, "audio backend: miniaudio or portaudio")
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	console := newConsole(os.Stdout)

	device, err := openAudioDevice(cfg.Audio.Backend)
	if err != nil {
		return err
	}
	defer device.Close()

	assistant, err := newAssistant(cfg, device, console.Handle)
	if err != nil {
		return err
	}

	if cfg.Metrics.Address != "" {
		stopMetrics := serveMetrics(ctx, cfg.Metrics.Address)
		defer stopMetrics()
	}

	streamErr := make(chan error, 1)
	go func() {
		streamErr <- device.Stream(ctx, func(audio []byte) {
			if err := assistant.recognizer.SendAudio(audio); err != nil {
				logger.WarnContext(ctx, "failed to forward microphone audio", "error", err)
			}
		})
	}()

	console.Info("Listening. Say \"stop\" to interrupt, press Ctrl+C to quit.")
	runErr := assistant.loop.Run(ctx)
	assistant.controller.Shutdown()

	if err := <-streamErr; err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("microphone capture failed: %w", err))
	}
	return runErr
}

func serveMetrics(ctx context.Context, addr string) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "metrics server failed", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
}
