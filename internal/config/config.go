// Package config loads the assistant configuration from the environment, an
// optional .env file and an optional config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/koscakluka/ema-voice/core/llms"
	"github.com/koscakluka/ema-voice/core/speechtotext"
	"github.com/koscakluka/ema-voice/core/texttospeech/deepgram"
	"github.com/spf13/viper"
)

const (
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"

	BackendMiniaudio = "miniaudio"
	BackendPortaudio = "portaudio"
)

type Config struct {
	Recognition struct {
		APIKey          string
		Region          string
		Language        string
		Model           string
		RestartAttempts uint
	}
	Synthesis struct {
		APIKey string
		Voice  string
	}
	Generation struct {
		Provider        string
		APIKey          string
		Model           string
		MaxTokens       int
		Temperature     float64
		Timeout         time.Duration
		SystemPrompt    string
		FallbackMessage string
		HistoryTurns    int
	}
	Safety struct {
		// Empty phrase lists fall back to the built-in lists.
		BlockedPhrases   []string
		SensitivePhrases []string
		AllowedContext   []string
		DefaultDeny      bool
		RefusalMessage   string
	}
	Turns struct {
		StopCommands []string
	}
	Audio struct {
		Backend string
	}
	Metrics struct {
		// Address is where /metrics is served. Empty disables it.
		Address string
	}
}

var envBindings = map[string][]string{
	"recognition.api_key":          {"SPEECH_KEY", "DEEPGRAM_API_KEY"},
	"recognition.region":           {"SPEECH_REGION"},
	"recognition.language":         {"SPEECH_LANGUAGE"},
	"recognition.model":            {"SPEECH_MODEL"},
	"recognition.restart_attempts": {"RECOGNITION_RESTART_ATTEMPTS"},

	"synthesis.api_key": {"SYNTHESIS_API_KEY"},
	"synthesis.voice":   {"SPEECH_VOICE"},

	"generation.provider":         {"GENERATION_PROVIDER"},
	"generation.api_key":          {"GENERATION_API_KEY"},
	"generation.openai_api_key":   {"OPENAI_API_KEY"},
	"generation.groq_api_key":     {"GROQ_API_KEY"},
	"generation.model":            {"GENERATION_MODEL"},
	"generation.max_tokens":       {"GENERATION_MAX_TOKENS"},
	"generation.temperature":      {"GENERATION_TEMPERATURE"},
	"generation.timeout":          {"GENERATION_TIMEOUT"},
	"generation.system_prompt":    {"SYSTEM_PROMPT"},
	"generation.fallback_message": {"FALLBACK_MESSAGE"},
	"generation.history_turns":    {"HISTORY_TURNS"},

	"safety.blocked_phrases":   {"SAFETY_BLOCKED_PHRASES"},
	"safety.sensitive_phrases": {"SAFETY_SENSITIVE_PHRASES"},
	"safety.allowed_context":   {"SAFETY_ALLOWED_CONTEXT"},
	"safety.default_deny":      {"SAFETY_DEFAULT_DENY"},
	"safety.refusal_message":   {"SAFETY_REFUSAL_MESSAGE"},

	"turns.stop_commands": {"STOP_COMMANDS"},
	"audio.backend":       {"AUDIO_BACKEND"},
	"metrics.address":     {"METRICS_ADDR"},
}

// Load reads envFile (or ./.env when empty and present) into the environment,
// then resolves configuration from the environment, configFile and defaults,
// in that order of precedence.
func Load(envFile, configFile string) (Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("recognition.language", speechtotext.DefaultLanguage)
	v.SetDefault("recognition.model", speechtotext.DefaultModel)
	v.SetDefault("recognition.restart_attempts", 5)
	v.SetDefault("synthesis.voice", deepgram.DefaultVoice)
	v.SetDefault("generation.provider", ProviderOpenAI)
	v.SetDefault("generation.max_tokens", llms.DefaultMaxTokens)
	v.SetDefault("generation.temperature", llms.DefaultTemperature)
	v.SetDefault("generation.timeout", 30*time.Second)
	v.SetDefault("generation.history_turns", 10)
	v.SetDefault("audio.backend", BackendMiniaudio)

	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return Config{}, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var c Config
	c.Recognition.APIKey = v.GetString("recognition.api_key")
	c.Recognition.Region = v.GetString("recognition.region")
	c.Recognition.Language = v.GetString("recognition.language")
	c.Recognition.Model = v.GetString("recognition.model")
	c.Recognition.RestartAttempts = v.GetUint("recognition.restart_attempts")

	c.Synthesis.APIKey = v.GetString("synthesis.api_key")
	if c.Synthesis.APIKey == "" {
		c.Synthesis.APIKey = c.Recognition.APIKey
	}
	c.Synthesis.Voice = v.GetString("synthesis.voice")

	c.Generation.Provider = strings.ToLower(v.GetString("generation.provider"))
	c.Generation.APIKey = v.GetString("generation.api_key")
	if c.Generation.APIKey == "" {
		switch c.Generation.Provider {
		case ProviderOpenAI:
			c.Generation.APIKey = v.GetString("generation.openai_api_key")
		case ProviderGroq:
			c.Generation.APIKey = v.GetString("generation.groq_api_key")
		}
	}
	c.Generation.Model = v.GetString("generation.model")
	c.Generation.MaxTokens = v.GetInt("generation.max_tokens")
	c.Generation.Temperature = v.GetFloat64("generation.temperature")
	c.Generation.Timeout = v.GetDuration("generation.timeout")
	c.Generation.SystemPrompt = v.GetString("generation.system_prompt")
	c.Generation.FallbackMessage = v.GetString("generation.fallback_message")
	c.Generation.HistoryTurns = v.GetInt("generation.history_turns")

	c.Safety.BlockedPhrases = getList(v, "safety.blocked_phrases")
	c.Safety.SensitivePhrases = getList(v, "safety.sensitive_phrases")
	c.Safety.AllowedContext = getList(v, "safety.allowed_context")
	c.Safety.DefaultDeny = v.GetBool("safety.default_deny")
	c.Safety.RefusalMessage = v.GetString("safety.refusal_message")

	c.Turns.StopCommands = getList(v, "turns.stop_commands")
	c.Audio.Backend = strings.ToLower(v.GetString("audio.backend"))
	c.Metrics.Address = v.GetString("metrics.address")

	return c, nil
}

// Validate reports every missing credential and unsupported setting.
func (c Config) Validate() error {
	var errs []error
	if c.Recognition.APIKey == "" {
		errs = append(errs, errors.New("speech key not set (SPEECH_KEY or DEEPGRAM_API_KEY)"))
	}
	switch c.Generation.Provider {
	case ProviderOpenAI, ProviderGroq:
		if c.Generation.APIKey == "" {
			errs = append(errs, fmt.Errorf("%s api key not set", c.Generation.Provider))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown generation provider %q", c.Generation.Provider))
	}
	if c.Generation.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("max tokens must be positive, got %d", c.Generation.MaxTokens))
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be between 0 and 2, got %v", c.Generation.Temperature))
	}
	switch c.Audio.Backend {
	case BackendMiniaudio, BackendPortaudio:
	default:
		errs = append(errs, fmt.Errorf("unknown audio backend %q", c.Audio.Backend))
	}
	return errors.Join(errs...)
}

func loadEnvFile(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
		return nil
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// getList reads a list given either as a config file list or as a comma
// separated string.
func getList(v *viper.Viper, key string) []string {
	var items []string
	if raw, ok := v.Get(key).(string); ok {
		items = strings.Split(raw, ",")
	} else {
		items = v.GetStringSlice(key)
	}

	list := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	if len(list) == 0 {
		return nil
	}
	return list
}
