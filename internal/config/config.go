// Package config reads the service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	LLMProviderAnthropic = "anthropic"
	LLMProviderGroq      = "groq"

	TTSProviderDeepgram   = "deepgram"
	TTSProviderElevenLabs = "elevenlabs"

	StorageFile  = "file"
	StorageRedis = "redis"
)

type Config struct {
	ListenAddr     string   `env:"LISTEN_ADDR" envDefault:":8080"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	AnthropicAPIKey  string `env:"ANTHROPIC_API_KEY"`
	GroqAPIKey       string `env:"GROQ_API_KEY"`
	DeepgramAPIKey   string `env:"DEEPGRAM_API_KEY"`
	ElevenLabsAPIKey string `env:"ELEVENLABS_API_KEY"`

	LLM     LLMConfig
	TTS     TTSConfig
	Storage StorageConfig
	Context ContextConfig
	Frames  FramesConfig
}

type LLMConfig struct {
	Provider  string `env:"LLM_PROVIDER" envDefault:"anthropic"`
	Model     string `env:"LLM_MODEL"`
	FastModel string `env:"LLM_FAST_MODEL"`
	// TutorialSearch turns on tutorial lookup for started recipes. It needs
	// the anthropic key even when another provider reasons.
	TutorialSearch bool `env:"TUTORIAL_SEARCH" envDefault:"true"`
}

type TTSConfig struct {
	Provider string `env:"TTS_PROVIDER" envDefault:"deepgram"`
	Voice    string `env:"TTS_VOICE"`
	Attempts int    `env:"TTS_ATTEMPTS" envDefault:"3"`
}

type StorageConfig struct {
	Backend    string `env:"STORAGE_BACKEND" envDefault:"file"`
	RedisURL   string `env:"REDIS_URL"`
	ProfileDir string `env:"PROFILE_DIR" envDefault:"data/profiles"`
}

type ContextConfig struct {
	SoftThreshold int `env:"CONTEXT_SOFT_THRESHOLD" envDefault:"24"`
	HardCeiling   int `env:"CONTEXT_HARD_CEILING" envDefault:"40"`
	KeepRecent    int `env:"CONTEXT_KEEP_RECENT" envDefault:"8"`
}

type FramesConfig struct {
	Capacity    int           `env:"FRAME_CAPACITY" envDefault:"3"`
	Interval    time.Duration `env:"FRAME_INTERVAL" envDefault:"500ms"`
	Resolution  int           `env:"FRAME_RESOLUTION" envDefault:"1024"`
	JPEGQuality int           `env:"FRAME_JPEG_QUALITY" envDefault:"75"`
}

// Load parses the environment and checks that the selected providers have
// what they need.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.LLM.Provider {
	case LLMProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for llm provider %q", c.LLM.Provider)
		}
	case LLMProviderGroq:
		if c.GroqAPIKey == "" {
			return fmt.Errorf("GROQ_API_KEY is required for llm provider %q", c.LLM.Provider)
		}
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}

	switch c.TTS.Provider {
	case TTSProviderDeepgram:
	case TTSProviderElevenLabs:
		if c.ElevenLabsAPIKey == "" {
			return fmt.Errorf("ELEVENLABS_API_KEY is required for tts provider %q", c.TTS.Provider)
		}
	default:
		return fmt.Errorf("unknown tts provider %q", c.TTS.Provider)
	}
	if c.DeepgramAPIKey == "" {
		return fmt.Errorf("DEEPGRAM_API_KEY is required")
	}

	switch c.Storage.Backend {
	case StorageFile:
		if c.Storage.ProfileDir == "" {
			return fmt.Errorf("PROFILE_DIR is required for file storage")
		}
	case StorageRedis:
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for redis storage")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if c.Context.KeepRecent <= 0 || c.Context.SoftThreshold <= c.Context.KeepRecent {
		return fmt.Errorf("context soft threshold %d must exceed keep recent %d",
			c.Context.SoftThreshold, c.Context.KeepRecent)
	}
	if c.Context.HardCeiling < c.Context.SoftThreshold {
		return fmt.Errorf("context hard ceiling %d is below soft threshold %d",
			c.Context.HardCeiling, c.Context.SoftThreshold)
	}
	if c.TTS.Attempts < 1 {
		return fmt.Errorf("TTS_ATTEMPTS must be at least 1")
	}
	return nil
}
