package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("DEEPGRAM_API_KEY", "dg")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, LLMProviderAnthropic, cfg.LLM.Provider)
	assert.Equal(t, TTSProviderDeepgram, cfg.TTS.Provider)
	assert.Equal(t, 3, cfg.TTS.Attempts)
	assert.Equal(t, StorageFile, cfg.Storage.Backend)
	assert.Equal(t, ContextConfig{SoftThreshold: 24, HardCeiling: 40, KeepRecent: 8}, cfg.Context)
	assert.Equal(t, FramesConfig{Capacity: 3, Interval: 500 * time.Millisecond, Resolution: 1024, JPEGQuality: 75}, cfg.Frames)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk")
	t.Setenv("DEEPGRAM_API_KEY", "dg")
	t.Setenv("ELEVENLABS_API_KEY", "el")
	t.Setenv("LLM_PROVIDER", "groq")
	t.Setenv("TTS_PROVIDER", "elevenlabs")
	t.Setenv("STORAGE_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("ALLOWED_ORIGINS", "https://kitchen.example,https://app.example")
	t.Setenv("FRAME_INTERVAL", "1s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, LLMProviderGroq, cfg.LLM.Provider)
	assert.Equal(t, TTSProviderElevenLabs, cfg.TTS.Provider)
	assert.Equal(t, "redis://localhost:6379", cfg.Storage.RedisURL)
	assert.Equal(t, []string{"https://kitchen.example", "https://app.example"}, cfg.AllowedOrigins)
	assert.Equal(t, time.Second, cfg.Frames.Interval)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			AnthropicAPIKey: "sk-ant",
			DeepgramAPIKey:  "dg",
			LLM:             LLMConfig{Provider: LLMProviderAnthropic},
			TTS:             TTSConfig{Provider: TTSProviderDeepgram, Attempts: 3},
			Storage:         StorageConfig{Backend: StorageFile, ProfileDir: "profiles"},
			Context:         ContextConfig{SoftThreshold: 24, HardCeiling: 40, KeepRecent: 8},
		}
	}
	require.NoError(t, valid().Validate())

	tests := map[string]func(*Config){
		"missing anthropic key":  func(c *Config) { c.AnthropicAPIKey = "" },
		"missing groq key":       func(c *Config) { c.LLM.Provider = LLMProviderGroq },
		"unknown llm provider":   func(c *Config) { c.LLM.Provider = "parrot" },
		"missing elevenlabs key": func(c *Config) { c.TTS.Provider = TTSProviderElevenLabs },
		"unknown tts provider":   func(c *Config) { c.TTS.Provider = "kazoo" },
		"missing deepgram key":   func(c *Config) { c.DeepgramAPIKey = "" },
		"missing redis url":      func(c *Config) { c.Storage.Backend = StorageRedis },
		"unknown storage":        func(c *Config) { c.Storage.Backend = "tape" },
		"keep exceeds soft":      func(c *Config) { c.Context.KeepRecent = 30 },
		"ceiling below soft":     func(c *Config) { c.Context.HardCeiling = 10 },
		"no tts attempts":        func(c *Config) { c.TTS.Attempts = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
