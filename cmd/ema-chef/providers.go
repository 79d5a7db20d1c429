package main

import (
	"context"
	"fmt"

	orchestration "github.com/koscakluka/ema-chef/core"
	"github.com/koscakluka/ema-chef/core/contextwindow"
	"github.com/koscakluka/ema-chef/core/frames"
	"github.com/koscakluka/ema-chef/core/llms"
	"github.com/koscakluka/ema-chef/core/llms/anthropic"
	"github.com/koscakluka/ema-chef/core/llms/groq"
	"github.com/koscakluka/ema-chef/core/profiles"
	"github.com/koscakluka/ema-chef/core/recipelinks"
	sttdeepgram "github.com/koscakluka/ema-chef/core/speechtotext/deepgram"
	"github.com/koscakluka/ema-chef/core/texttospeech"
	ttsdeepgram "github.com/koscakluka/ema-chef/core/texttospeech/deepgram"
	"github.com/koscakluka/ema-chef/core/texttospeech/elevenlabs"
	"github.com/koscakluka/ema-chef/internal/config"
)

type model interface {
	llms.Reasoner
	llms.Summarizer
}

// stack holds what sessions share. Speech clients keep per stream state and
// are built for every session.
type stack struct {
	cfg   config.Config
	model model
	store profiles.Store
	links *recipelinks.Resolver
	close func()
}

func newStack(ctx context.Context, cfg config.Config) (*stack, error) {
	s := &stack{cfg: cfg, close: func() {}}

	var searcher *anthropic.Client
	if cfg.AnthropicAPIKey != "" {
		searcher = anthropic.NewClient(cfg.AnthropicAPIKey,
			anthropic.WithModel(valueOr(cfg.LLM.Model, anthropic.DefaultModel)),
			anthropic.WithFastModel(valueOr(cfg.LLM.FastModel, anthropic.DefaultFastModel)),
		)
	}

	switch cfg.LLM.Provider {
	case config.LLMProviderGroq:
		s.model = groq.NewClient(cfg.GroqAPIKey,
			groq.WithModel(valueOr(cfg.LLM.Model, groq.DefaultModel)),
			groq.WithSummaryModel(valueOr(cfg.LLM.FastModel, groq.DefaultSummaryModel)),
		)
	default:
		s.model = searcher
	}

	if cfg.LLM.TutorialSearch && searcher != nil {
		s.links = recipelinks.NewResolver(searcher, recipelinks.NewPreviewFetcher())
	}

	switch cfg.Storage.Backend {
	case config.StorageRedis:
		client, err := profiles.NewRedisClient(ctx, cfg.Storage.RedisURL)
		if err != nil {
			return nil, err
		}
		s.store = profiles.NewRedisStore(client)
		s.close = func() { _ = client.Close() }
	default:
		s.store = profiles.NewFileStore(cfg.Storage.ProfileDir)
	}

	if _, err := s.newSynthesizer(); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *stack) newSynthesizer() (texttospeech.Synthesizer, error) {
	switch s.cfg.TTS.Provider {
	case config.TTSProviderElevenLabs:
		return elevenlabs.NewClient(s.cfg.ElevenLabsAPIKey, elevenlabs.WithVoiceID(s.cfg.TTS.Voice))
	default:
		voice, ok := ttsdeepgram.ParseVoice(s.cfg.TTS.Voice)
		if !ok {
			return nil, fmt.Errorf("unknown deepgram voice %q", s.cfg.TTS.Voice)
		}
		return ttsdeepgram.NewTextToSpeechClient(s.cfg.DeepgramAPIKey, ttsdeepgram.WithVoice(voice))
	}
}

func (s *stack) samplerOptions() []frames.SamplerOption {
	return []frames.SamplerOption{
		frames.WithCapacity(s.cfg.Frames.Capacity),
		frames.WithInterval(s.cfg.Frames.Interval),
		frames.WithEncoder(frames.Encoder{
			Resolution: s.cfg.Frames.Resolution,
			Quality:    s.cfg.Frames.JPEGQuality,
		}),
	}
}

// sessionFactory builds orchestrators wired to the shared stack. Transport
// options come last so they win.
func (s *stack) sessionFactory() orchestration.SessionFactory {
	return func(userID string, opts ...orchestration.OrchestratorOption) *orchestration.Orchestrator {
		base := []orchestration.OrchestratorOption{
			orchestration.WithReasoner(s.model),
			orchestration.WithSummarizer(s.model),
			orchestration.WithSpeechAttempts(s.cfg.TTS.Attempts),
			orchestration.WithProfileStore(s.store, userID),
			orchestration.WithContextOptions(
				contextwindow.WithSoftThreshold(s.cfg.Context.SoftThreshold),
				contextwindow.WithHardCeiling(s.cfg.Context.HardCeiling),
				contextwindow.WithKeepRecent(s.cfg.Context.KeepRecent),
			),
		}
		if s.links != nil {
			base = append(base, orchestration.WithRecipeLinks(s.links))
		}

		if transcriber, err := sttdeepgram.NewTranscriptionClient(s.cfg.DeepgramAPIKey); err != nil {
			logger.Error("failed to create speech to text client", "error", err)
		} else {
			base = append(base, orchestration.WithSpeechToTextClient(transcriber))
		}
		if synthesizer, err := s.newSynthesizer(); err != nil {
			logger.Error("failed to create text to speech client", "error", err)
		} else {
			base = append(base, orchestration.WithTextToSpeechClient(synthesizer))
		}

		return orchestration.NewOrchestrator(append(base, opts...)...)
	}
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
