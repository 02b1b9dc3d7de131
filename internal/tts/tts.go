// Package tts synthesizes speech through a TTS provider, either in one
// request or sentence by sentence for streaming playback.
package tts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agent-tools/modelkit/internal/audio"
	"github.com/agent-tools/modelkit/internal/providers"
)

// SpeakRequest describes one synthesis.
type SpeakRequest struct {
	Text       string
	Speaker    string // Defaults to the service speaker
	Language   string // Defaults to the service language
	Instruct   string // Style instruction, e.g. "用愤怒的语气说"
	Format     string // Provider default when empty
	OutputPath string // Written when set
}

// Speech is a synthesized utterance.
type Speech struct {
	Audio      []byte        `json:"-"`
	Format     string        `json:"format"`
	SampleRate int           `json:"sample_rate,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	CharCount  int           `json:"char_count"`
	OutputPath string        `json:"output_path,omitempty"`
}

// Config configures a Service.
type Config struct {
	Provider providers.TTSProvider
	Logger   *slog.Logger
	Speaker  string
	Language string
}

// Service synthesizes through one provider.
type Service struct {
	provider providers.TTSProvider
	logger   *slog.Logger
	speaker  string
	language string
}

// NewService creates a service for cfg.Provider.
func NewService(cfg Config) (*Service, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("tts provider is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Speaker == "" {
		cfg.Speaker = DefaultSpeaker
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	return &Service{
		provider: cfg.Provider,
		logger:   logger.With("provider", cfg.Provider.Name()),
		speaker:  cfg.Speaker,
		language: cfg.Language,
	}, nil
}

// Speak synthesizes req.Text and writes it to req.OutputPath when set.
func (s *Service) Speak(ctx context.Context, req SpeakRequest) (*Speech, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: text is required", providers.ErrInvalidRequest)
	}
	result, err := s.generate(ctx, req, req.Text)
	if err != nil {
		return nil, err
	}

	speech := speechFrom(result)
	if req.OutputPath != "" {
		if err := os.WriteFile(req.OutputPath, result.Audio, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", req.OutputPath, err)
		}
		speech.OutputPath = req.OutputPath
		if speech.Duration == 0 {
			if d, err := audio.ProbeDuration(ctx, req.OutputPath); err == nil {
				speech.Duration = d
			}
		}
	}
	return speech, nil
}

// SpeakWithEmotion is Speak with the instruction derived from emotion.
func (s *Service) SpeakWithEmotion(ctx context.Context, req SpeakRequest, emotion string) (*Speech, error) {
	req.Instruct = EmotionInstruction(emotion)
	return s.Speak(ctx, req)
}

func (s *Service) generate(ctx context.Context, req SpeakRequest, text string) (*providers.TTSResult, error) {
	preq := &providers.TTSRequest{
		Text:         text,
		Voice:        firstNonEmpty(req.Speaker, s.speaker),
		Language:     firstNonEmpty(req.Language, s.language),
		Instructions: req.Instruct,
		Format:       req.Format,
		RequestID:    uuid.NewString(),
	}
	logger := s.logger.With("request_id", preq.RequestID, "voice", preq.Voice)

	start := time.Now()
	result, err := providers.Call(ctx, s.provider, logger, func(ctx context.Context) (*providers.TTSResult, error) {
		return s.provider.Generate(ctx, preq)
	})
	if err != nil {
		logger.Error("synthesis failed", "duration", time.Since(start), "error", err)
		return nil, fmt.Errorf("tts %s: %w", s.provider.Name(), err)
	}
	if result == nil || len(result.Audio) == 0 {
		return nil, fmt.Errorf("tts %s: %w", s.provider.Name(), providers.ErrEmptyResult)
	}
	logger.Info("synthesis complete",
		"duration", time.Since(start),
		"chars", result.CharCount,
		"bytes", len(result.Audio))
	return result, nil
}

func speechFrom(result *providers.TTSResult) *Speech {
	speech := &Speech{
		Audio:      result.Audio,
		Format:     result.Format,
		SampleRate: result.SampleRate,
		Duration:   time.Duration(result.DurationMS) * time.Millisecond,
		CharCount:  result.CharCount,
	}
	if audio.IsWAV(result.Audio) {
		if clip, err := audio.DecodeWAVBytes(result.Audio); err == nil {
			speech.SampleRate = clip.SampleRate
			speech.Duration = clip.Duration()
		}
	}
	return speech
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
