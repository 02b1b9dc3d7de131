// Package asr transcribes audio files through an ASR provider, including a
// re-decoding streaming mode that emits progressively longer transcripts.
package asr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agent-tools/modelkit/internal/audio"
	"github.com/agent-tools/modelkit/internal/providers"
)

// Options control a transcription.
type Options struct {
	Language string   // Defaults to DefaultLanguage
	Hotwords []string // Terms to bias recognition toward
	ITN      bool     // Inverse text normalization (numbers, dates)
}

func (o Options) language() string {
	if o.Language == "" {
		return DefaultLanguage
	}
	return o.Language
}

// Transcript is a detailed transcription result.
type Transcript struct {
	Text       string        `json:"text"`
	Language   string        `json:"language"`
	Duration   time.Duration `json:"duration"`
	SampleRate int           `json:"sample_rate,omitempty"`
}

// Config configures a Service.
type Config struct {
	Provider providers.ASRProvider
	Logger   *slog.Logger
}

// Service transcribes through one provider.
type Service struct {
	provider providers.ASRProvider
	logger   *slog.Logger
}

// NewService creates a service for cfg.Provider.
func NewService(cfg Config) (*Service, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("asr provider is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		provider: cfg.Provider,
		logger:   logger.With("provider", cfg.Provider.Name()),
	}, nil
}

// Transcribe returns the text of the audio file at path.
func (s *Service) Transcribe(ctx context.Context, path string, opts Options) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}
	result, err := s.call(ctx, &providers.ASRRequest{AudioPath: path}, opts)
	if err != nil {
		return "", err
	}
	if err := s.requireText(result); err != nil {
		return "", err
	}
	return result.Text, nil
}

// TranscribeMany transcribes each file in order. The first failure aborts.
func (s *Service) TranscribeMany(ctx context.Context, paths []string, opts Options) ([]string, error) {
	texts := make([]string, 0, len(paths))
	for _, path := range paths {
		text, err := s.Transcribe(ctx, path, opts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		texts = append(texts, text)
	}
	return texts, nil
}

// TranscribeFile returns the text together with the audio's duration and
// sample rate.
func (s *Service) TranscribeFile(ctx context.Context, path string, opts Options) (*Transcript, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	result, err := s.call(ctx, &providers.ASRRequest{AudioPath: path}, opts)
	if err != nil {
		return nil, err
	}
	if err := s.requireText(result); err != nil {
		return nil, err
	}

	t := &Transcript{
		Text:     result.Text,
		Language: result.Language,
		Duration: result.Duration,
	}
	if t.Language == "" {
		t.Language = opts.language()
	}
	if clip, err := audio.ReadWAV(path); err == nil {
		t.SampleRate = clip.SampleRate
		if t.Duration == 0 {
			t.Duration = clip.Duration()
		}
	} else if t.Duration == 0 {
		if d, err := audio.ProbeDuration(ctx, path); err == nil {
			t.Duration = d
		} else {
			s.logger.Debug("could not determine audio duration", "path", path, "error", err)
		}
	}
	return t, nil
}

// call fills the shared request fields and runs the provider with retries.
func (s *Service) call(ctx context.Context, req *providers.ASRRequest, opts Options) (*providers.ASRResult, error) {
	req.Language = opts.language()
	req.Hotwords = opts.Hotwords
	req.ITN = opts.ITN
	req.RequestID = uuid.NewString()

	logger := s.logger.With("request_id", req.RequestID)
	start := time.Now()
	result, err := providers.Call(ctx, s.provider, logger, func(ctx context.Context) (*providers.ASRResult, error) {
		return s.provider.Transcribe(ctx, req)
	})
	if err != nil {
		logger.Error("transcription failed", "duration", time.Since(start), "error", err)
		return nil, fmt.Errorf("asr %s: %w", s.provider.Name(), err)
	}
	if result == nil {
		return nil, fmt.Errorf("asr %s: %w", s.provider.Name(), providers.ErrEmptyResult)
	}
	logger.Info("transcription complete", "duration", time.Since(start), "chars", len([]rune(result.Text)))
	return result, nil
}

func (s *Service) requireText(result *providers.ASRResult) error {
	if strings.TrimSpace(result.Text) == "" {
		return fmt.Errorf("asr %s: %w", s.provider.Name(), providers.ErrEmptyResult)
	}
	return nil
}
