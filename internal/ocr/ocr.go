// Package ocr sends page images to an OCR provider and returns the model's
// annotated text. Cleaning and formatting live in the markup package.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agent-tools/modelkit/internal/providers"
)

// Options control a single recognition.
type Options struct {
	PromptType PromptType // Preset; ignored when Prompt is set
	Prompt     string     // Custom prompt
	Mode       Mode       // Resolution preset; empty means base
}

// resolvedPrompt applies the custom-over-preset rule.
func (o Options) resolvedPrompt() string {
	if p := strings.TrimSpace(o.Prompt); p != "" {
		return o.Prompt
	}
	return Prompt(o.PromptType)
}

// Config configures a Service.
type Config struct {
	Provider providers.OCRProvider
	Logger   *slog.Logger
	Workers  int // Concurrent pages for PDFs; default 4
}

// Service recognizes images through one provider.
type Service struct {
	provider providers.OCRProvider
	limiter  *providers.RateLimiter
	logger   *slog.Logger
	workers  int
}

// NewService creates a service for cfg.Provider.
func NewService(cfg Config) (*Service, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("ocr provider is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Service{
		provider: cfg.Provider,
		limiter:  providers.NewRateLimiter(cfg.Provider.RequestsPerSecond()),
		logger:   logger.With("provider", cfg.Provider.Name()),
		workers:  workers,
	}, nil
}

// Provider returns the backing provider.
func (s *Service) Provider() providers.OCRProvider {
	return s.provider
}

// RateLimiterStatus reports the provider limiter state.
func (s *Service) RateLimiterStatus() providers.RateLimiterStatus {
	return s.limiter.Status()
}

// Recognize reads the image at path and returns the model's raw annotated
// output. A missing file yields an error wrapping fs.ErrNotExist.
func (s *Service) Recognize(ctx context.Context, path string, opts Options) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	return s.RecognizeImage(ctx, data, 0, opts)
}

// RecognizeImage runs OCR on encoded image bytes. pageNum is informational.
func (s *Service) RecognizeImage(ctx context.Context, data []byte, pageNum int, opts Options) (string, error) {
	mode := opts.Mode
	if mode == "" {
		mode = ModeBase
	}
	img, err := PrepareImage(data, mode.Size())
	if err != nil {
		return "", err
	}

	req := &providers.OCRRequest{
		Prompt:    opts.resolvedPrompt(),
		PageNum:   pageNum,
		RequestID: uuid.NewString(),
	}
	logger := s.logger.With("request_id", req.RequestID)
	if pageNum > 0 {
		logger = logger.With("page", pageNum)
	}

	start := time.Now()
	result, err := providers.Call(ctx, s.provider, logger, func(ctx context.Context) (*providers.OCRResult, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		res, err := s.provider.ProcessImage(ctx, img, req)
		if rle, ok := providers.IsRateLimitError(err); ok {
			s.limiter.Record429(rle.RetryAfter)
		}
		return res, err
	})
	if err != nil {
		logger.Error("ocr failed", "duration", time.Since(start), "error", err)
		return "", fmt.Errorf("ocr %s: %w", s.provider.Name(), err)
	}
	if result == nil || strings.TrimSpace(result.Text) == "" {
		return "", fmt.Errorf("ocr %s: %w", s.provider.Name(), providers.ErrEmptyResult)
	}

	logger.Info("ocr complete",
		"duration", time.Since(start),
		"chars", len(result.Text),
		"prompt_tokens", result.PromptTokens,
		"completion_tokens", result.CompletionTokens)
	return result.Text, nil
}
