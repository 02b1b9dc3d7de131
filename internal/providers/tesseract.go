//go:build tesseract

package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/otiai10/gosseract/v2"
)

// TesseractClient implements OCRProvider with a local Tesseract engine.
// It needs libtesseract at build time and the "tesseract" build tag.
type TesseractClient struct {
	languages string
	mu        sync.Mutex
}

// NewTesseractClient creates a local OCR provider.
func NewTesseractClient(cfg TesseractConfig) (*TesseractClient, error) {
	if cfg.Languages == "" {
		cfg.Languages = "eng"
	}
	return &TesseractClient{languages: cfg.Languages}, nil
}

func (c *TesseractClient) Name() string                  { return TesseractName }
func (c *TesseractClient) RequestsPerSecond() float64    { return 0 }
func (c *TesseractClient) MaxRetries() int               { return 0 }
func (c *TesseractClient) RetryDelayBase() time.Duration { return 0 }

// ProcessImage recognizes plain text. The prompt is ignored.
func (c *TesseractClient) ProcessImage(ctx context.Context, image []byte, req *OCRRequest) (*OCRResult, error) {
	start := time.Now()
	fail := func(err error) (*OCRResult, error) {
		return &OCRResult{ErrorMessage: err.Error(), ExecutionTime: time.Since(start)}, err
	}
	if len(image) == 0 {
		return fail(fmt.Errorf("%w: image is empty", ErrInvalidRequest))
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(strings.Split(c.languages, "+")...); err != nil {
		return fail(fmt.Errorf("failed to set language: %w", err))
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return fail(fmt.Errorf("failed to set image: %w", err))
	}
	text, err := client.Text()
	if err != nil {
		return fail(fmt.Errorf("OCR failed: %w", err))
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fail(fmt.Errorf("%s: %w", TesseractName, ErrEmptyResult))
	}

	return &OCRResult{
		Success:       true,
		Text:          text,
		Metadata:      map[string]any{"languages": c.languages},
		ExecutionTime: time.Since(start),
	}, nil
}

var _ OCRProvider = (*TesseractClient)(nil)
