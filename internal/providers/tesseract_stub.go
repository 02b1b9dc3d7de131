//go:build !tesseract

package providers

import (
	"context"
	"time"
)

// TesseractClient is a stub used when the "tesseract" build tag is not set.
// To enable local OCR, install Tesseract and rebuild:
//
//	go build -tags tesseract ./cmd/modelkit
type TesseractClient struct{}

// NewTesseractClient returns ErrTesseractNotEnabled.
func NewTesseractClient(cfg TesseractConfig) (*TesseractClient, error) {
	return nil, ErrTesseractNotEnabled
}

func (c *TesseractClient) Name() string                  { return TesseractName }
func (c *TesseractClient) RequestsPerSecond() float64    { return 0 }
func (c *TesseractClient) MaxRetries() int               { return 0 }
func (c *TesseractClient) RetryDelayBase() time.Duration { return 0 }

// ProcessImage returns ErrTesseractNotEnabled.
func (c *TesseractClient) ProcessImage(ctx context.Context, image []byte, req *OCRRequest) (*OCRResult, error) {
	return &OCRResult{ErrorMessage: ErrTesseractNotEnabled.Error()}, ErrTesseractNotEnabled
}
