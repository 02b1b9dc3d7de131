package providers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// mockBehavior holds the failure knobs shared by the mock providers.
type mockBehavior struct {
	Latency    time.Duration
	ShouldFail bool
	FailAfter  int // Fail after N requests (0 = never)
	Retries    int
	RetryDelay time.Duration

	requestCount atomic.Int64
}

// begin counts the request, applies failure rules and simulates latency.
func (m *mockBehavior) begin(ctx context.Context, name string) error {
	count := m.requestCount.Add(1)

	if m.ShouldFail {
		return fmt.Errorf("%s configured to fail", name)
	}
	if m.FailAfter > 0 && int(count) > m.FailAfter {
		return fmt.Errorf("%s failed after %d requests", name, m.FailAfter)
	}

	select {
	case <-time.After(m.Latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestCount returns the number of requests made.
func (m *mockBehavior) RequestCount() int64 {
	return m.requestCount.Load()
}

// Reset resets the request counter.
func (m *mockBehavior) Reset() {
	m.requestCount.Store(0)
}

// MaxRetries returns the max retry count.
func (m *mockBehavior) MaxRetries() int {
	return m.Retries
}

// RetryDelayBase returns the base retry delay.
func (m *mockBehavior) RetryDelayBase() time.Duration {
	return m.RetryDelay
}

// MockOCRProvider is an OCRProvider for testing.
type MockOCRProvider struct {
	mockBehavior

	ProviderName string
	ResponseText string
	RPS          float64

	// ResponseFunc, when set, produces the text instead of ResponseText.
	ResponseFunc func(image []byte, req *OCRRequest) (string, error)

	mu      sync.Mutex
	prompts []string
}

// NewMockOCRProvider creates a new mock OCR provider.
func NewMockOCRProvider() *MockOCRProvider {
	return &MockOCRProvider{
		mockBehavior: mockBehavior{Latency: time.Millisecond, RetryDelay: time.Millisecond},
		ProviderName: "mock-ocr",
		ResponseText: "<|ref|>text<|/ref|><|det|>[[0, 0, 10, 10]]<|/det|>\nmock OCR text",
	}
}

// Name returns the provider identifier.
func (p *MockOCRProvider) Name() string {
	return p.ProviderName
}

// RequestsPerSecond returns the rate limit.
func (p *MockOCRProvider) RequestsPerSecond() float64 {
	return p.RPS
}

// ProcessImage returns the configured text.
func (p *MockOCRProvider) ProcessImage(ctx context.Context, image []byte, req *OCRRequest) (*OCRResult, error) {
	start := time.Now()

	p.mu.Lock()
	if req != nil {
		p.prompts = append(p.prompts, req.Prompt)
	}
	p.mu.Unlock()

	if err := p.begin(ctx, p.ProviderName); err != nil {
		return &OCRResult{ErrorMessage: err.Error(), ExecutionTime: time.Since(start)}, err
	}

	text := p.ResponseText
	if p.ResponseFunc != nil {
		var err error
		if text, err = p.ResponseFunc(image, req); err != nil {
			return &OCRResult{ErrorMessage: err.Error(), ExecutionTime: time.Since(start)}, err
		}
	}

	return &OCRResult{
		Success: true,
		Text:    text,
		Metadata: map[string]any{
			"provider":    p.ProviderName,
			"image_bytes": len(image),
		},
		ExecutionTime: time.Since(start),
	}, nil
}

// Prompts returns the prompts received so far.
func (p *MockOCRProvider) Prompts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.prompts...)
}

// MockASRProvider is an ASRProvider for testing.
type MockASRProvider struct {
	mockBehavior

	ProviderName string
	ResponseText string

	// ResponseFunc, when set, produces the text instead of ResponseText.
	ResponseFunc func(req *ASRRequest) (string, error)

	mu       sync.Mutex
	requests []ASRRequest
}

// NewMockASRProvider creates a new mock ASR provider.
func NewMockASRProvider() *MockASRProvider {
	return &MockASRProvider{
		mockBehavior: mockBehavior{Latency: time.Millisecond, RetryDelay: time.Millisecond},
		ProviderName: "mock-asr",
		ResponseText: "mock transcript",
	}
}

// Name returns the provider identifier.
func (p *MockASRProvider) Name() string {
	return p.ProviderName
}

// Transcribe returns the configured text.
func (p *MockASRProvider) Transcribe(ctx context.Context, req *ASRRequest) (*ASRResult, error) {
	start := time.Now()

	if req == nil {
		err := fmt.Errorf("%w: request is required", ErrInvalidRequest)
		return &ASRResult{ErrorMessage: err.Error()}, err
	}

	p.mu.Lock()
	p.requests = append(p.requests, *req)
	p.mu.Unlock()

	if err := p.begin(ctx, p.ProviderName); err != nil {
		return &ASRResult{ErrorMessage: err.Error(), ExecutionTime: time.Since(start)}, err
	}

	text := p.ResponseText
	if p.ResponseFunc != nil {
		var err error
		if text, err = p.ResponseFunc(req); err != nil {
			return &ASRResult{ErrorMessage: err.Error(), ExecutionTime: time.Since(start)}, err
		}
	}

	return &ASRResult{
		Success:       true,
		Text:          text,
		Language:      req.Language,
		ExecutionTime: time.Since(start),
		RequestID:     req.RequestID,
	}, nil
}

// Requests returns copies of the requests received so far.
func (p *MockASRProvider) Requests() []ASRRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ASRRequest(nil), p.requests...)
}

// MockTTSProvider is a TTSProvider for testing. It returns the request text
// as audio bytes so callers can check ordering.
type MockTTSProvider struct {
	mockBehavior

	ProviderName string
	Format       string
	SampleRate   int

	mu       sync.Mutex
	requests []TTSRequest
}

// NewMockTTSProvider creates a new mock TTS provider.
func NewMockTTSProvider() *MockTTSProvider {
	return &MockTTSProvider{
		mockBehavior: mockBehavior{Latency: time.Millisecond, RetryDelay: time.Millisecond},
		ProviderName: "mock-tts",
		Format:       "wav",
		SampleRate:   24000,
	}
}

// Name returns the provider identifier.
func (p *MockTTSProvider) Name() string {
	return p.ProviderName
}

// Generate echoes the text as audio.
func (p *MockTTSProvider) Generate(ctx context.Context, req *TTSRequest) (*TTSResult, error) {
	start := time.Now()

	if req == nil || req.Text == "" {
		err := fmt.Errorf("%w: text is required", ErrInvalidRequest)
		return &TTSResult{ErrorMessage: err.Error()}, err
	}

	p.mu.Lock()
	p.requests = append(p.requests, *req)
	p.mu.Unlock()

	if err := p.begin(ctx, p.ProviderName); err != nil {
		return &TTSResult{ErrorMessage: err.Error(), ExecutionTime: time.Since(start)}, err
	}

	return &TTSResult{
		Success:       true,
		Audio:         []byte(req.Text),
		Format:        p.Format,
		SampleRate:    p.SampleRate,
		CharCount:     len([]rune(req.Text)),
		ExecutionTime: time.Since(start),
		RequestID:     req.RequestID,
	}, nil
}

// Requests returns copies of the requests received so far.
func (p *MockTTSProvider) Requests() []TTSRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]TTSRequest(nil), p.requests...)
}

// ListVoices returns two fixed voices.
func (p *MockTTSProvider) ListVoices(_ context.Context) ([]Voice, error) {
	return []Voice{
		{VoiceID: "Vivian", Name: "Vivian", Language: "Chinese"},
		{VoiceID: "Ryan", Name: "Ryan", Language: "English"},
	}, nil
}

var (
	_ OCRProvider  = (*MockOCRProvider)(nil)
	_ ASRProvider  = (*MockASRProvider)(nil)
	_ TTSProvider  = (*MockTTSProvider)(nil)
	_ VoicesLister = (*MockTTSProvider)(nil)
)
