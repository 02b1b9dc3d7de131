package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIVisionName         = "openai-vision"
	OpenAIVisionDefaultURL   = "http://localhost:8000/v1"
	OpenAIVisionDefaultModel = "deepseek-ai/DeepSeek-OCR"
)

// OpenAIVisionConfig holds configuration for an OpenAI-compatible vision model
// used for OCR (DeepSeek-OCR or GLM-OCR behind vLLM, DeepInfra, etc.).
type OpenAIVisionConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Prompt      string // Default prompt when the request carries none
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	RateLimit   float64 // Requests per second
	MaxRetries  int
	RetryDelay  time.Duration
	HTTPClient  *http.Client // Optional (tests)
}

// OpenAIVisionClient implements OCRProvider over the chat completions API.
type OpenAIVisionClient struct {
	baseURL     string
	model       string
	prompt      string
	temperature float64
	maxTokens   int
	rateLimit   float64
	maxRetries  int
	retryDelay  time.Duration
	client      openai.Client
}

// NewOpenAIVisionClient creates a new vision OCR client.
func NewOpenAIVisionClient(cfg OpenAIVisionConfig) *OpenAIVisionClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = OpenAIVisionDefaultURL
	}
	if cfg.Model == "" {
		cfg.Model = OpenAIVisionDefaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 8192
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10.0
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	// Self-hosted servers often run without auth; the SDK still wants a key.
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "EMPTY"
	}

	// Retries are driven by Call so the SDK must not retry on its own.
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	)

	return &OpenAIVisionClient{
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		prompt:      cfg.Prompt,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		rateLimit:   cfg.RateLimit,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		client:      client,
	}
}

// Name returns the provider identifier.
func (c *OpenAIVisionClient) Name() string {
	return OpenAIVisionName
}

// RequestsPerSecond returns the rate limit.
func (c *OpenAIVisionClient) RequestsPerSecond() float64 {
	return c.rateLimit
}

// MaxRetries returns the maximum retry attempts.
func (c *OpenAIVisionClient) MaxRetries() int {
	return c.maxRetries
}

// RetryDelayBase returns the base delay for exponential backoff.
func (c *OpenAIVisionClient) RetryDelayBase() time.Duration {
	return c.retryDelay
}

// Model returns the configured model.
func (c *OpenAIVisionClient) Model() string {
	return c.model
}

// ProcessImage sends the image with the prompt and returns the model's
// annotated markdown untouched.
func (c *OpenAIVisionClient) ProcessImage(ctx context.Context, image []byte, req *OCRRequest) (*OCRResult, error) {
	start := time.Now()

	if len(image) == 0 {
		err := fmt.Errorf("%w: image is empty", ErrInvalidRequest)
		return &OCRResult{ErrorMessage: err.Error(), ExecutionTime: time.Since(start)}, err
	}

	prompt := c.prompt
	if req != nil && strings.TrimSpace(req.Prompt) != "" {
		prompt = req.Prompt
	}
	if prompt == "" {
		prompt = "OCR this image."
	}

	dataURL := "data:" + http.DetectContentType(image) + ";base64," + base64.StdEncoding.EncodeToString(image)
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
				openai.TextContentPart(prompt),
			}),
		},
		MaxTokens:   openai.Int(int64(c.maxTokens)),
		Temperature: openai.Float(c.temperature),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		err = mapOpenAIError(c.Name(), err)
		return &OCRResult{ErrorMessage: err.Error(), ExecutionTime: time.Since(start)}, err
	}

	if resp == nil || len(resp.Choices) == 0 {
		err := fmt.Errorf("%s: no choices in response: %w", c.Name(), ErrEmptyResult)
		return &OCRResult{ErrorMessage: err.Error(), ExecutionTime: time.Since(start)}, err
	}
	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		err := fmt.Errorf("%s: %w", c.Name(), ErrEmptyResult)
		return &OCRResult{ErrorMessage: err.Error(), ExecutionTime: time.Since(start)}, err
	}

	return &OCRResult{
		Success: true,
		Text:    text,
		Metadata: map[string]any{
			"model_used":    resp.Model,
			"finish_reason": resp.Choices[0].FinishReason,
		},
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		ExecutionTime:    time.Since(start),
	}, nil
}

// mapOpenAIError converts SDK errors, turning 429s into *RateLimitError.
func mapOpenAIError(provider string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			retryAfter := time.Duration(0)
			if apiErr.Response != nil {
				retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
			}
			return &RateLimitError{
				Message:    fmt.Sprintf("%s rate limited: %s", provider, apiErr.Message),
				RetryAfter: retryAfter,
				StatusCode: apiErr.StatusCode,
			}
		}
		if apiErr.StatusCode == http.StatusBadRequest {
			return fmt.Errorf("%w: %s error (status %d): %s", ErrInvalidRequest, provider, apiErr.StatusCode, apiErr.Message)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("%s error (status %d): %s", provider, apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("%s error (status %d)", provider, apiErr.StatusCode)
	}
	return fmt.Errorf("%s request failed: %w", provider, err)
}

var _ OCRProvider = (*OpenAIVisionClient)(nil)
