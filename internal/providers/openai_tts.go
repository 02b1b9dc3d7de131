package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAITTSName         = "openai"
	openAITTSDefaultModel = openai.SpeechModelTTS1HD
	openAITTSDefaultVoice = "onyx"
)

// OpenAITTSConfig holds configuration for the OpenAI TTS client.
type OpenAITTSConfig struct {
	APIKey       string
	Model        string        // "tts-1-hd" (default), "tts-1", "gpt-4o-mini-tts"
	Voice        string        // "onyx" (default)
	Format       string        // "wav" (default), "mp3", ...
	Speed        float64       // 0.25-4.0
	Instructions string        // Used by gpt-4o-mini-tts and instruction-following servers
	MaxRetries   int
	RetryDelay   time.Duration
	Timeout      time.Duration // HTTP timeout
	BaseURL      string        // Optional (tests)
	HTTPClient   *http.Client  // Optional (tests)
}

// OpenAITTSClient implements TTSProvider over /audio/speech. It serves OpenAI
// itself and OpenAI-compatible Qwen3-TTS servers, where the voice is a
// speaker preset and instructions carry the emotion.
type OpenAITTSClient struct {
	model        string
	voice        string
	format       string
	speed        float64
	instructions string
	maxRetries   int
	retryDelay   time.Duration
	client       openai.Client
}

// NewOpenAITTSClient creates a new OpenAI TTS client.
func NewOpenAITTSClient(cfg OpenAITTSConfig) *OpenAITTSClient {
	if cfg.Model == "" {
		cfg.Model = openAITTSDefaultModel
	}
	if cfg.Voice == "" {
		cfg.Voice = openAITTSDefaultVoice
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 1.0
	}
	if cfg.Format == "" {
		cfg.Format = "wav"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "EMPTY"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := openai.NewClient(opts...)

	return &OpenAITTSClient{
		model:        cfg.Model,
		voice:        cfg.Voice,
		format:       cfg.Format,
		speed:        cfg.Speed,
		instructions: cfg.Instructions,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		client:       client,
	}
}

// Name returns the provider identifier.
func (c *OpenAITTSClient) Name() string {
	return OpenAITTSName
}

// MaxRetries returns the maximum retry attempts.
func (c *OpenAITTSClient) MaxRetries() int {
	return c.maxRetries
}

// RetryDelayBase returns the base delay for exponential backoff.
func (c *OpenAITTSClient) RetryDelayBase() time.Duration {
	return c.retryDelay
}

// HealthCheck verifies the OpenAI API is reachable and the API key is valid.
func (c *OpenAITTSClient) HealthCheck(ctx context.Context) error {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("openai models list failed: %w", mapOpenAIError(c.Name(), err))
	}
	if page == nil {
		return fmt.Errorf("openai models list returned nil response")
	}
	return nil
}

// Generate converts text to audio.
func (c *OpenAITTSClient) Generate(ctx context.Context, req *TTSRequest) (*TTSResult, error) {
	start := time.Now()
	fail := func(err error, chars int) (*TTSResult, error) {
		return &TTSResult{ErrorMessage: err.Error(), CharCount: chars, ExecutionTime: time.Since(start)}, err
	}

	if req == nil {
		return fail(fmt.Errorf("%w: request is required", ErrInvalidRequest), 0)
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return fail(fmt.Errorf("%w: text is required", ErrInvalidRequest), 0)
	}
	chars := len([]rune(text))

	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = c.voice
	}

	requested := req.Format
	if requested == "" {
		requested = c.format
	}
	format := speechFormat(requested)
	params := openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(c.model),
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: format,
		Speed:          openai.Float(c.speed),
	}

	instructions := strings.TrimSpace(req.Instructions)
	if instructions == "" {
		instructions = strings.TrimSpace(c.instructions)
	}
	if instructions != "" && supportsInstructions(c.model) {
		params.Instructions = openai.String(instructions)
	}

	resp, err := c.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return fail(mapOpenAIError(c.Name(), err), chars)
	}
	defer resp.Body.Close()

	audioBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(fmt.Errorf("failed reading %s audio response: %w", c.Name(), err), chars)
	}
	if len(audioBytes) == 0 {
		return fail(fmt.Errorf("%s: %w", c.Name(), ErrEmptyResult), chars)
	}

	return &TTSResult{
		Success:       true,
		Audio:         audioBytes,
		Format:        string(format),
		CharCount:     chars,
		ExecutionTime: time.Since(start),
		RequestID:     req.RequestID,
	}, nil
}

// ListVoices returns the built-in OpenAI TTS voice list.
func (c *OpenAITTSClient) ListVoices(_ context.Context) ([]Voice, error) {
	names := []string{
		"alloy", "ash", "ballad", "coral", "echo", "fable", "nova",
		"onyx", "sage", "shimmer", "verse", "marin", "cedar",
	}

	voices := make([]Voice, 0, len(names))
	for _, name := range names {
		voices = append(voices, Voice{
			VoiceID: name,
			Name:    name,
		})
	}
	return voices, nil
}

// supportsInstructions excludes the tts-1 family, which rejects the field.
func supportsInstructions(model string) bool {
	m := strings.ToLower(strings.TrimSpace(model))
	return !strings.HasPrefix(m, "tts-1")
}

// speechFormats maps format names to the API's response formats. Empty
// selects WAV; anything unknown falls back to MP3.
var speechFormats = map[string]openai.AudioSpeechNewParamsResponseFormat{
	"":     openai.AudioSpeechNewParamsResponseFormatWAV,
	"wav":  openai.AudioSpeechNewParamsResponseFormatWAV,
	"mp3":  openai.AudioSpeechNewParamsResponseFormatMP3,
	"opus": openai.AudioSpeechNewParamsResponseFormatOpus,
	"aac":  openai.AudioSpeechNewParamsResponseFormatAAC,
	"flac": openai.AudioSpeechNewParamsResponseFormatFLAC,
	"pcm":  openai.AudioSpeechNewParamsResponseFormatPCM,
}

func speechFormat(name string) openai.AudioSpeechNewParamsResponseFormat {
	if f, ok := speechFormats[strings.ToLower(strings.TrimSpace(name))]; ok {
		return f
	}
	return openai.AudioSpeechNewParamsResponseFormatMP3
}

var _ TTSProvider = (*OpenAITTSClient)(nil)
var _ VoicesLister = (*OpenAITTSClient)(nil)
