package providers

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIWhisperName         = "openai-whisper"
	openAIWhisperDefaultModel = "whisper-1"
)

// OpenAIWhisperConfig configures an OpenAI-compatible transcription endpoint
// (OpenAI, or a self-hosted Fun-ASR / Whisper server).
type OpenAIWhisperConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	HTTPClient *http.Client // Optional (tests)
}

// OpenAIWhisperClient implements ASRProvider via /audio/transcriptions.
type OpenAIWhisperClient struct {
	model      string
	maxRetries int
	retryDelay time.Duration
	client     openai.Client
}

// NewOpenAIWhisperClient creates a new transcription client.
func NewOpenAIWhisperClient(cfg OpenAIWhisperConfig) *OpenAIWhisperClient {
	if cfg.Model == "" {
		cfg.Model = openAIWhisperDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
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

	return &OpenAIWhisperClient{
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		client:     openai.NewClient(opts...),
	}
}

// Name returns the provider identifier.
func (c *OpenAIWhisperClient) Name() string {
	return OpenAIWhisperName
}

// MaxRetries returns the maximum retry attempts.
func (c *OpenAIWhisperClient) MaxRetries() int {
	return c.maxRetries
}

// RetryDelayBase returns the base delay for exponential backoff.
func (c *OpenAIWhisperClient) RetryDelayBase() time.Duration {
	return c.retryDelay
}

// Transcribe uploads the audio and returns the recognized text. Hotwords and
// previous text are sent together as the decoding prompt.
func (c *OpenAIWhisperClient) Transcribe(ctx context.Context, req *ASRRequest) (*ASRResult, error) {
	start := time.Now()

	data, filename, err := loadAudio(req)
	if err != nil {
		return &ASRResult{ErrorMessage: err.Error(), ExecutionTime: time.Since(start)}, err
	}

	params := openai.AudioTranscriptionNewParams{
		File:           openai.File(bytes.NewReader(data), filename, audioContentType(filename)),
		Model:          c.model,
		ResponseFormat: openai.AudioResponseFormatVerboseJSON,
		Temperature:    openai.Float(0),
	}
	if code := LanguageCode(req.Language); code != "" {
		params.Language = openai.String(code)
	}
	if prompt := whisperPrompt(req.Hotwords, req.Prompt); prompt != "" {
		params.Prompt = openai.String(prompt)
	}

	resp, err := c.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		err = mapOpenAIError(c.Name(), err)
		return &ASRResult{ErrorMessage: err.Error(), ExecutionTime: time.Since(start), RequestID: req.RequestID}, err
	}
	if resp == nil {
		err := fmt.Errorf("%s: %w", c.Name(), ErrEmptyResult)
		return &ASRResult{ErrorMessage: err.Error(), ExecutionTime: time.Since(start), RequestID: req.RequestID}, err
	}

	language := resp.Language
	if language == "" {
		language = req.Language
	}

	return &ASRResult{
		Success:       true,
		Text:          strings.TrimSpace(resp.Text),
		Language:      language,
		Duration:      time.Duration(math.Round(resp.Duration * float64(time.Second))),
		ExecutionTime: time.Since(start),
		RequestID:     req.RequestID,
	}, nil
}

func whisperPrompt(hotwords []string, previous string) string {
	var parts []string
	if len(hotwords) > 0 {
		parts = append(parts, strings.Join(hotwords, ", "))
	}
	if p := strings.TrimSpace(previous); p != "" {
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}

// loadAudio returns the request audio, reading AudioPath when no bytes are set.
func loadAudio(req *ASRRequest) ([]byte, string, error) {
	if req == nil {
		return nil, "", fmt.Errorf("%w: request is required", ErrInvalidRequest)
	}
	filename := req.Filename
	if len(req.Audio) > 0 {
		if filename == "" {
			filename = "audio.wav"
		}
		return req.Audio, filename, nil
	}
	if req.AudioPath == "" {
		return nil, "", fmt.Errorf("%w: audio is required", ErrInvalidRequest)
	}
	data, err := os.ReadFile(req.AudioPath)
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to read audio: %w", ErrInvalidRequest, err)
	}
	if filename == "" {
		filename = filepath.Base(req.AudioPath)
	}
	return data, filename, nil
}

func audioContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	case ".ogg", ".opus":
		return "audio/ogg"
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".webm":
		return "audio/webm"
	default:
		return "audio/wav"
	}
}

// languageCodes maps recognizer language names to ISO-639-1 codes.
var languageCodes = map[string]string{
	"中文": "zh", "英文": "en", "粤语": "yue", "日文": "ja", "韩文": "ko",
	"越南语": "vi", "印尼语": "id", "泰语": "th", "马来语": "ms", "菲律宾语": "tl",
	"阿拉伯语": "ar", "印地语": "hi", "保加利亚语": "bg", "克罗地亚语": "hr",
	"捷克语": "cs", "丹麦语": "da", "荷兰语": "nl", "爱沙尼亚语": "et",
	"芬兰语": "fi", "希腊语": "el", "匈牙利语": "hu", "爱尔兰语": "ga",
	"拉脱维亚语": "lv", "立陶宛语": "lt", "马耳他语": "mt", "波兰语": "pl",
	"葡萄牙语": "pt", "罗马尼亚语": "ro", "斯洛伐克语": "sk",
	"斯洛文尼亚语": "sl", "瑞典语": "sv",
}

// LanguageCode returns the ISO-639-1 code for a recognizer language name.
// Names that are already codes, and unknown names, pass through unchanged.
func LanguageCode(name string) string {
	name = strings.TrimSpace(name)
	if code, ok := languageCodes[name]; ok {
		return code
	}
	return name
}

var _ ASRProvider = (*OpenAIWhisperClient)(nil)
