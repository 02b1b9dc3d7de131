package providers

import (
	"context"
	"time"
)

// OCRProvider handles image-to-text extraction.
type OCRProvider interface {
	// Name returns the provider identifier (e.g., "openai-vision", "mistral-ocr").
	Name() string

	// ProcessImage extracts text from an encoded image (PNG or JPEG).
	ProcessImage(ctx context.Context, image []byte, req *OCRRequest) (*OCRResult, error)

	// Rate limiting properties
	RequestsPerSecond() float64
	MaxRetries() int
	RetryDelayBase() time.Duration
}

// DocumentOCRProvider is implemented by OCR providers that take a whole PDF
// in one request.
type DocumentOCRProvider interface {
	ProcessDocument(ctx context.Context, pdf []byte, req *OCRRequest) (*OCRDocumentResult, error)
}

// ASRProvider converts speech to text.
type ASRProvider interface {
	// Name returns the provider identifier (e.g., "openai-whisper", "exec").
	Name() string

	// Transcribe recognizes the audio in req.
	Transcribe(ctx context.Context, req *ASRRequest) (*ASRResult, error)

	MaxRetries() int
	RetryDelayBase() time.Duration
}

// TTSProvider converts text to speech.
type TTSProvider interface {
	// Name returns the provider identifier (e.g., "openai", "exec").
	Name() string

	// Generate synthesizes req.Text.
	Generate(ctx context.Context, req *TTSRequest) (*TTSResult, error)

	MaxRetries() int
	RetryDelayBase() time.Duration
}

// VoicesLister is implemented by TTS providers that can enumerate voices.
type VoicesLister interface {
	ListVoices(ctx context.Context) ([]Voice, error)
}

// OCRRequest carries per-call OCR options.
type OCRRequest struct {
	// Prompt is the instruction sent alongside the image. Providers that
	// take no prompt ignore it.
	Prompt string

	// PageNum is informational (1-based, 0 for standalone images).
	PageNum int

	RequestID string
}

// OCRResult is the response from an OCR provider.
type OCRResult struct {
	// Success/content
	Success bool   `json:"success"`
	Text    string `json:"text"` // Annotated markdown as returned by the model

	// Metadata from provider (dimensions, model, etc.)
	Metadata map[string]any `json:"metadata,omitempty"`

	// Usage and timing
	PromptTokens     int           `json:"prompt_tokens,omitempty"`
	CompletionTokens int           `json:"completion_tokens,omitempty"`
	ExecutionTime    time.Duration `json:"execution_time"`

	// Error info
	ErrorMessage string `json:"error_message,omitempty"`
	RetryCount   int    `json:"retry_count"`
}

// OCRDocumentResult is the response to a whole-document OCR request.
type OCRDocumentResult struct {
	Success       bool          `json:"success"`
	Pages         []string      `json:"pages"` // Markdown per page, in page order
	ExecutionTime time.Duration `json:"execution_time"`
	ErrorMessage  string        `json:"error_message,omitempty"`
}

// ASRRequest is a single recognition request.
type ASRRequest struct {
	// Audio holds the encoded audio. AudioPath is used instead when Audio
	// is empty; exec backends always receive a path.
	Audio     []byte
	AudioPath string
	Filename  string

	// Language is the target language name (e.g., "中文", "英文").
	Language string

	// Hotwords bias recognition toward specific terms.
	Hotwords []string

	// Prompt is previous text used as decoding context (streaming).
	Prompt string

	// ITN enables inverse text normalization (numbers, dates).
	ITN bool

	RequestID string
}

// ASRResult is the response from an ASR provider.
type ASRResult struct {
	Success  bool          `json:"success"`
	Text     string        `json:"text"`
	Language string        `json:"language,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`

	ExecutionTime time.Duration `json:"execution_time"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	RequestID     string        `json:"request_id,omitempty"`
}

// TTSRequest is a single synthesis request.
type TTSRequest struct {
	Text         string
	Voice        string // Speaker preset or provider voice ID
	Language     string // e.g., "Chinese", "English"
	Instructions string // Style control ("用愤怒的语气说", "Very happy")
	Format       string // "wav", "mp3", ...

	RequestID string
}

// TTSResult is the response from a TTS provider.
type TTSResult struct {
	Success    bool   `json:"success"`
	Audio      []byte `json:"-"`
	Format     string `json:"format"`
	SampleRate int    `json:"sample_rate,omitempty"`
	DurationMS int    `json:"duration_ms,omitempty"`
	CharCount  int    `json:"char_count"`

	ExecutionTime time.Duration `json:"execution_time"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	RequestID     string        `json:"request_id,omitempty"`
}

// Voice describes a synthesis voice.
type Voice struct {
	VoiceID     string `json:"voice_id" yaml:"voice_id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Language    string `json:"language,omitempty" yaml:"language,omitempty"`
}
