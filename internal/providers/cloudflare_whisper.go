package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	CloudflareWhisperName         = "cloudflare-whisper"
	cloudflareDefaultBaseURL      = "https://api.cloudflare.com/client/v4"
	cloudflareWhisperDefaultModel = "@cf/openai/whisper"
)

// CloudflareWhisperConfig configures Whisper on Cloudflare Workers AI.
type CloudflareWhisperConfig struct {
	Account    string
	Token      string
	Model      string
	BaseURL    string // Optional (tests)
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// CloudflareWhisperClient implements ASRProvider using Workers AI.
// Workers AI takes the raw audio body and ignores language and prompt.
type CloudflareWhisperClient struct {
	account    string
	token      string
	model      string
	baseURL    string
	maxRetries int
	retryDelay time.Duration
	http       *http.Client
}

type cloudflareResponse[T any] struct {
	Result   *T                `json:"result"`
	Success  bool              `json:"success"`
	Errors   []cloudflareError `json:"errors"`
	Messages []any             `json:"messages"`
}

type cloudflareError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type cloudflareSpeechRecognition struct {
	Text      string  `json:"text"`
	VTT       string  `json:"vtt"`
	WordCount float64 `json:"word_count"`
}

// NewCloudflareWhisperClient creates a new Workers AI Whisper client.
func NewCloudflareWhisperClient(cfg CloudflareWhisperConfig) *CloudflareWhisperClient {
	if cfg.Model == "" {
		cfg.Model = cloudflareWhisperDefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = cloudflareDefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	return &CloudflareWhisperClient{
		account:    cfg.Account,
		token:      cfg.Token,
		model:      cfg.Model,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		http:       &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the provider identifier.
func (w *CloudflareWhisperClient) Name() string {
	return CloudflareWhisperName
}

// MaxRetries returns the maximum retry attempts.
func (w *CloudflareWhisperClient) MaxRetries() int {
	return w.maxRetries
}

// RetryDelayBase returns the base delay for exponential backoff.
func (w *CloudflareWhisperClient) RetryDelayBase() time.Duration {
	return w.retryDelay
}

func (w *CloudflareWhisperClient) runCF(ctx context.Context, data []byte) (*cloudflareResponse[cloudflareSpeechRecognition], error) {
	url := fmt.Sprintf("%s/accounts/%s/ai/run/%s", w.baseURL, w.account, w.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.token)

	resp, err := w.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("Cloudflare Workers AI", resp, body)
	}

	var cfResp cloudflareResponse[cloudflareSpeechRecognition]
	if err := json.Unmarshal(body, &cfResp); err != nil {
		return nil, fmt.Errorf("decoding response json: %w", err)
	}
	return &cfResp, nil
}

// Transcribe sends the audio to Workers AI.
func (w *CloudflareWhisperClient) Transcribe(ctx context.Context, req *ASRRequest) (*ASRResult, error) {
	start := time.Now()

	data, _, err := loadAudio(req)
	if err != nil {
		return &ASRResult{ErrorMessage: err.Error(), ExecutionTime: time.Since(start)}, err
	}

	fail := func(err error) (*ASRResult, error) {
		return &ASRResult{ErrorMessage: err.Error(), ExecutionTime: time.Since(start), RequestID: req.RequestID}, err
	}

	resp, err := w.runCF(ctx, data)
	if err != nil {
		return fail(fmt.Errorf("performing request: %w", err))
	}
	if !resp.Success {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		return fail(fmt.Errorf("request unsuccessful: %s", strings.Join(msgs, "; ")))
	}
	if resp.Result == nil {
		return fail(fmt.Errorf("%s: nil result: %w", w.Name(), ErrEmptyResult))
	}

	return &ASRResult{
		Success:       true,
		Text:          strings.TrimSpace(resp.Result.Text),
		Language:      req.Language,
		ExecutionTime: time.Since(start),
		RequestID:     req.RequestID,
	}, nil
}

var _ ASRProvider = (*CloudflareWhisperClient)(nil)
