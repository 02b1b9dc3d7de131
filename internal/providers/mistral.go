package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	MistralOCRName    = "mistral-ocr"
	MistralOCRBaseURL = "https://api.mistral.ai/v1"
	MistralOCRModel   = "mistral-ocr-latest"
)

// MistralOCRConfig configures MistralOCRClient. Zero values take the API
// defaults: mistral-ocr-latest at 6 requests per second.
type MistralOCRConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	RateLimit  float64
	MaxRetries int
	RetryDelay time.Duration
	HTTPClient *http.Client // Optional (tests)
}

// MistralOCRClient runs Mistral's hosted OCR. It returns plain Markdown with
// no grounding spans, so cleaning is a no-op on its output. Besides single
// images it accepts whole PDFs (see ProcessDocument).
type MistralOCRClient struct {
	cfg  MistralOCRConfig
	http *http.Client
}

// NewMistralOCRClient applies defaults to cfg and returns a client.
func NewMistralOCRClient(cfg MistralOCRConfig) *MistralOCRClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = MistralOCRBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = MistralOCRModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 6
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &MistralOCRClient{cfg: cfg, http: client}
}

func (c *MistralOCRClient) Name() string                  { return MistralOCRName }
func (c *MistralOCRClient) RequestsPerSecond() float64    { return c.cfg.RateLimit }
func (c *MistralOCRClient) MaxRetries() int               { return c.cfg.MaxRetries }
func (c *MistralOCRClient) RetryDelayBase() time.Duration { return c.cfg.RetryDelay }

// ProcessImage sends one image as a single-page document. The prompt is
// ignored.
func (c *MistralOCRClient) ProcessImage(ctx context.Context, image []byte, req *OCRRequest) (*OCRResult, error) {
	start := time.Now()
	fail := func(err error) (*OCRResult, error) {
		return &OCRResult{ErrorMessage: err.Error(), ExecutionTime: time.Since(start)}, err
	}

	if len(image) == 0 {
		return fail(fmt.Errorf("%w: image is empty", ErrInvalidRequest))
	}
	pages, err := c.run(ctx, mistralDocument{
		Type:     "image_url",
		ImageURL: dataURL(http.DetectContentType(image), image),
	}, req)
	if err != nil {
		return fail(err)
	}
	if len(pages) == 0 || strings.TrimSpace(pages[0]) == "" {
		return fail(fmt.Errorf("%s: %w", MistralOCRName, ErrEmptyResult))
	}
	return &OCRResult{
		Success:       true,
		Text:          pages[0],
		ExecutionTime: time.Since(start),
	}, nil
}

// ProcessDocument sends a whole PDF in one request and returns the Markdown of
// every page in page order. Blank pages come back as empty strings; a
// document with no text at all is ErrEmptyResult.
func (c *MistralOCRClient) ProcessDocument(ctx context.Context, pdf []byte, req *OCRRequest) (*OCRDocumentResult, error) {
	start := time.Now()
	fail := func(err error) (*OCRDocumentResult, error) {
		return &OCRDocumentResult{ErrorMessage: err.Error(), ExecutionTime: time.Since(start)}, err
	}

	if len(pdf) == 0 {
		return fail(fmt.Errorf("%w: document is empty", ErrInvalidRequest))
	}
	pages, err := c.run(ctx, mistralDocument{
		Type:        "document_url",
		DocumentURL: dataURL("application/pdf", pdf),
	}, req)
	if err != nil {
		return fail(err)
	}
	if strings.TrimSpace(strings.Join(pages, "")) == "" {
		return fail(fmt.Errorf("%s: %w", MistralOCRName, ErrEmptyResult))
	}
	return &OCRDocumentResult{
		Success:       true,
		Pages:         pages,
		ExecutionTime: time.Since(start),
	}, nil
}

func dataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// run posts doc to /ocr and returns page Markdown ordered by page index.
func (c *MistralOCRClient) run(ctx context.Context, doc mistralDocument, req *OCRRequest) ([]string, error) {
	body, err := json.Marshal(mistralOCRRequest{Model: c.cfg.Model, Document: doc})
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", MistralOCRName, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/ocr", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", MistralOCRName, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if req != nil && req.RequestID != "" {
		httpReq.Header.Set("X-Request-ID", req.RequestID)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", MistralOCRName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", MistralOCRName, err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr mistralError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			raw = []byte(apiErr.Error.Message)
		}
		return nil, statusError(MistralOCRName, resp, raw)
	}

	var out mistralOCRResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", MistralOCRName, err)
	}
	pages := make([]string, len(out.Pages))
	for i, p := range out.Pages {
		idx := p.Index
		if idx < 0 || idx >= len(pages) {
			idx = i
		}
		pages[idx] = p.Markdown
	}
	return pages, nil
}

type mistralOCRRequest struct {
	Model    string          `json:"model"`
	Document mistralDocument `json:"document"`
}

// mistralDocument sets exactly one of ImageURL or DocumentURL, matching Type.
type mistralDocument struct {
	Type        string `json:"type"`
	ImageURL    string `json:"image_url,omitempty"`
	DocumentURL string `json:"document_url,omitempty"`
}

type mistralOCRResponse struct {
	Model string `json:"model"`
	Pages []struct {
		Index    int    `json:"index"`
		Markdown string `json:"markdown"`
	} `json:"pages"`
}

type mistralError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

var (
	_ OCRProvider         = (*MistralOCRClient)(nil)
	_ DocumentOCRProvider = (*MistralOCRClient)(nil)
)
