package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func chatCompletionJSON(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "deepseek-ai/DeepSeek-OCR",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 300, "completion_tokens": 40, "total_tokens": 340},
	})
	return string(body)
}

func TestOpenAIVisionProcessImage(t *testing.T) {
	var payload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionJSON("<|ref|>title<|/ref|><|det|>[[1,2,3,4]]<|/det|>\n# Hello")))
	}))
	defer server.Close()

	client := NewOpenAIVisionClient(OpenAIVisionConfig{
		BaseURL: server.URL,
		Model:   "deepseek-ai/DeepSeek-OCR",
		Prompt:  "default prompt",
	})

	result, err := client.ProcessImage(context.Background(), testPNG(t), &OCRRequest{Prompt: "<image>\nFree OCR."})
	if err != nil {
		t.Fatalf("ProcessImage() error = %v", err)
	}
	if !result.Success {
		t.Fatal("expected success")
	}
	if !strings.Contains(result.Text, "<|ref|>title<|/ref|>") {
		t.Errorf("annotations should be returned untouched, got %q", result.Text)
	}
	if result.PromptTokens != 300 || result.CompletionTokens != 40 {
		t.Errorf("unexpected usage: %d/%d", result.PromptTokens, result.CompletionTokens)
	}

	if got, _ := payload["model"].(string); got != "deepseek-ai/DeepSeek-OCR" {
		t.Errorf("model = %q", got)
	}
	messages, _ := payload["messages"].([]any)
	if len(messages) != 1 {
		t.Fatalf("expected one message, got %d", len(messages))
	}
	parts, _ := messages[0].(map[string]any)["content"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected image and text parts, got %v", parts)
	}
	image, _ := parts[0].(map[string]any)["image_url"].(map[string]any)
	if url, _ := image["url"].(string); !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Errorf("unexpected image url: %.40s", url)
	}
	if text, _ := parts[1].(map[string]any)["text"].(string); text != "<image>\nFree OCR." {
		t.Errorf("request prompt should override default, got %q", text)
	}
}

func TestOpenAIVisionEmptyResult(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "no choices", body: `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`},
		{name: "blank content", body: chatCompletionJSON("   \n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewOpenAIVisionClient(OpenAIVisionConfig{BaseURL: server.URL})
			result, err := client.ProcessImage(context.Background(), testPNG(t), nil)
			if !errors.Is(err, ErrEmptyResult) {
				t.Fatalf("expected ErrEmptyResult, got %v", err)
			}
			if result.Success {
				t.Error("expected failed result")
			}
		})
	}
}

func TestOpenAIVisionRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limit","type":"rate_limit_error","param":"","code":"rate_limit"}}`))
	}))
	defer server.Close()

	client := NewOpenAIVisionClient(OpenAIVisionConfig{BaseURL: server.URL})
	_, err := client.ProcessImage(context.Background(), testPNG(t), nil)
	rle, ok := IsRateLimitError(err)
	if !ok {
		t.Fatalf("expected RateLimitError, got %T: %v", err, err)
	}
	if rle.RetryAfter != 2*time.Second {
		t.Errorf("RetryAfter = %v, want 2s", rle.RetryAfter)
	}
}

func TestOpenAIVisionBadRequestNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad image","type":"invalid_request_error","param":"","code":"bad"}}`))
	}))
	defer server.Close()

	client := NewOpenAIVisionClient(OpenAIVisionConfig{BaseURL: server.URL})
	_, err := client.ProcessImage(context.Background(), testPNG(t), nil)
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if isRetryable(err) {
		t.Error("bad request should not be retryable")
	}
}
