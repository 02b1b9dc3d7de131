package providers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOpenAIWhisperTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		checks := map[string]string{
			"model":           "FunAudioLLM/Fun-ASR-Nano-2512",
			"language":        "zh",
			"prompt":          "魔搭, 通义 上一句",
			"response_format": "verbose_json",
		}
		for field, want := range checks {
			if got := r.FormValue(field); got != want {
				t.Errorf("%s = %q, want %q", field, got, want)
			}
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if string(data) != "RIFFdata" || header.Filename != "clip.wav" {
			t.Errorf("file = %q (%s)", data, header.Filename)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":" 你好世界 ","language":"chinese","duration":2.5}`))
	}))
	defer server.Close()

	client := NewOpenAIWhisperClient(OpenAIWhisperConfig{
		BaseURL: server.URL,
		Model:   "FunAudioLLM/Fun-ASR-Nano-2512",
	})

	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(path, []byte("RIFFdata"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := client.Transcribe(context.Background(), &ASRRequest{
		AudioPath: path,
		Language:  "中文",
		Hotwords:  []string{"魔搭", "通义"},
		Prompt:    "上一句",
		RequestID: "abc",
	})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if result.Text != "你好世界" {
		t.Errorf("Text = %q", result.Text)
	}
	if result.Language != "chinese" {
		t.Errorf("Language = %q", result.Language)
	}
	if result.Duration != 2500*time.Millisecond {
		t.Errorf("Duration = %v", result.Duration)
	}
	if result.RequestID != "abc" {
		t.Errorf("RequestID = %q", result.RequestID)
	}
}

func TestOpenAIWhisperErrors(t *testing.T) {
	t.Run("missing audio", func(t *testing.T) {
		client := NewOpenAIWhisperClient(OpenAIWhisperConfig{BaseURL: "http://127.0.0.1:1"})
		if _, err := client.Transcribe(context.Background(), &ASRRequest{}); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
		if _, err := client.Transcribe(context.Background(), &ASRRequest{AudioPath: "/nonexistent.wav"}); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "3")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
		}))
		defer server.Close()

		client := NewOpenAIWhisperClient(OpenAIWhisperConfig{BaseURL: server.URL})
		_, err := client.Transcribe(context.Background(), &ASRRequest{Audio: []byte("x")})
		rle, ok := IsRateLimitError(err)
		if !ok {
			t.Fatalf("error = %v, want RateLimitError", err)
		}
		if rle.RetryAfter != 3*time.Second {
			t.Errorf("RetryAfter = %v", rle.RetryAfter)
		}
	})
}

func TestLanguageCode(t *testing.T) {
	tests := map[string]string{
		"中文":  "zh",
		"日文":  "ja",
		"粤语":  "yue",
		"瑞典语": "sv",
		"en":  "en",
		"":    "",
		" 英文 ": "en",
	}
	for in, want := range tests {
		if got := LanguageCode(in); got != want {
			t.Errorf("LanguageCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCloudflareWhisperTranscribe(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/accounts/acct/ai/run/@cf/openai/whisper" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if auth := r.Header.Get("Authorization"); auth != "Bearer token" {
				t.Errorf("Authorization = %q", auth)
			}
			body, _ := io.ReadAll(r.Body)
			if string(body) != "RIFF" {
				t.Errorf("body = %q", body)
			}
			_, _ = w.Write([]byte(`{"success":true,"result":{"text":" hello ","word_count":1},"errors":[]}`))
		}))
		defer server.Close()

		client := NewCloudflareWhisperClient(CloudflareWhisperConfig{Account: "acct", Token: "token", BaseURL: server.URL})
		result, err := client.Transcribe(context.Background(), &ASRRequest{Audio: []byte("RIFF"), Language: "英文"})
		if err != nil {
			t.Fatalf("Transcribe() error = %v", err)
		}
		if result.Text != "hello" || result.Language != "英文" {
			t.Errorf("unexpected result: %+v", result)
		}
	})

	t.Run("unsuccessful", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"errors":[{"code":5006,"message":"bad audio"}]}`))
		}))
		defer server.Close()

		client := NewCloudflareWhisperClient(CloudflareWhisperConfig{Account: "acct", Token: "token", BaseURL: server.URL})
		_, err := client.Transcribe(context.Background(), &ASRRequest{Audio: []byte("RIFF")})
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("nil result", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":true}`))
		}))
		defer server.Close()

		client := NewCloudflareWhisperClient(CloudflareWhisperConfig{Account: "acct", Token: "token", BaseURL: server.URL})
		_, err := client.Transcribe(context.Background(), &ASRRequest{Audio: []byte("RIFF")})
		if !errors.Is(err, ErrEmptyResult) {
			t.Errorf("error = %v, want ErrEmptyResult", err)
		}
	})
}
