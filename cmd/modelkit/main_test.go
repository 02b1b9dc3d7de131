package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/agent-tools/modelkit/internal/api"
	"github.com/agent-tools/modelkit/internal/providers"
)

const annotated = "<|ref|>title<|/ref|><|det|>[[10, 20, 300, 60]]<|/det|>\n# Report\n\n" +
	"<|ref|>text<|/ref|><|det|>[[10, 80, 500, 120]]<|/det|>\nRevenue grew.\n\n" +
	"<table><tr><td>Q1</td><td>10</td></tr></table>"

// execute runs the root command with fresh flag values.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgFile, homeDir, outputFormat, logLevel = "", "", "yaml", "error"
	ocrProvider, ocrPromptType, ocrPrompt, ocrMode, ocrFormat = "", "", "", "", formatMarkdown
	ocrKeepCoordinates, ocrBatchOutDir, ocrBatchDetails, ocrWatchOutDir = false, "", false, ""
	cleanFormat, cleanKeepCoordinates = formatMarkdown, false
	configForce = false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	t.Cleanup(func() { _ = api.SetOutputFormat("yaml") })
	return out.String(), err
}

func TestRender(t *testing.T) {
	tests := []struct {
		format  string
		want    []string
		notWant []string
	}{
		{formatMarkdown, []string{"# Report", "Revenue grew.", "<table>"}, []string{"<|ref|>", "[[10"}},
		{formatRaw, []string{"<|ref|>title<|/ref|>"}, nil},
		{formatText, []string{"Report", "Revenue grew."}, []string{"#", "<table>"}},
		{formatTextOnly, []string{"Revenue grew."}, []string{"<table>"}},
		{formatHTML, []string{"<h1>Report</h1>", "<p>Revenue grew.</p>", "<td>Q1</td>"}, nil},
		{formatStructure, []string{"titles:", "Report", "paragraphs:"}, nil},
		{formatTables, []string{"rows:", "- Q1", `- "10"`}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			got, err := render(annotated, tt.format, false)
			if err != nil {
				t.Fatalf("render() error = %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("render(%s) missing %q:\n%s", tt.format, w, got)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(got, w) {
					t.Errorf("render(%s) should not contain %q:\n%s", tt.format, w, got)
				}
			}
		})
	}

	t.Run("keep coordinates", func(t *testing.T) {
		got, err := render(annotated, formatMarkdown, true)
		if err != nil {
			t.Fatalf("render() error = %v", err)
		}
		if !strings.Contains(got, "`[[10, 20, 300, 60]]`") {
			t.Errorf("coordinates not kept:\n%s", got)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if _, err := render(annotated, "pdf", false); err == nil {
			t.Error("expected error")
		}
	})
}

func TestOutputExt(t *testing.T) {
	tests := map[string]string{
		formatMarkdown:  ".md",
		formatRaw:       ".md",
		formatText:      ".txt",
		formatTextOnly:  ".txt",
		formatHTML:      ".html",
		formatStructure: ".yaml",
	}
	for format, want := range tests {
		if got := outputExt(format); got != want {
			t.Errorf("outputExt(%s) = %s, want %s", format, got, want)
		}
	}
}

func TestCleanCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "page.raw.md")
	out := filepath.Join(dir, "page.txt")
	if err := os.WriteFile(in, []byte(annotated), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	if _, err := execute(t, "clean", in, out, "--format", "text"); err != nil {
		t.Fatalf("clean error = %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if strings.Contains(string(got), "<|") || !strings.Contains(string(got), "Revenue grew.") {
		t.Errorf("unexpected output: %q", got)
	}

	if _, err := execute(t, "clean", filepath.Join(dir, "missing.md")); err == nil {
		t.Error("expected error for missing input")
	}
}

func TestCleanStructureTitles(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "page.raw.md")
	out := filepath.Join(dir, "page.json")
	if err := os.WriteFile(in, []byte(annotated), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	if _, err := execute(t, "clean", in, out, "--format", "structure", "-o", "json"); err != nil {
		t.Fatalf("clean error = %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var doc struct {
		Titles []map[string]any `json:"titles"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode structure: %v\n%s", err, data)
	}
	if len(doc.Titles) != 1 || doc.Titles[0]["level"] != float64(1) || doc.Titles[0]["text"] != "Report" {
		t.Errorf("titles = %v", doc.Titles)
	}
	if !strings.Contains(cleanCmd.Long, `{"level": 1, "text": "Report"}`) {
		t.Errorf("help does not describe the title shape:\n%s", cleanCmd.Long)
	}
}

func TestConfigInit(t *testing.T) {
	home := t.TempDir()

	out, err := execute(t, "config", "init", "--home", home)
	if err != nil {
		t.Fatalf("config init error = %v", err)
	}
	path := filepath.Join(home, "config.yaml")
	if strings.TrimSpace(out) != path {
		t.Errorf("printed %q, want %q", out, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(data), "ocr_providers:") {
		t.Errorf("unexpected config:\n%s", data)
	}
	for _, sub := range []string{"cache/hub", "outputs"} {
		if _, err := os.Stat(filepath.Join(home, sub)); err != nil {
			t.Errorf("%s not created: %v", sub, err)
		}
	}

	if _, err := execute(t, "config", "init", "--home", home); err == nil {
		t.Error("expected error when config exists")
	}
	if _, err := execute(t, "config", "init", "--home", home, "--force"); err != nil {
		t.Errorf("config init --force error = %v", err)
	}
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(4, 4, color.Black)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create png: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
}

func TestOCRCommand(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		body, _ := json.Marshal(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "deepseek-ai/DeepSeek-OCR",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": annotated},
			}},
		})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	defer server.Close()

	home := t.TempDir()
	cfg := filepath.Join(home, "config.yaml")
	content := fmt.Sprintf(`ocr_providers:
  local:
    type: openai-vision
    base_url: %s
    enabled: true
defaults:
  ocr_provider: local
`, server.URL)
	if err := os.WriteFile(cfg, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	img := filepath.Join(home, "scan.png")
	writePNG(t, img)

	t.Run("markdown to file", func(t *testing.T) {
		out := filepath.Join(home, "scan.md")
		if _, err := execute(t, "ocr", img, out, "--home", home, "--config", cfg); err != nil {
			t.Fatalf("ocr error = %v", err)
		}
		got, err := os.ReadFile(out)
		if err != nil {
			t.Fatalf("read output: %v", err)
		}
		if !strings.HasPrefix(string(got), "# Report") || strings.Contains(string(got), "<|det|>") {
			t.Errorf("unexpected markdown:\n%s", got)
		}
	})

	t.Run("batch records failures", func(t *testing.T) {
		outDir := filepath.Join(home, "batch")
		_, err := execute(t, "ocr", "batch", img, filepath.Join(home, "missing.png"),
			"--out-dir", outDir, "--format", "html", "--home", home, "--config", cfg)
		if err == nil || !strings.Contains(err.Error(), "1 of 2 images failed") {
			t.Fatalf("expected one failure, got %v", err)
		}
		if _, err := os.Stat(filepath.Join(outDir, "scan.html")); err != nil {
			t.Errorf("html output missing: %v", err)
		}
	})

	t.Run("batch details", func(t *testing.T) {
		outDir := filepath.Join(home, "details")
		out, err := execute(t, "ocr", "batch", img, "--details", "-o", "json",
			"--out-dir", outDir, "--home", home, "--config", cfg)
		if err != nil {
			t.Fatalf("ocr batch --details error = %v", err)
		}
		var report struct {
			Images    []batchEntry `json:"images"`
			RateLimit struct {
				RequestsPerSec float64 `json:"requests_per_second"`
				TotalConsumed  int64   `json:"total_consumed"`
			} `json:"rate_limit"`
		}
		if err := json.Unmarshal([]byte(out), &report); err != nil {
			t.Fatalf("decode report: %v\n%s", err, out)
		}
		if len(report.Images) != 1 || report.Images[0].Error != "" {
			t.Errorf("images = %+v", report.Images)
		}
		if report.RateLimit.RequestsPerSec != 10 || report.RateLimit.TotalConsumed != 1 {
			t.Errorf("rate_limit = %+v", report.RateLimit)
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := execute(t, "ocr", img, "--provider", "nope", "--home", home, "--config", cfg)
		if err == nil || !strings.Contains(err.Error(), "nope") || !errors.Is(err, providers.ErrNotFound) {
			t.Fatalf("expected provider error, got %v", err)
		}
	})

	t.Run("disabled provider", func(t *testing.T) {
		_, err := execute(t, "ocr", img, "--provider", "tesseract", "--home", home, "--config", cfg)
		if err == nil || !strings.Contains(err.Error(), "disabled in config") {
			t.Fatalf("expected disabled error, got %v", err)
		}
	})

	t.Run("provider without credentials", func(t *testing.T) {
		t.Setenv("MISTRAL_API_KEY", "")
		_, err := execute(t, "ocr", img, "--provider", "mistral", "--home", home, "--config", cfg)
		if err == nil || !strings.Contains(err.Error(), "check its credentials") {
			t.Fatalf("expected credentials error, got %v", err)
		}
	})

	t.Run("bad mode", func(t *testing.T) {
		if _, err := execute(t, "ocr", img, "--mode", "huge", "--home", home, "--config", cfg); err == nil {
			t.Fatal("expected mode error")
		}
	})

	if n := requests.Load(); n < 2 {
		t.Errorf("expected at least 2 OCR requests, got %d", n)
	}
}

func TestInvalidGlobalFlags(t *testing.T) {
	if _, err := execute(t, "version", "-o", "xml"); err == nil {
		t.Error("expected error for unknown output format")
	}
	if _, err := execute(t, "version", "--log-level", "loud"); err == nil {
		t.Error("expected error for unknown log level")
	}
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "modelkit ") {
		t.Errorf("unexpected version output: %q", out)
	}
}
