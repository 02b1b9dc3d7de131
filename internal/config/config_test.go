package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agent-tools/modelkit/internal/providers"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return configFile
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if _, ok := cfg.GetOCRProvider(cfg.Defaults.OCRProvider); !ok {
		t.Errorf("default OCR provider %q is not configured", cfg.Defaults.OCRProvider)
	}
	if _, ok := cfg.GetASRProvider(cfg.Defaults.ASRProvider); !ok {
		t.Errorf("default ASR provider %q is not configured", cfg.Defaults.ASRProvider)
	}
	if _, ok := cfg.GetTTSProvider(cfg.Defaults.TTSProvider); !ok {
		t.Errorf("default TTS provider %q is not configured", cfg.Defaults.TTSProvider)
	}
	if cfg.OCRProviders["mistral"].APIKey != "${MISTRAL_API_KEY}" {
		t.Error("expected mistral API key placeholder")
	}
	if got := cfg.EnabledOCRProviders(); len(got) != 2 || got[0] != "deepseek" || got[1] != "mistral" {
		t.Errorf("EnabledOCRProviders() = %v", got)
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		t.Setenv("TEST_API_KEY", "secret123")

		result := ResolveEnvVars("${TEST_API_KEY}")
		if result != "secret123" {
			t.Errorf("expected secret123, got %s", result)
		}
	})

	t.Run("resolves inside a longer value", func(t *testing.T) {
		t.Setenv("TEST_HOST", "gpu-box")

		result := ResolveEnvVars("http://${TEST_HOST}:8000/v1")
		if result != "http://gpu-box:8000/v1" {
			t.Errorf("got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}")
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		result := ResolveEnvVars("literal-value")
		if result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		configFile := writeConfig(t, `
ocr_providers:
  glm:
    type: openai-vision
    model: zai-org/GLM-OCR
    base_url: http://localhost:9000/v1
    prompt: "Text Recognition:"
    enabled: true
defaults:
  ocr_provider: glm
`)

		mgr, err := NewManager(configFile)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		glm, ok := cfg.GetOCRProvider("glm")
		if !ok {
			t.Fatal("expected glm provider")
		}
		if glm.Prompt != "Text Recognition:" || glm.BaseURL != "http://localhost:9000/v1" {
			t.Errorf("unexpected glm config: %+v", glm)
		}
		if cfg.Defaults.OCRProvider != "glm" {
			t.Errorf("expected ocr_provider glm, got %s", cfg.Defaults.OCRProvider)
		}
	})

	t.Run("file values merge over defaults", func(t *testing.T) {
		configFile := writeConfig(t, `
ocr_providers:
  deepseek:
    base_url: http://gpu:8000/v1
defaults:
  max_workers: 8
`)

		mgr, err := NewManager(configFile)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		deepseek := cfg.OCRProviders["deepseek"]
		if deepseek.BaseURL != "http://gpu:8000/v1" {
			t.Errorf("base_url = %s", deepseek.BaseURL)
		}
		if deepseek.Type != "openai-vision" || !deepseek.Enabled {
			t.Errorf("default fields lost: %+v", deepseek)
		}
		if _, ok := cfg.OCRProviders["mistral"]; !ok {
			t.Error("default mistral provider lost")
		}
		if cfg.Defaults.MaxWorkers != 8 {
			t.Errorf("max_workers = %d", cfg.Defaults.MaxWorkers)
		}
		if cfg.Defaults.Language != "中文" {
			t.Errorf("language = %s", cfg.Defaults.Language)
		}
	})

	t.Run("missing file uses defaults", func(t *testing.T) {
		mgr, err := NewManager(filepath.Join(t.TempDir(), "absent.yaml"))
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		if mgr.Get().Defaults.TTSProvider != "qwen" {
			t.Errorf("tts_provider = %s", mgr.Get().Defaults.TTSProvider)
		}
	})

	t.Run("env overrides defaults", func(t *testing.T) {
		t.Setenv("MODELKIT_DEFAULTS_OCR_PROVIDER", "mistral")

		mgr, err := NewManager(filepath.Join(t.TempDir(), "absent.yaml"))
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		if mgr.Get().Defaults.OCRProvider != "mistral" {
			t.Errorf("ocr_provider = %s", mgr.Get().Defaults.OCRProvider)
		}
	})

	t.Run("invalid yaml fails", func(t *testing.T) {
		configFile := writeConfig(t, "ocr_providers: [unclosed\n")
		if _, err := NewManager(configFile); err == nil {
			t.Fatal("expected error for invalid yaml")
		}
	})
}

func TestToProviderRegistryConfig(t *testing.T) {
	t.Setenv("TEST_MISTRAL_KEY", "mk-123")
	t.Setenv("TEST_CF_ACCOUNT", "acct")
	t.Setenv("TEST_DEVICE", "cuda:0")

	cfg := &Config{
		OCRProviders: map[string]ProviderCfg{
			"mistral": {Type: "mistral-ocr", APIKey: "${TEST_MISTRAL_KEY}", RateLimit: 6, Enabled: true},
		},
		ASRProviders: map[string]ProviderCfg{
			"cloudflare": {Type: "cloudflare-whisper", APIKey: "literal", Account: "${TEST_CF_ACCOUNT}", Enabled: true},
			"local": {
				Type:           "exec",
				Command:        "python3 asr.py",
				Env:            map[string]string{"device": "${TEST_DEVICE}", "hf_home": "/override"},
				TimeoutSeconds: 30,
				Enabled:        true,
			},
		},
		TTSProviders: map[string]ProviderCfg{
			"qwen": {Type: "openai-tts", Voice: "Vivian", Format: "wav", Enabled: true},
		},
	}
	cacheEnv := map[string]string{"MODELSCOPE_CACHE": "/cache", "HF_HOME": "/cache"}

	rc := cfg.ToProviderRegistryConfig(cacheEnv)

	if got := rc.OCRProviders["mistral"]; got.APIKey != "mk-123" || got.RateLimit != 6 {
		t.Errorf("mistral = %+v", got)
	}
	if got := rc.ASRProviders["cloudflare"]; got.APIKey != "literal" || got.Account != "acct" {
		t.Errorf("cloudflare = %+v", got)
	}
	if rc.ASRProviders["cloudflare"].Env != nil {
		t.Error("cache env should only be given to exec providers")
	}

	local := rc.ASRProviders["local"]
	if local.Timeout != 30*time.Second {
		t.Errorf("timeout = %v", local.Timeout)
	}
	want := map[string]string{"MODELSCOPE_CACHE": "/cache", "HF_HOME": "/override", "DEVICE": "cuda:0"}
	for k, v := range want {
		if local.Env[k] != v {
			t.Errorf("env[%s] = %q, want %q", k, local.Env[k], v)
		}
	}
	if cacheEnv["HF_HOME"] != "/cache" {
		t.Error("cache env map was modified")
	}

	if got := rc.TTSProviders["qwen"]; got.Type != providers.TypeOpenAITTS || got.Voice != "Vivian" {
		t.Errorf("qwen = %+v", got)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("failed to load written config: %v", err)
	}
	cfg := mgr.Get()
	def := DefaultConfig()
	if cfg.Defaults != def.Defaults {
		t.Errorf("defaults = %+v, want %+v", cfg.Defaults, def.Defaults)
	}
	if len(cfg.ASRProviders) != len(def.ASRProviders) {
		t.Errorf("got %d ASR providers, want %d", len(cfg.ASRProviders), len(def.ASRProviders))
	}
	if mgr.ConfigFileUsed() != path {
		t.Errorf("ConfigFileUsed() = %s", mgr.ConfigFileUsed())
	}
}

func TestManager_OnChange_Multiple(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "defaults:\n  speaker: Ryan\n"))
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	if len(mgr.callbacks) != 3 {
		t.Errorf("expected 3 callbacks, got %d", len(mgr.callbacks))
	}
	mgr.mu.RUnlock()
}

func TestManager_Get_ThreadSafe(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "defaults:\n  speaker: Ryan\n"))
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				cfg := mgr.Get()
				_ = cfg.Defaults.Speaker
			}
			done <- struct{}{}
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestManager_WatchConfig(t *testing.T) {
	configFile := writeConfig(t, "defaults:\n  speaker: Ryan\n")

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	if got := mgr.Get().Defaults.Speaker; got != "Ryan" {
		t.Errorf("initial value mismatch: expected Ryan, got %s", got)
	}

	var callbackCount atomic.Int32
	var lastValue atomic.Value

	mgr.OnChange(func(cfg *Config) {
		callbackCount.Add(1)
		lastValue.Store(cfg.Defaults.Speaker)
	})

	mgr.WatchConfig()

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(configFile, []byte("defaults:\n  speaker: Serena\n"), 0644); err != nil {
		t.Fatalf("failed to write updated config file: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if v, _ := lastValue.Load().(string); v == "Serena" {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if callbackCount.Load() == 0 {
		t.Fatal("callback was not invoked after config file change")
	}
	if got := mgr.Get().Defaults.Speaker; got != "Serena" {
		t.Errorf("config not updated: expected Serena, got %s", got)
	}
	if v := lastValue.Load(); v != "Serena" {
		t.Errorf("callback received wrong value: expected Serena, got %v", v)
	}
	if mgr.Get().Defaults.TTSProvider != "qwen" {
		t.Error("defaults lost after reload")
	}
}
