package config

import "sort"

// Config holds modelkit configuration.
// Stored at: {home}/config.yaml
type Config struct {
	OCRProviders map[string]ProviderCfg `mapstructure:"ocr_providers" yaml:"ocr_providers" json:"ocr_providers"`
	ASRProviders map[string]ProviderCfg `mapstructure:"asr_providers" yaml:"asr_providers" json:"asr_providers"`
	TTSProviders map[string]ProviderCfg `mapstructure:"tts_providers" yaml:"tts_providers" json:"tts_providers"`
	Defaults     DefaultsCfg            `mapstructure:"defaults" yaml:"defaults" json:"defaults"`
}

// ProviderCfg configures one model backend. Which fields matter depends on
// Type: "openai-vision", "mistral-ocr", "tesseract", "openai-whisper",
// "cloudflare-whisper", "openai-tts" or "exec". APIKey, Account, BaseURL and
// Env values support ${ENV_VAR} syntax.
type ProviderCfg struct {
	Type      string            `mapstructure:"type" yaml:"type" json:"type"`
	Model     string            `mapstructure:"model" yaml:"model,omitempty" json:"model,omitempty"`
	BaseURL   string            `mapstructure:"base_url" yaml:"base_url,omitempty" json:"base_url,omitempty"`
	APIKey    string            `mapstructure:"api_key" yaml:"api_key,omitempty" json:"api_key,omitempty"`
	Account   string            `mapstructure:"account" yaml:"account,omitempty" json:"account,omitempty"`          // Cloudflare account ID
	Prompt    string            `mapstructure:"prompt" yaml:"prompt,omitempty" json:"prompt,omitempty"`
	Voice     string            `mapstructure:"voice" yaml:"voice,omitempty" json:"voice,omitempty"`
	Format    string            `mapstructure:"format" yaml:"format,omitempty" json:"format,omitempty"`
	Speed     float64           `mapstructure:"speed" yaml:"speed,omitempty" json:"speed,omitempty"`
	Languages string            `mapstructure:"languages" yaml:"languages,omitempty" json:"languages,omitempty"`    // Tesseract, e.g. eng+chi_sim
	Command   string            `mapstructure:"command" yaml:"command,omitempty" json:"command,omitempty"`
	Env       map[string]string `mapstructure:"env" yaml:"env,omitempty" json:"env,omitempty"`
	RateLimit float64           `mapstructure:"rate_limit" yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"` // Requests per second

	TimeoutSeconds int  `mapstructure:"timeout_seconds" yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
	MaxRetries     int  `mapstructure:"max_retries" yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	Enabled        bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
}

// DefaultsCfg specifies default provider selections and options.
type DefaultsCfg struct {
	OCRProvider string `mapstructure:"ocr_provider" yaml:"ocr_provider" json:"ocr_provider"`
	ASRProvider string `mapstructure:"asr_provider" yaml:"asr_provider" json:"asr_provider"`
	TTSProvider string `mapstructure:"tts_provider" yaml:"tts_provider" json:"tts_provider"`
	OCRMode     string `mapstructure:"ocr_mode" yaml:"ocr_mode" json:"ocr_mode"`          // tiny, small, base, large
	PromptType  string `mapstructure:"prompt_type" yaml:"prompt_type" json:"prompt_type"` // markdown, ocr, free_ocr, parse_figure, describe
	Language    string `mapstructure:"language" yaml:"language" json:"language"`          // Recognition language
	Speaker     string `mapstructure:"speaker" yaml:"speaker" json:"speaker"`
	TTSLanguage string `mapstructure:"tts_language" yaml:"tts_language" json:"tts_language"`
	MaxWorkers  int    `mapstructure:"max_workers" yaml:"max_workers" json:"max_workers"` // Concurrent PDF pages
}

// DefaultConfig returns configuration with sensible defaults.
// Local servers are enabled; hosted APIs register once their keys are set.
func DefaultConfig() *Config {
	return &Config{
		OCRProviders: map[string]ProviderCfg{
			"deepseek": {
				Type:      "openai-vision",
				Model:     "deepseek-ai/DeepSeek-OCR",
				BaseURL:   "http://localhost:8000/v1",
				RateLimit: 10,
				Enabled:   true,
			},
			"mistral": {
				Type:      "mistral-ocr",
				APIKey:    "${MISTRAL_API_KEY}",
				RateLimit: 6.0,
				Enabled:   true,
			},
			"tesseract": {
				Type:      "tesseract",
				Languages: "eng+chi_sim",
				Enabled:   false,
			},
		},
		ASRProviders: map[string]ProviderCfg{
			"funasr": {
				Type:    "openai-whisper",
				Model:   "FunAudioLLM/Fun-ASR-Nano-2512",
				BaseURL: "http://localhost:8001/v1",
				Enabled: true,
			},
			"cloudflare": {
				Type:    "cloudflare-whisper",
				APIKey:  "${CLOUDFLARE_API_TOKEN}",
				Account: "${CLOUDFLARE_ACCOUNT_ID}",
				Enabled: true,
			},
			"local": {
				Type:           "exec",
				Command:        "python3 asr_recognize.py --json",
				TimeoutSeconds: 600,
				Enabled:        false,
			},
		},
		TTSProviders: map[string]ProviderCfg{
			"qwen": {
				Type:    "openai-tts",
				Model:   "Qwen/Qwen3-TTS-12Hz-1.7B-CustomVoice",
				BaseURL: "http://localhost:8002/v1",
				Voice:   "Vivian",
				Format:  "wav",
				Enabled: true,
			},
			"openai": {
				Type:    "openai-tts",
				Model:   "gpt-4o-mini-tts",
				APIKey:  "${OPENAI_API_KEY}",
				Voice:   "alloy",
				Format:  "mp3",
				Enabled: false,
			},
			"local": {
				Type:           "exec",
				Command:        "python3 tts_speak.py --json",
				TimeoutSeconds: 600,
				Enabled:        false,
			},
		},
		Defaults: DefaultsCfg{
			OCRProvider: "deepseek",
			ASRProvider: "funasr",
			TTSProvider: "qwen",
			OCRMode:     "base",
			PromptType:  "markdown",
			Language:    "中文",
			Speaker:     "Vivian",
			TTSLanguage: "Chinese",
			MaxWorkers:  4,
		},
	}
}

// GetOCRProvider returns an OCR provider config by name.
func (c *Config) GetOCRProvider(name string) (ProviderCfg, bool) {
	cfg, ok := c.OCRProviders[name]
	return cfg, ok
}

// GetASRProvider returns an ASR provider config by name.
func (c *Config) GetASRProvider(name string) (ProviderCfg, bool) {
	cfg, ok := c.ASRProviders[name]
	return cfg, ok
}

// GetTTSProvider returns a TTS provider config by name.
func (c *Config) GetTTSProvider(name string) (ProviderCfg, bool) {
	cfg, ok := c.TTSProviders[name]
	return cfg, ok
}

// EnabledOCRProviders returns the names of enabled OCR providers, sorted.
func (c *Config) EnabledOCRProviders() []string {
	return enabledNames(c.OCRProviders)
}

// EnabledASRProviders returns the names of enabled ASR providers, sorted.
func (c *Config) EnabledASRProviders() []string {
	return enabledNames(c.ASRProviders)
}

// EnabledTTSProviders returns the names of enabled TTS providers, sorted.
func (c *Config) EnabledTTSProviders() []string {
	return enabledNames(c.TTSProviders)
}

func enabledNames(m map[string]ProviderCfg) []string {
	var names []string
	for name, cfg := range m {
		if cfg.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
