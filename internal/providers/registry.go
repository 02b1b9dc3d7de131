package providers

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"time"
)

// Provider types accepted in configuration.
const (
	TypeOpenAIVision      = "openai-vision"
	TypeMistralOCR        = "mistral-ocr"
	TypeTesseract         = "tesseract"
	TypeOpenAIWhisper     = "openai-whisper"
	TypeCloudflareWhisper = "cloudflare-whisper"
	TypeOpenAITTS         = "openai-tts"
	TypeExec              = "exec"
)

// Registry holds OCR, ASR and TTS providers by name.
// It supports config-driven instantiation, hot-reload, and thread-safe access.
type Registry struct {
	mu           sync.RWMutex
	ocrProviders map[string]OCRProvider
	asrProviders map[string]ASRProvider
	ttsProviders map[string]TTSProvider
	configs      map[string]ProviderConfig // keyed by kind/name
	logger       *slog.Logger
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		ocrProviders: make(map[string]OCRProvider),
		asrProviders: make(map[string]ASRProvider),
		ttsProviders: make(map[string]TTSProvider),
		configs:      make(map[string]ProviderConfig),
		logger:       slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// RegisterOCR registers an OCR provider by name.
func (r *Registry) RegisterOCR(name string, provider OCRProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ocrProviders[name] = provider
	r.logger.Debug("registered OCR provider", "name", name)
}

// RegisterASR registers an ASR provider by name.
func (r *Registry) RegisterASR(name string, provider ASRProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.asrProviders[name] = provider
	r.logger.Debug("registered ASR provider", "name", name)
}

// RegisterTTS registers a TTS provider by name.
func (r *Registry) RegisterTTS(name string, provider TTSProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ttsProviders[name] = provider
	r.logger.Debug("registered TTS provider", "name", name)
}

// GetOCR returns an OCR provider by name.
func (r *Registry) GetOCR(name string) (OCRProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	provider, ok := r.ocrProviders[name]
	if !ok {
		return nil, fmt.Errorf("OCR %w: %s", ErrNotFound, name)
	}
	return provider, nil
}

// GetASR returns an ASR provider by name.
func (r *Registry) GetASR(name string) (ASRProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	provider, ok := r.asrProviders[name]
	if !ok {
		return nil, fmt.Errorf("ASR %w: %s", ErrNotFound, name)
	}
	return provider, nil
}

// GetTTS returns a TTS provider by name.
func (r *Registry) GetTTS(name string) (TTSProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	provider, ok := r.ttsProviders[name]
	if !ok {
		return nil, fmt.Errorf("TTS %w: %s", ErrNotFound, name)
	}
	return provider, nil
}

// ListOCR returns the registered OCR provider names, sorted.
func (r *Registry) ListOCR() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.ocrProviders)
}

// ListASR returns the registered ASR provider names, sorted.
func (r *Registry) ListASR() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.asrProviders)
}

// ListTTS returns the registered TTS provider names, sorted.
func (r *Registry) ListTTS() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.ttsProviders)
}

// HasOCR checks if an OCR provider is registered.
func (r *Registry) HasOCR(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ocrProviders[name]
	return ok
}

// HasASR checks if an ASR provider is registered.
func (r *Registry) HasASR(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.asrProviders[name]
	return ok
}

// HasTTS checks if a TTS provider is registered.
func (r *Registry) HasTTS(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ttsProviders[name]
	return ok
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegistryConfig defines the providers to instantiate from config.
// This mirrors the config.Config structure for provider setup.
type RegistryConfig struct {
	OCRProviders map[string]ProviderConfig
	ASRProviders map[string]ProviderConfig
	TTSProviders map[string]ProviderConfig
}

// ProviderConfig matches config.ProviderCfg with ${ENV_VAR} references resolved.
type ProviderConfig struct {
	Type       string
	Model      string
	BaseURL    string
	APIKey     string
	Account    string // Cloudflare account ID
	Prompt     string // OCR default prompt
	Voice      string // TTS default voice
	Format     string // TTS output format
	Speed      float64
	Languages  string // Tesseract languages
	Command    string // Exec command line
	Env        map[string]string
	RateLimit  float64 // Requests per second
	Timeout    time.Duration
	MaxRetries int
	Enabled    bool
}

// requiresAPIKey reports whether a provider type is useless without a key.
// OpenAI-compatible types often point at self-hosted servers without auth.
func requiresAPIKey(providerType string) bool {
	switch providerType {
	case TypeMistralOCR, TypeCloudflareWhisper:
		return true
	default:
		return false
	}
}

func (c ProviderConfig) usable() bool {
	if !c.Enabled {
		return false
	}
	return !requiresAPIKey(c.Type) || c.APIKey != ""
}

// NewRegistryFromConfig creates a registry with providers based on configuration.
// Only enabled providers with the credentials their type needs are registered.
func NewRegistryFromConfig(cfg RegistryConfig, logger *slog.Logger) *Registry {
	r := NewRegistry()
	if logger != nil {
		r.logger = logger
	}
	r.Reload(cfg)
	return r
}

// Reload updates the registry based on new configuration.
// Providers that are no longer configured are unregistered and providers
// with changed settings are recreated.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reloadKind(r, "OCR", cfg.OCRProviders, r.ocrProviders, createOCRProvider)
	reloadKind(r, "ASR", cfg.ASRProviders, r.asrProviders, createASRProvider)
	reloadKind(r, "TTS", cfg.TTSProviders, r.ttsProviders, createTTSProvider)
}

// reloadKind must be called with r.mu held.
func reloadKind[P any](r *Registry, kind string, want map[string]ProviderConfig, have map[string]P, create func(ProviderConfig) (P, error)) {
	for name, provCfg := range want {
		key := kind + "/" + name
		if !provCfg.usable() {
			continue
		}
		if _, exists := have[name]; exists && reflect.DeepEqual(r.configs[key], provCfg) {
			continue
		}

		provider, err := create(provCfg)
		if err != nil {
			r.logger.Warn("skipping provider", "kind", kind, "name", name, "type", provCfg.Type, "error", err)
			continue
		}
		_, existed := have[name]
		have[name] = provider
		r.configs[key] = provCfg
		if existed {
			r.logger.Info("updated provider", "kind", kind, "name", name, "type", provCfg.Type)
		} else {
			r.logger.Debug("registered provider", "kind", kind, "name", name, "type", provCfg.Type)
		}
	}

	// Remove providers that are no longer configured
	for name := range have {
		key := kind + "/" + name
		if _, configured := r.configs[key]; !configured {
			// Registered by hand; leave it alone.
			continue
		}
		if provCfg, ok := want[name]; !ok || !provCfg.usable() {
			delete(have, name)
			delete(r.configs, key)
			r.logger.Info("unregistered provider", "kind", kind, "name", name)
		}
	}
}

func createOCRProvider(cfg ProviderConfig) (OCRProvider, error) {
	switch cfg.Type {
	case TypeOpenAIVision:
		return NewOpenAIVisionClient(OpenAIVisionConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Prompt:     cfg.Prompt,
			Timeout:    cfg.Timeout,
			RateLimit:  cfg.RateLimit,
			MaxRetries: cfg.MaxRetries,
		}), nil
	case TypeMistralOCR:
		return NewMistralOCRClient(MistralOCRConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Timeout:    cfg.Timeout,
			RateLimit:  cfg.RateLimit,
			MaxRetries: cfg.MaxRetries,
		}), nil
	case TypeTesseract:
		return NewTesseractClient(TesseractConfig{Languages: cfg.Languages})
	default:
		return nil, fmt.Errorf("unknown OCR provider type %q", cfg.Type)
	}
}

func createASRProvider(cfg ProviderConfig) (ASRProvider, error) {
	switch cfg.Type {
	case TypeOpenAIWhisper:
		return NewOpenAIWhisperClient(OpenAIWhisperConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		}), nil
	case TypeCloudflareWhisper:
		return NewCloudflareWhisperClient(CloudflareWhisperConfig{
			Account:    cfg.Account,
			Token:      cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		}), nil
	case TypeExec:
		return NewExecASR(ExecConfig{
			Command:    cfg.Command,
			Env:        cfg.Env,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		})
	default:
		return nil, fmt.Errorf("unknown ASR provider type %q", cfg.Type)
	}
}

func createTTSProvider(cfg ProviderConfig) (TTSProvider, error) {
	switch cfg.Type {
	case TypeOpenAITTS:
		return NewOpenAITTSClient(OpenAITTSConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Voice:      cfg.Voice,
			Format:     cfg.Format,
			Speed:      cfg.Speed,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		}), nil
	case TypeExec:
		return NewExecTTS(ExecConfig{
			Command:    cfg.Command,
			Env:        cfg.Env,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		})
	default:
		return nil, fmt.Errorf("unknown TTS provider type %q", cfg.Type)
	}
}
