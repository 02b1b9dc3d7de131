package main

import (
	"fmt"
	"os"

	"github.com/agent-tools/modelkit/internal/asr"
	"github.com/agent-tools/modelkit/internal/config"
	"github.com/agent-tools/modelkit/internal/home"
	"github.com/agent-tools/modelkit/internal/ocr"
	"github.com/agent-tools/modelkit/internal/providers"
	"github.com/agent-tools/modelkit/internal/tts"
)

// app bundles what model commands need: home dir, config and providers.
type app struct {
	home     *home.Dir
	cfg      *config.Manager
	registry *providers.Registry
}

func loadApp() (*app, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, err
	}

	file := cfgFile
	if file == "" && h.ConfigExists() {
		file = h.ConfigPath()
	}
	mgr, err := config.NewManager(file)
	if err != nil {
		return nil, err
	}
	mgr.SetLogger(logger)

	cfg := mgr.Get()
	registry := providers.NewRegistryFromConfig(cfg.ToProviderRegistryConfig(h.CacheEnv()), logger)

	return &app{home: h, cfg: mgr, registry: registry}, nil
}

// watchConfig reloads providers when the config file changes and then calls
// onReload, if set.
func (a *app) watchConfig(onReload func()) {
	a.cfg.OnChange(func(cfg *config.Config) {
		a.registry.Reload(cfg.ToProviderRegistryConfig(a.home.CacheEnv()))
		logger.Info("config reloaded", "file", a.cfg.ConfigFileUsed())
		if onReload != nil {
			onReload()
		}
	})
	a.cfg.WatchConfig()
}

func pick(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	return fallback
}

func (a *app) ocrService(name string) (*ocr.Service, error) {
	defaults := a.cfg.Get().Defaults
	name = pick(name, defaults.OCRProvider)
	if !a.registry.HasOCR(name) {
		cfg, ok := a.cfg.Get().GetOCRProvider(name)
		return nil, unavailable("ocr", name, cfg, ok, a.registry.ListOCR())
	}
	provider, err := a.registry.GetOCR(name)
	if err != nil {
		return nil, err
	}
	return ocr.NewService(ocr.Config{
		Provider: provider,
		Logger:   logger,
		Workers:  defaults.MaxWorkers,
	})
}

func (a *app) asrService(name string) (*asr.Service, error) {
	name = pick(name, a.cfg.Get().Defaults.ASRProvider)
	if !a.registry.HasASR(name) {
		cfg, ok := a.cfg.Get().GetASRProvider(name)
		return nil, unavailable("asr", name, cfg, ok, a.registry.ListASR())
	}
	provider, err := a.registry.GetASR(name)
	if err != nil {
		return nil, err
	}
	return asr.NewService(asr.Config{
		Provider: provider,
		Logger:   logger,
	})
}

func (a *app) ttsService(name string) (*tts.Service, error) {
	defaults := a.cfg.Get().Defaults
	name = pick(name, defaults.TTSProvider)
	if !a.registry.HasTTS(name) {
		cfg, ok := a.cfg.Get().GetTTSProvider(name)
		return nil, unavailable("tts", name, cfg, ok, a.registry.ListTTS())
	}
	provider, err := a.registry.GetTTS(name)
	if err != nil {
		return nil, err
	}
	return tts.NewService(tts.Config{
		Provider: provider,
		Logger:   logger,
		Speaker:  defaults.Speaker,
		Language: defaults.TTSLanguage,
	})
}

// unavailable explains why a provider name did not resolve to a registered
// provider. Enabled providers are skipped at registration when their
// credentials resolve to nothing.
func unavailable(kind, name string, cfg config.ProviderCfg, configured bool, registered []string) error {
	switch {
	case !configured:
		return fmt.Errorf("%s provider %q: %w (registered: %v)", kind, name, providers.ErrNotFound, registered)
	case !cfg.Enabled:
		return fmt.Errorf("%s provider %q is disabled in config (registered: %v)", kind, name, registered)
	default:
		return fmt.Errorf("%s provider %q (%s) could not be registered; check its credentials (registered: %v)",
			kind, name, cfg.Type, registered)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
