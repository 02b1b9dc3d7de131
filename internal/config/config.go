package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/agent-tools/modelkit/internal/providers"
)

// EnvPrefix prefixes environment overrides, e.g. MODELKIT_DEFAULTS_OCR_PROVIDER.
const EnvPrefix = "MODELKIT"

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	v         *viper.Viper
	config    *Config
	callbacks []func(*Config)
	logger    *slog.Logger
}

// NewManager creates a new config manager and loads initial config.
// An empty cfgFile searches ./config.yaml then $HOME/.modelkit/config.yaml;
// a missing file is not an error.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
		logger:    slog.Default(),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	if err := setDefaults(cm.v, DefaultConfig()); err != nil {
		return err
	}

	cm.v.SetEnvPrefix(EnvPrefix)
	cm.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cm.v.AutomaticEnv()

	if cfgFile != "" {
		cm.v.SetConfigFile(cfgFile)
	} else {
		cm.v.SetConfigName("config")
		cm.v.SetConfigType("yaml")
		cm.v.AddConfigPath(".")
		cm.v.AddConfigPath("$HOME/.modelkit")
	}

	// Try to read config file (not required)
	if err := cm.v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) && !(cfgFile != "" && errors.Is(err, os.ErrNotExist)) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// setDefaults registers every leaf of cfg as a viper default so that a config
// file only needs the keys it changes and env overrides reach nested keys.
func setDefaults(v *viper.Viper, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("failed to parse defaults: %w", err)
	}
	for k, val := range tree {
		setDefaultTree(v, k, val)
	}
	return nil
}

func setDefaultTree(v *viper.Viper, key string, val any) {
	switch m := val.(type) {
	case map[any]any:
		for k, child := range m {
			setDefaultTree(v, key+"."+fmt.Sprint(k), child)
		}
	case map[string]any:
		for k, child := range m {
			setDefaultTree(v, key+"."+k, child)
		}
	default:
		v.SetDefault(key, val)
	}
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFileUsed returns the path of the loaded config file, if any.
func (cm *Manager) ConfigFileUsed() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// SetLogger sets the logger used for reload failures.
func (cm *Manager) SetLogger(logger *slog.Logger) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.logger = logger
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := cm.load()
		if err != nil {
			// Keep the previous config.
			cm.mu.RLock()
			logger := cm.logger
			cm.mu.RUnlock()
			logger.Warn("config reload failed", "file", e.Name, "error", err)
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envRef.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// ToProviderRegistryConfig converts the config to a format suitable for providers.Registry.
// It resolves ${ENV_VAR} references in credentials and exec environments.
// cacheEnv (model cache locations) is passed to exec providers underneath
// their own env entries.
func (c *Config) ToProviderRegistryConfig(cacheEnv map[string]string) providers.RegistryConfig {
	return providers.RegistryConfig{
		OCRProviders: toProviderConfigs(c.OCRProviders, cacheEnv),
		ASRProviders: toProviderConfigs(c.ASRProviders, cacheEnv),
		TTSProviders: toProviderConfigs(c.TTSProviders, cacheEnv),
	}
}

func toProviderConfigs(in map[string]ProviderCfg, cacheEnv map[string]string) map[string]providers.ProviderConfig {
	out := make(map[string]providers.ProviderConfig, len(in))
	for name, p := range in {
		pc := providers.ProviderConfig{
			Type:       p.Type,
			Model:      p.Model,
			BaseURL:    ResolveEnvVars(p.BaseURL),
			APIKey:     ResolveEnvVars(p.APIKey),
			Account:    ResolveEnvVars(p.Account),
			Prompt:     p.Prompt,
			Voice:      p.Voice,
			Format:     p.Format,
			Speed:      p.Speed,
			Languages:  p.Languages,
			Command:    p.Command,
			RateLimit:  p.RateLimit,
			Timeout:    time.Duration(p.TimeoutSeconds) * time.Second,
			MaxRetries: p.MaxRetries,
			Enabled:    p.Enabled,
		}
		if p.Type == providers.TypeExec {
			pc.Env = make(map[string]string, len(cacheEnv)+len(p.Env))
			for k, v := range cacheEnv {
				pc.Env[k] = v
			}
			// viper folds keys to lower case; environment names are upper case.
			for k, v := range p.Env {
				pc.Env[strings.ToUpper(k)] = ResolveEnvVars(v)
			}
		}
		out[name] = pc
	}
	return out
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# modelkit configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export MISTRAL_API_KEY=xxx CLOUDFLARE_API_TOKEN=xxx CLOUDFLARE_ACCOUNT_ID=xxx
# Any key can be overridden with MODELKIT_<SECTION>_<KEY>, e.g. MODELKIT_DEFAULTS_OCR_PROVIDER=mistral

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
