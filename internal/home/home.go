package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the modelkit home directory.
	DefaultDirName = ".modelkit"

	// CacheDirName is the subdirectory where exec backends keep downloaded models.
	CacheDirName = "cache"

	// OutputsDirName is the subdirectory for generated files.
	OutputsDirName = "outputs"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the modelkit home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.modelkit).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// CachePath returns the model cache directory.
func (d *Dir) CachePath() string {
	return filepath.Join(d.path, CacheDirName)
}

// HubCachePath returns the hub cache inside the model cache.
func (d *Dir) HubCachePath() string {
	return filepath.Join(d.CachePath(), "hub")
}

// OutputsPath returns the directory for generated files.
func (d *Dir) OutputsPath() string {
	return filepath.Join(d.path, OutputsDirName)
}

// OutputPath returns a path for a generated file inside OutputsPath.
func (d *Dir) OutputPath(name string) string {
	return filepath.Join(d.OutputsPath(), name)
}

// CacheEnv returns the environment variables that point model hubs at the
// cache directory. Exec backends receive these.
func (d *Dir) CacheEnv() map[string]string {
	return map[string]string{
		"MODELSCOPE_CACHE":      d.CachePath(),
		"HF_HOME":               d.CachePath(),
		"HUGGINGFACE_HUB_CACHE": d.HubCachePath(),
	}
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	// Creating the hub cache also creates the parents
	if err := os.MkdirAll(d.HubCachePath(), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := os.MkdirAll(d.OutputsPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create outputs directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
