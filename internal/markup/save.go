package markup

import (
	"fmt"
	"os"
)

// SaveOption configures SaveMarkdown.
type SaveOption func(*saveOptions)

type saveOptions struct {
	raw             bool
	keepCoordinates bool
}

// WithoutCleaning writes the text exactly as given.
func WithoutCleaning() SaveOption {
	return func(o *saveOptions) { o.raw = true }
}

// WithKeptCoordinates cleans the text but keeps detection coordinates.
func WithKeptCoordinates() SaveOption {
	return func(o *saveOptions) { o.keepCoordinates = true }
}

// SaveMarkdown writes text to path as UTF-8, cleaning it first unless
// WithoutCleaning is given. Existing files are overwritten.
func SaveMarkdown(text, path string, opts ...SaveOption) error {
	var o saveOptions
	for _, opt := range opts {
		opt(&o)
	}
	if !o.raw {
		var cleanOpts []CleanOption
		if o.keepCoordinates {
			cleanOpts = append(cleanOpts, WithCoordinates())
		}
		text = Clean(text, cleanOpts...)
	}
	return writeFile(path, text)
}

// SaveText writes the plain-text rendering of text to path.
func SaveText(text, path string) error {
	return writeFile(path, ToPlainText(text))
}

func writeFile(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
