package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agent-tools/modelkit/internal/api"
	"github.com/agent-tools/modelkit/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string

	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "modelkit",
	Short: "Command-line wrappers for OCR, speech recognition and speech synthesis models",
	Long: `modelkit runs document OCR, speech recognition and speech synthesis
through configurable model backends: OpenAI-compatible servers (DeepSeek-OCR,
GLM-OCR, Fun-ASR, Qwen3-TTS), hosted APIs (Mistral OCR, Workers AI Whisper) and
local commands that load models from a hub cache.

OCR output uses the grounding markup of document models; "modelkit clean"
turns it into plain Markdown, text, HTML or a structured summary.`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.modelkit/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "modelkit home directory (default: ~/.modelkit)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "structured output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn, error",
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := api.SetOutputFormat(outputFormat); err != nil {
			return err
		}
		l, err := newLogger(logLevel)
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(logger)
		return nil
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(ocrCmd)
	rootCmd.AddCommand(asrCmd)
	rootCmd.AddCommand(ttsCmd)
}

// newLogger writes text logs to stderr so stdout stays free for results.
func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: l,
	})), nil
}
