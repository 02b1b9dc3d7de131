package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agent-tools/modelkit/internal/api"
	"github.com/agent-tools/modelkit/internal/config"
	"github.com/agent-tools/modelkit/internal/home"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration",
	Long: `Write the default configuration to --config, or to <home>/config.yaml.
An existing file is kept unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		path := cfgFile
		if path == "" {
			path = h.ConfigPath()
		}
		if !configForce && fileExists(path) {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

type configView struct {
	File      string         `json:"file,omitempty" yaml:"file,omitempty"`
	Home      string         `json:"home" yaml:"home"`
	Config    *config.Config `json:"config" yaml:"config"`
	Providers providerNames  `json:"registered" yaml:"registered"`
}

type providerNames struct {
	OCR []string `json:"ocr" yaml:"ocr"`
	ASR []string `json:"asr" yaml:"asr"`
	TTS []string `json:"tts" yaml:"tts"`
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file and MODELKIT_*
environment overrides are merged, plus the providers that registered. Providers
missing from "registered" are disabled or lack credentials.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		return api.Output(cmd.OutOrStdout(), configView{
			File:   a.cfg.ConfigFileUsed(),
			Home:   a.home.Path(),
			Config: a.cfg.Get(),
			Providers: providerNames{
				OCR: a.registry.ListOCR(),
				ASR: a.registry.ListASR(),
				TTS: a.registry.ListTTS(),
			},
		})
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configInitCmd, configShowCmd)
}
