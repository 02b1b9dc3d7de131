package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agent-tools/modelkit/internal/api"
	"github.com/agent-tools/modelkit/internal/asr"
)

var (
	asrProvider  string
	asrLanguage  string
	asrHotwords  []string
	asrNoITN     bool
	asrStream    bool
	asrChunkSize time.Duration
	asrDetails   bool
)

var asrCmd = &cobra.Command{
	Use:   "asr <audio> [output]",
	Short: "Transcribe an audio file",
	Long: `Transcribe speech in an audio file.

With --stream, growing windows of the audio are transcribed and each partial
result is printed on its own line as it arrives; the last line is the full
transcript. Non-WAV input needs ffmpeg.

Examples:
  modelkit asr meeting.wav
  modelkit asr meeting.mp3 meeting.txt --language 英文
  modelkit asr call.wav --hotword 魔搭 --hotword 通义
  modelkit asr call.wav --stream --chunk-size 1s
  modelkit asr call.wav --details -o json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := loadApp()
		if err != nil {
			return err
		}
		svc, err := a.asrService(asrProvider)
		if err != nil {
			return err
		}
		opts := asr.Options{
			Language: pick(asrLanguage, a.cfg.Get().Defaults.Language),
			Hotwords: asrHotwords,
			ITN:      !asrNoITN,
		}
		var outPath string
		if len(args) == 2 {
			outPath = args[1]
		}

		if asrStream {
			texts, errc := svc.TranscribeStream(ctx, args[0], asr.StreamOptions{Options: opts, ChunkSize: asrChunkSize})
			var last string
			for text := range texts {
				fmt.Fprintln(cmd.OutOrStdout(), text)
				last = text
			}
			if err := <-errc; err != nil {
				return err
			}
			if outPath != "" {
				return api.WriteText(outPath, last)
			}
			return nil
		}

		if asrDetails {
			transcript, err := svc.TranscribeFile(ctx, args[0], opts)
			if err != nil {
				return err
			}
			if outPath != "" {
				if err := api.WriteText(outPath, transcript.Text); err != nil {
					return err
				}
			}
			return api.Output(cmd.OutOrStdout(), transcriptView{
				Text:       transcript.Text,
				Language:   transcript.Language,
				Duration:   transcript.Duration.Seconds(),
				SampleRate: transcript.SampleRate,
			})
		}

		text, err := svc.Transcribe(ctx, args[0], opts)
		if err != nil {
			return err
		}
		return api.WriteText(outPath, text)
	},
}

// transcriptView reports durations in seconds.
type transcriptView struct {
	Text       string  `json:"text" yaml:"text"`
	Language   string  `json:"language" yaml:"language"`
	Duration   float64 `json:"duration" yaml:"duration"`
	SampleRate int     `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
}

var asrLanguagesModel string

var asrLanguagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List recognition languages",
	Long: `List the languages a recognizer model accepts. Multilingual (MLT) models
accept 31 languages; the base model accepts 中文, 英文 and 日文.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return api.Output(cmd.OutOrStdout(), asr.SupportedLanguages(asrLanguagesModel))
	},
}

func init() {
	asrCmd.Flags().StringVar(&asrProvider, "provider", "", "ASR provider name (default: defaults.asr_provider)")
	asrCmd.Flags().StringVar(&asrLanguage, "language", "", "recognition language, e.g. 中文, 英文 (default: defaults.language)")
	asrCmd.Flags().StringArrayVar(&asrHotwords, "hotword", nil, "term to bias recognition toward (repeatable)")
	asrCmd.Flags().BoolVar(&asrNoITN, "no-itn", false, "disable inverse text normalization")
	asrCmd.Flags().BoolVar(&asrStream, "stream", false, "print partial transcripts while decoding")
	asrCmd.Flags().DurationVar(&asrChunkSize, "chunk-size", asr.DefaultChunkSize, "window growth step for --stream")
	asrCmd.Flags().BoolVar(&asrDetails, "details", false, "print language, duration and sample rate with the text")

	asrLanguagesCmd.Flags().StringVar(&asrLanguagesModel, "model", "Fun-ASR-MLT-Nano-2512", "recognizer model name")

	asrCmd.AddCommand(asrLanguagesCmd)
}
