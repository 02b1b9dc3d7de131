package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agent-tools/modelkit/internal/api"
	"github.com/agent-tools/modelkit/internal/providers"
	"github.com/agent-tools/modelkit/internal/tts"
)

var (
	ttsProvider string
	ttsSpeaker  string
	ttsLanguage string
	ttsInstruct string
	ttsEmotion  string
	ttsFormat   string
	ttsStream   bool
)

var ttsCmd = &cobra.Command{
	Use:   "tts <text> [output]",
	Short: "Synthesize speech from text",
	Long: `Synthesize speech. Text "-" reads from stdin; output defaults to
<home>/outputs/speech.<format>.

--emotion turns an emotion (开心, 愤怒, happy, angry, ...) into a style
instruction; --instruct sets one directly. --stream synthesizes sentence by
sentence, reporting each chunk as it finishes, and joins the audio at the end.

Examples:
  modelkit tts "你好，欢迎使用。" hello.wav
  modelkit tts "Hello there." hello.wav --speaker Ryan --language English
  modelkit tts "今天天气真好！" happy.wav --emotion 开心
  modelkit tts - chapter.wav --stream < chapter.txt`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		text := args[0]
		if text == "-" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			text = string(data)
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		svc, err := a.ttsService(ttsProvider)
		if err != nil {
			return err
		}

		outPath := a.home.OutputPath("speech." + pick(ttsFormat, "wav"))
		if len(args) == 2 {
			outPath = args[1]
		}
		format := ttsFormat
		if format == "" {
			format = strings.TrimPrefix(filepath.Ext(outPath), ".")
		}

		req := tts.SpeakRequest{
			Text:       text,
			Speaker:    ttsSpeaker,
			Language:   ttsLanguage,
			Instruct:   ttsInstruct,
			Format:     format,
			OutputPath: outPath,
		}

		var speech *tts.Speech
		switch {
		case ttsStream:
			if ttsEmotion != "" {
				req.Instruct = tts.EmotionInstruction(ttsEmotion)
			}
			speech, err = svc.SaveStream(ctx, req, outPath, func(c tts.Chunk) {
				logger.Info("chunk synthesized", "seq", c.Seq, "chars", c.CharCount, "duration", c.Duration)
			})
		case ttsEmotion != "":
			speech, err = svc.SpeakWithEmotion(ctx, req, ttsEmotion)
		default:
			speech, err = svc.Speak(ctx, req)
		}
		if err != nil {
			return err
		}

		return api.Output(cmd.OutOrStdout(), speechView{
			OutputPath: speech.OutputPath,
			Format:     speech.Format,
			SampleRate: speech.SampleRate,
			Duration:   speech.Duration.Seconds(),
			CharCount:  speech.CharCount,
		})
	},
}

// speechView reports durations in seconds.
type speechView struct {
	OutputPath string  `json:"output_path" yaml:"output_path"`
	Format     string  `json:"format" yaml:"format"`
	SampleRate int     `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
	Duration   float64 `json:"duration,omitempty" yaml:"duration,omitempty"`
	CharCount  int     `json:"char_count" yaml:"char_count"`
}

var ttsSpeakersCmd = &cobra.Command{
	Use:   "speakers",
	Short: "List preset speakers",
	Long: `List preset speakers with their native language. With --provider, the
voices the provider itself reports are listed instead, when it can.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if ttsProvider == "" {
			return api.Output(cmd.OutOrStdout(), tts.ListSpeakers())
		}
		a, err := loadApp()
		if err != nil {
			return err
		}
		provider, err := a.registry.GetTTS(ttsProvider)
		if err != nil {
			return err
		}
		lister, ok := provider.(providers.VoicesLister)
		if !ok {
			return fmt.Errorf("provider %s does not list voices", ttsProvider)
		}
		voices, err := lister.ListVoices(cmd.Context())
		if err != nil {
			return err
		}
		return api.Output(cmd.OutOrStdout(), voices)
	},
}

var ttsLanguagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List synthesis languages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return api.Output(cmd.OutOrStdout(), tts.SupportedLanguages())
	},
}

func init() {
	ttsCmd.Flags().StringVar(&ttsProvider, "provider", "", "TTS provider name (default: defaults.tts_provider)")
	ttsCmd.Flags().StringVar(&ttsSpeaker, "speaker", "", "speaker preset (default: defaults.speaker)")
	ttsCmd.Flags().StringVar(&ttsLanguage, "language", "", "synthesis language (default: defaults.tts_language)")
	ttsCmd.Flags().StringVar(&ttsInstruct, "instruct", "", "style instruction, e.g. 用愤怒的语气说")
	ttsCmd.Flags().StringVar(&ttsEmotion, "emotion", "", "emotion preset, overrides --instruct")
	ttsCmd.Flags().StringVar(&ttsFormat, "format", "", "audio format (default: from the output extension)")
	ttsCmd.Flags().BoolVar(&ttsStream, "stream", false, "synthesize sentence by sentence")

	ttsSpeakersCmd.Flags().StringVar(&ttsProvider, "provider", "", "list voices reported by this provider")

	ttsCmd.AddCommand(ttsSpeakersCmd, ttsLanguagesCmd)
}
