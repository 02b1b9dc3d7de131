package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agent-tools/modelkit/internal/api"
	"github.com/agent-tools/modelkit/internal/markup"
	"github.com/agent-tools/modelkit/internal/ocr"
	"github.com/agent-tools/modelkit/internal/providers"
)

var (
	ocrProvider        string
	ocrPromptType      string
	ocrPrompt          string
	ocrMode            string
	ocrFormat          string
	ocrKeepCoordinates bool
)

var ocrCmd = &cobra.Command{
	Use:   "ocr <image> [output]",
	Short: "Recognize a document image",
	Long: `Recognize a document image and print or save the result.

The prompt type selects what the model is asked to do (markdown, ocr, free_ocr,
parse_figure, describe); --prompt overrides it. The mode bounds the image size
sent to the model (tiny 512, small 640, base 1024, large 1280).

Examples:
  modelkit ocr scan.png
  modelkit ocr scan.png scan.md --mode large
  modelkit ocr chart.png --prompt-type parse_figure --format raw
  modelkit ocr invoice.jpg --format tables -o json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		svc, err := a.ocrService(ocrProvider)
		if err != nil {
			return err
		}
		opts, err := ocrOptions(a)
		if err != nil {
			return err
		}

		text, err := svc.Recognize(cmd.Context(), args[0], opts)
		if err != nil {
			return err
		}

		var outPath string
		if len(args) == 2 {
			outPath = args[1]
		}
		return writeRecognized(text, outPath)
	},
}

var ocrPDFCmd = &cobra.Command{
	Use:   "pdf <pdf> [outdir]",
	Short: "Recognize every page of a PDF",
	Long: `Render each PDF page with pdftoppm and recognize pages concurrently
(defaults.max_workers at a time). Pages are written as page_0001.md, ... into
outdir (default: <home>/outputs/<pdf name>).`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		svc, err := a.ocrService(ocrProvider)
		if err != nil {
			return err
		}
		opts, err := ocrOptions(a)
		if err != nil {
			return err
		}

		outDir := a.home.OutputPath(strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0])))
		if len(args) == 2 {
			outDir = args[1]
		}

		pages, err := svc.RecognizePDF(cmd.Context(), args[0], opts)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}

		ext := outputExt(ocrFormat)
		files := make([]string, 0, len(pages))
		for i, text := range pages {
			path := filepath.Join(outDir, ocr.PageFileName(i+1, ext))
			if err := writeRecognized(text, path); err != nil {
				return err
			}
			files = append(files, path)
		}
		return api.Output(cmd.OutOrStdout(), map[string]any{"pages": len(pages), "files": files})
	},
}

type batchEntry struct {
	Path   string `json:"path" yaml:"path"`
	Output string `json:"output,omitempty" yaml:"output,omitempty"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

// batchReport is the --details form of ocr batch output.
type batchReport struct {
	Images    []batchEntry                `json:"images" yaml:"images"`
	RateLimit providers.RateLimiterStatus `json:"rate_limit" yaml:"rate_limit"`
}

var (
	ocrBatchOutDir  string
	ocrBatchDetails bool
)

var ocrBatchCmd = &cobra.Command{
	Use:   "batch <images...>",
	Short: "Recognize several images, continuing past failures",
	Long: `Recognize images one after another. A failed image is reported and the
batch continues. Results are written next to each image (or into --out-dir)
with the format's extension. Exits non-zero if any image failed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		svc, err := a.ocrService(ocrProvider)
		if err != nil {
			return err
		}
		opts, err := ocrOptions(a)
		if err != nil {
			return err
		}
		if ocrBatchOutDir != "" {
			if err := os.MkdirAll(ocrBatchOutDir, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
		}

		var failed int
		entries := make([]batchEntry, 0, len(args))
		for _, r := range svc.BatchRecognize(cmd.Context(), args, opts) {
			entry := batchEntry{Path: r.Path}
			if r.Err != nil {
				failed++
				entry.Error = r.Err.Error()
				entries = append(entries, entry)
				continue
			}
			dir := filepath.Dir(r.Path)
			if ocrBatchOutDir != "" {
				dir = ocrBatchOutDir
			}
			base := strings.TrimSuffix(filepath.Base(r.Path), filepath.Ext(r.Path))
			entry.Output = filepath.Join(dir, base+outputExt(ocrFormat))
			if err := writeRecognized(r.Text, entry.Output); err != nil {
				failed++
				entry.Output = ""
				entry.Error = err.Error()
			}
			entries = append(entries, entry)
		}

		var out any = entries
		if ocrBatchDetails {
			out = batchReport{Images: entries, RateLimit: svc.RateLimiterStatus()}
		}
		if err := api.Output(cmd.OutOrStdout(), out); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d images failed", failed, len(args))
		}
		return nil
	},
}

var ocrWatchOutDir string

var ocrWatchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Recognize images as they appear in a directory",
	Long: `Watch a directory and recognize each image written to it, saving cleaned
Markdown as <name>.md next to the image (or into --out-dir). Config file changes
reload providers without restarting. Stop with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := loadApp()
		if err != nil {
			return err
		}

		reloaded := make(chan struct{}, 1)
		a.watchConfig(func() {
			select {
			case reloaded <- struct{}{}:
			default:
			}
		})

		for {
			svc, err := a.ocrService(ocrProvider)
			if err != nil {
				return err
			}
			opts, err := ocrOptions(a)
			if err != nil {
				return err
			}

			runCtx, cancel := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() {
				done <- svc.Watch(runCtx, args[0], ocr.WatchOptions{
					Options:         opts,
					OutDir:          ocrWatchOutDir,
					KeepCoordinates: ocrKeepCoordinates,
					OnResult: func(ev ocr.WatchEvent) {
						if ev.Err == nil {
							fmt.Fprintln(cmd.OutOrStdout(), ev.Output)
						}
					},
				})
			}()
			logger.Debug("watch provider", "provider", svc.Provider().Name())

			select {
			case err := <-done:
				cancel()
				return err
			case <-reloaded:
				cancel()
				<-done
				logger.Info("restarting watch with reloaded config")
			}
		}
	},
}

func init() {
	for _, c := range []*cobra.Command{ocrCmd, ocrPDFCmd, ocrBatchCmd, ocrWatchCmd} {
		c.Flags().StringVar(&ocrProvider, "provider", "", "OCR provider name (default: defaults.ocr_provider)")
		c.Flags().StringVar(&ocrPromptType, "prompt-type", "", "prompt preset: "+strings.Join(ocr.PromptTypes(), ", ")+" (default: defaults.prompt_type)")
		c.Flags().StringVar(&ocrPrompt, "prompt", "", "custom prompt, overrides --prompt-type")
		c.Flags().StringVar(&ocrMode, "mode", "", "resolution mode: tiny, small, base, large (default: defaults.ocr_mode)")
		c.Flags().BoolVar(&ocrKeepCoordinates, "keep-coordinates", false, "keep detection coordinates as inline code")
		if c != ocrWatchCmd {
			c.Flags().StringVar(&ocrFormat, "format", formatMarkdown, formatUsage)
		}
	}
	ocrBatchCmd.Flags().StringVar(&ocrBatchOutDir, "out-dir", "", "directory for results (default: next to each image)")
	ocrBatchCmd.Flags().BoolVar(&ocrBatchDetails, "details", false, "include the provider rate limiter status")
	ocrWatchCmd.Flags().StringVar(&ocrWatchOutDir, "out-dir", "", "directory for results (default: the watched directory)")

	ocrCmd.AddCommand(ocrPDFCmd, ocrBatchCmd, ocrWatchCmd)
}

func ocrOptions(a *app) (ocr.Options, error) {
	defaults := a.cfg.Get().Defaults
	mode, err := ocr.ParseMode(pick(ocrMode, defaults.OCRMode))
	if err != nil {
		return ocr.Options{}, err
	}
	return ocr.Options{
		PromptType: ocr.PromptType(pick(ocrPromptType, defaults.PromptType)),
		Prompt:     ocrPrompt,
		Mode:       mode,
	}, nil
}

// writeRecognized renders text with --format and writes it to path, or
// stdout when path is empty.
func writeRecognized(text, path string) error {
	if path != "" && (ocrFormat == "" || ocrFormat == formatMarkdown || ocrFormat == formatRaw) {
		var opts []markup.SaveOption
		switch {
		case ocrFormat == formatRaw:
			opts = append(opts, markup.WithoutCleaning())
		case ocrKeepCoordinates:
			opts = append(opts, markup.WithKeptCoordinates())
		}
		return markup.SaveMarkdown(text, path, opts...)
	}
	if path != "" && ocrFormat == formatText {
		return markup.SaveText(text, path)
	}
	out, err := render(text, ocrFormat, ocrKeepCoordinates)
	if err != nil {
		return err
	}
	return api.WriteText(path, out)
}
