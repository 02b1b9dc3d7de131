package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// CheckFFmpeg checks if ffmpeg and ffprobe are available.
func CheckFFmpeg() error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return fmt.Errorf("ffprobe not found in PATH: %w", err)
	}
	return nil
}

// ConvertForRecognizer re-encodes any ffmpeg-readable input as 16 kHz mono
// 16-bit PCM WAV at outputPath.
func ConvertForRecognizer(ctx context.Context, inputPath, outputPath string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-i", inputPath,
		"-ar", fmt.Sprint(RecognizerSampleRate),
		"-ac", fmt.Sprint(RecognizerChannels),
		"-c:a", "pcm_s16le",
		"-y",
		outputPath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, string(output))
	}
	return nil
}

// LoadForRecognizer returns the audio at path as a 16 kHz mono clip,
// converting through ffmpeg only when the file is not already in that format.
func LoadForRecognizer(ctx context.Context, path string) (*Clip, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		if clip, err := ReadWAV(path); err == nil && clip.IsRecognizerFormat() {
			return clip, nil
		}
	}

	dir, err := os.MkdirTemp("", "modelkit_audio_*")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	converted := filepath.Join(dir, "converted.wav")
	if err := ConvertForRecognizer(ctx, path, converted); err != nil {
		return nil, err
	}
	return ReadWAV(converted)
}

// Concat joins audio files with ffmpeg's concat demuxer without re-encoding.
func Concat(ctx context.Context, inputFiles []string, outputPath string) error {
	if len(inputFiles) == 0 {
		return fmt.Errorf("no input files provided")
	}

	// Single file case - just copy
	if len(inputFiles) == 1 {
		data, err := os.ReadFile(inputFiles[0])
		if err != nil {
			return fmt.Errorf("failed to read single input file: %w", err)
		}
		return os.WriteFile(outputPath, data, 0644)
	}

	listPath := outputPath + ".txt"
	var lines []string
	for _, f := range inputFiles {
		abs, err := filepath.Abs(f)
		if err != nil {
			abs = f
		}
		// concat demuxer quoting
		escaped := strings.ReplaceAll(abs, "'", "'\\''")
		lines = append(lines, fmt.Sprintf("file '%s'", escaped))
	}
	if err := os.WriteFile(listPath, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return fmt.Errorf("failed to create concat list: %w", err)
	}
	defer os.Remove(listPath)

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y",
		outputPath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, string(output))
	}
	return nil
}

// ProbeDuration uses ffprobe to get the duration of an audio file.
func ProbeDuration(ctx context.Context, path string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	var seconds float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(output)), "%f", &seconds); err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// Duration returns the length of the file at path. WAV files are measured
// directly; anything else goes through ffprobe.
func Duration(ctx context.Context, path string) (time.Duration, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		if clip, err := ReadWAV(path); err == nil {
			return clip.Duration(), nil
		}
	}
	return ProbeDuration(ctx, path)
}
