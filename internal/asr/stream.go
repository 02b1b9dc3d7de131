package asr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agent-tools/modelkit/internal/audio"
	"github.com/agent-tools/modelkit/internal/providers"
)

const (
	// DefaultChunkSize is the streaming window step.
	DefaultChunkSize = 720 * time.Millisecond

	// Trailing words (runes for unspaced scripts) dropped from
	// intermediate results.
	unstableTail = 5
)

// StreamOptions control TranscribeStream.
type StreamOptions struct {
	Options
	ChunkSize time.Duration // Defaults to DefaultChunkSize
}

// TranscribeStream re-decodes growing prefixes of the audio (chunk, 2*chunk,
// ... until the whole file is covered), passing each window the previous
// text as context. Intermediate results lose their unstable tail; the final
// result is complete. Only non-empty results are sent. Both channels are
// closed when the stream ends; at most one error is sent.
func (s *Service) TranscribeStream(ctx context.Context, path string, opts StreamOptions) (<-chan string, <-chan error) {
	out := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)
		if err := s.stream(ctx, path, opts, out); err != nil {
			errs <- err
		}
	}()
	return out, errs
}

func (s *Service) stream(ctx context.Context, path string, opts StreamOptions, out chan<- string) error {
	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}

	clip, err := audio.LoadForRecognizer(ctx, path)
	if err != nil {
		return fmt.Errorf("load audio: %w", err)
	}
	windows := windowEnds(clip.Duration(), chunk)
	s.logger.Debug("streaming transcription", "path", path, "audio", clip.Duration(), "windows", len(windows))

	prev := ""
	for i, end := range windows {
		data, err := clip.Prefix(end).WAVBytes()
		if err != nil {
			return fmt.Errorf("encode window: %w", err)
		}
		result, err := s.call(ctx, &providers.ASRRequest{
			Audio:    data,
			Filename: "window.wav",
			Prompt:   prev,
		}, opts.Options)
		if err != nil {
			return fmt.Errorf("window %d: %w", i+1, err)
		}

		text := strings.TrimSpace(result.Text)
		if i != len(windows)-1 {
			text = trimUnstableTail(text, unstableTail)
		}
		prev = text

		if text == "" {
			continue
		}
		select {
		case out <- text:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// windowEnds returns chunk, 2*chunk, ... up to the first value covering total.
func windowEnds(total, chunk time.Duration) []time.Duration {
	if total <= 0 || chunk <= 0 {
		return nil
	}
	var ends []time.Duration
	for end := chunk; ; end += chunk {
		ends = append(ends, end)
		if end >= total {
			return ends
		}
	}
}

// trimUnstableTail drops the last n words of space-delimited text, or the
// last n runes otherwise.
func trimUnstableTail(text string, n int) string {
	text = strings.TrimSpace(text)
	if strings.ContainsAny(text, " \t\n") {
		words := strings.Fields(text)
		if len(words) <= n {
			return ""
		}
		return strings.Join(words[:len(words)-n], " ")
	}
	runes := []rune(text)
	if len(runes) <= n {
		return ""
	}
	return string(runes[:len(runes)-n])
}
