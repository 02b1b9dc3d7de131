package tts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agent-tools/modelkit/internal/audio"
	"github.com/agent-tools/modelkit/internal/providers"
)

// Chunk is one synthesized sentence.
type Chunk struct {
	Seq  int // 1-based
	Text string
	*Speech
}

// Stream splits req.Text into sentences and synthesizes them in order,
// sending each chunk as soon as it is ready. Both channels are closed when
// the stream ends; at most one error is sent. req.OutputPath is ignored.
func (s *Service) Stream(ctx context.Context, req SpeakRequest) (<-chan Chunk, <-chan error) {
	out := make(chan Chunk)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		sentences := SplitSentences(req.Text, MaxChunkChars)
		if len(sentences) == 0 {
			errs <- fmt.Errorf("%w: text is required", providers.ErrInvalidRequest)
			return
		}
		s.logger.Debug("streaming synthesis", "chunks", len(sentences))

		for i, sentence := range sentences {
			result, err := s.generate(ctx, req, sentence)
			if err != nil {
				errs <- fmt.Errorf("chunk %d: %w", i+1, err)
				return
			}
			select {
			case out <- Chunk{Seq: i + 1, Text: sentence, Speech: speechFrom(result)}:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()
	return out, errs
}

// SaveStream synthesizes req.Text chunk by chunk and joins the audio into
// outputPath. WAV chunks with a common format are joined directly; anything
// else goes through ffmpeg. onChunk, if set, sees each chunk as it arrives.
func (s *Service) SaveStream(ctx context.Context, req SpeakRequest, outputPath string, onChunk func(Chunk)) (*Speech, error) {
	chunks, errs := s.Stream(ctx, req)

	var collected []Chunk
	for c := range chunks {
		if onChunk != nil {
			onChunk(c)
		}
		collected = append(collected, c)
	}
	if err := <-errs; err != nil {
		return nil, err
	}

	speech := &Speech{OutputPath: outputPath}
	for _, c := range collected {
		speech.CharCount += c.CharCount
		speech.Duration += c.Duration
	}
	speech.Format = collected[0].Format
	speech.SampleRate = collected[0].SampleRate

	if joined, ok := joinWAV(collected); ok {
		if err := joined.WriteFile(outputPath); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", outputPath, err)
		}
		speech.Duration = joined.Duration()
		return speech, nil
	}

	dir, err := os.MkdirTemp("", "modelkit_tts_chunks_*")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	ext := filepath.Ext(outputPath)
	if f := strings.TrimSpace(speech.Format); f != "" {
		ext = "." + f
	}
	files := make([]string, 0, len(collected))
	for _, c := range collected {
		path := filepath.Join(dir, fmt.Sprintf("chunk_%04d%s", c.Seq, ext))
		if err := os.WriteFile(path, c.Audio, 0o644); err != nil {
			return nil, fmt.Errorf("write chunk %d: %w", c.Seq, err)
		}
		files = append(files, path)
	}
	if err := audio.Concat(ctx, files, outputPath); err != nil {
		return nil, err
	}
	return speech, nil
}

// joinWAV concatenates WAV chunks that share sample rate, channels and
// bit depth.
func joinWAV(chunks []Chunk) (*audio.Clip, bool) {
	var joined *audio.Clip
	for _, c := range chunks {
		if !audio.IsWAV(c.Audio) {
			return nil, false
		}
		clip, err := audio.DecodeWAVBytes(c.Audio)
		if err != nil {
			return nil, false
		}
		if joined == nil {
			joined = &audio.Clip{SampleRate: clip.SampleRate, Channels: clip.Channels, BitDepth: clip.BitDepth}
		} else if clip.SampleRate != joined.SampleRate || clip.Channels != joined.Channels || clip.BitDepth != joined.BitDepth {
			return nil, false
		}
		joined.Samples = append(joined.Samples, clip.Samples...)
	}
	return joined, joined != nil
}
