// Package audio reads, windows and writes PCM WAV data, and shells out to
// ffmpeg for format conversion and concatenation.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Recognizers expect 16 kHz mono 16-bit PCM.
const (
	RecognizerSampleRate = 16000
	RecognizerChannels   = 1
	RecognizerBitDepth   = 16
)

// ErrNotWAV is returned when the input is not a PCM WAV file.
var ErrNotWAV = errors.New("not a valid PCM WAV file")

// Clip is decoded PCM audio. Samples are interleaved by channel.
type Clip struct {
	Samples    []int
	SampleRate int
	Channels   int
	BitDepth   int
}

// DecodeWAV reads a whole WAV stream.
func DecodeWAV(r io.ReadSeeker) (*Clip, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, ErrNotWAV
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode pcm: %w", err)
	}
	return &Clip{
		Samples:    buf.Data,
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
	}, nil
}

// DecodeWAVBytes decodes an in-memory WAV file.
func DecodeWAVBytes(data []byte) (*Clip, error) {
	return DecodeWAV(bytes.NewReader(data))
}

// ReadWAV decodes the WAV file at path.
func ReadWAV(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	clip, err := DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return clip, nil
}

// Frames returns the number of sample frames.
func (c *Clip) Frames() int {
	if c.Channels <= 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

// Duration returns the clip length.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

// IsRecognizerFormat reports whether the clip is already 16 kHz mono 16-bit.
func (c *Clip) IsRecognizerFormat() bool {
	return c.SampleRate == RecognizerSampleRate &&
		c.Channels == RecognizerChannels &&
		c.BitDepth == RecognizerBitDepth
}

// Prefix returns the first d of the clip, sharing the sample slice.
// A d past the end returns the whole clip.
func (c *Clip) Prefix(d time.Duration) *Clip {
	frames := int(d * time.Duration(c.SampleRate) / time.Second)
	if frames < 0 {
		frames = 0
	}
	if frames > c.Frames() {
		frames = c.Frames()
	}
	return &Clip{
		Samples:    c.Samples[:frames*c.Channels],
		SampleRate: c.SampleRate,
		Channels:   c.Channels,
		BitDepth:   c.BitDepth,
	}
}

// Encode writes the clip as a PCM WAV stream.
func (c *Clip) Encode(w io.WriteSeeker) error {
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: c.Channels, SampleRate: c.SampleRate},
		Data:           c.Samples,
		SourceBitDepth: c.BitDepth,
	}
	enc := wav.NewEncoder(w, c.SampleRate, c.BitDepth, c.Channels, 1)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

// WAVBytes encodes the clip into memory.
func (c *Clip) WAVBytes() ([]byte, error) {
	ws := &memWriteSeeker{}
	if err := c.Encode(ws); err != nil {
		return nil, err
	}
	return ws.buf, nil
}

// WriteFile encodes the clip to path.
func (c *Clip) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := c.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// IsWAV sniffs the RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE"))
}

// memWriteSeeker is the in-memory io.WriteSeeker the WAV encoder needs to
// patch chunk sizes after writing.
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		if end > cap(m.buf) {
			grown := make([]byte, end, 2*end)
			copy(grown, m.buf)
			m.buf = grown
		} else {
			m.buf = m.buf[:end]
		}
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(m.pos)
	case io.SeekEnd:
		base = int64(len(m.buf))
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	next := base + offset
	if next < 0 {
		return 0, errors.New("negative position")
	}
	m.pos = int(next)
	return next, nil
}
