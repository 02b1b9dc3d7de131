package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
)

const (
	ExecASRName = "exec-asr"
	ExecTTSName = "exec-tts"
)

// ExecConfig configures a provider backed by a local command, typically a
// script that loads the model from a hub cache.
type ExecConfig struct {
	Command    string            // Shell-words command line
	Env        map[string]string // Extra environment (cache locations, device)
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

type execCommand struct {
	args       []string
	env        []string
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration

	// Model processes are memory heavy; one invocation at a time.
	mu sync.Mutex
}

func newExecCommand(kind string, cfg ExecConfig) (*execCommand, error) {
	parser := shellwords.NewParser()
	parser.ParseEnv = true
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse %s command: %w", kind, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%s command is empty", kind)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}

	keys := make([]string, 0, len(cfg.Env))
	for k := range cfg.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+cfg.Env[k])
	}

	return &execCommand{
		args:       args,
		env:        env,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

// run executes the command with extra args and stdin, returning stdout.
func (c *execCommand) run(ctx context.Context, extra []string, stdin []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := append(append([]string{}, c.args[1:]...), extra...)
	cmd := exec.CommandContext(ctx, c.args[0], args...)
	cmd.Env = append(os.Environ(), c.env...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("command %s: %w", filepath.Base(c.args[0]), ctx.Err())
		}
		return "", fmt.Errorf("command %s failed: %w: %s", filepath.Base(c.args[0]), err, lastLines(stderr.String(), 5))
	}
	return stdout.String(), nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// ExecASR runs a recognizer command:
//
//	<command> --audio PATH [--language L] [--hotwords a,b] [--prompt TEXT] [--no-itn]
//
// and expects {"text": "...", "language": "...", "duration": 1.5} on stdout.
type ExecASR struct {
	cmd *execCommand
}

type execASROutput struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// NewExecASR parses the command line and returns the provider.
func NewExecASR(cfg ExecConfig) (*ExecASR, error) {
	cmd, err := newExecCommand("asr", cfg)
	if err != nil {
		return nil, err
	}
	return &ExecASR{cmd: cmd}, nil
}

func (e *ExecASR) Name() string                  { return ExecASRName }
func (e *ExecASR) MaxRetries() int               { return e.cmd.maxRetries }
func (e *ExecASR) RetryDelayBase() time.Duration { return e.cmd.retryDelay }

// Transcribe runs the command on the request audio. In-memory audio is
// written to a temporary file first.
func (e *ExecASR) Transcribe(ctx context.Context, req *ASRRequest) (*ASRResult, error) {
	start := time.Now()
	fail := func(err error) (*ASRResult, error) {
		return &ASRResult{ErrorMessage: err.Error(), ExecutionTime: time.Since(start)}, err
	}

	if req == nil || (len(req.Audio) == 0 && req.AudioPath == "") {
		return fail(fmt.Errorf("%w: audio is required", ErrInvalidRequest))
	}

	path := req.AudioPath
	if len(req.Audio) > 0 {
		ext := filepath.Ext(req.Filename)
		if ext == "" {
			ext = ".wav"
		}
		f, err := os.CreateTemp("", "modelkit_asr_*"+ext)
		if err != nil {
			return fail(fmt.Errorf("temp file: %w", err))
		}
		defer os.Remove(f.Name())
		if _, err := f.Write(req.Audio); err != nil {
			f.Close()
			return fail(fmt.Errorf("write temp audio: %w", err))
		}
		if err := f.Close(); err != nil {
			return fail(fmt.Errorf("close temp audio: %w", err))
		}
		path = f.Name()
	}

	args := []string{"--audio", path}
	if req.Language != "" {
		args = append(args, "--language", req.Language)
	}
	if len(req.Hotwords) > 0 {
		args = append(args, "--hotwords", strings.Join(req.Hotwords, ","))
	}
	if req.Prompt != "" {
		args = append(args, "--prompt", req.Prompt)
	}
	if !req.ITN {
		args = append(args, "--no-itn")
	}

	stdout, err := e.cmd.run(ctx, args, nil)
	if err != nil {
		return fail(err)
	}
	raw, err := parseCommandOutput(stdout, asrOutputSchema)
	if err != nil {
		return fail(err)
	}
	var out execASROutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return fail(fmt.Errorf("decode asr output: %w", err))
	}

	language := out.Language
	if language == "" {
		language = req.Language
	}
	return &ASRResult{
		Success:       true,
		Text:          strings.TrimSpace(out.Text),
		Language:      language,
		Duration:      time.Duration(out.Duration * float64(time.Second)),
		ExecutionTime: time.Since(start),
		RequestID:     req.RequestID,
	}, nil
}

// ExecTTS runs a synthesizer command. The request is written to stdin as
// JSON including an "output" path; the command either writes audio there and
// prints {"path": ...} or prints {"audio_base64": ...}.
type ExecTTS struct {
	cmd *execCommand
}

type execTTSInput struct {
	Text     string `json:"text"`
	Voice    string `json:"voice,omitempty"`
	Language string `json:"language,omitempty"`
	Instruct string `json:"instruct,omitempty"`
	Format   string `json:"format"`
	Output   string `json:"output"`
}

type execTTSOutput struct {
	AudioBase64 string `json:"audio_base64"`
	Path        string `json:"path"`
	Format      string `json:"format"`
	SampleRate  int    `json:"sample_rate"`
}

// NewExecTTS parses the command line and returns the provider.
func NewExecTTS(cfg ExecConfig) (*ExecTTS, error) {
	cmd, err := newExecCommand("tts", cfg)
	if err != nil {
		return nil, err
	}
	return &ExecTTS{cmd: cmd}, nil
}

func (e *ExecTTS) Name() string                  { return ExecTTSName }
func (e *ExecTTS) MaxRetries() int               { return e.cmd.maxRetries }
func (e *ExecTTS) RetryDelayBase() time.Duration { return e.cmd.retryDelay }

// Generate synthesizes req.Text with the command.
func (e *ExecTTS) Generate(ctx context.Context, req *TTSRequest) (*TTSResult, error) {
	start := time.Now()
	fail := func(err error) (*TTSResult, error) {
		return &TTSResult{ErrorMessage: err.Error(), ExecutionTime: time.Since(start)}, err
	}

	if req == nil || strings.TrimSpace(req.Text) == "" {
		return fail(fmt.Errorf("%w: text is required", ErrInvalidRequest))
	}
	format := req.Format
	if format == "" {
		format = "wav"
	}

	dir, err := os.MkdirTemp("", "modelkit_tts_*")
	if err != nil {
		return fail(fmt.Errorf("temp dir: %w", err))
	}
	defer os.RemoveAll(dir)

	input, err := json.Marshal(execTTSInput{
		Text:     req.Text,
		Voice:    req.Voice,
		Language: req.Language,
		Instruct: req.Instructions,
		Format:   format,
		Output:   filepath.Join(dir, "speech."+format),
	})
	if err != nil {
		return fail(fmt.Errorf("encode tts input: %w", err))
	}

	stdout, err := e.cmd.run(ctx, nil, input)
	if err != nil {
		return fail(err)
	}
	raw, err := parseCommandOutput(stdout, ttsOutputSchema)
	if err != nil {
		return fail(err)
	}
	var out execTTSOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return fail(fmt.Errorf("decode tts output: %w", err))
	}

	var audio []byte
	if out.AudioBase64 != "" {
		audio, err = base64.StdEncoding.DecodeString(out.AudioBase64)
		if err != nil {
			return fail(fmt.Errorf("decode audio: %w", err))
		}
	} else {
		audio, err = os.ReadFile(out.Path)
		if err != nil {
			return fail(fmt.Errorf("read synthesized audio: %w", err))
		}
	}
	if len(audio) == 0 {
		return fail(fmt.Errorf("%s: %w", e.Name(), ErrEmptyResult))
	}
	if out.Format != "" {
		format = out.Format
	}

	return &TTSResult{
		Success:       true,
		Audio:         audio,
		Format:        format,
		SampleRate:    out.SampleRate,
		CharCount:     len([]rune(req.Text)),
		ExecutionTime: time.Since(start),
		RequestID:     req.RequestID,
	}, nil
}

var (
	_ ASRProvider = (*ExecASR)(nil)
	_ TTSProvider = (*ExecTTS)(nil)
)
