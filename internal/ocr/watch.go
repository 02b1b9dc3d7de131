package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/agent-tools/modelkit/internal/markup"
)

// DefaultSettleDelay lets writers finish a file before it is read.
const DefaultSettleDelay = 500 * time.Millisecond

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// IsImageFile reports whether path has an image extension.
func IsImageFile(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

// WatchEvent reports one processed file.
type WatchEvent struct {
	Path   string
	Output string
	Err    error
}

// WatchOptions configure Watch.
type WatchOptions struct {
	Options
	OutDir          string        // Defaults to the watched directory
	SettleDelay     time.Duration // Quiet period after the last write; defaults to DefaultSettleDelay
	KeepCoordinates bool
	OnReady         func() // Called once the directory is being watched
	OnResult        func(WatchEvent)
}

// watchedFile tracks one image between its first event and the end of its
// recognition. Writes seen while it is running mark it dirty so it runs again.
type watchedFile struct {
	timer   *time.Timer
	running bool
	dirty   bool
}

// Watch recognizes images created or rewritten in dir until ctx is done,
// saving each as cleaned Markdown named after the image.
func (s *Service) Watch(ctx context.Context, dir string, opts WatchOptions) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("watch dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch dir: %s is not a directory", dir)
	}
	outDir := opts.OutDir
	if outDir == "" {
		outDir = dir
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	s.logger.Info("watching for images", "dir", dir, "out_dir", outDir)

	delay := opts.SettleDelay
	if delay <= 0 {
		delay = DefaultSettleDelay
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]*watchedFile)
		closed  bool
		wg      sync.WaitGroup
		run     func(path string, f *watchedFile)
	)
	// schedule must be called with mu held.
	schedule := func(path string, f *watchedFile) {
		wg.Add(1)
		f.timer = time.AfterFunc(delay, func() { run(path, f) })
	}
	defer func() {
		mu.Lock()
		closed = true
		for _, f := range pending {
			if !f.running && f.timer.Stop() {
				wg.Done()
			}
		}
		mu.Unlock()
		wg.Wait()
	}()

	run = func(path string, f *watchedFile) {
		defer wg.Done()
		mu.Lock()
		f.running = true
		f.dirty = false
		mu.Unlock()

		s.processWatched(ctx, path, outDir, opts)

		mu.Lock()
		defer mu.Unlock()
		f.running = false
		if f.dirty && !closed && ctx.Err() == nil {
			f.dirty = false
			schedule(path, f)
			return
		}
		delete(pending, path)
	}

	if opts.OnReady != nil {
		opts.OnReady()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watcher error", "error", err)
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !IsImageFile(ev.Name) {
				continue
			}
			mu.Lock()
			switch f, ok := pending[ev.Name]; {
			case !ok:
				f = &watchedFile{}
				pending[ev.Name] = f
				schedule(ev.Name, f)
			case f.running:
				f.dirty = true
			case f.timer.Stop():
				f.timer.Reset(delay)
			default:
				// Fired but not yet running; it reads the file after this write.
			}
			mu.Unlock()
		}
	}
}

// processWatched recognizes one image and saves it as cleaned Markdown.
func (s *Service) processWatched(ctx context.Context, path, outDir string, opts WatchOptions) {
	out := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))+".md")
	event := WatchEvent{Path: path, Output: out}
	text, err := s.Recognize(ctx, path, opts.Options)
	if err == nil {
		var saveOpts []markup.SaveOption
		if opts.KeepCoordinates {
			saveOpts = append(saveOpts, markup.WithKeptCoordinates())
		}
		err = markup.SaveMarkdown(text, out, saveOpts...)
	}
	if err != nil {
		event.Output = ""
		event.Err = err
		s.logger.Warn("watch: recognition failed", "path", path, "error", err)
	} else {
		s.logger.Info("watch: saved", "path", path, "output", out)
	}
	if opts.OnResult != nil {
		opts.OnResult(event)
	}
}
