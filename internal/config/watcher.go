package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// defaultPollInterval is how often the watcher looks at the config file.
// Kiosks get reconfigured by hand a few times a day at most, so seconds of
// reload latency are fine and polling spares an fsnotify dependency on the
// embedded hosts the kiosk runs on.
const defaultPollInterval = 5 * time.Second

// Watcher polls the kiosk's config file and reports edits through a
// callback, which is how persona, wake-phrase and log-level changes reach a
// running kiosk without a restart. An edit that fails validation is logged
// and ignored; the previous config stays in effect.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)

	mu        sync.Mutex
	current   *Config
	seenMtime time.Time
	seenHash  [sha256.Size]byte

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval overrides the poll interval. Default 5s.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads the config at path and starts polling it for edits.
// onChange runs on the watcher's goroutine with the previous and the new
// config whenever the file's content changes to something valid.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: defaultPollInterval,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, hash, mtime, err := w.snapshot()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current = cfg
	w.seenHash = hash
	w.seenMtime = mtime

	go w.poll()
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ends polling. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.scan()
		}
	}
}

// scan reloads the file when its mtime moved, and fires onChange when the
// content hash moved too. The mtime gate avoids hashing an untouched file
// every tick.
func (w *Watcher) scan() {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config file unreadable, keeping current config", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	mtime := w.seenMtime
	w.mu.Unlock()
	if info.ModTime().Equal(mtime) {
		return
	}

	cfg, hash, newMtime, err := w.snapshot()
	if err != nil {
		slog.Warn("config edit rejected, keeping current config", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	if hash == w.seenHash {
		// Touched but identical, e.g. a save with no edit.
		w.seenMtime = newMtime
		w.mu.Unlock()
		return
	}
	old := w.current
	w.current = cfg
	w.seenHash = hash
	w.seenMtime = newMtime
	w.mu.Unlock()

	slog.Info("config reloaded", "path", w.path)

	// Outside the lock so the callback may call Current.
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
}

// snapshot reads, hashes and validates the file in one pass.
func (w *Watcher) snapshot() (*Config, [sha256.Size]byte, time.Time, error) {
	var none [sha256.Size]byte

	f, err := os.Open(w.path)
	if err != nil {
		return nil, none, time.Time{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, none, time.Time{}, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, none, time.Time{}, err
	}

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, none, time.Time{}, err
	}
	return cfg, sha256.Sum256(data), info.ModTime(), nil
}
