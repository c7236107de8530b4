// Package clips serves the prerecorded prompt clips. A YAML manifest maps
// clip keys to WAV files; decoded clips are cached until the file changes.
package clips

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/chriscow/memora/pkg/audio"
	"github.com/chriscow/memora/pkg/audio/wav"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Manifest maps clip keys to files. Relative paths resolve against Dir.
type Manifest struct {
	Dir   string            `yaml:"dir"`
	Clips map[string]string `yaml:"clips"`
}

// LoadManifest reads path and overlays its entries on defaults. A missing
// file yields the defaults unchanged. A manifest without a dir resolves
// clips relative to its own location.
func LoadManifest(path string, defaults Manifest) (Manifest, error) {
	m := Manifest{Dir: defaults.Dir, Clips: make(map[string]string, len(defaults.Clips))}
	for k, v := range defaults.Clips {
		m.Clips[k] = v
	}
	if path == "" {
		return m, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return m, nil
		}
		return m, fmt.Errorf("read clip manifest: %w", err)
	}
	var file Manifest
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return m, fmt.Errorf("parse clip manifest: %w", err)
	}
	switch {
	case file.Dir == "":
		m.Dir = filepath.Dir(path)
	case filepath.IsAbs(file.Dir):
		m.Dir = file.Dir
	default:
		m.Dir = filepath.Join(filepath.Dir(path), file.Dir)
	}
	for k, v := range file.Clips {
		m.Clips[k] = v
	}
	return m, nil
}

// Library resolves clip keys to decoded audio.
type Library struct {
	dir   string
	files map[string]string
	log   *slog.Logger

	mu    sync.Mutex
	cache map[string][]audio.Frame
}

// New creates a library over the manifest.
func New(m Manifest, logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.Default()
	}
	return &Library{
		dir:   m.Dir,
		files: m.Clips,
		log:   logger.With("component", "clips"),
		cache: make(map[string][]audio.Frame),
	}
}

func (l *Library) path(key string) (string, bool) {
	f, ok := l.files[key]
	if !ok {
		return "", false
	}
	if filepath.IsAbs(f) {
		return f, true
	}
	return filepath.Join(l.dir, f), true
}

// Clip returns the frames for key. Unknown keys and missing files report
// ok=false; a file that exists but does not decode is an error.
func (l *Library) Clip(key string) ([]audio.Frame, bool, error) {
	l.mu.Lock()
	frames, hit := l.cache[key]
	l.mu.Unlock()
	if hit {
		return frames, true, nil
	}

	p, ok := l.path(key)
	if !ok {
		return nil, false, nil
	}
	_, frames, err := wav.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, true, fmt.Errorf("clip %s: %w", key, err)
	}

	l.mu.Lock()
	l.cache[key] = frames
	l.mu.Unlock()
	return frames, true, nil
}

// Problem describes a clip that cannot be played.
type Problem struct {
	Key  string
	Path string
	Err  error
}

// Check decodes every clip in the manifest and reports the ones that fail,
// sorted by key.
func (l *Library) Check() []Problem {
	keys := make([]string, 0, len(l.files))
	for k := range l.files {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []Problem
	for _, k := range keys {
		p, _ := l.path(k)
		_, ok, err := l.Clip(k)
		switch {
		case err != nil:
			out = append(out, Problem{Key: k, Path: p, Err: err})
		case !ok:
			out = append(out, Problem{Key: k, Path: p, Err: os.ErrNotExist})
		}
	}
	return out
}

// invalidate drops cached clips backed by path.
func (l *Library) invalidate(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k := range l.cache {
		if p, _ := l.path(k); filepath.Clean(p) == filepath.Clean(path) {
			delete(l.cache, k)
			l.log.Debug("clip changed", "key", k, "path", path)
		}
	}
}

// Watch invalidates cached clips whenever their files change, until ctx is
// done.
func (l *Library) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create clip watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(l.dir); err != nil {
		return fmt.Errorf("watch %s: %w", l.dir, err)
	}
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				l.invalidate(ev.Name)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.log.Warn("clip watcher error", "error", err)
		case <-ctx.Done():
			return nil
		}
	}
}
