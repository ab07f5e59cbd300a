// Package manifest serves the agent manifest file echoed by GET /manifest.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrNotFound is returned when the manifest file does not exist.
var ErrNotFound = errors.New("manifest not found")

// Source reads the manifest at a fixed path. Without Watch every Load reads
// the file; while Watch runs, the parsed document is cached until the file
// changes.
type Source struct {
	path string

	mu       sync.RWMutex
	watching bool
	cached   json.RawMessage
	gen      uint64
}

// NewSource creates a source for path.
func NewSource(path string) *Source {
	return &Source{path: filepath.Clean(path)}
}

// Path returns the manifest location.
func (s *Source) Path() string { return s.path }

// Load returns the manifest document. A missing file yields ErrNotFound;
// unreadable or malformed files yield other errors.
func (s *Source) Load() (json.RawMessage, error) {
	s.mu.RLock()
	cached, gen := s.cached, s.gen
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var doc json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path, err)
	}

	// A change seen while reading leaves the cache empty.
	s.mu.Lock()
	if s.watching && s.gen == gen {
		s.cached = doc
	}
	s.mu.Unlock()
	return doc, nil
}

// Invalidate drops the cached document.
func (s *Source) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.gen++
	s.mu.Unlock()
}

// Watch enables caching and drops the cache whenever the manifest changes.
// The parent directory is watched so that editors replacing the file and
// late creation are both seen. It blocks until ctx is done.
func (s *Source) Watch(ctx context.Context, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("manifest watch: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("manifest watch %s: %w", dir, err)
	}

	s.mu.Lock()
	s.watching = true
	s.cached = nil
	s.gen++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.watching = false
		s.cached = nil
		s.mu.Unlock()
	}()

	logger.Info("watching manifest", zap.String("path", s.path))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != s.path {
				continue
			}
			s.Invalidate()
			logger.Debug("manifest changed", zap.String("path", s.path), zap.String("op", ev.Op.String()))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.Invalidate()
			logger.Warn("manifest watch error", zap.Error(err))
		}
	}
}

// Watching reports whether Watch is active.
func (s *Source) Watching() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.watching
}
