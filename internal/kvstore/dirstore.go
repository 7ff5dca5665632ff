package kvstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// tempPrefix marks in-flight writes. QueryEscape only ever emits '%'
// followed by two hex digits, so no key can escape to a name with this
// prefix.
const tempPrefix = "%tmp-"

// DirStore is a Store backed by one file per key in a flat directory.
//
// Keys are percent-encoded to produce filesystem-safe file names, so the
// mapping is reversible and the directory stays human-inspectable. Writes go
// through a temp file plus rename so readers never observe a partial value.
type DirStore struct {
	dir      string
	capacity int64

	mu    sync.Mutex
	usage int64 // -1 when the cached total is stale
}

// NewDirStore creates a file-backed store rooted at dir.
//
// A capacity of 0 means unbounded. The directory is created if missing.
func NewDirStore(dir string, capacity int64) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &DirStore{dir: dir, capacity: capacity, usage: -1}, nil
}

// Get implements [Store].
func (s *DirStore) Get(key string) (string, bool, error) {
	data, err := os.ReadFile(s.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return string(data), true, nil
}

// Set implements [Store].
func (s *DirStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capacity > 0 {
		used, err := s.usedLocked()
		if err != nil {
			return err
		}
		if prev, err := os.Stat(s.pathFor(key)); err == nil {
			used -= int64(prev.Size()) + int64(len(key))
		}
		if used+int64(len(key)+len(value)) > s.capacity {
			return ErrCapacity
		}
	}

	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.pathFor(key)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to persist key %q: %w", key, err)
	}
	s.usage = -1
	return nil
}

// Remove implements [Store].
func (s *DirStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.pathFor(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove key %q: %w", key, err)
	}
	s.usage = -1
	return nil
}

// Keys implements [Store].
func (s *DirStore) Keys(prefix string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		key, err := url.QueryUnescape(e.Name())
		if err != nil {
			// Not one of ours, skip.
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// UsedBytes implements [Store].
func (s *DirStore) UsedBytes() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usedLocked()
}

// Watch invalidates the cached usage accounting when files in the store
// directory change outside this process, e.g. an operator pruning records by
// hand. It returns once the watcher is installed; events are handled in a
// goroutine until ctx is cancelled.
func (s *DirStore) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(s.dir); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) {
					s.mu.Lock()
					s.usage = -1
					s.mu.Unlock()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching store directory", "dir", s.dir, "err", err)
			}
		}
	}()
	return nil
}

func (s *DirStore) usedLocked() (int64, error) {
	if s.usage >= 0 {
		return s.usage, nil
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read store directory: %w", err)
	}
	var total int64
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		key, err := url.QueryUnescape(e.Name())
		if err != nil {
			continue
		}
		total += int64(len(key)) + info.Size()
	}
	s.usage = total
	return total, nil
}

func (s *DirStore) pathFor(key string) string {
	return filepath.Join(s.dir, url.QueryEscape(key))
}
