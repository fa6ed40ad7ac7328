package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vyrodovalexey/avabank/internal/observability"
)

const (
	fileBackend = "file"

	// DefaultWatchDebounce coalesces bursts of file system events.
	DefaultWatchDebounce = 50 * time.Millisecond
)

// FileStore persists values as a JSON object in a single file. Writes
// replace the file atomically and leave it readable by the owner only.
//
// With watching enabled, reads are served from memory and the cache is
// invalidated when the file changes, including changes made by other
// processes. Without watching, every read goes to disk.
type FileStore struct {
	path     string
	logger   observability.Logger
	watch    bool
	debounce time.Duration

	mu     sync.RWMutex
	cache  map[string]string
	cached bool
	closed bool
	// gen counts cache replacements and invalidations. A disk read only
	// fills the cache if gen has not moved since the read began.
	gen uint64

	writeMu sync.Mutex

	listenersMu sync.Mutex
	listeners   map[int]func()
	nextID      int

	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
	stoppedCh chan struct{}
	closeOnce sync.Once
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithFileLogger sets the logger.
func WithFileLogger(logger observability.Logger) FileOption {
	return func(s *FileStore) {
		s.logger = logger
	}
}

// WithWatch enables watching the file for external changes.
func WithWatch(enabled bool) FileOption {
	return func(s *FileStore) {
		s.watch = enabled
	}
}

// WithWatchDebounce sets the debounce delay for file events.
func WithWatchDebounce(d time.Duration) FileOption {
	return func(s *FileStore) {
		s.debounce = d
	}
}

// NewFileStore opens a file store at path, creating the parent directory.
func NewFileStore(path string, opts ...FileOption) (*FileStore, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, newStoreError(fileBackend, "open", "", err)
	}

	s := &FileStore{
		path:      absPath,
		logger:    observability.NopLogger(),
		debounce:  DefaultWatchDebounce,
		listeners: make(map[int]func()),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, newStoreError(fileBackend, "open", "", err)
	}

	if !s.watch {
		close(s.stoppedCh)
		return s, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, newStoreError(fileBackend, "watch", "", err)
	}
	// The file may not exist yet, so the directory is watched.
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, newStoreError(fileBackend, "watch", "", err)
	}
	s.watcher = watcher

	go s.watchLoop()

	s.logger.Debug("watching credential file", observability.String("path", absPath))

	return s, nil
}

// Path returns the absolute path of the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Get implements Reader.
func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return "", false, ErrStoreClosed
	}
	if s.watch && s.cached {
		v, ok := s.cache[key]
		s.mu.RUnlock()
		return v, ok, nil
	}
	gen := s.gen
	s.mu.RUnlock()

	values, err := s.load()
	if err != nil {
		return "", false, newStoreError(fileBackend, "get", key, err)
	}

	if s.watch {
		s.mu.Lock()
		if s.gen == gen && !s.cached {
			s.cache = values
			s.cached = true
		}
		s.mu.Unlock()
	}

	v, ok := values[key]
	return v, ok, nil
}

// Set implements Store.
func (s *FileStore) Set(_ context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return s.update("set", key, func(values map[string]string) bool {
		values[key] = value
		return true
	})
}

// Delete implements Store.
func (s *FileStore) Delete(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return s.update("delete", key, func(values map[string]string) bool {
		if _, ok := values[key]; !ok {
			return false
		}
		delete(values, key)
		return true
	})
}

// OnChange implements ChangeNotifier. Callbacks only fire when watching.
func (s *FileStore) OnChange(fn func()) func() {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

// Close stops the watcher. It is safe to call more than once.
func (s *FileStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		if s.watcher != nil {
			close(s.stopCh)
			<-s.stoppedCh
			err = s.watcher.Close()
		}
	})
	return err
}

// update applies mutate to the current file contents under the write lock
// and persists the result when mutate reports a change.
func (s *FileStore) update(op, key string, mutate func(map[string]string) bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrStoreClosed
	}

	values, err := s.load()
	if err != nil {
		return newStoreError(fileBackend, op, key, err)
	}

	if !mutate(values) {
		return nil
	}

	if err := s.writeAtomic(values); err != nil {
		return newStoreError(fileBackend, op, key, err)
	}

	if s.watch {
		s.mu.Lock()
		s.cache = values
		s.cached = true
		s.gen++
		s.mu.Unlock()
	}

	return nil
}

// load reads the file. A missing or empty file holds no values.
func (s *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, err
	}

	values := make(map[string]string)
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("corrupt credential file %s: %w", s.path, err)
	}
	return values, nil
}

// writeAtomic writes values to a temporary file and renames it into place.
func (s *FileStore) writeAtomic(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credentials-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, s.path)
}

// watchLoop invalidates the cache and notifies listeners on file changes.
func (s *FileStore) watchLoop() {
	defer close(s.stoppedCh)

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time

	for {
		select {
		case <-s.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(s.debounce)
			debounceCh = debounceTimer.C

		case <-debounceCh:
			debounceCh = nil
			s.invalidate()

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("credential file watch error", observability.Error(err))
		}
	}
}

func (s *FileStore) invalidate() {
	s.mu.Lock()
	s.cache = nil
	s.cached = false
	s.gen++
	s.mu.Unlock()

	s.listenersMu.Lock()
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	s.logger.Debug("credential file changed", observability.String("path", s.path))

	for _, fn := range fns {
		fn()
	}
}

var (
	_ Store          = (*FileStore)(nil)
	_ ChangeNotifier = (*FileStore)(nil)
)
