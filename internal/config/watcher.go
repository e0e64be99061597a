// internal/config/watcher.go
package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/utils"
)

// DefaultDebounce coalesces the bursts of events editors produce on save
const DefaultDebounce = 100 * time.Millisecond

// FileWatcher invokes callbacks when any of a set of files is written or
// recreated. Directories are watched so atomic renames are seen.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	paths     map[string]struct{}
	callbacks []func(path string)
	logger    utils.Logger
	debounce  time.Duration
	timers    map[string]*time.Timer
	mu        sync.Mutex
	stopped   bool
	done      chan struct{}
}

// NewFileWatcher watches paths for changes
func NewFileWatcher(logger utils.Logger, paths ...string) (*FileWatcher, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("at least one path is required")
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	fw := &FileWatcher{
		watcher:  watcher,
		paths:    make(map[string]struct{}, len(paths)),
		logger:   logger,
		debounce: DefaultDebounce,
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}

	dirs := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		fw.paths[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	go fw.watch()
	return fw, nil
}

// OnChange registers a callback receiving the absolute path that changed
func (fw *FileWatcher) OnChange(callback func(path string)) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.callbacks = append(fw.callbacks, callback)
}

func (fw *FileWatcher) watch() {
	defer close(fw.done)
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			name, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if _, watched := fw.paths[name]; watched {
				fw.schedule(name)
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warnf("file watcher error: %v", err)
		}
	}
}

// schedule fires the callbacks once the path has been quiet for the
// debounce interval
func (fw *FileWatcher) schedule(path string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.stopped {
		return
	}
	if t, ok := fw.timers[path]; ok {
		t.Stop()
	}
	fw.timers[path] = time.AfterFunc(fw.debounce, func() { fw.fire(path) })
}

func (fw *FileWatcher) fire(path string) {
	fw.mu.Lock()
	if fw.stopped {
		fw.mu.Unlock()
		return
	}
	delete(fw.timers, path)
	callbacks := make([]func(string), len(fw.callbacks))
	copy(callbacks, fw.callbacks)
	fw.mu.Unlock()

	for _, callback := range callbacks {
		callback(path)
	}
}

// Close stops the watcher and releases resources
func (fw *FileWatcher) Close() error {
	fw.mu.Lock()
	if fw.stopped {
		fw.mu.Unlock()
		return nil
	}
	fw.stopped = true
	for _, t := range fw.timers {
		t.Stop()
	}
	fw.mu.Unlock()

	err := fw.watcher.Close()
	<-fw.done
	return err
}

// ConfigWatcher reloads an EngineConfig whenever its file changes
type ConfigWatcher struct {
	files      *FileWatcher
	configPath string
	logger     utils.Logger
	callbacks  []func(*EngineConfig, error)
	mu         sync.RWMutex
}

// NewConfigWatcher creates a new configuration file watcher
func NewConfigWatcher(configPath string, logger utils.Logger) (*ConfigWatcher, error) {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	files, err := NewFileWatcher(logger, configPath)
	if err != nil {
		return nil, err
	}

	cw := &ConfigWatcher{
		files:      files,
		configPath: configPath,
		logger:     logger.WithField("config", configPath),
	}
	files.OnChange(func(string) { cw.handleConfigChange() })
	return cw, nil
}

// OnChange registers a callback receiving the reloaded config, or the load
// error when the new file is invalid
func (cw *ConfigWatcher) OnChange(callback func(*EngineConfig, error)) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.callbacks = append(cw.callbacks, callback)
}

func (cw *ConfigWatcher) handleConfigChange() {
	cw.mu.RLock()
	callbacks := make([]func(*EngineConfig, error), len(cw.callbacks))
	copy(callbacks, cw.callbacks)
	cw.mu.RUnlock()

	cfg, err := LoadFromFile(cw.configPath)
	if err != nil {
		cw.logger.Warnf("failed to reload config: %v", err)
	} else {
		cw.logger.Info("configuration reloaded")
	}

	for _, callback := range callbacks {
		callback(cfg, err)
	}
}

// Close stops the watcher and releases resources
func (cw *ConfigWatcher) Close() error {
	return cw.files.Close()
}
