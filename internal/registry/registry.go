package registry

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"llamactl/internal/common/fsutil"
	"llamactl/pkg/types"
)

// debounceWindow coalesces bursts of filesystem events (a copy of a large
// model file fires many) into one rescan.
const debounceWindow = 100 * time.Millisecond

// Registry keeps an up-to-date model list for one directory. A filesystem
// watcher triggers debounced rescans, so new or deleted model files show up
// without restarting.
type Registry struct {
	dir string
	log zerolog.Logger

	mu       sync.RWMutex
	models   []types.Model
	debounce *time.Timer

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Watch scans dir once and starts watching it for changes.
func Watch(dir string, log zerolog.Logger) (*Registry, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	models, err := LoadDir(base)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(base); err != nil {
		watcher.Close()
		return nil, err
	}
	r := &Registry{
		dir:     base,
		log:     log,
		models:  models,
		watcher: watcher,
		done:    make(chan struct{}),
	}
	go r.loop()
	return r, nil
}

// List returns a copy of the current model list.
func (r *Registry) List() []types.Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Model, len(r.models))
	copy(out, r.models)
	return out
}

// Close stops the watcher and waits for the event loop to exit.
func (r *Registry) Close() error {
	err := r.watcher.Close()
	<-r.done
	r.mu.Lock()
	if r.debounce != nil {
		r.debounce.Stop()
	}
	r.mu.Unlock()
	return err
}

func (r *Registry) loop() {
	defer close(r.done)
	for {
		select {
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) != 0 {
				r.scheduleRescan()
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.log.Warn().Err(err).Msg("model directory watch error")
		}
	}
}

func (r *Registry) scheduleRescan() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.debounce != nil {
		r.debounce.Stop()
	}
	r.debounce = time.AfterFunc(debounceWindow, r.rescan)
}

func (r *Registry) rescan() {
	models, err := LoadDir(r.dir)
	if err != nil {
		r.log.Error().Err(err).Str("dir", r.dir).Msg("model rescan failed")
		return
	}
	r.mu.Lock()
	r.models = models
	r.mu.Unlock()
	r.log.Debug().Int("models", len(models)).Msg("model registry refreshed")
}
