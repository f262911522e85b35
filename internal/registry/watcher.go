package registry

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/gridmate/fieldsync/internal/logger"
)

// Watcher reloads the registry when the local catalog file changes, so a
// running service picks up catalog edits without a restart.
type Watcher struct {
	registry *Registry
	path     string
	log      *logger.Logger
	watcher  *fsnotify.Watcher
}

func NewWatcher(registry *Registry, log *logger.Logger) (*Watcher, error) {
	if registry == nil || registry.localPath == "" {
		return nil, fmt.Errorf("registry has no local catalog to watch")
	}
	if log == nil {
		log = logger.Discard()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors replace files on save, which drops the
	// watch when set on the file itself.
	if err := fsw.Add(filepath.Dir(registry.localPath)); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return &Watcher{
		registry: registry,
		path:     filepath.Clean(registry.localPath),
		log:      log,
		watcher:  fsw,
	}, nil
}

// Start watches until ctx is done.
func (w *Watcher) Start(ctx context.Context) {
	go func() {
		defer func() { _ = w.watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != w.path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				w.log.Infof("catalog file changed; reloading")
				w.registry.Load(ctx)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.log.Warnf("catalog watcher error: %v", err)
			}
		}
	}()
}
