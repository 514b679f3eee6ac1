package spa

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// FileSource turns writes to a DOM snapshot file into mutations. A headless
// browser that re-serializes the page on every DOM change keeps the file
// current; each write is one mutation batch.
type FileSource struct {
	path     string
	watcher  *fsnotify.Watcher
	out      chan Mutation
	logger   *zap.Logger
	stopOnce sync.Once
	done     chan struct{}
}

// WatchFile starts watching path. The parent directory is watched so that
// atomic rename-over writes are seen too.
func WatchFile(path string, logger *zap.Logger) (*FileSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve snapshot path: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	f := &FileSource{
		path:    abs,
		watcher: w,
		out:     make(chan Mutation, 64),
		logger:  logger,
		done:    make(chan struct{}),
	}
	go f.loop()
	return f, nil
}

func (f *FileSource) Mutations() <-chan Mutation { return f.out }

// Path is the absolute snapshot path.
func (f *FileSource) Path() string { return f.path }

func (f *FileSource) loop() {
	defer close(f.out)
	for {
		select {
		case <-f.done:
			return
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			f.logger.Debug("snapshot changed", zap.String("path", f.path), zap.String("op", ev.Op.String()))
			select {
			case f.out <- Mutation{At: time.Now(), Count: 1}:
			default:
				// Reader is behind; drop the batch.
			}
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn("snapshot watch error", zap.Error(err))
		}
	}
}

// Close stops watching and closes the mutation channel.
func (f *FileSource) Close() error {
	var err error
	f.stopOnce.Do(func() {
		close(f.done)
		err = f.watcher.Close()
	})
	return err
}
