package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"torrank/internal/logging"
)

// configWatcher calls reload once the config file settles after a change.
// The parent directory is watched because editors often replace the file by
// renaming a temporary copy over it.
type configWatcher struct {
	path     string
	debounce time.Duration
	reload   func(context.Context) error
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
}

func newConfigWatcher(path string, debounce time.Duration, reload func(context.Context) error, logger *slog.Logger) (*configWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	return &configWatcher{
		path:     filepath.Clean(abs),
		debounce: debounce,
		reload:   reload,
		logger:   logging.NewComponentLogger(logger, "config-watcher"),
		watcher:  w,
	}, nil
}

func (c *configWatcher) run(ctx context.Context) error {
	defer c.watcher.Close()

	timer := time.NewTimer(c.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	c.logger.Debug("watching config file", logging.String("path", c.path))
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-c.watcher.Events:
			if !ok {
				return errors.New("config watcher closed")
			}
			if !c.relevant(event) {
				continue
			}
			timer.Reset(c.debounce)
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return errors.New("config watcher closed")
			}
			logging.WarnWithContext(c.logger, "config watcher error", "config_watch",
				logging.Error(err),
				logging.String(logging.FieldImpact, "a config change may be missed"),
			)
		case <-timer.C:
			// reload logs its own failures; the daemon keeps serving the
			// previous snapshot.
			_ = c.reload(ctx)
		}
	}
}

func (c *configWatcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != c.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}
