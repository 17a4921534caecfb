package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/waytablet/internal/logger"
	"github.com/fsnotify/fsnotify"
)

// reloadDelay is how long the file has to stay quiet before it is reloaded.
// Every write restarts the delay, so the last edit always wins.
const reloadDelay = 250 * time.Millisecond

// Watcher reloads the config file when it is written and reports changes to
// the client destination. Edits to other keys are applied silently.
type Watcher struct {
	onChange func(Destination)
	delay    time.Duration

	mu   sync.Mutex
	last Destination
}

// NewWatcher creates a watcher that calls onChange whenever client.host or
// client.port differ from the previously loaded values.
func NewWatcher(onChange func(Destination)) *Watcher {
	return &Watcher{
		onChange: onChange,
		delay:    reloadDelay,
		last:     CurrentDestination(),
	}
}

// Watch follows the config file and blocks until ctx is done. The directory
// is watched rather than the file so editors that replace the file on save
// are followed too.
func (w *Watcher) Watch(ctx context.Context) {
	path := filepath.Clean(GetConfigPath())

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("Config file watching unavailable", "error", err)
		<-ctx.Done()
		return
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(filepath.Dir(path)); err != nil {
		logger.Warn("Cannot watch config directory", "path", path, "error", err)
		<-ctx.Done()
		return
	}
	logger.Debug("Watching config file for changes", "path", path)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Stopping config file watcher")
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path || !isWrite(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.delay)
				fire = timer.C
			} else {
				timer.Reset(w.delay)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logger.Warn("Config watcher error", "error", err)

		case <-fire:
			w.reload()
		}
	}
}

func isWrite(event fsnotify.Event) bool {
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}

// reload re-reads the file and reports a destination change. A file that
// fails to parse leaves the previous config in place.
func (w *Watcher) reload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := Reload(); err != nil {
		logger.Warn("Failed to reload config file", "error", err)
		return
	}

	dest := CurrentDestination()
	if dest == w.last {
		logger.Debug("Config reloaded, destination unchanged")
		return
	}

	logger.Info("Config reloaded, destination changed", "from", w.last, "to", dest)
	w.last = dest
	if w.onChange != nil {
		w.onChange(dest)
	}
}
