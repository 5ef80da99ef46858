// Package watcher provides file system watching with debouncing for the
// simulation executable. A rebuilt binary produces a burst of events; the
// watcher coalesces them into a single relaunch signal published on its
// broker.
package watcher

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/orbitctl/orbitctl/internal/log"
	"github.com/orbitctl/orbitctl/internal/pubsub"
)

// EventType classifies watcher notifications.
type EventType string

const (
	// ExecChanged reports that the simulation executable was rewritten or
	// replaced and the change burst has settled.
	ExecChanged EventType = "exec_changed"
	// WatchError reports a filesystem watch failure. Watching continues.
	WatchError EventType = "watch_error"
)

// Event is the payload published on the watcher broker.
type Event struct {
	Type  EventType
	Error error
}

// Watcher monitors the simulation executable for changes and publishes a
// notification once the change burst settles.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	execPath  string
	debounce  time.Duration
	broker    *pubsub.Broker[Event]
	done      chan struct{}
}

// Config holds watcher configuration options.
type Config struct {
	ExecPath    string
	DebounceDur time.Duration
}

// DefaultConfig returns sensible defaults for the watcher.
func DefaultConfig(execPath string) Config {
	return Config{
		ExecPath:    execPath,
		DebounceDur: 1 * time.Second,
	}
}

// New creates a new executable watcher.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		fsWatcher: fsw,
		execPath:  cfg.ExecPath,
		debounce:  cfg.DebounceDur,
		broker:    pubsub.NewBroker[Event](),
		done:      make(chan struct{}),
	}, nil
}

// Broker exposes the notification stream for subscription.
func (w *Watcher) Broker() *pubsub.Broker[Event] {
	return w.broker
}

// Start begins watching the executable's directory.
// The directory is watched rather than the file itself because builds
// replace the binary by rename, which drops a watch on the old inode.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.execPath)
	if err := w.fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("watching directory %s: %w", dir, err)
	}

	go w.loop()

	return nil
}

// Stop terminates the watcher, releases the filesystem watch, and closes the
// broker so subscribers see the end of the stream.
func (w *Watcher) Stop() error {
	close(w.done)
	err := w.fsWatcher.Close()
	w.broker.Close()
	return err
}

// loop processes file system events with debouncing. While no timer is armed
// the fire channel is nil, so that select arm never triggers.
func (w *Watcher) loop() {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.isRelevantEvent(event) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-fire:
			w.broker.Publish(pubsub.ChangedEvent, Event{Type: ExecChanged})
			timer = nil
			fire = nil

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatWatcher, "Executable watch error", err, "path", w.execPath)
			w.broker.Publish(pubsub.EmittedEvent, Event{Type: WatchError, Error: err})

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// isRelevantEvent checks if the event should trigger a relaunch prompt.
// Writes cover in-place copies, creates cover the rename a build performs.
func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}
	return filepath.Base(event.Name) == filepath.Base(w.execPath)
}
