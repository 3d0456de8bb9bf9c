package store

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"medtrack/internal/logging"
)

// ProfileEventType says what happened to a profile file.
type ProfileEventType int

const (
	ProfileAdded ProfileEventType = iota
	ProfileRemoved
)

// String returns the event type name.
func (t ProfileEventType) String() string {
	if t == ProfileAdded {
		return "added"
	}
	return "removed"
}

// ProfileEvent reports a profile database appearing or disappearing.
type ProfileEvent struct {
	Type ProfileEventType
	Name string
}

// ProfileWatcher watches the profile directory for *.db files created or
// removed by other processes. Events for one name are debounced.
type ProfileWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	dir         string
	events      chan ProfileEvent
	pending     map[string]pendingEvent
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

type pendingEvent struct {
	typ ProfileEventType
	at  time.Time
}

// NewProfileWatcher creates a watcher for dir.
func NewProfileWatcher(dir string) (*ProfileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &ProfileWatcher{
		watcher:     w,
		dir:         dir,
		events:      make(chan ProfileEvent, 16),
		pending:     make(map[string]pendingEvent),
		debounceDur: 200 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Events returns the event channel. It is closed when the watcher stops.
func (pw *ProfileWatcher) Events() <-chan ProfileEvent { return pw.events }

// Start begins watching. It does not block.
func (pw *ProfileWatcher) Start(ctx context.Context) error {
	pw.mu.Lock()
	if pw.running {
		pw.mu.Unlock()
		return nil
	}
	pw.running = true
	pw.mu.Unlock()

	if err := pw.watcher.Add(pw.dir); err != nil {
		pw.mu.Lock()
		pw.running = false
		pw.mu.Unlock()
		return err
	}
	logging.Watch("ProfileWatcher: watching %s", pw.dir)

	go pw.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit.
func (pw *ProfileWatcher) Stop() {
	pw.mu.Lock()
	wasRunning := pw.running
	pw.running = false
	pw.mu.Unlock()

	if wasRunning {
		close(pw.stopCh)
		<-pw.doneCh
	}
	if err := pw.watcher.Close(); err != nil {
		logging.WatchError("ProfileWatcher: error closing watcher: %v", err)
	}
}

func (pw *ProfileWatcher) run(ctx context.Context) {
	defer close(pw.doneCh)
	defer close(pw.events)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pw.stopCh:
			return
		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			pw.handleEvent(event)
		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			logging.WatchError("ProfileWatcher error: %v", err)
		case <-ticker.C:
			if !pw.flush(ctx) {
				return
			}
		}
	}
}

func (pw *ProfileWatcher) handleEvent(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, Ext) {
		return
	}
	var typ ProfileEventType
	switch {
	case event.Op&fsnotify.Create != 0:
		typ = ProfileAdded
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		typ = ProfileRemoved
	default:
		return
	}
	name := strings.TrimSuffix(filepath.Base(event.Name), Ext)
	logging.WatchDebug("ProfileWatcher: %s %s", typ, name)

	pw.mu.Lock()
	pw.pending[name] = pendingEvent{typ: typ, at: time.Now()}
	pw.mu.Unlock()
}

// flush emits events older than the debounce window. It returns false when
// the watcher should exit.
func (pw *ProfileWatcher) flush(ctx context.Context) bool {
	now := time.Now()
	var ready []ProfileEvent

	pw.mu.Lock()
	for name, p := range pw.pending {
		if now.Sub(p.at) >= pw.debounceDur {
			ready = append(ready, ProfileEvent{Type: p.typ, Name: name})
			delete(pw.pending, name)
		}
	}
	pw.mu.Unlock()

	for _, ev := range ready {
		select {
		case pw.events <- ev:
		case <-ctx.Done():
			return false
		case <-pw.stopCh:
			return false
		}
	}
	return true
}
