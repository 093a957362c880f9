package shim

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"pathscrub/internal/logging"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Status is the result of re-verifying the shim after a change.
type Status struct {
	Path  string
	Event string
	Err   error // nil when the shim verified
	Time  time.Time
}

// OK reports whether the shim verified.
func (s Status) OK() bool { return s.Err == nil }

// Watcher re-verifies the shim whenever it or its checksum changes.
type Watcher struct {
	mu          sync.Mutex
	opts        Options
	watcher     *fsnotify.Watcher
	notify      func(Status)
	pending     map[string]pendingEvent
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	log         *zap.Logger
}

type pendingEvent struct {
	op   string
	seen time.Time
}

// NewWatcher creates a stopped Watcher. notify is called from the
// watcher goroutine once per settled change.
func NewWatcher(opts Options, notify func(Status)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &Watcher{
		opts:        opts.withDefaults(),
		watcher:     w,
		notify:      notify,
		pending:     make(map[string]pendingEvent),
		debounceDur: 200 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		log:         logging.Get(logging.CategoryShim),
	}, nil
}

// SetDebounce changes how long a file must be quiet before it is verified.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	w.debounceDur = d
	w.mu.Unlock()
}

// Start watches the shim directory. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.opts.Dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return fmt.Errorf("failed to watch %s: %w", w.opts.Dir, err)
	}
	w.log.Debug("watching shim directory", zap.String("file", w.opts.FileName))

	go w.run(ctx)
	return nil
}

// Stop ends the watch and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	return w.watcher.Close()
}

// Done is closed when the event loop exits.
func (w *Watcher) Done() <-chan struct{} {
	return w.doneCh
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("shim watcher error", zap.Error(err))
		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if name != w.opts.FileName && name != w.opts.SumName {
		return
	}

	var op string
	switch {
	case event.Op&fsnotify.Create != 0:
		op = "create"
	case event.Op&fsnotify.Write != 0:
		op = "modify"
	case event.Op&fsnotify.Remove != 0:
		op = "delete"
	case event.Op&fsnotify.Rename != 0:
		op = "rename"
	default:
		return
	}

	w.mu.Lock()
	w.pending[name] = pendingEvent{op: op, seen: time.Now()}
	w.mu.Unlock()
}

func (w *Watcher) flush() {
	w.mu.Lock()
	now := time.Now()
	var ready []string
	var ops []string
	for name, p := range w.pending {
		if now.Sub(p.seen) >= w.debounceDur {
			ready = append(ready, name)
			ops = append(ops, p.op)
			delete(w.pending, name)
		}
	}
	w.mu.Unlock()

	for i, name := range ready {
		status := Status{
			Path:  filepath.Join(w.opts.Dir, name),
			Event: ops[i],
			Err:   Verify(w.opts),
			Time:  now,
		}
		if status.Err != nil {
			w.log.Warn("shim verification failed", zap.String("event", status.Event), zap.Error(status.Err))
		}
		if w.notify != nil {
			w.notify(status)
		}
	}
}

// Watch re-verifies the shim on every change and reports each status to fn
// until ctx is done.
func Watch(ctx context.Context, opts Options, fn func(Status)) error {
	w, err := NewWatcher(opts, fn)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		_ = w.Stop()
		return err
	}
	select {
	case <-ctx.Done():
	case <-w.Done():
	}
	return w.Stop()
}
