// Package watch publishes a cache reset when a source file changes on disk.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"presence/internal/queue"
)

type stamp struct {
	modTime time.Time
	size    int64
	missing bool
}

func statFile(path string) (stamp, error) {
	fi, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return stamp{missing: true}, nil
	}
	if err != nil {
		return stamp{}, err
	}
	return stamp{modTime: fi.ModTime(), size: fi.Size()}, nil
}

// Watcher polls file stamps (mtime and size).
type Watcher struct {
	paths    []string
	bus      queue.Queue
	interval time.Duration
	last     map[string]stamp
}

// New watches paths and publishes to bus.
func New(bus queue.Queue, interval time.Duration, paths ...string) *Watcher {
	return &Watcher{paths: paths, bus: bus, interval: interval}
}

// Poll compares every file against the previous poll and publishes one reset
// when any differs. The first call only records a baseline.
func (w *Watcher) Poll(ctx context.Context) (bool, error) {
	current := make(map[string]stamp, len(w.paths))
	var changed []string
	for _, p := range w.paths {
		s, err := statFile(p)
		if err != nil {
			return false, err
		}
		current[p] = s
		if prev, ok := w.last[p]; ok && prev != s {
			changed = append(changed, p)
		}
	}
	first := w.last == nil
	w.last = current
	if first || len(changed) == 0 {
		return false, nil
	}

	msg := queue.NewMessage(queue.TypeCacheReset, nil)
	if err := w.bus.Publish(ctx, msg); err != nil {
		return true, err
	}
	slog.Info("source changed, reset published", "files", changed, "id", msg.ID)
	return true, nil
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if _, err := w.Poll(ctx); err != nil {
			slog.Warn("watch poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
