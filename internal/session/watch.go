package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/signalsfoundry/airspace-playback/internal/logging"
	"github.com/signalsfoundry/airspace-playback/internal/store"
)

var bundleFiles = map[string]bool{
	store.SimulationFile: true,
	store.ConfigFile:     true,
	store.StatisticsFile: true,
	store.OwnerMapFile:   true,
}

// Watch reloads path whenever it changes, after a quiet period. path is a
// bundle directory or a single simulation file. Watch blocks until ctx is
// done and returns nil then; a reload failure keeps the previous simulation.
func (s *Session) Watch(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	path = filepath.Clean(path)
	dir := path
	if !info.IsDir() {
		// Editors replace files on save, so watch the parent directory.
		dir = filepath.Dir(path)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	relevant := func(ev fsnotify.Event) bool {
		if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
			return false
		}
		if info.IsDir() {
			return bundleFiles[filepath.Base(ev.Name)]
		}
		return filepath.Clean(ev.Name) == path
	}

	ctx = s.Context(ctx)
	s.log.Info(ctx, "watching snapshot", logging.String("path", path))

	timer := time.NewTimer(s.debounce)
	timer.Stop()
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			timer.Reset(s.debounce)
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn(ctx, "snapshot watcher error", logging.Err(err))
		case <-fire:
			fire = nil
			if err := s.LoadFile(ctx, path); err != nil {
				s.log.Warn(ctx, "snapshot reload failed", logging.String("path", path), logging.Err(err))
				continue
			}
			s.log.Info(ctx, "snapshot reloaded", logging.String("path", path))
		}
	}
}
