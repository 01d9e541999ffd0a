package config

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config when its file changes and calls onReload with the
// new value. File events come from fsnotify; the interval ticker covers
// filesystems that do not deliver them.
func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if m.path == "" {
		<-stop
		return
	}
	if interval <= 0 {
		interval = 3 * time.Second
	}
	var events <-chan fsnotify.Event
	var errs <-chan error
	if w, err := fsnotify.NewWatcher(); err == nil {
		defer w.Close()
		// Watch the directory so editors that replace the file are seen.
		if err := w.Add(filepath.Dir(m.path)); err == nil {
			events, errs = w.Events, w.Errors
		} else if onError != nil {
			onError(err)
		}
	} else if onError != nil {
		onError(err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	check := func() {
		needs, err := m.NeedsReload()
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		if !needs {
			return
		}
		cfg, err := m.Reload()
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		if onReload != nil {
			onReload(cfg)
		}
	}
	for {
		select {
		case ev := <-events:
			if filepath.Clean(ev.Name) == filepath.Clean(m.path) && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				check()
			}
		case err := <-errs:
			if err != nil && onError != nil {
				onError(err)
			}
		case <-ticker.C:
			check()
		case <-stop:
			return
		}
	}
}
