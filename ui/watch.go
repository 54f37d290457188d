package ui

import (
	"context"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/briefcast/briefcast/internal/briefing"
)

type storeChangedMsg struct{}

// storeWatcher reports writes to the store directory made by another
// process, such as "briefcast serve" or "briefcast add".
type storeWatcher struct {
	dir     string
	watcher *fsnotify.Watcher
}

func newStoreWatcher(dir string) (*storeWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}
	log.Info("fsnotify watching dir", "dir", dir)
	return &storeWatcher{dir: dir, watcher: w}, nil
}

// next blocks until a store file is written. It is a tea.Cmd.
func (w *storeWatcher) next() tea.Msg {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !isStoreFile(event.Name) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			log.Debug("fsnotify event", "file", event.Name, "event", event.Op)
			return storeChangedMsg{}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Debug("fsnotify error", "dir", w.dir, "error", err)
		}
	}
}

func (w *storeWatcher) Close() error {
	return w.watcher.Close()
}

// Temporary files written before a rename are ignored.
func isStoreFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, ".json.zst") || strings.HasSuffix(base, ".db")
}

func reloadStore(desk *briefing.Desk, load Loader) tea.Cmd {
	if load == nil {
		return nil
	}
	return func() tea.Msg {
		if err := desk.Reload(context.Background(), load); err != nil {
			log.Error("Could not reload the store", "error", err)
		}
		return nil
	}
}
