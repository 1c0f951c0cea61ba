package autosave

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/shibinsp/ocrapillm/internal/logging"
	"github.com/shibinsp/ocrapillm/internal/store"
)

// FileWatcher mirrors an on-disk working copy into the store as user edits.
type FileWatcher struct {
	path  string
	store *store.Store
	log   *zerolog.Logger
}

func NewFileWatcher(path string, st *store.Store, log *zerolog.Logger) *FileWatcher {
	if log == nil {
		log = logging.Nop()
	}
	return &FileWatcher{path: filepath.Clean(path), store: st, log: log}
}

// Run blocks until ctx is done. The parent directory is watched because
// many editors replace files by rename instead of writing in place.
func (w *FileWatcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w.Sync()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Str("path", w.path).Msg("file watcher error")
		}
	}
}

// Sync reads the file once and dispatches its content if it differs from
// the buffer.
func (w *FileWatcher) Sync() {
	b, err := os.ReadFile(w.path)
	if err != nil {
		// mid-rename; the following Create event brings the new content
		w.log.Debug().Err(err).Str("path", w.path).Msg("read working copy")
		return
	}
	text := string(b)
	if w.store.Snapshot().ExtractedText == text {
		return
	}
	w.store.Dispatch(store.UpdateText{Text: text})
}
