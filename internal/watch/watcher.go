// Package watch evicts cached local panel builds when their files change.
package watch

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/report-zone/mfe-demo-sub000/internal/environment"
	"github.com/report-zone/mfe-demo-sub000/internal/registry"
)

const debounce = 100 * time.Millisecond

// Evicter drops a module cache entry.
type Evicter interface {
	Evict(url string)
}

// ChangeKind describes the type of file change detected.
type ChangeKind int

const (
	ChangeModified ChangeKind = iota
	ChangeRemoved
)

func (k ChangeKind) String() string {
	if k == ChangeRemoved {
		return "removed"
	}
	return "modified"
}

// Change is a debounced change of one panel build.
type Change struct {
	Kind  ChangeKind
	Panel string
	File  string
}

// Watcher monitors the local build directory with fsnotify.
type Watcher struct {
	Dir     string
	Changes <-chan Change

	changes chan Change
	done    chan struct{}
	watcher *fsnotify.Watcher
	evicter Evicter
	log     zerolog.Logger
	stop    sync.Once
}

// NewWatcher creates a watcher for dir that evicts through e.
func NewWatcher(dir string, e Evicter, logger *zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}

	ch := make(chan Change, 16)
	return &Watcher{
		Dir:     dir,
		Changes: ch,
		changes: ch,
		done:    make(chan struct{}),
		watcher: fw,
		evicter: e,
		log:     l,
	}, nil
}

// Start begins watching the directory. When the directory cannot be watched
// the watcher is released and Changes is closed.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.Dir); err != nil {
		close(w.done)
		w.Stop()
		return err
	}
	go w.loop()
	return nil
}

// Stop closes the watcher and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.stop.Do(func() {
		_ = w.watcher.Close()
		<-w.done
		close(w.changes)
	})
}

func (w *Watcher) loop() {
	defer close(w.done)

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				for file := range pending {
					w.emit(file)
				}
				return
			}
			if PanelFromFile(event.Name) == "" {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending[event.Name] = time.Now()
			}

		case <-ticker.C:
			now := time.Now()
			for file, t := range pending {
				if now.Sub(t) >= debounce {
					w.emit(file)
					delete(pending, file)
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Str("dir", w.Dir).Msg("build watcher error")
		}
	}
}

func (w *Watcher) emit(file string) {
	panel := PanelFromFile(file)
	kind := ChangeModified
	if _, err := filepath.EvalSymlinks(file); err != nil {
		kind = ChangeRemoved
	}

	w.evicter.Evict(registry.LocalURL(panel))
	w.log.Info().Str("panel", panel).Str("change", kind.String()).Msg("local build changed, cache entry evicted")

	select {
	case w.changes <- Change{Kind: kind, Panel: panel, File: file}:
	default:
	}
}

// PanelFromFile returns the panel a build file belongs to, or "" for any
// file that is not a panel module.
func PanelFromFile(name string) string {
	base := filepath.Base(name)
	panel, ok := strings.CutSuffix(base, environment.ModuleFile(""))
	if !ok || panel == "" || strings.HasPrefix(panel, ".") {
		return ""
	}
	return panel
}
