// Package watch reports input files as they arrive in a directory tree,
// recovering each file's forecast times by reverse parsing it against the
// filename templates that describe the inputs.
package watch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/papapumpkin/metwrap/internal/strsub"
	"github.com/papapumpkin/metwrap/internal/timeinfo"
)

// Debounce is how long a file must stay quiet after its last write before it
// is reported.
const Debounce = 100 * time.Millisecond

// Arrival is an input file that matched a template.
type Arrival struct {
	Path     string // Absolute path
	Rel      string // Path relative to the watched directory, slash separated
	Template string
	Info     *timeinfo.TimeInfo
}

// Watcher monitors a directory tree for files matching input templates.
type Watcher struct {
	Dir      string
	Arrivals <-chan Arrival

	arrivals  chan Arrival
	stop      chan struct{}
	done      chan struct{}
	started   bool
	stopOnce  sync.Once
	watcher   *fsnotify.Watcher
	templates []*strsub.Template
	logger    *zerolog.Logger
}

// NewWatcher creates a watcher for dir. Templates are relative to dir and
// must be reverse parsable.
func NewWatcher(dir string, templates []string, logger *zerolog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	compiled := make([]*strsub.Template, 0, len(templates))
	for _, raw := range templates {
		t, err := strsub.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("watch: template %q: %w", raw, err)
		}
		if err := t.CheckInvertible(); err != nil {
			return nil, fmt.Errorf("watch: template %q: %w", raw, err)
		}
		compiled = append(compiled, t)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	ch := make(chan Arrival, 16)
	return &Watcher{
		Dir:       abs,
		Arrivals:  ch,
		arrivals:  ch,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		watcher:   fw,
		templates: compiled,
		logger:    logger,
	}, nil
}

// Start watches the directory and every subdirectory below it. Directories
// created later are added as they appear. Stop must still be called when
// Start fails.
func (w *Watcher) Start() error {
	if w.started {
		return fmt.Errorf("watch: %s already started", w.Dir)
	}
	if err := w.addTree(w.Dir); err != nil {
		return err
	}
	w.started = true
	go w.loop()
	return nil
}

// Stop closes the watcher and the Arrivals channel. Files still waiting out
// the debounce are dropped. Stop may be called before Start and more than
// once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		w.watcher.Close()
		if w.started {
			<-w.done
		}
		close(w.arrivals)
	})
}

// Scan matches the files already present under the directory.
func (w *Watcher) Scan() ([]Arrival, error) {
	var out []Arrival
	err := filepath.WalkDir(w.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if a, ok := w.Match(path); ok {
			out = append(out, a)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("watch: scan %s: %w", w.Dir, err)
	}
	return out, nil
}

// Match reverse parses path against each template in order and returns the
// first match.
func (w *Watcher) Match(path string) (Arrival, bool) {
	rel, err := filepath.Rel(w.Dir, path)
	if err != nil {
		return Arrival{}, false
	}
	rel = filepath.ToSlash(rel)
	for _, t := range w.templates {
		ti, err := t.Parse(rel)
		if err != nil {
			w.logger.Warn().Err(err).Str("file", rel).Str("template", t.String()).Msg("cannot parse input file")
			continue
		}
		if ti != nil {
			return Arrival{Path: path, Rel: rel, Template: t.String(), Info: ti}, true
		}
	}
	return Arrival{}, false
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watch: add %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) loop() {
	defer close(w.done)

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(Debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if err := w.addTree(event.Name); err != nil {
					w.logger.Warn().Err(err).Msg("cannot watch new directory")
				}
				// Files written before the directory was watched.
				w.scanInto(event.Name, pending)
				continue
			}
			pending[event.Name] = time.Now()

		case <-ticker.C:
			now := time.Now()
			for file, t := range pending {
				if now.Sub(t) < Debounce {
					continue
				}
				delete(pending, file)
				if !w.report(file) {
					return
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("watch error")
		}
	}
}

func (w *Watcher) scanInto(dir string, pending map[string]time.Time) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			pending[path] = time.Now()
		}
		return nil
	})
}

// report sends the arrival for file, if it matches. It returns false when
// the watcher is stopping.
func (w *Watcher) report(file string) bool {
	if info, err := os.Stat(file); err != nil || info.IsDir() {
		return true
	}
	a, ok := w.Match(file)
	if !ok {
		w.logger.Debug().Str("file", file).Msg("ignoring file that matches no input template")
		return true
	}
	select {
	case w.arrivals <- a:
		return true
	case <-w.stop:
		return false
	}
}
