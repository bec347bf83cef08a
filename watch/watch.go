// Package watch re-runs work when the input shapefiles change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when no debounce delay is configured.
const DefaultDebounce = 500 * time.Millisecond

// Sidecars are the files that make up one shapefile.
var Sidecars = []string{".shp", ".shx", ".dbf", ".prj", ".cpg"}

// ErrNoInputs is returned when there is nothing to watch.
var ErrNoInputs = errors.New("no input files to watch")

// ChangeFunc is called once per quiet period with the changed files,
// sorted. Calls never overlap.
type ChangeFunc func(ctx context.Context, changed []string)

// Watcher watches the directories holding the input shapefiles and calls
// a ChangeFunc after their sidecar files settle.
type Watcher struct {
	fsw      *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration
	onChange ChangeFunc

	// targets maps stem+lower(ext) to true for every watched sidecar
	targets map[string]bool
	dirs    []string
}

// New creates a Watcher for the given .shp paths.
func New(inputs []string, debounce time.Duration, onChange ChangeFunc, logger *slog.Logger) (*Watcher, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}
	if onChange == nil {
		return nil, fmt.Errorf("watch: nil change callback")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	targets := make(map[string]bool)
	seenDir := make(map[string]bool)
	var dirs []string
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return nil, fmt.Errorf("watch %s: %w", in, err)
		}
		stem := strings.TrimSuffix(abs, filepath.Ext(abs))
		for _, ext := range Sidecars {
			targets[stem+ext] = true
		}
		if dir := filepath.Dir(abs); !seenDir[dir] {
			seenDir[dir] = true
			dirs = append(dirs, dir)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	return &Watcher{
		fsw:      fsw,
		logger:   logger,
		debounce: debounce,
		onChange: onChange,
		targets:  targets,
		dirs:     dirs,
	}, nil
}

// Run watches until ctx is cancelled. It closes the underlying watcher
// before returning, so a Watcher can run only once.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	for _, dir := range w.dirs {
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("watch directory %s: %w", dir, err)
		}
		w.logger.Debug("Watching directory", "path", dir)
	}
	w.logger.Info("Watching inputs", "dirs", w.dirs, "debounce", w.debounce)

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending = make(map[string]bool)
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			pending[event.Name] = true
			w.logger.Debug("Input change detected", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error", "error", err)

		case <-fire:
			fire = nil
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			clear(pending)
			w.onChange(ctx, changed)
		}
	}
}

// relevant reports whether event touches a sidecar of a watched input.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return false
	}
	ext := filepath.Ext(event.Name)
	key := strings.TrimSuffix(event.Name, ext) + strings.ToLower(ext)
	return w.targets[key]
}
