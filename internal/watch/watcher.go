package watch

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period that settles a burst of events.
const DefaultDebounce = 500 * time.Millisecond

// Options configures the watch set.
type Options struct {
	// Dirs are watched recursively.
	Dirs []string

	// Files are watched individually.
	Files []string

	// Debounce is the quiet period before a change is reported.
	Debounce time.Duration

	// Logger is used for structured logging.
	Logger *slog.Logger
}

// Watcher reports settled filesystem changes to a callback. It is started by
// New and runs until Close.
type Watcher struct {
	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	logger    *slog.Logger
	files     map[string]struct{}
	dirs      map[string]struct{}
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New registers the watch set and starts monitoring. Registering the set is
// the baseline pass; onChange is only called for changes observed after it,
// once per burst, with the last path seen.
func New(opts Options, onChange func(path string)) (*Watcher, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	w := &Watcher{
		fsw:       fsw,
		debouncer: NewDebouncer(opts.Debounce, onChange),
		logger:    opts.Logger,
		files:     make(map[string]struct{}),
		dirs:      make(map[string]struct{}),
		done:      make(chan struct{}),
	}

	for _, dir := range opts.Dirs {
		abs, absErr := filepath.Abs(dir)
		if absErr != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("resolving directory %q: %w", dir, absErr)
		}

		if err := w.addRecursive(abs); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watching directory %q: %w", abs, err)
		}
	}

	// fsnotify loses single-file watches on atomic saves (rename over the
	// original), so files are watched through their parent directory and
	// filtered by name.
	for _, f := range opts.Files {
		abs, absErr := filepath.Abs(f)
		if absErr != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("resolving file %q: %w", f, absErr)
		}

		if _, statErr := os.Stat(abs); statErr != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watching file %q: %w", abs, statErr)
		}

		if err := fsw.Add(filepath.Dir(abs)); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watching file %q: %w", abs, err)
		}

		w.files[abs] = struct{}{}
	}

	w.wg.Add(1)

	go w.loop()

	return w, nil
}

// Close stops monitoring and cancels a pending notification.
func (w *Watcher) Close() error {
	var err error

	w.closeOnce.Do(func() {
		close(w.done)
		w.debouncer.Stop()
		err = w.fsw.Close()
		w.wg.Wait()
	})

	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			if !w.inWatchSet(event.Name) || !isRelevant(event) {
				continue
			}

			// If a new directory was created, watch it too.
			if event.Has(fsnotify.Create) {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					_ = w.addRecursive(event.Name)
				}
			}

			w.logger.Debug("file event", slog.String("path", event.Name), slog.String("op", event.Op.String()))
			w.debouncer.Trigger(event.Name)

		case watchErr, ok := <-w.fsw.Errors:
			if !ok {
				return
			}

			w.logger.Error("watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// inWatchSet reports whether name lies in a recursively watched tree or is
// one of the individually watched files. Events for siblings of a watched
// file are dropped.
func (w *Watcher) inWatchSet(name string) bool {
	if _, ok := w.files[name]; ok {
		return true
	}

	if _, ok := w.dirs[name]; ok {
		return true
	}

	_, ok := w.dirs[filepath.Dir(name)]

	return ok
}

// addRecursive walks root and adds all directories to the watcher.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			// Skip hidden directories (e.g., .git).
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}

			if err := w.fsw.Add(path); err != nil {
				return err
			}

			w.dirs[path] = struct{}{}
		}

		return nil
	})
}

// isRelevant filters out metadata-only events and editor scratch files.
func isRelevant(event fsnotify.Event) bool {
	if event.Op == 0 {
		return false
	}

	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	name := filepath.Base(event.Name)

	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".swp") || strings.HasPrefix(name, "#") {
		return false
	}

	return true
}
