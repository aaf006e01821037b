// Package watcher reports files that change in the workspace, so the IDE host can tell the core which files to
// reindex.
package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
)

// Start a watcher with the provided options.
func Start(options ...Option) (Interface, error) {
	wr := &watcher{debounce: 100 * time.Millisecond}
	for _, option := range options {
		err := option(wr)
		if err != nil {
			return nil, err
		}
	}
	err := wr.start()
	if err != nil {
		return nil, err
	}
	return wr, nil
}

// An Option is a function that can manipulate a watcher during construction
type Option func(*watcher) error

// Include specifies one or more file patterns to include in the watch.  Patterns are matched against the path
// relative to the watched directory.  If no patterns are specified, all files are included.
func Include(patterns ...string) Option {
	return func(wr *watcher) (err error) {
		wr.includes, err = appendPatterns(wr.includes, patterns...)
		return
	}
}

// Exclude specifies one or more file patterns to exclude from the watch.
// If a file matches both an include and an exclude pattern, it is excluded.  Files and directories starting with a
// dot are always excluded.
func Exclude(patterns ...string) Option {
	return func(wr *watcher) (err error) {
		wr.excludes, err = appendPatterns(wr.excludes, patterns...)
		return
	}
}

func appendPatterns(seq []glob.Glob, patterns ...string) ([]glob.Glob, error) {
	for _, pattern := range patterns {
		rx, err := glob.Compile(pattern, filepath.Separator)
		if err != nil {
			return nil, fmt.Errorf(`%w in %q`, err, pattern)
		}
		seq = append(seq, rx)
	}
	return seq, nil
}

// Directory specifies one or more directories to watch recursively.
// If no directories are specified, the current working directory is watched.
func Directory(paths ...string) Option {
	return func(wr *watcher) error {
		for _, path := range paths {
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			wr.directories = append(wr.directories, abs)
		}
		return nil
	}
}

// Debounce specifies how long the watcher collects changes before reporting them together.  Defaults to 100ms.
func Debounce(d time.Duration) Option {
	return func(wr *watcher) error {
		wr.debounce = d
		return nil
	}
}

// Interface describes the watcher interface
type Interface interface {
	// Changes returns a channel that receives the absolute paths of changed files in sorted batches.  It is closed
	// when the watcher shuts down.
	Changes() <-chan []string
	Shutdown()
}

type watcher struct {
	includes    []glob.Glob
	excludes    []glob.Glob
	directories []string
	debounce    time.Duration

	fsnotify   *fsnotify.Watcher
	changeCh   chan []string // receives batches of changed paths
	shutdownCh chan struct{} // sent when the watcher should shut down
	doneCh     chan struct{} // closed when the watcher is done
}

func (wr *watcher) start() (err error) {
	wr.fsnotify, err = fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if len(wr.directories) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			wr.fsnotify.Close()
			return err
		}
		wr.directories = []string{wd}
	}
	for _, dir := range wr.directories {
		err := filepath.WalkDir(dir, func(path string, info fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() {
				return nil
			}
			if path != dir && hidden(info.Name()) {
				return filepath.SkipDir
			}
			return wr.fsnotify.Add(path)
		})
		if err != nil {
			wr.fsnotify.Close()
			return err
		}
	}
	wr.changeCh = make(chan []string)
	wr.shutdownCh = make(chan struct{})
	wr.doneCh = make(chan struct{})
	go wr.process()
	return nil
}

func (wr *watcher) Changes() <-chan []string {
	return wr.changeCh
}

func (wr *watcher) Shutdown() {
	select {
	case wr.shutdownCh <- struct{}{}:
	case <-wr.doneCh:
	}
	<-wr.doneCh
}

func (wr *watcher) process() {
	defer close(wr.doneCh)
	defer close(wr.changeCh)
	defer wr.fsnotify.Close()

	pending := make(map[string]struct{})
	var fire <-chan time.Time
	for {
		select {
		case <-wr.shutdownCh:
			return
		case event, ok := <-wr.fsnotify.Events:
			if !ok {
				return
			}
			name, ok := wr.processNotification(event)
			if !ok {
				continue
			}
			pending[name] = struct{}{}
			if fire == nil {
				fire = time.After(wr.debounce)
			}
		case <-wr.fsnotify.Errors:
		case <-fire:
			fire = nil
			batch := make([]string, 0, len(pending))
			for name := range pending {
				batch = append(batch, name)
			}
			clear(pending)
			sort.Strings(batch)
			select {
			case wr.changeCh <- batch:
			case <-wr.shutdownCh:
				return
			}
		}
	}
}

// processNotification returns the path affected by an event, if it should be reported.
func (wr *watcher) processNotification(event fsnotify.Event) (string, bool) {
	if event.Has(fsnotify.Create) {
		info, err := os.Stat(event.Name)
		if err != nil {
			return ``, false
		}
		if info.IsDir() {
			if !hidden(filepath.Base(event.Name)) {
				_ = wr.fsnotify.Add(event.Name)
			}
			return ``, false // creating a new directory should not be reported, but we should watch it
		}
		return event.Name, wr.shouldInclude(event.Name)
	}

	switch {
	case event.Has(fsnotify.Write), event.Has(fsnotify.Rename):
	case event.Has(fsnotify.Remove):
		_ = wr.fsnotify.Remove(event.Name)
	default:
		return ``, false
	}
	return event.Name, wr.shouldInclude(event.Name)
}

func (wr *watcher) shouldInclude(name string) bool {
	rel := name
	for _, dir := range wr.directories {
		if r, err := filepath.Rel(dir, name); err == nil && !strings.HasPrefix(r, `..`) {
			rel = r
			break
		}
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if hidden(part) {
			return false
		}
	}
	included := len(wr.includes) == 0
	for _, rx := range wr.includes {
		if rx.Match(rel) {
			included = true
			break
		}
	}
	if !included {
		return false
	}
	for _, rx := range wr.excludes {
		if rx.Match(rel) {
			return false
		}
	}
	return true
}

func hidden(name string) bool { return strings.HasPrefix(name, `.`) && name != `.` }

//TODO: BUG: if a directory is renamed, the watcher may not watch the new name.
