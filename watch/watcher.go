// Copyright (c) 2024 - for information on the respective copyright owner
// see the NOTICE file and/or the repository at
// https://github.com/hyperledger-labs/bindgen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package watch turns file system notifications into a stream of add, change
// and unlink events, and drives the watch hooks of plugins with them.
package watch

import (
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/hyperledger-labs/bindgen/log"
)

// DefaultSettle is the default time a path must be quiet before its event is
// reported.
const DefaultSettle = 200 * time.Millisecond

// Kind is the kind of a file event.
type Kind int

// Enumeration of the file event kinds. Other file system operations, such as
// permission changes, are not reported.
const (
	Add Kind = iota + 1
	Change
	Unlink
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Add:
		return "add"
	case Change:
		return "change"
	case Unlink:
		return "unlink"
	default:
		return "unknown"
	}
}

// Event is a settled change to a file that matches one of the patterns.
type Event struct {
	Kind Kind
	Path string
}

// SignalNotifier subscribes channels to process signals. It is implemented by
// the os/signal package.
type SignalNotifier interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
	Stop(c chan<- os.Signal)
}

type osSignals struct{}

func (osSignals) Notify(c chan<- os.Signal, sig ...os.Signal) { signal.Notify(c, sig...) }
func (osSignals) Stop(c chan<- os.Signal)                   { signal.Stop(c) }

// Options configure a Watcher.
type Options struct {
	// Settle is the time a path must be quiet before its event is reported.
	// Defaults to DefaultSettle.
	Settle time.Duration

	// Signals closes the watcher on SIGINT or SIGTERM.
	Signals bool

	// Notifier is used to subscribe to signals. Defaults to os/signal.
	Notifier SignalNotifier

	Logger log.Logger
}

type pending struct {
	kind     Kind
	seq      uint64
	deadline time.Time
}

// Watcher reports changes to files matching a set of glob patterns.
//
// The base directory of each pattern is watched. Directories below it are
// watched too, including ones created later, only if the rest of the pattern
// can match below the base, that is if it contains "**" or a separator. Files present when the watcher starts
// are not reported, but creating one of them again, for example by renaming a
// file over it, is reported as a change. Bursts of notifications for one path
// are coalesced into a single event once the path has been quiet for the
// settle time.
type Watcher struct {
	log.Logger

	patterns  []string
	bases     []string
	recursive []bool
	settle   time.Duration

	fsw    *fsnotify.Watcher
	events chan Event
	done   chan struct{}
	exited chan struct{}

	known   map[string]struct{}
	pending map[string]*pending
	seq     uint64

	notifier  SignalNotifier
	signals   chan os.Signal
	closeOnce sync.Once
	closeErr  error
}

// New starts watching the given glob patterns.
func New(patterns []string, opts Options) (*Watcher, error) {
	if len(patterns) == 0 {
		return nil, errors.New("no patterns to watch")
	}
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	if opts.Logger == nil {
		opts.Logger = log.NewLoggerWithField("component", "watcher")
	}
	if opts.Notifier == nil {
		opts.Notifier = osSignals{}
	}

	w := &Watcher{
		Logger:   opts.Logger,
		settle:   opts.Settle,
		events:   make(chan Event),
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
		known:    make(map[string]struct{}),
		pending:  make(map[string]*pending),
		notifier: opts.Notifier,
	}
	for _, p := range patterns {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving pattern %s", p)
		}
		pattern := filepath.ToSlash(abs)
		if !doublestar.ValidatePattern(pattern) {
			return nil, errors.Errorf("invalid pattern %s", p)
		}
		base, rest := doublestar.SplitPattern(pattern)
		w.patterns = append(w.patterns, pattern)
		w.bases = append(w.bases, base)
		w.recursive = append(w.recursive, strings.Contains(rest, "**") || strings.Contains(rest, "/"))
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating file system watcher")
	}
	w.fsw = fsw
	for _, base := range w.bases {
		if err := w.addBase(base); err != nil {
			fsw.Close() // nolint: errcheck
			return nil, err
		}
	}

	w.WithField("dirs", len(w.Dirs())).Debug("Watching")

	if opts.Signals {
		w.signals = make(chan os.Signal, 1)
		w.notifier.Notify(w.signals, syscall.SIGINT, syscall.SIGTERM)
		go w.closeOnSignal()
	}
	go w.run()
	return w, nil
}

// Dirs returns the directories currently watched, in lexical order.
func (w *Watcher) Dirs() []string {
	dirs := w.fsw.WatchList()
	sort.Strings(dirs)
	return dirs
}

// Events returns the channel on which settled events are delivered. It is
// closed when the watcher is closed.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Close stops watching and releases the file system handles and the signal
// subscription. It is safe to call Close more than once.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
		if w.signals != nil {
			w.notifier.Stop(w.signals)
		}
		w.closeErr = errors.WithStack(w.fsw.Close())
		<-w.exited
	})
	return w.closeErr
}

func (w *Watcher) closeOnSignal() {
	select {
	case sig := <-w.signals:
		w.Infof("Received %v, closing watcher", sig)
		w.Close() // nolint: errcheck
	case <-w.done:
	}
}

// addBase watches the base directory of a pattern and everything below it.
// If the base does not exist yet, its closest existing ancestor is watched,
// so that the base is picked up once it is created.
func (w *Watcher) addBase(base string) error {
	dir := filepath.FromSlash(base)
	for {
		info, err := os.Stat(dir)
		if err == nil && info.IsDir() {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return errors.Errorf("no existing directory for %s", base)
		}
		dir = parent
	}
	if filepath.ToSlash(dir) != base {
		return errors.Wrapf(w.fsw.Add(dir), "watching %s", dir)
	}
	return w.addTree(dir, func(path string) {
		if w.matches(path) {
			w.known[path] = struct{}{}
		}
	})
}

// addTree watches dir and the directories below it that are relevant. found
// is called for every file in a watched directory.
func (w *Watcher) addTree(dir string, found func(path string)) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			found(path)
			return nil
		}
		if path != dir && !w.relevant(path) {
			return filepath.SkipDir
		}
		return errors.Wrapf(w.fsw.Add(path), "watching %s", path)
	})
}

// relevant reports whether dir must be watched: it is a pattern base, below
// the base of a recursive pattern, or on the way to a base that does not
// exist yet.
func (w *Watcher) relevant(dir string) bool {
	slashed := filepath.ToSlash(dir)
	for i, base := range w.bases {
		switch {
		case slashed == base, strings.HasPrefix(base, slashed+"/"):
			return true
		case w.recursive[i] && strings.HasPrefix(slashed, base+"/"):
			return true
		}
	}
	return false
}

func (w *Watcher) matches(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, pattern := range w.patterns {
		if ok, _ := doublestar.Match(pattern, slashed); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) run() {
	defer close(w.exited)
	defer close(w.events)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.Warnf("File system watcher: %v", err)
		case <-timer.C:
		}

		if !w.flush(time.Now()) {
			return
		}
		if next, ok := w.nextDeadline(); ok {
			timer.Reset(time.Until(next))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	var kind Kind
	switch {
	case ev.Has(fsnotify.Create):
		info, err := os.Stat(ev.Name)
		if err == nil && info.IsDir() {
			if w.relevant(ev.Name) {
				w.addCreatedDir(ev.Name)
			}
			return
		}
		kind = Add
		if _, ok := w.known[ev.Name]; ok {
			kind = Change
		}
	case ev.Has(fsnotify.Write):
		kind = Change
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		kind = Unlink
	default:
		return
	}
	w.record(ev.Name, kind)
}

// addCreatedDir watches a new directory. Files which were created in it before
// the watch was in place are reported as added.
func (w *Watcher) addCreatedDir(dir string) {
	err := w.addTree(dir, func(path string) { w.record(path, Add) })
	if err != nil {
		w.Warnf("Watching new directory %s: %v", dir, err)
	}
}

func (w *Watcher) record(path string, kind Kind) {
	if !w.matches(path) {
		return
	}
	if kind == Unlink {
		delete(w.known, path)
	} else {
		w.known[path] = struct{}{}
	}
	deadline := time.Now().Add(w.settle)
	p, ok := w.pending[path]
	if !ok {
		w.seq++
		w.pending[path] = &pending{kind: kind, seq: w.seq, deadline: deadline}
		return
	}
	merged, keep := Merge(p.kind, kind)
	if !keep {
		delete(w.pending, path)
		return
	}
	p.kind = merged
	p.deadline = deadline
}

// flush delivers the events whose path has settled, in the order in which
// the paths were first seen. It returns false if the watcher was closed while
// delivering.
func (w *Watcher) flush(now time.Time) bool {
	due := make([]string, 0, len(w.pending))
	for path, p := range w.pending {
		if !p.deadline.After(now) {
			due = append(due, path)
		}
	}
	sort.Slice(due, func(i, j int) bool { return w.pending[due[i]].seq < w.pending[due[j]].seq })

	for _, path := range due {
		ev := Event{Kind: w.pending[path].kind, Path: path}
		delete(w.pending, path)
		select {
		case w.events <- ev:
		case <-w.done:
			return false
		}
	}
	return true
}

func (w *Watcher) nextDeadline() (time.Time, bool) {
	var next time.Time
	for _, p := range w.pending {
		if next.IsZero() || p.deadline.Before(next) {
			next = p.deadline
		}
	}
	return next, !next.IsZero()
}

// Merge combines a pending event kind with a later one for the same path.
// keep is false if the two cancel out.
//
// The first kind is kept, with these exceptions: a file that is added and
// then unlinked was never there; a file that is unlinked and added again was
// changed, as done by editors saving atomically; an unlink after a change is
// an unlink.
func Merge(first, next Kind) (merged Kind, keep bool) {
	switch {
	case first == Add && next == Unlink:
		return 0, false
	case first == Unlink && next == Add:
		return Change, true
	case first == Change && next == Unlink:
		return Unlink, true
	case first == Unlink && next == Change:
		return Change, true
	default:
		return first, true
	}
}
