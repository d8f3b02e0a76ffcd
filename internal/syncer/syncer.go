// Package syncer keeps the engine's user-data directory synchronized
// with a durable store so learned-dictionary state survives restarts.
//
// The mount is pulled exactly once, before the engine initializes, and
// pushed after operations that may have trained the user dictionary.
// Pushes are fire-and-forget: a single background worker serializes
// them so push order matches trigger order, and every push failure is
// logged and swallowed. Losing one training update is preferable to
// failing the interactive keystroke that triggered it.
package syncer

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"rimebridge/internal/datastore"
	"rimebridge/internal/logging"
)

// Syncer mirrors one directory into a datastore.Store.
type Syncer struct {
	dir   string
	store *datastore.Store
	log   *logging.Logger

	mu      sync.Mutex
	syncMu  sync.Mutex
	dirty   map[string]struct{} // relative paths touched since last push
	watchOK bool
	mounted bool
	closed  bool

	watcher  *fsnotify.Watcher
	requests chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
}

// New creates a syncer mirroring dir into store. Call MountAndPull
// before the engine touches dir.
func New(dir string, store *datastore.Store, log *logging.Logger) *Syncer {
	if log == nil {
		log = logging.Default()
	}
	return &Syncer{
		dir:      dir,
		store:    store,
		log:      log.WithComponent("syncer"),
		dirty:    make(map[string]struct{}),
		requests: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// MountAndPull materializes every stored blob under the mount directory
// and starts change tracking. It must complete before engine init, or
// first-run state written by the engine would shadow the durable copy.
// Unlike pushes, pull failures are real errors.
func (s *Syncer) MountAndPull(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return err
	}

	entries, err := s.store.List()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		content, err := s.store.Get(e.Path)
		if err != nil {
			return err
		}
		dst := filepath.Join(s.dir, filepath.FromSlash(e.Path))
		if err := os.MkdirAll(filepath.Dir(dst), 0700); err != nil {
			return err
		}
		if err := os.WriteFile(dst, content, 0600); err != nil {
			return err
		}
	}
	s.log.Info("durable store pulled", "files", len(entries), "dir", s.dir)

	s.startWatcher()

	s.wg.Add(1)
	go s.worker()

	s.mu.Lock()
	s.mounted = true
	s.mu.Unlock()
	return nil
}

// startWatcher begins dirty-path tracking. A watcher failure only
// degrades pushes to full directory walks.
func (s *Syncer) startWatcher() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.log.Warn("change tracking unavailable, pushes will walk the mount", "error", err)
		return
	}
	if err := w.Add(s.dir); err != nil {
		s.log.Warn("change tracking unavailable, pushes will walk the mount", "error", err)
		w.Close()
		return
	}
	// fsnotify does not recurse; watch existing subdirectories too.
	filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && d.IsDir() && path != s.dir {
			w.Add(path)
		}
		return nil
	})

	s.watcher = w
	s.watchOK = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				s.observe(ev)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn("watch error", "error", err)
			}
		}
	}()
}

// observe records one filesystem event as a dirty relative path.
func (s *Syncer) observe(ev fsnotify.Event) {
	rel, err := filepath.Rel(s.dir, ev.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			s.watcher.Add(ev.Name)
			return
		}
	}
	s.mu.Lock()
	s.dirty[filepath.ToSlash(rel)] = struct{}{}
	s.mu.Unlock()
}

// Push schedules a best-effort sync to durable storage. It never blocks
// and never reports failure to the caller: the triggering user action
// must not pay for durability.
func (s *Syncer) Push() {
	s.mu.Lock()
	closed := s.closed
	mounted := s.mounted
	s.mu.Unlock()
	if closed || !mounted {
		return
	}
	select {
	case s.requests <- struct{}{}:
	default:
		// a push is already queued; it will pick these changes up
	}
}

// Flush runs one synchronous sync. Used at shutdown and by tests.
func (s *Syncer) Flush() {
	s.mu.Lock()
	mounted := s.mounted
	s.mu.Unlock()
	if !mounted {
		return
	}
	s.sync()
}

// Close drains pending pushes, runs a final sync and stops tracking.
// Safe to call more than once.
func (s *Syncer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	mounted := s.mounted
	s.mu.Unlock()

	if !mounted {
		return
	}
	close(s.done)
	if s.watcher != nil {
		s.watcher.Close()
	}
	s.wg.Wait()
	s.sync()
}

// worker serializes pushes: bounded concurrency one, so the durable
// store observes training updates in trigger order.
func (s *Syncer) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.requests:
			s.sync()
		case <-s.done:
			select {
			case <-s.requests:
				s.sync()
			default:
			}
			return
		}
	}
}

// sync pushes changed files to the store and drops deleted ones. All
// failures degrade to warnings. syncMu keeps a Flush from interleaving
// with the worker.
func (s *Syncer) sync() {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	paths, full := s.takeWork()

	if full {
		s.syncFull()
		return
	}
	for _, rel := range paths {
		s.syncOne(rel)
	}
}

// takeWork snapshots and clears the dirty set. full is true when the
// whole mount must be walked: either the watcher is degraded, or no
// event has been delivered yet for the write that triggered this push
// (fsnotify delivery is asynchronous).
func (s *Syncer) takeWork() (paths []string, full bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.watchOK || len(s.dirty) == 0 {
		return nil, true
	}
	for rel := range s.dirty {
		paths = append(paths, rel)
	}
	s.dirty = make(map[string]struct{})
	return paths, false
}

// syncOne pushes a single relative path, deleting the stored blob when
// the file is gone from disk.
func (s *Syncer) syncOne(rel string) {
	abs := filepath.Join(s.dir, filepath.FromSlash(rel))
	content, err := os.ReadFile(abs)
	if os.IsNotExist(err) {
		if err := s.store.Delete(rel); err != nil {
			s.log.Warn("push delete failed", "path", rel, "error", err)
		}
		return
	}
	if err != nil {
		s.log.Warn("push read failed", "path", rel, "error", err)
		return
	}
	s.put(rel, content)
}

// syncFull walks the whole mount, then drops stored blobs that no
// longer exist on disk.
func (s *Syncer) syncFull() {
	seen := make(map[string]struct{})
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(s.dir, path)
		if rerr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		seen[rel] = struct{}{}
		content, rerr := os.ReadFile(path)
		if rerr != nil {
			s.log.Warn("push read failed", "path", rel, "error", rerr)
			return nil
		}
		s.put(rel, content)
		return nil
	})
	if err != nil {
		s.log.Warn("push walk failed", "dir", s.dir, "error", err)
		return
	}

	entries, err := s.store.List()
	if err != nil {
		s.log.Warn("push list failed", "error", err)
		return
	}
	for _, e := range entries {
		if _, ok := seen[e.Path]; !ok {
			if err := s.store.Delete(e.Path); err != nil {
				s.log.Warn("push delete failed", "path", e.Path, "error", err)
			}
		}
	}
}

// put stores content under rel unless the stored digest already
// matches.
func (s *Syncer) put(rel string, content []byte) {
	stored, ok, err := s.store.Digest(rel)
	if err == nil && ok && stored == digestOf(content) {
		return
	}
	if err := s.store.Put(rel, content); err != nil {
		s.log.Warn("push write failed", "path", rel, "error", err)
	}
}
