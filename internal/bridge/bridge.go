// Package bridge sequences host operations against the native
// conversion engine and keeps the composition-state view and the
// durable user dictionary synchronized with it.
//
// A Bridge owns exactly one engine and one logical session. Its
// lifecycle is Uninitialized → Ready → Destroyed; Destroyed is
// terminal. Every mutating operation is followed immediately by a
// state read under the same lock, so "mutate then snapshot" is atomic
// from the host's point of view.
package bridge

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"rimebridge/internal/config"
	"rimebridge/internal/datastore"
	"rimebridge/internal/loader"
	"rimebridge/internal/logging"
	"rimebridge/internal/rime"
	"rimebridge/internal/snapshot"
	"rimebridge/internal/syncer"
)

// postDestroyVersion is what GetVersion reports once the bridge is
// destroyed, so teardown code reading it defensively gets a value
// instead of an error.
const postDestroyVersion = "unknown"

type lifecycle int

const (
	stateUninitialized lifecycle = iota
	stateReady
	stateDestroyed
)

// Bridge is the session bridge. The zero value is not usable; call New.
type Bridge struct {
	mu    sync.Mutex
	state lifecycle

	opts  *config.Options
	eng   rime.Engine
	log   *logging.Logger
	store *datastore.Store
	sync  *syncer.Syncer
}

// New returns an uninitialized bridge around eng. Only one Bridge may
// exist per engine: the engine is not reentrant and the bridge is what
// enforces single-session access.
func New(opts *config.Options, eng rime.Engine, log *logging.Logger) *Bridge {
	if opts == nil {
		opts = config.Default()
	}
	if log == nil {
		log = logging.Default()
	}
	return &Bridge{
		opts: opts,
		eng:  eng,
		log:  log.WithComponent("bridge"),
	}
}

// Initialize deploys data, mounts the durable user-dictionary store and
// starts the engine session.
//
// Order matters: the loader must finish before the engine reads the
// shared data directory, and the durable store must be pulled before
// the engine touches the user data directory, or first-run state would
// shadow what survived the last shutdown.
//
// A *loader.DataLoadError leaves the bridge Uninitialized; Initialize
// may be called again. An *InitError is fatal and destroys the bridge.
func (b *Bridge) Initialize(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateReady:
		return ErrAlreadyInitialized
	case stateDestroyed:
		return ErrDestroyed
	}

	if !b.opts.SkipFetch {
		client := &http.Client{Timeout: b.opts.FetchTimeout()}
		l := loader.New(client, b.log)
		if err := l.Fetch(ctx, b.opts.ResourcePrefix, b.opts.DataFiles, b.opts.SharedDataDir()); err != nil {
			return err
		}
	}

	store, err := datastore.Open(b.opts.DurableStorePath())
	if err != nil {
		return fmt.Errorf("open durable store: %w", err)
	}

	sy := syncer.New(b.opts.UserDataDir(), store, b.log)
	if err := sy.MountAndPull(ctx); err != nil {
		store.Close()
		return fmt.Errorf("mount durable store: %w", err)
	}

	traits := rime.Traits{
		SharedDataDir:        b.opts.SharedDataDir(),
		UserDataDir:          b.opts.UserDataDir(),
		AppName:              "rimebridge",
		DistributionName:     "Rime Bridge",
		DistributionCodeName: "rimebridge",
		DistributionVersion:  "1.16.1",
	}
	if err := b.eng.Init(traits); err != nil {
		sy.Close()
		store.Close()
		b.state = stateDestroyed
		return &InitError{Err: err}
	}

	b.store = store
	b.sync = sy
	b.state = stateReady

	// First-run deployment may have written user data; make it durable.
	b.sync.Push()

	b.log.Info("engine ready", "version", b.eng.Version())
	return nil
}

// ready must be called with the lock held.
func (b *Bridge) ready() error {
	switch b.state {
	case stateUninitialized:
		return ErrNotReady
	case stateDestroyed:
		return ErrDestroyed
	}
	return nil
}

// readState queries the engine and renders the snapshot. Must be
// called with the lock held, immediately after the mutation whose
// effect it observes.
func (b *Bridge) readState() (snapshot.State, error) {
	raw, err := b.eng.QueryState()
	if err != nil {
		// Not expected in correct operation: a failing query is a
		// contract defect, not a user-facing condition.
		return snapshot.Idle(), fmt.Errorf("query state: %w", err)
	}
	return snapshot.Build(raw), nil
}

// ProcessInput feeds a key-symbol sequence into the composition and
// returns the resulting state. Each call operates on whatever
// composition currently exists; hosts should ClearInput before
// re-issuing a logically new input string.
func (b *Bridge) ProcessInput(text string) (snapshot.State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ready(); err != nil {
		return snapshot.Idle(), err
	}
	if err := b.eng.ProcessKeys(text); err != nil {
		return snapshot.Idle(), err
	}
	return b.readState()
}

// PickCandidate commits or advances using the candidate at index on the
// current page, then schedules a durable push: selecting a candidate is
// what trains the user dictionary. An out-of-range index leaves the
// composition unchanged.
func (b *Bridge) PickCandidate(index int) (snapshot.State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ready(); err != nil {
		return snapshot.Idle(), err
	}
	if err := b.eng.SelectCandidate(index); err != nil {
		return snapshot.Idle(), err
	}
	st, err := b.readState()
	if err != nil {
		return st, err
	}
	b.sync.Push()
	return st, nil
}

// FlipPage moves the candidate window forward or backward. Boundary
// flips are no-ops. Pure navigation cannot train the dictionary, so no
// push is scheduled.
func (b *Bridge) FlipPage(forward bool) (snapshot.State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ready(); err != nil {
		return snapshot.Idle(), err
	}
	if err := b.eng.ChangePage(!forward); err != nil {
		return snapshot.Idle(), err
	}
	return b.readState()
}

// ClearInput discards the in-progress composition without committing.
func (b *Bridge) ClearInput() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ready(); err != nil {
		return err
	}
	return b.eng.ClearComposition()
}

// SetOption toggles a named boolean engine option. Unknown names are
// ignored by the engine.
func (b *Bridge) SetOption(name string, value bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ready(); err != nil {
		return err
	}
	return b.eng.SetOption(name, value)
}

// State returns a fresh snapshot without mutating anything. After
// Destroy it returns the idle sentinel rather than an error, so
// teardown code does not need to branch on destruction state for
// read-only calls.
func (b *Bridge) State() (snapshot.State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != stateReady {
		return snapshot.Idle(), nil
	}
	return b.readState()
}

// GetVersion reports the engine version, or "unknown" once destroyed.
func (b *Bridge) GetVersion() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == stateDestroyed {
		return postDestroyVersion
	}
	return b.eng.Version()
}

// Destroy pushes the user dictionary one final time, shuts the engine
// down and releases the durable store. Idempotent: a second call is a
// no-op.
func (b *Bridge) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == stateDestroyed {
		return
	}
	if b.state == stateReady {
		b.sync.Close()
		if err := b.store.Close(); err != nil {
			b.log.Warn("close durable store", "error", err)
		}
		b.eng.Shutdown()
	}
	b.state = stateDestroyed
	b.log.Info("bridge destroyed")
}
