package bridge

import (
	"errors"
	"fmt"
)

// ErrNotReady reports an operation invoked before successful
// initialization. Programmer error, not retried.
var ErrNotReady = errors.New("bridge: not initialized")

// ErrDestroyed reports a mutating operation invoked after Destroy.
// Programmer error.
var ErrDestroyed = errors.New("bridge: destroyed")

// ErrAlreadyInitialized reports a second Initialize on a ready bridge.
var ErrAlreadyInitialized = errors.New("bridge: already initialized")

// InitError reports that the engine or its session could not be
// created. It is fatal: the bridge transitions to Destroyed and must
// not be reused.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("engine initialization failed: %v", e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }
