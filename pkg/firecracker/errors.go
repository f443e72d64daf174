package firecracker

import (
	"errors"
	"fmt"
)

var (
	// ErrPostBootAdd rejects adding a new collection member after boot.
	ErrPostBootAdd = errors.New("cannot add member after boot")

	// ErrNoAPI is returned when an operation needs the REST API but the
	// machine runs without one (no_api).
	ErrNoAPI = errors.New("machine has no api client")

	// ErrNoJailer is returned by jailer helpers when no jailer is attached.
	ErrNoJailer = errors.New("no jailer attached")
)

// InvalidStateError reports a lifecycle operation or mutation that is
// illegal in the machine's current state.
type InvalidStateError struct {
	State State
	Op    string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("operation %q is illegal in state %q", e.Op, e.State)
}

// InvalidResourceError reports an unknown resource kind.
type InvalidResourceError struct {
	Kind string
}

func (e *InvalidResourceError) Error() string {
	return fmt.Sprintf("unknown resource %q", e.Kind)
}

// StartupError reports a failed process start: the binary missing, the
// process dying inside the grace window, or unusable host paths. Host
// artifacts created during the attempt have been removed best-effort and
// the machine remains in the initial state.
type StartupError struct {
	Err error
}

func (e *StartupError) Error() string { return fmt.Sprintf("startup failed: %v", e.Err) }
func (e *StartupError) Unwrap() error { return e.Err }

// ResourceError is one entry in the machine's error list: the resource slot
// key and the failure recorded during apply.
type ResourceError struct {
	Resource string
	Err      error
}

func (e ResourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Resource, e.Err)
}

func (e ResourceError) Unwrap() error { return e.Err }
