// Package yerrors defines the error-kind taxonomy shared across the
// physics, layout, and realtime packages. Kinds are sentinel errors so
// callers can classify with errors.Is while individual sites still wrap
// with context via fmt.Errorf("...: %w", err).
package yerrors

import "errors"

var (
	// ErrInitializationFailed marks a GPU device or kernel that could not be
	// brought up. The layout service treats this as a signal to fall back
	// to the CPU executor, never surfaced to clients.
	ErrInitializationFailed = errors.New("yggdrasil: initialization failed")

	// ErrInvalidInput marks malformed JSON or an unrecognized message type
	// on a session. Echoed back to the client as an error frame.
	ErrInvalidInput = errors.New("yggdrasil: invalid input")

	// ErrStepFailed marks a kernel launch or memcpy failure mid-simulation.
	// The tick is skipped and the next one retries.
	ErrStepFailed = errors.New("yggdrasil: step failed")

	// ErrBusy marks a single-flight guard rejecting a concurrent attempt.
	ErrBusy = errors.New("yggdrasil: busy")

	// ErrTimeout marks a metadata wait exceeding its deadline. The upstream
	// chat and speech clients do not use it: their timeouts are wrapped as
	// ErrUpstream like any other upstream failure.
	ErrTimeout = errors.New("yggdrasil: timeout")

	// ErrTransport marks a socket-level failure; the session actor stops.
	ErrTransport = errors.New("yggdrasil: transport error")

	// ErrUpstream marks a failure from an external collaborator (chat,
	// speech synthesis).
	ErrUpstream = errors.New("yggdrasil: upstream error")
)
