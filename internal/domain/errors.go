package domain

import "errors"

var (
	// ErrToolUnavailable is returned when a strategy's backend cannot be used at all.
	// It is the only error kind that lets the orchestrator fall through to the next strategy.
	ErrToolUnavailable = errors.New("execution backend unavailable")

	// ErrCompileFailure is returned when the toolchain ran and rejected the source.
	ErrCompileFailure = errors.New("compilation failed")

	// ErrExecutionTimeout is returned when a process exceeded its time budget and was killed.
	ErrExecutionTimeout = errors.New("execution timed out")

	// ErrTransportFailure is returned when a remote service call fails or answers non-2xx.
	ErrTransportFailure = errors.New("remote service transport failure")

	// ErrSimulationSyntax is returned when static validation of the source fails.
	ErrSimulationSyntax = errors.New("source failed syntax validation")

	// ErrExecutionInFlight is returned when a document already has an execution outstanding.
	ErrExecutionInFlight = errors.New("an execution is already in progress for this document")

	// ErrPoolBusy is returned when the worker queue cannot accept another job.
	ErrPoolBusy = errors.New("execution worker queue is full")

	// ErrPoolStopped is returned when a job is submitted after shutdown.
	ErrPoolStopped = errors.New("execution worker pool is stopped")

	// ErrSessionNotFound is returned when a document session cannot be found by ID.
	ErrSessionNotFound = errors.New("document session not found")

	// ErrTooManySessions is returned when the open document limit is reached.
	ErrTooManySessions = errors.New("too many open documents")

	// ErrSessionClosed is returned when a closed session receives a command.
	ErrSessionClosed = errors.New("document session is closed")

	// ErrNothingToUndo is returned when the undo history is empty.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrNothingToRedo is returned when the redo history is empty.
	ErrNothingToRedo = errors.New("nothing to redo")

	// ErrEmptySource is returned when a run is requested for a blank document.
	ErrEmptySource = errors.New("source code cannot be empty")

	// ErrPayloadTooLarge is returned when a document exceeds the size limit.
	ErrPayloadTooLarge = errors.New("document exceeds maximum size (1MB)")
)
