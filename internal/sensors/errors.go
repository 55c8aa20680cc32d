package sensors

import "errors"

// Monitoring state errors
var (
	// ErrAlreadyMonitoring indicates StartContinuous was called while active
	ErrAlreadyMonitoring = errors.New("already monitoring")

	// ErrNotMonitoring indicates the continuous loop is not running
	ErrNotMonitoring = errors.New("not monitoring")
)

// Reader errors
var (
	// ErrUnknownKind indicates an unrecognized source kind name
	ErrUnknownKind = errors.New("unknown sensor kind")

	// ErrUnexpectedReading indicates a reader returned a reading of the wrong kind
	ErrUnexpectedReading = errors.New("reader returned unexpected reading")

	// ErrReaderPanic indicates a reader panicked during a fetch
	ErrReaderPanic = errors.New("reader panicked")

	// ErrUnavailable indicates the underlying hardware or service is unavailable
	ErrUnavailable = errors.New("source unavailable")

	// ErrPermissionDenied indicates the user has not authorized the source
	ErrPermissionDenied = errors.New("permission denied")
)
