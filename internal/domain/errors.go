package domain

import "errors"

// Domain errors represent error conditions in the stdio-inspect domain.
// These errors can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Run() is called on a running session.
	ErrAlreadyRunning = errors.New("stdio-inspect: already running")

	// ErrNotRunning is returned when a session is stopped that never started.
	ErrNotRunning = errors.New("stdio-inspect: not running")

	// ErrShutdownTimeout is returned when the relay does not stop in time.
	ErrShutdownTimeout = errors.New("stdio-inspect: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("stdio-inspect: invalid configuration")

	// ErrShortPacket is returned when a datagram has no kind tag.
	ErrShortPacket = errors.New("stdio-inspect: packet too short")

	// ErrUnknownKind is returned when a kind tag is not 0, 1 or 2.
	ErrUnknownKind = errors.New("stdio-inspect: unknown stream kind")
)
