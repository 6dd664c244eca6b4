package framebus

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Recv once the bus or the subscription is closed
// and every queued frame has been delivered.
var ErrClosed = errors.New("framebus: closed")

// LaggedError reports frames overwritten before the subscriber read them.
// It is not fatal: the next Recv returns the oldest frame still queued.
type LaggedError struct {
	Missed uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("framebus: subscriber lagged, missed %d frames", e.Missed)
}

// IsLagged reports whether err is a *LaggedError and returns the missed count.
func IsLagged(err error) (uint64, bool) {
	var lagged *LaggedError
	if errors.As(err, &lagged) {
		return lagged.Missed, true
	}
	return 0, false
}
