package simplevr

import (
	"io"
	"time"
)

// Transport is the interface for low-level communication with the module.
// This abstraction allows for testing with mock implementations.
//
// Read must not block for longer than a short poll interval: when no byte has
// been received it returns 0 and a nil error (or io.EOF). The frame reader
// polls it one byte at a time.
type Transport interface {
	io.ReadWriteCloser

	// Flush discards any buffered input data.
	Flush() error
}

// Clock supplies the time used for receive windows.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock. time.Now carries a monotonic reading, so
// windows measured with it are unaffected by clock adjustments.
var SystemClock Clock = systemClock{}
