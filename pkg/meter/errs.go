package meter

import (
	"errors"
	"fmt"
)

var (
	ErrProcessUnreadable = errors.New("meter: process stats unreadable")
	ErrBadHistorySize    = errors.New("meter: history size must be > 0")
	ErrBadSmoothing      = errors.New("meter: smoothing factor must be in (0, 1]")
	ErrBadClockTicks     = errors.New("meter: clock ticks must be > 0")
)

// SampleError is returned by Sample when the mandatory process counters
// could not be read. The meter's state is left untouched.
type SampleError struct {
	Err error
}

func (e *SampleError) Error() string {
	return fmt.Sprintf("%v: %v", ErrProcessUnreadable, e.Err)
}

func (e *SampleError) Unwrap() error { return e.Err }

func (e *SampleError) Is(target error) bool { return target == ErrProcessUnreadable }
