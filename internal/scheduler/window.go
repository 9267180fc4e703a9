package scheduler

import (
	"errors"
	"time"
)

var (
	// ErrWindowIncomplete is returned when either bound of a window is missing.
	ErrWindowIncomplete = errors.New("scheduler: window requires start and end")
	// ErrWindowInverted is returned when a window does not start strictly before it ends.
	ErrWindowInverted = errors.New("scheduler: start must be before end")
)

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Validate checks that both bounds are present and ordered.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return ErrWindowIncomplete
	}
	if !w.Start.Before(w.End) {
		return ErrWindowInverted
	}
	return nil
}

// Overlaps reports whether w and other share any instant. Windows that only
// touch at a boundary do not overlap.
func (w Window) Overlaps(other Window) bool {
	return w.Start.Before(other.End) && w.End.After(other.Start)
}

// UTC returns the window with both bounds converted to UTC.
func (w Window) UTC() Window {
	return Window{Start: w.Start.UTC(), End: w.End.UTC()}
}
